// Package main запускает multichecker для репозитория.
//
// Состав:
//   - стандартные анализаторы go/analysis/passes (shadow, structtag, nilness, printf, unusedresult, lostcancel);
//   - все SA-анализаторы staticcheck;
//   - S1000 и U1000 из staticcheck;
//   - bodyclose;
//   - noexit: запрещает прямой вызов os.Exit в функции main пакета main.
//
// Запуск:
//
//	go run ./cmd/staticlint ./...
package main

import (
	"strings"

	"github.com/timakin/bodyclose/passes/bodyclose"
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/multichecker"
	"golang.org/x/tools/go/analysis/passes/lostcancel"
	"golang.org/x/tools/go/analysis/passes/nilness"
	"golang.org/x/tools/go/analysis/passes/printf"
	"golang.org/x/tools/go/analysis/passes/shadow"
	"golang.org/x/tools/go/analysis/passes/structtag"
	"golang.org/x/tools/go/analysis/passes/unusedresult"
	"honnef.co/go/tools/analysis/lint"
	"honnef.co/go/tools/simple"
	"honnef.co/go/tools/staticcheck"
	"honnef.co/go/tools/unused"

	"github.com/Totarae/linkshortener/cmd/staticlint/noexit"
)

func main() {
	multichecker.Main(analyzers()...)
}

func analyzers() []*analysis.Analyzer {
	list := []*analysis.Analyzer{
		shadow.Analyzer,
		structtag.Analyzer,
		nilness.Analyzer,
		printf.Analyzer,
		unusedresult.Analyzer,
		lostcancel.Analyzer,
	}

	for _, a := range staticcheck.Analyzers {
		if strings.HasPrefix(a.Analyzer.Name, "SA") {
			list = append(list, a.Analyzer)
		}
	}
	// S1000 живёт в simple, U1000 в unused, а не в staticcheck.Analyzers
	if a := findAnalyzer(simple.Analyzers, "S1000"); a != nil {
		list = append(list, a)
	}
	list = append(list, unused.Analyzer.Analyzer)

	return append(list, bodyclose.Analyzer, noexit.Analyzer)
}

func findAnalyzer(set []*lint.Analyzer, name string) *analysis.Analyzer {
	for _, a := range set {
		if a.Analyzer.Name == name {
			return a.Analyzer
		}
	}
	return nil
}
