// Package noexit содержит анализатор, запрещающий прямой вызов os.Exit
// в функции main пакета main: отложенные вызовы (закрытие хранилищ,
// дожидание фонового заполнения кэша) при этом не выполняются.
package noexit

import (
	"go/ast"
	"go/types"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
	"golang.org/x/tools/go/types/typeutil"
)

// Analyzer запрещает os.Exit в функции main.
var Analyzer = &analysis.Analyzer{
	Name:     "noexit",
	Doc:      "forbids direct os.Exit calls in func main of package main",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

func run(pass *analysis.Pass) (interface{}, error) {
	if pass.Pkg.Name() != "main" {
		return nil, nil
	}
	insp := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	insp.Preorder([]ast.Node{(*ast.FuncDecl)(nil)}, func(n ast.Node) {
		fn := n.(*ast.FuncDecl)
		if fn.Recv != nil || fn.Name.Name != "main" || fn.Body == nil {
			return
		}
		ast.Inspect(fn.Body, func(n ast.Node) bool {
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}
			if isOSExit(pass.TypesInfo, call) {
				pass.Reportf(call.Pos(), "direct os.Exit call in main function")
			}
			return true
		})
	})
	return nil, nil
}

// isOSExit распознаёт os.Exit и при импорте под другим именем.
func isOSExit(info *types.Info, call *ast.CallExpr) bool {
	fn, ok := typeutil.Callee(info, call).(*types.Func)
	if !ok || fn.Pkg() == nil {
		return false
	}
	return fn.Pkg().Path() == "os" && fn.Name() == "Exit"
}
