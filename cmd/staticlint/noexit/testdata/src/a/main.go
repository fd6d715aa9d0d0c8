package main

import (
	"os"
	sys "os"
)

func main() {
	defer cleanup()
	os.Exit(1) // want "direct os.Exit call in main function"
	func() {
		sys.Exit(2) // want "direct os.Exit call in main function"
	}()
}

func cleanup() {}

func helper() {
	os.Exit(3)
}
