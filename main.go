// The main package for the saq-crawler executable.
package main

import (
	"github.com/gosaq/saq-crawler/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
