// The main package for the runway-crawler executable.
package main

import (
	"github.com/beborico/runway-crawler/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
