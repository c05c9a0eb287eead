// The main package for the catalogbuilder executable.
package main

import (
	"github.com/sdmxkit/catalog-builder/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
