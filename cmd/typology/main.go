// Package main is the entry point for the typology CLI binary.
package main

import (
	"os"

	cli "census-typology/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
