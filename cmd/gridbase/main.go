// Package main provides the gridbase CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/fern-energy/gridbase/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
