// Package main is the entry point for the rhai3 demo lifecycle tool.
package main

import (
	"fmt"
	"os"

	"github.com/erwangranger/RHAI3-demo/cmd/rhai3/cmd"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cmd.SetVersion(version, commit, date)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cmd.ExitCode(err))
	}
}
