// Package main provides the entry point for the backlogd CLI.
package main

import (
	"os"

	"github.com/backlogd/backlogd/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
