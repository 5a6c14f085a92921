// Package main provides the entry point for the agentvault CLI.
package main

import (
	"os"

	"github.com/agentvault/agentvault/cmd/agentvault/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
