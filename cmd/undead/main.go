// Package main implements the undead CLI.
// It extracts configurable C code into a model store and reports the
// conditional blocks that no valid configuration selects.
package main

import (
	"os"

	"github.com/l3aro/go-undead/cmd/undead/commands"
)

var version = "dev"

func main() {
	commands.RootCmd.SetVersionTemplate(`undead version {{.Version}}
`)
	commands.RootCmd.Version = version

	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
