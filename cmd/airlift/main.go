// cmd/airlift/main.go
//
// Entry point for the airlift CLI. All behavior lives in internal/cli;
// this just maps the command result onto the process exit code.

package main

import (
	"os"

	"github.com/airlift-cli/airlift/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
