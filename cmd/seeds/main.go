// Command seeds applies and reverts versioned SQL seed scripts.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/seeds/internal/cli"
)

func main() {
	os.Exit(run())
}

func run() int {
	cmd := cli.NewRootCommand()
	err := cmd.Execute()
	if err == nil {
		return cli.ExitSuccess
	}

	// Commands report their own failures; anything else is a usage error
	// from flag parsing or argument validation.
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintf(os.Stderr, "Run '%s --help' for usage.\n", cmd.CommandPath())
		return cli.ExitCommandError
	}
	return cli.GetExitCode(err)
}
