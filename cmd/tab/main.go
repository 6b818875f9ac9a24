// Command tab answers questions about the past states of an RDF dataset
// whose changes are recorded as provenance snapshots.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/timeagnostic/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err == nil {
		return
	}
	// Commands report their own failures; anything else is a usage error
	// from argument or flag parsing.
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCommandError)
	}
	os.Exit(cli.GetExitCode(err))
}
