package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/timeagnostic/internal/engine"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	Config     string
	Dataset    []string
	Provenance []string

	// RunIDs overrides the run ID generator (for testing).
	// If nil, the engine uses UUIDv7 run IDs.
	RunIDs engine.RunIDGenerator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the tab CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tab",
		Short: "tab - time-agnostic browser",
		Long: `Browse and query the history of versioned RDF entities.

Entities carry provenance snapshots whose update queries describe every
change. tab rebuilds past states from them and answers SPARQL SELECT
queries against every moment an entity changed, plus the present.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "configuration file (.cue or .json)")
	cmd.PersistentFlags().StringArrayVar(&opts.Dataset, "dataset", nil, "dataset source: N-Quads/JSON-LD file or SPARQL endpoint URL (repeatable)")
	cmd.PersistentFlags().StringArrayVar(&opts.Provenance, "provenance", nil, "provenance source, defaults to the dataset sources (repeatable)")

	// Add subcommands
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewStateCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewMaterializeCommand(opts))
	cmd.AddCommand(NewRunsCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
