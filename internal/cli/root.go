// Package cli assembles the stepkernel command-line tool: a thin
// operator surface over the pure interpreter core, grounded on the
// reference workflow engine's root-command wiring.
package cli

import (
	"github.com/spf13/cobra"
)

// Version information, injected via ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
)

// SetVersion records build-time version info. No command of this CLI
// prints the recorded values.
func SetVersion(v, c string) {
	version = v
	commit = c
}

// NewRootCommand builds the root stepkernel command.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stepkernel",
		Short: "stepkernel drives a declarative workflow against a polling agent",
		Long: `stepkernel loads a workflow document, compiles it, and drives the
next/applyEvent reducer to completion against a polling agent loop.

The interpreter itself never calls an LLM or touches a filesystem —
this CLI exists to exercise it end to end from a workflow file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().Bool("json", false, "emit machine-readable JSON instead of text")

	return cmd
}

// Execute runs cmd and maps a returned error to a process exit.
func Execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}
