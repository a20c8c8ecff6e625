// Package dropcmd is the CLI and process bootstrap (C6): it parses the
// flags of spec §6, wires the certificate factory, TLS endpoint kit,
// proxy listener (or file server, when no upstream target is given),
// and tunes the runtime for its container environment before serving.
// It is grounded on Caddy's own cmd/cobra.go and cmd/main.go, scaled
// down from a pluggable subcommand registry to a single root command.
package dropcmd

import (
	"github.com/spf13/cobra"
)

// NewRootCommand builds the "dropperoni" root command, with its flags
// already bound.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dropperoni",
		Short: "A TLS-terminating intercepting proxy and small file server",
		Long: `dropperoni terminates client TLS under a self-signed (or
operator-supplied) certificate, forwards traffic to a configured
upstream target, and rewrites the Host header of requests in flight.
Text response bodies are decoded and re-encoded but otherwise passed
through unchanged.

When no upstream target is configured, it instead serves a directory
listing and accepts file uploads.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cfg := bindFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		return run(cmd, cfg.resolved())
	}
	return cmd
}
