// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package cmd implements the minihttpd command line.
package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/z5labs/minihttpd"
)

// Execute runs the command line with args and returns the process exit code.
func Execute(ctx context.Context, args ...string) int {
	root := NewRootCommand()
	root.SetArgs(args)

	return minihttpd.ExitCode(root.ExecuteContext(ctx))
}

// NewRootCommand returns the minihttpd command tree. Running it without
// a subcommand is the same as running "serve".
func NewRootCommand() *cobra.Command {
	serve := newServeCommand()

	root := &cobra.Command{
		Use:          "minihttpd",
		Short:        "A minimal HTTP/1.1 static file server",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE:         serve.RunE,
	}
	root.Flags().AddFlagSet(serve.Flags())

	root.AddCommand(serve, newProbeCommand())
	return root
}
