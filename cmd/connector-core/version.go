package main

import (
	"fmt"

	"github.com/qri-io/ioes"
	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func newVersionCommand(streams ioes.IOStreams) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the connector-core version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(streams.Out, Version)
			return nil
		},
	}
}
