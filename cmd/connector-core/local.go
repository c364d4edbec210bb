package main

import (
	"context"

	"github.com/qri-io/ioes"
	"github.com/spf13/cobra"

	"github.com/clowder-framework/extractor-connector/connector"
	"github.com/clowder-framework/extractor-connector/transport/local"
)

func newLocalCommand(streams ioes.IOStreams) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "local [input-file]",
		Short: "process a single local file without a host or broker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			conn := connector.New(cfg, exampleCheck, exampleProcess)
			proc := conn.NewProcessor()

			t := local.New(args[0], outputPath, proc)
			return t.Start(context.Background())
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "path to write intercepted metadata JSON (default: <input>.json)")
	return cmd
}
