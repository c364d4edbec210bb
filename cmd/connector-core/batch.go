package main

import (
	"context"

	"github.com/qri-io/ioes"
	"github.com/spf13/cobra"

	"github.com/clowder-framework/extractor-connector/connector"
	"github.com/clowder-framework/extractor-connector/transport/batch"
)

func newBatchCommand(streams ioes.IOStreams) *cobra.Command {
	return &cobra.Command{
		Use:   "batch [message-file ...]",
		Short: "process a sequence of serialized message bodies inline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			conn := connector.New(cfg, exampleCheck, exampleProcess)
			proc := conn.NewProcessor()

			t := batch.New(args, proc)
			return t.Start(context.Background())
		},
	}
}
