package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/qri-io/ioes"
	"github.com/spf13/cobra"

	"github.com/clowder-framework/extractor-connector/connector"
	"github.com/clowder-framework/extractor-connector/transport/broker"
)

// shutdownGrace bounds how long Stop waits for the in-flight handler to
// drain before closing the channel/connection regardless.
const shutdownGrace = 10 * time.Second

func newRunCommand(streams ioes.IOStreams) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "start the broker transport and process messages until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			conn := connector.New(cfg, exampleCheck, exampleProcess)
			proc := conn.NewProcessor()

			brokerCfg := broker.Config{
				URI:           cfg.Broker.URI,
				ExtractorName: cfg.Extractor.Name,
				Exchange:      cfg.Broker.Exchange,
				BindingKeys:   cfg.Broker.BindingKeys,
			}
			t := broker.New(brokerCfg, proc)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			log.Infow("starting broker transport", "uri", brokerCfg.URI, "queue", cfg.Extractor.Name)
			err = t.Start(ctx)
			stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer stopCancel()
			_ = t.Stop(stopCtx)
			return err
		},
	}
}
