package main

import (
	"context"

	"github.com/spf13/viper"

	"github.com/clowder-framework/extractor-connector/config"
	"github.com/clowder-framework/extractor-connector/extractor"
	"github.com/clowder-framework/extractor-connector/resource"
)

// loadConfig layers viper (flags/env/config-file, already read by
// PersistentPreRun) onto config.DefaultConfig. It does not validate the
// result; the run command calls cfg.Validate itself.
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()

	if name := viper.GetString("extractor.name"); name != "" {
		cfg.Extractor.Name = name
	}
	if url := viper.GetString("host.url"); url != "" {
		cfg.Host.URL = url
	}
	if key := viper.GetString("host.secretKey"); key != "" {
		cfg.Host.SecretKey = key
	}
	cfg.Host.SSLVerify = viper.GetBool("host.sslVerify")
	if uri := viper.GetString("broker.uri"); uri != "" {
		cfg.Broker.URI = uri
	}
	if ex := viper.GetString("broker.exchange"); ex != "" {
		cfg.Broker.Exchange = ex
	}

	return cfg, nil
}

// exampleCheck and exampleProcess are the extractor hooks this reference
// binary ships with: connector-core is a framework, not an extractor, so a
// real deployment replaces these with its own check_message/process_message
// logic. Here they just report what they saw.
func exampleCheck(ctx context.Context, host, secretKey string, res *resource.Resource, body resource.MessageBody) (extractor.CheckResult, error) {
	return extractor.CheckDownload, nil
}

func exampleProcess(ctx context.Context, host, secretKey string, res *resource.Resource, body resource.MessageBody) error {
	log.Infow("processing resource", "kind", res.Kind, "id", res.ID, "local_paths", res.LocalPaths)
	return nil
}
