package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/qri-io/ioes"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	flagConfig = "config"
	flagNoColor = "no-color"
)

func newRootCommand(streams ioes.IOStreams) *cobra.Command {
	var cfgFile string
	var noColor bool

	root := &cobra.Command{
		Use:   "connector-core",
		Short: "run an extractor connector",
		Long: `connector-core bridges a data-management host and user-supplied
extraction logic over a broker, a batch of message files, or a single
local invocation.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			color.NoColor = noColor
			viper.SetDefault("host.sslVerify", true)
			if cfgFile == "" {
				return
			}
			if _, err := os.Stat(cfgFile); err != nil {
				if cmd.Flags().Changed(flagConfig) {
					errExit(streams.ErrOut, err)
				}
				return
			}
			viper.SetConfigFile(cfgFile)
			if err := viper.ReadInConfig(); err != nil {
				errExit(streams.ErrOut, err)
			}
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, flagConfig, homeConfigPath(), "path to connector config YAML")
	root.PersistentFlags().BoolVarP(&noColor, flagNoColor, "c", false, "disable colorized output")
	viper.SetEnvPrefix("CONNECTOR")
	viper.AutomaticEnv()

	root.AddCommand(
		newRunCommand(streams),
		newBatchCommand(streams),
		newLocalCommand(streams),
		newVersionCommand(streams),
	)
	return root
}

func homeConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.connector-core.yaml"
}
