// Package cmd implements the transcodectl CLI.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/livepeer/transcode-engine/config"
)

// engineViper is transcodectl's own viper instance, following the
// jmylchreest-tvarr daemon's pattern of a command-package-scoped instance
// rather than viper's package-level global.
var engineViper = viper.New()

var cli = &config.Cli{}

var rootCmd = &cobra.Command{
	Use:   "transcodectl",
	Short: "Run and inspect the mobile transcode engine",
	Long: `transcodectl hosts a SessionScheduler driving one
VideoTrackPipeline at a time, plus an operator HTTP surface for inspecting
and steering it.`,
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cli.ListenAddr, "listen-addr", config.DefaultListenAddr, "HTTP listen address for the operator surface")
	rootCmd.PersistentFlags().StringVar(&cli.MetricsAddr, "metrics-addr", "", "separate Prometheus listen address (empty: serve /metrics on listen-addr)")
	rootCmd.PersistentFlags().StringVar(&cli.LogLevel, "log-level", "info", "log level name (info, debug, trace); accepted but not applied to glog's -v level")
}

func initConfig() {
	engineViper.SetEnvPrefix("TRANSCODECTL")
	engineViper.AutomaticEnv()
}
