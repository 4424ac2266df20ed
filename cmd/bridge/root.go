package main

import (
	"fmt"

	"termbridge/config"
	"termbridge/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var driverOverride string

var rootCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Bridge a single-threaded trading terminal to HTTP and WebSocket clients",
	Long: `bridge fronts one non-reentrant market-data terminal and serves it to many
concurrent clients: live ticks over /ws/ticks, quotes, symbol search and
read-only trade state over REST.

Configuration comes from config.yaml, a .env file and the environment
(e.g. BRIDGE_PORT, TERMINAL_DRIVER, MT5_POLL_INTERVAL_MS).`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&driverOverride, "driver", "",
		fmt.Sprintf("terminal driver override (%s, %s, %s)", config.DriverSim, config.DriverBybit, config.DriverNone))
}

// setup loads the configuration and builds the logger every command starts with.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if driverOverride != "" {
		cfg.Terminal.Driver = driverOverride
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}

	log, err := logger.New(cfg.App.Name, cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, log, nil
}
