package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cspweaver",
	Short: "Content-Security-Policy assembly tooling",
	Long: `cspweaver assembles Content-Security-Policy header values from a layered
YAML configuration, with optional per-call overrides and nonce injection.`,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		setupLogging(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
}

func setupLogging(cmd *cobra.Command) {
	levelStr, _ := cmd.Flags().GetString("log-level") //nolint:errcheck // flag registered above
	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		level = zerolog.WarnLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &logger
}
