package cmd

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "weektrader",
	Short: "Backtest a weekly signal-gated crypto strategy",
	Long: `Weektrader replays historical daily bars for a universe of crypto
assets, consults a per-asset predictive model, buys on the entry weekday
when the signal clears the threshold, and force-closes positions on the
exit weekday.

It consumes the merged feature CSVs and exported model descriptors
produced by the upstream data pipeline, and writes a per-run trade log
plus an optional SQLite run history.`,

	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the CLI's console logger at the requested level.
func newLogger(level string) zerolog.Logger {
	lvl := zerolog.InfoLevel
	switch strings.ToLower(level) {
	case "debug":
		lvl = zerolog.DebugLevel
	case "warn", "warning":
		lvl = zerolog.WarnLevel
	case "error":
		lvl = zerolog.ErrorLevel
	}

	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}
