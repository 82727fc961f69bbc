package main

import (
	"log/slog"
	"os"

	"abcsmc/internal/storage"

	"github.com/spf13/cobra"
)

var (
	logLevel  string
	storeKind string
	dbPath    string
)

var rootCmd = &cobra.Command{
	Use:   "abcctl",
	Short: "ABC-SMC runs over competing simulator models",
	Long: `abcctl drives Approximate Bayesian Computation via Sequential Monte Carlo:
weighted particle populations shrink an acceptance threshold toward observed
data, with every population persisted so runs can be inspected and resumed.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		var level slog.Level
		switch logLevel {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}

		handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
		slog.SetDefault(slog.New(handler))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&storeKind, "store", storage.DefaultStoreKind(), "Store backend: memory|sqlite")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db-path", "abcsmc.db", "SQLite database path")
}
