package main

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"
)

var resumeConfigPath string

var resumeCmd = &cobra.Command{
	Use:   "resume [run-id]",
	Short: "Resume a stored run and extend it with more populations",
	Long: `Reattaches to an existing run and continues from its last persisted
population. Models, priors and distance settings are not stored and come from
the same config used to start the run.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().StringVar(&resumeConfigPath, "config", "", "Run config YAML path (required)")
	resumeCmd.MarkFlagRequired("config")
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig(resumeConfigPath)
	if err != nil {
		return err
	}

	client, engine, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx := cmd.Context()
	runID := args[0]
	if err := engine.Load(ctx, runID); err != nil {
		return err
	}
	slog.Info("Resumed run", "run_id", runID)

	start := time.Now()
	summary, err := engine.Run(ctx, cfg.MinEpsilon, cfg.MaxPopulations)
	if err != nil {
		return err
	}

	printSummary(summary, time.Since(start))
	return nil
}
