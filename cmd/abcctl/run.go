package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"abcsmc/internal/smc"
	"abcsmc/internal/toy"
	"abcsmc/pkg/abcsmc"

	"github.com/spf13/cobra"
)

var runConfigPath string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a new ABC-SMC run from a YAML config",
	Long: `Creates a fresh run from the configured models and observed data, then
executes populations until the epsilon target or the population budget is hit.`,
	RunE: runNew,
}

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "Run config YAML path (required)")
	runCmd.MarkFlagRequired("config")
	rootCmd.AddCommand(runCmd)
}

func runNew(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig(runConfigPath)
	if err != nil {
		return err
	}
	if len(cfg.Observed) == 0 {
		return fmt.Errorf("config requires observed data")
	}

	client, engine, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx := cmd.Context()
	runID, err := engine.NewRun(ctx, cfg.Observed)
	if err != nil {
		return err
	}
	slog.Info("Created run", "run_id", runID, "models", len(cfg.Models), "population", cfg.PopulationSize)

	start := time.Now()
	summary, err := engine.Run(ctx, cfg.MinEpsilon, cfg.MaxPopulations)
	if err != nil {
		return err
	}

	printSummary(summary, time.Since(start))
	return nil
}

func buildEngine(cfg RunConfig) (*abcsmc.Client, *abcsmc.Engine, error) {
	client, err := abcsmc.New(abcsmc.Options{StoreKind: storeKind, DBPath: dbPath})
	if err != nil {
		return nil, nil, err
	}

	models := make([]abcsmc.ModelDef, 0, len(cfg.Models))
	for i, mc := range cfg.Models {
		seed := mc.Seed
		if seed == 0 {
			seed = cfg.Seed + int64(i) + 1
		}
		gaussian := toy.NewGaussian(mc.Noise, seed)

		priors := make(map[string]abcsmc.Distribution, len(mc.Prior))
		for name, pc := range mc.Prior {
			priors[name] = abcsmc.Distribution{
				Kind: pc.Kind,
				Low:  pc.Low,
				High: pc.High,
				Mean: pc.Mean,
				Std:  pc.Std,
			}
		}
		models = append(models, abcsmc.ModelDef{
			Name:  mc.Name,
			Prior: priors,
			Simulate: func(ctx context.Context, params map[string]float64) (map[string]float64, error) {
				stats, err := gaussian.Simulate(ctx, params)
				if err != nil {
					return nil, err
				}
				return stats, nil
			},
		})
	}

	engine, err := client.NewEngine(abcsmc.EngineRequest{
		Models:           models,
		PopulationSize:   cfg.PopulationSize,
		CalibrationDraws: cfg.CalibrationDraws,
		MaxDrawAttempts:  cfg.MaxDrawAttempts,
		Workers:          cfg.Workers,
		Seed:             cfg.Seed,
		DistanceP:        cfg.DistanceP,
		EpsilonQuantile:  cfg.EpsilonQuantile,
		Observer:         smc.LogObserver{},
	})
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return client, engine, nil
}

func printSummary(summary abcsmc.RunSummary, elapsed time.Duration) {
	fmt.Printf("run %s: %d populations, final epsilon %.6g, stopped %s (%.2fs)\n",
		summary.RunID, summary.Populations, summary.FinalEpsilon,
		summary.StopReason, elapsed.Seconds())
	for t, probabilities := range summary.ModelProbabilities {
		fmt.Printf("  t=%d model probabilities: %v\n", t, probabilities)
	}
}
