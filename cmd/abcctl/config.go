package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PriorConfig declares one prior marginal in the run config file.
type PriorConfig struct {
	Kind string  `yaml:"kind"`
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
	Mean float64 `yaml:"mean"`
	Std  float64 `yaml:"std"`
}

// ModelConfig declares one competing Gaussian location model.
type ModelConfig struct {
	Name  string                 `yaml:"name"`
	Noise float64                `yaml:"noise"`
	Seed  int64                  `yaml:"seed"`
	Prior map[string]PriorConfig `yaml:"prior"`
}

// RunConfig is the YAML run definition consumed by run and resume.
type RunConfig struct {
	PopulationSize   int                `yaml:"population_size"`
	CalibrationDraws int                `yaml:"calibration_draws"`
	MaxDrawAttempts  int                `yaml:"max_draw_attempts"`
	Workers          int                `yaml:"workers"`
	Seed             int64              `yaml:"seed"`
	MinEpsilon       float64            `yaml:"min_epsilon"`
	MaxPopulations   int                `yaml:"max_populations"`
	EpsilonQuantile  float64            `yaml:"epsilon_quantile"`
	DistanceP        float64            `yaml:"distance_p"`
	Observed         map[string]float64 `yaml:"observed"`
	Models           []ModelConfig      `yaml:"models"`
}

func loadRunConfig(path string) (RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunConfig{}, fmt.Errorf("read config: %w", err)
	}

	var cfg RunConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return RunConfig{}, fmt.Errorf("parse config: %w", err)
	}

	if len(cfg.Models) == 0 {
		return RunConfig{}, fmt.Errorf("config requires at least one model")
	}
	for i, m := range cfg.Models {
		if m.Name == "" {
			return RunConfig{}, fmt.Errorf("model name is required at index %d", i)
		}
		if m.Noise <= 0 {
			return RunConfig{}, fmt.Errorf("model %s: noise must be > 0", m.Name)
		}
		if len(m.Prior) == 0 {
			return RunConfig{}, fmt.Errorf("model %s: prior is required", m.Name)
		}
	}
	if cfg.PopulationSize <= 0 {
		cfg.PopulationSize = 100
	}
	if cfg.MaxPopulations <= 0 {
		cfg.MaxPopulations = 5
	}
	return cfg, nil
}
