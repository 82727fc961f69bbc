package smc

import (
	"context"

	"abcsmc/internal/model"
	"abcsmc/internal/prior"
)

// Simulator maps a parameter sample to simulated summary statistics. It is
// invoked concurrently by the population sampler and must not mutate shared
// state. A returned error marks the draw as failed; the sampler discards and
// retries it within the attempt budget.
type Simulator interface {
	Simulate(ctx context.Context, params model.ParameterSample) (model.SummaryStatistics, error)
}

// SimulatorFunc adapts a plain function to the Simulator interface.
type SimulatorFunc func(ctx context.Context, params model.ParameterSample) (model.SummaryStatistics, error)

func (f SimulatorFunc) Simulate(ctx context.Context, params model.ParameterSample) (model.SummaryStatistics, error) {
	return f(ctx, params)
}

// ModelSpec is one competing model: a prior over its parameters and the
// simulator producing summary statistics from them.
type ModelSpec struct {
	Name      string
	Prior     prior.Prior
	Simulator Simulator
}
