package history

import (
	"context"
	"fmt"

	"abcsmc/internal/model"
	"abcsmc/internal/storage"
)

// History is a read handle over one run's persisted populations. It is the
// durable source of truth: after a resume, everything the engine knows came
// through here.
type History struct {
	store storage.Store
	runID string
}

func New(store storage.Store, runID string) *History {
	return &History{store: store, runID: runID}
}

func (h *History) RunID() string {
	return h.runID
}

func (h *History) Run(ctx context.Context) (model.Run, error) {
	run, ok, err := h.store.GetRun(ctx, h.runID)
	if err != nil {
		return model.Run{}, err
	}
	if !ok {
		return model.Run{}, storage.ErrNotFound
	}
	return run, nil
}

// MaxT is the index of the last completed population, -1 when none exists.
func (h *History) MaxT(ctx context.Context) (int, error) {
	return h.store.MaxT(ctx, h.runID)
}

// NPopulations is the number of completed populations.
func (h *History) NPopulations(ctx context.Context) (int, error) {
	maxT, err := h.store.MaxT(ctx, h.runID)
	if err != nil {
		return 0, err
	}
	return maxT + 1, nil
}

// ModelProbabilities returns the per-generation marginal model distribution,
// ordered by t.
func (h *History) ModelProbabilities(ctx context.Context) ([]model.ModelProbabilityRow, error) {
	return h.store.ModelProbabilities(ctx, h.runID)
}

// Distances returns the accepted distances of population t, used to seed the
// next epsilon on resume.
func (h *History) Distances(ctx context.Context, t int) ([]float64, error) {
	return h.store.Distances(ctx, h.runID, t)
}

func (h *History) Population(ctx context.Context, t int) (model.Population, error) {
	population, ok, err := h.store.GetPopulation(ctx, h.runID, t)
	if err != nil {
		return model.Population{}, err
	}
	if !ok {
		return model.Population{}, fmt.Errorf("population t=%d: %w", t, storage.ErrNotFound)
	}
	return population, nil
}

// WeightedParameters returns parameter samples and normalized weights of
// model m's particles in population t. Weights sum to 1 unless the model
// died out in that generation.
func (h *History) WeightedParameters(ctx context.Context, t, m int) ([]model.ParameterSample, []float64, error) {
	population, err := h.Population(ctx, t)
	if err != nil {
		return nil, nil, err
	}
	var (
		samples []model.ParameterSample
		weights []float64
	)
	for _, particle := range population.Particles {
		if particle.Model != m {
			continue
		}
		samples = append(samples, particle.Parameters.Clone())
		weights = append(weights, particle.Weight)
	}
	return samples, weights, nil
}

// TotalSimulations counts every simulator call across all populations,
// including rejected draws.
func (h *History) TotalSimulations(ctx context.Context) (int, error) {
	maxT, err := h.store.MaxT(ctx, h.runID)
	if err != nil {
		return 0, err
	}
	total := 0
	for t := 0; t <= maxT; t++ {
		population, err := h.Population(ctx, t)
		if err != nil {
			return 0, err
		}
		total += population.TotalDraws
	}
	return total, nil
}
