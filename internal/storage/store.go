package storage

import (
	"context"
	"errors"
	"time"

	"abcsmc/internal/model"
)

var (
	// ErrNotFound is returned when a run id is unknown to the store.
	ErrNotFound = errors.New("run not found")
	// ErrConflict is returned when a population index is appended twice.
	ErrConflict = errors.New("population already exists")
)

// Store defines persistence operations for runs and their populations.
// AppendPopulation is atomic: either the population, all its particles and
// its model-probability row become durable together, or none of them do.
type Store interface {
	Init(ctx context.Context) error
	CreateRun(ctx context.Context, run model.Run) error
	GetRun(ctx context.Context, id string) (model.Run, bool, error)
	ListRuns(ctx context.Context) ([]model.Run, error)
	CompleteRun(ctx context.Context, id string, reason model.StopReason, at time.Time) error
	AppendPopulation(ctx context.Context, population model.Population) error
	GetPopulation(ctx context.Context, runID string, t int) (model.Population, bool, error)
	MaxT(ctx context.Context, runID string) (int, error)
	ModelProbabilities(ctx context.Context, runID string) ([]model.ModelProbabilityRow, error)
	Distances(ctx context.Context, runID string, t int) ([]float64, error)
}

// Resetter is implemented by stores that can drop all persisted state.
type Resetter interface {
	Reset(ctx context.Context) error
}
