package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"abcsmc/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.Run
	populations map[string][]model.Population
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Init is idempotent: attaching to an already-initialized store keeps its
// contents. Reset is the destructive variant.
func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}
	s.initialized = true
	s.runs = make(map[string]model.Run)
	s.populations = make(map[string][]model.Population)
	return nil
}

func (s *MemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.Run)
	s.populations = make(map[string][]model.Population)
	return nil
}

func (s *MemoryStore) CreateRun(_ context.Context, run model.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.ID] = cloneRun(run)
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return model.Run{}, false, nil
	}
	return cloneRun(run), true, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Run, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, cloneRun(run))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) CompleteRun(_ context.Context, id string, reason model.StopReason, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok {
		return ErrNotFound
	}
	run.StopReason = reason
	run.CompletedAt = &at
	s.runs[id] = run
	return nil
}

func (s *MemoryStore) AppendPopulation(_ context.Context, population model.Population) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[population.RunID]; !ok {
		return ErrNotFound
	}
	existing := s.populations[population.RunID]
	for _, p := range existing {
		if p.T == population.T {
			return ErrConflict
		}
	}
	s.populations[population.RunID] = append(existing, clonePopulation(population))
	return nil
}

func (s *MemoryStore) GetPopulation(_ context.Context, runID string, t int) (model.Population, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.populations[runID] {
		if p.T == t {
			return clonePopulation(p), true, nil
		}
	}
	return model.Population{}, false, nil
}

func (s *MemoryStore) MaxT(_ context.Context, runID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.runs[runID]; !ok {
		return -1, ErrNotFound
	}
	maxT := -1
	for _, p := range s.populations[runID] {
		if p.T > maxT {
			maxT = p.T
		}
	}
	return maxT, nil
}

func (s *MemoryStore) ModelProbabilities(_ context.Context, runID string) ([]model.ModelProbabilityRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.runs[runID]; !ok {
		return nil, ErrNotFound
	}
	rows := make([]model.ModelProbabilityRow, 0, len(s.populations[runID]))
	for _, p := range s.populations[runID] {
		rows = append(rows, model.ModelProbabilityRow{
			T:             p.T,
			Probabilities: append([]float64(nil), p.ModelProbabilities...),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].T < rows[j].T })
	return rows, nil
}

func (s *MemoryStore) Distances(_ context.Context, runID string, t int) ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.runs[runID]; !ok {
		return nil, ErrNotFound
	}
	for _, p := range s.populations[runID] {
		if p.T != t {
			continue
		}
		distances := make([]float64, 0, len(p.Particles))
		for _, particle := range p.Particles {
			distances = append(distances, particle.Distance)
		}
		return distances, nil
	}
	return nil, nil
}

func cloneRun(run model.Run) model.Run {
	out := run
	out.Observed = run.Observed.Clone()
	out.ModelNames = append([]string(nil), run.ModelNames...)
	if run.CompletedAt != nil {
		at := *run.CompletedAt
		out.CompletedAt = &at
	}
	return out
}

func clonePopulation(p model.Population) model.Population {
	out := p
	out.ModelProbabilities = append([]float64(nil), p.ModelProbabilities...)
	out.Particles = make([]model.Particle, len(p.Particles))
	for i, particle := range p.Particles {
		cp := particle
		cp.Parameters = particle.Parameters.Clone()
		cp.SumStats = particle.SumStats.Clone()
		out.Particles[i] = cp
	}
	return out
}
