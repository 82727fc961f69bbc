package smc

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"abcsmc/internal/distance"
	"abcsmc/internal/epsilon"
	"abcsmc/internal/history"
	"abcsmc/internal/model"
	"abcsmc/internal/storage"
	"abcsmc/internal/transition"
)

// State tracks the engine lifecycle. A fresh engine attaches to a run with
// NewRun or Load, after which Run may be called; an exhausted run can be
// extended with further Run calls, a converged one cannot.
type State int

const (
	StateUninitialized State = iota
	StateCreated
	StateLoaded
	StateRunning
	StateConverged
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateCreated:
		return "created"
	case StateLoaded:
		return "loaded"
	case StateRunning:
		return "running"
	case StateConverged:
		return "converged"
	case StateExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Config struct {
	Store  storage.Store
	Models []ModelSpec
	// Distance compares simulated to observed summary statistics.
	// Defaults to the Euclidean norm.
	Distance distance.Function
	// Epsilon produces each population's threshold from the previous
	// population's accepted distances. Defaults to the median.
	Epsilon epsilon.Schedule
	// Kernel builds the perturbation kernel fitted per model per
	// population. Defaults to the component-wise normal kernel.
	Kernel         transition.Factory
	PopulationSize int
	// CalibrationDraws is the size of the prior-predictive sample seeding
	// the first epsilon. Defaults to PopulationSize.
	CalibrationDraws int
	// MaxDrawAttempts bounds the retries for one accepted particle.
	MaxDrawAttempts int
	Workers         int
	Seed            int64
	Observer        Observer
}

// Engine drives sequential populations of weighted particles toward the
// observed data under a shrinking acceptance threshold, persisting every
// completed population before starting the next.
type Engine struct {
	cfg      Config
	store    storage.Store
	state    State
	runID    string
	observed model.SummaryStatistics
	rng      *rand.Rand

	// Last completed population state; t is -1 before the first one.
	t             int
	eps           float64
	prev          []model.Particle
	prevProbs     []float64
	prevDistances []float64
	stopReason    model.StopReason
}

func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if len(cfg.Models) == 0 {
		return nil, fmt.Errorf("at least one model is required")
	}
	for i, spec := range cfg.Models {
		if spec.Name == "" {
			return nil, fmt.Errorf("model name is required at index %d", i)
		}
		if spec.Simulator == nil {
			return nil, fmt.Errorf("model %s: simulator is required", spec.Name)
		}
		if err := spec.Prior.Validate(); err != nil {
			return nil, fmt.Errorf("model %s: %w", spec.Name, err)
		}
	}
	if cfg.PopulationSize <= 0 {
		return nil, fmt.Errorf("population size must be > 0")
	}
	if cfg.Distance == nil {
		cfg.Distance = distance.PNorm{}
	}
	if cfg.Epsilon == nil {
		cfg.Epsilon = epsilon.Median{}
	}
	if cfg.Kernel == nil {
		cfg.Kernel = transition.NewNormal
	}
	if cfg.CalibrationDraws <= 0 {
		cfg.CalibrationDraws = cfg.PopulationSize
	}
	if cfg.MaxDrawAttempts <= 0 {
		cfg.MaxDrawAttempts = 500
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Observer == nil {
		cfg.Observer = NopObserver{}
	}

	return &Engine{
		cfg:   cfg,
		store: cfg.Store,
		state: StateUninitialized,
		rng:   rand.New(rand.NewSource(cfg.Seed)),
		t:     -1,
	}, nil
}

func (e *Engine) State() State { return e.state }

func (e *Engine) RunID() string { return e.runID }

// Epsilon is the threshold of the last completed population.
func (e *Engine) Epsilon() float64 { return e.eps }

// Populations is the number of completed populations held in memory,
// matching what the store has durably recorded.
func (e *Engine) Populations() int { return e.t + 1 }

// NewRun initializes a fresh run record with the observed data and returns
// its identifier.
func (e *Engine) NewRun(ctx context.Context, observed model.SummaryStatistics) (string, error) {
	if e.state != StateUninitialized {
		return "", fmt.Errorf("engine already attached to run %s", e.runID)
	}
	if len(observed) == 0 {
		return "", fmt.Errorf("observed data is required")
	}
	if err := e.store.Init(ctx); err != nil {
		return "", fmt.Errorf("init store: %w", err)
	}

	names := make([]string, len(e.cfg.Models))
	for i, spec := range e.cfg.Models {
		names[i] = spec.Name
	}
	run := model.Run{
		VersionedRecord: model.VersionedRecord{
			SchemaVersion: storage.CurrentSchemaVersion,
			CodecVersion:  storage.CurrentCodecVersion,
		},
		ID:             uuid.New().String(),
		CreatedAt:      time.Now().UTC(),
		Observed:       observed.Clone(),
		ModelNames:     names,
		PopulationSize: e.cfg.PopulationSize,
	}
	if err := e.store.CreateRun(ctx, run); err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}

	e.runID = run.ID
	e.observed = run.Observed
	e.t = -1
	e.state = StateCreated
	return run.ID, nil
}

// Load reattaches the engine to an existing run, restoring the last
// completed population's particles, weights, model probabilities, epsilon
// and distances from the store. Models, priors, distance and epsilon
// collaborators are not serializable and come from the engine config.
func (e *Engine) Load(ctx context.Context, runID string) error {
	if e.state != StateUninitialized {
		return fmt.Errorf("engine already attached to run %s", e.runID)
	}
	if err := e.store.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}

	run, ok, err := e.store.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("load run %s: %w", runID, err)
	}
	if !ok {
		return fmt.Errorf("load run %s: %w", runID, storage.ErrNotFound)
	}
	if len(run.ModelNames) != len(e.cfg.Models) {
		return fmt.Errorf("run %s has %d models, engine configured with %d",
			runID, len(run.ModelNames), len(e.cfg.Models))
	}

	maxT, err := e.store.MaxT(ctx, runID)
	if err != nil {
		return fmt.Errorf("load run %s: %w", runID, err)
	}

	e.runID = runID
	e.observed = run.Observed
	e.cfg.PopulationSize = run.PopulationSize
	e.t = maxT
	e.prev = nil
	e.prevProbs = nil
	e.prevDistances = nil
	if maxT >= 0 {
		population, ok, err := e.store.GetPopulation(ctx, runID, maxT)
		if err != nil {
			return fmt.Errorf("load population t=%d: %w", maxT, err)
		}
		if !ok {
			return fmt.Errorf("load population t=%d: %w", maxT, storage.ErrNotFound)
		}
		distances, err := e.store.Distances(ctx, runID, maxT)
		if err != nil {
			return fmt.Errorf("load distances t=%d: %w", maxT, err)
		}
		e.prev = population.Particles
		e.prevProbs = population.ModelProbabilities
		e.prevDistances = distances
		e.eps = population.Epsilon
	}
	e.stopReason = run.StopReason
	// A converged run is final; reattaching must not reopen it.
	if run.StopReason == model.StopReasonConverged {
		e.state = StateConverged
	} else {
		e.state = StateLoaded
	}
	return nil
}

// Run executes up to maxPopulations further populations, stopping early once
// the schedule's epsilon falls to minEpsilon or below. Every completed
// population is durably persisted before the next one starts.
func (e *Engine) Run(ctx context.Context, minEpsilon float64, maxPopulations int) (*history.History, error) {
	switch e.state {
	case StateCreated, StateLoaded, StateExhausted:
	case StateConverged:
		return nil, fmt.Errorf("run %s already converged at epsilon=%g", e.runID, e.eps)
	default:
		return nil, fmt.Errorf("engine is %s; call NewRun or Load first", e.state)
	}

	e.state = StateRunning
	e.stopReason = ""
	e.cfg.Observer.RunStarted(e.runID, e.t+1)

	h := history.New(e.store, e.runID)
	for completed := 0; completed < maxPopulations; completed++ {
		if err := ctx.Err(); err != nil {
			e.state = StateExhausted
			return nil, err
		}

		t := e.t + 1
		var (
			eps float64
			err error
		)
		if t == 0 {
			calibration, calErr := e.calibrate(ctx)
			if calErr != nil {
				e.state = StateExhausted
				return nil, calErr
			}
			eps, err = e.cfg.Epsilon.Next(calibration)
		} else {
			eps, err = e.cfg.Epsilon.Next(e.prevDistances)
		}
		if err != nil {
			e.state = StateExhausted
			return nil, fmt.Errorf("epsilon for t=%d: %w", t, err)
		}
		if eps <= minEpsilon {
			e.stopReason = model.StopReasonConverged
			break
		}

		proposal, err := e.newProposal(t, eps)
		if err != nil {
			e.state = StateExhausted
			return nil, err
		}
		particles, totalDraws, err := e.samplePopulation(ctx, proposal, e.cfg.PopulationSize)
		if err != nil {
			e.state = StateExhausted
			return nil, fmt.Errorf("population t=%d: %w", t, err)
		}

		probabilities := normalize(particles, len(e.cfg.Models))
		population := model.Population{
			VersionedRecord: model.VersionedRecord{
				SchemaVersion: storage.CurrentSchemaVersion,
				CodecVersion:  storage.CurrentCodecVersion,
			},
			RunID:              e.runID,
			T:                  t,
			Epsilon:            eps,
			Particles:          particles,
			ModelProbabilities: probabilities,
			TotalDraws:         totalDraws,
			CreatedAt:          time.Now().UTC(),
		}
		if err := e.store.AppendPopulation(ctx, population); err != nil {
			e.state = StateExhausted
			return nil, fmt.Errorf("persist population t=%d: %w", t, err)
		}

		e.t = t
		e.eps = eps
		e.prev = particles
		e.prevProbs = probabilities
		distances := make([]float64, len(particles))
		for i, particle := range particles {
			distances[i] = particle.Distance
		}
		e.prevDistances = distances
		e.cfg.Observer.PopulationDone(e.runID, t, eps, len(particles), totalDraws, probabilities)
	}

	if e.stopReason == "" {
		e.stopReason = model.StopReasonExhausted
	}
	if e.stopReason == model.StopReasonConverged {
		e.state = StateConverged
	} else {
		e.state = StateExhausted
	}
	if err := e.store.CompleteRun(ctx, e.runID, e.stopReason, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("complete run: %w", err)
	}
	e.cfg.Observer.RunFinished(e.runID, e.stopReason, e.eps, e.t+1)
	return h, nil
}

// StopReason reports why the last Run call stopped.
func (e *Engine) StopReason() model.StopReason { return e.stopReason }

// normalize turns raw importance weights into per-model weights summing to 1
// and derives the marginal model probabilities from the per-model weight
// mass.
func normalize(particles []model.Particle, nModels int) []float64 {
	modelTotals := make([]float64, nModels)
	total := 0.0
	for _, particle := range particles {
		modelTotals[particle.Model] += particle.Weight
		total += particle.Weight
	}

	probabilities := make([]float64, nModels)
	for m, modelTotal := range modelTotals {
		if total > 0 {
			probabilities[m] = modelTotal / total
		}
	}
	for i := range particles {
		if modelTotal := modelTotals[particles[i].Model]; modelTotal > 0 {
			particles[i].Weight /= modelTotal
		}
	}
	return probabilities
}
