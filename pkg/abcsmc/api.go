// Package abcsmc is the public facade over the ABC-SMC engine: declarative
// model and prior definitions, run execution, resume, and history queries.
package abcsmc

import (
	"context"
	"fmt"

	"abcsmc/internal/distance"
	"abcsmc/internal/epsilon"
	"abcsmc/internal/history"
	"abcsmc/internal/model"
	"abcsmc/internal/prior"
	"abcsmc/internal/server"
	"abcsmc/internal/smc"
	"abcsmc/internal/storage"

	"github.com/gin-gonic/gin"
)

const defaultDBPath = "abcsmc.db"

type Options struct {
	StoreKind string
	DBPath    string
}

type Client struct {
	store storage.Store
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}
	return &Client{store: store}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

// Simulator is the user-supplied model: parameters in, summary statistics
// out. It may be called concurrently.
type Simulator func(ctx context.Context, params map[string]float64) (map[string]float64, error)

// Distribution declares a one-dimensional prior marginal.
type Distribution struct {
	Kind string // "uniform" or "normal"
	Low  float64
	High float64
	Mean float64
	Std  float64
}

// ModelDef is one competing model: named prior marginals plus a simulator.
type ModelDef struct {
	Name     string
	Prior    map[string]Distribution
	Simulate Simulator
}

// EngineRequest configures a run engine. Zero values fall back to the
// engine defaults (Euclidean distance, median epsilon, normal kernel).
type EngineRequest struct {
	Models           []ModelDef
	PopulationSize   int
	CalibrationDraws int
	MaxDrawAttempts  int
	Workers          int
	Seed             int64
	// DistanceP selects the p-norm order; 0 means Euclidean.
	DistanceP float64
	// EpsilonQuantile selects the acceptance quantile; 0 means median.
	EpsilonQuantile float64
	Observer        smc.Observer
}

// Engine wraps the run engine bound to this client's store.
type Engine struct {
	inner *smc.Engine
}

func (c *Client) NewEngine(req EngineRequest) (*Engine, error) {
	models := make([]smc.ModelSpec, 0, len(req.Models))
	for _, def := range req.Models {
		p, err := buildPrior(def)
		if err != nil {
			return nil, err
		}
		simulate := def.Simulate
		if simulate == nil {
			return nil, fmt.Errorf("model %s: simulator is required", def.Name)
		}
		models = append(models, smc.ModelSpec{
			Name:  def.Name,
			Prior: p,
			Simulator: smc.SimulatorFunc(func(ctx context.Context, params model.ParameterSample) (model.SummaryStatistics, error) {
				stats, err := simulate(ctx, params)
				if err != nil {
					return nil, err
				}
				return stats, nil
			}),
		})
	}

	cfg := smc.Config{
		Store:            c.store,
		Models:           models,
		PopulationSize:   req.PopulationSize,
		CalibrationDraws: req.CalibrationDraws,
		MaxDrawAttempts:  req.MaxDrawAttempts,
		Workers:          req.Workers,
		Seed:             req.Seed,
		Observer:         req.Observer,
	}
	if req.DistanceP > 0 {
		cfg.Distance = distance.PNorm{P: req.DistanceP}
	}
	if req.EpsilonQuantile > 0 {
		cfg.Epsilon = epsilon.Quantile{Q: req.EpsilonQuantile}
	}

	inner, err := smc.New(cfg)
	if err != nil {
		return nil, err
	}
	return &Engine{inner: inner}, nil
}

func buildPrior(def ModelDef) (prior.Prior, error) {
	p := make(prior.Prior, len(def.Prior))
	for name, dist := range def.Prior {
		switch dist.Kind {
		case "uniform":
			p[name] = prior.Uniform{Low: dist.Low, High: dist.High}
		case "normal":
			p[name] = prior.Normal{Mean: dist.Mean, Std: dist.Std}
		default:
			return nil, fmt.Errorf("model %s parameter %s: unknown prior kind %q", def.Name, name, dist.Kind)
		}
	}
	return p, nil
}

func (e *Engine) NewRun(ctx context.Context, observed map[string]float64) (string, error) {
	return e.inner.NewRun(ctx, observed)
}

func (e *Engine) Load(ctx context.Context, runID string) error {
	return e.inner.Load(ctx, runID)
}

// RunSummary describes the state of a run after a Run call.
type RunSummary struct {
	RunID              string
	Populations        int
	FinalEpsilon       float64
	StopReason         string
	ModelProbabilities [][]float64
}

func (e *Engine) Run(ctx context.Context, minEpsilon float64, maxPopulations int) (RunSummary, error) {
	h, err := e.inner.Run(ctx, minEpsilon, maxPopulations)
	if err != nil {
		return RunSummary{}, err
	}
	return summarize(ctx, h, e.inner)
}

func summarize(ctx context.Context, h *history.History, engine *smc.Engine) (RunSummary, error) {
	rows, err := h.ModelProbabilities(ctx)
	if err != nil {
		return RunSummary{}, err
	}
	probabilities := make([][]float64, 0, len(rows))
	for _, row := range rows {
		probabilities = append(probabilities, row.Probabilities)
	}
	n, err := h.NPopulations(ctx)
	if err != nil {
		return RunSummary{}, err
	}
	return RunSummary{
		RunID:              h.RunID(),
		Populations:        n,
		FinalEpsilon:       engine.Epsilon(),
		StopReason:         string(engine.StopReason()),
		ModelProbabilities: probabilities,
	}, nil
}

// Runs lists every run recorded in the storage target.
func (c *Client) Runs(ctx context.Context) ([]model.Run, error) {
	return c.store.ListRuns(ctx)
}

// ModelProbabilities returns the per-generation model distribution of a run.
func (c *Client) ModelProbabilities(ctx context.Context, runID string) ([]model.ModelProbabilityRow, error) {
	return c.store.ModelProbabilities(ctx, runID)
}

// Distances returns population t's accepted distances.
func (c *Client) Distances(ctx context.Context, runID string, t int) ([]float64, error) {
	return c.store.Distances(ctx, runID, t)
}

// History returns a query handle for one run.
func (c *Client) History(runID string) *history.History {
	return history.New(c.store, runID)
}

// Router builds the HTTP inspection API over this client's store.
func (c *Client) Router() *gin.Engine {
	return server.NewRouter(c.store)
}
