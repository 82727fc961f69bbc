package smc

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"abcsmc/internal/model"
	"abcsmc/internal/prior"
	"abcsmc/internal/transition"
)

func TestPickModelUniformAtFirstPopulation(t *testing.T) {
	p := &proposal{t: 0}
	rng := rand.New(rand.NewSource(1))

	counts := make([]int, 3)
	for i := 0; i < 3000; i++ {
		counts[p.pickModel(rng, 3)]++
	}
	for m, c := range counts {
		if c < 800 || c > 1200 {
			t.Fatalf("model %d picked %d times out of 3000, expected roughly uniform", m, c)
		}
	}
}

func TestPickModelSkipsExtinctModel(t *testing.T) {
	alive := model.Particle{Model: 1, Weight: 1}
	p := &proposal{
		t:           1,
		prevByModel: [][]model.Particle{nil, {alive}},
		cumModel:    []float64{0.5, 1},
	}
	rng := rand.New(rand.NewSource(2))

	for i := 0; i < 1000; i++ {
		if m := p.pickModel(rng, 2); m != 1 {
			t.Fatalf("picked extinct model %d", m)
		}
	}
}

func TestResampleFollowsWeights(t *testing.T) {
	light := model.Particle{Parameters: model.ParameterSample{"x": 0}}
	heavy := model.Particle{Parameters: model.ParameterSample{"x": 1}}
	p := &proposal{
		t:           1,
		prevByModel: [][]model.Particle{{light, heavy}},
		cumWeights:  [][]float64{{0.1, 1}},
	}
	rng := rand.New(rand.NewSource(3))

	heavyCount := 0
	for i := 0; i < 1000; i++ {
		if p.resample(rng, 0).Parameters["x"] == 1 {
			heavyCount++
		}
	}
	if heavyCount < 800 {
		t.Fatalf("heavy particle resampled %d/1000 times, expected about 900", heavyCount)
	}
}

func TestNewProposalTreatsZeroWeightModelAsExtinct(t *testing.T) {
	engine, err := New(Config{
		Store: newTestStore(t),
		Models: []ModelSpec{
			identityModel("a", prior.Prior{"mean": prior.Uniform{Low: 0, High: 1}}),
			identityModel("b", prior.Prior{"mean": prior.Uniform{Low: 0, High: 1}}),
		},
		PopulationSize: 10,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	engine.prev = []model.Particle{
		{Model: 0, Parameters: model.ParameterSample{"mean": 0.1}, Weight: 0},
		{Model: 0, Parameters: model.ParameterSample{"mean": 0.2}, Weight: 0},
		{Model: 1, Parameters: model.ParameterSample{"mean": 0.5}, Weight: 0.5},
		{Model: 1, Parameters: model.ParameterSample{"mean": 0.7}, Weight: 0.5},
	}
	engine.prevProbs = []float64{0, 1}

	p, err := engine.newProposal(1, 0.5)
	if err != nil {
		t.Fatalf("new proposal: %v", err)
	}
	if len(p.prevByModel[0]) != 0 {
		t.Fatalf("zero-weight model should be treated as extinct, got %d particles", len(p.prevByModel[0]))
	}
	if p.kernels[0] != nil {
		t.Fatalf("no kernel should be fitted for a zero-weight model")
	}
	if p.kernels[1] == nil {
		t.Fatalf("surviving model must get a fitted kernel")
	}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		if m := p.pickModel(rng, 2); m != 1 {
			t.Fatalf("picked zero-weight model %d", m)
		}
	}
}

func TestNewProposalFailsWhenNoModelSurvives(t *testing.T) {
	engine, err := New(Config{
		Store:          newTestStore(t),
		Models:         []ModelSpec{identityModel("a", prior.Prior{"mean": prior.Uniform{Low: 0, High: 1}})},
		PopulationSize: 10,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	engine.prev = []model.Particle{
		{Model: 0, Parameters: model.ParameterSample{"mean": 0.1}, Weight: 0},
	}
	engine.prevProbs = []float64{0}

	if _, err := engine.newProposal(1, 0.5); err == nil {
		t.Fatalf("expected error when every model lost its weight")
	}
}

func TestImportanceWeightMatchesKernelMixture(t *testing.T) {
	engine, err := New(Config{
		Store:          newTestStore(t),
		Models:         []ModelSpec{identityModel("m", prior.Prior{"mean": prior.Uniform{Low: 0, High: 1}})},
		PopulationSize: 10,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	prev := []model.Particle{
		{Model: 0, Parameters: model.ParameterSample{"mean": 0.2}, Weight: 0.3},
		{Model: 0, Parameters: model.ParameterSample{"mean": 0.8}, Weight: 0.7},
	}
	kernel := transition.NewNormal()
	if err := kernel.Fit(
		[]model.ParameterSample{prev[0].Parameters, prev[1].Parameters},
		[]float64{0.3, 0.7},
	); err != nil {
		t.Fatalf("fit: %v", err)
	}
	p := &proposal{
		t:           1,
		prevByModel: [][]model.Particle{prev},
		kernels:     []transition.Kernel{kernel},
	}

	params := model.ParameterSample{"mean": 0.5}
	mixture := 0.3*kernel.Density(prev[0].Parameters, params) +
		0.7*kernel.Density(prev[1].Parameters, params)
	want := 1.0 / mixture

	if got := engine.importanceWeight(p, 0, params); math.Abs(got-want) > 1e-12 {
		t.Fatalf("importance weight = %v, want %v", got, want)
	}
}

func TestDrawOneRejectsOutsidePriorSupport(t *testing.T) {
	engine, err := New(Config{
		Store:          newTestStore(t),
		Models:         []ModelSpec{identityModel("m", prior.Prior{"mean": prior.Uniform{Low: 0, High: 1}})},
		PopulationSize: 10,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	engine.observed = model.SummaryStatistics{"y": 0.5}

	// A kernel that always jumps far outside the uniform support.
	escape := &shiftKernel{shift: 100}
	base := model.Particle{Model: 0, Parameters: model.ParameterSample{"mean": 0.5}, Weight: 1}
	p := &proposal{
		t:           1,
		epsilon:     10,
		prevByModel: [][]model.Particle{{base}},
		cumWeights:  [][]float64{{1}},
		kernels:     []transition.Kernel{escape},
		cumModel:    []float64{1},
	}

	rng := rand.New(rand.NewSource(4))
	for i := 0; i < 50; i++ {
		if _, ok, err := engine.drawOne(context.Background(), rng, p); err != nil {
			t.Fatalf("draw: %v", err)
		} else if ok {
			t.Fatalf("accepted a particle with zero prior density")
		}
	}
}

// shiftKernel deterministically moves every parameter by a fixed offset.
type shiftKernel struct {
	shift float64
}

func (k *shiftKernel) Fit([]model.ParameterSample, []float64) error { return nil }

func (k *shiftKernel) Perturb(_ *rand.Rand, base model.ParameterSample) model.ParameterSample {
	out := make(model.ParameterSample, len(base))
	for name, v := range base {
		out[name] = v + k.shift
	}
	return out
}

func (k *shiftKernel) Density(model.ParameterSample, model.ParameterSample) float64 { return 1 }

func TestCalibrateProducesRequestedDraws(t *testing.T) {
	engine, err := New(Config{
		Store:            newTestStore(t),
		Models:           []ModelSpec{identityModel("m", prior.Prior{"mean": prior.Uniform{Low: 0, High: 1}})},
		PopulationSize:   10,
		CalibrationDraws: 7,
		Seed:             5,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	engine.observed = model.SummaryStatistics{"y": 0.5}

	distances, err := engine.calibrate(context.Background())
	if err != nil {
		t.Fatalf("calibrate: %v", err)
	}
	if len(distances) != 7 {
		t.Fatalf("expected 7 calibration distances, got %d", len(distances))
	}
	for i, d := range distances {
		if d < 0 || math.IsInf(d, 0) || math.IsNaN(d) {
			t.Fatalf("calibration distance %d invalid: %v", i, d)
		}
	}
}

func TestSimulatorErrorCountsAsFailedAttempt(t *testing.T) {
	calls := 0
	flaky := ModelSpec{
		Name:  "flaky",
		Prior: prior.Prior{"mean": prior.Uniform{Low: 0, High: 1}},
		Simulator: SimulatorFunc(func(_ context.Context, params model.ParameterSample) (model.SummaryStatistics, error) {
			calls++
			if calls%2 == 1 {
				return nil, context.DeadlineExceeded
			}
			return model.SummaryStatistics{"y": params["mean"]}, nil
		}),
	}
	engine, err := New(Config{
		Store:          newTestStore(t),
		Models:         []ModelSpec{flaky},
		PopulationSize: 5,
		Seed:           6,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	engine.observed = model.SummaryStatistics{"y": 0.5}

	particles, totalDraws, err := engine.samplePopulation(context.Background(),
		&proposal{t: 0, epsilon: math.Inf(1)}, 5)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if len(particles) != 5 {
		t.Fatalf("expected 5 particles, got %d", len(particles))
	}
	if totalDraws != 10 {
		t.Fatalf("total draws = %d, want 10 with every other call failing", totalDraws)
	}
}
