// Package toy holds the small built-in models used by the CLI demo and the
// end-to-end tests: cheap simulators with known posterior behaviour.
package toy

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"abcsmc/internal/model"
)

// Gaussian simulates a single noisy observation of a location parameter:
// y = mean + sigma * z. The internal rng is mutex-guarded so the simulator
// can be shared across sampler workers.
type Gaussian struct {
	sigma float64
	param string
	stat  string

	mu  sync.Mutex
	rng *rand.Rand
}

func NewGaussian(sigma float64, seed int64) *Gaussian {
	return &Gaussian{
		sigma: sigma,
		param: "mean",
		stat:  "y",
		rng:   rand.New(rand.NewSource(seed)),
	}
}

func (g *Gaussian) Simulate(_ context.Context, params model.ParameterSample) (model.SummaryStatistics, error) {
	mean, ok := params[g.param]
	if !ok {
		return nil, fmt.Errorf("parameter %q is missing", g.param)
	}
	g.mu.Lock()
	z := g.rng.NormFloat64()
	g.mu.Unlock()
	return model.SummaryStatistics{g.stat: mean + g.sigma*z}, nil
}
