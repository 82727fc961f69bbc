package smc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"abcsmc/internal/model"
	"abcsmc/internal/transition"
)

// ErrSamplingExhausted reports that a draw's retry budget ran out before a
// particle was accepted, typically because epsilon is too tight relative to
// the prior support. The run stays resumable from the last persisted
// population.
var ErrSamplingExhausted = errors.New("sampling exhausted: draw retry budget exceeded")

// proposal holds the read-only per-population state shared by all workers.
// At t=0 prev is empty and draws come straight from the priors.
type proposal struct {
	t       int
	epsilon float64

	// Per model: the previous population's particles of that model, their
	// normalized weights as a cumulative sum, and a fitted kernel. Empty
	// for extinct models.
	prevByModel [][]model.Particle
	cumWeights  [][]float64
	kernels     []transition.Kernel
	// Cumulative model-selection probabilities.
	cumModel []float64
}

// newProposal prepares the shared draw state for population t from the
// previous population's particles and model probabilities.
func (e *Engine) newProposal(t int, epsilon float64) (*proposal, error) {
	p := &proposal{t: t, epsilon: epsilon}
	if t == 0 {
		return p, nil
	}

	nModels := len(e.cfg.Models)
	p.prevByModel = make([][]model.Particle, nModels)
	p.cumWeights = make([][]float64, nModels)
	p.kernels = make([]transition.Kernel, nModels)
	for _, particle := range e.prev {
		p.prevByModel[particle.Model] = append(p.prevByModel[particle.Model], particle)
	}
	alive := 0
	for m, particles := range p.prevByModel {
		if len(particles) == 0 {
			continue
		}
		samples := make([]model.ParameterSample, len(particles))
		weights := make([]float64, len(particles))
		cum := make([]float64, len(particles))
		acc := 0.0
		for i, particle := range particles {
			samples[i] = particle.Parameters
			weights[i] = particle.Weight
			acc += particle.Weight
			cum[i] = acc
		}
		// A model whose weights all underflowed to zero cannot seed a
		// kernel; treat it like an extinct one.
		if acc <= 0 {
			p.prevByModel[m] = nil
			continue
		}
		p.cumWeights[m] = cum
		kernel := e.cfg.Kernel()
		if err := kernel.Fit(samples, weights); err != nil {
			return nil, fmt.Errorf("fit kernel for model %d: %w", m, err)
		}
		p.kernels[m] = kernel
		alive++
	}
	if alive == 0 {
		return nil, fmt.Errorf("population t=%d: no model retained positive weight", t-1)
	}

	p.cumModel = make([]float64, nModels)
	acc := 0.0
	for m, prob := range e.prevProbs {
		acc += prob
		p.cumModel[m] = acc
	}
	return p, nil
}

// pickModel selects a model index. Uniform at t=0; by the previous model
// posterior afterwards, never landing on an extinct model.
func (p *proposal) pickModel(rng *rand.Rand, nModels int) int {
	if p.t == 0 {
		return rng.Intn(nModels)
	}
	r := rng.Float64() * p.cumModel[len(p.cumModel)-1]
	for m, cum := range p.cumModel {
		if r <= cum && len(p.prevByModel[m]) > 0 {
			return m
		}
	}
	for m := len(p.prevByModel) - 1; m >= 0; m-- {
		if len(p.prevByModel[m]) > 0 {
			return m
		}
	}
	return 0
}

// resample picks a particle of model m from the previous population with
// probability proportional to its importance weight.
func (p *proposal) resample(rng *rand.Rand, m int) model.Particle {
	cum := p.cumWeights[m]
	particles := p.prevByModel[m]
	r := rng.Float64() * cum[len(cum)-1]
	for i, c := range cum {
		if r <= c {
			return particles[i]
		}
	}
	return particles[len(particles)-1]
}

// drawOne runs one proposal attempt. ok reports acceptance; a simulator
// error is a failed attempt, not a hard failure.
func (e *Engine) drawOne(ctx context.Context, rng *rand.Rand, p *proposal) (model.Particle, bool, error) {
	m := p.pickModel(rng, len(e.cfg.Models))
	spec := e.cfg.Models[m]

	var params model.ParameterSample
	if p.t == 0 {
		params = spec.Prior.Sample(rng)
	} else {
		base := p.resample(rng, m)
		params = p.kernels[m].Perturb(rng, base.Parameters)
		if spec.Prior.Density(params) == 0 {
			return model.Particle{}, false, nil
		}
	}

	sim, err := spec.Simulator.Simulate(ctx, params)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return model.Particle{}, false, ctxErr
		}
		return model.Particle{}, false, nil
	}
	d := e.cfg.Distance.Distance(sim, e.observed)
	if d > p.epsilon {
		return model.Particle{}, false, nil
	}

	weight := 1.0
	if p.t > 0 {
		weight = e.importanceWeight(p, m, params)
	}
	return model.Particle{
		Model:      m,
		Parameters: params,
		SumStats:   sim,
		Distance:   d,
		Weight:     weight,
	}, true, nil
}

// importanceWeight is prior density over proposal density, the proposal
// being the weighted kernel mixture over model m's previous particles.
func (e *Engine) importanceWeight(p *proposal, m int, params model.ParameterSample) float64 {
	priorDensity := e.cfg.Models[m].Prior.Density(params)
	proposalDensity := 0.0
	for _, particle := range p.prevByModel[m] {
		proposalDensity += particle.Weight * p.kernels[m].Density(particle.Parameters, params)
	}
	if proposalDensity <= 0 {
		return 0
	}
	return priorDensity / proposalDensity
}

// samplePopulation fills exactly n accepted particles under the proposal's
// epsilon. Draws are independent; each accepted slot is one job handed to a
// worker pool. Returns the particles and the total number of simulator
// attempts, or ErrSamplingExhausted when a slot's budget runs out.
func (e *Engine) samplePopulation(ctx context.Context, p *proposal, n int) ([]model.Particle, int, error) {
	type result struct {
		idx      int
		particle model.Particle
		attempts int
		err      error
	}

	jobs := make(chan int)
	results := make(chan result, n)

	workerCount := e.cfg.Workers
	if workerCount > n {
		workerCount = n
	}
	seeds := make([]int64, workerCount)
	for i := range seeds {
		seeds[i] = e.rng.Int63()
	}

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for idx := range jobs {
				attempts := 0
				var (
					accepted model.Particle
					ok       bool
					err      error
				)
				for attempts < e.cfg.MaxDrawAttempts {
					if err = ctx.Err(); err != nil {
						break
					}
					attempts++
					accepted, ok, err = e.drawOne(ctx, rng, p)
					if err != nil || ok {
						break
					}
				}
				if err != nil {
					results <- result{idx: idx, attempts: attempts, err: err}
					continue
				}
				if !ok {
					results <- result{idx: idx, attempts: attempts,
						err: fmt.Errorf("draw %d after %d attempts at epsilon=%g: %w",
							idx, attempts, p.epsilon, ErrSamplingExhausted)}
					continue
				}
				results <- result{idx: idx, particle: accepted, attempts: attempts}
			}
		}(seeds[w])
	}

	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
	close(results)

	particles := make([]model.Particle, n)
	totalDraws := 0
	var firstErr error
	for res := range results {
		totalDraws += res.attempts
		if res.err != nil && firstErr == nil {
			firstErr = res.err
		}
		particles[res.idx] = res.particle
	}
	if firstErr != nil {
		return nil, totalDraws, firstErr
	}
	return particles, totalDraws, nil
}

// calibrate estimates the prior-predictive distance spread used to seed the
// first epsilon: unconditional draws, nothing rejected.
func (e *Engine) calibrate(ctx context.Context) ([]float64, error) {
	p := &proposal{t: 0, epsilon: math.Inf(1)}
	particles, _, err := e.samplePopulation(ctx, p, e.cfg.CalibrationDraws)
	if err != nil {
		return nil, fmt.Errorf("prior-predictive calibration: %w", err)
	}
	distances := make([]float64, len(particles))
	for i, particle := range particles {
		distances[i] = particle.Distance
	}
	return distances, nil
}
