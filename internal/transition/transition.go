package transition

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"abcsmc/internal/model"
)

// Kernel proposes new parameter samples by perturbing accepted particles of
// the previous population, and evaluates its own proposal density so the
// sampler can compute importance weights. Fit is called once per population
// per model; Perturb and Density may then be called concurrently.
type Kernel interface {
	Fit(samples []model.ParameterSample, weights []float64) error
	Perturb(rng *rand.Rand, base model.ParameterSample) model.ParameterSample
	Density(base, x model.ParameterSample) float64
}

// Factory builds a fresh kernel. The engine fits one kernel per model per
// population.
type Factory func() Kernel

// Normal perturbs each parameter independently with Gaussian noise whose
// scale is sqrt(2 x weighted sample variance) of the previous population,
// with a floor for degenerate populations.
type Normal struct {
	// ScaleFactor multiplies the weighted variance before taking the square
	// root. Defaults to 2 when non-positive.
	ScaleFactor float64
	// MinStd keeps the kernel proper when a population collapses onto a
	// point. Defaults to 1e-6 when non-positive.
	MinStd float64

	names []string
	stds  map[string]float64
}

func NewNormal() Kernel {
	return &Normal{}
}

func (k *Normal) Fit(samples []model.ParameterSample, weights []float64) error {
	if len(samples) == 0 {
		return fmt.Errorf("kernel fit requires at least one sample")
	}
	if len(samples) != len(weights) {
		return fmt.Errorf("kernel fit mismatch: %d samples, %d weights", len(samples), len(weights))
	}

	scale := k.ScaleFactor
	if scale <= 0 {
		scale = 2
	}
	minStd := k.MinStd
	if minStd <= 0 {
		minStd = 1e-6
	}

	totalWeight := 0.0
	for _, w := range weights {
		if w < 0 {
			return fmt.Errorf("kernel fit requires non-negative weights")
		}
		totalWeight += w
	}
	if totalWeight <= 0 {
		return fmt.Errorf("kernel fit requires positive total weight")
	}

	names := make([]string, 0, len(samples[0]))
	for name := range samples[0] {
		names = append(names, name)
	}
	sort.Strings(names)

	stds := make(map[string]float64, len(names))
	for _, name := range names {
		mean := 0.0
		for i, sample := range samples {
			mean += weights[i] / totalWeight * sample[name]
		}
		variance := 0.0
		for i, sample := range samples {
			d := sample[name] - mean
			variance += weights[i] / totalWeight * d * d
		}
		std := math.Sqrt(scale * variance)
		if std < minStd {
			std = minStd
		}
		stds[name] = std
	}

	k.names = names
	k.stds = stds
	return nil
}

func (k *Normal) Perturb(rng *rand.Rand, base model.ParameterSample) model.ParameterSample {
	out := make(model.ParameterSample, len(base))
	for _, name := range k.names {
		out[name] = base[name] + k.stds[name]*rng.NormFloat64()
	}
	return out
}

func (k *Normal) Density(base, x model.ParameterSample) float64 {
	density := 1.0
	for _, name := range k.names {
		std := k.stds[name]
		z := (x[name] - base[name]) / std
		density *= math.Exp(-0.5*z*z) / (std * math.Sqrt(2*math.Pi))
	}
	return density
}
