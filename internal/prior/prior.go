package prior

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"abcsmc/internal/model"
)

// Distribution is a one-dimensional prior marginal.
type Distribution interface {
	Sample(rng *rand.Rand) float64
	Density(x float64) float64
}

// Uniform is the continuous uniform distribution on [Low, High).
type Uniform struct {
	Low  float64
	High float64
}

func (u Uniform) Sample(rng *rand.Rand) float64 {
	return u.Low + rng.Float64()*(u.High-u.Low)
}

func (u Uniform) Density(x float64) float64 {
	if x < u.Low || x >= u.High {
		return 0
	}
	return 1 / (u.High - u.Low)
}

// Normal is the Gaussian distribution with the given mean and standard deviation.
type Normal struct {
	Mean float64
	Std  float64
}

func (n Normal) Sample(rng *rand.Rand) float64 {
	return n.Mean + n.Std*rng.NormFloat64()
}

func (n Normal) Density(x float64) float64 {
	z := (x - n.Mean) / n.Std
	return math.Exp(-0.5*z*z) / (n.Std * math.Sqrt(2*math.Pi))
}

// Prior is a product of independent named marginals.
type Prior map[string]Distribution

// Validate rejects empty or malformed priors at construction time rather
// than at first draw.
func (p Prior) Validate() error {
	if len(p) == 0 {
		return fmt.Errorf("prior requires at least one parameter")
	}
	for name, dist := range p {
		if name == "" {
			return fmt.Errorf("prior parameter name is required")
		}
		if dist == nil {
			return fmt.Errorf("prior distribution is nil for parameter %s", name)
		}
		if u, ok := dist.(Uniform); ok && u.High <= u.Low {
			return fmt.Errorf("uniform prior for %s requires low < high", name)
		}
		if n, ok := dist.(Normal); ok && n.Std <= 0 {
			return fmt.Errorf("normal prior for %s requires std > 0", name)
		}
	}
	return nil
}

// Sample draws one parameter sample with all marginals drawn independently.
func (p Prior) Sample(rng *rand.Rand) model.ParameterSample {
	out := make(model.ParameterSample, len(p))
	for _, name := range p.names() {
		out[name] = p[name].Sample(rng)
	}
	return out
}

// Density evaluates the joint density at the given sample. Parameters
// missing from the sample yield zero.
func (p Prior) Density(sample model.ParameterSample) float64 {
	density := 1.0
	for name, dist := range p {
		x, ok := sample[name]
		if !ok {
			return 0
		}
		density *= dist.Density(x)
	}
	return density
}

// names returns parameter names in a stable order so that sampling consumes
// rng draws deterministically for a given seed.
func (p Prior) names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
