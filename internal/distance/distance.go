package distance

import (
	"math"

	"abcsmc/internal/model"
)

// Function maps simulated and observed summary statistics to a non-negative
// discrepancy. Implementations must be safe for concurrent use.
type Function interface {
	Distance(simulated, observed model.SummaryStatistics) float64
}

// Func adapts a plain function to the Function interface.
type Func func(simulated, observed model.SummaryStatistics) float64

func (f Func) Distance(simulated, observed model.SummaryStatistics) float64 {
	return f(simulated, observed)
}

// PNorm is the p-norm over the statistics both maps share. P defaults to 2
// (Euclidean) when non-positive.
type PNorm struct {
	P float64
}

func (d PNorm) Distance(simulated, observed model.SummaryStatistics) float64 {
	p := d.P
	if p <= 0 {
		p = 2
	}
	total := 0.0
	for name, obs := range observed {
		sim, ok := simulated[name]
		if !ok {
			continue
		}
		total += math.Pow(math.Abs(sim-obs), p)
	}
	return math.Pow(total, 1/p)
}
