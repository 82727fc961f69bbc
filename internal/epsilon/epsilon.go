package epsilon

import (
	"fmt"
	"sort"
)

// Schedule produces the acceptance threshold for the next population from
// the previous population's accepted distances. For the first population the
// engine feeds it the prior-predictive distance spread instead.
type Schedule interface {
	Next(previousDistances []float64) (float64, error)
}

// Median returns the median of the previous distances. This is the default
// policy: roughly half of re-proposed particles stay acceptable.
type Median struct{}

func (Median) Next(previousDistances []float64) (float64, error) {
	return Quantile{Q: 0.5}.Next(previousDistances)
}

// Quantile returns the Q-quantile of the previous distances.
type Quantile struct {
	Q float64
}

func (q Quantile) Next(previousDistances []float64) (float64, error) {
	if q.Q <= 0 || q.Q > 1 {
		return 0, fmt.Errorf("quantile must be in (0, 1], got %v", q.Q)
	}
	if len(previousDistances) == 0 {
		return 0, fmt.Errorf("quantile schedule requires at least one distance")
	}
	sorted := append([]float64(nil), previousDistances...)
	sort.Float64s(sorted)
	idx := int(q.Q * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx], nil
}

// List replays a fixed threshold sequence, then keeps returning the last
// value once exhausted.
type List struct {
	Values []float64

	next int
}

func (l *List) Next(_ []float64) (float64, error) {
	if len(l.Values) == 0 {
		return 0, fmt.Errorf("list schedule requires at least one value")
	}
	if l.next >= len(l.Values) {
		return l.Values[len(l.Values)-1], nil
	}
	v := l.Values[l.next]
	l.next++
	return v, nil
}
