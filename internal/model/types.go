package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// ParameterSample maps parameter names to values, as drawn from a prior or
// produced by perturbing an accepted particle.
type ParameterSample map[string]float64

// SummaryStatistics maps statistic names to values, as produced by a
// simulator or supplied as observed data.
type SummaryStatistics map[string]float64

// Clone returns an independent copy of the sample.
func (p ParameterSample) Clone() ParameterSample {
	out := make(ParameterSample, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Clone returns an independent copy of the statistics.
func (s SummaryStatistics) Clone() SummaryStatistics {
	out := make(SummaryStatistics, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Particle is one accepted sample within a population. Immutable once the
// population it belongs to has been appended to a run.
type Particle struct {
	Model      int               `json:"model"`
	Parameters ParameterSample   `json:"parameters"`
	SumStats   SummaryStatistics `json:"sum_stats"`
	Distance   float64           `json:"distance"`
	Weight     float64           `json:"weight"`
}

// Population is the full set of accepted particles of one generation,
// together with the threshold they were accepted under and the marginal
// model probabilities derived from them.
type Population struct {
	VersionedRecord
	RunID              string     `json:"run_id"`
	T                  int        `json:"t"`
	Epsilon            float64    `json:"epsilon"`
	Particles          []Particle `json:"particles"`
	ModelProbabilities []float64  `json:"model_probabilities"`
	TotalDraws         int        `json:"total_draws"`
	CreatedAt          time.Time  `json:"created_at"`
}

// StopReason records why a run stopped.
type StopReason string

const (
	StopReasonConverged StopReason = "converged"
	StopReasonExhausted StopReason = "exhausted"
)

// Run is the durable record of one ABC-SMC run. Populations are appended
// one at a time and never rewritten.
type Run struct {
	VersionedRecord
	ID             string            `json:"id"`
	CreatedAt      time.Time         `json:"created_at"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
	StopReason     StopReason        `json:"stop_reason,omitempty"`
	Observed       SummaryStatistics `json:"observed"`
	ModelNames     []string          `json:"model_names"`
	PopulationSize int               `json:"population_size"`
}

// ModelProbabilityRow is one generation's marginal model distribution.
type ModelProbabilityRow struct {
	T             int       `json:"t"`
	Probabilities []float64 `json:"probabilities"`
}
