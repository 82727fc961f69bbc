package smc

import (
	"log/slog"

	"abcsmc/internal/model"
)

// Observer receives run lifecycle events. Calls are synchronous and happen
// between populations, never inside the sampling hot path.
type Observer interface {
	RunStarted(runID string, nextT int)
	PopulationDone(runID string, t int, epsilon float64, accepted, totalDraws int, probabilities []float64)
	RunFinished(runID string, reason model.StopReason, epsilon float64, populations int)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) RunStarted(string, int) {}
func (NopObserver) PopulationDone(string, int, float64, int, int, []float64) {
}
func (NopObserver) RunFinished(string, model.StopReason, float64, int) {}

// LogObserver reports lifecycle events through slog.
type LogObserver struct {
	Logger *slog.Logger
}

func (o LogObserver) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o LogObserver) RunStarted(runID string, nextT int) {
	o.logger().Info("run started", "run_id", runID, "next_t", nextT)
}

func (o LogObserver) PopulationDone(runID string, t int, epsilon float64, accepted, totalDraws int, probabilities []float64) {
	o.logger().Info("population complete",
		"run_id", runID, "t", t, "epsilon", epsilon,
		"accepted", accepted, "total_draws", totalDraws,
		"model_probabilities", probabilities)
}

func (o LogObserver) RunFinished(runID string, reason model.StopReason, epsilon float64, populations int) {
	o.logger().Info("run finished",
		"run_id", runID, "reason", string(reason),
		"epsilon", epsilon, "populations", populations)
}
