package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"abcsmc/internal/model"
)

func testRun(id string, createdAt time.Time) model.Run {
	return model.Run{
		VersionedRecord: model.VersionedRecord{
			SchemaVersion: CurrentSchemaVersion,
			CodecVersion:  CurrentCodecVersion,
		},
		ID:             id,
		CreatedAt:      createdAt,
		Observed:       model.SummaryStatistics{"y": 1},
		ModelNames:     []string{"m0", "m1"},
		PopulationSize: 4,
	}
}

func testPopulation(runID string, t int) model.Population {
	return model.Population{
		VersionedRecord: model.VersionedRecord{
			SchemaVersion: CurrentSchemaVersion,
			CodecVersion:  CurrentCodecVersion,
		},
		RunID:   runID,
		T:       t,
		Epsilon: 0.5 / float64(t+1),
		Particles: []model.Particle{
			{
				Model:      0,
				Parameters: model.ParameterSample{"mean": 0.1},
				SumStats:   model.SummaryStatistics{"y": 0.9},
				Distance:   0.1,
				Weight:     0.25,
			},
			{
				Model:      1,
				Parameters: model.ParameterSample{"mean": 0.9},
				SumStats:   model.SummaryStatistics{"y": 1.1},
				Distance:   0.1,
				Weight:     0.75,
			},
		},
		ModelProbabilities: []float64{0.25, 0.75},
		TotalDraws:         10,
		CreatedAt:          time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(t) * time.Minute),
	}
}

// runStoreSuite exercises the Store contract against a fresh, initialized
// store. Both backends must pass it unchanged.
func runStoreSuite(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := store.GetRun(ctx, "missing"); err != nil || ok {
		t.Fatalf("GetRun on empty store: ok=%v err=%v", ok, err)
	}
	if _, err := store.MaxT(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("MaxT on unknown run: %v, want ErrNotFound", err)
	}
	if err := store.CompleteRun(ctx, "missing", model.StopReasonConverged, time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("CompleteRun on unknown run: %v, want ErrNotFound", err)
	}
	if err := store.AppendPopulation(ctx, testPopulation("missing", 0)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("AppendPopulation on unknown run: %v, want ErrNotFound", err)
	}

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	second := testRun("run-b", base.Add(time.Hour))
	first := testRun("run-a", base)
	if err := store.CreateRun(ctx, second); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if err := store.CreateRun(ctx, first); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	got, ok, err := store.GetRun(ctx, "run-a")
	if err != nil || !ok {
		t.Fatalf("GetRun: ok=%v err=%v", ok, err)
	}
	if got.PopulationSize != 4 || len(got.ModelNames) != 2 || got.Observed["y"] != 1 {
		t.Fatalf("GetRun returned wrong record: %+v", got)
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-a" || runs[1].ID != "run-b" {
		t.Fatalf("ListRuns should order by creation time, got %+v", runs)
	}

	if maxT, err := store.MaxT(ctx, "run-a"); err != nil || maxT != -1 {
		t.Fatalf("MaxT before any population: %d, %v, want -1", maxT, err)
	}

	for i := 0; i < 3; i++ {
		if err := store.AppendPopulation(ctx, testPopulation("run-a", i)); err != nil {
			t.Fatalf("AppendPopulation t=%d: %v", i, err)
		}
	}
	if err := store.AppendPopulation(ctx, testPopulation("run-a", 1)); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate AppendPopulation: %v, want ErrConflict", err)
	}

	if maxT, err := store.MaxT(ctx, "run-a"); err != nil || maxT != 2 {
		t.Fatalf("MaxT = %d, %v, want 2", maxT, err)
	}

	population, ok, err := store.GetPopulation(ctx, "run-a", 1)
	if err != nil || !ok {
		t.Fatalf("GetPopulation: ok=%v err=%v", ok, err)
	}
	if population.T != 1 || len(population.Particles) != 2 || population.TotalDraws != 10 {
		t.Fatalf("GetPopulation returned wrong record: %+v", population)
	}
	if population.Particles[1].Parameters["mean"] != 0.9 {
		t.Fatalf("particle parameters lost: %+v", population.Particles[1])
	}
	if _, ok, err := store.GetPopulation(ctx, "run-a", 9); err != nil || ok {
		t.Fatalf("GetPopulation for absent t: ok=%v err=%v", ok, err)
	}

	rows, err := store.ModelProbabilities(ctx, "run-a")
	if err != nil {
		t.Fatalf("ModelProbabilities: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 probability rows, got %d", len(rows))
	}
	for i, row := range rows {
		if row.T != i {
			t.Fatalf("probability rows out of order: %+v", rows)
		}
		if len(row.Probabilities) != 2 || row.Probabilities[1] != 0.75 {
			t.Fatalf("wrong probabilities at t=%d: %+v", i, row)
		}
	}

	distances, err := store.Distances(ctx, "run-a", 2)
	if err != nil {
		t.Fatalf("Distances: %v", err)
	}
	if len(distances) != 2 || distances[0] != 0.1 {
		t.Fatalf("Distances = %v", distances)
	}

	completedAt := base.Add(2 * time.Hour)
	if err := store.CompleteRun(ctx, "run-a", model.StopReasonExhausted, completedAt); err != nil {
		t.Fatalf("CompleteRun: %v", err)
	}
	got, ok, err = store.GetRun(ctx, "run-a")
	if err != nil || !ok {
		t.Fatalf("GetRun after complete: ok=%v err=%v", ok, err)
	}
	if got.StopReason != model.StopReasonExhausted || got.CompletedAt == nil {
		t.Fatalf("run not marked complete: %+v", got)
	}
	if !got.CompletedAt.Equal(completedAt) {
		t.Fatalf("CompletedAt = %v, want %v", got.CompletedAt, completedAt)
	}
}
