package toy

import (
	"context"
	"math"
	"sync"
	"testing"

	"abcsmc/internal/model"
)

func TestGaussianSimulate(t *testing.T) {
	g := NewGaussian(0.5, 1)

	sum := 0.0
	n := 2000
	for i := 0; i < n; i++ {
		stats, err := g.Simulate(context.Background(), model.ParameterSample{"mean": 2})
		if err != nil {
			t.Fatalf("simulate: %v", err)
		}
		sum += stats["y"]
	}
	if avg := sum / float64(n); math.Abs(avg-2) > 0.1 {
		t.Fatalf("sample mean = %v, want about 2", avg)
	}
}

func TestGaussianZeroSigmaIsDeterministic(t *testing.T) {
	g := NewGaussian(0, 1)

	stats, err := g.Simulate(context.Background(), model.ParameterSample{"mean": 1.25})
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if stats["y"] != 1.25 {
		t.Fatalf("y = %v, want exactly 1.25", stats["y"])
	}
}

func TestGaussianMissingParameter(t *testing.T) {
	g := NewGaussian(0.5, 1)

	if _, err := g.Simulate(context.Background(), model.ParameterSample{"other": 1}); err == nil {
		t.Fatalf("expected error for missing parameter")
	}
}

func TestGaussianConcurrentUse(t *testing.T) {
	g := NewGaussian(0.5, 1)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				if _, err := g.Simulate(context.Background(), model.ParameterSample{"mean": 0}); err != nil {
					t.Errorf("simulate: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()
}
