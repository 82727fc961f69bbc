package epsilon

import "testing"

func TestMedian(t *testing.T) {
	cases := []struct {
		name      string
		distances []float64
		want      float64
	}{
		{name: "odd", distances: []float64{5, 1, 3, 2, 4}, want: 3},
		{name: "even takes upper", distances: []float64{4, 1, 2, 3}, want: 3},
		{name: "single", distances: []float64{7}, want: 7},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Median{}.Next(tc.distances)
			if err != nil {
				t.Fatalf("next: %v", err)
			}
			if got != tc.want {
				t.Fatalf("median(%v) = %v, want %v", tc.distances, got, tc.want)
			}
		})
	}
}

func TestMedianEmpty(t *testing.T) {
	if _, err := (Median{}).Next(nil); err == nil {
		t.Fatalf("expected error for empty distances")
	}
}

func TestQuantile(t *testing.T) {
	distances := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	got, err := Quantile{Q: 0.2}.Next(distances)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if got != 3 {
		t.Fatalf("0.2-quantile = %v, want 3", got)
	}

	got, err = Quantile{Q: 1}.Next(distances)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if got != 10 {
		t.Fatalf("1.0-quantile = %v, want 10", got)
	}
}

func TestQuantileRejectsInvalidQ(t *testing.T) {
	for _, q := range []float64{-0.5, 0, 1.5} {
		if _, err := (Quantile{Q: q}).Next([]float64{1}); err == nil {
			t.Fatalf("expected error for q=%v", q)
		}
	}
}

func TestListReplaysThenRepeatsLast(t *testing.T) {
	schedule := &List{Values: []float64{3, 2, 1}}

	want := []float64{3, 2, 1, 1, 1}
	for i, expected := range want {
		got, err := schedule.Next(nil)
		if err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
		if got != expected {
			t.Fatalf("next %d = %v, want %v", i, got, expected)
		}
	}
}

func TestListEmpty(t *testing.T) {
	if _, err := (&List{}).Next(nil); err == nil {
		t.Fatalf("expected error for empty list schedule")
	}
}
