package stats

import (
	"math"
	"testing"
)

func TestPearsonCorrelation(t *testing.T) {
	tests := []struct {
		name string
		x, y []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1},
		{"affine", []float64{1, 2, 3}, []float64{10, 20, 30}, 1},
		{"inverse", []float64{1, 2, 3}, []float64{3, 2, 1}, -1},
		{"constant", []float64{1, 1, 1}, []float64{1, 2, 3}, 0},
		{"mismatched", []float64{1, 2}, []float64{1, 2, 3}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PearsonCorrelation(tt.x, tt.y); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("PearsonCorrelation = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAutocorrelationPeriodic(t *testing.T) {
	x := make([]float64, 400)
	for i := range x {
		if i%20 == 0 {
			x[i] = 1
		}
	}
	r := Autocorrelation(x, 10, 30)
	best := 0
	for i, v := range r {
		if v > r[best] {
			best = i
		}
	}
	if lag := best + 10; lag != 20 {
		t.Errorf("best lag = %d, want 20", lag)
	}
	if silent := Autocorrelation(make([]float64, 50), 1, 10); silent[0] != 0 {
		t.Errorf("silent autocorrelation = %v", silent)
	}
}
