package windowing

import (
	"math"
	"testing"
)

func TestHannShape(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		symmetric bool
		last      float64
	}{
		{"symmetric", 9, true, 0},
		{"periodic", 8, false, 0.5 * (1 - math.Cos(2*math.Pi*7/8))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHann(tt.size, tt.symmetric)
			c := h.Coefficients()
			if len(c) != tt.size {
				t.Fatalf("len = %d, want %d", len(c), tt.size)
			}
			if math.Abs(c[0]) > 1e-12 {
				t.Errorf("first coefficient = %v, want 0", c[0])
			}
			if math.Abs(c[tt.size-1]-tt.last) > 1e-9 {
				t.Errorf("last coefficient = %v, want %v", c[tt.size-1], tt.last)
			}
		})
	}
}

func TestHannSumSquareConstantOverlap(t *testing.T) {
	// periodic Hann squared at 75% overlap sums to 1.5 away from the edges
	h := NewHann(16, false)
	wss := h.SumSquare(10, 4)
	for i := 16; i < len(wss)-16; i++ {
		if math.Abs(wss[i]-1.5) > 1e-9 {
			t.Fatalf("wss[%d] = %v, want 1.5", i, wss[i])
		}
	}
}

func TestApplyInPlaceSizeMismatch(t *testing.T) {
	if err := NewHann(4, false).ApplyInPlace(make([]float64, 3)); err == nil {
		t.Error("expected size mismatch error")
	}
}
