package mathx

import "testing"

func TestClamp(t *testing.T) {
	tests := []struct {
		v, lo, hi, want int
	}{
		{5, 0, 10, 5},
		{-1, 0, 10, 0},
		{11, 0, 10, 10},
		{5, 10, 0, 5},
		{20, 10, 0, 10},
	}
	for _, tt := range tests {
		if got := Clamp(tt.v, tt.lo, tt.hi); got != tt.want {
			t.Errorf("Clamp(%d, %d, %d) = %d, want %d", tt.v, tt.lo, tt.hi, got, tt.want)
		}
	}
}

func TestBetween(t *testing.T) {
	if !Between[uint8](40, 40, 60) {
		t.Error("40 should be within [40, 60]")
	}
	if Between[uint8](61, 40, 60) {
		t.Error("61 should not be within [40, 60]")
	}
}
