package core

import (
	"math"
	"testing"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		min      float64
		max      float64
		expected float64
	}{
		{name: "inside", value: 0.5, min: 0, max: 1, expected: 0.5},
		{name: "below", value: -1, min: 0, max: 1, expected: 0},
		{name: "above", value: 2, min: 0, max: 1, expected: 1},
		{name: "swapped", value: 2, min: 1, max: 0, expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Clamp(tt.value, tt.min, tt.max)
			if got != tt.expected {
				t.Fatalf("Clamp() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestClampInt(t *testing.T) {
	tests := []struct {
		value, min, max, want int
	}{
		{5, 0, 10, 5},
		{-3, 0, 10, 0},
		{11, 0, 10, 10},
		{11, 10, 0, 10},
	}

	for _, tt := range tests {
		if got := ClampInt(tt.value, tt.min, tt.max); got != tt.want {
			t.Fatalf("ClampInt(%d, %d, %d) = %d, want %d", tt.value, tt.min, tt.max, got, tt.want)
		}
	}
}

func TestLinearPowerToDB(t *testing.T) {
	if db := LinearPowerToDB(100); math.Abs(db-20) > 1e-12 {
		t.Fatalf("LinearPowerToDB(100) = %v, want 20", db)
	}
	if !math.IsInf(LinearPowerToDB(0), -1) {
		t.Fatal("expected -Inf for zero power")
	}
	if !math.IsNaN(LinearPowerToDB(-1)) {
		t.Fatal("expected NaN for negative power")
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	for _, n := range []int{1, 2, 64, 1024, 4096} {
		if !IsPowerOfTwo(n) {
			t.Fatalf("IsPowerOfTwo(%d) = false", n)
		}
	}
	for _, n := range []int{0, -4, 3, 1000, 1536} {
		if IsPowerOfTwo(n) {
			t.Fatalf("IsPowerOfTwo(%d) = true", n)
		}
	}
}

func TestAllFinite(t *testing.T) {
	if !AllFinite(0, 1, -2.5) {
		t.Fatal("expected finite values")
	}
	if AllFinite(1, math.NaN()) {
		t.Fatal("NaN reported finite")
	}
	if AllFinite(math.Inf(1)) {
		t.Fatal("Inf reported finite")
	}
}
