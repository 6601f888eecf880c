package testutil

import (
	"encoding/binary"
	"testing"
)

func TestEncodeLinesLittleEndian(t *testing.T) {
	raw := EncodeLines([][]float64{{1, 258}, {65535, 70000}}, 2)
	if len(raw) != 8 {
		t.Fatalf("len = %d, want 8", len(raw))
	}

	want := []uint16{1, 258, 65535, 65535}
	for i, w := range want {
		if got := binary.LittleEndian.Uint16(raw[2*i:]); got != w {
			t.Fatalf("sample %d = %d, want %d", i, got, w)
		}
	}
}

func TestConstantFrame(t *testing.T) {
	raw := ConstantFrame(2048, 8, 3, 2)
	if len(raw) != 8*3*2 {
		t.Fatalf("len = %d", len(raw))
	}
	for i := 0; i < len(raw); i += 2 {
		if v := binary.LittleEndian.Uint16(raw[i:]); v != 2048 {
			t.Fatalf("sample %d = %d, want 2048", i/2, v)
		}
	}
}

func TestFringeBounds(t *testing.T) {
	f := Fringe(256, 2000, 500, 40, 3)
	for i, v := range f {
		if v < 1500-1e-9 || v > 2500+1e-9 {
			t.Fatalf("sample %d = %v outside [1500,2500]", i, v)
		}
	}
	RequireFinite(t, f)
}

func TestDeterministicNoiseRepeatable(t *testing.T) {
	a := DeterministicNoise(7, 1, 16)
	b := DeterministicNoise(7, 1, 16)
	RequireSliceNearlyEqual(t, a, b, 0)
}
