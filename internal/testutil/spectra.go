package testutil

import (
	"encoding/binary"
	"math"
	"math/rand"
)

// DeterministicNoise generates white noise with a fixed seed for reproducibility.
func DeterministicNoise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out
}

// Fringe generates one synthetic interferogram of length n: a DC offset plus
// a cosine fringe whose frequency places a reflector at bin depth, distorted
// by a quadratic dispersion phase of d2 radians at the band edge.
func Fringe(n int, offset, amplitude, depth, d2 float64) []float64 {
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	den := float64(n - 1)
	if den == 0 {
		den = 1
	}
	for i := range out {
		x := float64(i) / den
		phase := 2*math.Pi*depth*float64(i)/float64(n) + d2*x*x
		out[i] = offset + amplitude*math.Cos(phase)
	}
	return out
}

// EncodeLines packs lines of sample values into a little-endian raw frame
// with the given container size in bytes (1, 2 or 4). Values are rounded and
// clamped to the container range.
func EncodeLines(lines [][]float64, bytesPerSample int) []byte {
	total := 0
	for _, l := range lines {
		total += len(l)
	}

	out := make([]byte, total*bytesPerSample)
	pos := 0
	maxVal := math.Pow(2, float64(8*bytesPerSample)) - 1
	for _, l := range lines {
		for _, v := range l {
			u := math.Round(v)
			if u < 0 {
				u = 0
			}
			if u > maxVal {
				u = maxVal
			}
			switch bytesPerSample {
			case 1:
				out[pos] = byte(u)
			case 2:
				binary.LittleEndian.PutUint16(out[pos:], uint16(u))
			case 4:
				binary.LittleEndian.PutUint32(out[pos:], uint32(u))
			}
			pos += bytesPerSample
		}
	}

	return out
}

// ConstantFrame returns a raw frame of lines x samples little-endian samples
// all equal to value.
func ConstantFrame(value float64, samples, lines, bytesPerSample int) []byte {
	rows := make([][]float64, lines)
	for i := range rows {
		row := make([]float64, samples)
		for j := range row {
			row[j] = value
		}
		rows[i] = row
	}
	return EncodeLines(rows, bytesPerSample)
}

// FringeFrame returns a raw frame where every line is the same Fringe.
func FringeFrame(samples, lines, bytesPerSample int, offset, amplitude, depth, d2 float64) []byte {
	line := Fringe(samples, offset, amplitude, depth, d2)
	rows := make([][]float64, lines)
	for i := range rows {
		rows[i] = line
	}
	return EncodeLines(rows, bytesPerSample)
}
