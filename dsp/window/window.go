// Package window generates the tapering windows applied to spectra before
// the inverse transform.
package window

import (
	"math"

	"github.com/cwbudde/algo-vecmath"
)

// Hann returns symmetric Hann window coefficients
// w[i] = 0.5*(1 - cos(2*pi*i/(size-1))).
//
// Both endpoints are exactly zero and, for odd sizes, the center sample is 1.
func Hann(size int) ([]float64, error) {
	if err := validateLength(size); err != nil {
		return nil, err
	}

	out := make([]float64, size)
	for i := range out {
		x := samplePosition(i, size)
		out[i] = 0.5 * (1 - math.Cos(2*math.Pi*x))
	}

	return out, nil
}

// Apply multiplies the split complex buffer (re, im) in-place by coeffs.
func Apply(re, im, coeffs []float64) error {
	if len(re) != len(coeffs) || len(im) != len(coeffs) {
		return errMismatchedLength
	}

	vecmath.MulBlockInPlace(re, coeffs)
	vecmath.MulBlockInPlace(im, coeffs)

	return nil
}

func samplePosition(n, size int) float64 {
	if size <= 1 {
		return 0
	}

	return float64(n) / float64(size-1)
}
