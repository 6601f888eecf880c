package spectral

import (
	"fmt"

	algofft "github.com/cwbudde/algo-fft"
	"github.com/cwbudde/algo-vecmath"
	"github.com/mjibson/go-dsp/fft"

	"github.com/cwbudde/algo-oct/dsp/core"
)

// inverseTransform computes a length-n complex inverse DFT scaled by 1/n on
// split real/imaginary buffers.
//
// Power-of-two sizes run on a precomputed algo-fft plan. The inverse is taken
// as conj(FFT(conj(x))) so the scaling is applied here and does not depend on
// the plan's inverse convention. Other sizes use go-dsp.
type inverseTransform struct {
	n    int
	plan *algofft.Plan[complex128]
	in   []complex128
	out  []complex128
}

func newInverseTransform(n int) (*inverseTransform, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrZeroSamples, n)
	}

	t := &inverseTransform{
		n:   n,
		in:  make([]complex128, n),
		out: make([]complex128, n),
	}

	if core.IsPowerOfTwo(n) {
		plan, err := algofft.NewPlan64(n)
		if err == nil {
			t.plan = plan
		}
	}

	return t, nil
}

// apply transforms (re, im) in-place.
func (t *inverseTransform) apply(re, im []float64) error {
	if len(re) != t.n || len(im) != t.n {
		return fmt.Errorf("%w: have %d/%d samples, plan is %d", ErrSpectrumSize, len(re), len(im), t.n)
	}

	if t.plan == nil {
		for i := range t.in {
			t.in[i] = complex(re[i], im[i])
		}

		out := fft.IFFT(t.in)
		for i, v := range out {
			re[i] = real(v)
			im[i] = imag(v)
		}

		return nil
	}

	for i := range t.in {
		t.in[i] = complex(re[i], -im[i])
	}

	if err := t.plan.Forward(t.out, t.in); err != nil {
		return fmt.Errorf("%w: %w", ErrTransform, err)
	}

	for i, v := range t.out {
		re[i] = real(v)
		im[i] = -imag(v)
	}

	scale := 1 / float64(t.n)
	vecmath.ScaleBlockInPlace(re, scale)
	vecmath.ScaleBlockInPlace(im, scale)

	return nil
}
