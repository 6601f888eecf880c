package spectral

import (
	"math"

	"github.com/cwbudde/algo-vecmath"
	"gonum.org/v1/gonum/floats"

	"github.com/cwbudde/algo-oct/dsp/core"
	"github.com/cwbudde/algo-oct/dsp/interp"
)

// logFloor keeps 10*log10 finite for bins with zero power.
const logFloor = 1e-12

// removeDC subtracts from every sample the mean over the inclusive index
// range [max(0, i-(w-1)), min(i+w, N-1)]. The window looks back w-1 samples
// and ahead w samples. prefix must have room for len(x)+1 values.
func removeDC(x []float64, w int, prefix []float64) {
	n := len(x)
	if n == 0 || w <= 0 {
		return
	}

	prefix[0] = 0
	for i, v := range x {
		prefix[i+1] = prefix[i] + v
	}

	for i := range x {
		lo := i - (w - 1)
		if lo < 0 {
			lo = 0
		}
		hi := i + w
		if hi > n-1 {
			hi = n - 1
		}

		mean := (prefix[hi+1] - prefix[lo]) / float64(hi-lo+1)
		x[i] -= mean
	}
}

// klinearize resamples in along curve with 4-point cubic Hermite
// interpolation. The left neighbor index is reflected at zero.
func klinearize(dst, in, curve []float64) {
	last := len(in) - 1
	for j, nx := range curve {
		n1 := int(math.Floor(nx))
		n0 := n1 - 1
		if n0 < 0 {
			n0 = -n0
		}
		n0 = core.ClampInt(n0, 0, last)
		n1 = core.ClampInt(n1, 0, last)
		n2 := core.ClampInt(n1+1, 0, last)
		n3 := core.ClampInt(n1+2, 0, last)

		dst[j] = interp.Hermite4(nx-float64(n1), in[n0], in[n1], in[n2], in[n3])
	}
}

// compensateDispersion multiplies the real-valued spectrum re by the unit
// phasors (phaseRe, phaseIm). The input imaginary part must be zero, which
// reduces the complex multiply to two real products.
func compensateDispersion(re, im, phaseRe, phaseIm []float64) {
	for i, v := range re {
		re[i] = v * phaseRe[i]
		im[i] = v * phaseIm[i]
	}
}

// logCompress writes the log-compressed power of (re, im) into dst.
// power is scratch of the same length.
func logCompress(dst, re, im, power []float64, p LogScaleParams) {
	n := float64(len(re))
	vecmath.Power(power, re, im)
	for i, v := range power {
		dst[i] = core.LinearPowerToDB(v/n + logFloor)
	}

	lo, hi := p.Min, p.Max
	if p.AutoComputeMinMax {
		lo, hi = floats.Min(dst), floats.Max(dst)
	}

	span := hi - lo
	for i, v := range dst {
		norm := 0.0
		if span != 0 {
			norm = (v - lo) / span
		}
		dst[i] = p.Coeff * (norm + p.Addend)
	}
}

// magnitude writes sqrt(re^2+im^2) into dst.
func magnitude(dst, re, im []float64) {
	vecmath.Magnitude(dst, re, im)
}
