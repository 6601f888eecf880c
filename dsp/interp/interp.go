package interp

// Hermite4 computes 4-point cubic Hermite (Catmull-Rom) interpolation between
// x0 and x1 at fractional position t in [0,1], using xm1 and x2 to estimate
// the tangents.
//
// The basis-function form is used so that t == 0 yields exactly x0 and
// t == 1 yields exactly x1.
func Hermite4(t, xm1, x0, x1, x2 float64) float64 {
	t2 := t * t
	t3 := t2 * t

	h00 := 2*t3 - 3*t2 + 1
	h10 := t3 - 2*t2 + t
	h01 := -2*t3 + 3*t2
	h11 := t3 - t2

	m0 := 0.5 * (x1 - xm1)
	m1 := 0.5 * (x2 - x0)

	return h00*x0 + h10*m0 + h01*x1 + h11*m1
}
