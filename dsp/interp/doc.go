// Package interp provides the interpolation kernels used when resampling
// spectra onto a linear wavenumber grid.
//
// [Hermite4] is the 4-point cubic Hermite kernel; it passes through x0 and x1
// at t=0 and t=1.
package interp
