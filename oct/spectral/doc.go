// Package spectral reconstructs A-scans from raw OCT spectra.
//
// A [Processor] runs each spectrum through a fixed sequence of stages, each of
// which can be switched off through [Stages]:
//
//  1. conversion of raw unsigned samples to float64 (no scaling)
//  2. DC removal by subtracting an asymmetric rolling average
//  3. k-linearization by cubic Hermite resampling along a resampling curve
//  4. numerical dispersion compensation with a cubic phase polynomial
//  5. Hann windowing
//  6. inverse Fourier transform scaled by 1/N
//  7. log compression (or plain magnitude)
//  8. mirror truncation to the first N/2 samples when the transform ran
//
// # Usage
//
//	cfg := spectral.DefaultConfig(1024).WithD2D3(12.5, -3)
//	p, err := spectral.NewProcessor(cfg)
//	if err != nil {
//	    return err
//	}
//	ascans, err := p.ProcessFrame(raw, 12)
//
// A processor is sized at construction. Reconfiguring with a different
// spectrum length is a configuration error. Cached tables (window, phase,
// resampling curve) are rebuilt lazily when the parameters they depend on
// change.
//
// Errors are classified with [ErrConfiguration], [ErrResourceLoad] and
// [ErrTransient]; use errors.Is to decide whether to abort or continue.
package spectral
