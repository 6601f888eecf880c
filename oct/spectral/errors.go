package spectral

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned by this package wraps exactly one.
var (
	// ErrConfiguration is fatal to the current run: invalid dimensions,
	// unusable bit depth or a spectrum size that does not match the processor.
	ErrConfiguration = errors.New("spectral: configuration error")
	// ErrResourceLoad reports a missing or malformed external resource. The
	// previous state is retained.
	ErrResourceLoad = errors.New("spectral: resource load error")
	// ErrTransient reports a failure limited to a single processing call.
	ErrTransient = errors.New("spectral: processing failure")
)

// Errors returned by the processor.
var (
	ErrZeroSamples   = fmt.Errorf("%w: samples per spectrum must be > 0", ErrConfiguration)
	ErrWindowSize    = fmt.Errorf("%w: rolling average window size must be > 0", ErrConfiguration)
	ErrSpectrumSize  = fmt.Errorf("%w: samples per spectrum differs from processor size", ErrConfiguration)
	ErrFrameSize     = fmt.Errorf("%w: input is not a whole number of spectra", ErrConfiguration)
	ErrEmptyInput    = fmt.Errorf("%w: input is empty", ErrConfiguration)
	ErrBitDepth      = fmt.Errorf("%w: unusable bit depth", ErrConfiguration)
	ErrDirection     = fmt.Errorf("%w: dispersion direction must be -1 or +1", ErrConfiguration)
	ErrLogRange      = fmt.Errorf("%w: log scale max must differ from min", ErrConfiguration)
	ErrNonFinite     = fmt.Errorf("%w: non-finite coefficient", ErrTransient)
	ErrTransform     = fmt.Errorf("%w: inverse transform failed", ErrTransient)
	ErrCurveNotFound = fmt.Errorf("%w: resampling curve file not found", ErrResourceLoad)
	ErrCurveFormat   = fmt.Errorf("%w: malformed resampling curve file", ErrResourceLoad)
	ErrCurveLength   = fmt.Errorf("%w: resampling curve length differs from samples per spectrum", ErrResourceLoad)
)
