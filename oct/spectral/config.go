package spectral

import (
	"fmt"

	"github.com/cwbudde/algo-oct/dsp/core"
)

// DefaultRollingAverageWindowSize is the DC removal window used by DefaultConfig.
const DefaultRollingAverageWindowSize = 10

// Stages toggles the individual pipeline stages.
type Stages struct {
	RemoveDC                 bool
	Resample                 bool
	UseCustomResamplingCurve bool
	CompensateDispersion     bool
	ApplyWindow              bool
	ComputeIFFT              bool
	LogScale                 bool
}

// DefaultStages enables every stage except the custom resampling curve.
func DefaultStages() Stages {
	return Stages{
		RemoveDC:             true,
		Resample:             true,
		CompensateDispersion: true,
		ApplyWindow:          true,
		ComputeIFFT:          true,
		LogScale:             true,
	}
}

// Coefficients holds the four coefficients of a cubic polynomial in the
// normalized sample index i/(N-1).
type Coefficients [4]float64

// Finite reports whether all coefficients are finite.
func (c Coefficients) Finite() bool {
	return core.AllFinite(c[0], c[1], c[2], c[3])
}

// Eval evaluates c0 + i*(c1/(N-1) + i*(c2/(N-1)^2 + i*c3/(N-1)^3)) for a
// spectrum of n samples.
func (c Coefficients) Eval(i float64, n int) float64 {
	den := float64(n - 1)
	if n <= 1 {
		den = 1
	}
	den2 := den * den
	den3 := den2 * den

	return c[0] + i*(c[1]/den+i*(c[2]/den2+i*c[3]/den3))
}

// LogScaleParams configures log compression:
// out = Coeff*((dB-Min)/(Max-Min) + Addend).
//
// With AutoComputeMinMax, Min and Max are replaced per line by the extrema of
// that line's dB values, so the absolute brightness of identical inputs
// processed with different coefficients is not comparable.
type LogScaleParams struct {
	Coeff             float64
	Min               float64
	Max               float64
	Addend            float64
	AutoComputeMinMax bool
}

// DefaultLogScale returns unit gain with per-line automatic range.
func DefaultLogScale() LogScaleParams {
	return LogScaleParams{Coeff: 1, AutoComputeMinMax: true}
}

// Config is the complete, immutable parameter set of a Processor. Modify it
// through the With* methods, which return changed copies.
type Config struct {
	SamplesPerSpectrum       int
	RollingAverageWindowSize int
	Stages                   Stages

	// Dispersion holds d0..d3 of the compensation phase polynomial.
	Dispersion Coefficients
	// DispersionDirection flips the sign of the imaginary phase component.
	// Zero is treated as +1.
	DispersionDirection int

	// Resampling holds c0..c3 of the polynomial resampling curve.
	Resampling Coefficients

	LogScale LogScaleParams
}

// DefaultConfig returns a configuration for spectra of n samples with every
// default stage enabled, no dispersion and an identity resampling curve.
func DefaultConfig(n int) Config {
	return Config{
		SamplesPerSpectrum:       n,
		RollingAverageWindowSize: DefaultRollingAverageWindowSize,
		Stages:                   DefaultStages(),
		DispersionDirection:      1,
		Resampling:               Coefficients{0, float64(n - 1), 0, 0},
		LogScale:                 DefaultLogScale(),
	}
}

// WithStages returns a copy with the given stage toggles.
func (c Config) WithStages(s Stages) Config {
	c.Stages = s
	return c
}

// WithDispersion returns a copy with the given dispersion coefficients.
func (c Config) WithDispersion(d Coefficients) Config {
	c.Dispersion = d
	return c
}

// WithD2D3 returns a copy with d2 and d3 replaced and d0, d1 unchanged.
func (c Config) WithD2D3(d2, d3 float64) Config {
	c.Dispersion[2] = d2
	c.Dispersion[3] = d3
	return c
}

// WithDispersionDirection returns a copy with the given phase direction.
func (c Config) WithDispersionDirection(direction int) Config {
	c.DispersionDirection = direction
	return c
}

// WithResampling returns a copy with the given resampling coefficients.
func (c Config) WithResampling(r Coefficients) Config {
	c.Resampling = r
	return c
}

// WithRollingAverageWindowSize returns a copy with the given DC removal window.
func (c Config) WithRollingAverageWindowSize(w int) Config {
	c.RollingAverageWindowSize = w
	return c
}

// WithLogScale returns a copy with the given log compression parameters.
func (c Config) WithLogScale(p LogScaleParams) Config {
	c.LogScale = p
	return c
}

// WithLogScaleEnabled returns a copy with the log compression stage switched
// on or off. Disabled log compression yields linear magnitudes.
func (c Config) WithLogScaleEnabled(enabled bool) Config {
	c.Stages.LogScale = enabled
	return c
}

// LineLength returns the number of output samples per processed spectrum.
func (c Config) LineLength() int {
	if c.Stages.ComputeIFFT {
		return c.SamplesPerSpectrum / 2
	}
	return c.SamplesPerSpectrum
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.SamplesPerSpectrum <= 0 {
		return fmt.Errorf("%w: %d", ErrZeroSamples, c.SamplesPerSpectrum)
	}

	if c.Stages.RemoveDC && c.RollingAverageWindowSize <= 0 {
		return fmt.Errorf("%w: %d", ErrWindowSize, c.RollingAverageWindowSize)
	}

	switch c.DispersionDirection {
	case -1, 0, 1:
	default:
		return fmt.Errorf("%w: %d", ErrDirection, c.DispersionDirection)
	}

	if !c.Dispersion.Finite() {
		return fmt.Errorf("%w: dispersion %v", ErrNonFinite, c.Dispersion)
	}

	if !c.Resampling.Finite() {
		return fmt.Errorf("%w: resampling %v", ErrNonFinite, c.Resampling)
	}

	ls := c.LogScale
	if c.Stages.LogScale && !ls.AutoComputeMinMax && ls.Max == ls.Min {
		return fmt.Errorf("%w: min=max=%v", ErrLogRange, ls.Min)
	}

	return nil
}

func (c Config) direction() float64 {
	if c.DispersionDirection < 0 {
		return -1
	}
	return 1
}
