package dispersion

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-oct/dsp/core"
	"github.com/cwbudde/algo-oct/oct/metric"
	"github.com/cwbudde/algo-oct/oct/rawdata"
	"github.com/cwbudde/algo-oct/oct/spectral"
)

// Errors returned by the dispersion package.
var (
	ErrBusy   = errors.New("dispersion: estimation already running")
	ErrClosed = errors.New("dispersion: worker closed")

	ErrSearchConfig = fmt.Errorf("%w: invalid dispersion search configuration", spectral.ErrConfiguration)
	ErrFrame        = fmt.Errorf("%w: invalid frame", spectral.ErrConfiguration)
)

// SearchConfig holds the parameters of one estimation.
type SearchConfig struct {
	// CenterLines is the number of lines taken from the center of the frame.
	// Values above the frame height select every line.
	CenterLines int
	// SamplesToIgnore is skipped at the start of every processed line before
	// scoring.
	SamplesToIgnore int
	Metric          metric.Kind
	Threshold       float64

	D2Start, D2End float64
	D3Start, D3End float64
	// Samples is the number of candidates per sweep.
	Samples int

	// LinearAscans scores linear magnitudes instead of log-compressed
	// A-scans.
	LinearAscans bool
}

// DefaultSearchConfig returns the search parameters used when nothing is
// configured.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		CenterLines:     10,
		SamplesToIgnore: 10,
		Metric:          metric.SumAboveThreshold,
		Threshold:       0.5,
		D2Start:         -50,
		D2End:           50,
		D3Start:         -50,
		D3End:           50,
		Samples:         100,
	}
}

// MetricParams returns the scoring parameters.
func (c SearchConfig) MetricParams() metric.Params {
	return metric.Params{
		Kind:            c.Metric,
		Threshold:       c.Threshold,
		SamplesToIgnore: c.SamplesToIgnore,
	}
}

// StepD2 returns |D2End-D2Start|/Samples.
func (c SearchConfig) StepD2() float64 {
	return step(c.D2Start, c.D2End, c.Samples)
}

// StepD3 returns |D3End-D3Start|/Samples.
func (c SearchConfig) StepD3() float64 {
	return step(c.D3Start, c.D3End, c.Samples)
}

// Validate checks the configuration.
func (c SearchConfig) Validate() error {
	if c.Samples <= 0 {
		return fmt.Errorf("%w: samples per sweep must be > 0, got %d", ErrSearchConfig, c.Samples)
	}
	if c.CenterLines <= 0 {
		return fmt.Errorf("%w: center lines must be > 0, got %d", ErrSearchConfig, c.CenterLines)
	}
	if !core.AllFinite(c.D2Start, c.D2End, c.D3Start, c.D3End) {
		return fmt.Errorf("%w: non-finite sweep range", ErrSearchConfig)
	}
	if err := c.MetricParams().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrSearchConfig, err)
	}
	return nil
}

func step(start, end float64, samples int) float64 {
	if samples <= 0 {
		return 0
	}
	d := end - start
	if d < 0 {
		d = -d
	}
	return d / float64(samples)
}

// Frame is one raw frame as delivered by the host.
type Frame struct {
	Data           []byte
	BitDepth       rawdata.BitDepth
	SamplesPerLine int
	LinesPerFrame  int
}

// Geometry returns the frame layout.
func (f Frame) Geometry() rawdata.Geometry {
	return rawdata.Geometry{
		BitDepth:       f.BitDepth,
		SamplesPerLine: f.SamplesPerLine,
		LinesPerFrame:  f.LinesPerFrame,
	}
}

// Clone returns a frame that owns a copy of the sample bytes.
func (f Frame) Clone() Frame {
	f.Data = append([]byte(nil), f.Data...)
	return f
}

// Result is the outcome of a completed estimation.
type Result struct {
	// Coefficients holds d0 and d1 from the processing configuration and
	// the best d2 and d3.
	Coefficients spectral.Coefficients
	BestD2Score  float64
	BestD3Score  float64
	// Before and After are the first centered line processed without and
	// with the best coefficients.
	Before, After []float64
}

// D2 returns the best d2.
func (r Result) D2() float64 { return r.Coefficients[2] }

// D3 returns the best d3.
func (r Result) D3() float64 { return r.Coefficients[3] }
