package spectral

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-oct/dsp/core"
	"github.com/cwbudde/algo-oct/dsp/window"
	"github.com/cwbudde/algo-oct/oct/rawdata"
)

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the logger used for recoverable failures.
func WithLogger(log logrus.FieldLogger) Option {
	return func(p *Processor) {
		if log != nil {
			p.log = log
		}
	}
}

// Processor turns raw spectra into A-scans. The spectrum length is fixed at
// construction. A Processor is not safe for concurrent use.
type Processor struct {
	cfg Config
	n   int
	log logrus.FieldLogger

	window    []float64
	transform *inverseTransform

	phaseRe, phaseIm []float64
	phaseStale       bool

	curve       []float64
	customCurve []float64
	curveStale  bool

	samples   []float64
	re, im    []float64
	resampled []float64
	prefix    []float64
	power     []float64
	logBuf    []float64
}

// NewProcessor creates a processor for cfg.SamplesPerSpectrum samples.
func NewProcessor(cfg Config, opts ...Option) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	n := cfg.SamplesPerSpectrum

	win, err := window.Hann(n)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrZeroSamples, err)
	}

	tr, err := newInverseTransform(n)
	if err != nil {
		return nil, err
	}

	p := &Processor{
		cfg:        cfg,
		n:          n,
		log:        logrus.StandardLogger(),
		window:     win,
		transform:  tr,
		phaseRe:    make([]float64, n),
		phaseIm:    make([]float64, n),
		phaseStale: true,
		curve:      make([]float64, n),
		curveStale: true,
		re:         make([]float64, n),
		im:         make([]float64, n),
		resampled:  make([]float64, n),
		prefix:     make([]float64, n+1),
		power:      make([]float64, n),
		logBuf:     make([]float64, n),
	}

	for _, opt := range opts {
		opt(p)
	}

	p.log = p.log.WithField("component", "spectral")

	return p, nil
}

// Config returns the active configuration.
func (p *Processor) Config() Config {
	return p.cfg
}

// SamplesPerSpectrum returns the fixed spectrum length.
func (p *Processor) SamplesPerSpectrum() int {
	return p.n
}

// LineLength returns the number of output samples per spectrum.
func (p *Processor) LineLength() int {
	return p.cfg.LineLength()
}

// Configure replaces the configuration. The spectrum length cannot change.
// Cached phase and resampling tables are rebuilt lazily when the parameters
// they depend on differ.
func (p *Processor) Configure(cfg Config) error {
	if cfg.SamplesPerSpectrum != p.n {
		return fmt.Errorf("%w: have %d, processor is %d", ErrSpectrumSize, cfg.SamplesPerSpectrum, p.n)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.Dispersion != p.cfg.Dispersion || cfg.direction() != p.cfg.direction() {
		p.phaseStale = true
	}
	if cfg.Resampling != p.cfg.Resampling ||
		cfg.Stages.UseCustomResamplingCurve != p.cfg.Stages.UseCustomResamplingCurve {
		p.curveStale = true
	}

	p.cfg = cfg

	return nil
}

// SetCustomResamplingCurve installs curve as the custom resampling curve.
// A curve of the wrong length is rejected and the previous curve stays
// active.
func (p *Processor) SetCustomResamplingCurve(curve []float64) error {
	if len(curve) != p.n {
		err := fmt.Errorf("%w: have %d, want %d", ErrCurveLength, len(curve), p.n)
		p.log.WithError(err).Warn("custom resampling curve rejected")
		return err
	}
	if !core.AllFinite(curve...) {
		err := fmt.Errorf("%w: non-finite value", ErrCurveFormat)
		p.log.WithError(err).Warn("custom resampling curve rejected")
		return err
	}

	c := make([]float64, p.n)
	copy(c, curve)
	clampCurve(c)

	p.customCurve = c
	p.curveStale = true

	return nil
}

// LoadCustomResamplingCurve reads a curve file and installs it.
func (p *Processor) LoadCustomResamplingCurve(path string) error {
	curve, err := LoadCurveFile(path)
	if err != nil {
		p.log.WithError(err).WithField("path", path).Warn("custom resampling curve not loaded")
		return err
	}

	return p.SetCustomResamplingCurve(curve)
}

// ClearCustomResamplingCurve removes the custom curve. The polynomial curve
// is used until another custom curve is installed.
func (p *Processor) ClearCustomResamplingCurve() {
	if p.customCurve == nil {
		return
	}
	p.customCurve = nil
	p.curveStale = true
}

// HasCustomResamplingCurve reports whether a custom curve is installed.
func (p *Processor) HasCustomResamplingCurve() bool {
	return p.customCurve != nil
}

// ResamplingCurve returns a copy of the active resampling curve.
func (p *Processor) ResamplingCurve() []float64 {
	p.refresh()
	return append([]float64(nil), p.curve...)
}

// Window returns a copy of the Hann window.
func (p *Processor) Window() []float64 {
	return append([]float64(nil), p.window...)
}

// Phase returns copies of the real and imaginary dispersion phasors.
func (p *Processor) Phase() (re, im []float64) {
	p.refresh()
	return append([]float64(nil), p.phaseRe...), append([]float64(nil), p.phaseIm...)
}

// ProcessFrame decodes raw little-endian samples of the given bit depth and
// processes them. raw must hold a whole number of spectra and is not
// retained.
func (p *Processor) ProcessFrame(raw []byte, depth rawdata.BitDepth) ([]float64, error) {
	if err := depth.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBitDepth, err)
	}
	if len(raw) == 0 {
		return nil, ErrEmptyInput
	}

	samples, err := rawdata.Decode(p.samples, raw, depth)
	if err != nil {
		if errors.Is(err, rawdata.ErrUnalignedSize) {
			return nil, fmt.Errorf("%w: %w", ErrFrameSize, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	p.samples = samples

	return p.ProcessSamples(samples)
}

// ProcessSamples processes consecutive spectra of SamplesPerSpectrum values
// each and returns LineLength values per spectrum.
func (p *Processor) ProcessSamples(samples []float64) ([]float64, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyInput
	}
	if len(samples)%p.n != 0 {
		return nil, fmt.Errorf("%w: %d samples, %d per spectrum", ErrFrameSize, len(samples), p.n)
	}

	p.refresh()

	lines := len(samples) / p.n
	lineLen := p.LineLength()
	out := make([]float64, lines*lineLen)

	for l := 0; l < lines; l++ {
		if err := p.processLine(out[l*lineLen:(l+1)*lineLen], samples[l*p.n:(l+1)*p.n]); err != nil {
			return nil, fmt.Errorf("line %d: %w", l, err)
		}
	}

	return out, nil
}

func (p *Processor) processLine(dst, in []float64) error {
	st := p.cfg.Stages
	re, im := p.re, p.im

	copy(re, in)
	core.Zero(im)

	if st.RemoveDC {
		removeDC(re, p.cfg.RollingAverageWindowSize, p.prefix)
	}

	if st.Resample {
		klinearize(p.resampled, re, p.curve)
		copy(re, p.resampled)
	}

	if st.CompensateDispersion {
		compensateDispersion(re, im, p.phaseRe, p.phaseIm)
	}

	if st.ApplyWindow {
		if err := window.Apply(re, im, p.window); err != nil {
			return fmt.Errorf("%w: %w", ErrTransient, err)
		}
	}

	if st.ComputeIFFT {
		if err := p.transform.apply(re, im); err != nil {
			return err
		}
	}

	if st.LogScale {
		logCompress(p.logBuf, re, im, p.power, p.cfg.LogScale)
	} else {
		magnitude(p.logBuf, re, im)
	}

	copy(dst, p.logBuf[:len(dst)])

	return nil
}

// refresh rebuilds stale cached tables.
func (p *Processor) refresh() {
	if p.phaseStale {
		p.buildPhase()
		p.phaseStale = false
	}

	if p.curveStale {
		p.buildCurve()
		p.curveStale = false
	}
}

func (p *Processor) buildPhase() {
	dir := p.cfg.direction()
	for i := range p.phaseRe {
		sin, cos := math.Sincos(p.cfg.Dispersion.Eval(float64(i), p.n))
		p.phaseRe[i] = cos
		p.phaseIm[i] = sin * dir
	}
}

func (p *Processor) buildCurve() {
	if p.cfg.Stages.UseCustomResamplingCurve && p.customCurve != nil {
		copy(p.curve, p.customCurve)
		return
	}

	copy(p.curve, PolynomialCurve(p.cfg.Resampling, p.n))
}
