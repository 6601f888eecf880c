package dispersion

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-oct/oct/metric"
	"github.com/cwbudde/algo-oct/oct/rawdata"
	"github.com/cwbudde/algo-oct/oct/spectral"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithCustomCurvePath sets the file the custom resampling curve is loaded
// from when the processing configuration enables it.
func WithCustomCurvePath(path string) Option {
	return func(e *Engine) {
		e.curvePath = path
	}
}

// WithYield replaces the function called between sweep candidates. The
// default is runtime.Gosched.
func WithYield(yield func()) Option {
	return func(e *Engine) {
		if yield != nil {
			e.yield = yield
		}
	}
}

// Engine runs dispersion estimations. Its processing configuration may be
// replaced at any time; an estimation uses the configuration current at its
// start. Only one estimation runs at a time.
type Engine struct {
	log       logrus.FieldLogger
	curvePath string
	yield     func()

	mu         sync.Mutex
	processing spectral.Config

	running atomic.Bool
	proc    *spectral.Processor
}

// NewEngine returns an engine that processes candidates with the given
// configuration. Its SamplesPerSpectrum is replaced by the frame width of
// each estimation; the polynomial resampling coefficients are used as given,
// so they must be scaled for that width.
func NewEngine(processing spectral.Config, opts ...Option) *Engine {
	e := &Engine{
		log:        logrus.StandardLogger(),
		yield:      runtime.Gosched,
		processing: processing,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.log = e.log.WithField("component", "dispersion")

	return e
}

// SetProcessingConfig replaces the processing configuration used by the
// next estimation.
func (e *Engine) SetProcessingConfig(cfg spectral.Config) {
	e.mu.Lock()
	e.processing = cfg
	e.mu.Unlock()
}

// ProcessingConfig returns the current processing configuration.
func (e *Engine) ProcessingConfig() spectral.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.processing
}

// searchState is reset at the start of every sweep.
type searchState struct {
	best      float64
	bestScore float64
}

func (s *searchState) offer(coeff, score float64) {
	if score > s.bestScore {
		s.bestScore = score
		s.best = coeff
	}
}

// run carries the per-estimation context shared by the sweep steps.
type run struct {
	ctx    context.Context
	sink   ProgressSink
	proc   *spectral.Processor
	cfg    spectral.Config
	region []byte
	depth  rawdata.BitDepth
	params metric.Params
}

// Estimate runs both sweeps and the preview on frame. frame.Data is only
// read during the call. Configuration errors and cancellation end the
// estimation with an error; failures of single candidates are reported to
// sink and skipped.
func (e *Engine) Estimate(ctx context.Context, frame Frame, search SearchConfig, sink ProgressSink) (Result, error) {
	if sink == nil {
		sink = Discard
	}
	if !e.running.CompareAndSwap(false, true) {
		return Result{}, ErrBusy
	}
	defer e.running.Store(false)

	sink.Send(Status{Text: "Estimation process started..."})
	sink.Send(Started{})

	r, err := e.prepare(ctx, frame, search, sink)
	if err != nil {
		return Result{}, e.abort(sink, err)
	}

	log := e.log.WithFields(logrus.Fields{
		"lines":   r.geometry().LinesPerFrame,
		"samples": search.Samples,
		"metric":  search.Metric,
	})
	log.Info("dispersion estimation started")

	d2, err := e.sweep(r, AxisD2, search.D2Start, search.StepD2(), search.Samples, func(v float64) spectral.Config {
		return r.cfg.WithD2D3(v, 0)
	})
	if err != nil {
		return Result{}, e.abort(sink, err)
	}
	sink.Send(BestCoefficient{Axis: AxisD2, Value: d2.best, Score: d2.bestScore})
	log.WithField("d2", d2.best).Info("d2 sweep finished")

	d3, err := e.sweep(r, AxisD3, search.D3Start, search.StepD3(), search.Samples, func(v float64) spectral.Config {
		return r.cfg.WithD2D3(d2.best, v)
	})
	if err != nil {
		return Result{}, e.abort(sink, err)
	}
	sink.Send(BestCoefficient{Axis: AxisD3, Value: d3.best, Score: d3.bestScore})
	log.WithField("d3", d3.best).Info("d3 sweep finished")

	res := Result{
		Coefficients: r.cfg.Dispersion,
		BestD2Score:  d2.bestScore,
		BestD3Score:  d3.bestScore,
	}
	res.Coefficients[2] = d2.best
	res.Coefficients[3] = d3.best

	res.Before, err = e.preview(r, PreviewBefore, 0, 0)
	if err != nil {
		return Result{}, e.abort(sink, err)
	}
	res.After, err = e.preview(r, PreviewAfter, d2.best, d3.best)
	if err != nil {
		return Result{}, e.abort(sink, err)
	}

	sink.Send(Finished{Result: res})
	sink.Send(Status{Text: "Ready for next operation."})
	log.WithFields(logrus.Fields{"d2": d2.best, "d3": d3.best}).Info("dispersion estimation finished")

	return res, nil
}

// prepare validates the inputs, copies the centered region and sets up the
// processor for the frame width.
func (e *Engine) prepare(ctx context.Context, frame Frame, search SearchConfig, sink ProgressSink) (*run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := search.Validate(); err != nil {
		return nil, err
	}

	g := frame.Geometry()
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFrame, err)
	}

	region, lines, err := rawdata.ExtractCenter(frame.Data, g, search.CenterLines)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFrame, err)
	}

	cfg := e.ProcessingConfig()
	if cfg.SamplesPerSpectrum != frame.SamplesPerLine {
		entry := e.log.WithFields(logrus.Fields{
			"configured": cfg.SamplesPerSpectrum,
			"frame":      frame.SamplesPerLine,
		})
		if cfg.Stages.Resample && !cfg.Stages.UseCustomResamplingCurve {
			entry.Warn("frame width differs from configured spectrum length, resampling coefficients are not rescaled")
		} else {
			entry.Debug("spectrum length taken from frame width")
		}
	}
	cfg.SamplesPerSpectrum = frame.SamplesPerLine
	cfg = cfg.WithLogScaleEnabled(!search.LinearAscans)

	proc, err := e.processor(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Stages.UseCustomResamplingCurve {
		e.loadCustomCurve(proc, sink)
	}

	e.log.WithFields(logrus.Fields{
		"offset": (frame.LinesPerFrame - lines) / 2,
		"lines":  lines,
	}).Debug("center region extracted")

	return &run{
		ctx:    ctx,
		sink:   sink,
		proc:   proc,
		cfg:    cfg,
		region: region,
		depth:  frame.BitDepth,
		params: search.MetricParams(),
	}, nil
}

// loadCustomCurve installs the curve at curvePath. On failure any curve of a
// previous estimation is dropped so the sweep runs on the polynomial curve.
func (e *Engine) loadCustomCurve(proc *spectral.Processor, sink ProgressSink) {
	if e.curvePath == "" {
		proc.ClearCustomResamplingCurve()
		e.log.Warn("custom resampling enabled without a curve path")
		sink.Send(Status{Text: "No custom resampling curve configured, using polynomial curve."})
		return
	}

	if err := proc.LoadCustomResamplingCurve(e.curvePath); err != nil {
		proc.ClearCustomResamplingCurve()
		sink.Send(Failure{Err: err})
		sink.Send(Status{Text: "Custom resampling curve not loaded, using polynomial curve."})
	}
}

// processor reuses the previous processor when the spectrum length matches.
func (e *Engine) processor(cfg spectral.Config) (*spectral.Processor, error) {
	if e.proc != nil && e.proc.SamplesPerSpectrum() == cfg.SamplesPerSpectrum {
		if err := e.proc.Configure(cfg); err != nil {
			return nil, err
		}
		return e.proc, nil
	}

	proc, err := spectral.NewProcessor(cfg, spectral.WithLogger(e.log))
	if err != nil {
		return nil, err
	}
	e.proc = proc

	return proc, nil
}

// sweep scores samples candidates start+i*step and returns the best one.
func (e *Engine) sweep(r *run, axis Axis, start, step float64, samples int, config func(float64) spectral.Config) (searchState, error) {
	var st searchState

	r.sink.Send(Status{Text: fmt.Sprintf("Sweeping %s...", axis)})

	for i := 0; i < samples; i++ {
		if err := r.ctx.Err(); err != nil {
			return st, err
		}

		coeff := start + float64(i)*step
		score, err := e.score(r, config(coeff))
		if err != nil {
			if errors.Is(err, spectral.ErrConfiguration) {
				return st, err
			}
			e.log.WithError(err).WithField(axis.String(), coeff).Warn("candidate skipped")
			r.sink.Send(Failure{Err: fmt.Errorf("%s=%g: %w", axis, coeff, err)})
			e.yield()
			continue
		}

		st.offer(coeff, score)
		r.sink.Send(SweepSample{Axis: axis, Index: i, Coefficient: coeff, Score: score})
		e.log.WithFields(logrus.Fields{axis.String(): coeff, "score": score}).Debug("candidate scored")

		e.yield()
	}

	return st, nil
}

func (e *Engine) score(r *run, cfg spectral.Config) (float64, error) {
	if err := r.proc.Configure(cfg); err != nil {
		return 0, err
	}

	out, err := r.proc.ProcessFrame(r.region, r.depth)
	if err != nil {
		return 0, err
	}

	return r.params.Calculate(out, r.proc.LineLength()), nil
}

// preview processes the first line of the region with (d2, d3). A transient
// failure is reported and yields an empty A-scan.
func (e *Engine) preview(r *run, kind PreviewKind, d2, d3 float64) ([]float64, error) {
	line, err := rawdata.Line(r.region, r.geometry(), 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFrame, err)
	}

	err = r.proc.Configure(r.cfg.WithD2D3(d2, d3))
	var ascan []float64
	if err == nil {
		ascan, err = r.proc.ProcessFrame(line, r.depth)
	}
	if err != nil {
		if errors.Is(err, spectral.ErrConfiguration) {
			return nil, err
		}
		e.log.WithError(err).WithField("preview", kind).Warn("preview failed")
		r.sink.Send(Failure{Err: fmt.Errorf("%s preview: %w", kind, err)})
		return nil, nil
	}

	r.sink.Send(Preview{Kind: kind, D2: d2, D3: d3, Ascan: ascan})

	return ascan, nil
}

func (r *run) geometry() rawdata.Geometry {
	g := rawdata.Geometry{BitDepth: r.depth, SamplesPerLine: r.cfg.SamplesPerSpectrum}
	g.LinesPerFrame = len(r.region) / g.BytesPerLine()
	return g
}

// abort reports err as a fatal failure and returns it.
func (e *Engine) abort(sink ProgressSink, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		e.log.WithError(err).Info("dispersion estimation cancelled")
		sink.Send(Status{Text: "Estimation cancelled."})
	} else {
		e.log.WithError(err).Error("dispersion estimation failed")
	}
	sink.Send(Failure{Err: err, Fatal: true})

	return err
}
