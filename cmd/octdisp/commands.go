package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-oct/oct/dispersion"
	"github.com/cwbudde/algo-oct/oct/estimator"
	"github.com/cwbudde/algo-oct/oct/metric"
	"github.com/cwbudde/algo-oct/oct/rawdata"
	"github.com/cwbudde/algo-oct/oct/report"
	"github.com/cwbudde/algo-oct/oct/settings"
	"github.com/cwbudde/algo-oct/oct/spectral"
)

type globalOptions struct {
	settingsPath string
	logLevel     string

	rawPath         string
	bitDepth        int
	width           int
	height          int
	framesPerBuffer int
}

type estimateOptions struct {
	frameNr    int
	bufferNr   int
	samples    int
	metric     string
	linear     bool
	reportPath string
	apply      bool
}

type processOptions struct {
	outPath string
	frameNr int
	d2      float64
	d3      float64
}

func (o *globalOptions) setupLogging() error {
	level, err := log.ParseLevel(o.logLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	return nil
}

// loadSettings opens the settings file. A missing file yields defaults.
func (o *globalOptions) loadSettings() (*settings.File, error) {
	path := o.settingsPath
	if path == "" {
		dir, err := settings.DefaultDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, settings.FileName)
	}

	f, err := settings.Load(path)
	if errors.Is(err, settings.ErrSettingsNotFound) {
		log.WithField("path", path).Warn("settings file not found, using defaults")
		return settings.New(path), nil
	}
	return f, err
}

// processing applies the geometry overrides to the stored configuration.
func (o *globalOptions) processing(f *settings.File) settings.Processing {
	p := f.Processing()
	if o.bitDepth > 0 {
		p.System.BitDepth = rawdata.BitDepth(o.bitDepth)
	}
	if o.width > 0 {
		p.System.Width = o.width
		p.Config.SamplesPerSpectrum = o.width
	}
	if o.height > 0 {
		p.System.Height = o.height
	}
	return p
}

func runEstimate(ctx context.Context, opts *globalOptions, est *estimateOptions) error {
	f, err := opts.loadSettings()
	if err != nil {
		return err
	}
	proc := opts.processing(f)

	params, err := f.Estimator()
	if err != nil {
		return err
	}
	if err := est.override(&params); err != nil {
		return err
	}

	raw, err := os.Open(opts.rawPath)
	if err != nil {
		return err
	}
	defer raw.Close()

	src, err := newFileSource(raw, proc.System.Geometry(), opts.framesPerBuffer, proc.System.BuffersPerVolume)
	if err != nil {
		return err
	}

	engine := dispersion.NewEngine(proc.Config,
		dispersion.WithLogger(log.StandardLogger()),
		dispersion.WithCustomCurvePath(proc.CustomCurvePath))

	rec := report.NewRecorder()
	sink := dispersion.MultiSink{rec, dispersion.SinkFunc(logEvent)}

	var config estimator.ConfigSink
	if est.apply {
		config = f
	}

	type outcome struct {
		res dispersion.Result
		err error
	}
	done := make(chan outcome, 1)

	e := estimator.New(engine, config, sink,
		estimator.WithLogger(log.StandardLogger()),
		estimator.WithParams(params),
		estimator.WithDoneHandler(func(res dispersion.Result, err error) {
			done <- outcome{res, err}
		}))
	defer e.Close()

	e.Activate()
	e.RequestSingleFetch()
	if err := e.Run(ctx, src); err != nil {
		return err
	}

	if e.Pending() {
		return fmt.Errorf("no buffer matched frame %d of buffer %d", params.FrameNr, params.BufferNr)
	}

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if out.err != nil {
		return out.err
	}

	fmt.Printf("d2 = %g (score %g)\n", out.res.D2(), out.res.BestD2Score)
	fmt.Printf("d3 = %g (score %g)\n", out.res.D3(), out.res.BestD3Score)

	if est.reportPath != "" {
		if err := rec.WriteFile(est.reportPath); err != nil {
			return err
		}
		log.WithField("path", est.reportPath).Info("report written")
	}

	return nil
}

func (o *estimateOptions) override(p *estimator.Params) error {
	if o.frameNr >= 0 {
		p.FrameNr = o.frameNr
	}
	if o.bufferNr >= estimator.AnyBuffer {
		p.BufferNr = o.bufferNr
	}
	if o.samples > 0 {
		p.Search.Samples = o.samples
	}
	if o.metric != "" {
		k, err := metric.ParseKind(o.metric)
		if err != nil {
			return err
		}
		p.Search.Metric = k
	}
	if o.linear {
		p.Search.LinearAscans = true
	}
	return p.Search.Validate()
}

func metricUsage() string {
	names := make([]string, 0, len(metric.Kinds()))
	for _, k := range metric.Kinds() {
		names = append(names, k.String())
	}
	return "Sharpness metric (" + strings.Join(names, ", ") + ")"
}

func logEvent(ev dispersion.Event) {
	switch e := ev.(type) {
	case dispersion.Status:
		log.Info(e.Text)
	case dispersion.Failure:
		entry := log.WithError(e.Err)
		if e.Fatal {
			entry.Error("estimation failed")
		} else {
			entry.Warn("estimation problem")
		}
	case dispersion.BestCoefficient:
		log.WithFields(log.Fields{
			"axis":  e.Axis,
			"value": e.Value,
			"score": e.Score,
		}).Info("best coefficient")
	case dispersion.SweepSample:
		log.WithFields(log.Fields{
			"axis":  e.Axis,
			"index": e.Index,
			"coeff": e.Coefficient,
			"score": e.Score,
		}).Debug("sweep sample")
	}
}

func runProcess(opts *globalOptions, po *processOptions) error {
	f, err := opts.loadSettings()
	if err != nil {
		return err
	}
	proc := opts.processing(f)

	cfg := proc.Config
	if po.d2 != 0 || po.d3 != 0 {
		cfg = cfg.WithD2D3(po.d2, po.d3)
		cfg.Stages.CompensateDispersion = true
	}

	p, err := spectral.NewProcessor(cfg, spectral.WithLogger(log.StandardLogger()))
	if err != nil {
		return err
	}
	if cfg.Stages.UseCustomResamplingCurve {
		if err := p.LoadCustomResamplingCurve(proc.CustomCurvePath); err != nil {
			log.WithError(err).Warn("custom resampling curve not loaded")
		}
	}

	g := proc.System.Geometry()
	frame, err := readFrame(opts.rawPath, g, po.frameNr)
	if err != nil {
		return err
	}

	ascans, err := p.ProcessFrame(frame, g.BitDepth)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if po.outPath != "" {
		out, err := os.Create(po.outPath)
		if err != nil {
			return err
		}
		defer out.Close()
		w = out
	}

	return writeAscans(w, ascans, p.LineLength())
}

// writeAscans writes one A-scan per row, separated by semicolons.
func writeAscans(w io.Writer, ascans []float64, lineLength int) error {
	row := make([]byte, 0, lineLength*12)
	for start := 0; start+lineLength <= len(ascans); start += lineLength {
		row = row[:0]
		for i, v := range ascans[start : start+lineLength] {
			if i > 0 {
				row = append(row, ';')
			}
			row = strconv.AppendFloat(row, v, 'g', 6, 64)
		}
		row = append(row, '\n')
		if _, err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}
