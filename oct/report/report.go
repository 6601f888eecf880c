// Package report records dispersion estimation progress and renders it as
// an HTML page of line charts.
package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/cwbudde/algo-oct/oct/dispersion"
)

// ErrEmpty is returned when rendering before any sweep sample arrived.
var ErrEmpty = errors.New("report: nothing recorded")

// Recorder is a dispersion.ProgressSink that keeps the data of the latest
// estimation. A Started event clears the previous one.
type Recorder struct {
	mu       sync.Mutex
	d2, d3   []dispersion.SweepSample
	previews map[dispersion.PreviewKind]dispersion.Preview
	statuses []string
	failures []error
	result   *dispersion.Result
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{previews: make(map[dispersion.PreviewKind]dispersion.Preview)}
}

// Send records e.
func (r *Recorder) Send(e dispersion.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev := e.(type) {
	case dispersion.Started:
		r.d2, r.d3 = nil, nil
		r.previews = make(map[dispersion.PreviewKind]dispersion.Preview)
		r.failures = nil
		r.result = nil
	case dispersion.SweepSample:
		if ev.Axis == dispersion.AxisD2 {
			r.d2 = append(r.d2, ev)
		} else {
			r.d3 = append(r.d3, ev)
		}
	case dispersion.Preview:
		r.previews[ev.Kind] = ev
	case dispersion.Status:
		r.statuses = append(r.statuses, ev.Text)
	case dispersion.Failure:
		r.failures = append(r.failures, ev.Err)
	case dispersion.Finished:
		res := ev.Result
		r.result = &res
	}
}

// Statuses returns every status message received.
func (r *Recorder) Statuses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.statuses...)
}

// Failures returns the failures of the latest estimation.
func (r *Recorder) Failures() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.failures...)
}

// Result returns the final result, if the estimation finished.
func (r *Recorder) Result() (dispersion.Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.result == nil {
		return dispersion.Result{}, false
	}
	return *r.result, true
}

// Render writes an HTML page with both sweep curves and the before/after
// A-scans.
func (r *Recorder) Render(w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.d2) == 0 && len(r.d3) == 0 {
		return ErrEmpty
	}

	page := components.NewPage()
	page.SetPageTitle("Dispersion estimation")
	page.AddCharts(
		sweepChart(dispersion.AxisD2, r.d2, r.result),
		sweepChart(dispersion.AxisD3, r.d3, r.result),
	)
	if len(r.previews) > 0 {
		page.AddCharts(previewChart(r.previews))
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	return nil
}

// WriteFile renders the report to path.
func (r *Recorder) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}

	if err := r.Render(f); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

func sweepChart(axis dispersion.Axis, samples []dispersion.SweepSample, res *dispersion.Result) *charts.Line {
	x := make([]string, len(samples))
	y := make([]opts.LineData, len(samples))
	for i, s := range samples {
		x[i] = strconv.FormatFloat(s.Coefficient, 'g', 6, 64)
		y[i] = opts.LineData{Value: s.Score}
	}

	subtitle := ""
	if res != nil {
		subtitle = fmt.Sprintf("best %s = %g", axis, res.Coefficients[int(axis)])
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Sharpness over %s", axis),
			Subtitle: subtitle,
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: axis.String(), Type: "category"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "metric"}),
	)
	line.SetXAxis(x).AddSeries(axis.String(), y)

	return line
}

func previewChart(previews map[dispersion.PreviewKind]dispersion.Preview) *charts.Line {
	n := 0
	for _, p := range previews {
		n = max(n, len(p.Ascan))
	}

	x := make([]int, n)
	for i := range x {
		x[i] = i
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "A-scan before and after compensation"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "depth", Type: "category"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "amplitude"}),
	)
	line.SetXAxis(x)

	for _, kind := range []dispersion.PreviewKind{dispersion.PreviewBefore, dispersion.PreviewAfter} {
		p, ok := previews[kind]
		if !ok {
			continue
		}
		data := make([]opts.LineData, len(p.Ascan))
		for i, v := range p.Ascan {
			data[i] = opts.LineData{Value: v}
		}
		line.AddSeries(fmt.Sprintf("%s (d2=%g, d3=%g)", kind, p.D2, p.D3), data)
	}

	return line
}
