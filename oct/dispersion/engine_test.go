package dispersion

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/cwbudde/algo-oct/internal/testutil"
	"github.com/cwbudde/algo-oct/oct/metric"
	"github.com/cwbudde/algo-oct/oct/spectral"
)

func fringeFrame(samples, lines int, depth, d2 float64) Frame {
	return Frame{
		Data:           testutil.FringeFrame(samples, lines, 2, 2000, 800, depth, d2),
		BitDepth:       16,
		SamplesPerLine: samples,
		LinesPerFrame:  lines,
	}
}

func constantFrame(samples, lines int) Frame {
	return Frame{
		Data:           testutil.ConstantFrame(2048, samples, lines, 2),
		BitDepth:       16,
		SamplesPerLine: samples,
		LinesPerFrame:  lines,
	}
}

func newTestEngine(samples int, opts ...Option) *Engine {
	logger, _ := test.NewNullLogger()
	return NewEngine(spectral.DefaultConfig(samples), append([]Option{WithLogger(logger)}, opts...)...)
}

func TestD2SweepPrecedesD3Sweep(t *testing.T) {
	const n = 128

	search := SearchConfig{
		CenterLines: 2,
		Metric:      metric.SumAboveThreshold,
		D2Start:     0,
		D2End:       10,
		D3Start:     0,
		D3End:       10,
		Samples:     10,
	}

	rec := &Recorder{}
	if _, err := newTestEngine(n).Estimate(context.Background(), fringeFrame(n, 4, 10, 0), search, rec); err != nil {
		t.Fatalf("Estimate: %v", err)
	}

	var d2 []float64
	d3Seen := 0
	for _, e := range rec.Events() {
		s, ok := e.(SweepSample)
		if !ok {
			continue
		}
		switch s.Axis {
		case AxisD2:
			if d3Seen > 0 {
				t.Fatal("d2 sample emitted after the d3 sweep started")
			}
			d2 = append(d2, s.Coefficient)
		case AxisD3:
			d3Seen++
		}
	}

	testutil.RequireSliceNearlyEqual(t, d2, []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, 0)
	if d3Seen != 10 {
		t.Fatalf("d3 samples = %d, want 10", d3Seen)
	}
}

func TestEstimateRecoversDispersion(t *testing.T) {
	const n = 256

	search := SearchConfig{
		CenterLines:     4,
		SamplesToIgnore: 5,
		Metric:          metric.PeakValue,
		D2Start:         0,
		D2End:           20,
		D3Start:         -5,
		D3End:           15,
		Samples:         20,
		LinearAscans:    true,
	}

	res, err := newTestEngine(n).Estimate(context.Background(), fringeFrame(n, 8, 20, 10), search, nil)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}

	if res.D2() != 10 {
		t.Fatalf("best d2 = %v, want 10", res.D2())
	}
	if res.D3() != 0 {
		t.Fatalf("best d3 = %v, want 0", res.D3())
	}
	if res.BestD2Score <= 0 || res.BestD3Score < res.BestD2Score {
		t.Fatalf("scores d2=%v d3=%v", res.BestD2Score, res.BestD3Score)
	}
}

func TestTieKeepsEarliestCandidate(t *testing.T) {
	const n = 64

	search := SearchConfig{
		CenterLines:  3,
		Metric:       metric.SamplesAboveThreshold,
		Threshold:    -1,
		D2Start:      3,
		D2End:        13,
		D3Start:      -2,
		D3End:        8,
		Samples:      5,
		LinearAscans: true,
	}

	rec := &Recorder{}
	res, err := newTestEngine(n).Estimate(context.Background(), constantFrame(n, 5), search, rec)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}

	if res.D2() != 3 || res.D3() != -2 {
		t.Fatalf("best = (%v, %v), want (3, -2)", res.D2(), res.D3())
	}

	for _, s := range rec.Samples(AxisD2) {
		if s.Score != 3*n/2 {
			t.Fatalf("score = %v, want %d", s.Score, 3*n/2)
		}
	}
}

func TestEstimatePreviewAndResult(t *testing.T) {
	const n = 128

	search := DefaultSearchConfig()
	search.Samples = 4
	search.D2Start, search.D2End = -2, 2
	search.D3Start, search.D3End = -2, 2

	engine := newTestEngine(n)
	engine.SetProcessingConfig(spectral.DefaultConfig(n).WithDispersion(spectral.Coefficients{0.5, 0.25, 7, 7}))

	rec := &Recorder{}
	res, err := engine.Estimate(context.Background(), fringeFrame(n, 6, 12, 0), search, rec)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}

	if res.Coefficients[0] != 0.5 || res.Coefficients[1] != 0.25 {
		t.Fatalf("d0/d1 not handed back: %v", res.Coefficients)
	}
	if len(res.Before) != n/2 || len(res.After) != n/2 {
		t.Fatalf("preview lengths = %d, %d, want %d", len(res.Before), len(res.After), n/2)
	}

	var previews []Preview
	var finished []Finished
	var best []BestCoefficient
	for _, e := range rec.Events() {
		switch ev := e.(type) {
		case Preview:
			previews = append(previews, ev)
		case Finished:
			finished = append(finished, ev)
		case BestCoefficient:
			best = append(best, ev)
		}
	}

	if len(previews) != 2 || previews[0].Kind != PreviewBefore || previews[1].Kind != PreviewAfter {
		t.Fatalf("previews = %+v", previews)
	}
	if previews[0].D2 != 0 || previews[0].D3 != 0 {
		t.Fatalf("before preview used (%v, %v)", previews[0].D2, previews[0].D3)
	}
	if previews[1].D2 != res.D2() || previews[1].D3 != res.D3() {
		t.Fatalf("after preview used (%v, %v), want best", previews[1].D2, previews[1].D3)
	}
	if len(best) != 2 || best[0].Axis != AxisD2 || best[1].Axis != AxisD3 {
		t.Fatalf("best events = %+v", best)
	}
	if len(finished) != 1 || finished[0].Result.Coefficients != res.Coefficients {
		t.Fatalf("finished events = %+v", finished)
	}
	if _, ok := rec.Events()[1].(Started); !ok {
		t.Fatalf("second event = %T, want Started", rec.Events()[1])
	}
	if engine.ProcessingConfig().Dispersion[2] != 7 {
		t.Fatal("estimation modified the engine processing config")
	}
}

func TestEstimateConfigurationErrorsAbort(t *testing.T) {
	const n = 64

	short := constantFrame(n, 4)
	short.Data = short.Data[:len(short.Data)/2]

	noLines := constantFrame(n, 4)
	noLines.LinesPerFrame = 0

	badDepth := constantFrame(n, 4)
	badDepth.BitDepth = 0

	valid := DefaultSearchConfig()
	valid.Samples = 3

	noSamples := valid
	noSamples.Samples = 0

	tests := []struct {
		name   string
		frame  Frame
		search SearchConfig
		want   error
	}{
		{name: "zero lines", frame: noLines, search: valid, want: ErrFrame},
		{name: "bad bit depth", frame: badDepth, search: valid, want: ErrFrame},
		{name: "short buffer", frame: short, search: valid, want: ErrFrame},
		{name: "no sweep samples", frame: constantFrame(n, 4), search: noSamples, want: ErrSearchConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &Recorder{}
			_, err := newTestEngine(n).Estimate(context.Background(), tt.frame, tt.search, rec)
			if !errors.Is(err, tt.want) || !errors.Is(err, spectral.ErrConfiguration) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}

			events := rec.Events()
			last, ok := events[len(events)-1].(Failure)
			if !ok || !last.Fatal {
				t.Fatalf("last event = %#v, want fatal Failure", events[len(events)-1])
			}
			if len(rec.Samples(AxisD2)) != 0 {
				t.Fatal("sweep ran after configuration error")
			}
		})
	}
}

func TestEstimateCancelledBetweenSamples(t *testing.T) {
	const n = 64

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	engine := newTestEngine(n, WithYield(func() {
		calls++
		if calls == 3 {
			cancel()
		}
	}))

	search := DefaultSearchConfig()
	search.Samples = 10

	rec := &Recorder{}
	_, err := engine.Estimate(ctx, constantFrame(n, 4), search, rec)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if got := len(rec.Samples(AxisD2)); got != 3 {
		t.Fatalf("d2 samples = %d, want 3", got)
	}
	if got := len(rec.Samples(AxisD3)); got != 0 {
		t.Fatalf("d3 samples = %d, want 0", got)
	}
}

func TestMissingCustomCurveIsNotFatal(t *testing.T) {
	const n = 64

	st := spectral.DefaultStages()
	st.UseCustomResamplingCurve = true

	logger, hook := test.NewNullLogger()
	engine := NewEngine(spectral.DefaultConfig(n).WithStages(st),
		WithLogger(logger),
		WithCustomCurvePath(filepath.Join(t.TempDir(), "resampling.csv")))

	search := DefaultSearchConfig()
	search.Samples = 2

	rec := &Recorder{}
	if _, err := engine.Estimate(context.Background(), constantFrame(n, 4), search, rec); err != nil {
		t.Fatalf("Estimate: %v", err)
	}

	var failures []Failure
	for _, e := range rec.Events() {
		if f, ok := e.(Failure); ok {
			failures = append(failures, f)
		}
	}
	if len(failures) != 1 || failures[0].Fatal || !errors.Is(failures[0].Err, spectral.ErrCurveNotFound) {
		t.Fatalf("failures = %+v", failures)
	}
	if len(hook.Entries) == 0 {
		t.Fatal("expected the curve failure to be logged")
	}
}

func statuses(rec *Recorder) []string {
	var out []string
	for _, e := range rec.Events() {
		if s, ok := e.(Status); ok {
			out = append(out, s.Text)
		}
	}
	return out
}

func hasStatus(rec *Recorder, substr string) bool {
	for _, s := range statuses(rec) {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}

func TestFailedCurveLoadDropsPreviousCurve(t *testing.T) {
	const n = 64

	var b strings.Builder
	b.WriteString("index;value\n")
	for i := 0; i < n; i++ {
		b.WriteString("0;5\n")
	}
	path := filepath.Join(t.TempDir(), "resampling.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		t.Fatal(err)
	}

	st := spectral.DefaultStages()
	st.UseCustomResamplingCurve = true

	logger, _ := test.NewNullLogger()
	engine := NewEngine(spectral.DefaultConfig(n).WithStages(st), WithLogger(logger), WithCustomCurvePath(path))

	search := DefaultSearchConfig()
	search.Samples = 2

	if _, err := engine.Estimate(context.Background(), constantFrame(n, 4), search, &Recorder{}); err != nil {
		t.Fatalf("first Estimate: %v", err)
	}
	if got := engine.proc.ResamplingCurve()[10]; got != 5 {
		t.Fatalf("curve[10] = %v after loading the custom curve, want 5", got)
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	rec := &Recorder{}
	if _, err := engine.Estimate(context.Background(), constantFrame(n, 4), search, rec); err != nil {
		t.Fatalf("second Estimate: %v", err)
	}
	if !hasStatus(rec, "using polynomial curve") {
		t.Fatalf("statuses = %q", statuses(rec))
	}
	if got := engine.proc.ResamplingCurve()[10]; got != 10 {
		t.Fatalf("curve[10] = %v after the failed load, want polynomial value 10", got)
	}
}

func TestCustomCurveWithoutPathIsReported(t *testing.T) {
	const n = 64

	st := spectral.DefaultStages()
	st.UseCustomResamplingCurve = true

	logger, hook := test.NewNullLogger()
	engine := NewEngine(spectral.DefaultConfig(n).WithStages(st), WithLogger(logger))

	search := DefaultSearchConfig()
	search.Samples = 2

	rec := &Recorder{}
	if _, err := engine.Estimate(context.Background(), constantFrame(n, 4), search, rec); err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if !hasStatus(rec, "No custom resampling curve configured") {
		t.Fatalf("statuses = %q", statuses(rec))
	}

	warned := false
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel && strings.Contains(entry.Message, "without a curve path") {
			warned = true
		}
	}
	if !warned {
		t.Fatal("expected a warning for the missing curve path")
	}
}

func TestFrameWidthMismatchWarnsWhenResampling(t *testing.T) {
	logger, hook := test.NewNullLogger()
	engine := NewEngine(spectral.DefaultConfig(128), WithLogger(logger))

	search := DefaultSearchConfig()
	search.Samples = 2

	if _, err := engine.Estimate(context.Background(), constantFrame(64, 4), search, &Recorder{}); err != nil {
		t.Fatalf("Estimate: %v", err)
	}

	warned := false
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel && strings.Contains(entry.Message, "not rescaled") {
			warned = true
		}
	}
	if !warned {
		t.Fatal("expected a warning for the unscaled resampling coefficients")
	}
}

func TestTransientFailureSkipsCandidate(t *testing.T) {
	const n = 64

	search := DefaultSearchConfig()
	search.Metric = metric.PeakValue
	search.LinearAscans = true
	search.Samples = 4
	search.D2Start = -math.MaxFloat64
	search.D2End = math.MaxFloat64
	search.D3Start = 0
	search.D3End = 4

	rec := &Recorder{}
	res, err := newTestEngine(n).Estimate(context.Background(), fringeFrame(n, 4, 10, 0), search, rec)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}

	failures := 0
	for _, e := range rec.Events() {
		f, ok := e.(Failure)
		if !ok {
			continue
		}
		if f.Fatal || !errors.Is(f.Err, spectral.ErrTransient) {
			t.Fatalf("failure = %+v, want a non-fatal transient failure", f)
		}
		failures++
	}
	if failures != search.Samples {
		t.Fatalf("failures = %d, want %d", failures, search.Samples)
	}

	if res.D2() != 0 || res.BestD2Score != 0 {
		t.Fatalf("best d2 = %v (score %v), want untouched 0", res.D2(), res.BestD2Score)
	}
	if got := len(rec.Samples(AxisD2)); got != 0 {
		t.Fatalf("d2 samples = %d, want 0", got)
	}
	if got := len(rec.Samples(AxisD3)); got != search.Samples {
		t.Fatalf("d3 samples = %d, want %d", got, search.Samples)
	}
}

func TestSearchConfigSteps(t *testing.T) {
	c := SearchConfig{D2Start: 10, D2End: 0, D3Start: -4, D3End: 4, Samples: 8}

	if got := c.StepD2(); got != 1.25 {
		t.Fatalf("StepD2 = %v, want 1.25", got)
	}
	if got := c.StepD3(); got != 1 {
		t.Fatalf("StepD3 = %v, want 1", got)
	}
	if got := (SearchConfig{}).StepD2(); got != 0 {
		t.Fatalf("StepD2 with no samples = %v", got)
	}
}

func TestSearchConfigValidate(t *testing.T) {
	if err := DefaultSearchConfig().Validate(); err != nil {
		t.Fatalf("default config: %v", err)
	}

	bad := DefaultSearchConfig()
	bad.Metric = metric.Kind(42)
	if err := bad.Validate(); !errors.Is(err, ErrSearchConfig) || !errors.Is(err, metric.ErrUnknownKind) {
		t.Fatalf("err = %v", err)
	}

	bad = DefaultSearchConfig()
	bad.CenterLines = 0
	if err := bad.Validate(); !errors.Is(err, ErrSearchConfig) {
		t.Fatalf("err = %v", err)
	}
}
