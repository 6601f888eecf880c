package settings

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/algo-oct/oct/estimator"
	"github.com/cwbudde/algo-oct/oct/metric"
	"github.com/cwbudde/algo-oct/oct/spectral"
)

const sample = `[Virtual%20OCT%20System]
bit_depth=16
width=2048
height=256
buffers_per_volume=4

[processing]
background_removal=true
background_removal_window_size=32
resampling=true
custom_resampling=true
resampling_c0=0.5
resampling_c1=2046
resampling_c2=-3
resampling_c3=1.5
dispersion_compensation=true
dispersion_compensation_d0=0
dispersion_compensation_d1=0
dispersion_compensation_d2=12.5
dispersion_compensation_d3=-4
windowing=false
log=true
min=30
max=90
coeff=2
addend=0.25

[dispersion_estimator]
number_of_center_ascans=20
use_linear_ascans=true
number_of_ascan_samples_to_ignore=15
sharpness_metric=3
metric_threshold=0.75
d2_start=-10
d2_end=30
d3_start=-5
d3_end=5
number_of_dispersion_samples=40
frame_nr=2
buffer_nr=-1
`

func writeSettings(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	return path
}

func TestLoadProcessing(t *testing.T) {
	f, err := Load(writeSettings(t, sample))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	p := f.Processing()

	if p.System.BitDepth != 16 || p.System.Width != 2048 || p.System.Height != 256 || p.System.BuffersPerVolume != 4 {
		t.Fatalf("system = %+v", p.System)
	}

	cfg := p.Config
	if cfg.SamplesPerSpectrum != 2048 || cfg.RollingAverageWindowSize != 32 {
		t.Fatalf("config sizes = %d, %d", cfg.SamplesPerSpectrum, cfg.RollingAverageWindowSize)
	}

	wantStages := spectral.Stages{
		RemoveDC:                 true,
		Resample:                 true,
		UseCustomResamplingCurve: true,
		CompensateDispersion:     true,
		ApplyWindow:              false,
		ComputeIFFT:              true,
		LogScale:                 true,
	}
	if cfg.Stages != wantStages {
		t.Fatalf("stages = %+v", cfg.Stages)
	}
	if cfg.Resampling != (spectral.Coefficients{0.5, 2046, -3, 1.5}) {
		t.Fatalf("resampling = %v", cfg.Resampling)
	}
	if cfg.Dispersion != (spectral.Coefficients{0, 0, 12.5, -4}) {
		t.Fatalf("dispersion = %v", cfg.Dispersion)
	}
	wantLog := spectral.LogScaleParams{Coeff: 2, Min: 30, Max: 90, Addend: 0.25}
	if cfg.LogScale != wantLog {
		t.Fatalf("log scale = %+v", cfg.LogScale)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("loaded config invalid: %v", err)
	}

	if want := filepath.Join(filepath.Dir(f.Path()), ResamplingFileName); p.CustomCurvePath != want {
		t.Fatalf("curve path = %q, want %q", p.CustomCurvePath, want)
	}
}

func TestProcessingDefaults(t *testing.T) {
	f, err := Load(writeSettings(t, "[processing]\ncustom_resampling_filepath=/data/curve.csv\n"))
	if err != nil {
		t.Fatal(err)
	}

	p := f.Processing()
	if p.System.BitDepth != 12 || p.System.Width != 1024 || p.System.Height != 512 {
		t.Fatalf("system defaults = %+v", p.System)
	}
	if p.Config.RollingAverageWindowSize != 64 {
		t.Fatalf("window size = %d", p.Config.RollingAverageWindowSize)
	}
	st := p.Config.Stages
	if st.RemoveDC || st.Resample || st.CompensateDispersion || !st.ApplyWindow || !st.LogScale {
		t.Fatalf("stage defaults = %+v", st)
	}
	if p.Config.LogScale.Max != 100 || p.Config.LogScale.AutoComputeMinMax {
		t.Fatalf("log defaults = %+v", p.Config.LogScale)
	}
	if p.CustomCurvePath != "/data/curve.csv" {
		t.Fatalf("curve path = %q", p.CustomCurvePath)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), FileName))
	if !errors.Is(err, ErrSettingsNotFound) || !errors.Is(err, spectral.ErrResourceLoad) {
		t.Fatalf("err = %v, want ErrSettingsNotFound", err)
	}
}

func TestEstimatorParams(t *testing.T) {
	f, err := Load(writeSettings(t, sample))
	if err != nil {
		t.Fatal(err)
	}

	p, err := f.Estimator()
	if err != nil {
		t.Fatalf("Estimator: %v", err)
	}

	s := p.Search
	if s.CenterLines != 20 || !s.LinearAscans || s.SamplesToIgnore != 15 || s.Metric != metric.MeanSobel {
		t.Fatalf("search = %+v", s)
	}
	if s.Threshold != 0.75 || s.D2Start != -10 || s.D2End != 30 || s.D3Start != -5 || s.D3End != 5 || s.Samples != 40 {
		t.Fatalf("search ranges = %+v", s)
	}
	if p.FrameNr != 2 || p.BufferNr != estimator.AnyBuffer {
		t.Fatalf("selection = %d, %d", p.FrameNr, p.BufferNr)
	}
}

func TestEstimatorMetricByName(t *testing.T) {
	f, err := Load(writeSettings(t, "[dispersion_estimator]\nsharpness_metric=peak_value\n"))
	if err != nil {
		t.Fatal(err)
	}

	p, err := f.Estimator()
	if err != nil {
		t.Fatal(err)
	}
	if p.Search.Metric != metric.PeakValue {
		t.Fatalf("metric = %v", p.Search.Metric)
	}
	if p.Search.Samples != estimator.DefaultParams().Search.Samples {
		t.Fatalf("samples default = %d", p.Search.Samples)
	}

	f, err = Load(writeSettings(t, "[dispersion_estimator]\nsharpness_metric=contrast\n"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Estimator(); !errors.Is(err, ErrSettingsFormat) {
		t.Fatalf("err = %v, want ErrSettingsFormat", err)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	f := New(path)

	want := estimator.DefaultParams()
	want.Search.Metric = metric.SamplesAboveThreshold
	want.Search.D2Start = -12.25
	want.FrameNr = 3
	want.BufferNr = 1

	if err := f.StoreParams(want); err != nil {
		t.Fatalf("StoreParams: %v", err)
	}
	if err := f.SetDispersionCoefficients(spectral.Coefficients{1, 2, 3.5, -0.125}); err != nil {
		t.Fatalf("SetDispersionCoefficients: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	got, err := loaded.Estimator()
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("params = %+v, want %+v", got, want)
	}

	if d := loaded.Processing().Config.Dispersion; d != (spectral.Coefficients{1, 2, 3.5, -0.125}) {
		t.Fatalf("dispersion = %v", d)
	}
}

var _ estimator.ConfigSink = (*File)(nil)
