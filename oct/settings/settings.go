package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/ini.v1"

	"github.com/cwbudde/algo-oct/oct/dispersion"
	"github.com/cwbudde/algo-oct/oct/estimator"
	"github.com/cwbudde/algo-oct/oct/metric"
	"github.com/cwbudde/algo-oct/oct/rawdata"
	"github.com/cwbudde/algo-oct/oct/spectral"
)

// File and section names.
const (
	FileName           = "settings.ini"
	ResamplingFileName = "resampling.csv"

	SystemSection     = "Virtual OCT System"
	ProcessingSection = "processing"
	EstimatorSection  = "dispersion_estimator"
)

// Errors returned by settings functions.
var (
	ErrSettingsNotFound = fmt.Errorf("%w: settings file not found", spectral.ErrResourceLoad)
	ErrSettingsFormat   = fmt.Errorf("%w: malformed settings file", spectral.ErrResourceLoad)
)

// System describes the acquisition geometry.
type System struct {
	BitDepth         rawdata.BitDepth
	Width            int
	Height           int
	BuffersPerVolume int
}

// Geometry returns the frame layout.
func (s System) Geometry() rawdata.Geometry {
	return rawdata.Geometry{
		BitDepth:       s.BitDepth,
		SamplesPerLine: s.Width,
		LinesPerFrame:  s.Height,
	}
}

// Processing is the parsed processing configuration.
type Processing struct {
	System System
	Config spectral.Config
	// CustomCurvePath is the custom resampling curve file.
	CustomCurvePath string
}

// DefaultDir returns the per-user configuration directory of the
// acquisition software.
func DefaultDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("settings dir: %w", err)
	}
	return dir, nil
}

// File is a loaded settings file. It is safe for concurrent use.
type File struct {
	path string

	mu  sync.Mutex
	ini *ini.File
}

// Load parses the settings file at path.
func Load(path string) (*File, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSettingsNotFound, path)
		}
		return nil, fmt.Errorf("%w: %w", ErrSettingsFormat, err)
	}

	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSettingsFormat, path, err)
	}

	return &File{path: path, ini: f}, nil
}

// New returns an empty settings file that saves to path.
func New(path string) *File {
	return &File{path: path, ini: ini.Empty()}
}

// Path returns the file location.
func (f *File) Path() string {
	return f.path
}

// section returns the named section. Writers that percent-encode spaces in
// group names are accepted too.
func (f *File) section(name string) *ini.Section {
	if s, err := f.ini.GetSection(name); err == nil {
		return s
	}
	if s, err := f.ini.GetSection(strings.ReplaceAll(name, " ", "%20")); err == nil {
		return s
	}
	return f.ini.Section(name)
}

// Processing parses the acquisition and processing sections. Missing keys
// take their defaults. The log scale range is taken from the file, so
// automatic range detection is off.
func (f *File) Processing() Processing {
	f.mu.Lock()
	defer f.mu.Unlock()

	sys := f.section(SystemSection)
	s := System{
		BitDepth:         rawdata.BitDepth(sys.Key("bit_depth").MustInt(12)),
		Width:            sys.Key("width").MustInt(1024),
		Height:           sys.Key("height").MustInt(512),
		BuffersPerVolume: sys.Key("buffers_per_volume").MustInt(1),
	}

	p := f.section(ProcessingSection)
	cfg := spectral.DefaultConfig(s.Width)
	cfg.RollingAverageWindowSize = p.Key("background_removal_window_size").MustInt(64)
	cfg.Stages = spectral.Stages{
		RemoveDC:                 p.Key("background_removal").MustBool(false),
		Resample:                 p.Key("resampling").MustBool(false),
		UseCustomResamplingCurve: p.Key("custom_resampling").MustBool(false),
		CompensateDispersion:     p.Key("dispersion_compensation").MustBool(false),
		ApplyWindow:              p.Key("windowing").MustBool(true),
		ComputeIFFT:              true,
		LogScale:                 p.Key("log").MustBool(true),
	}
	cfg.Resampling = coefficients(p, "resampling_c")
	cfg.Dispersion = coefficients(p, "dispersion_compensation_d")
	cfg.LogScale = spectral.LogScaleParams{
		Coeff:  p.Key("coeff").MustFloat64(1),
		Min:    p.Key("min").MustFloat64(0),
		Max:    p.Key("max").MustFloat64(100),
		Addend: p.Key("addend").MustFloat64(0),
	}

	curve := p.Key("custom_resampling_filepath").String()
	if curve == "" {
		curve = filepath.Join(filepath.Dir(f.path), ResamplingFileName)
	}

	return Processing{System: s, Config: cfg, CustomCurvePath: curve}
}

func coefficients(s *ini.Section, prefix string) spectral.Coefficients {
	var c spectral.Coefficients
	for i := range c {
		c[i] = s.Key(prefix + strconv.Itoa(i)).MustFloat64(0)
	}
	return c
}

// Estimator parses the dispersion estimator section. The metric may be
// stored as its number or its name.
func (f *File) Estimator() (estimator.Params, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	def := estimator.DefaultParams()
	s := f.section(EstimatorSection)

	kind, err := parseKind(s.Key("sharpness_metric").String(), def.Search.Metric)
	if err != nil {
		return def, fmt.Errorf("%w: %w", ErrSettingsFormat, err)
	}

	p := estimator.Params{
		Search: dispersion.SearchConfig{
			CenterLines:     s.Key("number_of_center_ascans").MustInt(def.Search.CenterLines),
			SamplesToIgnore: s.Key("number_of_ascan_samples_to_ignore").MustInt(def.Search.SamplesToIgnore),
			Metric:          kind,
			Threshold:       s.Key("metric_threshold").MustFloat64(def.Search.Threshold),
			D2Start:         s.Key("d2_start").MustFloat64(def.Search.D2Start),
			D2End:           s.Key("d2_end").MustFloat64(def.Search.D2End),
			D3Start:         s.Key("d3_start").MustFloat64(def.Search.D3Start),
			D3End:           s.Key("d3_end").MustFloat64(def.Search.D3End),
			Samples:         s.Key("number_of_dispersion_samples").MustInt(def.Search.Samples),
			LinearAscans:    s.Key("use_linear_ascans").MustBool(def.Search.LinearAscans),
		},
		FrameNr:  s.Key("frame_nr").MustInt(def.FrameNr),
		BufferNr: s.Key("buffer_nr").MustInt(def.BufferNr),
	}

	if err := p.Search.Validate(); err != nil {
		return def, fmt.Errorf("%w: %w", ErrSettingsFormat, err)
	}

	return p, nil
}

func parseKind(raw string, def metric.Kind) (metric.Kind, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return metric.Kind(n), nil
	}
	return metric.ParseKind(raw)
}

// StoreParams writes p to the estimator section and saves the file.
func (f *File) StoreParams(p estimator.Params) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := f.section(EstimatorSection)
	setInt(s, "number_of_center_ascans", p.Search.CenterLines)
	setBool(s, "use_linear_ascans", p.Search.LinearAscans)
	setInt(s, "number_of_ascan_samples_to_ignore", p.Search.SamplesToIgnore)
	setInt(s, "sharpness_metric", int(p.Search.Metric))
	setFloat(s, "metric_threshold", p.Search.Threshold)
	setFloat(s, "d2_start", p.Search.D2Start)
	setFloat(s, "d2_end", p.Search.D2End)
	setFloat(s, "d3_start", p.Search.D3Start)
	setFloat(s, "d3_end", p.Search.D3End)
	setInt(s, "number_of_dispersion_samples", p.Search.Samples)
	setInt(s, "frame_nr", p.FrameNr)
	setInt(s, "buffer_nr", p.BufferNr)

	return f.save()
}

// SetDispersionCoefficients writes c to the processing section and saves
// the file.
func (f *File) SetDispersionCoefficients(c spectral.Coefficients) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := f.section(ProcessingSection)
	for i, v := range c {
		setFloat(s, "dispersion_compensation_d"+strconv.Itoa(i), v)
	}

	return f.save()
}

// Save writes the file to its path.
func (f *File) Save() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.save()
}

func (f *File) save() error {
	if err := f.ini.SaveTo(f.path); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func setInt(s *ini.Section, key string, v int) {
	s.Key(key).SetValue(strconv.Itoa(v))
}

func setBool(s *ini.Section, key string, v bool) {
	s.Key(key).SetValue(strconv.FormatBool(v))
}

func setFloat(s *ini.Section, key string, v float64) {
	s.Key(key).SetValue(strconv.FormatFloat(v, 'g', -1, 64))
}
