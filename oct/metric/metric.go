package metric

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Errors returned by metric functions.
var (
	ErrUnknownKind      = errors.New("metric: unknown metric kind")
	ErrNegativeIgnore   = errors.New("metric: samples to ignore must be >= 0")
	ErrInvalidThreshold = errors.New("metric: threshold must be finite")
)

// Kind selects the per-line sharpness measure.
type Kind int

const (
	// SumAboveThreshold sums the samples greater than the threshold.
	SumAboveThreshold Kind = iota
	// SamplesAboveThreshold counts the samples greater than the threshold.
	SamplesAboveThreshold
	// PeakValue is the largest sample, floored at 0.
	PeakValue
	// MeanSobel is the mean absolute central difference over interior samples.
	MeanSobel
)

var kindNames = [...]string{
	SumAboveThreshold:     "sum_above_threshold",
	SamplesAboveThreshold: "samples_above_threshold",
	PeakValue:             "peak_value",
	MeanSobel:             "mean_sobel",
}

// Kinds lists every supported metric kind.
func Kinds() []Kind {
	return []Kind{SumAboveThreshold, SamplesAboveThreshold, PeakValue, MeanSobel}
}

// String returns the snake_case name of the kind.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k >= 0 && int(k) < len(kindNames)
}

// ParseKind converts a kind name (case-insensitive, '-' or '_' separated)
// back to a Kind.
func ParseKind(name string) (Kind, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	for k, n := range kindNames {
		if n == norm {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// Params configures Calculate.
type Params struct {
	Kind            Kind
	Threshold       float64
	SamplesToIgnore int
}

// Validate checks the parameters.
func (p Params) Validate() error {
	if !p.Kind.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownKind, int(p.Kind))
	}
	if p.SamplesToIgnore < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeIgnore, p.SamplesToIgnore)
	}
	if math.IsNaN(p.Threshold) || math.IsInf(p.Threshold, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidThreshold, p.Threshold)
	}
	return nil
}

// Calculate returns the sum of the per-line scores of data, split into lines
// of samplesPerLine samples. A trailing partial line is ignored. Lines with
// no samples left after skipping contribute nothing. It returns 0 for empty
// data or a non-positive line length.
func (p Params) Calculate(data []float64, samplesPerLine int) float64 {
	if samplesPerLine <= 0 || len(data) == 0 {
		return 0
	}

	skip := min(max(p.SamplesToIgnore, 0), samplesPerLine)
	if skip == samplesPerLine {
		return 0
	}

	lines := len(data) / samplesPerLine
	total := 0.0
	for l := 0; l < lines; l++ {
		start := l * samplesPerLine
		total += p.Line(data[start+skip : start+samplesPerLine])
	}

	return total
}

// Line scores a single line without skipping any samples.
func (p Params) Line(line []float64) float64 {
	switch p.Kind {
	case SumAboveThreshold:
		return sumAbove(line, p.Threshold)
	case SamplesAboveThreshold:
		return countAbove(line, p.Threshold)
	case PeakValue:
		return peak(line)
	case MeanSobel:
		return meanSobel(line)
	default:
		return 0
	}
}

func sumAbove(line []float64, thr float64) float64 {
	sum := 0.0
	for _, v := range line {
		if v > thr {
			sum += v
		}
	}
	return sum
}

func countAbove(line []float64, thr float64) float64 {
	n := 0
	for _, v := range line {
		if v > thr {
			n++
		}
	}
	return float64(n)
}

func peak(line []float64) float64 {
	if len(line) == 0 {
		return 0
	}
	return math.Max(0, floats.Max(line))
}

func meanSobel(line []float64) float64 {
	if len(line) < 3 {
		return 0
	}

	sum := 0.0
	for i := 1; i < len(line)-1; i++ {
		sum += math.Abs(line[i+1]-line[i-1]) * 0.5
	}

	return sum / float64(len(line)-2)
}
