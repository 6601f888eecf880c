package spectral

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-oct/dsp/core"
)

// PolynomialCurve returns the resampling curve of n samples defined by the
// polynomial coefficients r, clamped to the valid interpolation range.
func PolynomialCurve(r Coefficients, n int) []float64 {
	curve := make([]float64, n)
	for i := range curve {
		curve[i] = r.Eval(float64(i), n)
	}
	clampCurve(curve)
	return curve
}

// clampCurve limits every fractional index to [0, N-3] so that the four
// interpolation neighbors stay inside the spectrum.
func clampCurve(curve []float64) {
	hi := float64(len(curve) - 3)
	if hi < 0 {
		hi = 0
	}
	for i, v := range curve {
		curve[i] = core.Clamp(v, 0, hi)
	}
}

// LoadCurveFile reads a custom resampling curve from a semicolon-delimited
// text file with one header line followed by "index;value" records. The
// values are returned in file order.
func LoadCurveFile(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrCurveNotFound, path)
		}
		return nil, fmt.Errorf("%w: %w", ErrCurveFormat, err)
	}
	defer f.Close()

	curve, err := ReadCurve(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return curve, nil
}

// ReadCurve parses the curve format described at LoadCurveFile.
func ReadCurve(r io.Reader) ([]float64, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var curve []float64
	header := true
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCurveFormat, err)
		}
		if header {
			header = false
			continue
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if len(rec) < 2 {
			return nil, fmt.Errorf("%w: record %d has %d fields", ErrCurveFormat, len(curve)+1, len(rec))
		}

		v, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %w", ErrCurveFormat, len(curve)+1, err)
		}
		curve = append(curve, v)
	}

	if len(curve) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrCurveFormat)
	}

	return curve, nil
}
