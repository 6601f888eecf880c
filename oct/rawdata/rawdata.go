package rawdata

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cwbudde/algo-oct/dsp/core"
)

// Errors returned by rawdata functions.
var (
	ErrBitDepth      = errors.New("rawdata: bit depth must be in [1, 32]")
	ErrDimensions    = errors.New("rawdata: samples per line and lines per frame must be > 0")
	ErrEmptyBuffer   = errors.New("rawdata: buffer is empty")
	ErrShortBuffer   = errors.New("rawdata: buffer shorter than frame geometry")
	ErrFrameIndex    = errors.New("rawdata: frame index out of range")
	ErrUnalignedSize = errors.New("rawdata: buffer size is not a whole number of samples")
)

// BitDepth is the number of significant bits per raw sample.
type BitDepth int

// BytesPerSample returns the container size for the bit depth: 1 byte up to
// 8 bits, 2 bytes up to 16 bits and 4 bytes up to 32 bits. It returns 0 for
// unusable depths.
func (d BitDepth) BytesPerSample() int {
	switch {
	case d <= 0:
		return 0
	case d <= 8:
		return 1
	case d <= 16:
		return 2
	case d <= 32:
		return 4
	default:
		return 0
	}
}

// Validate reports whether the bit depth maps to a supported container.
func (d BitDepth) Validate() error {
	if d.BytesPerSample() == 0 {
		return fmt.Errorf("%w: %d", ErrBitDepth, int(d))
	}
	return nil
}

// Geometry describes the layout of one raw frame.
type Geometry struct {
	BitDepth       BitDepth
	SamplesPerLine int
	LinesPerFrame  int
}

// Validate checks that the geometry describes a non-empty frame.
func (g Geometry) Validate() error {
	if err := g.BitDepth.Validate(); err != nil {
		return err
	}
	if g.SamplesPerLine <= 0 || g.LinesPerFrame <= 0 {
		return fmt.Errorf("%w: %d x %d", ErrDimensions, g.SamplesPerLine, g.LinesPerFrame)
	}
	return nil
}

// BytesPerLine returns the size of one raw spectrum in bytes.
func (g Geometry) BytesPerLine() int {
	return g.SamplesPerLine * g.BitDepth.BytesPerSample()
}

// BytesPerFrame returns the size of one raw frame in bytes.
func (g Geometry) BytesPerFrame() int {
	return g.BytesPerLine() * g.LinesPerFrame
}

// Decode converts little-endian unsigned samples in src to float64 without
// any scaling. dst is reused when it has enough capacity.
func Decode(dst []float64, src []byte, depth BitDepth) ([]float64, error) {
	bps := depth.BytesPerSample()
	if bps == 0 {
		return dst[:0], fmt.Errorf("%w: %d", ErrBitDepth, int(depth))
	}
	if len(src)%bps != 0 {
		return dst[:0], fmt.Errorf("%w: %d bytes, %d bytes per sample", ErrUnalignedSize, len(src), bps)
	}

	dst = core.EnsureLen(dst, len(src)/bps)

	switch bps {
	case 1:
		for i := range dst {
			dst[i] = float64(src[i])
		}
	case 2:
		for i := range dst {
			dst[i] = float64(binary.LittleEndian.Uint16(src[2*i:]))
		}
	case 4:
		for i := range dst {
			dst[i] = float64(binary.LittleEndian.Uint32(src[4*i:]))
		}
	}

	return dst, nil
}

// CenterLines returns the offset and count of the centered run of wanted
// lines within total lines. Non-positive wanted values select every line.
func CenterLines(total, wanted int) (offset, count int) {
	if wanted <= 0 || wanted >= total {
		return 0, total
	}
	return (total - wanted) / 2, wanted
}

// ExtractCenter copies the centered run of wanted lines out of frame.
// It returns the copy and the number of lines it holds.
func ExtractCenter(frame []byte, g Geometry, wanted int) ([]byte, int, error) {
	if err := g.Validate(); err != nil {
		return nil, 0, err
	}
	if len(frame) == 0 {
		return nil, 0, ErrEmptyBuffer
	}
	if len(frame) < g.BytesPerFrame() {
		return nil, 0, fmt.Errorf("%w: have %d bytes, need %d", ErrShortBuffer, len(frame), g.BytesPerFrame())
	}

	offset, count := CenterLines(g.LinesPerFrame, wanted)
	lineBytes := g.BytesPerLine()
	start := offset * lineBytes

	out := make([]byte, count*lineBytes)
	copy(out, frame[start:start+len(out)])

	return out, count, nil
}

// ExtractFrame copies frame number frameNr out of a buffer holding
// consecutive frames of geometry g.
func ExtractFrame(buf []byte, g Geometry, frameNr int) ([]byte, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if len(buf) == 0 {
		return nil, ErrEmptyBuffer
	}

	frameBytes := g.BytesPerFrame()
	frames := len(buf) / frameBytes
	if frameNr < 0 || frameNr >= frames {
		return nil, fmt.Errorf("%w: %d of %d", ErrFrameIndex, frameNr, frames)
	}

	out := make([]byte, frameBytes)
	copy(out, buf[frameNr*frameBytes:])

	return out, nil
}

// Line returns a copy of line index of frame.
func Line(frame []byte, g Geometry, index int) ([]byte, error) {
	lineBytes := g.BytesPerLine()
	if lineBytes == 0 {
		return nil, g.Validate()
	}
	if index < 0 || (index+1)*lineBytes > len(frame) {
		return nil, fmt.Errorf("%w: line %d", ErrShortBuffer, index)
	}

	out := make([]byte, lineBytes)
	copy(out, frame[index*lineBytes:])

	return out, nil
}
