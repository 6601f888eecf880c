package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cwbudde/algo-oct/oct/estimator"
	"github.com/cwbudde/algo-oct/oct/rawdata"
)

// fileSource replays a raw acquisition file as a sequence of buffers.
type fileSource struct {
	r                io.Reader
	geometry         rawdata.Geometry
	framesPerBuffer  int
	buffersPerVolume int
	next             int
}

func newFileSource(r io.Reader, g rawdata.Geometry, framesPerBuffer, buffersPerVolume int) (*fileSource, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if framesPerBuffer <= 0 || buffersPerVolume <= 0 {
		return nil, fmt.Errorf("frames per buffer and buffers per volume must be > 0")
	}

	return &fileSource{
		r:                r,
		geometry:         g,
		framesPerBuffer:  framesPerBuffer,
		buffersPerVolume: buffersPerVolume,
	}, nil
}

// NextBuffer reads the next full buffer. A trailing partial buffer is
// treated as the end of the file.
func (s *fileSource) NextBuffer(ctx context.Context) (estimator.RawBuffer, error) {
	if err := ctx.Err(); err != nil {
		return estimator.RawBuffer{}, err
	}

	data := make([]byte, s.geometry.BytesPerFrame()*s.framesPerBuffer)
	if _, err := io.ReadFull(s.r, data); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return estimator.RawBuffer{}, io.EOF
		}
		return estimator.RawBuffer{}, err
	}

	buf := estimator.RawBuffer{
		Data:             data,
		BitDepth:         s.geometry.BitDepth,
		SamplesPerLine:   s.geometry.SamplesPerLine,
		LinesPerFrame:    s.geometry.LinesPerFrame,
		FramesPerBuffer:  s.framesPerBuffer,
		BuffersPerVolume: s.buffersPerVolume,
		BufferNr:         s.next,
	}
	s.next = (s.next + 1) % s.buffersPerVolume

	return buf, nil
}

func readFrame(path string, g rawdata.Geometry, frameNr int) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read raw file: %w", err)
	}
	return rawdata.ExtractFrame(data, g, frameNr)
}
