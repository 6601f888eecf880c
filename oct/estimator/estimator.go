package estimator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-oct/oct/dispersion"
	"github.com/cwbudde/algo-oct/oct/rawdata"
	"github.com/cwbudde/algo-oct/oct/spectral"
)

// CommandStartSingleFetch requests the next matching frame.
const CommandStartSingleFetch = "startSingleFetch"

// AnyBuffer selects every buffer of a volume.
const AnyBuffer = -1

// Errors returned by the estimator.
var (
	ErrUnknownCommand    = errors.New("estimator: unknown command")
	ErrInvalidDimensions = fmt.Errorf("%w: invalid data dimensions", spectral.ErrConfiguration)
)

// RawBuffer is one acquisition buffer as delivered by the host. Data holds
// FramesPerBuffer consecutive frames and is only valid during the call it
// is passed to.
type RawBuffer struct {
	Data             []byte
	BitDepth         rawdata.BitDepth
	SamplesPerLine   int
	LinesPerFrame    int
	FramesPerBuffer  int
	BuffersPerVolume int
	// BufferNr is the index of this buffer within its volume.
	BufferNr int
}

// FrameSource delivers acquisition buffers. NextBuffer returns io.EOF when
// no more buffers will arrive.
type FrameSource interface {
	NextBuffer(ctx context.Context) (RawBuffer, error)
}

// ConfigSink receives results and settings changes for the host.
type ConfigSink interface {
	SetDispersionCoefficients(spectral.Coefficients) error
	StoreParams(Params) error
}

// Params are the user-facing estimator settings.
type Params struct {
	Search dispersion.SearchConfig
	// FrameNr selects the frame within a buffer.
	FrameNr int
	// BufferNr selects the buffer within a volume; AnyBuffer accepts all.
	BufferNr int
}

// DefaultParams returns the default search on the first frame of any buffer.
func DefaultParams() Params {
	return Params{
		Search:   dispersion.DefaultSearchConfig(),
		BufferNr: AnyBuffer,
	}
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Estimator) {
		if log != nil {
			e.log = log
		}
	}
}

// WithParams sets the initial parameters.
func WithParams(p Params) Option {
	return func(e *Estimator) {
		e.params = p
	}
}

// WithDoneHandler registers a callback run after every estimation.
func WithDoneHandler(fn func(dispersion.Result, error)) Option {
	return func(e *Estimator) {
		e.onDone = fn
	}
}

// Estimator grabs frames from the host and runs estimations on them.
type Estimator struct {
	log    logrus.FieldLogger
	config ConfigSink
	sink   dispersion.ProgressSink
	onDone func(dispersion.Result, error)
	worker *dispersion.Worker

	mu               sync.Mutex
	params           Params
	active           bool
	singleFetch      bool
	framesPerBuffer  int
	buffersPerVolume int
}

// New returns an inactive estimator. config may be nil.
func New(engine *dispersion.Engine, config ConfigSink, sink dispersion.ProgressSink, opts ...Option) *Estimator {
	if sink == nil {
		sink = dispersion.Discard
	}

	e := &Estimator{
		log:    logrus.StandardLogger(),
		config: config,
		sink:   sink,
		params: DefaultParams(),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.log = e.log.WithField("component", "estimator")
	e.worker = dispersion.NewWorker(engine, sink, dispersion.OnDone(e.done))

	return e
}

// Activate enables frame grabbing.
func (e *Estimator) Activate() {
	e.mu.Lock()
	e.active = true
	e.mu.Unlock()
	e.log.Debug("activated")
}

// Deactivate disables frame grabbing. A running estimation continues.
func (e *Estimator) Deactivate() {
	e.mu.Lock()
	e.active = false
	e.mu.Unlock()
	e.log.Debug("deactivated")
}

// Active reports whether frame grabbing is enabled.
func (e *Estimator) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Busy reports whether an estimation is pending or running.
func (e *Estimator) Busy() bool {
	return e.worker.Busy()
}

// Params returns the current parameters.
func (e *Estimator) Params() Params {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params
}

// SetParams validates and applies p and passes it to the ConfigSink for
// storage.
func (e *Estimator) SetParams(p Params) error {
	if err := p.Search.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	e.params = p
	e.mu.Unlock()

	if e.config == nil {
		return nil
	}
	if err := e.config.StoreParams(p); err != nil {
		e.log.WithError(err).Warn("storing parameters failed")
		return fmt.Errorf("store params: %w", err)
	}

	return nil
}

// Limits returns the highest selectable frame and buffer numbers seen in
// the last accepted buffer. Both are -1 before the first buffer.
func (e *Estimator) Limits() (maxFrameNr, maxBufferNr int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.framesPerBuffer - 1, e.buffersPerVolume - 1
}

// RequestSingleFetch arms the estimator to take the next matching frame.
func (e *Estimator) RequestSingleFetch() {
	e.mu.Lock()
	e.singleFetch = true
	e.mu.Unlock()

	e.sink.Send(dispersion.Status{Text: "Waiting for data..."})
}

// Pending reports whether a single fetch is armed and still waiting for a
// matching frame.
func (e *Estimator) Pending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.singleFetch
}

// ReceiveCommand dispatches a host command.
func (e *Estimator) ReceiveCommand(command string, _ map[string]any) error {
	switch command {
	case CommandStartSingleFetch:
		e.RequestSingleFetch()
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}
}

// RawDataReceived inspects one acquisition buffer. Buffers are ignored
// unless the estimator is active, a single fetch is pending, no estimation
// is running and the buffer number matches the selection. The selected
// frame is copied before RawDataReceived returns.
func (e *Estimator) RawDataReceived(buf RawBuffer) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.active || !e.singleFetch || e.worker.Busy() {
		return nil
	}

	if buf.BuffersPerVolume > 0 && e.params.BufferNr > buf.BuffersPerVolume-1 {
		e.params.BufferNr = buf.BuffersPerVolume - 1
	}
	if e.params.BufferNr != AnyBuffer && e.params.BufferNr != buf.BufferNr {
		return nil
	}

	if buf.BitDepth.Validate() != nil || buf.SamplesPerLine <= 0 || buf.LinesPerFrame <= 0 || buf.FramesPerBuffer <= 0 {
		err := fmt.Errorf("%w: bit depth %d, %d x %d, %d frames", ErrInvalidDimensions,
			int(buf.BitDepth), buf.SamplesPerLine, buf.LinesPerFrame, buf.FramesPerBuffer)
		e.log.WithError(err).Error("buffer rejected")
		e.sink.Send(dispersion.Failure{Err: err})
		return err
	}

	if e.framesPerBuffer != buf.FramesPerBuffer || e.buffersPerVolume != buf.BuffersPerVolume {
		e.framesPerBuffer = buf.FramesPerBuffer
		e.buffersPerVolume = buf.BuffersPerVolume
		e.log.WithFields(logrus.Fields{
			"max_frame":  buf.FramesPerBuffer - 1,
			"max_buffer": buf.BuffersPerVolume - 1,
		}).Info("acquisition limits changed")
	}

	if e.params.FrameNr > buf.FramesPerBuffer-1 {
		e.params.FrameNr = buf.FramesPerBuffer - 1
	}
	if e.params.FrameNr < 0 {
		e.params.FrameNr = 0
	}

	g := rawdata.Geometry{
		BitDepth:       buf.BitDepth,
		SamplesPerLine: buf.SamplesPerLine,
		LinesPerFrame:  buf.LinesPerFrame,
	}
	data, err := rawdata.ExtractFrame(buf.Data, g, e.params.FrameNr)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrInvalidDimensions, err)
		e.log.WithError(err).Error("frame not extracted")
		e.sink.Send(dispersion.Failure{Err: err})
		return err
	}

	frame := dispersion.Frame{
		Data:           data,
		BitDepth:       buf.BitDepth,
		SamplesPerLine: buf.SamplesPerLine,
		LinesPerFrame:  buf.LinesPerFrame,
	}
	if err := e.worker.Submit(frame, e.params.Search); err != nil {
		if errors.Is(err, dispersion.ErrBusy) {
			return nil
		}
		return err
	}

	e.singleFetch = false
	e.log.WithFields(logrus.Fields{
		"buffer": buf.BufferNr,
		"frame":  e.params.FrameNr,
	}).Info("frame submitted")

	return nil
}

// Run feeds buffers from src into RawDataReceived until src returns io.EOF,
// an error, or ctx is done. Rejected buffers do not stop the loop.
func (e *Estimator) Run(ctx context.Context, src FrameSource) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		buf, err := src.NextBuffer(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("next buffer: %w", err)
		}

		if err := e.RawDataReceived(buf); err != nil && !errors.Is(err, ErrInvalidDimensions) {
			return err
		}
	}
}

// Close stops the worker, cancelling a running estimation.
func (e *Estimator) Close() error {
	return e.worker.Close()
}

func (e *Estimator) done(res dispersion.Result, err error) {
	if err == nil && e.config != nil {
		if cerr := e.config.SetDispersionCoefficients(res.Coefficients); cerr != nil {
			e.log.WithError(cerr).Warn("applying coefficients failed")
			e.sink.Send(dispersion.Failure{Err: cerr})
		}
	}

	if e.onDone != nil {
		e.onDone(res, err)
	}
}
