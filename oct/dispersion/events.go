package dispersion

import "sync"

// Axis identifies the coefficient swept in a pass.
type Axis int

const (
	AxisD2 Axis = 2
	AxisD3 Axis = 3
)

func (a Axis) String() string {
	switch a {
	case AxisD2:
		return "d2"
	case AxisD3:
		return "d3"
	default:
		return "unknown"
	}
}

// PreviewKind tells the two comparison A-scans apart.
type PreviewKind int

const (
	PreviewBefore PreviewKind = iota
	PreviewAfter
)

func (k PreviewKind) String() string {
	if k == PreviewAfter {
		return "after"
	}
	return "before"
}

// Event is a progress notification emitted by the engine. The concrete
// types are Started, Status, Failure, SweepSample, Preview, BestCoefficient
// and Finished.
type Event interface {
	event()
}

// Started marks the beginning of an estimation.
type Started struct{}

// Status carries a human-readable progress message.
type Status struct {
	Text string
}

// Failure reports an error. Fatal failures end the estimation; the others
// only skip the affected step.
type Failure struct {
	Err   error
	Fatal bool
}

// SweepSample is the score of one candidate coefficient.
type SweepSample struct {
	Axis        Axis
	Index       int
	Coefficient float64
	Score       float64
}

// Preview is a processed A-scan for visual comparison.
type Preview struct {
	Kind   PreviewKind
	D2, D3 float64
	Ascan  []float64
}

// BestCoefficient is the winner of a completed sweep.
type BestCoefficient struct {
	Axis  Axis
	Value float64
	Score float64
}

// Finished carries the final result of a successful estimation.
type Finished struct {
	Result Result
}

func (Started) event()         {}
func (Status) event()          {}
func (Failure) event()         {}
func (SweepSample) event()     {}
func (Preview) event()         {}
func (BestCoefficient) event() {}
func (Finished) event()        {}

// ProgressSink receives events in emission order. Send may block; the
// engine does not continue until it returns.
type ProgressSink interface {
	Send(Event)
}

// SinkFunc adapts a function to ProgressSink.
type SinkFunc func(Event)

// Send calls f(e).
func (f SinkFunc) Send(e Event) { f(e) }

// Discard drops every event.
var Discard ProgressSink = SinkFunc(func(Event) {})

// MultiSink forwards every event to each sink in order.
type MultiSink []ProgressSink

// Send forwards e.
func (m MultiSink) Send(e Event) {
	for _, s := range m {
		if s != nil {
			s.Send(e)
		}
	}
}

// ChannelSink delivers events over a buffered channel, preserving order.
// Send blocks while the buffer is full.
type ChannelSink struct {
	ch     chan Event
	mu     sync.RWMutex
	closed bool
}

// NewChannelSink returns a sink with room for size pending events.
func NewChannelSink(size int) *ChannelSink {
	if size < 0 {
		size = 0
	}
	return &ChannelSink{ch: make(chan Event, size)}
}

// Send queues e. Events sent after Close are dropped.
func (s *ChannelSink) Send(e Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return
	}
	s.ch <- e
}

// Events returns the receive side of the sink.
func (s *ChannelSink) Events() <-chan Event {
	return s.ch
}

// Close closes the channel once all pending Send calls have returned. The
// receiver must keep draining until Close returns.
func (s *ChannelSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Recorder keeps every event in memory. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Send appends e.
func (r *Recorder) Send(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Samples returns the recorded sweep samples of one axis.
func (r *Recorder) Samples(axis Axis) []SweepSample {
	var out []SweepSample
	for _, e := range r.Events() {
		if s, ok := e.(SweepSample); ok && s.Axis == axis {
			out = append(out, s)
		}
	}
	return out
}
