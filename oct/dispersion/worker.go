package dispersion

import (
	"context"
	"sync"
	"sync/atomic"
)

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// OnDone registers a callback invoked on the worker goroutine after every
// estimation. The worker accepts new requests before the callback runs.
func OnDone(fn func(Result, error)) WorkerOption {
	return func(w *Worker) {
		w.onDone = fn
	}
}

type job struct {
	frame  Frame
	search SearchConfig
}

// Worker runs estimations one at a time on its own goroutine.
type Worker struct {
	engine *Engine
	sink   ProgressSink
	onDone func(Result, error)

	jobs   chan job
	busy   atomic.Bool
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker starts a worker that reports progress of every estimation to
// sink.
func NewWorker(engine *Engine, sink ProgressSink, opts ...WorkerOption) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		engine: engine,
		sink:   sink,
		jobs:   make(chan job, 1),
		ctx:    ctx,
		cancel: cancel,
	}

	for _, opt := range opts {
		opt(w)
	}

	w.wg.Add(1)
	go w.loop()

	return w
}

// Submit queues an estimation of a copy of frame. It returns ErrBusy while
// another estimation is pending or running and ErrClosed after Close.
func (w *Worker) Submit(frame Frame, search SearchConfig) error {
	if w.ctx.Err() != nil {
		return ErrClosed
	}
	if !w.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}

	select {
	case w.jobs <- job{frame: frame.Clone(), search: search}:
		return nil
	case <-w.ctx.Done():
		w.busy.Store(false)
		return ErrClosed
	}
}

// Busy reports whether an estimation is pending or running.
func (w *Worker) Busy() bool {
	return w.busy.Load()
}

// Close cancels a running estimation and waits for the worker to exit.
func (w *Worker) Close() error {
	w.cancel()
	w.wg.Wait()
	return nil
}

func (w *Worker) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case j := <-w.jobs:
			res, err := w.engine.Estimate(w.ctx, j.frame, j.search, w.sink)
			w.busy.Store(false)
			if w.onDone != nil {
				w.onDone(res, err)
			}
		}
	}
}
