// Licensed under the Apache License, Version 2.0 (the "License").
// See the LICENSE file in the repository root for details.

package tracer

import (
	"sync/atomic"
	"time"

	"github.com/flowtrace/client-go/internal/log"
	"github.com/flowtrace/client-go/trace"
)

const (
	defaultQueueSize             = 100
	defaultFlushInterval         = time.Second
	defaultCloseEnqueueTimeout   = time.Second
)

// reporterCommand is the sum type enqueued onto RemoteReporter's bounded
// channel (spec.md §4.3 "Command model"). appendCmd and flushCmd share a
// result handler; closeCmd is a sentinel the worker uses to know when to
// stop, never passed to the Sender.
type reporterCommand interface{ isReporterCommand() }

type appendCmd struct{ span *Span }
type flushCmd struct{}
type closeCmd struct{}

func (appendCmd) isReporterCommand() {}
func (flushCmd) isReporterCommand()  {}
func (closeCmd) isReporterCommand()  {}

// RemoteReporter is a bounded command queue fed by any number of reporting
// goroutines and drained by one dedicated worker (spec.md §4.3). Report is non-blocking: a full
// queue causes the span to be dropped and counted, never an error.
type RemoteReporter struct {
	sender  trace.Sender
	metrics *Metrics

	queue   chan reporterCommand
	closed  int32
	failing int32 // 1 once a Sender call has failed and no success has occurred since

	flushInterval       time.Duration
	closeEnqueueTimeout time.Duration

	workerDone  chan struct{}
	timerStopCh chan struct{}
	timerDone   chan struct{}
}

// RemoteReporterOption configures a RemoteReporter at construction.
type RemoteReporterOption func(*RemoteReporter)

func WithQueueSize(n int) RemoteReporterOption {
	return func(r *RemoteReporter) { r.queue = make(chan reporterCommand, n) }
}

func WithFlushInterval(d time.Duration) RemoteReporterOption {
	return func(r *RemoteReporter) { r.flushInterval = d }
}

func WithCloseEnqueueTimeout(d time.Duration) RemoteReporterOption {
	return func(r *RemoteReporter) { r.closeEnqueueTimeout = d }
}

func WithReporterMetrics(m *Metrics) RemoteReporterOption {
	return func(r *RemoteReporter) { r.metrics = m }
}

// NewRemoteReporter starts the background worker (named, conceptually,
// "...-QueueProcessor") and flush timer ("...-FlushTimer") goroutines and
// returns. Both are daemon-style: they never block process exit and are
// only stopped via Close (spec.md §5).
func NewRemoteReporter(sender trace.Sender, opts ...RemoteReporterOption) *RemoteReporter {
	r := &RemoteReporter{
		sender:              sender,
		flushInterval:       defaultFlushInterval,
		closeEnqueueTimeout: defaultCloseEnqueueTimeout,
		workerDone:          make(chan struct{}),
		timerStopCh:         make(chan struct{}),
		timerDone:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.queue == nil {
		r.queue = make(chan reporterCommand, defaultQueueSize)
	}
	if r.metrics == nil {
		r.metrics = newMetrics(NullMetricsFactory)
	}
	go r.processQueue()
	go r.runFlushTimer()
	return r
}

// Report enqueues span for asynchronous delivery. Never blocks beyond the
// channel's buffered capacity and never returns an error to the caller
// (spec.md §4.3 "Back-pressure policy").
func (r *RemoteReporter) Report(span *Span) {
	if atomic.LoadInt32(&r.closed) == 1 {
		return
	}
	select {
	case r.queue <- appendCmd{span: span}:
	default:
		r.metrics.reporterDropped.Inc(1)
	}
}

func (r *RemoteReporter) runFlushTimer() {
	defer close(r.timerDone)
	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.timerStopCh:
			return
		case <-ticker.C:
			select {
			case r.queue <- flushCmd{}:
			default:
				// Queue full: this tick is dropped, the next tick retries
				// (spec.md §4.3 "Timed flush").
			}
		}
	}
}

func (r *RemoteReporter) processQueue() {
	defer close(r.workerDone)
	for cmd := range r.queue {
		switch c := cmd.(type) {
		case appendCmd:
			n, err := r.sender.Append(c.span)
			r.handleResult(n, err)
		case flushCmd:
			n, err := r.sender.Flush()
			r.metrics.reporterQueue.Update(float64(len(r.queue)))
			r.handleResult(n, err)
		case closeCmd:
			return
		}
	}
}

func (r *RemoteReporter) handleResult(n int, err error) {
	if err == nil {
		r.metrics.reporterSuccess.Inc(int64(n))
		if atomic.CompareAndSwapInt32(&r.failing, 1, 0) {
			log.Info("Flush command working again")
		}
		return
	}
	var dropped int
	if se, ok := err.(*SenderError); ok {
		dropped = se.DroppedSpans
	}
	r.metrics.reporterFailure.Inc(int64(dropped))
	if atomic.CompareAndSwapInt32(&r.failing, 0, 1) {
		log.Error("Flush command execution failed: %v", err)
	} else {
		log.Error("Flush command execution failed! Repeated errors of this command will not be logged.")
	}
}

// Close implements the close protocol in spec.md §4.3: enqueue a sentinel
// with a bounded wait, drain the worker, stop the flush timer, then close
// the sender, folding its returned flush count into reporter-spans{result=ok}.
func (r *RemoteReporter) Close() {
	if !atomic.CompareAndSwapInt32(&r.closed, 0, 1) {
		return
	}

	timer := time.NewTimer(r.closeEnqueueTimeout)
	select {
	case r.queue <- closeCmd{}:
		timer.Stop()
	case <-timer.C:
		// The bounded wait expired; proceed without blocking further, but
		// still guarantee the sentinel eventually lands so the worker can
		// exit -- the worker keeps draining the queue the whole time, so
		// this send completes as soon as capacity frees up.
		go func() { r.queue <- closeCmd{} }()
	}
	<-r.workerDone

	close(r.timerStopCh)
	<-r.timerDone

	n, err := r.sender.Close()
	if err != nil {
		log.Error("Remote reporter error on close: %v", err)
	}
	r.metrics.reporterSuccess.Inc(int64(n))
}
