// Licensed under the Apache License, Version 2.0 (the "License").
// See the LICENSE file in the repository root for details.

package tracer

import (
	"errors"
	"sync"
	"time"

	"github.com/flowtrace/client-go/trace"
)

// testSender is a trace.Sender that appends to an in-memory slice. Blocked,
// when true, makes Append/Flush return an error with DroppedSpans, letting
// tests exercise the reporter's failure path.
type testSender struct {
	mu       sync.Mutex
	appended []trace.Span
	flushed  []trace.Span
	closed   bool

	Blocked  bool
	FailWith error
	// Delay, when set, is slept before every Append (not Flush), letting tests
	// deliberately starve the RemoteReporter's worker to exercise
	// back-pressure without racing the goroutine scheduler.
	Delay time.Duration
}

func newTestSender() *testSender { return &testSender{} }

func (s *testSender) Append(span trace.Span) (int, error) {
	if s.Delay > 0 {
		time.Sleep(s.Delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Blocked {
		return 0, &SenderError{Cause: s.failErr(), DroppedSpans: 1}
	}
	s.appended = append(s.appended, span)
	return 0, nil
}

func (s *testSender) Flush() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Blocked {
		return 0, &SenderError{Cause: s.failErr(), DroppedSpans: len(s.appended)}
	}
	n := len(s.appended)
	s.flushed = append(s.flushed, s.appended...)
	s.appended = nil
	return n, nil
}

func (s *testSender) failErr() error {
	if s.FailWith != nil {
		return s.FailWith
	}
	return errors.New("testsender: blocked")
}

func (s *testSender) Close() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	n := len(s.appended)
	s.flushed = append(s.flushed, s.appended...)
	s.appended = nil
	return n, nil
}

// Appended returns the spans buffered but not yet flushed.
func (s *testSender) Appended() []trace.Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]trace.Span(nil), s.appended...)
}

// Flushed returns every span the sender has ever flushed or closed out.
func (s *testSender) Flushed() []trace.Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]trace.Span(nil), s.flushed...)
}

// Closed reports whether Close was called.
func (s *testSender) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
