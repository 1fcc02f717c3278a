// Package logsink carries scenario narration from the worker goroutine that
// drives the browser to whatever wants to observe it: an in-memory transcript
// (used for webhook notifications) and an optional streaming consumer (the
// WebSocket delivery loop). Lines are delivered in generation order.
package logsink

import (
	"fmt"
	"sync"
)

// defaultBuffer sizes the forwarding channel. The consumer is a network
// write loop and normally keeps up; if it stalls the producer blocks rather
// than reorder or drop lines.
const defaultBuffer = 1024

// Func is the logging function handed to flows and the verification engine.
type Func func(format string, args ...interface{})

// Sink collects log lines and forwards them over a channel. The scenario
// worker is the only producer; Close is called exactly once, by the producer
// side, after the run finishes.
type Sink struct {
	mu     sync.Mutex
	lines  []string
	ch     chan string
	closed bool
}

// New creates a sink with the default forwarding buffer.
func New() *Sink {
	return &Sink{
		ch: make(chan string, defaultBuffer),
	}
}

// Log records a formatted line and forwards it to the stream.
func (s *Sink) Log(format string, args ...interface{}) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}

	s.mu.Lock()
	s.lines = append(s.lines, msg)
	closed := s.closed
	s.mu.Unlock()

	if !closed {
		s.ch <- msg
	}
}

// Lines returns a copy of the full transcript collected so far.
func (s *Sink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.lines))
	copy(out, s.lines)
	return out
}

// Stream returns the channel the consumer drains. The channel is closed when
// the producer calls Close, after which no more lines arrive.
func (s *Sink) Stream() <-chan string {
	return s.ch
}

// Close marks the sink finished and closes the stream. Lines logged after
// Close are still collected but no longer forwarded.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
