// Package progress carries events from long-running jobs to streaming
// HTTP handlers. A job emits any number of log events followed by
// exactly one terminal event, either a data payload or an error.
package progress

import "sync"

// Event types as they appear on the wire.
const (
	TypeLog   = "log"
	TypeData  = "data"
	TypeError = "error"
)

const defaultBuffer = 64

// Event is a single progress update. Progress is a pointer so a zero
// percentage still marshals.
type Event struct {
	Type     string   `json:"type"`
	Message  string   `json:"message,omitempty"`
	Progress *float64 `json:"progress,omitempty"`
	Data     any      `json:"data,omitempty"`
}

// Stream connects one producing job to one consuming handler. Log events
// are dropped when the consumer falls behind; terminal events are always
// delivered and close the stream. After a terminal event every further
// emit is a no-op.
type Stream struct {
	mu     sync.Mutex
	events chan Event
	closed bool
}

// New returns a stream ready for one producer and one consumer.
func New() *Stream {
	return &Stream{events: make(chan Event, defaultBuffer)}
}

// Events returns the channel the consumer ranges over. It is closed
// after the terminal event.
func (s *Stream) Events() <-chan Event {
	return s.events
}

// Log emits a progress message with a completion percentage.
func (s *Stream) Log(message string, pct float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- Event{Type: TypeLog, Message: message, Progress: &pct}:
	default:
	}
}

// Data emits the successful result and closes the stream.
func (s *Stream) Data(payload any) {
	s.terminal(Event{Type: TypeData, Data: payload})
}

// Error emits a failure message and closes the stream.
func (s *Stream) Error(message string) {
	s.terminal(Event{Type: TypeError, Message: message})
}

func (s *Stream) terminal(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.events <- ev:
			s.closed = true
			close(s.events)
			return
		default:
			// Buffer full of stale logs. Drop the oldest to make room so
			// the terminal event always lands.
			select {
			case <-s.events:
			default:
			}
		}
	}
}
