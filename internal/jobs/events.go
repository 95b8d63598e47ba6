package jobs

import (
	"sync"
	"time"

	"encodec-converter/internal/domain"
)

// EventType classifies messages emitted during job execution.
type EventType string

const (
	EventTypeStatus   EventType = "status"
	EventTypeProgress EventType = "progress"
	EventTypeLog      EventType = "log"
	EventTypeResult   EventType = "result"
	EventTypeError    EventType = "error"
)

// Event is a sequenced payload consumed by UI subscribers.
type Event struct {
	Seq        int64                    `json:"seq"`
	Timestamp  time.Time                `json:"timestamp"`
	JobID      string                   `json:"jobId"`
	Type       EventType                `json:"type"`
	Status     domain.JobStatus         `json:"status,omitempty"`
	Message    string                   `json:"message,omitempty"`
	Progress   *domain.ProgressSnapshot `json:"progress,omitempty"`
	ErrorKind  domain.ErrorKind         `json:"errorKind,omitempty"`
	Command    string                   `json:"command,omitempty"`
	Args       []string                 `json:"args,omitempty"`
	ExitCode   int                      `json:"exitCode,omitempty"`
	Stdout     string                   `json:"stdout,omitempty"`
	Stderr     string                   `json:"stderr,omitempty"`
	OutputPath string                   `json:"outputPath,omitempty"`
	Elapsed    string                   `json:"elapsed,omitempty"`
}

// EventBus keeps the newest events in a fixed ring and forwards each one
// to subscribers in publish order.
type EventBus struct {
	mu          sync.Mutex
	lastSeq     int64
	ring        []Event
	head        int
	size        int
	subscribers []func(Event)
}

// NewEventBus creates a bounded in-memory event buffer.
func NewEventBus(capacity int) *EventBus {
	if capacity <= 0 {
		capacity = 500
	}
	return &EventBus{ring: make([]Event, capacity)}
}

// Subscribe registers fn for every later event. fn runs on the publishing
// goroutine while the bus is locked and must not publish.
func (b *EventBus) Subscribe(fn func(Event)) {
	if fn == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, fn)
}

// Publish assigns sequence and timestamp, stores the event, and notifies
// subscribers.
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastSeq++
	event.Seq = b.lastSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.ring[(b.head+b.size)%len(b.ring)] = event
	if b.size < len(b.ring) {
		b.size++
	} else {
		b.head = (b.head + 1) % len(b.ring)
	}

	for _, fn := range b.subscribers {
		fn(event)
	}
	return event
}

// Since returns buffered events with sequence strictly greater than seq,
// oldest first.
func (b *EventBus) Since(seq int64) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Event
	for i := 0; i < b.size; i++ {
		event := b.ring[(b.head+i)%len(b.ring)]
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}

// LastSeq returns the sequence of the newest event, or 0.
func (b *EventBus) LastSeq() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastSeq
}
