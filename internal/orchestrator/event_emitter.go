package orchestrator

import (
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// EventEmitter is a buffered EventSink for a single consumer such as the
// progress view. A full buffer delays Emit up to the drop timeout, after
// which the event is dropped rather than stalling the run.
type EventEmitter struct {
	events       chan Event
	dropTimeout  time.Duration
	droppedCount atomic.Uint64
	closeOnce    sync.Once
	mu           sync.RWMutex
	closed       bool
}

// NewEventEmitter creates a new EventEmitter with the given buffer size.
func NewEventEmitter(bufferSize int, dropTimeout time.Duration) *EventEmitter {
	if bufferSize < 1 {
		bufferSize = 1
	}
	if dropTimeout <= 0 {
		dropTimeout = 100 * time.Millisecond
	}
	return &EventEmitter{
		events:      make(chan Event, bufferSize),
		dropTimeout: dropTimeout,
	}
}

// Emit implements EventSink. Events emitted after Close are dropped.
func (e *EventEmitter) Emit(event Event) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}

	select {
	case e.events <- event:
		return
	default:
	}

	timer := time.NewTimer(e.dropTimeout)
	defer timer.Stop()
	select {
	case e.events <- event:
	case <-timer.C:
		count := e.droppedCount.Add(1)
		if count%10 == 1 {
			log.Printf("[pipeline] WARNING: event channel full, dropped event (total dropped: %d): type=%s", count, event.Type)
		}
	}
}

// DroppedCount returns the total number of events that have been dropped.
func (e *EventEmitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Events returns a read-only channel of events.
func (e *EventEmitter) Events() <-chan Event {
	return e.events
}

// Close closes the events channel. It is safe to call more than once.
func (e *EventEmitter) Close() {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.closed = true
		close(e.events)
	})
}

// multiSink fans events out to several sinks in order.
type multiSink []EventSink

func (m multiSink) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}
