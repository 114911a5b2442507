package scheduler

import (
	"sync"

	"github.com/greenstreak/greenstreak/internal/core"
)

// DefaultEventLimit is the number of events kept by an EventLog.
const DefaultEventLimit = 100

// EventSink receives scheduler events. It must not block.
type EventSink func(core.Event)

// Tee fans an event out to every non-nil sink.
func Tee(sinks ...EventSink) EventSink {
	return func(event core.Event) {
		for _, sink := range sinks {
			if sink != nil {
				sink(event)
			}
		}
	}
}

// EventLog keeps the most recent events in memory.
type EventLog struct {
	mu     sync.Mutex
	limit  int
	events []core.Event
}

// NewEventLog returns a log holding at most limit events.
func NewEventLog(limit int) *EventLog {
	if limit <= 0 {
		limit = DefaultEventLimit
	}
	return &EventLog{limit: limit}
}

// Add appends event, evicting the oldest past the limit.
func (l *EventLog) Add(event core.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, event)
	if over := len(l.events) - l.limit; over > 0 {
		l.events = append(l.events[:0], l.events[over:]...)
	}
}

// Recent returns up to n events, oldest first. n <= 0 returns all.
func (l *EventLog) Recent(n int) []core.Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := 0
	if n > 0 && n < len(l.events) {
		start = len(l.events) - n
	}
	return append([]core.Event(nil), l.events[start:]...)
}

// Sink returns the log as an EventSink.
func (l *EventLog) Sink() EventSink {
	return l.Add
}
