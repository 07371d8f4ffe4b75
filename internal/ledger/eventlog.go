package ledger

import (
	"sync"

	"github.com/sankalp771/MONAD-RAGE/internal/domain"
)

// EventLog is the ledger's write-once, append-only notification history.
// Sequence numbers are dense and start at 1.
type EventLog struct {
	mu     sync.RWMutex
	events []domain.Event
}

// NewEventLog creates an empty EventLog.
func NewEventLog() *EventLog {
	return &EventLog{}
}

// Append assigns the next sequence number to ev, stores it, and returns the
// stored event.
func (l *EventLog) Append(ev domain.Event) domain.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	ev.Seq = int64(len(l.events)) + 1
	l.events = append(l.events, ev)
	return ev
}

// Len returns the sequence number of the most recent event, or 0 when empty.
func (l *EventLog) Len() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return int64(len(l.events))
}

// Range returns up to limit events with Seq >= from, in sequence order. It
// copies the returned slice so callers cannot mutate history.
func (l *EventLog) Range(from int64, limit int) []domain.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if from < 1 {
		from = 1
	}
	if from > int64(len(l.events)) || limit <= 0 {
		return nil
	}
	end := from - 1 + int64(limit)
	if end > int64(len(l.events)) {
		end = int64(len(l.events))
	}
	out := make([]domain.Event, end-(from-1))
	copy(out, l.events[from-1:end])
	return out
}
