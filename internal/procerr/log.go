package procerr

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one classified error appended to the run's error log.
type Event struct {
	ID        uuid.UUID         `json:"id"`
	Kind      Kind              `json:"kind"`
	Severity  Severity          `json:"severity"`
	Message   string            `json:"message"`
	Context   map[string]string `json:"context,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Stats are rolling per-kind and per-severity counts over the log.
type Stats struct {
	Total      int              `json:"total"`
	ByKind     map[Kind]int     `json:"by_kind"`
	BySeverity map[Severity]int `json:"by_severity"`
}

// Log is the append-only error event log for a run. Events are never
// deleted within a run; reads are concurrent, writes serialized.
type Log struct {
	mu     sync.RWMutex
	events []Event
}

func NewLog() *Log {
	return &Log{}
}

// Record appends a classified error to the log and returns the event.
func (l *Log) Record(pe *ProcError) Event {
	ev := Event{
		ID:        uuid.New(),
		Kind:      pe.Kind,
		Severity:  pe.Severity,
		Message:   pe.Message,
		Context:   pe.Context,
		Timestamp: time.Now().UTC(),
	}
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
	return ev
}

// Events returns a copy of all recorded events in append order.
func (l *Log) Events() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// CountByKind returns the number of events recorded for one kind.
func (l *Log) CountByKind(kind Kind) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, ev := range l.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

// Snapshot aggregates the log into rolling statistics.
func (l *Log) Snapshot() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Stats{
		Total:      len(l.events),
		ByKind:     make(map[Kind]int),
		BySeverity: make(map[Severity]int),
	}
	for _, ev := range l.events {
		s.ByKind[ev.Kind]++
		s.BySeverity[ev.Severity]++
	}
	return s
}
