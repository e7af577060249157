package monitor

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scanledger/scanledger/constants"
	"github.com/scanledger/scanledger/internal/entity"
)

// HourlyStat aggregates finished sessions for one clock hour.
type HourlyStat struct {
	Total         int           `json:"total"`
	Succeeded     int           `json:"succeeded"`
	Failed        int           `json:"failed"`
	AvgDuration   time.Duration `json:"avg_duration"`
	AvgConfidence float64       `json:"avg_confidence"`
}

// Monitor tracks one ProcessingSession per attempt. It is read-only
// from every other component's perspective; the only writes happen
// through StartSession/EndSession. Reads are concurrent, writes
// serialized by an internal lock.
type Monitor struct {
	logger  *slog.Logger
	metrics *Metrics

	mu       sync.RWMutex
	active   map[uuid.UUID]*entity.ProcessingSession
	finished []entity.ProcessingSession
}

func New(logger *slog.Logger, metrics *Metrics) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		logger:  logger,
		metrics: metrics,
		active:  make(map[uuid.UUID]*entity.ProcessingSession),
	}
}

// StartSession opens a session for one processing attempt and returns
// its id for the matching EndSession call.
func (m *Monitor) StartSession(taskID, fileName string) uuid.UUID {
	s := &entity.ProcessingSession{
		ID:        uuid.New(),
		TaskID:    taskID,
		FileName:  fileName,
		StartedAt: time.Now().UTC(),
		Status:    constants.SessionRunning,
	}

	m.mu.Lock()
	m.active[s.ID] = s
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.SessionStarted()
	}
	m.logger.Debug("monitor.session.start", "session_id", s.ID, "task_id", taskID)
	return s.ID
}

// EndSession closes a session with its outcome. Unknown ids are
// ignored (the attempt may have been pruned).
func (m *Monitor) EndSession(id uuid.UUID, status constants.SessionStatus, confidence float64, extractions int) {
	now := time.Now().UTC()

	m.mu.Lock()
	s, ok := m.active[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.active, id)
	s.EndedAt = &now
	s.Status = status
	s.Confidence = confidence
	s.Extractions = extractions
	m.finished = append(m.finished, *s)
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.SessionEnded(status, s.Duration())
	}
	m.logger.Debug("monitor.session.end",
		"session_id", id, "status", string(status),
		"duration_ms", s.Duration().Milliseconds(), "confidence", confidence)
}

// ActiveSessions returns a snapshot of in-flight attempts.
func (m *Monitor) ActiveSessions() []entity.ProcessingSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]entity.ProcessingSession, 0, len(m.active))
	for _, s := range m.active {
		out = append(out, *s)
	}
	return out
}

// FinishedSessions returns a copy of completed attempts.
func (m *Monitor) FinishedSessions() []entity.ProcessingSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]entity.ProcessingSession, len(m.finished))
	copy(out, m.finished)
	return out
}

// HourlyStats aggregates finished sessions keyed by UTC hour
// ("2006-01-02T15").
func (m *Monitor) HourlyStats() map[string]HourlyStat {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type acc struct {
		stat     HourlyStat
		dur      time.Duration
		confSum  float64
		confSeen int
	}
	accs := make(map[string]*acc)

	for _, s := range m.finished {
		key := s.StartedAt.Format("2006-01-02T15")
		a, ok := accs[key]
		if !ok {
			a = &acc{}
			accs[key] = a
		}
		a.stat.Total++
		if s.Status == constants.SessionSuccess {
			a.stat.Succeeded++
		} else {
			a.stat.Failed++
		}
		a.dur += s.Duration()
		a.confSum += s.Confidence
		a.confSeen++
	}

	out := make(map[string]HourlyStat, len(accs))
	for key, a := range accs {
		a.stat.AvgDuration = a.dur / time.Duration(a.stat.Total)
		if a.confSeen > 0 {
			a.stat.AvgConfidence = a.confSum / float64(a.confSeen)
		}
		out[key] = a.stat
	}
	return out
}

// Prune drops finished sessions older than maxAge, keeping the rolling
// window bounded on long-running daemons.
func (m *Monitor) Prune(maxAge time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.finished[:0]
	pruned := 0
	for _, s := range m.finished {
		if s.StartedAt.After(cutoff) {
			kept = append(kept, s)
		} else {
			pruned++
		}
	}
	m.finished = kept
	if pruned > 0 {
		m.logger.Debug("monitor.pruned", "count", pruned)
	}
	return pruned
}
