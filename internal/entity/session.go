package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/scanledger/scanledger/constants"
)

// ProcessingSession tracks one processing attempt for one file task.
// Multiple sessions may exist per file across retries.
type ProcessingSession struct {
	ID          uuid.UUID               `json:"id"`
	TaskID      string                  `json:"task_id"`
	FileName    string                  `json:"file_name"`
	StartedAt   time.Time               `json:"started_at"`
	EndedAt     *time.Time              `json:"ended_at,omitempty"`
	Status      constants.SessionStatus `json:"status"`
	Confidence  float64                 `json:"confidence"`
	Extractions int                     `json:"extractions"`
}

// Duration returns the wall-clock duration of the session, or the time
// elapsed so far if it has not ended.
func (s *ProcessingSession) Duration() time.Duration {
	if s.EndedAt != nil {
		return s.EndedAt.Sub(s.StartedAt)
	}
	return time.Since(s.StartedAt)
}

// PerformanceSnapshot is a periodic sample of system load used to drive
// adaptive concurrency. Not persisted beyond the run.
type PerformanceSnapshot struct {
	SampledAt     time.Time `json:"sampled_at"`
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
	DiskPercent   float64   `json:"disk_percent"`
	QueueDepth    int       `json:"queue_depth"`
	ActiveWorkers int       `json:"active_workers"`
}

// BatchReport summarizes one orchestrator run over a batch of files.
type BatchReport struct {
	SuccessCount int      `json:"success_count"`
	ErrorCount   int      `json:"error_count"`
	RetriedCount int      `json:"retried_count"`
	Unresolved   []string `json:"unresolved,omitempty"` // task IDs left in neither area
	Elapsed      time.Duration
}
