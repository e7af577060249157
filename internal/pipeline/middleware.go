package pipeline

import (
	"time"
)

// stage wraps one pipeline step with timing and outcome logging so
// every step reports the same way.
func (o *Orchestrator) stage(name, taskID string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		o.logger.Warn("pipeline.stage.failed",
			"stage", name, "task_id", taskID, "elapsed_ms", elapsed, "error", err)
		return err
	}
	o.logger.Debug("pipeline.stage.ok",
		"stage", name, "task_id", taskID, "elapsed_ms", elapsed)
	return nil
}
