package extract

import (
	"context"
	"log/slog"
	"time"

	"github.com/scanledger/scanledger/internal/entity"
)

// DefaultCallTimeout bounds a single strategy attempt.
const DefaultCallTimeout = 60 * time.Second

// Engine runs the strategy fallback chain: the structured (LLM)
// extractor first, then plain OCR. No strategy may block indefinitely
// and no strategy failure propagates past the Engine; exhaustion
// degrades to a success=false result for the error classifier.
type Engine struct {
	strategies []Strategy
	timeout    time.Duration
	logger     *slog.Logger
}

func NewEngine(logger *slog.Logger, timeout time.Duration, strategies ...Strategy) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Engine{strategies: strategies, timeout: timeout, logger: logger}
}

// Extract tries each strategy in order until one produces a non-empty
// result. The chosen strategy is recorded on the result.
func (e *Engine) Extract(ctx context.Context, page entity.PageImage) entity.ExtractionResult {
	var lastErr string

	for _, s := range e.strategies {
		cctx, cancel := context.WithTimeout(ctx, e.timeout)
		res, err := s.Attempt(cctx, page)
		cancel()

		if err != nil {
			lastErr = err.Error()
			e.logger.Warn("extract.strategy.failed",
				"strategy", s.Name(), "task_id", page.TaskID, "page", page.PageIndex, "error", err)
			continue
		}
		if !res.Success || (res.Text == "" && res.Fields == nil) {
			e.logger.Warn("extract.strategy.empty",
				"strategy", s.Name(), "task_id", page.TaskID, "page", page.PageIndex)
			continue
		}

		res.TaskID = page.TaskID
		res.PageIndex = page.PageIndex
		res.Strategy = s.Name()
		e.logger.Debug("extract.strategy.ok",
			"strategy", s.Name(), "task_id", page.TaskID, "page", page.PageIndex,
			"text_len", len(res.Text), "structured", res.Fields != nil)
		return res
	}

	if lastErr == "" {
		lastErr = "all extraction strategies returned empty results"
	}
	return entity.ExtractionResult{
		TaskID:    page.TaskID,
		PageIndex: page.PageIndex,
		Success:   false,
		Error:     lastErr,
	}
}
