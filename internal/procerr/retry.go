package procerr

import (
	"context"
	"log/slog"
	"time"
)

// Do runs fn, retrying per the classified error's recovery policy with
// exponential-style backoff (delay, 2*delay, 4*delay, ...). The last
// classified error is returned when the budget is exhausted. Each
// transient failure is recorded on the log as a non-terminal event.
func Do(ctx context.Context, logger *slog.Logger, log *Log, op string, fn func(ctx context.Context) error) error {
	if logger == nil {
		logger = slog.Default()
	}

	var last *ProcError
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		last = Classify(err)
		policy := PolicyFor(last.Kind)
		if log != nil {
			log.Record(last.WithContext("op", op))
		}

		if attempt >= policy.MaxRetries {
			logger.Error("retry.exhausted",
				"op", op, "kind", string(last.Kind), "attempts", attempt+1, "fallback", string(policy.Fallback), "error", err)
			return last
		}

		delay := policy.RetryDelay << attempt
		logger.Warn("retry.backoff",
			"op", op, "kind", string(last.Kind), "attempt", attempt+1, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return Classify(ctx.Err())
		case <-time.After(delay):
		}
	}
}
