package pipeline

import (
	"context"

	"github.com/scanledger/scanledger/internal/entity"
	"github.com/scanledger/scanledger/internal/source"
)

// verify reconciles the batch after all workers finish: every task must
// reside in exactly one terminal area. A missing file gets one
// synchronous reprocess; if it is still unaccounted for it is force
// routed to the error area. Runs single threaded so no relocation races
// a worker. Returns the ids that recovered to processed, the ids force
// routed to error, and the ids left in neither area.
func (o *Orchestrator) verify(ctx context.Context, tasks []entity.FileTask) (retried int, recovered, forced, unresolved []string) {
	for _, task := range tasks {
		area, err := o.locate(ctx, task.ID)
		if err != nil {
			o.logger.Warn("verify.locate.failed", "task_id", task.ID, "error", err)
		}
		if area != "" {
			continue
		}

		o.logger.Warn("verify.file.missing", "task_id", task.ID, "file", task.Name)
		retried++
		ok := o.runOne(ctx, task)

		// Trust the filesystem over the return value.
		area, _ = o.locate(ctx, task.ID)
		if area != "" {
			if ok && area == source.FolderProcessed {
				recovered = append(recovered, task.ID)
			}
			continue
		}

		// Last resort: park the file where an operator will see it.
		if err := o.svc.Source.MoveToError(ctx, task.ID, "needs manual review"); err != nil {
			o.logger.Error("verify.force_route.failed", "task_id", task.ID, "error", err)
			unresolved = append(unresolved, task.ID)
			continue
		}
		forced = append(forced, task.ID)
		o.logger.Info("verify.force_routed", "task_id", task.ID)
	}
	return retried, recovered, forced, unresolved
}

// locate returns the terminal area holding the file, or "" when the
// file is in neither.
func (o *Orchestrator) locate(ctx context.Context, id string) (source.Folder, error) {
	ok, err := o.svc.Source.ExistsIn(ctx, id, source.FolderProcessed)
	if err != nil {
		return "", err
	}
	if ok {
		return source.FolderProcessed, nil
	}
	ok, err = o.svc.Source.ExistsIn(ctx, id, source.FolderError)
	if err != nil {
		return "", err
	}
	if ok {
		return source.FolderError, nil
	}
	return "", nil
}
