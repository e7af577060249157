package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/scanledger/scanledger/constants"
	"github.com/scanledger/scanledger/internal/entity"
	"github.com/scanledger/scanledger/internal/parse"
	"github.com/scanledger/scanledger/internal/procerr"
	"github.com/scanledger/scanledger/internal/sink"
)

// Run processes the batch and then verifies that every task landed in a
// terminal area. Concurrency follows the optimizer's current worker
// count; the batch size follows its drain policy.
func (o *Orchestrator) Run(ctx context.Context, tasks []entity.FileTask) entity.BatchReport {
	start := time.Now()
	o.logger.Info("pipeline.run.start", "tasks", len(tasks))

	var (
		mu           sync.Mutex
		successCount int
		errorCount   int
	)
	outcomes := make(map[string]bool, len(tasks))

	queue := tasks
	for len(queue) > 0 && ctx.Err() == nil {
		snap := o.svc.Optimizer.Sample(ctx, len(queue))
		o.svc.Optimizer.AutoOptimize(snap)

		n := o.svc.Optimizer.DrainBatch(len(queue))
		batch := queue[:n]
		queue = queue[n:]

		g := new(errgroup.Group)
		g.SetLimit(o.svc.Optimizer.Workers())
		for _, task := range batch {
			task := task
			g.Go(func() error {
				ok := o.runOne(ctx, task)
				mu.Lock()
				outcomes[task.ID] = ok
				if ok {
					successCount++
				} else {
					errorCount++
				}
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}

	retried, recovered, forced, unresolved := o.verify(ctx, tasks)
	for _, id := range recovered {
		if !outcomes[id] {
			successCount++
			errorCount--
		}
	}
	for _, id := range forced {
		// batch counted it a success, but the file ended up in error
		if outcomes[id] {
			successCount--
			errorCount++
		}
	}
	for _, id := range unresolved {
		if outcomes[id] {
			successCount--
		} else {
			errorCount--
		}
	}
	if successCount < 0 {
		successCount = 0
	}
	if errorCount < 0 {
		errorCount = 0
	}

	report := entity.BatchReport{
		SuccessCount: successCount,
		ErrorCount:   errorCount,
		RetriedCount: retried,
		Unresolved:   unresolved,
		Elapsed:      time.Since(start),
	}

	o.flushArtifacts(ctx)

	o.logger.Info("pipeline.run.done",
		"success", report.SuccessCount,
		"errors", report.ErrorCount,
		"retried", report.RetriedCount,
		"unresolved", len(report.Unresolved),
		"elapsed_ms", report.Elapsed.Milliseconds())
	return report
}

// runOne processes a single task and routes it to the error area on
// failure. Returns true when the file reached the processed area.
func (o *Orchestrator) runOne(ctx context.Context, task entity.FileTask) bool {
	err := o.processFile(ctx, task)
	if err == nil {
		return true
	}

	pe := procerr.Classify(err)
	o.svc.ErrLog.Record(pe.WithContext("task_id", task.ID))
	o.logger.Error("pipeline.file.failed",
		"task_id", task.ID, "file", task.Name, "kind", string(pe.Kind), "error", err)

	if mvErr := o.svc.Source.MoveToError(ctx, task.ID, pe.UserMessage()); mvErr != nil {
		o.logger.Error("pipeline.relocate.failed",
			"task_id", task.ID, "error", mvErr)
	}
	return false
}

// processFile runs the full stage sequence for one task. On success the
// file has been relocated to the processed area; any error means the
// caller must route the file to the error area.
func (o *Orchestrator) processFile(ctx context.Context, task entity.FileTask) error {
	sessID := o.svc.Monitor.StartSession(task.ID, task.Name)
	sessStatus := constants.SessionFailed
	var confidence float64
	extractions := 0
	defer func() {
		o.svc.Monitor.EndSession(sessID, sessStatus, confidence, extractions)
	}()

	// Every run gets a private temp scope, removed unconditionally.
	tmp, err := os.MkdirTemp("", "scanledger-*")
	if err != nil {
		return procerr.New(procerr.KindSystem, "create temp scope", err)
	}
	defer os.RemoveAll(tmp)

	var local string
	if err := o.stage("download", task.ID, func() error {
		var err error
		local, err = o.svc.Source.Download(ctx, task.ID)
		return err
	}); err != nil {
		return procerr.New(procerr.KindFileIO, "download source file", err)
	}

	hash, err := contentHash(local)
	if err != nil {
		return procerr.New(procerr.KindFileIO, "hash source file", err)
	}

	var pages []entity.PageImage
	if err := o.stage("rasterize", task.ID, func() error {
		var err error
		pages, err = o.renderPages(ctx, task, local, tmp)
		return err
	}); err != nil {
		return err
	}

	results := o.extractPages(ctx, task, hash, pages)

	var textParts []string
	var fields *entity.ReceiptFields
	failedPages := 0
	for _, res := range results {
		if !res.Success {
			failedPages++
			o.svc.ErrLog.Record(procerr.New(procerr.KindOCR,
				fmt.Sprintf("page %d extraction failed: %s", res.PageIndex, res.Error), nil).
				WithContext("task_id", task.ID))
			continue
		}
		extractions++
		if res.Text != "" {
			textParts = append(textParts, res.Text)
		}
		if fields == nil && res.Fields != nil {
			fields = res.Fields
		}
	}
	if extractions == 0 {
		return procerr.New(procerr.KindOCR, "no page yielded any text", nil)
	}

	rec := o.svc.Parser.Parse(parse.Input{
		Text:     strings.Join(textParts, "\n"),
		Fields:   fields,
		FileName: task.Name,
	})
	rec.ContentHash = hash
	// Partial page failures degrade, never abort: the record carries a note.
	if failedPages > 0 {
		rec.AddNote(fmt.Sprintf("%d of %d pages failed extraction", failedPages, len(pages)))
	}

	asg := o.svc.Categorizer.Categorize(rec.VendorName, rec.Total, rec.Items)
	rec.Category = asg.Category
	rec.AccountCode = asg.Account

	duplicate := false
	if err := o.stage("persist", task.ID, func() error {
		return procerr.Do(ctx, o.logger, o.svc.ErrLog, "sink.create", func(ctx context.Context) error {
			_, err := o.svc.Sink.CreateRecord(ctx, &rec, local)
			if errors.Is(err, sink.ErrDuplicate) {
				duplicate = true
				return nil
			}
			return err
		})
	}); err != nil {
		return err
	}
	if duplicate {
		o.logger.Info("pipeline.file.duplicate", "task_id", task.ID, "hash", hash)
	}

	moveDate := time.Now().UTC()
	if rec.Date != nil {
		moveDate = *rec.Date
	}
	if err := o.stage("relocate", task.ID, func() error {
		return o.svc.Source.MoveToProcessed(ctx, task.ID, moveDate)
	}); err != nil {
		return procerr.New(procerr.KindFileIO, "move to processed", err)
	}

	sessStatus = constants.SessionSuccess
	confidence = rec.Confidence
	o.logger.Info("pipeline.file.done",
		"task_id", task.ID,
		"file", task.Name,
		"status", string(rec.Status),
		"confidence", rec.Confidence,
		"category", string(rec.Category))
	return nil
}

// renderPages produces page images for the task: PDFs are rasterized
// page by page, images normalized to a single PNG page.
func (o *Orchestrator) renderPages(ctx context.Context, task entity.FileTask, local, tmp string) ([]entity.PageImage, error) {
	switch task.Type {
	case constants.PDF:
		pages, err := o.svc.Rasterizer.Rasterize(ctx, local, tmp, task.ID)
		if err != nil {
			return nil, procerr.New(procerr.KindFileIO, "rasterize pdf", err)
		}
		if len(pages) == 0 {
			return nil, procerr.New(procerr.KindFileIO, "pdf produced no pages", nil)
		}
		return pages, nil
	case constants.IMAGE:
		page, err := o.svc.Rasterizer.NormalizeImage(local, tmp, task.ID)
		if err != nil {
			return nil, procerr.New(procerr.KindFileIO, "normalize image", err)
		}
		return []entity.PageImage{page}, nil
	default:
		return nil, procerr.New(procerr.KindValidation,
			fmt.Sprintf("unsupported file type %s", task.Type), nil)
	}
}

// extractPages runs the strategy chain per page, short-circuiting via
// the optimizer cache when the same content was already extracted.
func (o *Orchestrator) extractPages(ctx context.Context, task entity.FileTask, hash string, pages []entity.PageImage) []entity.ExtractionResult {
	if cached, ok := o.svc.Optimizer.CacheGet(hash); ok {
		if results, ok := cached.([]entity.ExtractionResult); ok {
			o.logger.Debug("pipeline.extract.cached", "task_id", task.ID, "hash", hash)
			return results
		}
	}

	results := make([]entity.ExtractionResult, 0, len(pages))
	allOK := true
	for _, page := range pages {
		res := o.svc.Extractor.Extract(ctx, page)
		if !res.Success {
			allOK = false
		}
		results = append(results, res)
	}
	// Only fully successful extractions are cached: a transient failure
	// must stay retryable, not be replayed on the verification pass.
	if allOK {
		o.svc.Optimizer.CacheSet(hash, results)
	}
	return results
}

// flushArtifacts persists finished sessions and error events when an
// archiver is wired. Failures are logged, never fatal. Only artifacts
// not yet archived by a previous run are written: sessions by id (the
// monitor's window is pruned in watch mode, so ids, not indices), error
// events by a high-water mark over the append-only log.
func (o *Orchestrator) flushArtifacts(ctx context.Context) {
	if o.svc.Archive == nil {
		return
	}

	seen := make(map[uuid.UUID]struct{})
	for _, sess := range o.svc.Monitor.FinishedSessions() {
		sess := sess
		if _, done := o.flushedSessions[sess.ID]; done {
			seen[sess.ID] = struct{}{}
			continue
		}
		if err := o.svc.Archive.SaveSession(ctx, &sess); err != nil {
			o.logger.Warn("pipeline.archive.session", "session_id", sess.ID, "error", err)
			continue
		}
		seen[sess.ID] = struct{}{}
	}
	o.flushedSessions = seen

	events := o.svc.ErrLog.Events()
	for _, ev := range events[o.flushedEvents:] {
		if err := o.svc.Archive.RecordErrorEvent(ctx, ev); err != nil {
			o.logger.Warn("pipeline.archive.event", "event_id", ev.ID, "error", err)
		}
	}
	o.flushedEvents = len(events)
}

func contentHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
