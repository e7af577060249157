// Package pipeline orchestrates the receipt run: ingest, rasterize,
// extract, parse, categorize, persist, relocate, then verify that every
// file ended up in exactly one terminal area.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/scanledger/scanledger/internal/categorize"
	"github.com/scanledger/scanledger/internal/entity"
	"github.com/scanledger/scanledger/internal/monitor"
	"github.com/scanledger/scanledger/internal/optimize"
	"github.com/scanledger/scanledger/internal/parse"
	"github.com/scanledger/scanledger/internal/procerr"
	"github.com/scanledger/scanledger/internal/sink"
	"github.com/scanledger/scanledger/internal/source"
)

// Extractor runs the strategy chain over one page.
type Extractor interface {
	Extract(ctx context.Context, page entity.PageImage) entity.ExtractionResult
}

// Rasterizer turns source files into page images inside a temp scope.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdfPath, destDir, taskID string) ([]entity.PageImage, error)
	NormalizeImage(srcPath, destDir, taskID string) (entity.PageImage, error)
}

// Archiver persists run artifacts (sessions, error events) after a batch.
// Optional; a nil archiver skips persistence.
type Archiver interface {
	SaveSession(ctx context.Context, sess *entity.ProcessingSession) error
	RecordErrorEvent(ctx context.Context, ev procerr.Event) error
}

// Services bundles the collaborators one orchestrator run needs.
// Explicit wiring; no package-level singletons.
type Services struct {
	Source      source.Source
	Rasterizer  Rasterizer
	Extractor   Extractor
	Parser      *parse.Parser
	Categorizer *categorize.Categorizer
	Sink        sink.Sink
	Monitor     *monitor.Monitor
	Optimizer   *optimize.Optimizer
	Archive     Archiver
	ErrLog      *procerr.Log
	Logger      *slog.Logger
}

// Orchestrator drives batches of file tasks through the pipeline. The
// flush bookkeeping keeps long-lived (watch mode) orchestrators from
// re-archiving sessions and events already persisted by earlier runs.
type Orchestrator struct {
	svc    Services
	logger *slog.Logger

	flushedEvents   int // events archived so far; the log is append-only
	flushedSessions map[uuid.UUID]struct{}
}

func NewOrchestrator(svc Services) *Orchestrator {
	if svc.Logger == nil {
		svc.Logger = slog.Default()
	}
	if svc.ErrLog == nil {
		svc.ErrLog = procerr.NewLog()
	}
	return &Orchestrator{
		svc:             svc,
		logger:          svc.Logger,
		flushedSessions: make(map[uuid.UUID]struct{}),
	}
}

// ErrLog exposes the run's error log for reporting.
func (o *Orchestrator) ErrLog() *procerr.Log {
	return o.svc.ErrLog
}
