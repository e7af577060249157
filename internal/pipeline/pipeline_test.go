package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanledger/scanledger/constants"
	"github.com/scanledger/scanledger/internal/categorize"
	"github.com/scanledger/scanledger/internal/entity"
	"github.com/scanledger/scanledger/internal/monitor"
	"github.com/scanledger/scanledger/internal/optimize"
	"github.com/scanledger/scanledger/internal/parse"
	"github.com/scanledger/scanledger/internal/procerr"
	"github.com/scanledger/scanledger/internal/sink"
	"github.com/scanledger/scanledger/internal/source"
)

const goodText = `テスト商店
2024年1月15日
コーヒー 450
合計 450円
現金`

// fakeSource keeps file states in memory and serves real files from a
// temp dir so content hashing works.
type fakeSource struct {
	mu      sync.Mutex
	dir     string
	state   map[string]source.Folder
	reasons map[string]string

	loseProcessed bool // MoveToProcessed claims success without moving
	failError     bool
	failErrorOnce bool
}

func newFakeSource(t *testing.T) *fakeSource {
	t.Helper()
	return &fakeSource{
		dir:     t.TempDir(),
		state:   make(map[string]source.Folder),
		reasons: make(map[string]string),
	}
}

func (f *fakeSource) addFile(t *testing.T, id, content string) entity.FileTask {
	t.Helper()
	path := filepath.Join(f.dir, id)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	f.mu.Lock()
	f.state[id] = source.FolderIncoming
	f.mu.Unlock()
	return entity.FileTask{ID: id, Name: id, Size: int64(len(content)), Type: constants.PDF}
}

func (f *fakeSource) ListNewFiles(context.Context) ([]entity.FileTask, error) { return nil, nil }

func (f *fakeSource) Download(_ context.Context, id string) (string, error) {
	return filepath.Join(f.dir, id), nil
}

func (f *fakeSource) MoveToProcessed(_ context.Context, id string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loseProcessed {
		delete(f.state, id) // file vanishes from every area
		return nil
	}
	f.state[id] = source.FolderProcessed
	return nil
}

func (f *fakeSource) MoveToError(_ context.Context, id, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failError {
		return errors.New("error area unavailable")
	}
	if f.failErrorOnce {
		f.failErrorOnce = false
		return errors.New("error area unavailable")
	}
	f.state[id] = source.FolderError
	f.reasons[id] = reason
	return nil
}

func (f *fakeSource) ExistsIn(_ context.Context, id string, folder source.Folder) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state[id] == folder, nil
}

// fakeRasterizer fabricates page handles without touching mupdf.
type fakeRasterizer struct {
	pages int
}

func (r *fakeRasterizer) Rasterize(_ context.Context, _, destDir, taskID string) ([]entity.PageImage, error) {
	n := r.pages
	if n <= 0 {
		n = 1
	}
	out := make([]entity.PageImage, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, entity.PageImage{
			TaskID: taskID, PageIndex: i, TotalPages: n,
			Path: filepath.Join(destDir, fmt.Sprintf("page-%03d.png", i)),
		})
	}
	return out, nil
}

func (r *fakeRasterizer) NormalizeImage(_, destDir, taskID string) (entity.PageImage, error) {
	return entity.PageImage{TaskID: taskID, TotalPages: 1, Path: filepath.Join(destDir, "page-000.png")}, nil
}

// fakeExtractor scripts extraction per task.
type fakeExtractor struct {
	mu        sync.Mutex
	failAll   map[string]bool
	failPage  map[string]int
	failFirst int // fail this many calls before succeeding
	calls     int
}

func (e *fakeExtractor) Extract(_ context.Context, page entity.PageImage) entity.ExtractionResult {
	e.mu.Lock()
	e.calls++
	transient := e.failFirst > 0
	if transient {
		e.failFirst--
	}
	e.mu.Unlock()

	if transient {
		return entity.ExtractionResult{TaskID: page.TaskID, PageIndex: page.PageIndex, Success: false, Error: "engine hiccup"}
	}
	if e.failAll[page.TaskID] {
		return entity.ExtractionResult{TaskID: page.TaskID, PageIndex: page.PageIndex, Success: false, Error: "ocr produced nothing"}
	}
	if idx, ok := e.failPage[page.TaskID]; ok && idx == page.PageIndex {
		return entity.ExtractionResult{TaskID: page.TaskID, PageIndex: page.PageIndex, Success: false, Error: "page unreadable"}
	}
	return entity.ExtractionResult{
		TaskID: page.TaskID, PageIndex: page.PageIndex,
		Strategy: entity.StrategyOCR, Text: goodText, Success: true,
	}
}

// fakeSink counts calls, optionally failing the first N with a scripted
// error, and deduplicates on content hash like the real store sink.
type fakeSink struct {
	mu       sync.Mutex
	calls    int
	failures int
	err      error
	byHash   map[string]string
}

func newFakeSink() *fakeSink {
	return &fakeSink{byHash: make(map[string]string)}
}

func (s *fakeSink) CreateRecord(_ context.Context, rec *entity.ReceiptRecord, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failures > 0 {
		s.failures--
		return "", s.err
	}
	if rec.ContentHash != "" {
		if id, ok := s.byHash[rec.ContentHash]; ok {
			return id, sink.ErrDuplicate
		}
		s.byHash[rec.ContentHash] = rec.ID.String()
	}
	return rec.ID.String(), nil
}

func newTestOrchestrator(src source.Source, ext Extractor, snk sink.Sink) *Orchestrator {
	return NewOrchestrator(Services{
		Source:      src,
		Rasterizer:  &fakeRasterizer{pages: 1},
		Extractor:   ext,
		Parser:      parse.New(nil, parse.DefaultThreshold),
		Categorizer: categorize.New(nil),
		Sink:        snk,
		Monitor:     monitor.New(nil, nil),
		Optimizer:   optimize.New(optimize.Config{MinWorkers: 1, MaxWorkers: 2}, nil, nil),
	})
}

func TestRunAllSucceed(t *testing.T) {
	src := newFakeSource(t)
	tasks := []entity.FileTask{
		src.addFile(t, "a.pdf", "receipt a"),
		src.addFile(t, "b.pdf", "receipt b"),
		src.addFile(t, "c.pdf", "receipt c"),
	}
	snk := newFakeSink()
	o := newTestOrchestrator(src, &fakeExtractor{}, snk)

	report := o.Run(context.Background(), tasks)

	assert.Equal(t, 3, report.SuccessCount)
	assert.Zero(t, report.ErrorCount)
	assert.Zero(t, report.RetriedCount)
	assert.Empty(t, report.Unresolved)
	assert.Equal(t, 3, snk.calls)

	for _, task := range tasks {
		ok, err := src.ExistsIn(context.Background(), task.ID, source.FolderProcessed)
		require.NoError(t, err)
		assert.True(t, ok, task.ID)
	}
}

func TestRunNoFileLeftBehind(t *testing.T) {
	src := newFakeSource(t)
	tasks := []entity.FileTask{
		src.addFile(t, "good.pdf", "fine"),
		src.addFile(t, "bad.pdf", "broken"),
	}
	ext := &fakeExtractor{failAll: map[string]bool{"bad.pdf": true}}
	o := newTestOrchestrator(src, ext, newFakeSink())

	report := o.Run(context.Background(), tasks)

	assert.Equal(t, 1, report.SuccessCount)
	assert.Equal(t, 1, report.ErrorCount)
	assert.Empty(t, report.Unresolved)

	// every file ends in exactly one terminal area
	for _, task := range tasks {
		inProcessed, _ := src.ExistsIn(context.Background(), task.ID, source.FolderProcessed)
		inError, _ := src.ExistsIn(context.Background(), task.ID, source.FolderError)
		assert.True(t, inProcessed != inError, "%s must be in exactly one area", task.ID)
	}

	assert.Greater(t, o.ErrLog().CountByKind(procerr.KindOCR), 0)
}

func TestRunDuplicateContentIsIdempotent(t *testing.T) {
	src := newFakeSource(t)
	tasks := []entity.FileTask{
		src.addFile(t, "orig.pdf", "identical bytes"),
		src.addFile(t, "copy.pdf", "identical bytes"),
	}
	snk := newFakeSink()
	o := newTestOrchestrator(src, &fakeExtractor{}, snk)

	report := o.Run(context.Background(), tasks)

	assert.Equal(t, 2, report.SuccessCount, "a duplicate still counts as handled")
	assert.Len(t, snk.byHash, 1, "only one record exists for the content")

	for _, task := range tasks {
		ok, _ := src.ExistsIn(context.Background(), task.ID, source.FolderProcessed)
		assert.True(t, ok, task.ID)
	}
}

func TestRunPartialPageFailureStillProcesses(t *testing.T) {
	src := newFakeSource(t)
	task := src.addFile(t, "multi.pdf", "three pages")

	ext := &fakeExtractor{failPage: map[string]int{"multi.pdf": 1}}
	o := NewOrchestrator(Services{
		Source:      src,
		Rasterizer:  &fakeRasterizer{pages: 3},
		Extractor:   ext,
		Parser:      parse.New(nil, parse.DefaultThreshold),
		Categorizer: categorize.New(nil),
		Sink:        newFakeSink(),
		Monitor:     monitor.New(nil, nil),
		Optimizer:   optimize.New(optimize.Config{MinWorkers: 1, MaxWorkers: 2}, nil, nil),
	})

	report := o.Run(context.Background(), []entity.FileTask{task})

	assert.Equal(t, 1, report.SuccessCount)
	ok, _ := src.ExistsIn(context.Background(), task.ID, source.FolderProcessed)
	assert.True(t, ok, "partial page failure degrades, never aborts")
	assert.Equal(t, 1, o.ErrLog().CountByKind(procerr.KindOCR))
}

func TestRunSinkRetrySucceeds(t *testing.T) {
	src := newFakeSource(t)
	task := src.addFile(t, "flaky.pdf", "x")

	snk := newFakeSink()
	snk.failures = 1
	snk.err = procerr.New(procerr.KindOCR, "transient sink hiccup", nil) // zero-delay retry policy

	o := newTestOrchestrator(src, &fakeExtractor{}, snk)
	report := o.Run(context.Background(), []entity.FileTask{task})

	assert.Equal(t, 1, report.SuccessCount)
	assert.Equal(t, 2, snk.calls)
}

func TestVerifyForceRoutesLostFiles(t *testing.T) {
	src := newFakeSource(t)
	src.loseProcessed = true
	task := src.addFile(t, "lost.pdf", "x")

	o := newTestOrchestrator(src, &fakeExtractor{}, newFakeSink())
	report := o.Run(context.Background(), []entity.FileTask{task})

	assert.Equal(t, 1, report.RetriedCount)
	ok, _ := src.ExistsIn(context.Background(), task.ID, source.FolderError)
	assert.True(t, ok, "a file in neither area is force routed to error")
	assert.Empty(t, report.Unresolved)

	// the report follows the file, not the batch-time claim of success
	assert.Zero(t, report.SuccessCount)
	assert.Equal(t, 1, report.ErrorCount)
}

func TestVerifyReportsUnresolved(t *testing.T) {
	src := newFakeSource(t)
	src.loseProcessed = true
	src.failError = true
	task := src.addFile(t, "stuck.pdf", "x")

	o := newTestOrchestrator(src, &fakeExtractor{}, newFakeSink())
	report := o.Run(context.Background(), []entity.FileTask{task})

	require.Len(t, report.Unresolved, 1)
	assert.Equal(t, task.ID, report.Unresolved[0])
	assert.Zero(t, report.SuccessCount)
	assert.Zero(t, report.ErrorCount)
}

func TestRunTransientExtractionFailureRecovers(t *testing.T) {
	src := newFakeSource(t)
	src.failErrorOnce = true // keeps the file out of both areas so verify retries it
	task := src.addFile(t, "transient.pdf", "x")

	ext := &fakeExtractor{failFirst: 1}
	o := newTestOrchestrator(src, ext, newFakeSink())
	report := o.Run(context.Background(), []entity.FileTask{task})

	// the failed extraction must not be memoized for this content
	assert.Equal(t, 2, ext.calls)
	assert.Equal(t, 1, report.SuccessCount)
	assert.Zero(t, report.ErrorCount)
	assert.Equal(t, 1, report.RetriedCount)

	ok, _ := src.ExistsIn(context.Background(), task.ID, source.FolderProcessed)
	assert.True(t, ok)
}

func TestRunArchivesSessionsAndEvents(t *testing.T) {
	src := newFakeSource(t)
	tasks := []entity.FileTask{
		src.addFile(t, "ok.pdf", "fine"),
		src.addFile(t, "bad.pdf", "broken"),
	}
	arch := &fakeArchive{}

	o := NewOrchestrator(Services{
		Source:      src,
		Rasterizer:  &fakeRasterizer{pages: 1},
		Extractor:   &fakeExtractor{failAll: map[string]bool{"bad.pdf": true}},
		Parser:      parse.New(nil, parse.DefaultThreshold),
		Categorizer: categorize.New(nil),
		Sink:        newFakeSink(),
		Monitor:     monitor.New(nil, nil),
		Optimizer:   optimize.New(optimize.Config{MinWorkers: 1, MaxWorkers: 2}, nil, nil),
		Archive:     arch,
	})
	o.Run(context.Background(), tasks)

	assert.Len(t, arch.sessions, 2)
	assert.NotEmpty(t, arch.events)
}

func TestFlushArtifactsArchivesEachOnce(t *testing.T) {
	src := newFakeSource(t)
	arch := &fakeArchive{}
	o := NewOrchestrator(Services{
		Source:      src,
		Rasterizer:  &fakeRasterizer{pages: 1},
		Extractor:   &fakeExtractor{failAll: map[string]bool{"bad.pdf": true}},
		Parser:      parse.New(nil, parse.DefaultThreshold),
		Categorizer: categorize.New(nil),
		Sink:        newFakeSink(),
		Monitor:     monitor.New(nil, nil),
		Optimizer:   optimize.New(optimize.Config{MinWorkers: 1, MaxWorkers: 2}, nil, nil),
		Archive:     arch,
	})

	o.Run(context.Background(), []entity.FileTask{
		src.addFile(t, "ok.pdf", "fine"),
		src.addFile(t, "bad.pdf", "broken"),
	})
	sessionsAfterFirst := len(arch.sessions)
	eventsAfterFirst := len(arch.events)
	require.Equal(t, 2, sessionsAfterFirst)
	require.NotZero(t, eventsAfterFirst)

	// a clean second batch must not replay the first batch's artifacts
	o.Run(context.Background(), []entity.FileTask{src.addFile(t, "more.pdf", "more")})

	assert.Len(t, arch.sessions, sessionsAfterFirst+1)
	assert.Len(t, arch.events, eventsAfterFirst)
	assert.Len(t, o.ErrLog().Events(), eventsAfterFirst)
}

type fakeArchive struct {
	mu       sync.Mutex
	sessions []entity.ProcessingSession
	events   []procerr.Event
}

func (a *fakeArchive) SaveSession(_ context.Context, s *entity.ProcessingSession) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessions = append(a.sessions, *s)
	return nil
}

func (a *fakeArchive) RecordErrorEvent(_ context.Context, ev procerr.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
	return nil
}

func TestErrorFileCarriesOperatorReason(t *testing.T) {
	src := newFakeSource(t)
	task := src.addFile(t, "bad.pdf", "broken")

	o := newTestOrchestrator(src, &fakeExtractor{failAll: map[string]bool{"bad.pdf": true}}, newFakeSink())
	o.Run(context.Background(), []entity.FileTask{task})

	src.mu.Lock()
	defer src.mu.Unlock()
	assert.Equal(t, source.FolderError, src.state[task.ID])
	assert.NotEmpty(t, src.reasons[task.ID])
}
