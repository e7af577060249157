package raster

import (
	"context"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gen2brain/go-fitz"
	"golang.org/x/sync/errgroup"

	"github.com/scanledger/scanledger/internal/entity"
)

// Config bounds the rasterizer. Zero values fall back to defaults.
type Config struct {
	DPI      float64 // render resolution, default 300
	MaxPages int     // pages beyond this are dropped with a warning
	Workers  int     // parallel page conversions, default 4
}

// Rasterizer converts PDF pages to PNG page images.
type Rasterizer struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Rasterizer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 10
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Rasterizer{cfg: cfg, logger: logger}
}

// Rasterize renders up to MaxPages pages of the PDF into destDir and
// returns the page images ordered by page index. Multi-page documents
// are converted in parallel; if the parallel pass fails it retries the
// whole document strictly sequentially, trading latency for
// reliability. Pages that fail in the sequential pass are skipped and
// the page-count mismatch is logged as a warning, not a hard failure.
func (r *Rasterizer) Rasterize(ctx context.Context, pdfPath, destDir, taskID string) ([]entity.PageImage, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	total := doc.NumPage()
	_ = doc.Close()

	if total == 0 {
		return nil, fmt.Errorf("pdf has no pages: %s", pdfPath)
	}

	pages := total
	if pages > r.cfg.MaxPages {
		r.logger.Warn("raster.pages.capped",
			"task_id", taskID, "reported", total, "cap", r.cfg.MaxPages)
		pages = r.cfg.MaxPages
	}

	var images []entity.PageImage
	if pages > 1 {
		images, err = r.renderParallel(ctx, pdfPath, destDir, taskID, pages, total)
		if err != nil {
			r.logger.Warn("raster.parallel.failed; falling back to sequential",
				"task_id", taskID, "error", err)
			images = r.renderSequential(ctx, pdfPath, destDir, taskID, pages, total)
		}
	} else {
		images = r.renderSequential(ctx, pdfPath, destDir, taskID, pages, total)
	}

	if len(images) == 0 {
		return nil, fmt.Errorf("no pages rendered from %s", pdfPath)
	}
	if len(images) != pages {
		r.logger.Warn("raster.pages.mismatch",
			"task_id", taskID, "expected", pages, "rendered", len(images))
	}

	sort.Slice(images, func(i, j int) bool { return images[i].PageIndex < images[j].PageIndex })
	return images, nil
}

// renderParallel converts pages with a bounded worker group. Each
// worker opens its own document handle; go-fitz handles are not safe
// for concurrent use.
func (r *Rasterizer) renderParallel(ctx context.Context, pdfPath, destDir, taskID string, pages, total int) ([]entity.PageImage, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)

	var mu sync.Mutex
	var images []entity.PageImage

	for i := 0; i < pages; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, err := r.renderPage(pdfPath, destDir, taskID, i, total)
			if err != nil {
				return fmt.Errorf("page %d: %w", i, err)
			}
			mu.Lock()
			images = append(images, img)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}

// renderSequential converts pages one at a time, skipping failures.
func (r *Rasterizer) renderSequential(ctx context.Context, pdfPath, destDir, taskID string, pages, total int) []entity.PageImage {
	var images []entity.PageImage
	for i := 0; i < pages; i++ {
		if ctx.Err() != nil {
			break
		}
		img, err := r.renderPage(pdfPath, destDir, taskID, i, total)
		if err != nil {
			r.logger.Warn("raster.page.failed", "task_id", taskID, "page", i, "error", err)
			continue
		}
		images = append(images, img)
	}
	return images
}

func (r *Rasterizer) renderPage(pdfPath, destDir, taskID string, index, total int) (entity.PageImage, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return entity.PageImage{}, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	img, err := doc.ImageDPI(index, r.cfg.DPI)
	if err != nil {
		return entity.PageImage{}, fmt.Errorf("render: %w", err)
	}

	out := filepath.Join(destDir, fmt.Sprintf("page-%03d.png", index))
	f, err := os.Create(out)
	if err != nil {
		return entity.PageImage{}, fmt.Errorf("create: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return entity.PageImage{}, fmt.Errorf("encode png: %w", err)
	}

	return entity.PageImage{
		TaskID:     taskID,
		PageIndex:  index,
		TotalPages: total,
		Path:       out,
	}, nil
}
