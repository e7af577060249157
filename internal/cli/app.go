// Package cli wires the application together and exposes the cobra
// command tree.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/scanledger/scanledger/constants"
	"github.com/scanledger/scanledger/internal/categorize"
	"github.com/scanledger/scanledger/internal/config"
	"github.com/scanledger/scanledger/internal/extract"
	"github.com/scanledger/scanledger/internal/extract/gemini"
	"github.com/scanledger/scanledger/internal/monitor"
	"github.com/scanledger/scanledger/internal/optimize"
	"github.com/scanledger/scanledger/internal/parse"
	"github.com/scanledger/scanledger/internal/pipeline"
	"github.com/scanledger/scanledger/internal/raster"
	"github.com/scanledger/scanledger/internal/sink"
	"github.com/scanledger/scanledger/internal/source"
	"github.com/scanledger/scanledger/internal/store"
)

// App holds the wired services for one invocation. Built once per
// command; no package-level singletons.
type App struct {
	Cfg          *config.Config
	Logger       *slog.Logger
	Store        *store.Store
	Source       *source.LocalSource
	Monitor      *monitor.Monitor
	Metrics      *monitor.Metrics
	Optimizer    *optimize.Optimizer
	Orchestrator *pipeline.Orchestrator

	gemini *gemini.Client
}

// NewLogger builds the process logger. JSON to stdout, level from env.
func NewLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("SCANLEDGER_DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// BuildApp loads config and wires every collaborator the pipeline needs.
func BuildApp(ctx context.Context, cfgPath string, logger *slog.Logger) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	st, err := store.Open(ctx, cfg.Store.DSN, logger)
	if err != nil {
		return nil, err
	}

	src, err := source.NewLocal(cfg.Source.Root, cfg.Source.MaxFileSize, extSet(cfg.Source.AllowedExts), logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	metrics := monitor.NewMetrics()
	mon := monitor.New(logger, metrics)
	opt := optimize.New(optimize.Config{
		MinWorkers: cfg.Optimize.MinWorkers,
		MaxWorkers: cfg.Optimize.MaxWorkers,
		Level:      optimize.Level(cfg.Optimize.Level),
		CacheTTL:   cfg.Optimize.CacheTTL,
	}, logger, metrics)

	var strategies []extract.Strategy
	var gem *gemini.Client
	if cfg.Extract.GeminiAPIKey != "" {
		gem, err = gemini.New(ctx, gemini.Config{
			APIKey: cfg.Extract.GeminiAPIKey,
			Model:  cfg.Extract.GeminiModel,
		}, logger)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		strategies = append(strategies, gem)
	} else {
		logger.Warn("app.gemini.disabled", "reason", "no api key; ocr only")
	}
	strategies = append(strategies, extract.NewOCRStrategy(extract.OCRConfig{
		Tesseract:   cfg.Extract.Tesseract,
		Lang:        cfg.Extract.TesseractLang,
		TessdataDir: cfg.Extract.TessdataDir,
	}))

	orch := pipeline.NewOrchestrator(pipeline.Services{
		Source: src,
		Rasterizer: raster.New(raster.Config{
			DPI:      float64(cfg.Raster.DPI),
			MaxPages: cfg.Raster.MaxPages,
			Workers:  cfg.Raster.Workers,
		}, logger),
		Extractor:   extract.NewEngine(logger, cfg.Extract.CallTimeout, strategies...),
		Parser:      parse.New(logger, cfg.Parse.ConfidenceThreshold),
		Categorizer: categorize.New(logger),
		Sink:        sink.NewStoreSink(st, logger),
		Monitor:     mon,
		Optimizer:   opt,
		Archive:     st,
		Logger:      logger,
	})

	return &App{
		Cfg:          cfg,
		Logger:       logger,
		Store:        st,
		Source:       src,
		Monitor:      mon,
		Metrics:      metrics,
		Optimizer:    opt,
		Orchestrator: orch,
		gemini:       gem,
	}, nil
}

// Close releases external resources in reverse wiring order.
func (a *App) Close() {
	if a.gemini != nil {
		_ = a.gemini.Close()
	}
	if a.Store != nil {
		_ = a.Store.Close()
	}
}

func extSet(exts []string) map[string]struct{} {
	if len(exts) == 0 {
		return constants.AllowedExtensions
	}
	set := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		set[constants.NormalizeExt(ext)] = struct{}{}
	}
	return set
}

func parseDateFlag(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, use YYYY-MM-DD", s)
	}
	return &t, nil
}
