package cli

import (
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/scanledger/scanledger/internal/source"
)

var watchDebounce time.Duration

// NewWatchCommand creates the daemon command: process everything
// currently waiting, then keep watching the incoming folder.
func NewWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the incoming folder and process files as they arrive",
		RunE:  runWatch,
	}
	cmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond,
		"settle time before a new file is picked up")
	return cmd
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := NewLogger()

	app, err := BuildApp(ctx, cfgPath, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	// Metrics endpoint lives only in watch mode.
	if addr := app.Cfg.Metrics.Addr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", app.Metrics.Handler())
		srv := &http.Server{Addr: addr, Handler: mux}
		go func() {
			logger.Info("watch.metrics.listen", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("watch.metrics.failed", "error", err)
			}
		}()
		defer srv.Close()
	}

	paths, errs, err := source.StartWatcher(ctx, source.WatchConfig{
		Root:        app.Source.IncomingDir(),
		AllowedExts: extSet(app.Cfg.Source.AllowedExts),
		InitialScan: true,
		Debounce:    watchDebounce,
	}, logger)
	if err != nil {
		return err
	}

	logger.Info("watch.start", "root", app.Source.IncomingDir())
	for {
		select {
		case <-ctx.Done():
			logger.Info("watch.stop")
			return nil
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			logger.Warn("watch.error", "error", err)
		case path, ok := <-paths:
			if !ok {
				return nil
			}
			logger.Info("watch.arrived", "path", path)
			// Re-list rather than trusting the event: coalesces bursts
			// and picks up anything the watcher missed.
			tasks, err := app.Source.ListNewFiles(ctx)
			if err != nil {
				logger.Error("watch.list.failed", "error", err)
				continue
			}
			if len(tasks) == 0 {
				continue
			}
			app.Orchestrator.Run(ctx, tasks)
			// keep the daemon's rolling session window bounded
			app.Monitor.Prune(24 * time.Hour)
		}
	}
}
