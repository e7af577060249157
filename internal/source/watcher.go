package source

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/scanledger/scanledger/constants"
)

// WatchConfig configures daemon-mode discovery of new source files.
type WatchConfig struct {
	Root        string // directory to watch (recursive)
	AllowedExts map[string]struct{}
	InitialScan bool          // if true, walk root and emit existing files
	Debounce    time.Duration // coalesce rapid create/rename bursts
}

// StartWatcher emits paths of newly arrived receipt files until ctx is
// done. Write bursts for the same path are debounced so half-copied
// files are not picked up.
func StartWatcher(ctx context.Context, cfg WatchConfig, logger *slog.Logger) (<-chan string, <-chan error, error) {
	if cfg.Root == "" {
		return nil, nil, errors.New("watch root is required")
	}
	if cfg.AllowedExts == nil {
		cfg.AllowedExts = constants.AllowedExtensions
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}

	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("watcher.create_failed", "error", err)
		return nil, nil, err
	}

	addDir := func(root string) error {
		return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() && !strings.HasPrefix(d.Name(), ".") {
				return w.Add(path)
			}
			return nil
		})
	}
	if err := addDir(cfg.Root); err != nil {
		_ = w.Close()
		return nil, nil, err
	}

	allowed := func(path string) bool {
		ext := constants.NormalizeExt(filepath.Ext(path))
		_, ok := cfg.AllowedExts[ext]
		return ok && !strings.HasPrefix(filepath.Base(path), ".")
	}

	go func() {
		defer close(evCh)
		defer w.Close()

		if cfg.InitialScan {
			_ = filepath.WalkDir(cfg.Root, func(path string, d fs.DirEntry, walkErr error) error {
				if walkErr != nil || d.IsDir() || !allowed(path) {
					return nil
				}
				select {
				case evCh <- path:
				case <-ctx.Done():
					return ctx.Err()
				}
				return nil
			})
		}

		pending := make(map[string]time.Time)
		ticker := time.NewTicker(cfg.Debounce)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op.Has(fsnotify.Create) {
					// newly created directories need watching too
					if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
						_ = addDir(ev.Name)
						continue
					}
				}
				if (ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Rename)) && allowed(ev.Name) {
					pending[ev.Name] = time.Now()
				}

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				select {
				case errCh <- err:
				default:
				}

			case <-ticker.C:
				now := time.Now()
				for path, last := range pending {
					if now.Sub(last) < cfg.Debounce {
						continue
					}
					delete(pending, path)
					select {
					case evCh <- path:
						logger.Debug("watcher.file_ready", "path", path)
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return evCh, errCh, nil
}
