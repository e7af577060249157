package source

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/scanledger/scanledger/constants"
	"github.com/scanledger/scanledger/internal/entity"
)

// LocalSource is a directory-backed Source: root/incoming holds new
// files, root/processed/YYYY-MM and root/error are the terminal areas.
// File ids are names relative to the incoming folder.
type LocalSource struct {
	root        string
	maxFileSize int64
	allowedExts map[string]struct{}
	logger      *slog.Logger

	mu    sync.Mutex
	moved map[string]string // id -> final destination path
}

func NewLocal(root string, maxFileSize int64, allowedExts map[string]struct{}, logger *slog.Logger) (*LocalSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if allowedExts == nil {
		allowedExts = constants.AllowedExtensions
	}
	for _, sub := range []string{string(FolderIncoming), string(FolderProcessed), string(FolderError)} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create %s dir: %w", sub, err)
		}
	}
	return &LocalSource{
		root:        root,
		maxFileSize: maxFileSize,
		allowedExts: allowedExts,
		logger:      logger,
		moved:       make(map[string]string),
	}, nil
}

// IncomingDir returns the directory new files arrive in; the watcher
// subscribes to it.
func (s *LocalSource) IncomingDir() string {
	return filepath.Join(s.root, string(FolderIncoming))
}

func (s *LocalSource) ListNewFiles(ctx context.Context) ([]entity.FileTask, error) {
	var tasks []entity.FileTask
	dir := s.IncomingDir()

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			s.logger.Warn("source.list.walk_error", "path", path, "error", walkErr)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		ext := constants.NormalizeExt(filepath.Ext(path))
		if _, ok := s.allowedExts[ext]; !ok {
			s.logger.Debug("source.list.skipped", "name", d.Name(), "ext", ext)
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if s.maxFileSize > 0 && info.Size() > s.maxFileSize {
			s.logger.Warn("source.list.too_large", "name", d.Name(), "size", info.Size())
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return nil
		}
		tasks = append(tasks, entity.FileTask{
			ID:   rel,
			Name: d.Name(),
			Size: info.Size(),
			Type: constants.MapExtToType(ext),
		})
		return nil
	})
	if err != nil {
		return tasks, fmt.Errorf("list incoming: %w", err)
	}
	return tasks, nil
}

func (s *LocalSource) Download(_ context.Context, id string) (string, error) {
	path := filepath.Join(s.IncomingDir(), id)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("download %s: %w", id, err)
	}
	return path, nil
}

func (s *LocalSource) MoveToProcessed(_ context.Context, id string, date time.Time) error {
	destDir := filepath.Join(s.root, string(FolderProcessed), date.UTC().Format("2006-01"))
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create processed dir: %w", err)
	}
	return s.move(id, filepath.Join(destDir, filepath.Base(id)))
}

func (s *LocalSource) MoveToError(_ context.Context, id string, reason string) error {
	destDir := filepath.Join(s.root, string(FolderError))
	dest := filepath.Join(destDir, filepath.Base(id))
	if err := s.move(id, dest); err != nil {
		return err
	}
	// reason sidecar for operators triaging the error folder
	if err := os.WriteFile(dest+".reason.txt", []byte(reason+"\n"), 0o644); err != nil {
		s.logger.Warn("source.error.reason_write_failed", "id", id, "error", err)
	}
	return nil
}

func (s *LocalSource) move(id, dest string) error {
	src := filepath.Join(s.IncomingDir(), id)
	dest = uniquePath(dest)
	if err := os.Rename(src, dest); err != nil {
		return fmt.Errorf("move %s: %w", id, err)
	}
	s.mu.Lock()
	s.moved[id] = dest
	s.mu.Unlock()
	s.logger.Info("source.moved", "id", id, "dest", dest)
	return nil
}

// ExistsIn answers from the recorded destination of the id's own move,
// so a sibling that happens to share the name stem never shadows a file
// still sitting in incoming. The name scan is a fallback for files
// relocated before this process started.
func (s *LocalSource) ExistsIn(_ context.Context, id string, folder Folder) (bool, error) {
	root := filepath.Join(s.root, string(folder))

	s.mu.Lock()
	dest, recorded := s.moved[id]
	s.mu.Unlock()
	if recorded {
		rel, err := filepath.Rel(root, dest)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return false, nil // moved, but to a different area
		}
		if _, err := os.Stat(dest); err != nil {
			return false, nil
		}
		return true, nil
	}

	base := filepath.Base(id)
	found := false
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if !d.IsDir() && d.Name() == base {
			found = true
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("scan %s: %w", folder, err)
	}
	return found, nil
}

func uniquePath(dest string) string {
	if _, err := os.Stat(dest); os.IsNotExist(err) {
		return dest
	}
	ext := filepath.Ext(dest)
	stem := strings.TrimSuffix(dest, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d%s", stem, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
