// Package source defines the file-store collaborator the pipeline
// ingests from, plus a local-directory implementation.
package source

import (
	"context"
	"time"

	"github.com/scanledger/scanledger/internal/entity"
)

// Folder names the terminal areas of the source store.
type Folder string

const (
	FolderIncoming  Folder = "incoming"
	FolderProcessed Folder = "processed"
	FolderError     Folder = "error"
)

// Source is the file-store collaborator. Implementations must be safe
// for concurrent use; every call is bounded by the caller's context.
type Source interface {
	// ListNewFiles returns the unprocessed files in the incoming area.
	ListNewFiles(ctx context.Context) ([]entity.FileTask, error)
	// Download makes the file's bytes available locally and returns the path.
	Download(ctx context.Context, id string) (string, error)
	// MoveToProcessed relocates a file to the processed area, dated.
	MoveToProcessed(ctx context.Context, id string, date time.Time) error
	// MoveToError relocates a file to the error area with a
	// human-readable reason.
	MoveToError(ctx context.Context, id string, reason string) error
	// ExistsIn reports whether the file now resides in the given area.
	// Used by the verification loop's read-after-write checks.
	ExistsIn(ctx context.Context, id string, folder Folder) (bool, error)
}
