// Package sink is the destination side of the pipeline: somewhere to
// create a record for each processed receipt.
package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/scanledger/scanledger/internal/entity"
	"github.com/scanledger/scanledger/internal/store"
)

// Sink accepts finished receipt records. CreateRecord returns the
// identifier of the created record.
type Sink interface {
	CreateRecord(ctx context.Context, rec *entity.ReceiptRecord, attachmentPath string) (string, error)
}

// ErrDuplicate signals that the same source bytes were already recorded.
var ErrDuplicate = errors.New("sink: duplicate content")

// StoreSink writes records to the database. Re-running a batch over the
// same files is a no-op per file: the content hash is checked first.
type StoreSink struct {
	store  *store.Store
	logger *slog.Logger
}

func NewStoreSink(st *store.Store, logger *slog.Logger) *StoreSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreSink{store: st, logger: logger}
}

// CreateRecord inserts the record unless its content hash is already
// known, in which case the existing record's ID is returned alongside
// ErrDuplicate.
func (s *StoreSink) CreateRecord(ctx context.Context, rec *entity.ReceiptRecord, attachmentPath string) (string, error) {
	if rec.ContentHash != "" {
		existing, err := s.store.FindByContentHash(ctx, rec.ContentHash)
		if err == nil {
			s.logger.Info("sink.duplicate",
				"existing_id", existing,
				"source_file", rec.SourceFile)
			return existing.String(), ErrDuplicate
		}
		if !errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("dedup lookup: %w", err)
		}
	}

	if err := s.store.InsertReceipt(ctx, rec); err != nil {
		return "", err
	}
	s.logger.Info("sink.record.created",
		"id", rec.ID,
		"vendor", rec.VendorName,
		"status", rec.Status,
		"attachment", attachmentPath)
	return rec.ID.String(), nil
}
