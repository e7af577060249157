package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/scanledger/scanledger/constants"
	"github.com/scanledger/scanledger/internal/entity"
	"github.com/scanledger/scanledger/internal/procerr"
)

// ErrNotFound is returned when a lookup matches no rows.
var ErrNotFound = errors.New("store: not found")

const dateLayout = "2006-01-02"

// InsertReceipt persists one receipt record. The record's ID must be set.
func (s *Store) InsertReceipt(ctx context.Context, rec *entity.ReceiptRecord) error {
	items, err := json.Marshal(rec.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}
	notes, err := json.Marshal(rec.Notes)
	if err != nil {
		return fmt.Errorf("encode notes: %w", err)
	}
	if rec.Items == nil {
		items = []byte("[]")
	}
	if rec.Notes == nil {
		notes = []byte("[]")
	}

	var txDate any
	if rec.Date != nil {
		txDate = rec.Date.Format(dateLayout)
	}

	err = s.exec(ctx, `INSERT INTO receipts (
			id, tx_date, vendor_name, total, subtotal, tax,
			payment_method, receipt_number, cashier,
			category, account_code, confidence,
			items, notes, status, source_file, content_hash, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), txDate, rec.VendorName, rec.Total, rec.Subtotal, rec.Tax,
		rec.PaymentMethod, rec.ReceiptNumber, rec.Cashier,
		string(rec.Category), string(rec.AccountCode), rec.Confidence,
		string(items), string(notes), string(rec.Status), rec.SourceFile,
		rec.ContentHash, rec.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert receipt %s: %w", rec.ID, err)
	}
	s.logger.Debug("store.receipt.inserted", "id", rec.ID, "vendor", rec.VendorName)
	return nil
}

// FindByContentHash looks up a prior record for the same source bytes.
// Returns ErrNotFound when the hash has not been seen.
func (s *Store) FindByContentHash(ctx context.Context, hash string) (uuid.UUID, error) {
	if hash == "" {
		return uuid.Nil, ErrNotFound
	}
	var id string
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT id FROM receipts WHERE content_hash = ?`), hash).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, ErrNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("find by hash: %w", err)
	}
	return uuid.Parse(id)
}

// ListReceipts returns records whose transaction date falls in [from, to],
// newest first. Records without a date are included only when both bounds
// are zero.
func (s *Store) ListReceipts(ctx context.Context, from, to time.Time) ([]entity.ReceiptRecord, error) {
	query := `SELECT id, tx_date, vendor_name, total, subtotal, tax,
			payment_method, receipt_number, cashier,
			category, account_code, confidence,
			items, notes, status, source_file, content_hash, created_at
		FROM receipts`
	var args []any
	if !from.IsZero() || !to.IsZero() {
		query += ` WHERE tx_date IS NOT NULL AND tx_date >= ? AND tx_date <= ?`
		args = append(args, from.Format(dateLayout), to.Format(dateLayout))
	}
	query += ` ORDER BY tx_date DESC, created_at DESC`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	var out []entity.ReceiptRecord
	for rows.Next() {
		rec, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanReceipt(rows *sql.Rows) (entity.ReceiptRecord, error) {
	var (
		rec                        entity.ReceiptRecord
		id, category, account      string
		status, createdAt          string
		txDate                     sql.NullString
		itemsJSON, notesJSON       string
	)
	err := rows.Scan(&id, &txDate, &rec.VendorName, &rec.Total, &rec.Subtotal, &rec.Tax,
		&rec.PaymentMethod, &rec.ReceiptNumber, &rec.Cashier,
		&category, &account, &rec.Confidence,
		&itemsJSON, &notesJSON, &status, &rec.SourceFile, &rec.ContentHash, &createdAt)
	if err != nil {
		return rec, fmt.Errorf("scan receipt: %w", err)
	}

	rec.ID, err = uuid.Parse(id)
	if err != nil {
		return rec, fmt.Errorf("scan receipt id: %w", err)
	}
	if txDate.Valid && txDate.String != "" {
		if d, err := time.Parse(dateLayout, txDate.String); err == nil {
			rec.Date = &d
		}
	}
	rec.Category = constants.Category(category)
	rec.AccountCode = constants.Account(account)
	rec.Status = constants.Status(status)
	if err := json.Unmarshal([]byte(itemsJSON), &rec.Items); err != nil {
		return rec, fmt.Errorf("decode items: %w", err)
	}
	if err := json.Unmarshal([]byte(notesJSON), &rec.Notes); err != nil {
		return rec, fmt.Errorf("decode notes: %w", err)
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		rec.CreatedAt = t
	}
	return rec, nil
}

// SaveSession upserts a processing session row. Called once on start and
// once on end.
func (s *Store) SaveSession(ctx context.Context, sess *entity.ProcessingSession) error {
	var ended any
	if sess.EndedAt != nil {
		ended = sess.EndedAt.UTC().Format(time.RFC3339)
	}
	err := s.exec(ctx, `DELETE FROM sessions WHERE id = ?`, sess.ID.String())
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	err = s.exec(ctx, `INSERT INTO sessions (
			id, task_id, file_name, started_at, ended_at, status, confidence, extractions
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID.String(), sess.TaskID, sess.FileName,
		sess.StartedAt.UTC().Format(time.RFC3339), ended,
		string(sess.Status), sess.Confidence, sess.Extractions,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// ErrorEventCounts aggregates persisted error events per kind.
func (s *Store) ErrorEventCounts(ctx context.Context) (map[procerr.Kind]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, COUNT(*) FROM error_events GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("count error events: %w", err)
	}
	defer rows.Close()

	out := make(map[procerr.Kind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan error counts: %w", err)
		}
		out[procerr.Kind(kind)] = n
	}
	return out, rows.Err()
}

// RecordErrorEvent persists one classified error event.
func (s *Store) RecordErrorEvent(ctx context.Context, ev procerr.Event) error {
	evCtx, err := json.Marshal(ev.Context)
	if err != nil {
		return fmt.Errorf("encode event context: %w", err)
	}
	if ev.Context == nil {
		evCtx = []byte("{}")
	}
	err = s.exec(ctx, `INSERT INTO error_events (id, kind, severity, message, context, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID.String(), string(ev.Kind), string(ev.Severity), ev.Message,
		string(evCtx), ev.Timestamp.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("record error event: %w", err)
	}
	return nil
}
