// Package store persists receipt records, processing sessions, and
// error events in an embedded SQLite database by default, or Postgres
// when the DSN says so.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver "pgx"
	_ "modernc.org/sqlite"             // database/sql driver "sqlite"
)

// Store wraps the database handle. Safe for concurrent use; statement
// placeholders are rebound per driver.
type Store struct {
	db       *sql.DB
	postgres bool
	logger   *slog.Logger
}

// Open connects per the DSN and bootstraps the schema. DSNs starting
// with postgres:// or postgresql:// use the pgx driver; everything
// else is treated as a SQLite path.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dsn == "" {
		return nil, fmt.Errorf("store dsn is required")
	}

	postgres := strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
	driver := "sqlite"
	if postgres {
		driver = "pgx"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	s := &Store{db: db, postgres: postgres, logger: logger}
	if err := s.HealthCheck(ctx, 3*time.Second); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("store.open", "driver", driver)
	return s, nil
}

// HealthCheck pings the database to catch DSN issues early.
func (s *Store) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store ping: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.logger.Info("store.close")
	return s.db.Close()
}

// rebind converts ? placeholders to $N for the postgres driver.
func (s *Store) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	_, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	return err
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS receipts (
		id             TEXT PRIMARY KEY,
		tx_date        TEXT,
		vendor_name    TEXT NOT NULL,
		total          DOUBLE PRECISION,
		subtotal       DOUBLE PRECISION,
		tax            DOUBLE PRECISION,
		payment_method TEXT NOT NULL DEFAULT '',
		receipt_number TEXT NOT NULL DEFAULT '',
		cashier        TEXT NOT NULL DEFAULT '',
		category       TEXT NOT NULL,
		account_code   TEXT NOT NULL,
		confidence     DOUBLE PRECISION NOT NULL,
		items          TEXT NOT NULL DEFAULT '[]',
		notes          TEXT NOT NULL DEFAULT '[]',
		status         TEXT NOT NULL,
		source_file    TEXT NOT NULL,
		content_hash   TEXT NOT NULL DEFAULT '',
		created_at     TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_receipts_content_hash
		ON receipts (content_hash) WHERE content_hash <> ''`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id          TEXT PRIMARY KEY,
		task_id     TEXT NOT NULL,
		file_name   TEXT NOT NULL,
		started_at  TEXT NOT NULL,
		ended_at    TEXT,
		status      TEXT NOT NULL,
		confidence  DOUBLE PRECISION NOT NULL DEFAULT 0,
		extractions INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS error_events (
		id         TEXT PRIMARY KEY,
		kind       TEXT NOT NULL,
		severity   TEXT NOT NULL,
		message    TEXT NOT NULL,
		context    TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL
	)`,
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
