package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/jikku/phishsim/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	kind         TEXT NOT NULL,
	recorded_at  TEXT NOT NULL,
	source_ip    TEXT NOT NULL DEFAULT '',
	recipient_id TEXT NOT NULL DEFAULT '',
	username     TEXT NOT NULL DEFAULT '',
	password     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);
CREATE INDEX IF NOT EXISTS idx_events_recorded_at ON events(recorded_at);
`

// Store mirrors recorded events into SQLite. The text logs stay the source
// of truth; the mirror makes counts and ad-hoc queries cheap.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the database at dbPath with WAL mode and
// applies the schema
func Open(dbPath string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer keeps SQLITE_BUSY out of the request path
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	logger.Info("event mirror initialized", zap.String("path", dbPath))
	return &Store{db: db, logger: logger}, nil
}

// Record inserts one event
func (s *Store) Record(ctx context.Context, ev models.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (kind, recorded_at, source_ip, recipient_id, username, password)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		string(ev.Kind),
		ev.FormattedTime(),
		ev.SourceIP,
		ev.RecipientID,
		ev.Username,
		ev.Password,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// CountByKind returns the number of mirrored events per kind
func (s *Store) CountByKind(ctx context.Context) (map[models.Kind]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*) FROM events GROUP BY kind
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Kind]int64)
	for rows.Next() {
		var kind string
		var count int64
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[models.Kind(kind)] = count
	}
	return counts, rows.Err()
}

// Ping verifies the database connection is working
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
