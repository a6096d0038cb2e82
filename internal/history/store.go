// Package history implements the optional build ledger: one row per
// completed harness action in an embedded libsql database. History is a
// convenience layer; every failure here is reported as a warning by the
// caller and never fails a build.
package history

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "github.com/tursodatabase/go-libsql"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Store records and queries harness actions.
type Store struct {
	db *sql.DB
}

// Record is one completed action.
type Record struct {
	ID        string
	Action    string
	Target    string
	StartedAt time.Time
	Duration  time.Duration
	Outcome   string // "ok" or "failed"
	ExitCode  int
}

// Open connects to the ledger database at path, creating the file and
// running pending schema migrations as needed.
func Open(ctx context.Context, path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create history directory %s: %w", dir, err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		file, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("could not create history db at %s: %w", path, err)
		}
		file.Close()
	}

	db, err := sql.Open("libsql", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open libsql connection: %w", err)
	}

	var probe int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&probe); err != nil {
		db.Close()
		return nil, fmt.Errorf("history db connectivity test failed: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run goose migrations: %w", err)
	}
	return nil
}

// Append stores one record. An empty ID is assigned a fresh uuid.
func (s *Store) Append(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	query := `
		INSERT INTO builds (id, action, target, started_at, duration_ms, outcome, exit_code)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.Action, rec.Target, rec.StartedAt, rec.Duration.Milliseconds(), rec.Outcome, rec.ExitCode)
	if err != nil {
		return fmt.Errorf("failed to record %s action: %w", rec.Action, err)
	}
	return nil
}

// Durations returns every recorded duration for an action in milliseconds,
// oldest first. An empty action selects all actions.
func (s *Store) Durations(ctx context.Context, action string) ([]float64, error) {
	query := `SELECT duration_ms FROM builds WHERE (? = '' OR action = ?) ORDER BY started_at`
	rows, err := s.db.QueryContext(ctx, query, action, action)
	if err != nil {
		return nil, fmt.Errorf("failed to query durations: %w", err)
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var ms float64
		if err := rows.Scan(&ms); err != nil {
			return nil, fmt.Errorf("failed to scan duration: %w", err)
		}
		out = append(out, ms)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating durations: %w", err)
	}
	return out, nil
}
