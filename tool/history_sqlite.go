package tool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteHistorySchema = `
CREATE TABLE IF NOT EXISTS executions (
	id TEXT PRIMARY KEY,
	plugin_id TEXT NOT NULL,
	started_at TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	success INTEGER NOT NULL,
	error_code TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS executions_plugin_started ON executions (plugin_id, started_at);`

// sqliteTimeLayout is fixed-width so started_at sorts lexically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

const (
	defaultSQLiteHistoryDir = ".shelfwright"
	defaultSQLiteHistoryDB  = "history.db"
)

// SQLiteHistory persists execution records in SQLite.
type SQLiteHistory struct {
	db *sql.DB
}

// DefaultSQLiteHistoryPath returns ~/.shelfwright/history.db.
func DefaultSQLiteHistoryPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("tool: resolve user home: %w", err)
	}
	return filepath.Join(home, defaultSQLiteHistoryDir, defaultSQLiteHistoryDB), nil
}

// NewSQLiteHistory opens (or creates) a SQLite-backed history at dsn.
func NewSQLiteHistory(dsn string) (*SQLiteHistory, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("tool: sqlite history dsn is required")
	}
	if dir := filepath.Dir(dsn); dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("tool: sqlite history create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("tool: sqlite history open: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("tool: sqlite history set WAL mode: %w", err)
	}

	if _, err := db.Exec(sqliteHistorySchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("tool: sqlite history create schema: %w", err)
	}

	return &SQLiteHistory{db: db}, nil
}

// Record inserts rec.
func (h *SQLiteHistory) Record(ctx context.Context, rec ExecutionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if h == nil || h.db == nil {
		return errors.New("tool: sqlite history is nil")
	}

	success := 0
	if rec.Success {
		success = 1
	}
	_, err := h.db.ExecContext(ctx, `
INSERT INTO executions (id, plugin_id, started_at, duration_ms, success, error_code, error)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.PluginID,
		rec.StartedAt.UTC().Format(sqliteTimeLayout),
		rec.Duration.Milliseconds(),
		success,
		rec.ErrorCode,
		rec.Error,
	)
	if err != nil {
		return fmt.Errorf("tool: sqlite record execution: %w", err)
	}
	return nil
}

// List returns matching records newest first.
func (h *SQLiteHistory) List(ctx context.Context, pluginID string, limit int) ([]ExecutionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if h == nil || h.db == nil {
		return nil, errors.New("tool: sqlite history is nil")
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := h.db.QueryContext(ctx, `
SELECT id, plugin_id, started_at, duration_ms, success, error_code, error
FROM executions
WHERE ? = '' OR plugin_id = ?
ORDER BY started_at DESC, rowid DESC
LIMIT ?`, pluginID, pluginID, limit)
	if err != nil {
		return nil, fmt.Errorf("tool: sqlite list executions: %w", err)
	}
	defer rows.Close()

	var out []ExecutionRecord
	for rows.Next() {
		var (
			rec        ExecutionRecord
			startedAt  string
			durationMS int64
			success    int
		)
		if err := rows.Scan(&rec.ID, &rec.PluginID, &startedAt, &durationMS, &success, &rec.ErrorCode, &rec.Error); err != nil {
			return nil, fmt.Errorf("tool: sqlite scan execution: %w", err)
		}
		rec.StartedAt, err = time.Parse(sqliteTimeLayout, startedAt)
		if err != nil {
			return nil, fmt.Errorf("tool: sqlite parse started_at %q: %w", startedAt, err)
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		rec.Success = success == 1
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tool: sqlite execution rows: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (h *SQLiteHistory) Close() error {
	if h == nil || h.db == nil {
		return nil
	}
	return h.db.Close()
}
