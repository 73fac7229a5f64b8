package history

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

	"dubber/internal/config"
	"dubber/internal/services"
)

// Store manages job history persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Entry is one recorded job.
type Entry struct {
	JobID          string     `json:"job_id" yaml:"job_id"`
	Filename       string     `json:"filename" yaml:"filename"`
	TargetLanguage string     `json:"target_language" yaml:"target_language"`
	Status         string     `json:"status" yaml:"status"`
	Progress       int        `json:"progress" yaml:"progress"`
	Message        string     `json:"message,omitempty" yaml:"message,omitempty"`
	ResultRef      string     `json:"result_ref,omitempty" yaml:"result_ref,omitempty"`
	Error          string     `json:"error,omitempty" yaml:"error,omitempty"`
	SubmittedAt    time.Time  `json:"submitted_at" yaml:"submitted_at"`
	UpdatedAt      time.Time  `json:"updated_at" yaml:"updated_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
	defaultListLimit        = 20
)

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// Open initializes or connects to the history database in the state directory.
func Open(cfg *config.Config) (*Store, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "history", "open", "config required", nil)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.HistoryPath())
}

// OpenPath opens the history database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Upsert inserts or replaces the entry for e.JobID. Fields left empty on
// e keep their stored values, so partial updates never erase the filename
// or language captured at submission.
func (s *Store) Upsert(ctx context.Context, e Entry) error {
	if strings.TrimSpace(e.JobID) == "" {
		return services.Wrap(services.ErrValidation, "history", "upsert", "job id required", nil)
	}
	now := time.Now().UTC()
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = now
	}
	if e.SubmittedAt.IsZero() {
		e.SubmittedAt = e.UpdatedAt
	}
	_, err := s.exec(ctx,
		`INSERT INTO jobs (
            id, filename, target_language, status, progress, message,
            result_ref, error_message, submitted_at, updated_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            filename = CASE WHEN excluded.filename = '' THEN jobs.filename ELSE excluded.filename END,
            target_language = CASE WHEN excluded.target_language = '' THEN jobs.target_language ELSE excluded.target_language END,
            status = excluded.status,
            progress = excluded.progress,
            message = excluded.message,
            result_ref = CASE WHEN excluded.result_ref = '' THEN jobs.result_ref ELSE excluded.result_ref END,
            error_message = excluded.error_message,
            updated_at = excluded.updated_at,
            finished_at = COALESCE(excluded.finished_at, jobs.finished_at)`,
		e.JobID,
		e.Filename,
		e.TargetLanguage,
		e.Status,
		e.Progress,
		e.Message,
		e.ResultRef,
		e.Error,
		formatTime(e.SubmittedAt),
		formatTime(e.UpdatedAt),
		nullableTime(e.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert job %s: %w", e.JobID, err)
	}
	return nil
}

const selectColumns = `id, filename, target_language, status, progress, message,
    result_ref, error_message, submitted_at, updated_at, finished_at`

// Get returns the entry for jobID.
func (s *Store) Get(ctx context.Context, jobID string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM jobs WHERE id = ?", jobID)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "history", "get", fmt.Sprintf("no job %q in history", jobID), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return entry, nil
}

// List returns the most recently submitted entries first. A non-positive
// limit uses the default of 20.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectColumns+" FROM jobs ORDER BY submitted_at DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// Latest returns the most recently submitted entry.
func (s *Store) Latest(ctx context.Context) (*Entry, error) {
	entries, err := s.List(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "history", "latest", "history is empty", nil)
	}
	return &entries[0], nil
}

// Prune removes finished entries older than cutoff and returns how many
// rows were deleted.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.exec(ctx,
		"DELETE FROM jobs WHERE finished_at IS NOT NULL AND finished_at < ?", formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes every entry.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx, "DELETE FROM jobs")
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		e                  Entry
		submitted, updated string
		finished           sql.NullString
	)
	if err := row.Scan(&e.JobID, &e.Filename, &e.TargetLanguage, &e.Status, &e.Progress, &e.Message,
		&e.ResultRef, &e.Error, &submitted, &updated, &finished); err != nil {
		return nil, err
	}
	e.SubmittedAt = parseTime(submitted)
	e.UpdatedAt = parseTime(updated)
	if finished.Valid && finished.String != "" {
		t := parseTime(finished.String)
		e.FinishedAt = &t
	}
	return &e, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullableTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return formatTime(*t)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
