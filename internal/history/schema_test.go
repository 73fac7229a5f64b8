package history

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

const versionOneSchema = `
CREATE TABLE schema_version (version INTEGER NOT NULL);
CREATE TABLE jobs (
    id TEXT PRIMARY KEY,
    filename TEXT NOT NULL DEFAULT '',
    target_language TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    progress INTEGER NOT NULL DEFAULT 0,
    message TEXT NOT NULL DEFAULT '',
    result_ref TEXT NOT NULL DEFAULT '',
    error_message TEXT NOT NULL DEFAULT '',
    submitted_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    finished_at TEXT
);
INSERT INTO schema_version (version) VALUES (1);
INSERT INTO jobs (id, filename, target_language, status, progress, submitted_at, updated_at, finished_at)
VALUES ('old-job', 'talk.mp4', 'es', 'completed', 100,
        '2026-01-01T10:00:00Z', '2026-01-01T10:05:00Z', '2026-01-01T10:05:00Z');
`

func seedDatabase(t *testing.T, stmts string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if _, err := db.Exec(stmts); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return path
}

func indexExists(t *testing.T, s *Store, name string) bool {
	t.Helper()
	var n int
	if err := s.db.QueryRow("SELECT COUNT(1) FROM sqlite_master WHERE type='index' AND name=?", name).Scan(&n); err != nil {
		t.Fatal(err)
	}
	return n == 1
}

func TestFreshDatabaseGetsCurrentSchema(t *testing.T) {
	store, err := OpenPath(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	defer store.Close()

	version, err := store.storedVersion(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if version != schemaVersion {
		t.Fatalf("version = %d, want %d", version, schemaVersion)
	}
	if !indexExists(t, store, "idx_jobs_finished_at") {
		t.Fatal("finished_at index missing")
	}
}

func TestVersionOneDatabaseIsUpgradedInPlace(t *testing.T) {
	path := seedDatabase(t, versionOneSchema)

	store, err := OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	version, err := store.storedVersion(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if version != schemaVersion {
		t.Fatalf("version = %d after upgrade, want %d", version, schemaVersion)
	}
	if !indexExists(t, store, "idx_jobs_finished_at") {
		t.Fatal("upgrade did not add the finished_at index")
	}
	entry, err := store.Get(ctx, "old-job")
	if err != nil {
		t.Fatalf("existing row lost: %v", err)
	}
	if entry.Filename != "talk.mp4" || entry.FinishedAt == nil {
		t.Fatalf("unexpected entry %+v", entry)
	}
}

func TestNewerDatabaseIsRejected(t *testing.T) {
	path := seedDatabase(t, `
CREATE TABLE schema_version (version INTEGER NOT NULL);
INSERT INTO schema_version (version) VALUES (99);
`)
	_, err := OpenPath(path)
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
	if !strings.Contains(err.Error(), "upgrade dubber") || !strings.Contains(err.Error(), path) {
		t.Fatalf("error should name the file and the fix: %v", err)
	}
}
