package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is what schema.sql creates. Each version above 1 needs an
// entry in upgrades that brings the previous version up to it.
const schemaVersion = 2

// upgrades maps a stored version to the statements that move it one step
// forward. History rows survive every step.
var upgrades = map[int]string{
	1: "CREATE INDEX IF NOT EXISTS idx_jobs_finished_at ON jobs(finished_at)",
}

// ErrSchemaMismatch reports a history database written by a newer dubber.
var ErrSchemaMismatch = errors.New("schema version mismatch")

func (s *Store) initSchema(ctx context.Context) error {
	version, err := s.storedVersion(ctx)
	if err != nil {
		return err
	}
	switch {
	case version == 0:
		return s.inTx(ctx, "create schema", func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion)
			return err
		})
	case version > schemaVersion:
		return fmt.Errorf("%w: %s has version %d but this dubber understands up to %d; upgrade dubber or move the file aside to start a fresh history",
			ErrSchemaMismatch, s.path, version, schemaVersion)
	case version < schemaVersion:
		return s.upgrade(ctx, version)
	}
	return nil
}

// storedVersion returns 0 for a database that has never been initialized.
func (s *Store) storedVersion(ctx context.Context) (int, error) {
	var tables int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tables); err != nil {
		return 0, fmt.Errorf("inspect history schema: %w", err)
	}
	if tables == 0 {
		return 0, nil
	}
	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return 0, fmt.Errorf("read history schema version: %w", err)
	}
	return version, nil
}

// upgrade applies every step from the stored version in one transaction so
// a failed step leaves the old schema untouched.
func (s *Store) upgrade(ctx context.Context, from int) error {
	return s.inTx(ctx, fmt.Sprintf("upgrade history schema %d->%d", from, schemaVersion), func(tx *sql.Tx) error {
		for v := from; v < schemaVersion; v++ {
			stmt, ok := upgrades[v]
			if !ok {
				return fmt.Errorf("%w: no upgrade from version %d", ErrSchemaMismatch, v)
			}
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("version %d: %w", v, err)
			}
		}
		_, err := tx.ExecContext(ctx, "UPDATE schema_version SET version = ?", schemaVersion)
		return err
	})
}

func (s *Store) inTx(ctx context.Context, op string, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}
