package store

import (
	"database/sql"
	"fmt"
	"time"
)

// schemaVersion is bumped whenever runBootstrapDDL changes shape.
const schemaVersion = "1"

// migrate creates all tables if they don't exist and seeds metadata.
func (s *SQLiteStore) migrate() error {
	bootstrapDone, err := s.isMetaFlagEnabled("schema_bootstrap_complete")
	if err != nil {
		return fmt.Errorf("checking bootstrap state: %w", err)
	}

	if !bootstrapDone {
		if err := s.runBootstrapDDL(); err != nil {
			return err
		}
	}

	// Seed metadata (meta table exists from here on)
	if err := s.seedMeta(); err != nil {
		return fmt.Errorf("seeding metadata: %w", err)
	}

	if !bootstrapDone {
		if err := s.setMetaFlag("schema_bootstrap_complete"); err != nil {
			return fmt.Errorf("marking bootstrap complete: %w", err)
		}
	}

	if err := s.applyMigrations(); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

func (s *SQLiteStore) runBootstrapDDL() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS profiles (
			id           TEXT PRIMARY KEY,
			name         TEXT NOT NULL DEFAULT '',
			content      TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			created_at   TEXT NOT NULL,
			updated_at   TEXT NOT NULL
		)`,

		// Append-only outcome history. seq preserves arrival order.
		`CREATE TABLE IF NOT EXISTS feedback (
			seq             INTEGER PRIMARY KEY AUTOINCREMENT,
			id              TEXT UNIQUE NOT NULL,
			profile_id      TEXT NOT NULL,
			slot_id         TEXT NOT NULL,
			entity_type     TEXT NOT NULL DEFAULT '',
			predicted_value TEXT NOT NULL DEFAULT '',
			actual_value    TEXT NOT NULL DEFAULT '',
			was_correct     INTEGER NOT NULL DEFAULT 0,
			confidence      REAL NOT NULL DEFAULT 0,
			recorded_at     TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_feedback_profile ON feedback(profile_id, seq)`,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning migration: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("executing migration: %w\nSQL: %s", err, truncate(stmt, 100))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration: %w", err)
	}
	return nil
}

func (s *SQLiteStore) isMetaFlagEnabled(key string) (bool, error) {
	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='meta'`).Scan(&exists); err != nil {
		return false, err
	}
	if exists == 0 {
		return false, nil
	}

	var value string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return value == "true", nil
}

func (s *SQLiteStore) setMetaFlag(key string) error {
	_, err := s.db.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES (?, 'true')", key)
	return err
}

// seedMeta initializes the meta table with defaults if not already set.
func (s *SQLiteStore) seedMeta() error {
	defaults := map[string]string{
		"schema_version": schemaVersion,
		"created_at":     time.Now().UTC().Format(time.RFC3339),
	}

	for k, v := range defaults {
		_, err := s.db.Exec(
			"INSERT OR IGNORE INTO meta (key, value) VALUES (?, ?)", k, v,
		)
		if err != nil {
			return fmt.Errorf("seeding meta key %q: %w", k, err)
		}
	}
	return nil
}

// migrations are applied once each, guarded by a meta flag, after the
// bootstrap DDL.
var migrations = []struct {
	flag string
	ddl  string
}{
	// per-slot history lookups
	{"feedback_slot_index_v1", `CREATE INDEX IF NOT EXISTS idx_feedback_slot ON feedback(profile_id, slot_id)`},
	// retention by age
	{"feedback_recorded_index_v1", `CREATE INDEX IF NOT EXISTS idx_feedback_recorded ON feedback(recorded_at)`},
	// records retention has moved out of the learning window
	{"feedback_archive_v1", `CREATE TABLE IF NOT EXISTS feedback_archive (
		feedback_id TEXT PRIMARY KEY REFERENCES feedback(id),
		archived_at TEXT NOT NULL
	)`},
}

func (s *SQLiteStore) applyMigrations() error {
	for _, m := range migrations {
		done, err := s.isMetaFlagEnabled(m.flag)
		if err != nil {
			return err
		}
		if done {
			continue
		}
		if _, err := s.db.Exec(m.ddl); err != nil {
			return fmt.Errorf("%s: %w", m.flag, err)
		}
		if err := s.setMetaFlag(m.flag); err != nil {
			return err
		}
	}
	return nil
}

// GetMetaValue returns a meta value, or "" when unset.
func (s *SQLiteStore) GetMetaValue(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
