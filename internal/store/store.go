// Package store provides the SQLite storage layer for slotfill.
//
// A single database file holds:
// - Profiles: the free-text records fills are run against
// - Feedback: the append-only outcome history of each profile
// - Feedback archive: ids retention moved out of the learning window
//
// Feedback rows live and die with their profile.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hurttlocker/slotfill/internal/model"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.slotfill/slotfill.db"

// ErrNotFound is returned when a keyed record does not exist.
var ErrNotFound = errors.New("not found")

// StoreStats holds row counts and the database size.
type StoreStats struct {
	ProfileCount  int64 `json:"profile_count"`
	FeedbackCount int64 `json:"feedback_count"`
	CorrectCount  int64 `json:"correct_count"`
	ArchivedCount int64 `json:"archived_count"`
	DBSizeBytes   int64 `json:"db_size_bytes"`
}

// StoreConfig holds configuration for NewStore.
type StoreConfig struct {
	DBPath string
}

// Store defines the storage interface.
type Store interface {
	// Profiles
	PutProfile(ctx context.Context, p *model.Profile) (changed bool, err error)
	GetProfile(ctx context.Context, id string) (*model.Profile, error)
	ListProfiles(ctx context.Context) ([]*model.Profile, error)
	DeleteProfile(ctx context.Context, id string) error

	// Feedback
	AppendFeedback(ctx context.Context, rec model.FeedbackRecord) error
	ListFeedback(ctx context.Context, profileID string) ([]model.FeedbackRecord, error)
	ListFeedbackBefore(ctx context.Context, cutoff time.Time) ([]model.FeedbackRecord, error)
	ListFeedbackBeyond(ctx context.Context, keep int) ([]model.FeedbackRecord, error)
	ArchiveFeedback(ctx context.Context, ids []string) (int64, error)

	// Observability
	Stats(ctx context.Context) (*StoreStats, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	now    func() time.Time
}

// NewStore creates a new SQLite-backed store.
// Pass ":memory:" for in-memory databases (testing).
func NewStore(cfg StoreConfig) (*SQLiteStore, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBPath
	}
	cfg.DBPath = ExpandPath(cfg.DBPath)

	// Create parent directory for non-memory databases
	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if cfg.DBPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{
		db:     db,
		dbPath: cfg.DBPath,
		now:    time.Now,
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Stats returns row counts and the on-disk size (0 for :memory:).
func (s *SQLiteStore) Stats(ctx context.Context) (*StoreStats, error) {
	st := &StoreStats{}
	err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM profiles),
		(SELECT COUNT(*) FROM feedback),
		(SELECT COUNT(*) FROM feedback WHERE was_correct = 1),
		(SELECT COUNT(*) FROM feedback_archive)`,
	).Scan(&st.ProfileCount, &st.FeedbackCount, &st.CorrectCount, &st.ArchivedCount)
	if err != nil {
		return nil, fmt.Errorf("counting rows: %w", err)
	}
	if s.dbPath != ":memory:" {
		if info, err := os.Stat(s.dbPath); err == nil {
			st.DBSizeBytes = info.Size()
		}
	}
	return st, nil
}

// ExpandPath expands ~ to the home directory.
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}

// Timestamps are stored as fixed-width UTC text so they sort and compare as
// strings.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return time.Parse(time.RFC3339Nano, v)
	}
	return t, nil
}
