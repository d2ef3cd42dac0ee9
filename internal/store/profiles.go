package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hurttlocker/slotfill/internal/model"
)

// PutProfile inserts or replaces a profile keyed by ID. It reports false when
// the stored name and content were already identical; the row is left alone.
// On return p carries the stored timestamps.
func (s *SQLiteStore) PutProfile(ctx context.Context, p *model.Profile) (bool, error) {
	if strings.TrimSpace(p.ID) == "" {
		return false, fmt.Errorf("profile id is required")
	}
	hash := HashProfileContent(p.Name, p.Content)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var existingHash, createdAt, updatedAt string
	err = tx.QueryRowContext(ctx,
		`SELECT content_hash, created_at, updated_at FROM profiles WHERE id = ?`, p.ID,
	).Scan(&existingHash, &createdAt, &updatedAt)

	now := formatTime(s.now())
	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO profiles (id, name, content, content_hash, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			p.ID, p.Name, p.Content, hash, now, now)
		if err != nil {
			return false, fmt.Errorf("inserting profile: %w", err)
		}
		createdAt, updatedAt = now, now
	case err != nil:
		return false, fmt.Errorf("reading profile %s: %w", p.ID, err)
	case existingHash == hash:
		return false, setProfileTimes(p, createdAt, updatedAt)
	default:
		_, err = tx.ExecContext(ctx,
			`UPDATE profiles SET name = ?, content = ?, content_hash = ?, updated_at = ? WHERE id = ?`,
			p.Name, p.Content, hash, now, p.ID)
		if err != nil {
			return false, fmt.Errorf("updating profile: %w", err)
		}
		updatedAt = now
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing profile: %w", err)
	}
	return true, setProfileTimes(p, createdAt, updatedAt)
}

// GetProfile retrieves a profile by ID. Returns ErrNotFound when missing.
func (s *SQLiteStore) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	p := &model.Profile{}
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, content, created_at, updated_at FROM profiles WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Content, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting profile %s: %w", id, err)
	}
	if err := setProfileTimes(p, createdAt, updatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

// ListProfiles returns every profile ordered by ID.
func (s *SQLiteStore) ListProfiles(ctx context.Context) ([]*model.Profile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, content, created_at, updated_at FROM profiles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	defer rows.Close()

	var out []*model.Profile
	for rows.Next() {
		p := &model.Profile{}
		var createdAt, updatedAt string
		if err := rows.Scan(&p.ID, &p.Name, &p.Content, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning profile: %w", err)
		}
		if err := setProfileTimes(p, createdAt, updatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteProfile removes a profile and its feedback history in one
// transaction. Returns ErrNotFound when the profile does not exist.
func (s *SQLiteStore) DeleteProfile(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting profile %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting profile %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM feedback_archive WHERE feedback_id IN (SELECT id FROM feedback WHERE profile_id = ?)`, id); err != nil {
		return fmt.Errorf("deleting archived feedback for %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM feedback WHERE profile_id = ?`, id); err != nil {
		return fmt.Errorf("deleting feedback for %s: %w", id, err)
	}
	return tx.Commit()
}

func setProfileTimes(p *model.Profile, createdAt, updatedAt string) error {
	var err error
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return fmt.Errorf("parsing created_at of %s: %w", p.ID, err)
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return fmt.Errorf("parsing updated_at of %s: %w", p.ID, err)
	}
	return nil
}
