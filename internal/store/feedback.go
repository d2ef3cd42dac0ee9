package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hurttlocker/slotfill/internal/model"
)

// AppendFeedback stores one immutable feedback record. Records are never
// updated; a duplicate ID is an error.
func (s *SQLiteStore) AppendFeedback(ctx context.Context, rec model.FeedbackRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("feedback record id is required")
	}
	correct := 0
	if rec.WasCorrect {
		correct = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feedback (id, profile_id, slot_id, entity_type, predicted_value, actual_value, was_correct, confidence, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ProfileID, rec.SlotID, string(rec.EntityType), rec.PredictedValue, rec.ActualValue,
		correct, rec.Confidence, formatTime(rec.Timestamp))
	if err != nil {
		return fmt.Errorf("inserting feedback %s: %w", rec.ID, err)
	}
	return nil
}

// feedbackSelect reads records with their archive state.
const feedbackSelect = `SELECT f.id, f.profile_id, f.slot_id, f.entity_type, f.predicted_value, f.actual_value,
		f.was_correct, f.confidence, f.recorded_at, a.feedback_id IS NOT NULL
	FROM feedback f LEFT JOIN feedback_archive a ON a.feedback_id = f.id`

// ListFeedback returns a profile's records in arrival order, archived ones
// included.
func (s *SQLiteStore) ListFeedback(ctx context.Context, profileID string) ([]model.FeedbackRecord, error) {
	rows, err := s.db.QueryContext(ctx, feedbackSelect+` WHERE f.profile_id = ? ORDER BY f.seq`, profileID)
	if err != nil {
		return nil, fmt.Errorf("listing feedback for %s: %w", profileID, err)
	}
	return scanFeedback(rows)
}

func scanFeedback(rows *sql.Rows) ([]model.FeedbackRecord, error) {
	defer rows.Close()

	var out []model.FeedbackRecord
	for rows.Next() {
		var (
			rec        model.FeedbackRecord
			entityType string
			correct    int
			archived   int
			recordedAt string
		)
		if err := rows.Scan(&rec.ID, &rec.ProfileID, &rec.SlotID, &entityType, &rec.PredictedValue,
			&rec.ActualValue, &correct, &rec.Confidence, &recordedAt, &archived); err != nil {
			return nil, fmt.Errorf("scanning feedback: %w", err)
		}
		rec.EntityType = model.EntityType(entityType)
		rec.WasCorrect = correct != 0
		rec.Archived = archived != 0
		ts, err := parseTime(recordedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing recorded_at of %s: %w", rec.ID, err)
		}
		rec.Timestamp = ts
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListFeedbackBefore returns the unarchived records stamped before cutoff,
// oldest first.
func (s *SQLiteStore) ListFeedbackBefore(ctx context.Context, cutoff time.Time) ([]model.FeedbackRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		feedbackSelect+` WHERE f.recorded_at < ? AND a.feedback_id IS NULL ORDER BY f.seq`, formatTime(cutoff))
	if err != nil {
		return nil, fmt.Errorf("listing feedback before %s: %w", formatTime(cutoff), err)
	}
	return scanFeedback(rows)
}

// ListFeedbackBeyond returns the unarchived records that fall outside each
// profile's newest keep unarchived entries, oldest first.
func (s *SQLiteStore) ListFeedbackBeyond(ctx context.Context, keep int) ([]model.FeedbackRecord, error) {
	if keep <= 0 {
		return nil, fmt.Errorf("keep must be positive, got %d", keep)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, profile_id, slot_id, entity_type, predicted_value, actual_value, was_correct, confidence, recorded_at, 0
		FROM (
			SELECT f.*, ROW_NUMBER() OVER (PARTITION BY f.profile_id ORDER BY f.seq DESC) AS rn
			FROM feedback f LEFT JOIN feedback_archive a ON a.feedback_id = f.id
			WHERE a.feedback_id IS NULL
		)
		WHERE rn > ?
		ORDER BY seq`, keep)
	if err != nil {
		return nil, fmt.Errorf("listing feedback beyond %d per profile: %w", keep, err)
	}
	return scanFeedback(rows)
}

// ArchiveFeedback moves the given records out of the learning window in one
// transaction and returns how many were newly archived. The records
// themselves are left untouched. Unknown or already archived ids are
// skipped.
func (s *SQLiteStore) ArchiveFeedback(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO feedback_archive (feedback_id, archived_at) SELECT id, ? FROM feedback WHERE id = ?`)
	if err != nil {
		return 0, fmt.Errorf("preparing feedback archive: %w", err)
	}
	defer stmt.Close()

	at := formatTime(s.now())
	var archived int64
	for _, id := range ids {
		res, err := stmt.ExecContext(ctx, at, id)
		if err != nil {
			return 0, fmt.Errorf("archiving feedback %s: %w", id, err)
		}
		n, _ := res.RowsAffected()
		archived += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing feedback archive: %w", err)
	}
	return archived, nil
}
