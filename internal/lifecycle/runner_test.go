package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgresolver "github.com/hurttlocker/slotfill/internal/config"
	"github.com/hurttlocker/slotfill/internal/feedback"
	"github.com/hurttlocker/slotfill/internal/model"
	"github.com/hurttlocker/slotfill/internal/store"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

// seedFeedback gives p1 five records, one every 30 days ending today, and p2
// one record from 200 days ago.
func seedFeedback(t *testing.T, s *store.SQLiteStore) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		rec := model.FeedbackRecord{
			ID:         fmt.Sprintf("p1-%d", i),
			ProfileID:  "p1",
			SlotID:     "email",
			WasCorrect: true,
			Timestamp:  testNow.AddDate(0, 0, -30*(4-i)),
		}
		require.NoError(t, s.AppendFeedback(ctx, rec))
	}
	require.NoError(t, s.AppendFeedback(ctx, model.FeedbackRecord{
		ID: "p2-0", ProfileID: "p2", SlotID: "phone", Timestamp: testNow.AddDate(0, 0, -200),
	}))
}

func newTestRunner(t *testing.T, policies cfgresolver.RetentionConfig) (*Runner, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewStore(store.StoreConfig{DBPath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	seedFeedback(t, s)

	r, err := NewRunner(s, policies)
	require.NoError(t, err)
	r.now = func() time.Time { return testNow }
	return r, s
}

func actionIDs(report *Report) []string {
	ids := make([]string, len(report.Actions))
	for i, a := range report.Actions {
		ids[i] = a.FeedbackID
	}
	return ids
}

func TestRunner_DryRun_NoWrites(t *testing.T) {
	r, s := newTestRunner(t, cfgresolver.RetentionConfig{MaxAgeDays: 90})

	report, err := r.Run(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, []string{"p1-0", "p2-0"}, actionIDs(report))
	assert.Equal(t, 2, report.PolicyRuns.MaxAge)
	assert.Equal(t, 0, report.Applied)
	assert.Equal(t, []string{"p1", "p2"}, report.Profiles)
	for _, a := range report.Actions {
		assert.False(t, a.Applied)
		assert.Equal(t, PolicyMaxAge, a.Policy)
		assert.Contains(t, a.Reason, "older than 90 days")
	}

	recs, err := s.ListFeedback(context.Background(), "p1")
	require.NoError(t, err)
	assert.Len(t, recs, 5)
}

func TestRunner_Apply(t *testing.T) {
	r, s := newTestRunner(t, cfgresolver.RetentionConfig{MaxAgeDays: 90, KeepPerProfile: 2})
	ctx := context.Background()

	report, err := r.Run(ctx, false)
	require.NoError(t, err)
	// p1-0 is both too old and beyond the cap; max_age claims it.
	assert.Equal(t, []string{"p1-0", "p2-0", "p1-1", "p1-2"}, actionIDs(report))
	assert.Equal(t, 2, report.PolicyRuns.MaxAge)
	assert.Equal(t, 2, report.PolicyRuns.KeepPerProfile)
	assert.Equal(t, 4, report.Applied)
	assert.Equal(t, 5, report.Scanned)

	recs, err := s.ListFeedback(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, recs, 5, "archived records are kept")
	for i, rec := range recs {
		assert.Equal(t, i < 3, rec.Archived, rec.ID)
	}
	recs, err = s.ListFeedback(ctx, "p2")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Archived)

	// Nothing left to do on a second pass.
	report, err = r.Run(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, report.Actions)
	assert.Empty(t, report.Profiles)
}

func TestRunner_AccuracyUnchanged(t *testing.T) {
	s, err := store.NewStore(store.StoreConfig{DBPath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	l := feedback.NewLearner(feedback.WithStore(s))
	for _, correct := range []bool{true, true, false} {
		_, err := l.RecordOutcome(ctx, model.FeedbackRecord{
			ProfileID: "p1", SlotID: "email", PredictedValue: "jane@hosp.org", WasCorrect: correct,
		})
		require.NoError(t, err)
	}
	before := l.Stats("p1")

	r, err := NewRunner(s, cfgresolver.RetentionConfig{KeepPerProfile: 1})
	require.NoError(t, err)
	report, err := r.Run(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Applied)

	reloaded := feedback.NewLearner(feedback.WithStore(s))
	require.NoError(t, reloaded.Load(ctx, "p1"))
	after := reloaded.Stats("p1")
	assert.Equal(t, 3, after.Total)
	assert.Equal(t, 2, after.Correct)
	assert.Equal(t, before.Accuracy, after.Accuracy)

	// Only the newest record still feeds value statistics.
	assert.Empty(t, reloaded.AcceptedValues("p1", "email"))
}

func TestRunner_ReadsClockPerRun(t *testing.T) {
	r, _ := newTestRunner(t, cfgresolver.RetentionConfig{MaxAgeDays: 90})
	report, err := r.Run(context.Background(), true)
	require.NoError(t, err)
	assert.Len(t, report.Actions, 2)

	r.now = func() time.Time { return testNow.AddDate(0, 0, 60) }
	report, err = r.Run(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1-0", "p1-1", "p1-2", "p2-0"}, actionIDs(report))
}

func TestRunner_NoPolicies(t *testing.T) {
	r, _ := newTestRunner(t, cfgresolver.RetentionConfig{})
	report, err := r.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, report.Actions)
	assert.Equal(t, 0, report.Scanned)
}

func TestNewRunner_RejectsNegative(t *testing.T) {
	_, err := NewRunner(nil, cfgresolver.RetentionConfig{KeepPerProfile: -1})
	assert.Error(t, err)
}

type failingStore struct{ err error }

func (f failingStore) ListFeedbackBefore(context.Context, time.Time) ([]model.FeedbackRecord, error) {
	return []model.FeedbackRecord{{ID: "x", ProfileID: "p"}}, nil
}

func (f failingStore) ListFeedbackBeyond(context.Context, int) ([]model.FeedbackRecord, error) {
	return nil, f.err
}

func (f failingStore) ArchiveFeedback(context.Context, []string) (int64, error) {
	return 0, f.err
}

func TestRunner_StoreErrors(t *testing.T) {
	boom := errors.New("database is locked")

	r, err := NewRunner(failingStore{err: boom}, cfgresolver.RetentionConfig{KeepPerProfile: 3})
	require.NoError(t, err)
	_, err = r.Run(context.Background(), true)
	assert.ErrorIs(t, err, boom)

	r, err = NewRunner(failingStore{err: boom}, cfgresolver.RetentionConfig{MaxAgeDays: 1})
	require.NoError(t, err)
	_, err = r.Run(context.Background(), false)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "apply retention")
}
