// Package feedback records what users did with applied values and derives
// per-profile accuracy plus per-slot value statistics.
//
// The learner never touches matcher scoring. Its statistics are read by
// callers that want to adjust weighting themselves.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hurttlocker/slotfill/internal/model"
)

// ErrInvalidRecord rejects a record missing its profile or slot.
var ErrInvalidRecord = errors.New("invalid feedback record")

// Store persists feedback history. store.SQLiteStore satisfies it.
type Store interface {
	AppendFeedback(ctx context.Context, rec model.FeedbackRecord) error
	ListFeedback(ctx context.Context, profileID string) ([]model.FeedbackRecord, error)
}

// ProfileStats is the running accuracy of one profile.
type ProfileStats struct {
	ProfileID      string    `json:"profile_id"`
	Total          int       `json:"total"`
	Correct        int       `json:"correct"`
	Accuracy       float64   `json:"accuracy"`
	LastRecordedAt time.Time `json:"last_recorded_at,omitempty"`
}

// history is one profile's append-only record list. mu serializes writers so
// concurrent outcomes for the same profile are never lost. loaded is set once
// the store's copy has been read in.
type history struct {
	mu      sync.Mutex
	records []model.FeedbackRecord
	correct int
	loaded  bool
}

// Learner holds feedback history per profile. Safe for concurrent use;
// different profiles never contend on the same lock.
type Learner struct {
	store      Store
	summarizer PatternSummarizer
	now        func() time.Time
	logger     *slog.Logger

	mu       sync.Mutex
	profiles map[string]*history

	entropyMu sync.Mutex
	entropy   *rand.Rand
}

// Option configures a Learner.
type Option func(*Learner)

// WithStore persists every record before it is appended in memory.
func WithStore(s Store) Option {
	return func(l *Learner) { l.store = s }
}

// WithSummarizer replaces the default affix summarizer.
func WithSummarizer(s PatternSummarizer) Option {
	return func(l *Learner) { l.summarizer = s }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Learner) { l.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Learner) { l.logger = logger }
}

// NewLearner creates an in-memory learner.
func NewLearner(opts ...Option) *Learner {
	l := &Learner{
		summarizer: DefaultAffixSummarizer(),
		now:        time.Now,
		profiles:   make(map[string]*history),
		entropy:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.New(slog.DiscardHandler)
	}
	return l
}

// Validate reports ErrInvalidRecord when rec lacks a profile or slot id.
func Validate(rec model.FeedbackRecord) error {
	var missing []string
	if strings.TrimSpace(rec.ProfileID) == "" {
		missing = append(missing, "profile_id")
	}
	if strings.TrimSpace(rec.SlotID) == "" {
		missing = append(missing, "slot_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidRecord, strings.Join(missing, ", "))
	}
	return nil
}

// RecordOutcome validates rec, stamps it with an id and timestamp when unset,
// persists it and appends it to the profile's history. An invalid record or a
// failed write leaves the history untouched.
func (l *Learner) RecordOutcome(ctx context.Context, rec model.FeedbackRecord) (model.FeedbackRecord, error) {
	if err := Validate(rec); err != nil {
		return model.FeedbackRecord{}, err
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = l.now().UTC()
	}
	if rec.ID == "" {
		rec.ID = l.newID(rec.Timestamp)
	}

	h := l.historyFor(rec.ProfileID)
	h.mu.Lock()
	defer h.mu.Unlock()

	if l.store != nil {
		if !h.loaded {
			if err := l.hydrate(ctx, rec.ProfileID, h); err != nil {
				return model.FeedbackRecord{}, err
			}
		}
		if err := l.store.AppendFeedback(ctx, rec); err != nil {
			return model.FeedbackRecord{}, fmt.Errorf("persisting feedback: %w", err)
		}
	}
	h.records = append(h.records, rec)
	if rec.WasCorrect {
		h.correct++
	}
	l.logger.Debug("feedback recorded",
		"profile", rec.ProfileID, "slot", rec.SlotID, "outcome", rec.Outcome(),
		"accuracy", ratio(h.correct, len(h.records)))
	return rec, nil
}

// Load replaces the in-memory history of profileID with the store's copy.
// Without a store it is a no-op. RecordOutcome loads a profile on its first
// write, so Load is only needed to pick up writes from other processes.
func (l *Learner) Load(ctx context.Context, profileID string) error {
	if l.store == nil {
		return nil
	}
	h := l.historyFor(profileID)
	h.mu.Lock()
	defer h.mu.Unlock()
	return l.hydrate(ctx, profileID, h)
}

// hydrate replaces h with the store's records. Callers hold h.mu.
func (l *Learner) hydrate(ctx context.Context, profileID string, h *history) error {
	records, err := l.store.ListFeedback(ctx, profileID)
	if err != nil {
		return fmt.Errorf("loading feedback for %s: %w", profileID, err)
	}
	h.records = records
	h.correct = 0
	for _, r := range records {
		if r.WasCorrect {
			h.correct++
		}
	}
	h.loaded = true
	return nil
}

// Forget drops the in-memory history of a deleted profile.
func (l *Learner) Forget(profileID string) {
	l.mu.Lock()
	delete(l.profiles, profileID)
	l.mu.Unlock()
}

// Stats returns the profile's accuracy. An unknown profile has zero records
// and accuracy 0.
func (l *Learner) Stats(profileID string) ProfileStats {
	h := l.lookup(profileID)
	st := ProfileStats{ProfileID: profileID}
	if h == nil {
		return st
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	st.Total = len(h.records)
	st.Correct = h.correct
	st.Accuracy = ratio(h.correct, st.Total)
	if st.Total > 0 {
		st.LastRecordedAt = h.records[st.Total-1].Timestamp
	}
	return st
}

// History returns a copy of the profile's records in arrival order.
func (l *Learner) History(profileID string) []model.FeedbackRecord {
	h := l.lookup(profileID)
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]model.FeedbackRecord, len(h.records))
	copy(out, h.records)
	return out
}

// AcceptedValues lists the values the user kept for one slot, oldest first.
// Archived records are skipped; they still count toward accuracy.
func (l *Learner) AcceptedValues(profileID, slotID string) []string {
	var out []string
	for _, r := range l.History(profileID) {
		if r.SlotID != slotID || r.Archived {
			continue
		}
		if v, ok := r.AcceptedValue(); ok {
			out = append(out, v)
		}
	}
	return out
}

// SummarizePatterns runs the summarizer over the slot's accepted values. It
// reports false until the summarizer has enough values to work with.
func (l *Learner) SummarizePatterns(profileID, slotID string) (PatternSummary, bool) {
	values := l.AcceptedValues(profileID, slotID)
	summary, ok := l.summarizer.Summarize(values)
	if !ok {
		return PatternSummary{}, false
	}
	summary.ProfileID = profileID
	summary.SlotID = slotID
	return summary, true
}

func (l *Learner) historyFor(profileID string) *history {
	l.mu.Lock()
	defer l.mu.Unlock()
	h, ok := l.profiles[profileID]
	if !ok {
		h = &history{}
		l.profiles[profileID] = h
	}
	return h
}

func (l *Learner) lookup(profileID string) *history {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.profiles[profileID]
}

func (l *Learner) newID(t time.Time) string {
	l.entropyMu.Lock()
	defer l.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), l.entropy).String()
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}
