// Package lifecycle applies retention policies to stored feedback history.
//
// Retention archives records rather than deleting them: an archived record
// no longer feeds per-slot value statistics but still counts toward the
// profile's accuracy. Records are only deleted together with their profile.
package lifecycle

import (
	"context"
	"fmt"
	"sort"
	"time"

	cfgresolver "github.com/hurttlocker/slotfill/internal/config"
	"github.com/hurttlocker/slotfill/internal/model"
)

// Policy names reported on each Action.
const (
	PolicyMaxAge         = "max_age"
	PolicyKeepPerProfile = "keep_per_profile"
)

// FeedbackStore is the slice of the store the runner needs.
type FeedbackStore interface {
	ListFeedbackBefore(ctx context.Context, cutoff time.Time) ([]model.FeedbackRecord, error)
	ListFeedbackBeyond(ctx context.Context, keep int) ([]model.FeedbackRecord, error)
	ArchiveFeedback(ctx context.Context, ids []string) (int64, error)
}

// Action is one record a policy selected for archiving.
type Action struct {
	Policy     string    `json:"policy"`
	Action     string    `json:"action"`
	FeedbackID string    `json:"feedback_id"`
	ProfileID  string    `json:"profile_id"`
	RecordedAt time.Time `json:"recorded_at"`
	Reason     string    `json:"reason"`
	Applied    bool      `json:"applied"`
}

// Report summarizes one Run. Scanned counts candidates before records
// selected by both policies are collapsed.
type Report struct {
	DryRun     bool     `json:"dry_run"`
	Scanned    int      `json:"scanned"`
	Applied    int      `json:"applied"`
	Profiles   []string `json:"profiles"`
	Actions    []Action `json:"actions"`
	PolicyRuns struct {
		MaxAge         int `json:"max_age"`
		KeepPerProfile int `json:"keep_per_profile"`
	} `json:"policy_runs"`
}

// Runner applies a RetentionConfig to a FeedbackStore.
type Runner struct {
	st       FeedbackStore
	policies cfgresolver.RetentionConfig
	now      func() time.Time
}

// NewRunner validates the policies. Zero disables a policy; negative values
// are rejected.
func NewRunner(st FeedbackStore, policies cfgresolver.RetentionConfig) (*Runner, error) {
	if policies.MaxAgeDays < 0 || policies.KeepPerProfile < 0 {
		return nil, fmt.Errorf("retention limits must not be negative: %+v", policies)
	}
	return &Runner{st: st, policies: policies, now: time.Now}, nil
}

// Run evaluates every enabled policy and, unless dryRun, archives the
// records they select. A record selected by both policies is reported once,
// under max_age. The age cutoff is taken from the clock at each call.
func (r *Runner) Run(ctx context.Context, dryRun bool) (*Report, error) {
	report := &Report{DryRun: dryRun, Profiles: []string{}, Actions: make([]Action, 0, 64)}
	seen := make(map[string]bool)

	if r.policies.MaxAgeDays > 0 {
		cutoff := r.now().UTC().AddDate(0, 0, -r.policies.MaxAgeDays)
		recs, err := r.st.ListFeedbackBefore(ctx, cutoff)
		if err != nil {
			return nil, fmt.Errorf("query max-age candidates: %w", err)
		}
		report.Scanned += len(recs)
		reason := fmt.Sprintf("recorded before %s (older than %d days)", cutoff.Format("2006-01-02"), r.policies.MaxAgeDays)
		actions := r.plan(PolicyMaxAge, recs, reason, seen)
		report.PolicyRuns.MaxAge = len(actions)
		report.Actions = append(report.Actions, actions...)
	}

	if r.policies.KeepPerProfile > 0 {
		recs, err := r.st.ListFeedbackBeyond(ctx, r.policies.KeepPerProfile)
		if err != nil {
			return nil, fmt.Errorf("query keep-per-profile candidates: %w", err)
		}
		report.Scanned += len(recs)
		reason := fmt.Sprintf("beyond the newest %d records for the profile", r.policies.KeepPerProfile)
		actions := r.plan(PolicyKeepPerProfile, recs, reason, seen)
		report.PolicyRuns.KeepPerProfile = len(actions)
		report.Actions = append(report.Actions, actions...)
	}

	profiles := make(map[string]bool)
	ids := make([]string, 0, len(report.Actions))
	for _, a := range report.Actions {
		profiles[a.ProfileID] = true
		ids = append(ids, a.FeedbackID)
	}
	for p := range profiles {
		report.Profiles = append(report.Profiles, p)
	}
	sort.Strings(report.Profiles)

	if dryRun || len(ids) == 0 {
		return report, nil
	}
	if _, err := r.st.ArchiveFeedback(ctx, ids); err != nil {
		return nil, fmt.Errorf("apply retention: %w", err)
	}
	for i := range report.Actions {
		report.Actions[i].Applied = true
	}
	report.Applied = len(report.Actions)
	return report, nil
}

func (r *Runner) plan(policy string, recs []model.FeedbackRecord, reason string, seen map[string]bool) []Action {
	actions := []Action{}
	for _, rec := range recs {
		if seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true
		actions = append(actions, Action{
			Policy:     policy,
			Action:     "archive",
			FeedbackID: rec.ID,
			ProfileID:  rec.ProfileID,
			RecordedAt: rec.Timestamp,
			Reason:     reason,
		})
	}
	return actions
}
