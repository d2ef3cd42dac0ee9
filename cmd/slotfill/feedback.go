package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hurttlocker/slotfill/internal/feedback"
	"github.com/hurttlocker/slotfill/internal/lifecycle"
	"github.com/hurttlocker/slotfill/internal/model"
	"github.com/hurttlocker/slotfill/internal/store"
)

func (a *app) feedbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Record and inspect fill outcomes",
	}
	cmd.AddCommand(a.feedbackRecordCmd(), a.feedbackStatsCmd(), a.feedbackPatternsCmd(), a.feedbackArchiveCmd())
	return cmd
}

// withLearner opens the store and hands a store-backed learner, hydrated
// for profileID, to fn.
func (a *app) withLearner(cmd *cobra.Command, profileID string, fn func(*feedback.Learner, *store.SQLiteStore) error) error {
	s, err := a.openStore()
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	l := feedback.NewLearner(feedback.WithStore(s), feedback.WithLogger(a.logger))
	if err := l.Load(cmd.Context(), profileID); err != nil {
		return err
	}
	return fn(l, s)
}

func (a *app) feedbackRecordCmd() *cobra.Command {
	var rec model.FeedbackRecord
	var entity string
	cmd := &cobra.Command{
		Use:   "record --profile id --slot id [--correct | --actual value]",
		Short: "Record what the user did with a filled value",
		RunE: func(cmd *cobra.Command, args []string) error {
			rec.EntityType = model.EntityType(entity)
			return a.withLearner(cmd, rec.ProfileID, func(l *feedback.Learner, _ *store.SQLiteStore) error {
				stored, err := l.RecordOutcome(cmd.Context(), rec)
				if err != nil {
					return err
				}
				st := l.Stats(stored.ProfileID)
				if a.jsonOutput() {
					return printJSON(cmd.OutOrStdout(), map[string]interface{}{"record": stored, "stats": st})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s %s for %s/%s. Accuracy now %.0f%% over %s records.\n",
					stored.Outcome(), stored.ID, stored.ProfileID, stored.SlotID, st.Accuracy*100, humanize.Comma(int64(st.Total)))
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&rec.ProfileID, "profile", "p", "", "Profile id (required)")
	f.StringVar(&rec.SlotID, "slot", "", "Slot id (required)")
	f.BoolVar(&rec.WasCorrect, "correct", false, "The user kept the predicted value")
	f.StringVar(&rec.PredictedValue, "predicted", "", "Value that was filled in")
	f.StringVar(&rec.ActualValue, "actual", "", "Value the user replaced it with")
	f.Float64Var(&rec.Confidence, "confidence", 0, "Match confidence of the filled value")
	f.StringVar(&entity, "entity", "", "Entity type of the filled value")
	return cmd
}

func (a *app) feedbackStatsCmd() *cobra.Command {
	var profileID string
	cmd := &cobra.Command{
		Use:   "stats --profile id",
		Short: "Show a profile's fill accuracy",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(profileID) == "" {
				return fmt.Errorf("--profile is required")
			}
			return a.withLearner(cmd, profileID, func(l *feedback.Learner, _ *store.SQLiteStore) error {
				st := l.Stats(profileID)
				if a.jsonOutput() {
					return printJSON(cmd.OutOrStdout(), st)
				}
				out := cmd.OutOrStdout()
				if st.Total == 0 {
					fmt.Fprintf(out, "No feedback recorded for %s.\n", profileID)
					return nil
				}
				fmt.Fprintf(out, "Profile:  %s\n", profileID)
				fmt.Fprintf(out, "Records:  %s (%s correct)\n", humanize.Comma(int64(st.Total)), humanize.Comma(int64(st.Correct)))
				fmt.Fprintf(out, "Accuracy: %.1f%%\n", st.Accuracy*100)
				fmt.Fprintf(out, "Last:     %s\n", humanize.Time(st.LastRecordedAt))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&profileID, "profile", "p", "", "Profile id (required)")
	return cmd
}

func (a *app) feedbackPatternsCmd() *cobra.Command {
	var profileID, slotID string
	cmd := &cobra.Command{
		Use:   "patterns --profile id --slot id",
		Short: "Show recurring prefixes and suffixes of a slot's accepted values",
		RunE: func(cmd *cobra.Command, args []string) error {
			if profileID == "" || slotID == "" {
				return fmt.Errorf("--profile and --slot are required")
			}
			return a.withLearner(cmd, profileID, func(l *feedback.Learner, _ *store.SQLiteStore) error {
				summary, ok := l.SummarizePatterns(profileID, slotID)
				if a.jsonOutput() {
					if !ok {
						return printJSON(cmd.OutOrStdout(), map[string]interface{}{"values": len(l.AcceptedValues(profileID, slotID))})
					}
					return printJSON(cmd.OutOrStdout(), summary)
				}
				out := cmd.OutOrStdout()
				if !ok {
					fmt.Fprintf(out, "Not enough accepted values for %s/%s yet (%d).\n",
						profileID, slotID, len(l.AcceptedValues(profileID, slotID)))
					return nil
				}
				fmt.Fprintf(out, "%s/%s: %d accepted values\n", profileID, slotID, summary.Values)
				printAffixes(cmd, "Prefixes", summary.Prefixes)
				printAffixes(cmd, "Suffixes", summary.Suffixes)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&profileID, "profile", "p", "", "Profile id (required)")
	cmd.Flags().StringVar(&slotID, "slot", "", "Slot id (required)")
	return cmd
}

func printAffixes(cmd *cobra.Command, title string, affixes []feedback.AffixCount) {
	out := cmd.OutOrStdout()
	if len(affixes) == 0 {
		fmt.Fprintf(out, "%s: none recurring\n", title)
		return
	}
	parts := make([]string, 0, len(affixes))
	for _, a := range affixes {
		parts = append(parts, fmt.Sprintf("%q×%d", a.Affix, a.Count))
	}
	fmt.Fprintf(out, "%s: %s\n", title, strings.Join(parts, ", "))
}

func (a *app) feedbackArchiveCmd() *cobra.Command {
	var dryRun bool
	var maxAge, keep int
	cmd := &cobra.Command{
		Use:     "archive [--dry-run] [--max-age-days n] [--keep n]",
		Aliases: []string{"prune"},
		Short:   "Archive feedback outside the retention limits",
		Long: "Archive feedback older than max_age_days or beyond the newest keep_per_profile records per profile. " +
			"Archived records stop feeding per-slot value statistics but still count toward accuracy. " +
			"Flags override the retention section of the config file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			policies, err := a.resolved.Retention()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("max-age-days") {
				policies.MaxAgeDays = maxAge
			}
			if cmd.Flags().Changed("keep") {
				policies.KeepPerProfile = keep
			}
			if !policies.Enabled() {
				return fmt.Errorf("no retention limit set: use --max-age-days, --keep or the retention config section")
			}

			return a.withStore(func(s *store.SQLiteStore) error {
				runner, err := lifecycle.NewRunner(s, policies)
				if err != nil {
					return err
				}
				report, err := runner.Run(cmd.Context(), dryRun)
				if err != nil {
					return err
				}
				a.logger.Info("feedback archived", "dry_run", dryRun, "actions", len(report.Actions), "applied", report.Applied)
				if a.jsonOutput() {
					return printJSON(cmd.OutOrStdout(), report)
				}
				out := cmd.OutOrStdout()
				verb := "Archived"
				if dryRun {
					verb = "Would archive"
				}
				fmt.Fprintf(out, "%s %s feedback records across %s profiles (%d by age, %d by per-profile cap).\n",
					verb, humanize.Comma(int64(len(report.Actions))), humanize.Comma(int64(len(report.Profiles))),
					report.PolicyRuns.MaxAge, report.PolicyRuns.KeepPerProfile)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Report what would be archived")
	cmd.Flags().IntVar(&maxAge, "max-age-days", 0, "Archive records older than this many days")
	cmd.Flags().IntVar(&keep, "keep", 0, "Keep only this many newest unarchived records per profile")
	return cmd
}
