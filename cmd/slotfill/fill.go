package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hurttlocker/slotfill/internal/model"
)

func (a *app) extractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract [file|-|text...]",
		Short: "Extract typed values from profile text",
		Long:  "Extract typed values from a free-text profile. Reads the named file, the text arguments, or stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			engine, err := a.loadEngine()
			if err != nil {
				return err
			}
			values := engine.Extract(text).Ordered(engine.Library())
			if a.jsonOutput() {
				if values == nil {
					values = []model.ExtractedValue{}
				}
				return printJSON(cmd.OutOrStdout(), values)
			}
			if len(values) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No values found.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ENTITY\tVALUE\tCONFIDENCE\tMETHOD\tPATTERN")
			for _, v := range values {
				fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\t%s\n", v.EntityType, v.Value, v.Confidence, v.Method, v.SourcePattern)
			}
			return tw.Flush()
		},
	}
}

// profileText resolves the text to fill from: a stored profile when
// profileID is set, otherwise the file/args/stdin input.
func (a *app) profileText(cmd *cobra.Command, profileID string, args []string) (string, error) {
	if profileID == "" {
		return readInput(cmd, args)
	}
	s, err := a.openStore()
	if err != nil {
		return "", fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()
	p, err := s.GetProfile(cmd.Context(), profileID)
	if err != nil {
		return "", err
	}
	return p.Content, nil
}

func (a *app) fillCmd() *cobra.Command {
	var slotsPath, profileID string
	cmd := &cobra.Command{
		Use:   "fill --slots slots.json [--profile id | file|-|text...]",
		Short: "Match profile values onto form slots",
		Long:  "Match profile values onto the slots described in a JSON file (an array of {id, name, type, label, context, placeholder, attributes}).",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(slotsPath)
			if err != nil {
				return fmt.Errorf("reading slots: %w", err)
			}
			var slots []model.SlotDescriptor
			if err := json.Unmarshal(raw, &slots); err != nil {
				return fmt.Errorf("parsing slots %s: %w", slotsPath, err)
			}
			text, err := a.profileText(cmd, profileID, args)
			if err != nil {
				return err
			}
			engine, err := a.loadEngine()
			if err != nil {
				return err
			}
			res, err := engine.Fill(cmd.Context(), text, slots)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), res)
			}

			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SLOT\tENTITY\tVALUE\tSCORE")
			for _, as := range res.Assignments {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\n", as.SlotID, as.EntityType, as.Value, as.Confidence)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if len(res.Unmatched) > 0 {
				fmt.Fprintf(out, "\nUnmatched: %s\n", strings.Join(res.Unmatched, ", "))
			}
			for _, r := range res.Rejected {
				fmt.Fprintf(out, "Rejected slot #%d: %s\n", r.Index, r.Reason)
			}
			fmt.Fprintf(out, "\nOverall confidence: %.0f%% (%d/%d slots filled)\n",
				res.Confidence*100, len(res.Assignments), len(slots))
			return nil
		},
	}
	cmd.Flags().StringVarP(&slotsPath, "slots", "s", "", "JSON file with the slot descriptors (required)")
	cmd.Flags().StringVarP(&profileID, "profile", "p", "", "Fill from a stored profile")
	cmd.MarkFlagRequired("slots")
	return cmd
}

func (a *app) explainCmd() *cobra.Command {
	var (
		slot      model.SlotDescriptor
		profileID string
	)
	cmd := &cobra.Command{
		Use:   "explain [--profile id | file|-|text...]",
		Short: "Show how one slot scores against every extracted value",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := a.profileText(cmd, profileID, args)
			if err != nil {
				return err
			}
			engine, err := a.loadEngine()
			if err != nil {
				return err
			}
			sig, candidates, err := engine.Explain(text, slot)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"signature":  sig,
					"candidates": candidates,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Search text: %q\nCategory:    %s\n\n", sig.NormalizedSearchText, sig.Category)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ENTITY\tKEYWORD\tEXACT\tABBREV\tCATEGORY\tFACTOR\tSCORE\t")
			for _, c := range candidates {
				mark := ""
				if c.Accepted {
					mark = "*"
				}
				fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%s\n",
					c.EntityType, c.Keyword, c.ExactName, c.Abbreviation, c.Category, c.TypeFactor, c.Score, mark)
			}
			return tw.Flush()
		},
	}
	f := cmd.Flags()
	f.StringVar(&slot.ID, "id", "", "Slot id")
	f.StringVar(&slot.Name, "name", "", "Slot name")
	f.StringVar(&slot.DeclaredType, "type", "", "Declared slot type (email, tel, date, text, ...)")
	f.StringVar(&slot.Label, "label", "", "Slot label")
	f.StringVar(&slot.Context, "context", "", "Text surrounding the slot")
	f.StringVar(&slot.PlaceholderText, "placeholder", "", "Placeholder text")
	f.StringVarP(&profileID, "profile", "p", "", "Use a stored profile")
	return cmd
}
