package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hurttlocker/slotfill/internal/ingest"
	"github.com/hurttlocker/slotfill/internal/model"
	"github.com/hurttlocker/slotfill/internal/store"
)

func (a *app) profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "profile",
		Aliases: []string{"profiles"},
		Short:   "Manage stored profiles",
	}
	cmd.AddCommand(a.profilePutCmd(), a.profileGetCmd(), a.profileListCmd(), a.profileRmCmd(), a.profileImportCmd())
	return cmd
}

func (a *app) withStore(fn func(*store.SQLiteStore) error) error {
	s, err := a.openStore()
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()
	return fn(s)
}

func (a *app) profilePutCmd() *cobra.Command {
	var id, name string
	cmd := &cobra.Command{
		Use:   "put --id id [--name name] [file|-|text...]",
		Short: "Create or replace a profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			p := &model.Profile{ID: strings.TrimSpace(id), Name: name, Content: content}
			return a.withStore(func(s *store.SQLiteStore) error {
				changed, err := s.PutProfile(cmd.Context(), p)
				if err != nil {
					return err
				}
				if a.jsonOutput() {
					return printJSON(cmd.OutOrStdout(), map[string]interface{}{"profile": p, "changed": changed})
				}
				if changed {
					fmt.Fprintf(cmd.OutOrStdout(), "Saved profile %s (%s).\n", p.ID, humanize.Bytes(uint64(len(p.Content))))
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Profile %s unchanged.\n", p.ID)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Profile id (required)")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.MarkFlagRequired("id")
	return cmd
}

func (a *app) profileGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print a stored profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s *store.SQLiteStore) error {
				p, err := s.GetProfile(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if a.jsonOutput() {
					return printJSON(cmd.OutOrStdout(), p)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "# %s", p.ID)
				if p.Name != "" {
					fmt.Fprintf(out, " (%s)", p.Name)
				}
				fmt.Fprintf(out, ", updated %s\n\n%s\n", humanize.Time(p.UpdatedAt), strings.TrimRight(p.Content, "\n"))
				return nil
			})
		},
	}
}

func (a *app) profileListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s *store.SQLiteStore) error {
				profiles, err := s.ListProfiles(cmd.Context())
				if err != nil {
					return err
				}
				if a.jsonOutput() {
					if profiles == nil {
						profiles = []*model.Profile{}
					}
					return printJSON(cmd.OutOrStdout(), profiles)
				}
				out := cmd.OutOrStdout()
				if len(profiles) == 0 {
					fmt.Fprintln(out, "No profiles stored.")
					return nil
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tSIZE\tUPDATED")
				for _, p := range profiles {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, humanize.Bytes(uint64(len(p.Content))), humanize.Time(p.UpdatedAt))
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				stats, err := s.Stats(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "\n%s profiles, %s feedback records, %s on disk\n",
					humanize.Comma(stats.ProfileCount), humanize.Comma(stats.FeedbackCount), humanize.Bytes(uint64(stats.DBSizeBytes)))
				return nil
			})
		},
	}
}

func (a *app) profileRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a profile and its feedback history",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s *store.SQLiteStore) error {
				if err := s.DeleteProfile(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted profile %s.\n", args[0])
				return nil
			})
		},
	}
}

func (a *app) profileImportCmd() *cobra.Command {
	var opts ingest.ImportOptions
	cmd := &cobra.Command{
		Use:   "import <path> [path...]",
		Short: "Import profiles from Markdown, text, JSON, YAML or CSV files",
		Long: `Import profiles from files or directories.

Markdown and text files become one profile each, named after the file.
JSON and YAML objects, and CSV rows, become one profile each; their fields
are written as "Key: value" lines.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s *store.SQLiteStore) error {
				engine := ingest.NewEngine(s)
				total := &ingest.ImportResult{}
				for _, path := range args {
					a.logger.Debug("importing profiles", "path", path, "dry_run", opts.DryRun)
					r, err := engine.ImportFile(cmd.Context(), path, opts)
					if err != nil {
						return err
					}
					total.Add(r)
				}
				if a.jsonOutput() {
					return printJSON(cmd.OutOrStdout(), total)
				}
				if opts.DryRun {
					fmt.Fprintln(cmd.OutOrStdout(), "Dry run, nothing written.")
				}
				fmt.Fprint(cmd.OutOrStdout(), ingest.FormatImportResult(total))
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&opts.Recursive, "recursive", "r", false, "Descend into subdirectories")
	cmd.Flags().BoolVarP(&opts.DryRun, "dry-run", "n", false, "Report what would change without writing")
	cmd.Flags().Int64Var(&opts.MaxFileSize, "max-size", ingest.DefaultMaxFileSize, "Skip files larger than this many bytes")
	return cmd
}
