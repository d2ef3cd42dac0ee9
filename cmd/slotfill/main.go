// Command slotfill extracts profile fields from free text and matches them
// onto form slots.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hurttlocker/slotfill/internal/config"
	"github.com/hurttlocker/slotfill/internal/fill"
	"github.com/hurttlocker/slotfill/internal/patterns"
	"github.com/hurttlocker/slotfill/internal/signature"
	"github.com/hurttlocker/slotfill/internal/store"
)

const version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries the global flags and the resources commands open from them.
type app struct {
	configPath string
	dbPath     string
	patterns   string
	logLevel   string
	minScore   string
	workers    string
	noFlexible bool
	format     string

	resolved config.ResolvedConfig
	logger   *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "slotfill",
		Short:         "Fill form slots from free-text profiles",
		Long:          "slotfill extracts typed fields (names, emails, phones, identifiers, ...) from free-text profiles and matches them onto form slots with a confidence score.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.resolve(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", "", "Config file (default: ~/.slotfill/config.yaml)")
	f.StringVarP(&a.dbPath, "db", "d", "", "Database path (default: $SLOTFILL_DB or ~/.slotfill/slotfill.db)")
	f.StringVar(&a.patterns, "patterns", "", "Pattern extension file (default: $SLOTFILL_PATTERNS or ~/.slotfill/patterns.yaml)")
	f.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	f.StringVar(&a.minScore, "min-score", "", "Minimum match score a slot assignment must exceed (0-1)")
	f.StringVar(&a.workers, "workers", "", "Slots matched in parallel per request")
	f.BoolVar(&a.noFlexible, "no-flexible", false, "Disable the key:value line pass")
	f.StringVarP(&a.format, "format", "f", "text", "Output format: text or json")

	root.AddCommand(
		a.extractCmd(),
		a.fillCmd(),
		a.explainCmd(),
		a.feedbackCmd(),
		a.profileCmd(),
		a.patternsCmd(),
		a.serveCmd(),
		versionCmd(),
	)
	return root
}

func (a *app) resolve(cmd *cobra.Command) error {
	resolved, err := config.ResolveConfig(config.ResolveOptions{
		ConfigPath:    a.configPath,
		CLIDBPath:     a.dbPath,
		CLIPatterns:   a.patterns,
		CLILogLevel:   a.logLevel,
		CLIMinScore:   a.minScore,
		CLIWorkers:    a.workers,
		CLINoFlexible: a.noFlexible,
	})
	if err != nil {
		return err
	}
	level, _ := resolved.Level()
	a.resolved = resolved
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	if a.format != "text" && a.format != "json" {
		return fmt.Errorf("unknown format %q (want text or json)", a.format)
	}
	return nil
}

// engineOptions builds fill options from the resolved configuration.
func (a *app) engineOptions() (fill.Options, error) {
	opts := fill.DefaultOptions()
	var err error
	if opts.Extract, err = a.resolved.ExtractConfig(); err != nil {
		return opts, err
	}
	if opts.Match, err = a.resolved.MatchConfig(); err != nil {
		return opts, err
	}
	if opts.Workers, err = a.resolved.WorkerCount(); err != nil {
		return opts, err
	}
	opts.Logger = a.logger
	opts.Signatures = signature.NewCache(4096)
	return opts, nil
}

func (a *app) loadLibrary() (*patterns.Library, error) {
	return patterns.NewFromFile(a.resolved.PatternsFile.Value)
}

func (a *app) loadEngine() (*fill.Engine, error) {
	lib, err := a.loadLibrary()
	if err != nil {
		return nil, err
	}
	opts, err := a.engineOptions()
	if err != nil {
		return nil, err
	}
	return fill.New(lib, opts), nil
}

func (a *app) openStore() (*store.SQLiteStore, error) {
	return store.NewStore(store.StoreConfig{DBPath: a.resolved.DBPath.Value})
}

func (a *app) jsonOutput() bool {
	return a.format == "json"
}

// readInput returns the named file, stdin for "-" or no argument, or the
// arguments joined when they are not a readable file.
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || (len(args) == 1 && args[0] == "-") {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(b), nil
	}
	if len(args) == 1 {
		if b, err := os.ReadFile(args[0]); err == nil {
			return string(b), nil
		}
	}
	return strings.Join(args, " "), nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "slotfill %s\n", version)
		},
	}
}
