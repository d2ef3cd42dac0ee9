package main

import (
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/hurttlocker/slotfill/internal/feedback"
	"github.com/hurttlocker/slotfill/internal/fill"
	slotmcp "github.com/hurttlocker/slotfill/internal/mcp"
	"github.com/hurttlocker/slotfill/internal/patterns"
)

func (a *app) serveCmd() *cobra.Command {
	var noWatch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP tools over stdio",
		Long:  "Serve slotfill_extract, slotfill_fill, slotfill_feedback and the other MCP tools over stdio. The pattern extension file is watched and reloaded without a restart.",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer s.Close()

			opts, err := a.engineOptions()
			if err != nil {
				return err
			}
			lib, err := a.loadLibrary()
			if err != nil {
				return err
			}
			engines := fill.NewHolder(fill.New(lib, opts))

			if path := a.resolved.PatternsFile.Value; path != "" && !noWatch {
				w := patterns.NewWatcher(path, func(lib *patterns.Library) {
					engines.Swap(fill.New(lib, opts))
				}, a.logger)
				if err := w.Start(); err != nil {
					a.logger.Warn("pattern watcher disabled", "path", path, "err", err)
				} else {
					defer w.Stop()
				}
			}

			srv := slotmcp.NewServer(slotmcp.ServerConfig{
				Engines: engines,
				Store:   s,
				Learner: feedback.NewLearner(feedback.WithStore(s), feedback.WithLogger(a.logger)),
				Version: version,
			})
			a.logger.Info("serving MCP over stdio", "db", a.resolved.DBPath.Value, "patterns", lib.Len())
			return server.ServeStdio(srv)
		},
	}
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not reload the pattern file on change")
	return cmd
}
