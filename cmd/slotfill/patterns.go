package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hurttlocker/slotfill/internal/model"
)

type patternRow struct {
	Entity model.EntityType `json:"entity"`
	Name   string           `json:"name"`
	Source string           `json:"pattern"`
}

func (a *app) patternsCmd() *cobra.Command {
	var entity string
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "List extraction patterns in precedence order",
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := a.loadLibrary()
			if err != nil {
				return err
			}
			only := model.EntityType(entity)
			if only != "" && !lib.Has(only) {
				return fmt.Errorf("unknown entity type %q", entity)
			}

			rows := []patternRow{}
			for _, t := range lib.EntityTypes() {
				if only != "" && t != only {
					continue
				}
				for _, p := range lib.PatternsFor(t) {
					rows = append(rows, patternRow{Entity: p.Entity, Name: p.Name, Source: p.Source})
				}
			}
			if a.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), rows)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ENTITY\tNAME\tPATTERN")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Entity, r.Name, r.Source)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&entity, "entity", "e", "", "Only list patterns of this entity type")
	return cmd
}
