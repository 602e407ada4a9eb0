package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"reelfeed/internal/roster"
)

func newRosterCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Inspect the roster of watched shows",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Parse the roster and show the resulting rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			r, dups, err := roster.LoadWithDuplicates(cfg.RosterPath())
			if err != nil {
				return err
			}
			for _, d := range dups {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: duplicate show", d.String())
			}

			rows := make([][]string, 0, len(r))
			for _, name := range r.Names() {
				rule, _ := r.Lookup(name)
				rows = append(rows, []string{
					rule.ShowName,
					rule.DestinationDir,
					strconv.Itoa(rule.Seasons[0]),
					strconv.Itoa(rule.Seasons[1]),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Show", "Destination", "From season", "To season"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
			))
			fmt.Fprintf(cmd.OutOrStdout(), "%d shows in %s\n", len(r), cfg.RosterPath())
			return nil
		},
	})
	return cmd
}
