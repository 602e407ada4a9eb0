package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"reelfeed/internal/history"
	"reelfeed/internal/utils"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var prune bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List processed releases",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, closeLog, err := ctx.newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeLog()

			if prune {
				lock, err := lockWorkDir(cfg)
				if err != nil {
					return err
				}
				defer lock.Unlock()
			}

			store, closeStore, err := openStore(cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore()
			if err := store.Load(); err != nil {
				return fmt.Errorf("load history: %w", err)
			}

			if prune {
				removed := store.Prune(time.Now())
				if err := store.Persist(); err != nil {
					return fmt.Errorf("persist history: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d releases.\n", removed)
			}

			printHistory(cmd, store.Entries(), logger)
			return nil
		},
	}
	cmd.Flags().BoolVar(&prune, "prune", false, "Drop releases older than the retention window first")
	return cmd
}

func printHistory(cmd *cobra.Command, entries []history.Entry, logger *utils.Logger) {
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No processed releases.")
		return
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{time.Unix(e.Timestamp, 0).UTC().Format(time.DateTime), e.Name})
	}
	logger.Debug("Listing", len(entries), "processed releases")
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Published (UTC)", "Release"}, rows, nil))
}
