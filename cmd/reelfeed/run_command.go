package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"reelfeed/internal/config"
	"reelfeed/internal/core"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Perform one reconciliation and acquisition pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := config.EnsureFiles(ctx.configPath(), cfg); err != nil {
				return err
			}

			logger, closeLog, err := ctx.newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeLog()

			lock, err := lockWorkDir(cfg)
			if err != nil {
				return err
			}
			defer lock.Unlock()

			store, closeStore, err := openStore(cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			manager, err := core.NewManager(cfg, store, logger)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			report, err := manager.RunOnce(runCtx, "cli")
			if err != nil {
				return err
			}
			logger.Info("Run finished:", report.Outcome, "acquired", len(report.Acquired), "pruned", report.Pruned)
			return nil
		},
	}
}
