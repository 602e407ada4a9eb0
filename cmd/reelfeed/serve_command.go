package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"reelfeed/internal/config"
	"reelfeed/internal/core"
	"reelfeed/internal/handlers"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run on a schedule, watch the roster and expose the status API",
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
			if err := manager.LoadSnapshot(); err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := manager.StartScheduler(runCtx); err != nil {
				return err
			}

			var server *handlers.Server
			serverErr := make(chan error, 1)
			if cfg.API.Enabled {
				server = handlers.NewServer(cfg, manager, logger)
				go func() {
					if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						serverErr <- err
					}
				}()
			}

			logger.Info("reelfeed is running. Press Ctrl+C to stop.")
			select {
			case <-runCtx.Done():
			case err = <-serverErr:
				logger.Error("Status API failed:", err)
			}

			logger.Info("Shutting down...")
			manager.Stop()
			if server != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				server.Stop(shutdownCtx)
			}
			return err
		},
	}
}
