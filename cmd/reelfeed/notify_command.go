package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"reelfeed/internal/clients/notifications"
)

func newNotifyCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Notification helpers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "test",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			key := cfg.Notifications.Pushbullet.APIKey
			if key == "" {
				return errors.New("notifications.pushbullet.api_key is not set")
			}
			logger, closeLog, err := ctx.newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeLog()

			var n notifications.Notifier = notifications.NewPushbulletClient(key, logger)
			if err := n.Test(); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
			return nil
		},
	})
	return cmd
}
