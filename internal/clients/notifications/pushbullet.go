package notifications

import (
	"fmt"

	"reelfeed/internal/utils"

	"github.com/xconstruct/go-pushbullet"
)

// PushbulletClient implements the Notifier interface for Pushbullet.
type PushbulletClient struct {
	apiKey string
	pb     *pushbullet.Client
	logger *utils.Logger
}

// NewPushbulletClient creates a new client for sending Pushbullet notifications.
func NewPushbulletClient(apiKey string, logger *utils.Logger) *PushbulletClient {
	pb := pushbullet.New(apiKey)
	return &PushbulletClient{
		apiKey: apiKey,
		pb:     pb,
		logger: logger,
	}
}

// sendPush sends a note to all of the user's devices.
func (c *PushbulletClient) sendPush(title, body string) error {
	// The first argument to PushNote is the device iden. Empty means all devices.
	return c.pb.PushNote("", title, body)
}

// NotifyReleaseQueued is sent once the torrent client accepted a release.
func (c *PushbulletClient) NotifyReleaseQueued(releaseName, savePath string) {
	title := "Download Queued"
	body := fmt.Sprintf("%s\n→ %s", releaseName, savePath)
	if err := c.sendPush(title, body); err != nil {
		c.logger.Error("Error sending Pushbullet notification:", err)
	}
}

func (c *PushbulletClient) NotifyRunFailed(runID string, err error) {
	title := "reelfeed run failed"
	body := fmt.Sprintf("Run %s aborted: %v", runID, err)
	if err := c.sendPush(title, body); err != nil {
		c.logger.Error("Error sending Pushbullet failure notification:", err)
	}
}

// Test verifies the API key is valid by fetching user info.
func (c *PushbulletClient) Test() error {
	_, err := c.pb.Me()
	if err != nil {
		return fmt.Errorf("pushbullet authentication failed: %w", err)
	}
	return nil
}
