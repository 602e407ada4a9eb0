package notifications

// Notifier tells the operator what an unattended run did.
type Notifier interface {
	NotifyReleaseQueued(releaseName, savePath string)
	NotifyRunFailed(runID string, err error)
	Test() error
}
