package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"reelfeed/internal/clients/feed"
	"reelfeed/internal/clients/notifications"
	"reelfeed/internal/clients/torrent"
	"reelfeed/internal/clients/tracker"
	"reelfeed/internal/config"
	"reelfeed/internal/history"
	"reelfeed/internal/roster"
	"reelfeed/internal/utils"
)

// Run outcomes reported in RunReport.Outcome.
const (
	OutcomeAcquired        = "acquired"
	OutcomeNothingToDo     = "nothing-to-do"
	OutcomeFeedUnreachable = "feed-unreachable"
	OutcomeFailed          = "failed"
)

// TorrentFetcher downloads a ready-to-submit torrent file for a release link.
type TorrentFetcher interface {
	Fetch(ctx context.Context, link string) ([]byte, error)
}

// RunReport summarises one reconciliation run.
type RunReport struct {
	ID         string    `json:"id"`
	Trigger    string    `json:"trigger"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	FeedItems  int       `json:"feed_items"`
	Selected   int       `json:"selected"`
	Acquired   []Release `json:"acquired"`
	Pruned     int       `json:"pruned"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
}

type Manager struct {
	config        *config.Config
	feed          feed.Source
	fetcher       TorrentFetcher
	torrentClient torrent.Client
	store         *history.Store
	notifiers     []notifications.Notifier
	loadRoster    func() (roster.Roster, error)
	now           func() time.Time
	logger        *utils.Logger

	runMu sync.Mutex // serialises runs

	mu       sync.Mutex // guards lastRun and snapshot
	lastRun  *RunReport
	snapshot []history.Entry

	scheduler   *cron.Cron
	runRequests chan string
	stopWorker  context.CancelFunc
	workerDone  chan struct{}
}

// NewManager wires the feed, fetcher, torrent client and notifiers described
// by cfg around the given history store.
func NewManager(cfg *config.Config, store *history.Store, logger *utils.Logger) (*Manager, error) {
	timeout, err := time.ParseDuration(cfg.Feed.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid feed.timeout %q: %w", cfg.Feed.Timeout, err)
	}
	delay, err := time.ParseDuration(cfg.Fetch.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("invalid fetch.retry_delay %q: %w", cfg.Fetch.RetryDelay, err)
	}

	m := &Manager{
		config:      cfg,
		store:       store,
		logger:      logger,
		now:         time.Now,
		runRequests: make(chan string, 1),
	}
	m.loadRoster = func() (roster.Roster, error) {
		r, dups, err := roster.LoadWithDuplicates(cfg.RosterPath())
		warnDuplicates(logger, dups)
		return r, err
	}
	m.feed = feed.NewRSSClient(cfg.Feed.Source, timeout, logger)

	policy := tracker.RetryPolicy{MaxAttempts: cfg.Fetch.MaxAttempts, Delay: delay}
	m.fetcher = tracker.NewFetcher(cfg.Cookie(), utils.NewAnnounceConfig(cfg.Feed.AnnounceKey), policy, logger)

	// Setup Torrent Client
	switch cfg.TorrentClient.Type {
	case "qbittorrent":
		m.torrentClient = torrent.NewQBittorrentClient(cfg.TorrentClient.Host, cfg.TorrentClient.Username, cfg.TorrentClient.Password, timeout)
	case "transmission":
		m.torrentClient = torrent.NewTransmissionClient(cfg.TorrentClient.Host, cfg.TorrentClient.Username, cfg.TorrentClient.Password, timeout)
	default:
		return nil, fmt.Errorf("unsupported torrent client type: %s", cfg.TorrentClient.Type)
	}

	if key := cfg.Notifications.Pushbullet.APIKey; key != "" {
		m.notifiers = append(m.notifiers, notifications.NewPushbulletClient(key, logger))
	}

	return m, nil
}

// RunOnce performs a full reconciliation and acquisition pass. An unreachable
// feed or an empty selection is a successful run with nothing to do. Any
// fetch or submission failure aborts the remaining releases; what was
// acquired so far is persisted, but the history is not pruned.
func (m *Manager) RunOnce(ctx context.Context, trigger string) (*RunReport, error) {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	report := &RunReport{ID: uuid.NewString(), Trigger: trigger, StartedAt: m.now()}
	logger := m.logger.With("run", report.ID[:8])

	err := m.run(ctx, report, logger)
	report.FinishedAt = m.now()
	if err != nil {
		report.Outcome = OutcomeFailed
		report.Error = err.Error()
		logger.Error("Run failed:", err)
		for _, n := range m.notifiers {
			n.NotifyRunFailed(report.ID, err)
		}
	}

	m.mu.Lock()
	m.lastRun = report
	m.snapshot = m.store.Entries()
	m.mu.Unlock()

	return report, err
}

func (m *Manager) run(ctx context.Context, report *RunReport, logger *utils.Logger) error {
	wanted, err := m.loadRoster()
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}
	if err := m.store.Load(); err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	entries, err := m.feed.Fetch(ctx)
	if errors.Is(err, feed.ErrUnreachable) {
		logger.Info("Feed is unreachable, nothing to do this run:", err)
		report.Outcome = OutcomeFeedUnreachable
		return nil
	}
	if err != nil {
		return fmt.Errorf("fetch feed: %w", err)
	}
	report.FeedItems = len(entries)

	reconciler := NewReconciler(wanted, m.store, m.config.QualityTag(), m.config.TorrentClient.SavePath, m.config.TorrentClient.Category, logger)
	releases := reconciler.Reconcile(entries)
	report.Selected = len(releases)
	if len(releases) == 0 {
		logger.Info(fmt.Sprintf("No new releases among %d feed entries for %d roster shows.", len(entries), len(wanted)))
		report.Outcome = OutcomeNothingToDo
		return nil
	}

	logger.Info(fmt.Sprintf("Selected %d new releases.", len(releases)))
	m.warnOnLowDisk(logger)

	for _, release := range releases {
		if err := m.acquire(ctx, release, logger); err != nil {
			if perr := m.store.Persist(); perr != nil {
				logger.Error("Failed to persist history after abort:", perr)
			}
			return err
		}
		report.Acquired = append(report.Acquired, release)
	}

	acquired := make([]string, 0, len(report.Acquired))
	for _, r := range report.Acquired {
		acquired = append(acquired, r.Name)
	}
	report.Pruned = m.store.Prune(m.now(), acquired...)
	if report.Pruned > 0 {
		logger.Info(fmt.Sprintf("Pruned %d releases older than %s.", report.Pruned, time.Unix(history.PruneThreshold(m.now()), 0).Format(time.DateOnly)))
	}
	if err := m.store.Persist(); err != nil {
		return fmt.Errorf("persist history: %w", err)
	}
	report.Outcome = OutcomeAcquired
	return nil
}

func (m *Manager) acquire(ctx context.Context, release Release, logger *utils.Logger) error {
	logger.Info("⬇ Fetching torrent for:", release.Name)
	payload, err := m.fetcher.Fetch(ctx, release.Link)
	if err != nil {
		return fmt.Errorf("fetch %q: %w", release.Name, err)
	}

	logger.Info("🚀 Sending to download client:", m.torrentClient.Name(), "→", release.DestinationPath)
	if err := m.torrentClient.AddTorrentFile(ctx, payload, release.DestinationPath, m.config.TorrentClient.Category); err != nil {
		return fmt.Errorf("submit %q to %s: %w", release.Name, m.torrentClient.Name(), err)
	}

	m.store.Record(release.Name, release.Timestamp)
	logger.Info("✅ Queued:", release.Name)
	for _, n := range m.notifiers {
		n.NotifyReleaseQueued(release.Name, release.DestinationPath)
	}
	return nil
}

func warnDuplicates(logger *utils.Logger, dups []roster.Duplicate) {
	for _, d := range dups {
		logger.Warn("Duplicate roster entry:", d.String())
	}
}

func (m *Manager) warnOnLowDisk(logger *utils.Logger) {
	if m.config.Automation.MinFreeGB <= 0 {
		return
	}
	free, err := utils.DiskFree(m.config.TorrentClient.SavePath)
	if err != nil {
		// The save path usually lives on the torrent client host.
		logger.Debug("Cannot inspect save path:", err)
		return
	}
	if gb := float64(free) / (1 << 30); gb < m.config.Automation.MinFreeGB {
		logger.Warn(fmt.Sprintf("Only %.1f GB free under %s (threshold %.1f GB).", gb, m.config.TorrentClient.SavePath, m.config.Automation.MinFreeGB))
	}
}

// LastRun returns the report of the most recent run, if any.
func (m *Manager) LastRun() *RunReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRun
}

// History returns the processed releases as of the last run.
func (m *Manager) History() []history.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]history.Entry(nil), m.snapshot...)
}

// LoadSnapshot refreshes the history snapshot outside of a run.
func (m *Manager) LoadSnapshot() error {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if err := m.store.Load(); err != nil {
		return err
	}
	m.mu.Lock()
	m.snapshot = m.store.Entries()
	m.mu.Unlock()
	return nil
}

func (m *Manager) Config() *config.Config {
	return m.config
}
