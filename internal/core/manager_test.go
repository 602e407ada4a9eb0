package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelfeed/internal/clients/feed"
	"reelfeed/internal/clients/notifications"
	"reelfeed/internal/clients/tracker"
	"reelfeed/internal/config"
	"reelfeed/internal/history"
	"reelfeed/internal/roster"
	"reelfeed/internal/utils"
)

type fakeFeed struct {
	entries []feed.Entry
	err     error
}

func (f *fakeFeed) Fetch(context.Context) ([]feed.Entry, error) {
	return f.entries, f.err
}

type fakeFetcher struct {
	failOn map[string]error
	calls  []string
}

func (f *fakeFetcher) Fetch(_ context.Context, link string) ([]byte, error) {
	f.calls = append(f.calls, link)
	if err := f.failOn[link]; err != nil {
		return nil, err
	}
	return []byte("torrent:" + link), nil
}

type submission struct {
	payload  string
	savePath string
	category string
}

type fakeClient struct {
	failOn      map[string]bool
	submissions []submission
}

func (c *fakeClient) Name() string { return "fake" }

func (c *fakeClient) AddTorrentFile(_ context.Context, content []byte, savePath, category string) error {
	if c.failOn[string(content)] {
		return errors.New("client refused")
	}
	c.submissions = append(c.submissions, submission{string(content), savePath, category})
	return nil
}

type recordingNotifier struct {
	queued []string
	failed int
}

func (n *recordingNotifier) NotifyReleaseQueued(name, _ string) { n.queued = append(n.queued, name) }
func (n *recordingNotifier) NotifyRunFailed(string, error)    { n.failed++ }
func (n *recordingNotifier) Test() error                      { return nil }

type harness struct {
	manager  *Manager
	feed     *fakeFeed
	fetcher  *fakeFetcher
	client   *fakeClient
	notifier *recordingNotifier
	store    *history.Store
	path     string
	now      time.Time
}

func newHarness(t *testing.T, rosterLines ...string) *harness {
	t.Helper()
	cfg := &config.Config{}
	cfg.Feed.Quality = "1080p"
	cfg.TorrentClient.SavePath = "/media"
	cfg.TorrentClient.Category = "shows"

	path := filepath.Join(t.TempDir(), "entries.db")
	h := &harness{
		feed:     &fakeFeed{},
		fetcher:  &fakeFetcher{failOn: map[string]error{}},
		client:   &fakeClient{failOn: map[string]bool{}},
		notifier: &recordingNotifier{},
		store:    history.NewStore(history.NewFileBackend(path)),
		path:     path,
		now:      time.Unix(1_800_000_000, 0),
	}
	r := mustRoster(t, rosterLines...)
	h.manager = &Manager{
		config:        cfg,
		feed:          h.feed,
		fetcher:       h.fetcher,
		torrentClient: h.client,
		store:         h.store,
		notifiers:     []notifications.Notifier{h.notifier},
		loadRoster:    func() (roster.Roster, error) { return r, nil },
		now:           func() time.Time { return h.now },
		logger:        utils.NewNopLogger(),
		runRequests:   make(chan string, 1),
	}
	return h
}

func (h *harness) persisted(t *testing.T) map[string]int64 {
	t.Helper()
	entries, err := history.NewFileBackend(h.path).Load()
	require.NoError(t, err)
	return entries
}

func title(n int) string {
	return fmt.Sprintf("Рус (Show X) Ep (S01E%02d) [1080p]", n)
}

func TestRunOnceAcquiresInOrderAndPrunes(t *testing.T) {
	h := newHarness(t, "Show X/S01/Y2021")
	oldTS := h.now.Unix() - 100*24*3600
	require.NoError(t, history.NewFileBackend(h.path).Save(map[string]int64{"ancient release": oldTS}))

	h.feed.entries = []feed.Entry{
		entry(title(2), h.now.Unix()-10, "[1080p]"),
		entry(title(1), h.now.Unix()-20, "[1080p]"),
	}

	report, err := h.manager.RunOnce(context.Background(), "test")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAcquired, report.Outcome)
	assert.Equal(t, 2, report.Selected)
	assert.Len(t, report.Acquired, 2)
	assert.Equal(t, 1, report.Pruned)

	require.Len(t, h.client.submissions, 2)
	assert.Equal(t, "torrent:http://origin.test/"+title(1), h.client.submissions[0].payload)
	assert.Equal(t, filepath.Join("/media", "shows", "Show X (2021)"), h.client.submissions[0].savePath)
	assert.Equal(t, "shows", h.client.submissions[0].category)

	assert.Equal(t, map[string]int64{
		title(1): h.now.Unix() - 20,
		title(2): h.now.Unix() - 10,
	}, h.persisted(t))
	assert.Equal(t, []string{title(1), title(2)}, h.notifier.queued)
	assert.Len(t, h.manager.History(), 2)
	assert.Equal(t, report, h.manager.LastRun())
}

func TestRunOnceKeepsJustAcquiredOldRelease(t *testing.T) {
	h := newHarness(t, "Show X")
	// Published long ago but first seen now: survives until the next prune.
	h.feed.entries = []feed.Entry{entry(title(1), h.now.Unix()-200*24*3600, "[1080p]")}

	report, err := h.manager.RunOnce(context.Background(), "test")
	require.NoError(t, err)
	assert.Equal(t, 0, report.Pruned)
	assert.Contains(t, h.persisted(t), title(1))

	report, err = h.manager.RunOnce(context.Background(), "test")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNothingToDo, report.Outcome)
	assert.Len(t, h.client.submissions, 1)
}

func TestRunOnceSecondPassDoesNotResubmit(t *testing.T) {
	h := newHarness(t, "Show X")
	h.feed.entries = []feed.Entry{entry(title(1), h.now.Unix(), "[1080p]")}

	_, err := h.manager.RunOnce(context.Background(), "test")
	require.NoError(t, err)
	report, err := h.manager.RunOnce(context.Background(), "test")
	require.NoError(t, err)

	assert.Equal(t, OutcomeNothingToDo, report.Outcome)
	assert.Len(t, h.client.submissions, 1)
}

func TestRunOnceFeedUnreachableIsNotAnError(t *testing.T) {
	h := newHarness(t, "Show X")
	h.feed.err = fmt.Errorf("%w: connection refused", feed.ErrUnreachable)

	report, err := h.manager.RunOnce(context.Background(), "test")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFeedUnreachable, report.Outcome)
	assert.Empty(t, h.fetcher.calls)
}

func TestRunOnceNothingSelectedSkipsFetch(t *testing.T) {
	h := newHarness(t, "Other Show")
	h.feed.entries = []feed.Entry{entry(title(1), h.now.Unix(), "[1080p]")}

	report, err := h.manager.RunOnce(context.Background(), "test")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNothingToDo, report.Outcome)
	assert.Empty(t, h.fetcher.calls)
	assert.Empty(t, h.client.submissions)
}

func TestRunOnceSubmissionFailureAborts(t *testing.T) {
	h := newHarness(t, "Show X")
	oldTS := h.now.Unix() - 100*24*3600
	require.NoError(t, history.NewFileBackend(h.path).Save(map[string]int64{"ancient release": oldTS}))

	h.feed.entries = []feed.Entry{
		entry(title(3), h.now.Unix()-1, "[1080p]"),
		entry(title(2), h.now.Unix()-2, "[1080p]"),
		entry(title(1), h.now.Unix()-3, "[1080p]"),
	}
	h.client.failOn["torrent:http://origin.test/"+title(2)] = true

	report, err := h.manager.RunOnce(context.Background(), "test")
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, report.Outcome)
	assert.Equal(t, 1, h.notifier.failed)

	persisted := h.persisted(t)
	assert.Contains(t, persisted, title(1))
	assert.NotContains(t, persisted, title(2))
	assert.NotContains(t, persisted, title(3))
	// Aborted runs do not prune.
	assert.Contains(t, persisted, "ancient release")
	assert.Len(t, h.fetcher.calls, 2)
}

func TestRunOnceFetchExhaustionAborts(t *testing.T) {
	h := newHarness(t, "Show X")
	h.feed.entries = []feed.Entry{
		entry(title(2), h.now.Unix()-1, "[1080p]"),
		entry(title(1), h.now.Unix()-2, "[1080p]"),
	}
	h.fetcher.failOn["http://origin.test/"+title(1)] = tracker.ErrPayloadNotReady

	_, err := h.manager.RunOnce(context.Background(), "test")
	require.Error(t, err)
	assert.ErrorIs(t, err, tracker.ErrPayloadNotReady)
	assert.Empty(t, h.client.submissions)
	assert.Empty(t, h.persisted(t))
}

func TestRequestRunCoalesces(t *testing.T) {
	h := newHarness(t, "Show X")
	assert.True(t, h.manager.RequestRun("a"))
	assert.False(t, h.manager.RequestRun("b"))
	assert.Equal(t, "a", <-h.manager.runRequests)
	assert.True(t, h.manager.RequestRun("c"))
}

func TestNewManagerWarnsAboutDuplicateRosterLines(t *testing.T) {
	cfg := &config.Config{}
	cfg.App.WorkDir = t.TempDir()
	cfg.Feed.Timeout = "30s"
	cfg.Fetch.RetryDelay = "10s"
	cfg.Fetch.MaxAttempts = 1
	cfg.TorrentClient.Type = "qbittorrent"
	require.NoError(t, os.WriteFile(cfg.RosterPath(), []byte("Show X/S01\nShow X/S02\n"), 0o644))

	var logs bytes.Buffer
	m, err := NewManager(cfg, newTestStore(t), utils.NewLogger(false, &logs))
	require.NoError(t, err)

	r, err := m.loadRoster()
	require.NoError(t, err)
	rule, ok := r.Lookup("Show X")
	require.True(t, ok)
	assert.Equal(t, [2]int{2, 2}, rule.Seasons)
	assert.Contains(t, logs.String(), "Duplicate roster entry")
	assert.Contains(t, logs.String(), "line 2 overrides line 1")
}
