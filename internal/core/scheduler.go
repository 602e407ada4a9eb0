package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"reelfeed/internal/clients/tracker"
)

// RequestRun queues a run. Requests arriving while one is already queued are
// folded into it; it reports whether a new request was queued.
func (m *Manager) RequestRun(trigger string) bool {
	select {
	case m.runRequests <- trigger:
		return true
	default:
		m.logger.Debug("Run already queued, ignoring trigger:", trigger)
		return false
	}
}

// StartScheduler starts the run worker, the cron schedule and, if enabled,
// the roster watcher, then queues an initial run.
func (m *Manager) StartScheduler(ctx context.Context) error {
	workerCtx, cancel := context.WithCancel(ctx)
	m.stopWorker = cancel
	m.workerDone = make(chan struct{})

	m.scheduler = cron.New()
	if _, err := m.scheduler.AddFunc(m.config.Automation.Schedule, func() { m.RequestRun("schedule") }); err != nil {
		cancel()
		return fmt.Errorf("invalid automation.schedule %q: %w", m.config.Automation.Schedule, err)
	}

	if m.config.Automation.WatchRoster {
		if err := m.watchRoster(workerCtx); err != nil {
			m.logger.Warn("Roster watcher disabled:", err)
		}
	}

	go m.runWorker(workerCtx)
	m.scheduler.Start()
	m.logger.Info("Scheduler started (", m.config.Automation.Schedule, "). Performing initial run.")
	m.RequestRun("startup")
	return nil
}

func (m *Manager) runWorker(ctx context.Context) {
	defer close(m.workerDone)
	for {
		select {
		case <-ctx.Done():
			return
		case trigger := <-m.runRequests:
			_, err := m.RunOnce(ctx, trigger)
			if errors.Is(err, tracker.ErrPayloadNotReady) {
				m.logger.Warn("Torrent never became ready; the release stays pending for the next run.")
			}
		}
	}
}

// watchRoster queues a run whenever the roster file is written or replaced.
// The directory is watched because editors often save via rename.
func (m *Manager) watchRoster(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	rosterPath := filepath.Clean(m.config.RosterPath())
	if err := watcher.Add(filepath.Dir(rosterPath)); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != rosterPath {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
					m.logger.Info("Roster changed, queueing a run.")
					m.RequestRun("roster")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				m.logger.Error("Roster watcher error:", err)
			}
		}
	}()
	return nil
}

// Stop halts the schedule, cancels an in-flight run and waits for the worker
// to exit.
func (m *Manager) Stop() {
	if m.scheduler != nil {
		<-m.scheduler.Stop().Done()
	}
	if m.stopWorker != nil {
		m.stopWorker()
		<-m.workerDone
	}
}
