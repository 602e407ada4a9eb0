package core

import (
	"path/filepath"
	"strings"

	"reelfeed/internal/clients/feed"
	"reelfeed/internal/history"
	"reelfeed/internal/roster"
	"reelfeed/internal/utils"
)

// Release is a feed entry selected for acquisition.
type Release struct {
	Name            string `json:"name"`
	Timestamp       int64  `json:"timestamp"`
	Link            string `json:"link"`
	DestinationPath string `json:"destination_path"`
}

// Reconciler matches feed entries against the roster and the history.
type Reconciler struct {
	roster   roster.Roster
	store    *history.Store
	quality  string
	savePath string
	category string
	logger   *utils.Logger
}

func NewReconciler(r roster.Roster, store *history.Store, quality, savePath, category string, logger *utils.Logger) *Reconciler {
	return &Reconciler{
		roster:   r,
		store:    store,
		quality:  quality,
		savePath: savePath,
		category: category,
		logger:   logger,
	}
}

// Reconcile returns the releases to acquire, oldest first. Entries arrive
// newest first, as the feed publishes them.
func (rc *Reconciler) Reconcile(entries []feed.Entry) []Release {
	var selected []Release
	for _, entry := range entries {
		if release, ok := rc.match(entry); ok {
			selected = append(selected, release)
		}
	}

	// Acquire chronologically so an interrupted run leaves a contiguous
	// prefix of history behind.
	for i, j := 0, len(selected)-1; i < j; i, j = i+1, j-1 {
		selected[i], selected[j] = selected[j], selected[i]
	}
	return selected
}

func (rc *Reconciler) match(entry feed.Entry) (Release, bool) {
	parsed, ok := ParseReleaseTitle(entry.Title)
	if !ok {
		rc.logger.Debug("Title does not fit any grammar:", entry.Title)
		return Release{}, false
	}

	rule, ok := rc.roster.Lookup(parsed.ShowName)
	if !ok {
		return Release{}, false
	}

	if !rule.Covers(parsed.Season) {
		rc.logger.Debug("Season", parsed.Season, "outside roster range for", rule.ShowName+":", entry.Title)
		return Release{}, false
	}

	quality := entry.PrimaryTag()
	if quality == "" {
		quality = parsed.Quality
	}
	if quality != rc.quality {
		rc.logger.Debug("Quality", quality, "is not", rc.quality+":", entry.Title)
		return Release{}, false
	}

	if rc.store.Contains(entry.Title) {
		rc.logger.Debug("Already processed:", entry.Title)
		return Release{}, false
	}

	if strings.Contains(entry.Title, placeholderMarker) {
		return Release{}, false
	}

	return Release{
		Name:            entry.Title,
		Timestamp:       entry.Published.Unix(),
		Link:            entry.Link,
		DestinationPath: filepath.Join(rc.savePath, rc.category, rule.DestinationDir),
	}, true
}
