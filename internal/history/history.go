// Package history remembers which releases were already handed to the torrent
// client, so that a release is never acquired twice.
package history

import (
	"sort"
	"time"
)

// Retention is how long a processed release is remembered: three 31-day months.
const Retention = 3 * 2678400 * time.Second

// Backend persists the full name → epoch mapping.
type Backend interface {
	Load() (map[string]int64, error)
	Save(entries map[string]int64) error
}

// Entry is one processed release.
type Entry struct {
	Name      string `json:"name"`
	Timestamp int64  `json:"timestamp"`
}

// Store is the in-memory dedup set, loaded from and persisted to a Backend.
// It is not safe for concurrent use; runs are sequential.
type Store struct {
	backend Backend
	entries map[string]int64
}

func NewStore(backend Backend) *Store {
	return &Store{backend: backend, entries: make(map[string]int64)}
}

// Load replaces the in-memory set with the persisted one. Missing state is an
// empty set.
func (s *Store) Load() error {
	entries, err := s.backend.Load()
	if err != nil {
		return err
	}
	if entries == nil {
		entries = make(map[string]int64)
	}
	s.entries = entries
	return nil
}

// Persist writes the whole set to the backend.
func (s *Store) Persist() error {
	return s.backend.Save(s.entries)
}

func (s *Store) Contains(name string) bool {
	_, ok := s.entries[name]
	return ok
}

// Record marks name as processed. Recording the same name again overwrites
// its timestamp.
func (s *Store) Record(name string, timestamp int64) {
	s.entries[name] = timestamp
}

// PruneOlderThan drops entries whose timestamp is strictly below threshold and
// returns how many were dropped.
func (s *Store) PruneOlderThan(threshold int64) int {
	removed := 0
	for name, ts := range s.entries {
		if ts < threshold {
			delete(s.entries, name)
			removed++
		}
	}
	return removed
}

// Prune applies the retention window relative to now. Names in keep are
// spared, so a release acquired in the current run survives at least until
// the next run even when its stored timestamp is already past the window.
func (s *Store) Prune(now time.Time, keep ...string) int {
	if len(keep) == 0 {
		return s.PruneOlderThan(PruneThreshold(now))
	}
	spared := make(map[string]bool, len(keep))
	for _, name := range keep {
		spared[name] = true
	}
	threshold := PruneThreshold(now)
	removed := 0
	for name, ts := range s.entries {
		if ts < threshold && !spared[name] {
			delete(s.entries, name)
			removed++
		}
	}
	return removed
}

// PruneThreshold is the oldest timestamp that survives a prune at now.
func PruneThreshold(now time.Time) int64 {
	return now.Add(-Retention).Unix()
}

func (s *Store) Len() int {
	return len(s.entries)
}

// Entries returns a snapshot ordered newest first, then by name.
func (s *Store) Entries() []Entry {
	out := make([]Entry, 0, len(s.entries))
	for name, ts := range s.entries {
		out = append(out, Entry{Name: name, Timestamp: ts})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return out[i].Name < out[j].Name
	})
	return out
}
