package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const settingsTemplate = `# reelfeed settings
app:
  work_dir: %q
  debug: false
  log_file: ""

feed:
  source: http://retre.org/rssdd.xml
  quality: 1080p
  uid: FeedUID
  usess: FeedUSESS
  # Personal tracker key; leave empty to keep announce URLs as served.
  announce_key: ""

torrent_client:
  type: qbittorrent
  host: http://qbt-host:8080
  username: qbtUsername
  password: qbtPassword
  category: shows
  savepath: /path/to/shows/dir/

state:
  backend: json

automation:
  schedule: "@every 30m"
  watch_roster: true
`

const rosterTemplate = `Best Show Name
Another Best Show Name/Y2022
Yet Another Best Show Name/S03-04
Also Best Show Name/S00-06/Y2022
`

// EnsureFiles writes template settings and roster files when they are absent.
// It returns ErrTemplateCreated, wrapped with operator instructions, if
// anything had to be created.
func EnsureFiles(configPath string, cfg *Config) error {
	var created []string

	if err := os.MkdirAll(cfg.App.WorkDir, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
		body := fmt.Sprintf(settingsTemplate, cfg.App.WorkDir)
		if err := os.WriteFile(configPath, []byte(body), 0o600); err != nil {
			return fmt.Errorf("write config template: %w", err)
		}
		created = append(created, fmt.Sprintf("fill in the settings in %s", configPath))
	}

	rosterPath := cfg.RosterPath()
	if _, err := os.Stat(rosterPath); os.IsNotExist(err) {
		if err := os.WriteFile(rosterPath, []byte(rosterTemplate), 0o644); err != nil {
			return fmt.Errorf("write roster template: %w", err)
		}
		created = append(created, fmt.Sprintf(
			"fill in the list of shows in %s: one line per show, "+
				`optionally ending with "/S__-__" or "/S__" (seasons to download) `+
				`and "/Y____" (year, used for the destination dir)`, rosterPath))
	}

	if len(created) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrTemplateCreated, strings.Join(created, "; "))
}
