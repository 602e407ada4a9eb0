package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrTemplateCreated is returned when a config or roster file was missing and
// a template has been written in its place for the operator to fill in.
var ErrTemplateCreated = errors.New("configuration template created")

type Config struct {
	App struct {
		WorkDir string `yaml:"work_dir"`
		Debug   bool   `yaml:"debug"`
		LogFile string `yaml:"log_file"`
	} `yaml:"app"`

	Feed struct {
		Source  string `yaml:"source"`
		Quality string `yaml:"quality"`
		UID     string `yaml:"uid"`
		USess   string `yaml:"usess"`
		// AnnounceKey enables the private tracker announce rewrite when set.
		AnnounceKey string `yaml:"announce_key"`
		Timeout     string `yaml:"timeout"`
	} `yaml:"feed"`

	TorrentClient struct {
		Type     string `yaml:"type"` // 'qbittorrent' or 'transmission'
		Host     string `yaml:"host"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		Category string `yaml:"category"`
		SavePath string `yaml:"savepath"`
	} `yaml:"torrent_client"`

	State struct {
		Backend string `yaml:"backend"` // 'json' or 'sqlite'
	} `yaml:"state"`

	Fetch struct {
		MaxAttempts int    `yaml:"max_attempts"`
		RetryDelay  string `yaml:"retry_delay"`
	} `yaml:"fetch"`

	Automation struct {
		Schedule    string  `yaml:"schedule"`
		WatchRoster bool    `yaml:"watch_roster"`
		MinFreeGB   float64 `yaml:"min_free_gb"`
	} `yaml:"automation"`

	API struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"api"`

	Notifications struct {
		Pushbullet struct {
			APIKey string `yaml:"api_key"`
		} `yaml:"pushbullet"`
	} `yaml:"notifications"`
}

// Load reads the YAML config at path on top of the defaults. A missing file is
// not an error here; EnsureFiles handles the first-run case.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	setDefaults(cfg)

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	loadFromEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultWorkDir is ~/.config/reelfeed.
func DefaultWorkDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "reelfeed")
	}
	return filepath.Join(".", "reelfeed")
}

// DefaultConfigPath is the settings file inside the default work dir.
func DefaultConfigPath() string {
	return filepath.Join(DefaultWorkDir(), "settings.yml")
}

func (c *Config) RosterPath() string {
	return filepath.Join(c.App.WorkDir, "download.list")
}

func (c *Config) StatePath() string {
	if c.State.Backend == "sqlite" {
		return filepath.Join(c.App.WorkDir, "entries.sqlite")
	}
	return filepath.Join(c.App.WorkDir, "entries.db")
}

func (c *Config) LockPath() string {
	return filepath.Join(c.App.WorkDir, "reelfeed.lock")
}

// QualityTag is the configured quality in the bracketed form the feed uses.
func (c *Config) QualityTag() string {
	q := strings.TrimSpace(c.Feed.Quality)
	if strings.HasPrefix(q, "[") {
		return q
	}
	return "[" + q + "]"
}

// Cookie is the session cookie header sent with torrent downloads.
func (c *Config) Cookie() string {
	return fmt.Sprintf("uid=%s; usess=%s", c.Feed.UID, c.Feed.USess)
}

func (c *Config) Validate() error {
	switch c.TorrentClient.Type {
	case "qbittorrent", "transmission":
	default:
		return fmt.Errorf("unsupported torrent client type: %q", c.TorrentClient.Type)
	}
	switch c.State.Backend {
	case "json", "sqlite":
	default:
		return fmt.Errorf("unsupported state backend: %q", c.State.Backend)
	}
	if c.Fetch.MaxAttempts < 1 {
		return fmt.Errorf("fetch.max_attempts must be at least 1, got %d", c.Fetch.MaxAttempts)
	}
	if strings.TrimSpace(c.Feed.Quality) == "" {
		return errors.New("feed.quality must not be empty")
	}
	return nil
}

func setDefaults(cfg *Config) {
	cfg.App.WorkDir = DefaultWorkDir()
	cfg.App.Debug = false

	cfg.Feed.Source = "http://retre.org/rssdd.xml"
	cfg.Feed.Quality = "1080p"
	cfg.Feed.Timeout = "30s"

	cfg.TorrentClient.Type = "qbittorrent"
	cfg.TorrentClient.Host = "http://localhost:8080"
	cfg.TorrentClient.Category = "shows"
	cfg.TorrentClient.SavePath = "/downloads"

	cfg.State.Backend = "json"

	cfg.Fetch.MaxAttempts = 30
	cfg.Fetch.RetryDelay = "10s"

	cfg.Automation.Schedule = "@every 30m"
	cfg.Automation.WatchRoster = true

	cfg.API.Enabled = false
	cfg.API.Port = 8091
}

// loadFromEnv lets containers override secrets without editing the file.
func loadFromEnv(cfg *Config) {
	overrides := map[string]*string{
		"REELFEED_WORK_DIR":      &cfg.App.WorkDir,
		"REELFEED_FEED_SOURCE":   &cfg.Feed.Source,
		"REELFEED_QUALITY":       &cfg.Feed.Quality,
		"REELFEED_UID":           &cfg.Feed.UID,
		"REELFEED_USESS":         &cfg.Feed.USess,
		"REELFEED_ANNOUNCE_KEY":  &cfg.Feed.AnnounceKey,
		"REELFEED_CLIENT_HOST":   &cfg.TorrentClient.Host,
		"REELFEED_CLIENT_USER":   &cfg.TorrentClient.Username,
		"REELFEED_CLIENT_PASS":   &cfg.TorrentClient.Password,
		"REELFEED_CATEGORY":      &cfg.TorrentClient.Category,
		"REELFEED_SAVEPATH":      &cfg.TorrentClient.SavePath,
		"REELFEED_PUSHBULLET":    &cfg.Notifications.Pushbullet.APIKey,
		"REELFEED_STATE_BACKEND": &cfg.State.Backend,
	}
	for key, dst := range overrides {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	if v, ok := os.LookupEnv("REELFEED_DEBUG"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.App.Debug = b
		}
	}
}
