package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"reelfeed/internal/config"
	"reelfeed/internal/database"
	"reelfeed/internal/history"
	"reelfeed/internal/utils"
)

type commandContext struct {
	configFlag *string
	debugFlag  *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, debugFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		debugFlag:  debugFlag,
	}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil || strings.TrimSpace(*c.configFlag) == "" {
		return config.DefaultConfigPath()
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		if c.debugFlag != nil && *c.debugFlag {
			cfg.App.Debug = true
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// newLogger logs to stderr and, when app.log_file is set, appends to that
// file as well. The returned func closes the file.
func (c *commandContext) newLogger(cfg *config.Config, stderr io.Writer) (*utils.Logger, func(), error) {
	if cfg.App.LogFile == "" {
		return utils.NewLogger(cfg.App.Debug, stderr), func() {}, nil
	}
	f, err := os.OpenFile(cfg.App.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return utils.NewLogger(cfg.App.Debug, io.MultiWriter(stderr, f)), func() { f.Close() }, nil
}

// lockWorkDir takes the per-work-dir process lock.
func lockWorkDir(cfg *config.Config) (*flock.Flock, error) {
	if err := os.MkdirAll(cfg.App.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, errors.New("another reelfeed instance is already using " + cfg.App.WorkDir)
	}
	return lock, nil
}

// openStore builds the history store on the configured backend. The returned
// func releases the backend.
func openStore(cfg *config.Config, logger *utils.Logger) (*history.Store, func(), error) {
	switch cfg.State.Backend {
	case "sqlite":
		repo, err := database.NewSQLite(cfg.StatePath(), logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open state database: %w", err)
		}
		return history.NewStore(repo), func() { repo.Close() }, nil
	default:
		return history.NewStore(history.NewFileBackend(cfg.StatePath())), func() {}, nil
	}
}
