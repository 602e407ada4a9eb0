package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelfeed/internal/clients/tracker"
	"reelfeed/internal/config"
	"reelfeed/internal/history"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out, _, err := executeCapture(t, args...)
	return out, err
}

func executeCapture(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

// writeSettings writes a minimal settings file rooted at a fresh work dir.
func writeSettings(t *testing.T, extra string) (configPath, workDir string) {
	t.Helper()
	workDir = t.TempDir()
	configPath = filepath.Join(workDir, "settings.yml")
	body := fmt.Sprintf("app:\n  work_dir: %q\n%s", workDir, extra)
	require.NoError(t, os.WriteFile(configPath, []byte(body), 0o600))
	return configPath, workDir
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"templates", fmt.Errorf("%w: fill in settings", config.ErrTemplateCreated), 2},
		{"not ready", fmt.Errorf("fetch %q: %w", "x", tracker.ErrPayloadNotReady), 0},
		{"other", errors.New("boom"), 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, exitCode(tc.err))
		})
	}
}

func TestRunCreatesTemplatesOnFirstStart(t *testing.T) {
	workDir := t.TempDir()
	t.Setenv("REELFEED_WORK_DIR", workDir)
	configPath := filepath.Join(workDir, "settings.yml")

	_, err := execute(t, "run", "--config", configPath)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrTemplateCreated)
	assert.Equal(t, exitTemplateCreated, exitCode(err))

	assert.FileExists(t, configPath)
	assert.FileExists(t, filepath.Join(workDir, "download.list"))
}

func TestRosterCheck(t *testing.T) {
	configPath, workDir := writeSettings(t, "")
	roster := "# watched\nShow X/S03-02/Y2021\nOther Show\n"
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "download.list"), []byte(roster), 0o644))

	out, err := execute(t, "roster", "check", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Show X (2021)")
	assert.Contains(t, out, "Other Show")
	assert.Contains(t, out, "2 shows in")
}

func TestRosterCheckWarnsAboutDuplicates(t *testing.T) {
	configPath, workDir := writeSettings(t, "")
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "download.list"), []byte("Show X/S01\nshow x/S02\n"), 0o644))

	out, stderr, err := executeCapture(t, "roster", "check", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "1 shows in")
	assert.Contains(t, stderr, `duplicate show "show x" on line 2 overrides line 1`)
}

func TestRosterCheckReportsBadLine(t *testing.T) {
	configPath, workDir := writeSettings(t, "")
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "download.list"), []byte("Good\n/S01\n"), 0o644))

	_, err := execute(t, "roster", "check", "--config", configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestHistoryPrune(t *testing.T) {
	configPath, workDir := writeSettings(t, "")
	now := time.Now().Unix()
	require.NoError(t, history.NewFileBackend(filepath.Join(workDir, "entries.db")).Save(map[string]int64{
		"stale release": now - 200*24*3600,
		"fresh release": now,
	}))

	out, err := execute(t, "history", "--prune", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Pruned 1 releases.")
	assert.Contains(t, out, "fresh release")
	assert.NotContains(t, out, "stale release")

	persisted, err := history.NewFileBackend(filepath.Join(workDir, "entries.db")).Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh release"}, keys(persisted))
}

func TestHistorySQLiteBackend(t *testing.T) {
	configPath, workDir := writeSettings(t, "state:\n  backend: sqlite\n")

	out, err := execute(t, "history", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No processed releases.")
	assert.FileExists(t, filepath.Join(workDir, "entries.sqlite"))
}

func TestLockWorkDirIsExclusive(t *testing.T) {
	cfg := &config.Config{}
	cfg.App.WorkDir = t.TempDir()

	first, err := lockWorkDir(cfg)
	require.NoError(t, err)

	_, err = lockWorkDir(cfg)
	assert.Error(t, err)

	require.NoError(t, first.Unlock())
	again, err := lockWorkDir(cfg)
	require.NoError(t, err)
	require.NoError(t, again.Unlock())
}

func keys(m map[string]int64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
