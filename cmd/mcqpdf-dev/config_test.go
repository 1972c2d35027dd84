package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDevConfig_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := loadDevConfig("")
	require.NoError(t, err)
	assert.Equal(t, defaultAddr, cfg.Addr)
	assert.Equal(t, defaultUnlockDelay, cfg.UnlockDelay)

	sc, err := cfg.scenario()
	require.NoError(t, err)
	assert.Equal(t, 10, sc.TotalLinks)
	assert.Equal(t, time.Second, sc.StepInterval)
}

func TestLoadDevConfig_ScenarioKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("MCQPDF_DEV_TOTAL_LINKS", "4")

	path := filepath.Join(t.TempDir(), "dev.yml")
	require.NoError(t, os.WriteFile(path, []byte("step-interval: 100ms\nfail-topics: [qwerty]\n"), 0o644))

	cfg, err := loadDevConfig(path)
	require.NoError(t, err)
	sc, err := cfg.scenario()
	require.NoError(t, err)
	assert.Equal(t, 4, sc.TotalLinks)
	assert.Equal(t, 100*time.Millisecond, sc.StepInterval)
	assert.Equal(t, []string{"qwerty"}, sc.FailTopics)
}

func TestDevConfig_ScenarioFileWins(t *testing.T) {
	dir := t.TempDir()
	scPath := filepath.Join(dir, "scenario.yml")
	require.NoError(t, os.WriteFile(scPath, []byte("total-links: 2\n"), 0o644))

	cfg := devConfig{ScenarioFile: scPath, TotalLinks: 50}
	sc, err := cfg.scenario()
	require.NoError(t, err)
	assert.Equal(t, 2, sc.TotalLinks)
}

func TestDevConfig_InvalidScenario(t *testing.T) {
	cfg := devConfig{TotalLinks: 0, StepInterval: time.Second}
	_, err := cfg.scenario()
	assert.Error(t, err)
}

func TestLoadDevConfig_AutoSocket(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	t.Setenv("MCQPDF_DEV_BRIDGE_SOCKET", "auto")

	cfg, err := loadDevConfig("")
	require.NoError(t, err)
	assert.Equal(t, "/run/user/1000/mcqpdf/adhost.sock", cfg.BridgeSocket)
}
