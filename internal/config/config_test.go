package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigMatchesSpecDefaults(t *testing.T) {
	cfg := DefaultConfig()

	require.Equal(t, 0.6, cfg.AdmissionThreshold)
	require.Equal(t, 0.5, cfg.MinCoherencyQuery)
	require.Equal(t, 0.7, cfg.MinCoherencyShare)
	require.Equal(t, 0.85, cfg.HealTarget)
	require.Equal(t, 0.9, cfg.PromoteThreshold)
	require.Equal(t, 20, cfg.MaxHealsPerRun)
	require.Equal(t, 3, cfg.MaxHealLoopsPull)
	require.Equal(t, 5, cfg.MaxHealLoopsEvolve)
	require.Equal(t, 10000, cfg.SandboxTimeoutMs)
	require.Equal(t, 5000, cfg.FederationTimeoutMs)
}

func TestMaxHealLoopsByDecision(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, 3, cfg.MaxHealLoops(false))
	require.Equal(t, 5, cfg.MaxHealLoops(true))
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultConfig().AdmissionThreshold, cfg.AdmissionThreshold)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := DefaultConfig()
	cfg.AdmissionThreshold = 0.7
	cfg.StoreName = "test-store"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 0.7, loaded.AdmissionThreshold)
	require.Equal(t, "test-store", loaded.StoreName)
}

func TestStorePath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseDir = "/tmp/base"
	cfg.StoreName = "local"
	require.Equal(t, filepath.Join("/tmp/base", "local"), cfg.StorePath())
}
