package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitializeDisabledIsNoOp(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Initialize(dir, false, nil, "info", false))

	_, err := os.Stat(filepath.Join(dir, "logs"))
	require.True(t, os.IsNotExist(err))

	l := Get(CategoryAdmission)
	l.Info("should not panic or write")
}

func TestInitializeEnabledWritesLogFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Initialize(dir, true, nil, "debug", false))
	defer CloseAll()

	Get(CategoryStore).Info("hello %s", "world")

	entries, err := os.ReadDir(filepath.Join(dir, "logs"))
	require.NoError(t, err)
	require.NotEmpty(t, entries)
}

func TestCategoryDisabledByMap(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Initialize(dir, true, map[string]bool{"store": false}, "debug", false))
	defer CloseAll()

	require.False(t, IsCategoryEnabled(CategoryStore))
	require.True(t, IsCategoryEnabled(CategoryAdmission))
}

func TestTimerStop(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Initialize(dir, true, nil, "debug", false))
	defer CloseAll()

	timer := StartTimer(CategorySandbox, "example-op")
	d := timer.Stop()
	require.GreaterOrEqual(t, d.Nanoseconds(), int64(0))
}
