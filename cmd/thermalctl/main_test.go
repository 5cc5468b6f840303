package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTree(t *testing.T) {
	root := rootCmd()

	for _, path := range [][]string{
		{"status"},
		{"fan", "profile"},
		{"fan", "percent"},
		{"fan", "boost"},
		{"fan", "bios"},
		{"mode", "set"},
		{"mode", "get"},
		{"tpl", "set"},
		{"tcc"},
		{"calibrate", "run"},
		{"calibrate", "show"},
		{"calibrate", "verify"},
		{"schedule", "add"},
		{"schedule", "list"},
		{"schedule", "remove"},
		{"schedule", "start"},
		{"history", "list"},
		{"history", "export"},
		{"daemon"},
		{"agent", "serve"},
		{"agent", "certs"},
		{"config", "show"},
		{"version"},
	} {
		cmd, rest, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Empty(t, rest, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestHistoryFilter(t *testing.T) {
	f := historyFlags{command: "verify", failed: true, since: time.Hour, limit: 5}
	filter, err := f.filter()
	require.NoError(t, err)
	assert.Equal(t, "verify", filter.Command)
	assert.Equal(t, 5, filter.Limit)
	require.NotNil(t, filter.Success)
	assert.False(t, *filter.Success)
	require.NotNil(t, filter.StartTime)
	assert.WithinDuration(t, time.Now().Add(-time.Hour), *filter.StartTime, time.Minute)

	_, err = (&historyFlags{success: true, failed: true}).filter()
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "fan-pro...", truncate("fan-profile silent", 10))
}

func TestWriteCommandsNeedPrivileges(t *testing.T) {
	saved := isPrivileged
	isPrivileged = func() bool { return false }
	t.Cleanup(func() {
		isPrivileged = saved
		globals = appState{}
	})

	for _, args := range [][]string{
		{"agent", "serve"},
		{"daemon"},
	} {
		t.Run(args[0], func(t *testing.T) {
			globals = appState{}
			dir := t.TempDir()
			dbPath := filepath.Join(dir, "thermalctl.db")

			root := rootCmd()
			root.SetOut(io.Discard)
			root.SetErr(io.Discard)
			root.SetArgs(append(args, "--config", filepath.Join(dir, "missing.yaml"), "--db", dbPath))

			err := root.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "elevated privileges")

			_, statErr := os.Stat(dbPath)
			assert.True(t, os.IsNotExist(statErr), "database opened before the privilege check")
		})
	}
}
