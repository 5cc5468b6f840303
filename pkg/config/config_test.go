package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, BackendAuto, cfg.EC.Backend)
	assert.Equal(t, 5500, cfg.Fan.MaxRPM)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad backend", func(c *Config) { c.EC.Backend = "smbus" }},
		{"sysfs without path", func(c *Config) { c.EC.Backend = BackendSysfs; c.EC.SysfsPath = "" }},
		{"no generation", func(c *Config) { c.EC.Generation = "" }},
		{"zero max rpm", func(c *Config) { c.Fan.MaxRPM = 0 }},
		{"negative settle", func(c *Config) { c.Fan.SettleDelay = -time.Second }},
		{"zero poll", func(c *Config) { c.Daemon.PollInterval = 0 }},
		{"critical temp", func(c *Config) { c.Daemon.CriticalTemp = 200 }},
		{"safety action", func(c *Config) { c.Daemon.SafetyAction = "panic" }},
		{"agent port", func(c *Config) { c.Agent.Port = 70000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
ec:
  backend: sysfs
  sysfs_path: /tmp/ec-io
  generation: gen2
  serialize: true
fan:
  max_rpm: 6000
  settle_delay: 5s
daemon:
  poll_interval: 1s
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendSysfs, cfg.EC.Backend)
	assert.Equal(t, "/tmp/ec-io", cfg.EC.SysfsPath)
	assert.Equal(t, "gen2", cfg.EC.Generation)
	assert.True(t, cfg.EC.Serialize)
	assert.Equal(t, 6000, cfg.Fan.MaxRPM)
	assert.Equal(t, 5*time.Second, cfg.Fan.SettleDelay)
	assert.Equal(t, time.Second, cfg.Daemon.PollInterval)
	// untouched fields keep their defaults
	assert.Equal(t, 95, cfg.Daemon.CriticalTemp)
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
log_level = "debug"

[ec]
backend = "none"

[daemon]
critical_temp = 90
safety_action = "force_full_speed"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendNone, cfg.EC.Backend)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 90, cfg.Daemon.CriticalTemp)
	assert.Equal(t, SafetyFullSpeed, cfg.Daemon.SafetyAction)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().EC, cfg.EC)
}

func TestLoadUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.ini")
	require.NoError(t, os.WriteFile(path, []byte("x=1"), 0o600))
	_, err := Load(path)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("THERMALCTL_EC_BACKEND", "port")
	t.Setenv("THERMALCTL_DB_PATH", "/tmp/x.db")
	t.Setenv("THERMALCTL_AGENT_PORT", "9000")

	cfg := DefaultConfig()
	cfg.ApplyEnv()
	assert.Equal(t, BackendPort, cfg.EC.Backend)
	assert.Equal(t, "/tmp/x.db", cfg.DBPath)
	assert.Equal(t, 9000, cfg.Agent.Port)
}
