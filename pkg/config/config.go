// Package config holds the explicit configuration passed into every thermalctl component
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid configuration")

// EC backends
const (
	BackendAuto  = "auto"
	BackendSysfs = "sysfs"
	BackendPort  = "port"
	BackendNone  = "none"
)

// Safety actions taken by the daemon above the critical temperature
const (
	SafetyBiosControl = "bios_control"
	SafetyFullSpeed   = "force_full_speed"
	SafetyNone        = "none"
)

// Config is the root configuration
type Config struct {
	EC       EC     `yaml:"ec" toml:"ec" json:"ec"`
	Fan      Fan    `yaml:"fan" toml:"fan" json:"fan"`
	Daemon   Daemon `yaml:"daemon" toml:"daemon" json:"daemon"`
	Agent    Agent  `yaml:"agent" toml:"agent" json:"agent"`
	DBPath   string `yaml:"db_path" toml:"db_path" json:"db_path"`
	LogLevel string `yaml:"log_level" toml:"log_level" json:"log_level"`
}

// EC selects and parameterizes the embedded controller backend
type EC struct {
	Backend    string `yaml:"backend" toml:"backend" json:"backend"`
	SysfsPath  string `yaml:"sysfs_path" toml:"sysfs_path" json:"sysfs_path"`
	DriverDLL  string `yaml:"driver_dll" toml:"driver_dll" json:"driver_dll"`
	Generation string `yaml:"generation" toml:"generation" json:"generation"`
	// Serialize puts every EC transfer behind one lock so multi-register writes are atomic
	Serialize bool `yaml:"serialize" toml:"serialize" json:"serialize"`
}

// Fan holds fan control tuning
type Fan struct {
	MaxRPM      int           `yaml:"max_rpm" toml:"max_rpm" json:"max_rpm"`
	SettleDelay time.Duration `yaml:"settle_delay" toml:"settle_delay" json:"settle_delay"`
	ProductID   string        `yaml:"product_id" toml:"product_id" json:"product_id"`
}

// Daemon holds polling loop settings
type Daemon struct {
	PollInterval time.Duration `yaml:"poll_interval" toml:"poll_interval" json:"poll_interval"`
	CriticalTemp int           `yaml:"critical_temp" toml:"critical_temp" json:"critical_temp"`
	SafetyAction string        `yaml:"safety_action" toml:"safety_action" json:"safety_action"`
}

// Agent holds the control agent listener settings
type Agent struct {
	Port     int    `yaml:"port" toml:"port" json:"port"`
	CertFile string `yaml:"cert_file" toml:"cert_file" json:"cert_file"`
	KeyFile  string `yaml:"key_file" toml:"key_file" json:"key_file"`
	CAFile   string `yaml:"ca_file" toml:"ca_file" json:"ca_file"`
	LogFile  string `yaml:"log_file" toml:"log_file" json:"log_file"`
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() Config {
	return Config{
		EC: EC{
			Backend:    BackendAuto,
			SysfsPath:  "/sys/kernel/debug/ec/ec0/io",
			DriverDLL:  "inpoutx64.dll",
			Generation: "legacy",
		},
		Fan: Fan{
			MaxRPM:      5500,
			SettleDelay: 3 * time.Second,
		},
		Daemon: Daemon{
			PollInterval: 2 * time.Second,
			CriticalTemp: 95,
			SafetyAction: SafetyBiosControl,
		},
		Agent: Agent{
			Port: 2224,
		},
		DBPath:   DefaultDBPath(),
		LogLevel: "info",
	}
}

// Validate checks ranges and enumerations
func (c Config) Validate() error {
	switch c.EC.Backend {
	case BackendAuto, BackendSysfs, BackendPort, BackendNone:
	default:
		return fmt.Errorf("%w: unknown ec backend %q", ErrInvalid, c.EC.Backend)
	}
	if c.EC.Backend == BackendSysfs && c.EC.SysfsPath == "" {
		return fmt.Errorf("%w: sysfs backend requires sysfs_path", ErrInvalid)
	}
	if c.EC.Generation == "" {
		return fmt.Errorf("%w: register generation is required", ErrInvalid)
	}
	if c.Fan.MaxRPM <= 0 {
		return fmt.Errorf("%w: fan max_rpm must be positive, got %d", ErrInvalid, c.Fan.MaxRPM)
	}
	if c.Fan.SettleDelay < 0 {
		return fmt.Errorf("%w: negative settle_delay", ErrInvalid)
	}
	if c.Daemon.PollInterval <= 0 {
		return fmt.Errorf("%w: poll_interval must be positive", ErrInvalid)
	}
	if c.Daemon.CriticalTemp <= 0 || c.Daemon.CriticalTemp > 127 {
		return fmt.Errorf("%w: critical_temp out of range: %d", ErrInvalid, c.Daemon.CriticalTemp)
	}
	switch c.Daemon.SafetyAction {
	case SafetyBiosControl, SafetyFullSpeed, SafetyNone:
	default:
		return fmt.Errorf("%w: unknown safety_action %q", ErrInvalid, c.Daemon.SafetyAction)
	}
	if c.Agent.Port <= 0 || c.Agent.Port > 65535 {
		return fmt.Errorf("%w: invalid agent port: %d", ErrInvalid, c.Agent.Port)
	}
	return nil
}

// Load reads a YAML or TOML file over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse TOML config %s: %w", path, err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse YAML config %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("%w: unsupported config format %q", ErrInvalid, filepath.Ext(path))
	}

	return cfg, nil
}

// ApplyEnv overrides fields from THERMALCTL_* environment variables
func (c *Config) ApplyEnv() {
	if v := os.Getenv("THERMALCTL_EC_BACKEND"); v != "" {
		c.EC.Backend = v
	}
	if v := os.Getenv("THERMALCTL_EC_PATH"); v != "" {
		c.EC.SysfsPath = v
	}
	if v := os.Getenv("THERMALCTL_EC_GENERATION"); v != "" {
		c.EC.Generation = v
	}
	if v := os.Getenv("THERMALCTL_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("THERMALCTL_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("THERMALCTL_AGENT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Agent.Port = port
		}
	}
}

// Marshal renders the config as YAML
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// DefaultPath returns the default config file location
func DefaultPath() string {
	if p := os.Getenv("THERMALCTL_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(stateDir(), "config.yaml")
}

// DefaultDBPath returns the default sqlite database location
func DefaultDBPath() string {
	return filepath.Join(stateDir(), "thermalctl.db")
}

func stateDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(homeDir, ".thermalctl")
}
