package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/muurk/bttest/internal/app"
	"github.com/muurk/bttest/internal/logging"
)

const (
	appName    = "bttest"
	configFile = "config.yaml"
)

// Mutex for thread-safe file operations
var fileMutex sync.Mutex

// GetConfigDir returns the OS-appropriate configuration directory for the application.
// This follows platform conventions:
//   - Linux: $XDG_CONFIG_HOME/bttest or $HOME/.config/bttest
//   - macOS: $HOME/.config/bttest (following XDG convention on macOS)
//   - Windows: %LOCALAPPDATA%\bttest
func GetConfigDir() (string, error) {
	var baseDir string

	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			userProfile := os.Getenv("USERPROFILE")
			if userProfile == "" {
				return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
			}
			baseDir = filepath.Join(userProfile, "AppData", "Local", appName)
		} else {
			baseDir = filepath.Join(localAppData, appName)
		}

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		baseDir = filepath.Join(homeDir, ".config", appName)

	default:
		// Linux and other Unix-like systems: Use XDG_CONFIG_HOME or $HOME/.config
		xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfigHome != "" {
			baseDir = filepath.Join(xdgConfigHome, appName)
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("cannot determine home directory: %w", err)
			}
			baseDir = filepath.Join(homeDir, ".config", appName)
		}
	}

	return baseDir, nil
}

// GetConfigPath returns the full path to the configuration file.
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, configFile), nil
}

// Load reads the configuration at path. An empty path means GetConfigPath.
// A missing file yields Default. Zero fields take their default values.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logging.Debug("No config file, using defaults")
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.StartMode == "" {
		c.StartMode = def.StartMode
	}
	if c.Adapter == "" {
		c.Adapter = def.Adapter
	}
	if c.Scan.DurationSeconds == 0 {
		c.Scan.DurationSeconds = def.Scan.DurationSeconds
	}
	if c.GATT.TimeoutSeconds == 0 {
		c.GATT.TimeoutSeconds = def.GATT.TimeoutSeconds
	}
	if c.Monitor.Listen == "" {
		c.Monitor.Listen = def.Monitor.Listen
	}
	if c.Monitor.IntervalMs == 0 {
		c.Monitor.IntervalMs = def.Monitor.IntervalMs
	}
	if c.Sim.Address == "" {
		c.Sim.Address = def.Sim.Address
	}
	if c.Sim.Name == "" {
		c.Sim.Name = def.Sim.Name
	}
	if c.Sim.IntervalMs == 0 {
		c.Sim.IntervalMs = def.Sim.IntervalMs
	}
}

// Validate checks the configuration for values the harness cannot use
func (c *Config) Validate() error {
	if c.Version != 1 {
		return fmt.Errorf("unsupported config version: %d (expected 1)", c.Version)
	}
	if !slices.Contains(app.Modes(), c.StartMode) {
		return fmt.Errorf("unknown start_mode %q", c.StartMode)
	}
	if c.Adapter != AdapterSim && c.Adapter != AdapterHCI {
		return fmt.Errorf("unknown adapter %q (expected %s or %s)", c.Adapter, AdapterSim, AdapterHCI)
	}
	if c.Scan.DurationSeconds < 0 || c.GATT.TimeoutSeconds < 0 {
		return errors.New("durations must not be negative")
	}
	for i, d := range c.Sim.Devices {
		if d.Address == "" {
			return fmt.Errorf("sim.devices[%d]: address is required", i)
		}
	}
	return nil
}

// Save writes the configuration to path, or GetConfigPath when path is
// empty. Performs an atomic write to prevent corruption on crash.
func (c *Config) Save(path string) error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Bluetooth test harness configuration
#
# adapter: "sim" runs against the simulated radio below, "hci" opens the
# first HCI controller (Linux only, needs CAP_NET_ADMIN).
#
# Location: ` + path + `

`)
	data = append(header, data...)

	// Write to temporary file first (atomic write)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to save config file: %w", err)
	}

	return nil
}

// CreateDefaultConfig writes Default to path unless a file already exists
// there and force is false.
func CreateDefaultConfig(path string, force bool) (string, error) {
	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return "", fmt.Errorf("failed to get config path: %w", err)
		}
		path = p
	}
	if _, err := os.Stat(path); err == nil && !force {
		return path, fmt.Errorf("config file already exists: %s", path)
	}
	return path, Default().Save(path)
}
