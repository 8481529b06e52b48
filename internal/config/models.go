package config

import (
	"time"

	"github.com/muurk/bttest/internal/bluetooth"
)

// Adapter drivers
const (
	AdapterSim = "sim"
	AdapterHCI = "hci"
)

// Config is the harness configuration file
type Config struct {
	Version   int           `yaml:"version"`
	LogLevel  string        `yaml:"log_level,omitempty"` // debug, info, warn, error; empty is silent
	LogFile   string        `yaml:"log_file,omitempty"`  // Log destination while the TUI owns the terminal
	StartMode string        `yaml:"start_mode"`          // Mode selected at startup
	Adapter   string        `yaml:"adapter"`             // "sim" or "hci"
	Scan      ScanConfig    `yaml:"scan"`
	GATT      GATTConfig    `yaml:"gatt"`
	Monitor   MonitorConfig `yaml:"monitor"`
	Sim       SimConfig     `yaml:"sim"`
}

// ScanConfig controls LE scans
type ScanConfig struct {
	Filters         []string `yaml:"filters,omitempty"` // Service UUIDs; empty matches every device
	DurationSeconds int      `yaml:"duration_seconds"`  // Headless scan and discovery block duration
}

// GATTConfig controls GATT connections
type GATTConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// MonitorConfig controls the snapshot monitor
type MonitorConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Listen     string `yaml:"listen"`
	Advertise  bool   `yaml:"advertise"`   // Register over mDNS
	IntervalMs int    `yaml:"interval_ms"` // Minimum spacing between broadcasts
}

// SimConfig describes the simulated radio
type SimConfig struct {
	Address    string      `yaml:"address"`
	Name       string      `yaml:"name"`
	Powered    bool        `yaml:"powered"`
	IntervalMs int         `yaml:"interval_ms"` // Re-announcement period while scanning
	LatencyMs  int         `yaml:"latency_ms"`  // Delay added to every radio operation
	Devices    []SimDevice `yaml:"devices,omitempty"`
}

// SimDevice is one simulated remote device
type SimDevice struct {
	Address  string   `yaml:"address"`
	Name     string   `yaml:"name,omitempty"`
	Type     string   `yaml:"type,omitempty"` // le, classic, dual
	RSSI     int      `yaml:"rssi,omitempty"`
	Services []string `yaml:"services,omitempty"`
}

// Default returns the configuration used when no file exists
func Default() *Config {
	return &Config{
		Version:   1,
		StartMode: "classic-api",
		Adapter:   AdapterSim,
		Scan: ScanConfig{
			DurationSeconds: 10,
		},
		GATT: GATTConfig{
			TimeoutSeconds: 10,
		},
		Monitor: MonitorConfig{
			Listen:     "127.0.0.1:7468",
			IntervalMs: 200,
		},
		Sim: SimConfig{
			Address:    "00:1A:7D:DA:71:13",
			Name:       "bttest-sim",
			IntervalMs: 2000,
			LatencyMs:  150,
			Devices: []SimDevice{
				{Address: "AA:BB:CC:DD:EE:FF", Name: "Heart Rate Strap", Type: "le", RSSI: -58, Services: []string{"180D", "180F"}},
				{Address: "11:22:33:44:55:66", Name: "Keyboard", Type: "dual", RSSI: -71, Services: []string{"1812"}},
				{Address: "C0:FF:EE:00:00:01", Name: "Thermometer", Type: "le", RSSI: -80, Services: []string{"1809"}},
			},
		},
	}
}

// ScanDuration returns the scan duration
func (c *Config) ScanDuration() time.Duration {
	return time.Duration(c.Scan.DurationSeconds) * time.Second
}

// GattTimeout returns the GATT connect timeout
func (c *Config) GattTimeout() time.Duration {
	return time.Duration(c.GATT.TimeoutSeconds) * time.Second
}

// MonitorInterval returns the monitor broadcast interval
func (c *Config) MonitorInterval() time.Duration {
	return time.Duration(c.Monitor.IntervalMs) * time.Millisecond
}

// SimRadio converts the sim section to a bluetooth.SimConfig
func (c *Config) SimRadio() bluetooth.SimConfig {
	devices := make([]bluetooth.Device, 0, len(c.Sim.Devices))
	for _, d := range c.Sim.Devices {
		devices = append(devices, bluetooth.Device{
			Address:  d.Address,
			Name:     d.Name,
			Type:     bluetooth.ParseDeviceType(d.Type),
			RSSI:     d.RSSI,
			Services: append([]string(nil), d.Services...),
		})
	}
	return bluetooth.SimConfig{
		Address:  c.Sim.Address,
		Name:     c.Sim.Name,
		Powered:  c.Sim.Powered,
		Devices:  devices,
		Interval: time.Duration(c.Sim.IntervalMs) * time.Millisecond,
		Latency:  time.Duration(c.Sim.LatencyMs) * time.Millisecond,
	}
}
