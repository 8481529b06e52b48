package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/muurk/bttest/internal/bluetooth"
)

func TestGetConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")

	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if !strings.Contains(configDir, "bttest") {
		t.Errorf("GetConfigDir() = %v, should contain 'bttest'", configDir)
	}
}

func TestGetConfigPath(t *testing.T) {
	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	if filepath.Base(configPath) != "config.yaml" {
		t.Errorf("GetConfigPath() should end with 'config.yaml', got: %v", configPath)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Version != 1 || cfg.Adapter != AdapterSim || cfg.StartMode != "classic-api" {
		t.Errorf("Load() = %+v, want defaults", cfg)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `version: 1
start_mode: ble-server-api
scan:
  filters: ["180D"]
sim:
  devices:
    - address: "aa:bb:cc:dd:ee:ff"
      name: strap
      type: le
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.StartMode != "ble-server-api" {
		t.Errorf("StartMode = %q, want ble-server-api", cfg.StartMode)
	}
	if cfg.ScanDuration() != 10*time.Second {
		t.Errorf("ScanDuration() = %v, want default 10s", cfg.ScanDuration())
	}
	if cfg.GattTimeout() != 10*time.Second {
		t.Errorf("GattTimeout() = %v, want default 10s", cfg.GattTimeout())
	}
	if cfg.Monitor.Listen != "127.0.0.1:7468" {
		t.Errorf("Monitor.Listen = %q, want default", cfg.Monitor.Listen)
	}
	if len(cfg.Scan.Filters) != 1 || cfg.Scan.Filters[0] != "180D" {
		t.Errorf("Scan.Filters = %v, want [180D]", cfg.Scan.Filters)
	}

	sim := cfg.SimRadio()
	if len(sim.Devices) != 1 || sim.Devices[0].Type != bluetooth.DeviceTypeLE {
		t.Errorf("SimRadio().Devices = %+v, want one LE device", sim.Devices)
	}
	if sim.Interval != 2*time.Second {
		t.Errorf("SimRadio().Interval = %v, want 2s", sim.Interval)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"bad yaml", "version: [", "parse"},
		{"wrong version", "version: 2", "unsupported config version"},
		{"unknown mode", "version: 1\nstart_mode: nope", "start_mode"},
		{"unknown adapter", "version: 1\nadapter: usb", "adapter"},
		{"negative duration", "version: 1\nscan:\n  duration_seconds: -1", "negative"},
		{"device without address", "version: 1\nsim:\n  devices:\n    - name: x", "address is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.data), 0600); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil {
				t.Fatal("Load() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Adapter = AdapterHCI
	cfg.Monitor.Enabled = true

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file should be renamed away")
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Adapter != AdapterHCI || !got.Monitor.Enabled {
		t.Errorf("Load() = %+v, want saved values", got)
	}
	if len(got.Sim.Devices) != len(cfg.Sim.Devices) {
		t.Errorf("sim devices = %d, want %d", len(got.Sim.Devices), len(cfg.Sim.Devices))
	}
}

func TestCreateDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	if _, err := CreateDefaultConfig(path, false); err != nil {
		t.Fatalf("CreateDefaultConfig() error = %v", err)
	}
	if _, err := CreateDefaultConfig(path, false); err == nil {
		t.Error("second CreateDefaultConfig() should refuse to overwrite")
	}
	if _, err := CreateDefaultConfig(path, true); err != nil {
		t.Errorf("forced CreateDefaultConfig() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# Bluetooth test harness configuration") {
		t.Error("saved file should start with the header comment")
	}
}
