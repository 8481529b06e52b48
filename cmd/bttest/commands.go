package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/bttest/internal/app"
	"github.com/muurk/bttest/internal/async"
	"github.com/muurk/bttest/internal/bleserver"
	"github.com/muurk/bttest/internal/bluetooth"
	"github.com/muurk/bttest/internal/classic"
	"github.com/muurk/bttest/internal/config"
	"github.com/muurk/bttest/internal/logging"
	"github.com/muurk/bttest/internal/monitor"
	"github.com/muurk/bttest/internal/tui"
	"github.com/muurk/bttest/internal/version"
	"github.com/muurk/bttest/internal/widget"
)

// How long teardown waits for in-flight adapter operations
const shutdownTimeout = 5 * time.Second

// Global flags
var (
	configPath  string
	logLevel    string
	logFile     string
	adapterFlag string
	startMode   string
)

// Command flags
var (
	headless       bool
	scanSeconds    int
	scanFilters    []string
	browseTimeout  int
	forceOverwrite bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: user config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Log file (the terminal UI defaults to bttest.log in the temp dir)")
	rootCmd.PersistentFlags().StringVar(&adapterFlag, "adapter", "", "Adapter driver (sim, hci)")
	rootCmd.PersistentFlags().StringVar(&startMode, "mode", "", "Initial mode ("+strings.Join(app.Modes(), ", ")+")")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(monitorsCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig reads the config file and applies the global flag overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyOverrides(cfg *config.Config) {
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}
	if adapterFlag != "" {
		cfg.Adapter = adapterFlag
	}
	if startMode != "" {
		cfg.StartMode = startMode
	}
}

// newRadio opens the adapter driver selected in cfg
func newRadio(cfg *config.Config) (bluetooth.Radio, error) {
	switch cfg.Adapter {
	case config.AdapterHCI:
		radio, err := bluetooth.NewHCIRadio(cfg.Sim.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to open HCI adapter: %w", err)
		}
		return radio, nil
	default:
		return bluetooth.NewSimRadio(cfg.SimRadio()), nil
	}
}

// classicFilters offers the configured scan filters next to the built-in ones
func classicFilters(cfg *config.Config) []classic.ServiceFilter {
	filters := append([]classic.ServiceFilter(nil), classic.DefaultFilters...)
	if len(cfg.Scan.Filters) > 0 {
		filters = append(filters, classic.ServiceFilter{
			Label:    "configured (" + strings.Join(cfg.Scan.Filters, ", ") + ")",
			Services: cfg.Scan.Filters,
		})
	}
	return filters
}

// harness wires one adapter to the three modes
type harness struct {
	cfg     *config.Config
	loop    *async.Loop
	hub     *bluetooth.Hub
	manager *bluetooth.Manager
	app     *app.App
	server  *bleserver.Server
	classic *classic.ManagerTab
	monitor *monitor.Server
}

func newHarness(cfg *config.Config, radio bluetooth.Radio) (*harness, error) {
	h := &harness{cfg: cfg, loop: async.NewLoop()}
	h.hub = bluetooth.NewHub(h.loop)
	h.manager = bluetooth.NewManager(radio, h.loop, bluetooth.Options{GattTimeout: cfg.GattTimeout()})
	if err := h.hub.Add(h.manager); err != nil {
		_ = h.manager.Close()
		return nil, fmt.Errorf("failed to initialize adapter: %w", err)
	}

	h.app = app.New()

	tabs := widget.NewTabsManager()
	h.classic = classic.NewManagerTab(tabs, h.hub, h.loop, classic.Options{
		ScanDuration: cfg.ScanDuration(),
		Filters:      classicFilters(cfg),
	})
	h.app.Panel(app.ModeClassic).Append(tabs.Node())

	h.server = bleserver.New(h.manager, bleserver.Options{Filters: cfg.Scan.Filters})
	h.app.Panel(app.ModeBleServer).Append(h.server.Panel())
	if err := h.server.Start(h.app); err != nil {
		h.Close()
		return nil, fmt.Errorf("failed to start BLE server: %w", err)
	}

	placeholder := widget.NewNode("p", "title-caption")
	placeholder.SetText("No BLE client operations are available.")
	h.app.Panel(app.ModeBleClient).Append(placeholder)

	if err := h.app.Start(cfg.StartMode); err != nil {
		h.Close()
		return nil, fmt.Errorf("failed to start in mode %s: %w", cfg.StartMode, err)
	}
	return h, nil
}

// startMonitor serves snapshots when the monitor is enabled
func (h *harness) startMonitor(ctx context.Context) error {
	if !h.cfg.Monitor.Enabled {
		return nil
	}
	h.monitor = monitor.New(monitor.Config{
		Listen:    h.cfg.Monitor.Listen,
		Advertise: h.cfg.Monitor.Advertise,
		Interval:  h.cfg.MonitorInterval(),
	})
	if err := h.monitor.Start(ctx); err != nil {
		h.monitor = nil
		return fmt.Errorf("failed to start monitor: %w", err)
	}
	logging.Info("Monitor listening", zap.String("addr", h.monitor.Addr()))
	return nil
}

// publish captures the widget tree. It must run on the loop owner.
func (h *harness) publish() {
	if h.monitor == nil {
		return
	}
	h.monitor.Publish(monitor.Capture(h.app.Mode(), h.app.Node(), h.hub.Adapters(), h.server.Devices()))
}

// Close tears the modes down and releases the adapter
func (h *harness) Close() {
	if h.monitor != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := h.monitor.Shutdown(ctx); err != nil {
			logging.Warn("Monitor shutdown failed", zap.Error(err))
		}
		cancel()
	}
	h.server.Stop()
	h.classic.Destroy()
	if !h.loop.Settle(shutdownTimeout) {
		logging.Warn("Adapter operations still pending at shutdown", zap.Int("in_flight", h.loop.InFlight()))
	}
	if err := h.hub.Close(); err != nil {
		logging.Warn("Adapter close failed", zap.Error(err))
	}
}

func setupLogging(cfg *config.Config) error {
	if err := logging.InitializeWithOutput(cfg.LogLevel, cfg.LogFile); err != nil {
		return err
	}
	logging.Info("Starting bttest", version.Fields()...)
	return nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// runCmd launches the harness
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Launch the harness terminal UI",
	Long: `Launch the harness in the terminal.

Use tab and shift+tab to move between controls, enter to press buttons or
edit fields, and 1/2/3 to switch between the classic, BLE server and BLE
client modes.

With --headless no UI is drawn; the harness runs until interrupted and is
observed through the monitor, which is then always enabled.`,
	Example: `  # Launch with the simulated adapter (default)
  bttest

  # Drive the local HCI controller, starting in BLE server mode
  bttest run --adapter hci --mode ble-server-api

  # Run without a terminal and watch the state over the monitor
  bttest run --headless
  curl http://127.0.0.1:7468/snapshot`,
	RunE: runHarness,
}

func init() {
	runCmd.Flags().BoolVar(&headless, "headless", false, "Run without the terminal UI (enables the monitor)")
}

func runHarness(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if headless {
		cfg.Monitor.Enabled = true
	} else if cfg.LogFile == "" {
		// The terminal UI owns stdout
		cfg.LogFile = filepath.Join(os.TempDir(), "bttest.log")
	}
	if err := setupLogging(cfg); err != nil {
		return err
	}
	defer logging.Sync()

	radio, err := newRadio(cfg)
	if err != nil {
		return err
	}
	h, err := newHarness(cfg, radio)
	if err != nil {
		return err
	}
	defer h.Close()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	if err := h.startMonitor(ctx); err != nil {
		return err
	}

	if headless {
		return runHeadless(ctx, h)
	}

	err = tui.Run(ctx, h.loop, h.app, tui.Options{OnRefresh: h.publish})
	if errors.Is(err, tui.ErrNotTerminal) {
		return fmt.Errorf("%w (use --headless to run without one)", err)
	}
	return err
}

// runHeadless runs the loop on this goroutine and publishes snapshots until
// ctx is done
func runHeadless(ctx context.Context, h *harness) error {
	fmt.Printf("bttest running headless, monitor at http://%s/snapshot\n", h.monitor.Addr())

	interval := h.cfg.MonitorInterval()
	if interval <= 0 {
		interval = monitor.DefaultInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.loop.Post(h.publish)
			}
		}
	}()

	h.publish()
	err := h.loop.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// scanCmd runs a single LE scan without the UI
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for nearby BLE devices",
	Long: `Run one LE scan on the configured adapter and list each device once,
in the order it was first seen.

The adapter is enabled first when needed. A duration of 0 scans until
interrupted.`,
	Example: `  # Scan for the configured duration
  bttest scan

  # Scan the HCI controller for 30 seconds for heart rate monitors
  bttest scan --adapter hci --duration 30 --filter 180D`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVar(&scanSeconds, "duration", -1, "Scan duration in seconds (default: from config)")
	scanCmd.Flags().StringSliceVar(&scanFilters, "filter", nil, "Service UUID to filter on (repeatable)")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := setupLogging(cfg); err != nil {
		return err
	}
	defer logging.Sync()

	duration := cfg.ScanDuration()
	if scanSeconds >= 0 {
		duration = time.Duration(scanSeconds) * time.Second
	}
	filters := cfg.Scan.Filters
	if len(scanFilters) > 0 {
		filters = scanFilters
	}

	radio, err := newRadio(cfg)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	devices, err := scan(ctx, cmd.OutOrStdout(), radio, cfg, duration, filters)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(devices) == 0 {
		fmt.Fprintln(out, "No devices found.")
		fmt.Fprintln(out, "\nTroubleshooting:")
		fmt.Fprintln(out, "  - Ensure the devices are advertising")
		fmt.Fprintln(out, "  - Remove --filter to match every device")
		fmt.Fprintln(out, "  - Try increasing --duration")
		return nil
	}
	fmt.Fprintf(out, "\nFound %d device(s).\n", len(devices))
	return nil
}

// scan drives one LE scan on its own loop and prints each new device to out
func scan(ctx context.Context, out io.Writer, radio bluetooth.Radio, cfg *config.Config, duration time.Duration, filters []string) ([]bluetooth.Device, error) {
	loop := async.NewLoop()
	m := bluetooth.NewManager(radio, loop, bluetooth.Options{GattTimeout: cfg.GattTimeout()})
	defer func() { _ = m.Close() }()
	if err := m.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize adapter: %w", err)
	}

	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
		fmt.Fprintf(out, "Scanning on %s (timeout: %s)...\n\n", m.Address(), duration)
	} else {
		fmt.Fprintf(out, "Scanning on %s until interrupted...\n\n", m.Address())
	}
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	registry := bluetooth.NewRegistry()
	m.On(bluetooth.EventDeviceFound, func(p any) {
		d, ok := p.(bluetooth.Device)
		if !ok || !registry.Add(d) {
			return
		}
		fmt.Fprintf(out, "%d. %s\n", registry.Len(), d)
		if len(d.Services) > 0 {
			fmt.Fprintf(out, "   Services: %s\n", strings.Join(d.Services, ", "))
		}
	})

	var scanErr error
	m.SafelyStartLeScan(filters).Then(func(err error) {
		if err != nil {
			logging.LogHardwareRejection("start-le-scan", "", err)
			scanErr = err
			stop()
		}
	})
	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}

	m.SafelyStopLeScan().Then(func(err error) {
		if err != nil {
			logging.LogHardwareRejection("stop-le-scan", "", err)
		}
	})
	loop.Settle(shutdownTimeout)

	if scanErr != nil {
		return nil, fmt.Errorf("scan failed: %w", scanErr)
	}
	return registry.List(), nil
}

// monitorsCmd lists harness monitors advertised on the local network
var monitorsCmd = &cobra.Command{
	Use:   "monitors",
	Short: "Find harness monitors on the network",
	Long: `Browse mDNS for other harnesses whose monitor is advertised, and print
the WebSocket URL of each.`,
	Example: `  # Browse for 3 seconds (default)
  bttest monitors

  # Longer browse for slow networks
  bttest monitors --timeout 10`,
	RunE: runMonitors,
}

func init() {
	monitorsCmd.Flags().IntVar(&browseTimeout, "timeout", int(monitor.DefaultBrowseTimeout/time.Second), "Browse timeout in seconds")
}

func runMonitors(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Browsing for harness monitors (timeout: %ds)...\n\n", browseTimeout)

	b := monitor.NewBrowser()
	b.Timeout = time.Duration(browseTimeout) * time.Second
	peers, err := b.Browse(cmd.Context())
	if err != nil {
		return fmt.Errorf("browse failed: %w", err)
	}

	if len(peers) == 0 {
		fmt.Fprintln(out, "No monitors found.")
		fmt.Fprintln(out, "\nStart one with 'bttest run --headless', or enable monitor.advertise in the config.")
		return nil
	}

	fmt.Fprintf(out, "Found %d monitor(s):\n\n", len(peers))
	for i, p := range peers {
		fmt.Fprintf(out, "%d. %s\n", i+1, p.Instance)
		fmt.Fprintf(out, "   Host:    %s\n", p.Hostname)
		fmt.Fprintf(out, "   URL:     %s\n", p.URL())
		if v := p.Metadata["version"]; v != "" {
			fmt.Fprintf(out, "   Version: %s\n", v)
		}
		fmt.Fprintln(out)
	}
	return nil
}

// configCmd groups the config file commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write the default configuration, including the simulated devices, to
the config path. An existing file is kept unless --force is given.`,
	Example: `  # Write to the user config dir
  bttest config init

  # Overwrite a custom location
  bttest config init --config ./bttest.yaml --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.CreateDefaultConfig(configPath, forceOverwrite)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&forceOverwrite, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
}
