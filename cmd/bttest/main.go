// Bttest is an interactive diagnostic harness for a platform's Bluetooth
// stack.
//
// It exercises one adapter through three mutually exclusive modes: classic
// adapter management, a BLE server that scans for and connects to nearby
// devices, and a BLE client placeholder. The adapter is either simulated or
// the local HCI controller. A read-only monitor can stream the harness state
// as JSON over a WebSocket and advertise itself over mDNS.
//
// Usage:
//
//	bttest [command] [flags]
//
// Running without arguments launches the terminal UI.
// See 'bttest --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/bttest/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bttest",
	Short: "Bluetooth Test Harness",
	Long: `An interactive harness for exercising a Bluetooth adapter.

Switch between the classic, BLE server and BLE client modes, toggle the
adapter's power, discoverability and name, run timed discovery, and connect
to discovered devices over GATT.

If no command is specified, the terminal UI launches automatically.`,
	Version: version.Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: run the harness when no subcommand provided
		return runHarness(cmd, args)
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "bttest %s\n", version.Full())
	},
}
