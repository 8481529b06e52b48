// Package config loads the harness configuration file.
//
// The configuration is a YAML file stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/bttest/config.yaml or $HOME/.config/bttest/config.yaml
//   - macOS: $HOME/.config/bttest/config.yaml
//   - Windows: %LOCALAPPDATA%\bttest\config.yaml
//
// A missing file is not an error: Load returns Default. Fields left out of
// the file keep their default values, and command-line flags override both.
//
// # Usage Example
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    return err
//	}
//	radio := bluetooth.NewSimRadio(cfg.SimRadio())
//
// # Thread Safety
//
// Save serializes writes with a package mutex and replaces the file
// atomically. A loaded Config is a plain value and is not synchronized.
package config
