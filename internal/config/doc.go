// Package config provides configuration management for slack-emoji-dl.
//
// This package handles:
//   - Default configuration values
//   - Loading settings from a JSON, YAML or TOML file and the environment
//   - Saving settings as JSON or YAML
//   - Validation and conversion for other packages
//
// # Sources
//
// Settings are resolved from, lowest priority first:
//
//  1. DefaultSettings()
//  2. The config file passed to Load, or DefaultConfigFile in the working
//     directory if no path is given and that file exists
//  3. Environment variables such as EMOJI_DL_CONCURRENT=100
//
// Command line flags are applied on top by the caller.
//
// # Loading
//
// A path passed explicitly must exist; a typo is reported instead of
// silently falling back to the defaults.
//
//	settings, err := config.Load("emoji-dl.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := settings.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Saving Settings
//
//	settings.Concurrent = 100
//	err := settings.Save("emoji-dl.yaml")
package config
