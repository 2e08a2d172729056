// Package config provides configuration management for wfmu-downloader.
//
// This package handles:
//   - Loading and saving settings from JSON files
//   - Default configuration values
//   - Worker count resolution from arguments and the environment
//   - Conversion to the collaborators of other packages
//
// # Default Settings
//
// Use DefaultSettings() to get sensible defaults:
//
//	settings := config.DefaultSettings()
//	// Downloads the BS archive to ./downloads/wfmu
//	// Five workers
//	// No tagging, no playlist
//
// # Loading from File
//
//	settings, err := config.Load("/path/to/config.json")
//	if err != nil {
//	    // Uses defaults if file doesn't exist
//	}
//
// # Saving Settings
//
//	settings.DownloadsPath = "/srv/radio"
//	err := settings.Save("/path/to/config.json")
//
// # Worker Count
//
// The worker count comes from the last command line argument, then the
// CONCURRENT environment variable, then Settings.Workers. The first value
// that is an integer of at least one wins:
//
//	workers := config.ResolveWorkers(flag.Args(), os.Getenv(config.WorkersEnv), settings.Workers)
package config
