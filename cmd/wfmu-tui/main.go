package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/handiism/wfmu-downloader/internal/config"
	"github.com/handiism/wfmu-downloader/internal/logger"
	"github.com/handiism/wfmu-downloader/internal/tui"
	"github.com/joho/godotenv"
)

func main() {
	var (
		configFlag = flag.String("config", "", "Path to config file")
		logFlag    = flag.String("log", "", "Write a JSON event log to this file")
	)
	flag.Parse()

	// .env is optional here; the environment wins over it
	_ = godotenv.Load()

	settings := config.DefaultSettings()
	if *configFlag != "" {
		var err error
		settings, err = config.Load(*configFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}
	if *logFlag != "" {
		settings.LogPath = *logFlag
	}

	log, err := logger.New(settings.LogPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	workers := config.ResolveWorkers(flag.Args(), os.Getenv(config.WorkersEnv), settings.Workers)
	if err := tui.Run(settings, workers, logger.EventHandler(log)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
