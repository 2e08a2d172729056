package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/handiism/wfmu-downloader/internal/config"
	"github.com/handiism/wfmu-downloader/internal/download"
	"github.com/handiism/wfmu-downloader/internal/logger"
	"github.com/handiism/wfmu-downloader/internal/progress"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Command line flags
	var (
		configFlag   = flag.String("config", "", "Path to config file")
		outputFlag   = flag.String("output", "", "Downloads directory (overrides config)")
		podcastFlag  = flag.String("podcast", "", "Podcast name, used as the sub directory (overrides config)")
		archiveFlag  = flag.String("archive", "", "Archive page URL (overrides config)")
		browserFlag  = flag.Bool("browser", false, "Render the archive page in a headless browser")
		tagFlag      = flag.Bool("tag", false, "Write ID3 tags to downloaded files")
		playlistFlag = flag.Bool("playlist", false, "Create playlist file")
		redirectFlag = flag.Int("max-redirects", 0, "Redirect hops followed per request (overrides config)")
		logFlag      = flag.String("log", "", "Write a JSON event log to this file")
		verboseFlag  = flag.Bool("verbose", false, "Include verbose events in the log")
		envFlag      = flag.String("env", "", "Load environment variables from this file (default .env if present)")
		dryRunFlag   = flag.Bool("dry-run", false, "List episodes without downloading")
	)

	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "WFMU Archive Downloader - Download the episodes of a WFMU playlist archive")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  wfmu-dl [options] [workers]")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "The worker count is the last argument, else $CONCURRENT, else the config value (5).")
		fmt.Fprintln(os.Stderr, "For interactive mode, use: wfmu-tui")
		fmt.Fprintln(os.Stderr)
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := loadEnv(*envFlag); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading env file: %v\n", err)
		os.Exit(1)
	}

	// Load config
	settings := config.DefaultSettings()
	if *configFlag != "" {
		var err error
		settings, err = config.Load(*configFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	// Apply flags
	if *outputFlag != "" {
		settings.DownloadsPath = *outputFlag
	}
	if *podcastFlag != "" {
		settings.PodcastName = *podcastFlag
	}
	if *archiveFlag != "" {
		settings.ArchiveURL = *archiveFlag
	}
	if *browserFlag {
		settings.UseBrowser = true
	}
	if *tagFlag {
		settings.ModifyTags = true
	}
	if *playlistFlag {
		settings.CreatePlaylist = true
	}
	if *redirectFlag != 0 {
		settings.MaxRedirects = *redirectFlag
	}
	if *logFlag != "" {
		settings.LogPath = *logFlag
	}

	workers := config.ResolveWorkers(flag.Args(), os.Getenv(config.WorkersEnv), settings.Workers)

	log, err := logger.New(settings.LogPath, *verboseFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Handle interrupts
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("listing archive", zap.String("url", settings.ArchiveURL), zap.Bool("browser", settings.UseBrowser))
	episodes, err := settings.ToLister().List(ctx, settings.ArchiveURL)
	if err != nil {
		log.Error("listing failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error reading archive %s: %v\n", settings.ArchiveURL, err)
		os.Exit(1)
	}

	if *dryRunFlag {
		for i, ep := range episodes {
			fmt.Printf("[%d] %s\n    %s\n", len(episodes)-i, ep.Title, ep.SourceURL)
		}
		fmt.Printf("\n[Dry run - %d episodes, not downloading]\n", len(episodes))
		return
	}

	session := progress.NewSession(os.Stdout)
	manager, err := download.NewManagerFromSettings(settings, workers, session, logger.EventHandler(log))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	summary, err := manager.Run(ctx, episodes)
	if err != nil {
		log.Error("run failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error during download: %v\n", err)
		os.Exit(1)
	}

	log.Info("run finished",
		zap.Int("episodes", len(summary.Episodes)),
		zap.Int("failed", summary.Failed),
		zap.Int64("bytes", summary.TotalBytes))

	if ctx.Err() != nil {
		fmt.Println("\nDownload cancelled.")
		os.Exit(130)
	}
}

// loadEnv loads path, or .env when path is empty and the file exists.
// Variables already set in the environment win.
func loadEnv(path string) error {
	if path != "" {
		return godotenv.Load(path)
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
