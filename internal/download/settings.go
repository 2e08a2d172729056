package download

import (
	"github.com/handiism/wfmu-downloader/internal/config"
	"github.com/handiism/wfmu-downloader/internal/http"
	"github.com/handiism/wfmu-downloader/internal/wfmu"
)

// NewManagerFromSettings creates a Manager with the collaborators described
// by settings: one HTTP client shared by the resolver and the fetcher, plus
// the optional tagger and playlist writer.
func NewManagerFromSettings(settings *config.Settings, workers int, observer Observer, onProgress func(ProgressEvent)) (*Manager, error) {
	podcast, err := settings.Target()
	if err != nil {
		return nil, err
	}

	client := http.NewClient(settings.ToHTTPOptions())
	return NewManager(Config{
		Podcast:  podcast,
		Workers:  workers,
		Resolver: wfmu.NewResolver(client),
		Fetcher:  NewFetcher(client),
		Observer: observer,
		Tagger:   settings.ToTagger(),
		Playlist: settings.ToPlaylistCreator(),
	}, onProgress), nil
}
