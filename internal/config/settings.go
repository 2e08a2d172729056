package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/handiism/wfmu-downloader/internal/audio"
	"github.com/handiism/wfmu-downloader/internal/http"
	"github.com/handiism/wfmu-downloader/internal/model"
	"github.com/handiism/wfmu-downloader/internal/wfmu"
)

// WorkersEnv is the environment variable that sets the worker count.
const WorkersEnv = "CONCURRENT"

// Settings holds all configuration options.
type Settings struct {
	// Source settings
	PodcastName string `json:"podcast_name"`
	ArchiveURL  string `json:"archive_url"`
	UseBrowser  bool   `json:"use_browser"`

	// Download settings
	DownloadsPath string `json:"downloads_path"`
	Workers       int    `json:"workers"`
	MaxRedirects  int    `json:"max_redirects"`
	UserAgent     string `json:"user_agent"`

	// Playlist settings
	CreatePlaylist bool   `json:"create_playlist"`
	PlaylistFormat string `json:"playlist_format"` // m3u, pls, wpl, zpl
	M3UExtended    bool   `json:"m3u_extended"`

	// Tag settings
	ModifyTags bool `json:"modify_tags"`

	// Logging
	LogPath string `json:"log_path"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	return &Settings{
		PodcastName: "wfmu",
		ArchiveURL:  wfmu.DefaultArchiveURL,
		UseBrowser:  false,

		DownloadsPath: "downloads",
		Workers:       5,
		MaxRedirects:  http.DefaultMaxRedirects,
		UserAgent:     "wfmu-downloader",

		CreatePlaylist: false,
		PlaylistFormat: "m3u",
		M3UExtended:    true,

		ModifyTags: false,
	}
}

// Load reads settings from a JSON file.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, err
	}

	settings := DefaultSettings()
	if err := json.Unmarshal(data, settings); err != nil {
		return nil, err
	}

	return settings, nil
}

// Save writes settings to a JSON file.
func (s *Settings) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Target returns the podcast download target, {DownloadsPath}/{PodcastName}.
func (s *Settings) Target() (*model.Podcast, error) {
	return model.NewPodcast(s.PodcastName, s.DownloadsPath)
}

// ToHTTPOptions converts settings to http.Options.
func (s *Settings) ToHTTPOptions() http.Options {
	return http.Options{
		UserAgent:    s.UserAgent,
		MaxRedirects: s.MaxRedirects,
	}
}

// ToTagger returns the tagger for downloaded files, or nil when tags are
// left alone.
func (s *Settings) ToTagger() *audio.Tagger {
	if !s.ModifyTags {
		return nil
	}
	return audio.NewTagger(audio.DefaultTagConfig())
}

// ToPlaylistCreator returns the playlist writer, or nil when no playlist
// is wanted.
func (s *Settings) ToPlaylistCreator() *audio.PlaylistCreator {
	if !s.CreatePlaylist {
		return nil
	}
	return audio.NewPlaylistCreator(audio.ParsePlaylistFormat(s.PlaylistFormat), s.M3UExtended)
}

// ToLister returns the archive page lister selected by UseBrowser.
func (s *Settings) ToLister() wfmu.Lister {
	if s.UseBrowser {
		return wfmu.BrowserLister{}
	}
	return &wfmu.CollyLister{UserAgent: s.UserAgent}
}

// ResolveWorkers picks the worker count from, in order, the last of args
// and env. The first value with a leading integer wins, so "8x" counts as
// 8. A winning count below one, or no count at all, gives fallback, and 5
// when fallback is below one too.
//
// Example:
//
//	ResolveWorkers([]string{"10"}, "3", 5) // 10
//	ResolveWorkers(nil, "3", 5)            // 3
//	ResolveWorkers([]string{"0"}, "3", 5)  // 5
//	ResolveWorkers([]string{"x"}, "", 0)   // 5
func ResolveWorkers(args []string, env string, fallback int) int {
	var candidates []string
	if len(args) > 0 {
		candidates = append(candidates, args[len(args)-1])
	}
	candidates = append(candidates, env)

	for _, c := range candidates {
		if n, ok := leadingInt(c); ok {
			if n >= 1 {
				return n
			}
			break
		}
	}
	if fallback >= 1 {
		return fallback
	}
	return 5
}

var leadingIntPattern = regexp.MustCompile(`^\s*([+-]?\d+)`)

// leadingInt parses the integer at the start of s, ignoring anything after it.
func leadingInt(s string) (int, bool) {
	m := leadingIntPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
