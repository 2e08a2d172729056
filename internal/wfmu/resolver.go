package wfmu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"regexp"

	"github.com/handiism/wfmu-downloader/internal/http"
	"github.com/handiism/wfmu-downloader/internal/model"
	"github.com/handiism/wfmu-downloader/internal/wfmu/dto"
)

// ErrNoPlaylistData is returned when an episode page has no playlist-data textarea.
var ErrNoPlaylistData = errors.New("no playlist data found in page")

var playlistDataPattern = regexp.MustCompile(`(?ism)<textarea id="playlist-data".*?>(.*?)</textarea>`)

// Resolver turns episode page URLs into direct media URLs.
//
// The episode page embeds its player configuration as JSON:
//
//	<textarea id="playlist-data" style="display:none">{"audio":{"@attributes":{"url":"mp3:/a/b.mp3"}},"mp4_server":"//cdn.example.org"}</textarea>
//
// Resolver fetches the page (following redirects), captures the first such
// textarea and builds "https:" + server + path from the payload.
type Resolver struct {
	client *http.Client
}

// NewResolver creates a Resolver using client for page requests.
func NewResolver(client *http.Client) *Resolver {
	return &Resolver{client: client}
}

// Resolve fetches ep.SourceURL and returns the media URL, also storing it in
// ep.MediaURL.
//
// Network failures come back as KindNetwork or KindNotFound errors from the
// http package. A page without playlist data, or with a payload missing the
// audio or server fields, fails with KindParse; the raw page is attached as
// the error's Detail.
func (r *Resolver) Resolve(ctx context.Context, ep *model.Episode) (string, error) {
	page, err := r.client.GetString(ctx, ep.SourceURL)
	if err != nil {
		return "", err
	}

	mediaURL, err := ParsePlaylistPage(page)
	if err != nil {
		return "", &model.Error{Kind: model.KindParse, Op: "resolve", URL: ep.SourceURL, Err: err, Detail: page}
	}

	ep.MediaURL = mediaURL
	return mediaURL, nil
}

// ParsePlaylistPage extracts the media URL from an episode page.
func ParsePlaylistPage(page string) (string, error) {
	data, err := extractPlaylistData(page)
	if err != nil {
		return "", err
	}

	playlist, err := decodePlaylist(data)
	if err != nil {
		return "", err
	}
	return playlist.MediaURL()
}

// extractPlaylistData returns the text of the first playlist-data textarea.
func extractPlaylistData(page string) (string, error) {
	match := playlistDataPattern.FindStringSubmatch(page)
	if match == nil {
		return "", ErrNoPlaylistData
	}
	return match[1], nil
}

// decodePlaylist parses the payload as JSON, retrying once with HTML
// entities decoded for pages that escape the textarea body.
func decodePlaylist(data string) (*dto.JSONPlaylist, error) {
	var playlist dto.JSONPlaylist
	err := json.Unmarshal([]byte(data), &playlist)
	if err == nil {
		return &playlist, nil
	}

	unescaped := html.UnescapeString(data)
	if unescaped != data {
		playlist = dto.JSONPlaylist{}
		if json.Unmarshal([]byte(unescaped), &playlist) == nil {
			return &playlist, nil
		}
	}
	return nil, fmt.Errorf("failed to parse playlist JSON: %w", err)
}
