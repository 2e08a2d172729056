package dto

import (
	"errors"
	"strings"
)

// JSONPlaylist is the playlist payload embedded in an episode page.
type JSONPlaylist struct {
	Audio     *JSONAudio `json:"audio"`
	MP4Server string     `json:"mp4_server"`
}

// JSONAudio holds the audio stream attributes.
type JSONAudio struct {
	Attributes *JSONAudioAttributes `json:"@attributes"`
}

// JSONAudioAttributes carries the stream locator, e.g. "mp3:/archive/x.mp3".
type JSONAudioAttributes struct {
	URL string `json:"url"`
}

// MediaURL builds the direct https URL from the server and the part of the
// audio locator after its last colon.
func (jp *JSONPlaylist) MediaURL() (string, error) {
	if jp.Audio == nil || jp.Audio.Attributes == nil || jp.Audio.Attributes.URL == "" {
		return "", errors.New("playlist data has no audio url")
	}
	if jp.MP4Server == "" {
		return "", errors.New("playlist data has no mp4_server")
	}

	locator := jp.Audio.Attributes.URL
	path := locator[strings.LastIndex(locator, ":")+1:]

	server := jp.MP4Server
	if !strings.HasSuffix(server, "/") && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	if strings.HasPrefix(server, "//") {
		return "https:" + server + path, nil
	}
	return "https://" + strings.TrimPrefix(server, "https://") + path, nil
}
