package model

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"slices"
	"strings"

	ioutils "github.com/handiism/wfmu-downloader/internal/io"
)

// tempSuffix is appended to the final path for in-progress downloads.
const tempSuffix = ".tmp"

// Episode represents a single podcast episode to resolve and download.
//
// Episode fields are filled in stages:
//   - Title and SourceURL come from the archive listing
//   - Index is assigned by Normalize
//   - MediaURL is set once the episode page has been resolved
//   - Path, TempPath and Size are set by the fetch step
//
// An Episode is owned by exactly one worker once it leaves the queue, so
// its fields are never written concurrently.
type Episode struct {
	// Title is the human-readable episode title.
	Title string `json:"title"`

	// SourceURL is the episode page holding the embedded playlist data.
	SourceURL string `json:"url"`

	// Index is the 1-based position counted from the end of the listing,
	// so the oldest episode in a newest-first archive gets index 1.
	Index int `json:"index,omitempty"`

	// MediaURL is the direct media file URL found on the episode page.
	MediaURL string `json:"media_url,omitempty"`

	// Path is the final on-disk location of the media file.
	Path string `json:"path,omitempty"`

	// TempPath is where the file is streamed before being published to Path.
	TempPath string `json:"temp_path,omitempty"`

	// Size is the on-disk size of Path after a successful fetch.
	Size int64 `json:"size,omitempty"`
}

// Normalize flattens the listing, assigns descending indices by position
// and returns the episodes sorted by ascending index.
//
// The first episode of an n-element listing gets index n and the last one
// index 1, so the returned order is the reverse of the listing.
//
// Example:
//
//	eps := Normalize([]Episode{{Title: "A"}, {Title: "B"}})
//	// eps[0] = B (index 1), eps[1] = A (index 2)
func Normalize(listings ...[]Episode) []*Episode {
	var flat []*Episode
	for _, listing := range listings {
		for i := range listing {
			ep := listing[i]
			flat = append(flat, &ep)
		}
	}

	for i, ep := range flat {
		ep.Index = len(flat) - i
	}

	slices.SortStableFunc(flat, func(a, b *Episode) int {
		return a.Index - b.Index
	})
	return flat
}

// Label returns the "[index] title" label used for file names.
func (e *Episode) Label() string {
	return fmt.Sprintf("[%d] %s", e.Index, e.Title)
}

// SetDestination computes Path and TempPath inside the podcast directory.
//
// The file name is the cleaned label plus the extension of MediaURL, for
// example "[1] B.mp3". TempPath is Path with a ".tmp" suffix.
func (e *Episode) SetDestination(p *Podcast) {
	ext := MediaExt(e.MediaURL)
	// the temp name must fit too
	name := ioutils.TruncateFileName(ioutils.CleanFileName(e.Label()), ioutils.MaxFileNameBytes-len(ext)-len(tempSuffix))
	e.Path = filepath.Join(p.Directory, name+ext)
	e.TempPath = e.Path + tempSuffix
}

// MediaExt returns the file extension of a media URL's path, without any
// query string.
//
// Example:
//
//	MediaExt("https://cdn.example.org/a/show.mp3?dl=1") // ".mp3"
func MediaExt(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		return path.Ext(u.Path)
	}
	ext := path.Ext(rawURL)
	if i := strings.IndexAny(ext, "?#"); i >= 0 {
		ext = ext[:i]
	}
	return ext
}
