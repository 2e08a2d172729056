package model

import (
	"fmt"
	"path/filepath"
)

// Podcast identifies the show being archived and where its files live.
//
// A Podcast is built once per run and then only read.
type Podcast struct {
	// Name is the show name, also used as the directory name.
	Name string

	// Directory is the absolute directory episodes are saved to.
	Directory string
}

// NewPodcast creates a Podcast saving into root/name.
func NewPodcast(name, root string) (*Podcast, error) {
	if name == "" {
		return nil, fmt.Errorf("podcast name is required")
	}
	dir, err := filepath.Abs(filepath.Join(root, name))
	if err != nil {
		return nil, fmt.Errorf("resolve download directory: %w", err)
	}
	return &Podcast{Name: name, Directory: dir}, nil
}
