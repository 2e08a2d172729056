package audio

import (
	"strconv"

	"github.com/bogem/id3v2"
	"github.com/handiism/wfmu-downloader/internal/model"
)

// TagEditAction defines how to handle individual ID3 tags.
//
// Each tag field can be configured independently to determine whether
// it should be modified, cleared, or left unchanged.
type TagEditAction int

const (
	// TagEmpty clears the tag value.
	TagEmpty TagEditAction = iota

	// TagModify updates the tag with the value from the archive.
	TagModify

	// TagDoNotModify leaves the existing tag value unchanged.
	TagDoNotModify
)

// TagConfig holds tagging configuration for each ID3 field.
//
// Example:
//
//	cfg := &TagConfig{
//	    ModifyTags:  true,
//	    Title:       TagModify,      // episode title
//	    Album:       TagModify,      // podcast name
//	    TrackNumber: TagModify,      // episode index
//	    Comments:    TagDoNotModify, // keep the station's comment
//	}
type TagConfig struct {
	// ModifyTags is a master switch. If false, SaveTags leaves the file alone.
	ModifyTags bool

	// Title controls the TIT2 (Title) frame.
	Title TagEditAction

	// Album controls the TALB (Album title) frame.
	Album TagEditAction

	// Artist controls the TPE1 (Lead artist) frame.
	Artist TagEditAction

	// TrackNumber controls the TRCK (Track number) frame.
	TrackNumber TagEditAction

	// Comments controls the COMM (Comments) frame, set to the episode page URL.
	Comments TagEditAction
}

// DefaultTagConfig returns the default tag configuration.
//
// Title, album and track number are set from the episode. The artist and
// comment frames are left as the station published them.
func DefaultTagConfig() *TagConfig {
	return &TagConfig{
		ModifyTags:  true,
		Title:       TagModify,
		Album:       TagModify,
		Artist:      TagDoNotModify,
		TrackNumber: TagModify,
		Comments:    TagDoNotModify,
	}
}

// Tagger writes ID3 tags to downloaded episode files.
//
// Example:
//
//	tagger := NewTagger(DefaultTagConfig())
//
//	// After the download finished, before the file is published
//	err := tagger.SaveTags(ep.TempPath, ep, podcast)
//	if err != nil {
//	    log.Printf("Failed to tag %s: %v", ep.TempPath, err)
//	}
type Tagger struct {
	config *TagConfig
}

// NewTagger creates a new Tagger with the given configuration.
//
// If config is nil, DefaultTagConfig() is used.
func NewTagger(config *TagConfig) *Tagger {
	if config == nil {
		config = DefaultTagConfig()
	}
	return &Tagger{config: config}
}

// SaveTags writes the episode's ID3 tags to the file at path.
//
// path is usually the episode's temp file, so a file is tagged before it
// becomes visible at its final name. Existing frames are parsed and kept
// unless the configuration says otherwise.
func (t *Tagger) SaveTags(path string, ep *model.Episode, podcast *model.Podcast) error {
	if !t.config.ModifyTags {
		return nil
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return err
	}
	defer tag.Close()

	t.updateStringTags(tag, ep, podcast)

	return tag.Save()
}

// updateStringTags updates text-based ID3 frames based on configuration.
func (t *Tagger) updateStringTags(tag *id3v2.Tag, ep *model.Episode, podcast *model.Podcast) {
	// Title (TIT2)
	switch t.config.Title {
	case TagEmpty:
		tag.SetTitle("")
	case TagModify:
		tag.SetTitle(ep.Title)
	}

	// Album (TALB)
	switch t.config.Album {
	case TagEmpty:
		tag.SetAlbum("")
	case TagModify:
		if podcast != nil {
			tag.SetAlbum(podcast.Name)
		}
	}

	// Artist (TPE1)
	switch t.config.Artist {
	case TagEmpty:
		tag.SetArtist("")
	case TagModify:
		tag.SetArtist("WFMU")
	}

	// Track Number (TRCK)
	switch t.config.TrackNumber {
	case TagEmpty:
		tag.DeleteFrames("TRCK")
	case TagModify:
		tag.AddTextFrame("TRCK", id3v2.EncodingUTF8, strconv.Itoa(ep.Index))
	}

	// Comments (COMM)
	switch t.config.Comments {
	case TagEmpty:
		tag.DeleteFrames(tag.CommonID("Comments"))
	case TagModify:
		tag.DeleteFrames(tag.CommonID("Comments"))
		if ep.SourceURL != "" {
			tag.AddCommentFrame(id3v2.CommentFrame{
				Encoding:    id3v2.EncodingUTF8,
				Language:    "eng",
				Description: "",
				Text:        ep.SourceURL,
			})
		}
	}
}
