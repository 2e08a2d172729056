package audio

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/handiism/wfmu-downloader/internal/model"
)

// PlaylistFormat represents supported playlist file formats.
//
// Each format has different features and compatibility:
//   - M3U: Simple text format, widely supported
//   - PLS: INI-style format, used by Winamp
//   - WPL: XML format, Windows Media Player
//   - ZPL: XML format, Zune/Groove Music
type PlaylistFormat int

const (
	// FormatM3U creates .m3u files (most compatible).
	// Can be extended with EXTINF lines for title info.
	FormatM3U PlaylistFormat = iota

	// FormatPLS creates .pls files (Winamp/SHOUTcast format).
	FormatPLS

	// FormatWPL creates .wpl files (Windows Media Player).
	FormatWPL

	// FormatZPL creates .zpl files (Zune/Groove Music).
	FormatZPL
)

// ParsePlaylistFormat maps a settings value ("m3u", "pls", "wpl", "zpl")
// to a format. Unknown values select M3U.
func ParsePlaylistFormat(s string) PlaylistFormat {
	switch strings.ToLower(s) {
	case "pls":
		return FormatPLS
	case "wpl":
		return FormatWPL
	case "zpl":
		return FormatZPL
	default:
		return FormatM3U
	}
}

// PlaylistCreator generates playlist files in various formats.
//
// The playlist lists episodes in ascending index order, oldest first,
// whatever order they finished downloading in. Entries are file names
// relative to the podcast directory.
//
// Example:
//
//	creator := NewPlaylistCreator(FormatM3U, true)
//	content := creator.CreatePlaylist(podcast, episodes)
//
//	// Result:
//	// #EXTM3U
//	// #EXTINF:-1,[1] November 3, 2023
//	// [1] November 3, 2023.mp3
type PlaylistCreator struct {
	format   PlaylistFormat
	extended bool // For M3U: include EXTINF lines
}

// NewPlaylistCreator creates a new PlaylistCreator.
//
// Parameters:
//   - format: The playlist format to generate
//   - extended: For M3U format, whether to include #EXTINF lines
//     (ignored for other formats)
func NewPlaylistCreator(format PlaylistFormat, extended bool) *PlaylistCreator {
	return &PlaylistCreator{
		format:   format,
		extended: extended,
	}
}

// Extension returns the file extension of the playlist format, with the dot.
func (p *PlaylistCreator) Extension() string {
	switch p.format {
	case FormatPLS:
		return ".pls"
	case FormatWPL:
		return ".wpl"
	case FormatZPL:
		return ".zpl"
	default:
		return ".m3u"
	}
}

// CreatePlaylist generates playlist content for the episodes of a podcast.
//
// Episodes without a destination path are skipped.
func (p *PlaylistCreator) CreatePlaylist(podcast *model.Podcast, episodes []*model.Episode) string {
	sorted := make([]*model.Episode, 0, len(episodes))
	for _, ep := range episodes {
		if ep != nil && ep.Path != "" {
			sorted = append(sorted, ep)
		}
	}
	slices.SortStableFunc(sorted, func(a, b *model.Episode) int { return a.Index - b.Index })

	switch p.format {
	case FormatPLS:
		return p.createPLS(sorted)
	case FormatWPL:
		return p.createWPL(podcast, sorted)
	case FormatZPL:
		return p.createZPL(podcast, sorted)
	default:
		return p.createM3U(sorted)
	}
}

// createM3U generates an M3U playlist.
//
// Extended M3U format (when extended=true):
//
//	#EXTM3U
//	#EXTINF:-1,[1] Title
//	[1] Title.mp3
func (p *PlaylistCreator) createM3U(episodes []*model.Episode) string {
	var sb strings.Builder

	if p.extended {
		sb.WriteString("#EXTM3U\n")
	}

	for _, ep := range episodes {
		if p.extended {
			sb.WriteString(fmt.Sprintf("#EXTINF:-1,%s\n", ep.Label()))
		}
		sb.WriteString(filepath.Base(ep.Path) + "\n")
	}

	return sb.String()
}

// createPLS generates a PLS playlist.
//
//	[playlist]
//	File1=[1] Title.mp3
//	Title1=[1] Title
//	Length1=-1
//	NumberOfEntries=1
//	Version=2
func (p *PlaylistCreator) createPLS(episodes []*model.Episode) string {
	var sb strings.Builder

	sb.WriteString("[playlist]\n")

	for i, ep := range episodes {
		idx := i + 1
		sb.WriteString(fmt.Sprintf("File%d=%s\n", idx, filepath.Base(ep.Path)))
		sb.WriteString(fmt.Sprintf("Title%d=%s\n", idx, ep.Label()))
		sb.WriteString(fmt.Sprintf("Length%d=-1\n", idx))
	}

	sb.WriteString(fmt.Sprintf("NumberOfEntries=%d\n", len(episodes)))
	sb.WriteString("Version=2\n")

	return sb.String()
}

func (p *PlaylistCreator) createWPL(podcast *model.Podcast, episodes []*model.Episode) string {
	var sb strings.Builder

	sb.WriteString("<?wpl version=\"1.0\"?>\n")
	sb.WriteString("<smil>\n")
	sb.WriteString("  <head>\n")
	sb.WriteString(fmt.Sprintf("    <title>%s</title>\n", escapeXML(podcastName(podcast))))
	sb.WriteString("  </head>\n")
	sb.WriteString("  <body>\n")
	sb.WriteString("    <seq>\n")

	for _, ep := range episodes {
		sb.WriteString(fmt.Sprintf("      <media src=\"%s\"/>\n", escapeXML(filepath.Base(ep.Path))))
	}

	sb.WriteString("    </seq>\n")
	sb.WriteString("  </body>\n")
	sb.WriteString("</smil>\n")

	return sb.String()
}

// createZPL generates a Zune/Groove Music playlist, which carries the
// podcast name and episode title on every entry.
func (p *PlaylistCreator) createZPL(podcast *model.Podcast, episodes []*model.Episode) string {
	var sb strings.Builder
	name := podcastName(podcast)

	sb.WriteString("<?zpl version=\"2.0\"?>\n")
	sb.WriteString("<smil>\n")
	sb.WriteString("  <head>\n")
	sb.WriteString(fmt.Sprintf("    <title>%s</title>\n", escapeXML(name)))
	sb.WriteString("    <meta name=\"Generator\" content=\"wfmu-downloader\"/>\n")
	sb.WriteString(fmt.Sprintf("    <meta name=\"ItemCount\" content=\"%d\"/>\n", len(episodes)))
	sb.WriteString("  </head>\n")
	sb.WriteString("  <body>\n")
	sb.WriteString("    <seq>\n")

	for _, ep := range episodes {
		sb.WriteString(fmt.Sprintf("      <media src=\"%s\" albumTitle=\"%s\" trackTitle=\"%s\"/>\n",
			escapeXML(filepath.Base(ep.Path)),
			escapeXML(name),
			escapeXML(ep.Title)))
	}

	sb.WriteString("    </seq>\n")
	sb.WriteString("  </body>\n")
	sb.WriteString("</smil>\n")

	return sb.String()
}

func podcastName(p *model.Podcast) string {
	if p == nil {
		return ""
	}
	return p.Name
}

// escapeXML escapes special XML characters in a string.
//
// Replaces: & < > " '
// With:     &amp; &lt; &gt; &quot; &apos;
func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}
