// Package audio tags downloaded episodes and writes playlists of them.
//
// # ID3 Tagging
//
// Use the Tagger to write ID3 tags to a finished download:
//
//	tagger := audio.NewTagger(audio.DefaultTagConfig())
//	err := tagger.SaveTags(ep.TempPath, ep, podcast)
//
// The tagger supports:
//   - Title (episode title)
//   - Album (podcast name)
//   - Artist
//   - Track Number (episode index)
//   - Comments (episode page URL)
//
// # Playlist Generation
//
// Generate playlists in various formats:
//
//	creator := audio.NewPlaylistCreator(audio.FormatM3U, true) // extended M3U
//	content := creator.CreatePlaylist(podcast, episodes)
//
// Supported formats:
//   - M3U (with optional extended info)
//   - PLS
//   - WPL (Windows Media Player)
//   - ZPL (Zune Media Player)
package audio
