// Package model defines the core data structures used throughout
// the wfmu-downloader application.
//
// # Podcast
//
// Podcast is the download target: a show name and the directory its
// episodes are saved to.
//
//	podcast, err := model.NewPodcast("wfmu", "./downloads")
//	fmt.Println(podcast.Directory) // /abs/path/downloads/wfmu
//
// # Episode
//
// Episode is one unit of work. The archive listing produces Title and
// SourceURL; Normalize assigns Index; resolving sets MediaURL and
// fetching sets Path, TempPath and Size.
//
//	episodes := model.Normalize(listing)
//	ep := episodes[0]
//	ep.MediaURL = "https://cdn.example.org/show/ep1.mp3"
//	ep.SetDestination(podcast)
//	fmt.Println(ep.Path) // .../downloads/wfmu/[1] Title.mp3
//
// # Errors
//
// Components report failures as *Error values tagged with an ErrorKind
// (network, not found, parse, filesystem); use KindOf to classify.
package model
