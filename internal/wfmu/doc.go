// Package wfmu reads WFMU archive and episode pages.
//
// The package handles two main use cases:
//
//  1. Listing the episodes of a show's playlist archive page
//  2. Resolving an episode page to its direct media file URL
//
// # Episode Listing
//
// The archive page links every episode to the Flash player page. Use a
// Lister to collect them in page order:
//
//	lister := &wfmu.CollyLister{}
//	episodes, err := lister.List(ctx, wfmu.DefaultArchiveURL)
//
// BrowserLister does the same after rendering the page in headless Chrome.
//
// # Resolving Media URLs
//
// The player page embeds a JSON payload in a hidden
// `<textarea id="playlist-data">`. The Resolver extracts it and joins the
// stream server with the audio path:
//
//	resolver := wfmu.NewResolver(client)
//	mediaURL, err := resolver.Resolve(ctx, episode)
package wfmu
