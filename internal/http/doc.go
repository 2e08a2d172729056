// Package http provides the HTTP client used for episode pages and media files.
//
// The Client in this package handles:
//   - User-Agent headers
//   - Redirect following (absolute or relative Location) with a hop limit
//   - Classified errors for failed requests and error statuses
//
// # Basic Usage
//
//	client := http.NewClient(http.Options{MaxRedirects: 10})
//
//	// Fetch HTML page
//	html, err := client.GetString(ctx, "https://wfmu.org/flashplayer.php?version=1")
//
//	// Stream a file
//	resp, err := client.Open(ctx, mediaURL)
//	defer resp.Body.Close()
//
// # Progress Tracking
//
// The ProgressWriter type can be used to wrap any io.Writer for progress tracking:
//
//	pw := &http.ProgressWriter{
//	    Writer:   file,
//	    Total:    resp.ContentLength,
//	    OnUpdate: func(written, total int64) { /* update UI */ },
//	}
package http
