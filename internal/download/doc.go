// Package download runs the episode download pipeline.
//
// # Manager
//
// The Manager coordinates one run:
//
//  1. Create the podcast directory
//  2. Flatten and number the episode listings
//  3. Start one worker per configured slot against a shared Queue
//  4. Per episode: resolve the audio URL, then fetch the file
//  5. Tag the temp file and write a playlist (optional)
//  6. Report the byte total of the successful episodes
//
// # Basic Usage
//
//	client := http.NewClient(http.Options{})
//	manager := download.NewManager(download.Config{
//	    Podcast:  podcast,
//	    Workers:  5,
//	    Resolver: wfmu.NewResolver(client),
//	    Fetcher:  download.NewFetcher(client),
//	    Observer: session,
//	}, func(event download.ProgressEvent) {
//	    log.Println(event.Message)
//	})
//
//	summary, err := manager.Run(ctx, episodes)
//
// # Concurrency
//
// Workers pop from the Queue until it is empty. Each episode is handed to
// exactly one worker. Results are collected in completion order.
//
// # Failures
//
// A failing episode never stops its worker or the run. The worker sets its
// Status to "Error {title}: {err}", emits a LevelError event and moves on.
// There are no retries. Run only returns an error when the download
// directory cannot be created.
//
// # Progress Tracking
//
// Each worker owns one Status line that an Observer reads while the run is
// in progress. Log style messages are reported via a callback function that
// receives ProgressEvent:
//
//	type ProgressEvent struct {
//	    Message string
//	    Level   ProgressLevel // Info, Verbose, Warning, Error, Success
//	}
package download
