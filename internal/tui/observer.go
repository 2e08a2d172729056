package tui

import (
	"sync"

	"github.com/handiism/wfmu-downloader/internal/download"
	"github.com/handiism/wfmu-downloader/internal/model"
)

// runObserver collects the worker statuses of a run for the view.
// It is shared by pointer between Model copies.
type runObserver struct {
	mu       sync.Mutex
	podcast  string
	statuses []*download.Status
	total    int64
	finished bool
}

func (o *runObserver) Start(podcast *model.Podcast, statuses []*download.Status) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.podcast = podcast.Name
	o.statuses = statuses
	o.finished = false
	o.total = 0
}

func (o *runObserver) Finish(totalBytes int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.total = totalBytes
	o.finished = true
}

func (o *runObserver) name() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.podcast
}

// lines returns the current text of every worker status.
func (o *runObserver) lines() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	lines := make([]string, len(o.statuses))
	for i, s := range o.statuses {
		lines[i] = s.Text()
	}
	return lines
}

// eventQueue buffers progress events for the UI. Send never blocks a
// worker; events beyond the buffer are dropped.
type eventQueue chan download.ProgressEvent

func newEventQueue() eventQueue { return make(eventQueue, 64) }

func (q eventQueue) send(event download.ProgressEvent) {
	select {
	case q <- event:
	default:
	}
}
