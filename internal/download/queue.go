package download

import (
	"sync"

	"github.com/handiism/wfmu-downloader/internal/model"
)

// Queue is the shared work list consumed by the workers.
//
// Pop removes and returns the front episode in one locked step, so every
// episode is handed to exactly one worker exactly once.
type Queue struct {
	mu    sync.Mutex
	items []*model.Episode
}

// NewQueue creates a queue holding episodes in order. The slice is copied.
func NewQueue(episodes []*model.Episode) *Queue {
	items := make([]*model.Episode, len(episodes))
	copy(items, episodes)
	return &Queue{items: items}
}

// Pop removes the front episode. It returns false once the queue is empty.
func (q *Queue) Pop() (*model.Episode, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}
	ep := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return ep, true
}

// Len returns the number of episodes still waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
