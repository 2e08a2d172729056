package download

import "sync"

// Status is the current activity line of one worker.
//
// Only the owning worker calls Set; displays read it with Text.
type Status struct {
	mu   sync.RWMutex
	text string
}

// NewStatuses creates n empty worker statuses.
func NewStatuses(n int) []*Status {
	statuses := make([]*Status, n)
	for i := range statuses {
		statuses[i] = &Status{}
	}
	return statuses
}

// Set replaces the status text.
func (s *Status) Set(text string) {
	s.mu.Lock()
	s.text = text
	s.mu.Unlock()
}

// Text returns the current status text.
func (s *Status) Text() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.text
}
