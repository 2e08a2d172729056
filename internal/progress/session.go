// Package progress draws worker status lines in place on a terminal.
//
// A Session prints a header, then redraws one line per worker on a fixed
// interval by moving the cursor back up over the previous frame. When the
// run ends it draws a last frame and prints the total size.
//
//	session := progress.NewSession(os.Stdout)
//	manager := download.NewManager(download.Config{Observer: session, ...}, nil)
//	manager.Run(ctx, episodes)
//
//	// Updating wfmu
//	// Downloading November 3, 2023 42%
//	// Finished October 27, 2023
//	// Total size: 412 MiB
//	// Done
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/handiism/wfmu-downloader/internal/download"
	"github.com/handiism/wfmu-downloader/internal/model"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

// DefaultInterval is the redraw period.
const DefaultInterval = 50 * time.Millisecond

// DefaultWidth is used when the output is not a terminal.
const DefaultWidth = 80

const (
	ellipsis  = "..."
	clearLine = "\x1b[K"
)

// Session is a download.Observer rendering statuses as plain lines.
type Session struct {
	out      io.Writer
	interval time.Duration
	width    func() int

	mu       sync.Mutex
	statuses []*download.Status
	inPlace  bool
	finished bool

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewSession creates a Session writing to out. The line width follows the
// terminal size when out is a terminal.
func NewSession(out io.Writer) *Session {
	s := &Session{
		out:      out,
		interval: DefaultInterval,
		width:    func() int { return DefaultWidth },
	}
	if f, ok := out.(*os.File); ok {
		s.width = func() int { return TerminalWidth(f) }
	}
	return s
}

// SetInterval changes the redraw period. It must be called before Start.
func (s *Session) SetInterval(d time.Duration) { s.interval = d }

// SetWidth fixes the line width. It must be called before Start.
func (s *Session) SetWidth(w int) { s.width = func() int { return w } }

// Start prints the header and begins redrawing statuses.
func (s *Session) Start(podcast *model.Podcast, statuses []*download.Status) {
	s.mu.Lock()
	s.statuses = statuses
	fmt.Fprintf(s.out, "Updating %s\n", podcast.Name)
	s.mu.Unlock()

	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop()
}

func (s *Session) loop() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Redraw()
		}
	}
}

// Redraw draws the current statuses. After Finish it does nothing.
func (s *Session) Redraw() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draw()
}

func (s *Session) draw() {
	if s.finished {
		return
	}

	var b strings.Builder
	if s.inPlace {
		fmt.Fprintf(&b, "\x1b[%dA\r", len(s.statuses))
	} else {
		s.inPlace = true
	}

	width := s.width()
	for _, status := range s.statuses {
		b.WriteString(Truncate(status.Text(), width))
		b.WriteString(clearLine)
		b.WriteByte('\n')
	}
	io.WriteString(s.out, b.String())
}

// Finish stops redrawing, draws the last frame and prints the total.
// Calling it again has no effect.
func (s *Session) Finish(totalBytes int64) {
	s.stopOnce.Do(func() {
		if s.stop != nil {
			close(s.stop)
			<-s.done
		}
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	s.draw()
	s.finished = true

	fmt.Fprintf(s.out, "Total size: %s\n", humanize.IBytes(uint64(totalBytes)))
	fmt.Fprintln(s.out, "Done")
}

// Truncate shortens text to fit width-1 display columns, marking the cut
// with "...".
func Truncate(text string, width int) string {
	limit := max(width-1, len(ellipsis))
	if runewidth.StringWidth(text) <= limit {
		return text
	}
	return runewidth.Truncate(text, limit, ellipsis)
}

// TerminalWidth returns the column count of f, or DefaultWidth when f is
// not a terminal.
func TerminalWidth(f *os.File) int {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return DefaultWidth
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return DefaultWidth
	}
	return w
}
