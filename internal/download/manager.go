package download

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/handiism/wfmu-downloader/internal/audio"
	ioutils "github.com/handiism/wfmu-downloader/internal/io"
	"github.com/handiism/wfmu-downloader/internal/model"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the worker count used when Config leaves it unset.
const DefaultWorkers = 5

// ProgressLevel indicates the severity/type of a progress message.
type ProgressLevel int

const (
	LevelInfo ProgressLevel = iota
	LevelVerbose
	LevelWarning
	LevelError
	LevelSuccess
)

// ProgressEvent represents a download progress update.
type ProgressEvent struct {
	Message string
	Level   ProgressLevel
}

// Resolver turns an episode page into the URL of its audio file.
type Resolver interface {
	Resolve(ctx context.Context, ep *model.Episode) (string, error)
}

// Observer displays the worker statuses during a run.
//
// Start is called once before any worker runs, Finish once after all
// workers are done, with the byte total of the successful episodes.
type Observer interface {
	Start(podcast *model.Podcast, statuses []*Status)
	Finish(totalBytes int64)
}

// Config holds the collaborators of a Manager.
type Config struct {
	Podcast  *model.Podcast
	Workers  int
	Resolver Resolver
	Fetcher  FileFetcher

	// Observer is optional.
	Observer Observer

	// Tagger, when set, tags each downloaded file before it is published.
	Tagger *audio.Tagger

	// Playlist, when set, writes a playlist of the run's episodes into
	// the podcast directory.
	Playlist *audio.PlaylistCreator
}

// Summary is the outcome of a run.
type Summary struct {
	// Episodes are the successful episodes in completion order.
	Episodes   []*model.Episode
	Failed     int
	TotalBytes int64
}

// Manager runs the download pipeline for one podcast.
type Manager struct {
	cfg Config

	totalFiles      int32
	downloadedFiles int32
	failedFiles     int32
	receivedBytes   int64

	onProgress func(ProgressEvent)
}

// NewManager creates a new download Manager.
func NewManager(cfg Config, onProgress func(ProgressEvent)) *Manager {
	if cfg.Workers < 1 {
		cfg.Workers = DefaultWorkers
	}
	return &Manager{cfg: cfg, onProgress: onProgress}
}

// Run downloads every episode of the listings into the podcast directory.
//
// The listings are flattened and numbered so the last listed episode gets
// index 1, then processed lowest index first by the configured number of
// workers. A failing episode is reported in its worker's status and
// skipped. Only setup failures are returned as errors.
func (m *Manager) Run(ctx context.Context, listings ...[]model.Episode) (*Summary, error) {
	podcast := m.cfg.Podcast
	if podcast == nil {
		return nil, errors.New("download: no podcast configured")
	}
	if m.cfg.Resolver == nil || m.cfg.Fetcher == nil {
		return nil, errors.New("download: resolver and fetcher are required")
	}

	if err := ioutils.EnsureDir(podcast.Directory); err != nil {
		return nil, model.NewError(model.KindFilesystem, "create download directory", err)
	}

	episodes := model.Normalize(listings...)
	atomic.StoreInt32(&m.totalFiles, int32(len(episodes)))
	atomic.StoreInt32(&m.downloadedFiles, 0)
	atomic.StoreInt32(&m.failedFiles, 0)
	atomic.StoreInt64(&m.receivedBytes, 0)
	m.progress(ProgressEvent{Message: fmt.Sprintf("Found %d episodes for %s", len(episodes), podcast.Name), Level: LevelInfo})

	queue := NewQueue(episodes)
	statuses := NewStatuses(m.cfg.Workers)
	if m.cfg.Observer != nil {
		m.cfg.Observer.Start(podcast, statuses)
	}

	var (
		mu      sync.Mutex
		results []*model.Episode
	)
	var g errgroup.Group
	for _, status := range statuses {
		g.Go(func() error {
			m.work(ctx, queue, status, func(ep *model.Episode) {
				mu.Lock()
				results = append(results, ep)
				mu.Unlock()
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := &Summary{
		Episodes: results,
		Failed:   int(atomic.LoadInt32(&m.failedFiles)),
	}
	for _, ep := range results {
		summary.TotalBytes += ep.Size
	}

	if m.cfg.Playlist != nil && len(results) > 0 {
		m.writePlaylist(results)
	}

	if m.cfg.Observer != nil {
		m.cfg.Observer.Finish(summary.TotalBytes)
	}
	m.progress(ProgressEvent{
		Message: fmt.Sprintf("Downloaded %d episodes (%s), %d failed", len(results), humanize.IBytes(uint64(summary.TotalBytes)), summary.Failed),
		Level:   LevelSuccess,
	})
	return summary, nil
}

// GetProgress returns current download progress.
func (m *Manager) GetProgress() (received int64, filesDone, filesFailed, filesTotal int32) {
	return atomic.LoadInt64(&m.receivedBytes),
		atomic.LoadInt32(&m.downloadedFiles),
		atomic.LoadInt32(&m.failedFiles),
		atomic.LoadInt32(&m.totalFiles)
}

// work pops episodes until the queue is empty.
func (m *Manager) work(ctx context.Context, queue *Queue, status *Status, done func(*model.Episode)) {
	for {
		ep, ok := queue.Pop()
		if !ok {
			return
		}

		status.Set("Starting " + ep.Title)
		if err := m.downloadEpisode(ctx, ep, status); err != nil {
			status.Set(fmt.Sprintf("Error %s: %v", ep.Title, err))
			atomic.AddInt32(&m.failedFiles, 1)
			m.progress(ProgressEvent{Message: fmt.Sprintf("Error downloading %s: %v", ep.Label(), err), Level: LevelError})

			var me *model.Error
			if errors.As(err, &me) && me.Detail != "" {
				m.progress(ProgressEvent{Message: fmt.Sprintf("Page body for %s:\n%s", ep.Label(), me.Detail), Level: LevelVerbose})
			}
			continue
		}

		status.Set("Finished " + ep.Title)
		atomic.AddInt32(&m.downloadedFiles, 1)
		done(ep)
	}
}

func (m *Manager) downloadEpisode(ctx context.Context, ep *model.Episode, status *Status) error {
	status.Set("Finding info url for " + ep.Title)
	mediaURL, err := m.cfg.Resolver.Resolve(ctx, ep)
	if err != nil {
		return err
	}
	ep.MediaURL = mediaURL
	m.progress(ProgressEvent{Message: fmt.Sprintf("Resolved %s: %s", ep.Label(), mediaURL), Level: LevelVerbose})

	status.Set("Downloading mp3 file for " + ep.Title)
	ep.SetDestination(m.cfg.Podcast)

	var last int64
	req := FetchRequest{
		URL:      ep.MediaURL,
		TempPath: ep.TempPath,
		Path:     ep.Path,
		OnProgress: func(p Progress) {
			atomic.AddInt64(&m.receivedBytes, p.Received-last)
			last = p.Received
			if pct := p.Percent(); pct >= 0 {
				status.Set(fmt.Sprintf("Downloading %s %d%%", ep.Title, pct))
			} else {
				status.Set(fmt.Sprintf("Downloading %s %s", ep.Title, humanize.IBytes(uint64(p.Received))))
			}
		},
	}
	if m.cfg.Tagger != nil {
		req.BeforePublish = func(tempPath string) error {
			// An untaggable file is still a finished download.
			if err := m.cfg.Tagger.SaveTags(tempPath, ep, m.cfg.Podcast); err != nil {
				m.progress(ProgressEvent{Message: fmt.Sprintf("Error tagging %s: %v", ep.Title, err), Level: LevelWarning})
			}
			return nil
		}
	}

	res, err := m.cfg.Fetcher.Fetch(ctx, req)
	if err != nil {
		return err
	}
	ep.Size = res.Size

	if res.Cached {
		status.Set("Cached " + ep.Title)
		m.progress(ProgressEvent{Message: fmt.Sprintf("Skipping existing: %s", filepath.Base(ep.Path)), Level: LevelVerbose})
	} else {
		m.progress(ProgressEvent{Message: fmt.Sprintf("Downloaded: %s (%s)", filepath.Base(ep.Path), humanize.IBytes(uint64(res.Size))), Level: LevelVerbose})
	}
	return nil
}

func (m *Manager) writePlaylist(episodes []*model.Episode) {
	podcast := m.cfg.Podcast
	path := filepath.Join(podcast.Directory, podcast.Name+m.cfg.Playlist.Extension())
	content := m.cfg.Playlist.CreatePlaylist(podcast, episodes)

	if err := ioutils.WriteFileAtomic(path, []byte(content)); err != nil {
		m.progress(ProgressEvent{Message: fmt.Sprintf("Error creating playlist: %v", err), Level: LevelWarning})
		return
	}
	m.progress(ProgressEvent{Message: fmt.Sprintf("Created playlist %s", filepath.Base(path)), Level: LevelSuccess})
}

func (m *Manager) progress(event ProgressEvent) {
	if m.onProgress != nil {
		m.onProgress(event)
	}
}
