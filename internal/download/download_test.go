package download

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/handiism/wfmu-downloader/internal/audio"
	"github.com/handiism/wfmu-downloader/internal/config"
	dlhttp "github.com/handiism/wfmu-downloader/internal/http"
	"github.com/handiism/wfmu-downloader/internal/model"
	"github.com/handiism/wfmu-downloader/internal/wfmu"
)

var mediaBody = strings.Repeat("0123456789", 1000)

// newMediaServer serves mediaBody at /file, a redirect chain at /a, and
// counts every request it receives.
func newMediaServer(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()
	var requests int32
	mux := http.NewServeMux()
	mux.HandleFunc("/file", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprint(len(mediaBody)))
		for i := 0; i < len(mediaBody); i += 1000 {
			fmt.Fprint(w, mediaBody[i:i+1000])
			w.(http.Flusher).Flush()
		}
	})
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/b", http.StatusFound)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "file", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/chunked", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "abc")
		w.(http.Flusher).Flush()
		fmt.Fprint(w, "def")
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/short", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		fmt.Fprint(w, "only ten b")
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func paths(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	final := filepath.Join(dir, "[1] Show.mp3")
	return final + ".tmp", final
}

func TestQueue_ExactlyOnce(t *testing.T) {
	const n = 500
	episodes := make([]*model.Episode, n)
	for i := range episodes {
		episodes[i] = &model.Episode{Index: i + 1}
	}
	q := NewQueue(episodes)

	var mu sync.Mutex
	seen := make(map[int]int)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				ep, ok := q.Pop()
				if !ok {
					return
				}
				mu.Lock()
				seen[ep.Index]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Fatalf("dequeued %d distinct episodes, want %d", len(seen), n)
	}
	for idx, count := range seen {
		if count != 1 {
			t.Errorf("episode %d dequeued %d times", idx, count)
		}
	}
	if q.Len() != 0 {
		t.Errorf("Len = %d after draining", q.Len())
	}
}

func TestQueue_FrontToBack(t *testing.T) {
	q := NewQueue([]*model.Episode{{Index: 1}, {Index: 2}})
	first, _ := q.Pop()
	second, _ := q.Pop()
	if first.Index != 1 || second.Index != 2 {
		t.Errorf("pop order = %d, %d", first.Index, second.Index)
	}
	if _, ok := q.Pop(); ok {
		t.Error("Pop on empty queue should return false")
	}
}

func TestFetcher_CachedSkipsNetwork(t *testing.T) {
	srv, requests := newMediaServer(t)
	tmp, final := paths(t)
	f := NewFetcher(dlhttp.NewClient(dlhttp.Options{}))

	res, err := f.Fetch(context.Background(), FetchRequest{URL: srv.URL + "/file", TempPath: tmp, Path: final})
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if res.Cached || res.Size != int64(len(mediaBody)) {
		t.Errorf("first fetch = %+v", res)
	}
	before := atomic.LoadInt32(requests)

	res, err = f.Fetch(context.Background(), FetchRequest{URL: srv.URL + "/file", TempPath: tmp, Path: final})
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if !res.Cached || res.Size != int64(len(mediaBody)) {
		t.Errorf("second fetch = %+v, want cached with full size", res)
	}
	if after := atomic.LoadInt32(requests); after != before {
		t.Errorf("second fetch made %d requests", after-before)
	}
	if _, err := os.Stat(tmp); !os.IsNotExist(err) {
		t.Error("temp file should not remain after publish")
	}
}

func TestFetcher_RedirectChainMatchesDirect(t *testing.T) {
	srv, _ := newMediaServer(t)
	f := NewFetcher(dlhttp.NewClient(dlhttp.Options{}))

	tmp, final := paths(t)
	if _, err := f.Fetch(context.Background(), FetchRequest{URL: srv.URL + "/a", TempPath: tmp, Path: final}); err != nil {
		t.Fatalf("fetch via redirects: %v", err)
	}

	got, err := os.ReadFile(final)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != mediaBody {
		t.Errorf("redirected content differs from direct content (%d bytes)", len(got))
	}
}

func TestFetcher_ProgressMonotonic(t *testing.T) {
	srv, _ := newMediaServer(t)
	tmp, final := paths(t)

	var percents []int
	_, err := NewFetcher(dlhttp.NewClient(dlhttp.Options{})).Fetch(context.Background(), FetchRequest{
		URL:        srv.URL + "/file",
		TempPath:   tmp,
		Path:       final,
		OnProgress: func(p Progress) { percents = append(percents, p.Percent()) },
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(percents) == 0 {
		t.Fatal("no progress reported")
	}
	for i := 1; i < len(percents); i++ {
		if percents[i] < percents[i-1] {
			t.Fatalf("progress went backwards: %v", percents)
		}
	}
	if last := percents[len(percents)-1]; last != 100 {
		t.Errorf("last percent = %d, want 100", last)
	}
}

func TestFetcher_UnknownLength(t *testing.T) {
	srv, _ := newMediaServer(t)
	tmp, final := paths(t)

	var last Progress
	res, err := NewFetcher(dlhttp.NewClient(dlhttp.Options{})).Fetch(context.Background(), FetchRequest{
		URL:        srv.URL + "/chunked",
		TempPath:   tmp,
		Path:       final,
		OnProgress: func(p Progress) { last = p },
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Size != 6 {
		t.Errorf("Size = %d, want 6", res.Size)
	}
	if last.Total != -1 || last.Percent() != -1 || last.Received != 6 {
		t.Errorf("last progress = %+v (percent %d)", last, last.Percent())
	}
}

func TestFetcher_StatusError(t *testing.T) {
	srv, _ := newMediaServer(t)
	tmp, final := paths(t)

	_, err := NewFetcher(dlhttp.NewClient(dlhttp.Options{})).Fetch(context.Background(), FetchRequest{
		URL: srv.URL + "/broken", TempPath: tmp, Path: final,
	})
	if model.KindOf(err) != model.KindNetwork {
		t.Fatalf("kind = %v (%v), want network", model.KindOf(err), err)
	}
	var se *dlhttp.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusInternalServerError {
		t.Errorf("expected StatusError 500, got %v", err)
	}
	if _, err := os.Stat(final); !os.IsNotExist(err) {
		t.Error("final path should not exist after a failed fetch")
	}
}

func TestFetcher_TruncatedBodyLeavesTemp(t *testing.T) {
	srv, _ := newMediaServer(t)
	tmp, final := paths(t)

	_, err := NewFetcher(dlhttp.NewClient(dlhttp.Options{})).Fetch(context.Background(), FetchRequest{
		URL: srv.URL + "/short", TempPath: tmp, Path: final,
	})
	if model.KindOf(err) != model.KindNetwork {
		t.Fatalf("kind = %v (%v), want network", model.KindOf(err), err)
	}
	if _, err := os.Stat(final); !os.IsNotExist(err) {
		t.Error("final path should not exist after a truncated transfer")
	}
	if _, err := os.Stat(tmp); err != nil {
		t.Errorf("temp file should be left behind: %v", err)
	}
}

func TestFetcher_BeforePublish(t *testing.T) {
	srv, _ := newMediaServer(t)
	tmp, final := paths(t)

	var sawTemp bool
	_, err := NewFetcher(dlhttp.NewClient(dlhttp.Options{})).Fetch(context.Background(), FetchRequest{
		URL: srv.URL + "/chunked", TempPath: tmp, Path: final,
		BeforePublish: func(p string) error {
			_, statErr := os.Stat(final)
			sawTemp = p == tmp && os.IsNotExist(statErr)
			return nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !sawTemp {
		t.Error("BeforePublish should run on the temp file before the final path exists")
	}

	tmp2 := tmp + "2"
	final2 := final + "2"
	_, err = NewFetcher(dlhttp.NewClient(dlhttp.Options{})).Fetch(context.Background(), FetchRequest{
		URL: srv.URL + "/chunked", TempPath: tmp2, Path: final2,
		BeforePublish: func(string) error { return errors.New("tag failed") },
	})
	if err == nil {
		t.Fatal("expected BeforePublish error")
	}
	if _, err := os.Stat(final2); !os.IsNotExist(err) {
		t.Error("file should not be published when BeforePublish fails")
	}
}

func TestProgress_Percent(t *testing.T) {
	tests := []struct {
		p    Progress
		want int
	}{
		{Progress{Received: 0, Total: 10}, 0},
		{Progress{Received: 3, Total: 10}, 30},
		{Progress{Received: 999, Total: 1000}, 99},
		{Progress{Received: 10, Total: 10}, 100},
		{Progress{Received: 10, Total: -1}, -1},
	}
	for _, tt := range tests {
		if got := tt.p.Percent(); got != tt.want {
			t.Errorf("%+v.Percent() = %d, want %d", tt.p, got, tt.want)
		}
	}
}

// mapResolver resolves episodes from a fixed table; missing entries fail
// with a parse error.
type mapResolver map[string]string

func (m mapResolver) Resolve(_ context.Context, ep *model.Episode) (string, error) {
	u, ok := m[ep.SourceURL]
	if !ok {
		return "", &model.Error{Kind: model.KindParse, Op: "resolve", URL: ep.SourceURL, Err: wfmu.ErrNoPlaylistData, Detail: "<html></html>"}
	}
	return u, nil
}

type recordingObserver struct {
	started  int
	workers  int
	finished []int64
}

func (o *recordingObserver) Start(_ *model.Podcast, statuses []*Status) {
	o.started++
	o.workers = len(statuses)
}

func (o *recordingObserver) Finish(total int64) { o.finished = append(o.finished, total) }

func TestManager_TotalExcludesFailures(t *testing.T) {
	srv, _ := newMediaServer(t)
	podcast, err := model.NewPodcast("wfmu", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	resolver := mapResolver{
		"page-1": srv.URL + "/file",
		"page-2": srv.URL + "/chunked",
		"page-3": srv.URL + "/broken",
		// page-4 has no playlist data
	}
	obs := &recordingObserver{}
	var events []ProgressEvent
	var mu sync.Mutex
	m := NewManager(Config{
		Podcast:  podcast,
		Workers:  3,
		Resolver: resolver,
		Fetcher:  NewFetcher(dlhttp.NewClient(dlhttp.Options{})),
		Observer: obs,
	}, func(e ProgressEvent) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	summary, err := m.Run(context.Background(), []model.Episode{
		{Title: "One", SourceURL: "page-1"},
		{Title: "Two", SourceURL: "page-2"},
		{Title: "Three", SourceURL: "page-3"},
		{Title: "Four", SourceURL: "page-4"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(summary.Episodes) != 2 || summary.Failed != 2 {
		t.Errorf("succeeded %d, failed %d; want 2 and 2", len(summary.Episodes), summary.Failed)
	}
	wantTotal := int64(len(mediaBody) + 6)
	if summary.TotalBytes != wantTotal {
		t.Errorf("TotalBytes = %d, want %d", summary.TotalBytes, wantTotal)
	}
	if obs.started != 1 || obs.workers != 3 {
		t.Errorf("observer started %d times with %d workers", obs.started, obs.workers)
	}
	if len(obs.finished) != 1 || obs.finished[0] != wantTotal {
		t.Errorf("observer finished with %v, want [%d]", obs.finished, wantTotal)
	}

	_, done, failed, total := m.GetProgress()
	if done != 2 || failed != 2 || total != 4 {
		t.Errorf("GetProgress = %d/%d/%d, want 2/2/4", done, failed, total)
	}

	var sawDetail bool
	for _, e := range events {
		if e.Level == LevelVerbose && strings.Contains(e.Message, "<html></html>") {
			sawDetail = true
		}
	}
	if !sawDetail {
		t.Error("parse failure should report the page body as a verbose event")
	}
}

func TestManager_TaggingFailureKeepsDownload(t *testing.T) {
	// ID3v2.2 header, which the tagger cannot rewrite
	body := "ID3\x02\x00\x00\x00\x00\x00\x00" + mediaBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)

	podcast, err := model.NewPodcast("wfmu", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	var warnings []string
	var mu sync.Mutex
	m := NewManager(Config{
		Podcast:  podcast,
		Workers:  1,
		Resolver: mapResolver{"page-1": srv.URL + "/a.mp3"},
		Fetcher:  NewFetcher(dlhttp.NewClient(dlhttp.Options{})),
		Tagger:   audio.NewTagger(audio.DefaultTagConfig()),
	}, func(e ProgressEvent) {
		if e.Level == LevelWarning {
			mu.Lock()
			warnings = append(warnings, e.Message)
			mu.Unlock()
		}
	})

	summary, err := m.Run(context.Background(), []model.Episode{{Title: "A", SourceURL: "page-1"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(summary.Episodes) != 1 || summary.Failed != 0 {
		t.Fatalf("succeeded %d, failed %d; want 1 and 0", len(summary.Episodes), summary.Failed)
	}
	if summary.TotalBytes != int64(len(body)) {
		t.Errorf("TotalBytes = %d, want %d", summary.TotalBytes, len(body))
	}

	final := filepath.Join(podcast.Directory, "[1] A.mp3")
	got, err := os.ReadFile(final)
	if err != nil {
		t.Fatalf("final file: %v", err)
	}
	if string(got) != body {
		t.Error("untagged file should be published unchanged")
	}
	if _, err := os.Stat(final + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind: %v", err)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "Error tagging A") {
		t.Errorf("warnings = %q", warnings)
	}
}

func TestManager_ErrorStatus(t *testing.T) {
	podcast, err := model.NewPodcast("wfmu", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	var captured []*Status
	obs := observerFunc(func(statuses []*Status) { captured = statuses })
	m := NewManager(Config{
		Podcast:  podcast,
		Workers:  1,
		Resolver: mapResolver{},
		Fetcher:  NewFetcher(dlhttp.NewClient(dlhttp.Options{})),
		Observer: obs,
	}, nil)

	if _, err := m.Run(context.Background(), []model.Episode{{Title: "Lost", SourceURL: "nowhere"}}); err != nil {
		t.Fatal(err)
	}
	if got := captured[0].Text(); !strings.HasPrefix(got, "Error Lost: ") {
		t.Errorf("status = %q, want an error line for the episode", got)
	}
}

type observerFunc func([]*Status)

func (f observerFunc) Start(_ *model.Podcast, s []*Status) { f(s) }
func (observerFunc) Finish(int64)                         {}

func TestManager_SetupFailure(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "file")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatal(err)
	}

	m := NewManager(Config{
		Podcast:  &model.Podcast{Name: "wfmu", Directory: filepath.Join(blocker, "wfmu")},
		Resolver: mapResolver{},
		Fetcher:  NewFetcher(dlhttp.NewClient(dlhttp.Options{})),
	}, nil)

	_, err := m.Run(context.Background(), []model.Episode{{Title: "x"}})
	if model.KindOf(err) != model.KindFilesystem {
		t.Errorf("kind = %v (%v), want filesystem", model.KindOf(err), err)
	}
}

// TestManager_EndToEnd runs the real resolver against a TLS server that
// serves both the episode pages and the audio files.
func TestManager_EndToEnd(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewTLSServer(mux)
	t.Cleanup(srv.Close)
	host := strings.TrimPrefix(srv.URL, "https://")

	page := func(file string) string {
		return fmt.Sprintf(`<html><body><textarea id="playlist-data" style="display:none">{"audio":{"@attributes":{"url":"mp3:/media/%s"}},"mp4_server":"%s"}</textarea></body></html>`, file, host)
	}
	mux.HandleFunc("/page/a", func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, page("a.mp3")) })
	mux.HandleFunc("/page/b", func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, page("b.mp3")) })
	mux.HandleFunc("/media/a.mp3", func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, "audio-a") })
	mux.HandleFunc("/media/b.mp3", func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, "audio-bb") })

	client := dlhttp.NewClient(dlhttp.Options{Transport: srv.Client().Transport})
	podcast, err := model.NewPodcast("wfmu", filepath.Join(t.TempDir(), "downloads"))
	if err != nil {
		t.Fatal(err)
	}

	m := NewManager(Config{
		Podcast:  podcast,
		Workers:  1,
		Resolver: wfmu.NewResolver(client),
		Fetcher:  NewFetcher(client),
		Playlist: audio.NewPlaylistCreator(audio.FormatM3U, false),
	}, nil)

	summary, err := m.Run(context.Background(), []model.Episode{
		{Title: "A", SourceURL: srv.URL + "/page/a"},
		{Title: "B", SourceURL: srv.URL + "/page/b"},
	})
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]string{
		"[1] B.mp3": "audio-bb",
		"[2] A.mp3": "audio-a",
	}
	for name, content := range want {
		got, err := os.ReadFile(filepath.Join(podcast.Directory, name))
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if string(got) != content {
			t.Errorf("%s = %q, want %q", name, got, content)
		}
	}
	if summary.TotalBytes != int64(len("audio-a")+len("audio-bb")) {
		t.Errorf("TotalBytes = %d", summary.TotalBytes)
	}

	// a single worker completes in queue order
	if summary.Episodes[0].Title != "B" || summary.Episodes[1].Title != "A" {
		t.Errorf("completion order = %s, %s", summary.Episodes[0].Title, summary.Episodes[1].Title)
	}

	playlist, err := os.ReadFile(filepath.Join(podcast.Directory, "wfmu.m3u"))
	if err != nil {
		t.Fatal(err)
	}
	if string(playlist) != "[1] B.mp3\n[2] A.mp3\n" {
		t.Errorf("playlist = %q", playlist)
	}

	// a second run finds every file cached
	again, err := m.Run(context.Background(), []model.Episode{
		{Title: "A", SourceURL: srv.URL + "/page/a"},
		{Title: "B", SourceURL: srv.URL + "/page/b"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if again.TotalBytes != summary.TotalBytes {
		t.Errorf("second run TotalBytes = %d, want %d", again.TotalBytes, summary.TotalBytes)
	}
}

func TestNewManagerFromSettings(t *testing.T) {
	settings := config.DefaultSettings()
	settings.DownloadsPath = t.TempDir()
	settings.ModifyTags = true

	m, err := NewManagerFromSettings(settings, 0, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if m.cfg.Workers != DefaultWorkers {
		t.Errorf("Workers = %d, want %d", m.cfg.Workers, DefaultWorkers)
	}
	if m.cfg.Tagger == nil || m.cfg.Playlist != nil {
		t.Error("tagger and playlist should follow the settings")
	}
	if m.cfg.Podcast.Directory != filepath.Join(settings.DownloadsPath, "wfmu") {
		t.Errorf("Directory = %q", m.cfg.Podcast.Directory)
	}

	settings.PodcastName = ""
	if _, err := NewManagerFromSettings(settings, 1, nil, nil); err == nil {
		t.Error("expected error for empty podcast name")
	}
}
