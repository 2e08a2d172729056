package download

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/handiism/wfmu-downloader/internal/http"
	ioutils "github.com/handiism/wfmu-downloader/internal/io"
	"github.com/handiism/wfmu-downloader/internal/model"
)

// Progress is a snapshot of one file transfer.
type Progress struct {
	Received int64
	// Total is the Content-Length of the response, or -1 when unknown.
	Total int64
}

// Percent returns floor(100 * Received / Total), or -1 when Total is unknown.
func (p Progress) Percent() int {
	if p.Total <= 0 {
		return -1
	}
	return int(p.Received * 100 / p.Total)
}

// FetchRequest describes one file transfer.
type FetchRequest struct {
	URL      string
	TempPath string
	Path     string

	// OnProgress is called after every chunk written to TempPath.
	OnProgress func(Progress)

	// BeforePublish runs on the completed temp file, before it is moved to Path.
	BeforePublish func(tempPath string) error
}

// FetchResult reports the outcome of a successful fetch.
type FetchResult struct {
	Size int64
	// Cached is true when Path already existed and nothing was downloaded.
	Cached bool
}

// FileFetcher downloads a remote file to its final path.
type FileFetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (FetchResult, error)
}

// Fetcher streams remote files into a temp file and publishes them with a rename.
//
// A file already present at the final path is never fetched again, so a
// partial run can simply be repeated.
//
// Example:
//
//	f := download.NewFetcher(http.NewClient(http.Options{}))
//	res, err := f.Fetch(ctx, download.FetchRequest{
//	    URL:      ep.MediaURL,
//	    TempPath: ep.TempPath,
//	    Path:     ep.Path,
//	})
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher using client for requests.
func NewFetcher(client *http.Client) *Fetcher {
	return &Fetcher{client: client}
}

// Fetch downloads req.URL to req.Path.
//
// If req.Path exists its size is returned without any network access.
// Otherwise the response is streamed to req.TempPath, which is then moved
// over req.Path. A transfer that fails mid-stream leaves the temp file behind.
func (f *Fetcher) Fetch(ctx context.Context, req FetchRequest) (FetchResult, error) {
	if size, ok := ioutils.CachedSize(req.Path); ok {
		return FetchResult{Size: size, Cached: true}, nil
	}

	resp, err := f.client.Open(ctx, req.URL)
	if err != nil {
		return FetchResult{}, err
	}
	defer resp.Body.Close()

	tmp, err := os.Create(req.TempPath)
	if err != nil {
		return FetchResult{}, model.NewError(model.KindFilesystem, "create temp file", err)
	}

	total := resp.ContentLength
	if total <= 0 {
		total = -1
	}
	pw := &http.ProgressWriter{
		Writer: tmp,
		Total:  total,
		OnUpdate: func(written, total int64) {
			if req.OnProgress != nil {
				req.OnProgress(Progress{Received: written, Total: total})
			}
		},
	}

	if _, err := io.Copy(pw, resp.Body); err != nil {
		tmp.Close()
		var pe *fs.PathError
		if errors.As(err, &pe) {
			return FetchResult{}, model.NewError(model.KindFilesystem, "write temp file", err)
		}
		return FetchResult{}, &model.Error{Kind: model.KindNetwork, Op: "download", URL: req.URL, Err: err}
	}

	if err := tmp.Close(); err != nil {
		return FetchResult{}, model.NewError(model.KindFilesystem, "close temp file", err)
	}

	if req.BeforePublish != nil {
		if err := req.BeforePublish(req.TempPath); err != nil {
			return FetchResult{}, model.NewError(model.KindFilesystem, "prepare file", err)
		}
	}

	size, err := ioutils.Publish(req.TempPath, req.Path)
	if err != nil {
		return FetchResult{}, model.NewError(model.KindFilesystem, "publish", err)
	}
	return FetchResult{Size: size}, nil
}
