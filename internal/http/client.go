package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/handiism/wfmu-downloader/internal/model"
)

// DefaultMaxRedirects is the redirect hop limit used when Options leaves it unset.
const DefaultMaxRedirects = 10

// ErrTooManyRedirects is returned when a redirect chain exceeds the hop limit.
var ErrTooManyRedirects = errors.New("too many redirects")

// StatusError is an HTTP response with a status code of 400 or above
// (or a redirect without a Location header).
type StatusError struct {
	Code   int
	Status string
	URL    string
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return "HTTP " + e.Status
	}
	return fmt.Sprintf("HTTP %d", e.Code)
}

// Options configures a Client.
type Options struct {
	// UserAgent is sent with every request. Defaults to "wfmu-downloader".
	UserAgent string

	// MaxRedirects is the number of redirect hops followed before failing.
	// Zero means DefaultMaxRedirects; a negative value disables redirects.
	MaxRedirects int

	// Timeout bounds each request including the body. Zero means no timeout,
	// which suits multi-hour audio files.
	Timeout time.Duration

	// Transport overrides the underlying round tripper (tests).
	Transport http.RoundTripper
}

// Client wraps HTTP operations used by the downloader.
//
// Client provides:
//   - Configured User-Agent header
//   - Redirect following with relative Location support and a hop limit
//   - Status codes of 400 and above reported as classified errors
//
// Redirects are followed by hand rather than by net/http so that every hop
// is visible to the caller's hop limit and error classification.
//
// Example usage:
//
//	client := NewClient(Options{})
//
//	html, err := client.GetString(ctx, "https://wfmu.org/flashplayer.php?show=1")
//
//	resp, err := client.Open(ctx, mediaURL)
//	defer resp.Body.Close()
type Client struct {
	httpClient   *http.Client
	userAgent    string
	maxRedirects int
}

// NewClient creates a new HTTP client from opts.
func NewClient(opts Options) *Client {
	if opts.UserAgent == "" {
		opts.UserAgent = "wfmu-downloader"
	}
	switch {
	case opts.MaxRedirects == 0:
		opts.MaxRedirects = DefaultMaxRedirects
	case opts.MaxRedirects < 0:
		opts.MaxRedirects = 0
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: opts.Transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		userAgent:    opts.UserAgent,
		maxRedirects: opts.MaxRedirects,
	}
}

// ProgressWriter wraps a writer to track download progress.
//
// Use this to monitor large downloads by providing an OnUpdate callback
// that receives the current bytes written and total expected bytes.
// Total is -1 when the server did not send a usable Content-Length.
//
// Example:
//
//	pw := &ProgressWriter{
//	    Writer: file,
//	    Total:  resp.ContentLength,
//	    OnUpdate: func(written, total int64) {
//	        fmt.Printf("%d / %d bytes\n", written, total)
//	    },
//	}
//	io.Copy(pw, resp.Body)
type ProgressWriter struct {
	// Writer is the underlying writer to write data to.
	Writer io.Writer

	// Total is the expected total bytes (from Content-Length header).
	Total int64

	// Written is the current number of bytes written.
	Written int64

	// OnUpdate is called after each Write with current progress.
	// Parameters are (bytesWritten, totalExpected).
	OnUpdate func(written, total int64)
}

// Write implements io.Writer, tracking progress and calling OnUpdate.
func (pw *ProgressWriter) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	pw.Written += int64(n)
	if pw.OnUpdate != nil {
		pw.OnUpdate(pw.Written, pw.Total)
	}
	return n, err
}

// Open performs a GET request, following redirects, and returns the first
// non-redirect response with a status below 400.
//
// The caller must close the response body.
//
// Returns a *model.Error if:
//   - The request cannot be built or sent (KindNetwork)
//   - The final status is 404 (KindNotFound) or any other code of 400 and above (KindNetwork)
//   - The redirect chain is longer than the hop limit (KindNetwork, ErrTooManyRedirects)
func (c *Client) Open(ctx context.Context, rawURL string) (*http.Response, error) {
	current, err := url.Parse(rawURL)
	if err != nil {
		return nil, &model.Error{Kind: model.KindNetwork, Op: "GET", URL: rawURL, Err: err}
	}

	for hops := 0; ; hops++ {
		resp, err := c.do(ctx, current.String())
		if err != nil {
			return nil, &model.Error{Kind: model.KindNetwork, Op: "GET", URL: current.String(), Err: err}
		}

		if isRedirect(resp.StatusCode) {
			loc := resp.Header.Get("Location")
			resp.Body.Close()

			if loc == "" {
				return nil, statusError(resp, current.String())
			}
			if hops >= c.maxRedirects {
				return nil, &model.Error{Kind: model.KindNetwork, Op: "GET", URL: rawURL,
					Err: fmt.Errorf("%w: more than %d hops", ErrTooManyRedirects, c.maxRedirects)}
			}

			next, err := current.Parse(loc)
			if err != nil {
				return nil, &model.Error{Kind: model.KindNetwork, Op: "redirect", URL: current.String(), Err: err}
			}
			current = next
			continue
		}

		if resp.StatusCode >= http.StatusBadRequest {
			resp.Body.Close()
			return nil, statusError(resp, current.String())
		}

		return resp, nil
	}
}

// GetString performs a GET request, following redirects, and returns the
// whole response body as a string.
//
// Example:
//
//	html, err := client.GetString(ctx, "https://wfmu.org/playlists/BS")
func (c *Client) GetString(ctx context.Context, rawURL string) (string, error) {
	resp, err := c.Open(ctx, rawURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &model.Error{Kind: model.KindNetwork, Op: "read body", URL: resp.Request.URL.String(), Err: err}
	}
	return string(body), nil
}

func (c *Client) do(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	return c.httpClient.Do(req)
}

func isRedirect(code int) bool {
	return code >= http.StatusMultipleChoices && code < http.StatusBadRequest && code != http.StatusNotModified
}

func statusError(resp *http.Response, rawURL string) error {
	kind := model.KindNetwork
	if resp.StatusCode == http.StatusNotFound {
		kind = model.KindNotFound
	}
	return &model.Error{
		Kind: kind,
		Op:   "GET",
		URL:  rawURL,
		Err:  &StatusError{Code: resp.StatusCode, Status: resp.Status, URL: rawURL},
	}
}
