package wfmu

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/gocolly/colly/v2"
	"github.com/handiism/wfmu-downloader/internal/model"
)

// DefaultArchiveURL is the playlist archive page of the default show.
const DefaultArchiveURL = "https://wfmu.org/playlists/BS"

// episodeLinkSelector matches the "Listen" player links of an archive page.
const episodeLinkSelector = `a[href^="/flashplayer.php"]`

var newlineRun = regexp.MustCompile(`\n+`)

// Lister produces the ordered episode listing of an archive page.
type Lister interface {
	List(ctx context.Context, archiveURL string) ([]model.Episode, error)
}

// CollyLister reads the archive page as static HTML.
type CollyLister struct {
	UserAgent string
}

// List visits archiveURL and returns one episode per player link, in page order.
func (l *CollyLister) List(ctx context.Context, archiveURL string) ([]model.Episode, error) {
	base, err := url.Parse(archiveURL)
	if err != nil {
		return nil, fmt.Errorf("parse archive url: %w", err)
	}

	opts := []colly.CollectorOption{colly.StdlibContext(ctx)}
	if l.UserAgent != "" {
		opts = append(opts, colly.UserAgent(l.UserAgent))
	}
	c := colly.NewCollector(opts...)

	var episodes []model.Episode
	var scrapeErr error

	c.OnHTML(episodeLinkSelector, func(e *colly.HTMLElement) {
		if ep, ok := episodeFromLink(e.DOM, base); ok {
			episodes = append(episodes, ep)
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			scrapeErr = fmt.Errorf("HTTP %d fetching %s: %w", r.StatusCode, archiveURL, err)
		} else {
			scrapeErr = fmt.Errorf("fetch %s: %w", archiveURL, err)
		}
	})

	if err := c.Visit(archiveURL); err != nil && scrapeErr == nil {
		scrapeErr = fmt.Errorf("visit %s: %w", archiveURL, err)
	}
	if scrapeErr != nil {
		return nil, scrapeErr
	}
	return episodes, nil
}

// BrowserLister renders the archive page in a headless browser before
// reading the links, for pages that build their listing with JavaScript.
type BrowserLister struct{}

// List launches a headless browser, loads archiveURL and parses the rendered DOM.
func (BrowserLister) List(ctx context.Context, archiveURL string) ([]model.Episode, error) {
	l := launcher.New().
		Headless(true).
		NoSandbox(true).
		Set("disable-gpu", "").
		Set("disable-dev-shm-usage", "")
	defer l.Kill()

	controlURL, err := l.Context(ctx).Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{URL: archiveURL})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", archiveURL, err)
	}
	defer page.Close()

	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}

	rendered, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("read rendered page: %w", err)
	}

	return ParseEpisodes(strings.NewReader(rendered), archiveURL)
}

// ParseEpisodes reads an archive page and returns its episodes in page order.
// Relative links are resolved against baseURL.
func ParseEpisodes(r io.Reader, baseURL string) ([]model.Episode, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse archive url: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse archive page: %w", err)
	}

	var episodes []model.Episode
	doc.Find(episodeLinkSelector).Each(func(_ int, s *goquery.Selection) {
		if ep, ok := episodeFromLink(s, base); ok {
			episodes = append(episodes, ep)
		}
	})
	return episodes, nil
}

// episodeFromLink builds an episode from a player link. The title is the
// text of the link's parent, before "| Listen:" and before the first colon.
func episodeFromLink(link *goquery.Selection, base *url.URL) (model.Episode, bool) {
	href, ok := link.Attr("href")
	if !ok {
		return model.Episode{}, false
	}
	u, err := base.Parse(href)
	if err != nil {
		return model.Episode{}, false
	}

	return model.Episode{
		Title:     EpisodeTitle(link.Parent().Text()),
		SourceURL: u.String(),
	}, true
}

// EpisodeTitle derives an episode title from its archive entry text.
//
// Example:
//
//	EpisodeTitle("November 3, 2023: Rare grooves\n| Listen: MP3") // "November 3, 2023"
func EpisodeTitle(text string) string {
	text, _, _ = strings.Cut(text, "| Listen:")
	text = strings.TrimSpace(text)
	if loc := newlineRun.FindStringIndex(text); loc != nil {
		text = text[:loc[0]] + " " + text[loc[1]:]
	}
	text, _, _ = strings.Cut(text, ":")
	return strings.TrimSpace(text)
}
