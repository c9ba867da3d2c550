package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/fmercier/allocine-scraper/internal"
	"github.com/fmercier/allocine-scraper/internal/browser"
)

const (
	defaultBaseURL = "https://www.allocine.fr"

	// listingAnchorSelector matches the rating-title anchors of a listing
	// page. The site template renders two such anchors per movie entry: an
	// informational duplicate first, then the viewer-review link. Only the
	// second of each pair is a candidate, and only when its visible text
	// carries the viewer-review marker.
	listingAnchorSelector = "a.xXx.rating-title"

	// viewerMarker is the lowercase substring identifying viewer-review
	// anchors ("1 234 critiques spectateurs" and similar).
	viewerMarker = "spectateurs"
)

var errListingRequestFailed = errors.New("listing request failed")

type linkCollector struct {
	baseURL         string
	httpClient      *http.Client      // non-nil = direct HTTP (tests)
	headlessBrowser browser.Interface // nil = lazily acquired browser.Headless()
}

// Option applies configuration to a link collector.
type Option func(*linkCollector)

// WithBaseURL sets the listing base URL (e.g. httptest.Server.URL in tests).
func WithBaseURL(baseURL string) Option {
	return func(c *linkCollector) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithClient sets the HTTP client for the collector (e.g.
// httptest.Server.Client() in tests). When set, listing pages are fetched
// with direct HTTP instead of a headless browser.
func WithClient(client *http.Client) Option {
	return func(c *linkCollector) {
		if client != nil {
			c.httpClient = client
			c.headlessBrowser = nil
		}
	}
}

// WithBrowser injects the browser session used when collecting without an
// HTTP client. The caller keeps ownership: Close is not called here.
func WithBrowser(b browser.Interface) Option {
	return func(c *linkCollector) {
		if b != nil {
			c.headlessBrowser = b
			c.httpClient = nil
		}
	}
}

// New returns a LinkCollector over the configured site. Without an injected
// client or browser it owns a headless browser session, acquired on first
// use and released when CollectLinks returns.
func New(opts ...Option) internal.LinkCollector {
	c := &linkCollector{
		baseURL: defaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CollectLinks walks every (genre, page) pair up to req.MaxPages and
// accumulates viewer-review links in discovery order. A page that times out
// or fails to parse yields nothing and the walk continues; pages past the
// data's actual end simply contribute zero links. Only a cancelled context
// aborts the walk.
func (c *linkCollector) CollectLinks(ctx context.Context, req internal.CollectRequest) ([]internal.ReviewLink, error) {
	if len(req.Genres) == 0 {
		return nil, errors.New("no genres configured")
	}
	if req.MaxPages <= 0 {
		return nil, fmt.Errorf("max pages must be positive, got %d", req.MaxPages)
	}

	b := c.headlessBrowser
	if c.httpClient == nil && b == nil {
		b = browser.Headless()
		defer func() {
			if err := b.Close(); err != nil {
				slog.Warn("collect-links: browser close failed", "error", err)
			}
		}()
	}

	var links []internal.ReviewLink
	var pagesFailed int
	for _, genre := range req.Genres {
		for page := 1; page <= req.MaxPages; page++ {
			if err := ctx.Err(); err != nil {
				return links, err
			}
			pageURL := c.listingURL(genre.ID, req.CountryID, page)
			html, err := c.fetchListing(ctx, b, pageURL)
			if err != nil {
				pagesFailed++
				if errors.Is(err, browser.ErrPageTimeout) {
					slog.Warn("collect-links: page timed out, skipping", "genre", genre.Name, "page", page)
				} else {
					slog.Warn("collect-links: page fetch failed, skipping", "genre", genre.Name, "page", page, "error", err)
				}
				continue
			}
			found := extractReviewLinks(html, c.baseURL, genre.Name)
			slog.Debug("collect-links: page parsed", "genre", genre.Name, "page", page, "links", len(found))
			links = append(links, found...)
		}
	}
	slog.Info("collect-links: done", "links", len(links), "pages_failed", pagesFailed)
	return links, nil
}

func (c *linkCollector) listingURL(genreID, countryID string, page int) string {
	u, _ := url.Parse(c.baseURL)
	u.Path = "/films/genre-" + genreID + "/pays-" + countryID + "/"
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *linkCollector) fetchListing(ctx context.Context, b browser.Interface, pageURL string) (string, error) {
	if c.httpClient != nil {
		return c.fetchListingViaHTTP(ctx, pageURL)
	}
	return b.PageHTML(ctx, pageURL)
}

func (c *linkCollector) fetchListingViaHTTP(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("get listing: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s", errListingRequestFailed, resp.Status)
	}
	return string(body), nil
}

// extractReviewLinks pulls viewer-review hrefs out of a rendered listing
// document. The template emits anchors in pairs per movie, so only
// odd-indexed matches are considered, then filtered by the viewer marker.
// A malformed document yields zero links, never an error.
func extractReviewLinks(html, baseURL, genreName string) []internal.ReviewLink {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		slog.Warn("collect-links: document parse failed", "genre", genreName, "error", err)
		return nil
	}

	var links []internal.ReviewLink
	doc.Find(listingAnchorSelector).Each(func(i int, sel *goquery.Selection) {
		if i%2 == 0 {
			return
		}
		text := strings.ToLower(strings.TrimSpace(sel.Text()))
		if !strings.Contains(text, viewerMarker) {
			return
		}
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		links = append(links, internal.ReviewLink{
			URL:   absoluteURL(baseURL, href),
			Genre: genreName,
		})
	})
	return links
}

func absoluteURL(baseURL, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(href, "/")
}
