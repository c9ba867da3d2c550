package reviews

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
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/fmercier/allocine-scraper/internal"
	"github.com/fmercier/allocine-scraper/internal/httputil"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultConcurrency = 4

	scoreSelector    = "span.stareval-note"
	critiqueSelector = "div.review-card-content"
	dateSelector     = "span.review-card-meta-date.light"

	// datePrefixTokens is how many leading whitespace-delimited tokens of
	// the review metadata text are discarded ("Publiée le 12 juin 2021"
	// keeps "12 juin 2021").
	datePrefixTokens = 2
)

var errReviewRequestFailed = errors.New("review request failed")

type fetcher struct {
	httpClient    *http.Client
	concurrency   int
	uuidNamespace uuid.UUID
}

// Option applies configuration to a review fetcher.
type Option func(*fetcher)

// WithClient sets the HTTP client (e.g. httptest.Server.Client() in tests).
func WithClient(client *http.Client) Option {
	return func(f *fetcher) {
		if client != nil {
			f.httpClient = client
		}
	}
}

// WithConcurrency bounds how many review pages are fetched at once.
func WithConcurrency(n int) Option {
	return func(f *fetcher) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

// New returns a ReviewScraper. The default client carries a bounded request
// timeout and an in-memory response cache so duplicate links discovered
// across listing pages are fetched once.
func New(opts ...Option) internal.ReviewScraper {
	f := &fetcher{
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.httpClient == nil {
		f.httpClient = &http.Client{
			Timeout:   defaultTimeout,
			Transport: &httputil.CacheTransport{},
		}
	}
	f.uuidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("review"))
	return f
}

// ScrapeReviews fetches at most maxReviews links through a bounded worker
// pool.
// One link's failure never aborts the rest; failures are counted into the
// summary. Results are re-assembled in original link order so a parallel
// run yields the same rows as a sequential one.
func (f *fetcher) ScrapeReviews(ctx context.Context, links []internal.ReviewLink, maxReviews int) ([]internal.Review, internal.ScrapeSummary, error) {
	if maxReviews >= 0 && len(links) > maxReviews {
		links = links[:maxReviews]
	}
	if len(links) == 0 {
		return nil, internal.ScrapeSummary{}, nil
	}

	perLink := make([][]internal.Review, len(links))
	var (
		mu     sync.Mutex
		failed int
	)

	sem := make(chan struct{}, f.concurrency)
	var wg sync.WaitGroup
	for i, link := range links {
		if err := ctx.Err(); err != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(i int, link internal.ReviewLink) {
			defer wg.Done()
			defer func() { <-sem }()
			rs, err := f.scrapeOne(ctx, i, link)
			if err != nil {
				slog.Warn("scrape-reviews: link failed, skipping", "url", link.URL, "error", err)
				mu.Lock()
				failed++
				mu.Unlock()
				return
			}
			perLink[i] = rs
		}(i, link)
	}
	wg.Wait()

	var out []internal.Review
	for _, rs := range perLink {
		out = append(out, rs...)
	}
	summary := internal.ScrapeSummary{
		LinksAttempted: len(links),
		LinksFailed:    failed,
		Reviews:        len(out),
	}
	slog.Info("scrape-reviews: done",
		"links", summary.LinksAttempted,
		"failed", summary.LinksFailed,
		"reviews", summary.Reviews,
	)
	return out, summary, ctx.Err()
}

func (f *fetcher) scrapeOne(ctx context.Context, index int, link internal.ReviewLink) ([]internal.Review, error) {
	pageURL, err := firstResultsPage(link.URL)
	if err != nil {
		return nil, fmt.Errorf("build page url: %w", err)
	}
	slog.Debug("scrape-reviews: fetching", "index", index+1, "url", pageURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get review page: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", errReviewRequestFailed, resp.Status)
	}

	return f.parseReviewPage(string(body), link), nil
}

// firstResultsPage pins a review link to its first results page.
func firstResultsPage(link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("page", "1")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// parseReviewPage locates the three independent node sets of a review page
// and pairs them positionally: the i-th score belongs to the i-th critique
// and the i-th date. When the sets disagree in length only the overlapping
// prefix produces rows; the mismatch is logged so template drift is visible.
// A review whose score text does not parse is discarded whole, keeping the
// four output columns aligned.
func (f *fetcher) parseReviewPage(html string, link internal.ReviewLink) []internal.Review {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		slog.Warn("scrape-reviews: document parse failed", "url", link.URL, "error", err)
		return nil
	}

	scores := doc.Find(scoreSelector)
	critiques := doc.Find(critiqueSelector)
	dates := doc.Find(dateSelector)

	n := min(scores.Length(), critiques.Length(), dates.Length())
	if scores.Length() != critiques.Length() || critiques.Length() != dates.Length() {
		slog.Warn("scrape-reviews: node sets differ, truncating to overlap",
			"url", link.URL,
			"scores", scores.Length(),
			"critiques", critiques.Length(),
			"dates", dates.Length(),
		)
	}

	reviews := make([]internal.Review, 0, n)
	for i := 0; i < n; i++ {
		score, ok := parseScore(scores.Eq(i).Text())
		if !ok {
			slog.Debug("scrape-reviews: unparseable score, dropping review", "url", link.URL, "index", i)
			continue
		}
		reviews = append(reviews, internal.Review{
			ID:       uuid.NewSHA1(f.uuidNamespace, []byte(link.URL+"#"+strconv.Itoa(i))).String(),
			Score:    score,
			Critique: strings.TrimSpace(critiques.Eq(i).Text()),
			Date:     stripDatePrefix(dates.Eq(i).Text()),
			Genre:    link.Genre,
		})
	}
	if n == 0 {
		slog.Debug("scrape-reviews: no review nodes on page", "url", link.URL)
	}
	return reviews
}

// parseScore extracts the integer star count from rating text like "4,0".
// The integer portion before the locale decimal separator is what counts.
func parseScore(text string) (int, bool) {
	s := strings.TrimSpace(text)
	if i := strings.IndexAny(s, ",."); i >= 0 {
		s = s[:i]
	}
	score, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || score < 0 || score > 5 {
		return 0, false
	}
	return score, true
}

// stripDatePrefix drops the fixed leading tokens of the review metadata
// text, keeping the locale-formatted date itself.
func stripDatePrefix(text string) string {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) <= datePrefixTokens {
		return ""
	}
	return strings.Join(fields[datePrefixTokens:], " ")
}
