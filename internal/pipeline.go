package internal

import "context"

// LinkCollector walks the genre x page listing grid and returns review-page
// links in discovery order (genre config order, page ascending, document
// order within a page). Per-page failures are contained; the returned slice
// is whatever survived.
type LinkCollector interface {
	CollectLinks(ctx context.Context, req CollectRequest) ([]ReviewLink, error)
}

// ReviewScraper fetches and parses at most maxReviews links, in the order
// given, and returns the extracted reviews re-sorted by original link index
// plus a summary of contained failures. The bound counts links attempted,
// not rows produced.
type ReviewScraper interface {
	ScrapeReviews(ctx context.Context, links []ReviewLink, maxReviews int) ([]Review, ScrapeSummary, error)
}
