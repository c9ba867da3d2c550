package internal

// ReviewLink is a discovered review-page URL tagged with the genre of the
// listing it came from. Links are read-only once discovered; duplicates are
// possible when the source site repeats entries across pages and are kept.
type ReviewLink struct {
	URL   string `json:"url"`
	Genre string `json:"genre"`
}

// Review is one extracted viewer review. Score is the integer star count
// (0-5); Date is the raw locale-formatted date string with the fixed
// weekday/ordinal prefix already stripped.
type Review struct {
	ID       string `json:"id"`
	Score    int    `json:"score"`
	Critique string `json:"critique"`
	Date     string `json:"date"`
	Genre    string `json:"genre"`
}

// Genre pairs a human-readable genre name with the site's numeric slug.
type Genre struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// CollectRequest bounds one link-discovery run. Genre order matters: it
// decides which links survive a review cap downstream.
type CollectRequest struct {
	Genres    []Genre `json:"genres"`
	CountryID string  `json:"country_id"`
	MaxPages  int     `json:"max_pages"`
}

// ScrapeSummary reports how a review-scrape run went. Per-link failures are
// contained, so a run can finish with Failed > 0.
type ScrapeSummary struct {
	LinksAttempted int `json:"links_attempted"`
	LinksFailed    int `json:"links_failed"`
	Reviews        int `json:"reviews"`
}
