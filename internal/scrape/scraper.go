package scrape

import "context"

// Page holds the text content fetched from one URL.
type Page struct {
	URL        string `json:"url"`
	Title      string `json:"title,omitempty"`
	Content    string `json:"content"`
	StatusCode int    `json:"status_code,omitempty"`
}

// Result holds a scraped page with its source.
type Result struct {
	Page   Page
	Source string // e.g. "firecrawl", "jina", "local_http"
}

// Scraper fetches a single URL and returns its content.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*Result, error)
	Name() string
	// Supports reports whether the scraper is currently willing to attempt
	// the URL (circuit breakers report false while open).
	Supports(url string) bool
}
