// Package scrape provides chained web scraping for candidate company sites.
// Scrapers are tried in priority order (Firecrawl, then Jina Reader, then a
// plain HTTP fetch) so a provider outage degrades instead of dropping the
// candidate.
package scrape

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Chain tries scrapers in priority order, returning the first success.
type Chain struct {
	scrapers []Scraper
}

// NewChain creates a Chain with the given scrapers. Scrapers are tried in
// order; the first successful result is returned.
func NewChain(scrapers ...Scraper) *Chain {
	return &Chain{scrapers: scrapers}
}

// Scrape tries each scraper in order for a single URL.
// Returns the first successful result, or an error if all fail.
func (c *Chain) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	var lastErr error
	for _, s := range c.scrapers {
		if !s.Supports(targetURL) {
			continue
		}
		result, err := s.Scrape(ctx, targetURL)
		if err == nil && result != nil {
			return result, nil
		}
		if err != nil {
			zap.L().Debug("scrape: scraper failed, trying next",
				zap.String("scraper", s.Name()),
				zap.String("url", targetURL),
				zap.Error(err),
			)
			lastErr = err
		}
	}
	if lastErr != nil {
		return nil, eris.Wrap(lastErr, "scrape: all scrapers failed")
	}
	return nil, eris.Errorf("scrape: no suitable scraper for url: %s", targetURL)
}

// sitePaths are probed after the homepage when collecting content for
// extraction. Contact details usually live on one of these.
var sitePaths = []string{"/about", "/contact", "/company", "/team"}

// FetchSite collects up to maxPages of text for a company site: the homepage
// first, then common informational paths. Failed pages are skipped; an empty
// slice means nothing could be fetched. The homepage is fetched through the
// full chain; secondary paths are best-effort.
func (c *Chain) FetchSite(ctx context.Context, baseURL string, maxPages int) []Page {
	if maxPages <= 0 {
		maxPages = 1
	}

	var pages []Page

	home, err := c.Scrape(ctx, baseURL)
	if err != nil {
		zap.L().Debug("scrape: homepage fetch failed",
			zap.String("url", baseURL),
			zap.Error(err),
		)
	} else {
		pages = append(pages, home.Page)
	}

	for _, path := range sitePaths {
		if len(pages) >= maxPages {
			break
		}
		if ctx.Err() != nil {
			break
		}
		result, err := c.Scrape(ctx, baseURL+path)
		if err != nil {
			continue
		}
		pages = append(pages, result.Page)
	}

	return pages
}
