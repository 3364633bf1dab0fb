// Package enrich turns search candidates into structured company profiles.
// It fetches site content through the scrape chain and runs an LLM
// extraction with a fixed schema; extraction is best-effort and a partial
// profile is always preferred over failing the candidate.
package enrich

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/internal/scrape"
	"github.com/sells-group/leadgen-cli/pkg/anthropic"
)

// ErrNoContent means no page could be fetched for the candidate, so there
// is nothing to extract from. Callers drop the candidate and move on.
var ErrNoContent = eris.New("enrich: no content could be fetched")

// ErrSchemaMismatch means the model output failed strict parsing twice.
// Internal to the extraction path; Enrich degrades to a partial profile
// instead of returning it.
var ErrSchemaMismatch = eris.New("enrich: extraction output failed schema parse")

// Fetcher collects page text for a company site. *scrape.Chain satisfies it.
type Fetcher interface {
	FetchSite(ctx context.Context, baseURL string, maxPages int) []scrape.Page
}

// Options bounds how much content is fetched and fed to extraction.
type Options struct {
	MaxPages        int
	MaxContentChars int
}

func (o Options) withDefaults() Options {
	if o.MaxPages <= 0 {
		o.MaxPages = 3
	}
	if o.MaxContentChars <= 0 {
		o.MaxContentChars = 9000
	}
	return o
}

// Enricher fetches candidate sites and extracts profiles.
type Enricher struct {
	fetcher Fetcher
	llm     anthropic.Client
	model   string
	opts    Options
	retry   resilience.RetryConfig
}

// New creates an Enricher using the given fetcher and extraction model.
func New(fetcher Fetcher, llm anthropic.Client, modelName string, opts Options) *Enricher {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("anthropic", "extract_profile")
	return &Enricher{
		fetcher: fetcher,
		llm:     llm,
		model:   modelName,
		opts:    opts.withDefaults(),
		retry:   retry,
	}
}

// Enrich fetches the candidate's site and extracts a profile. It returns
// ErrNoContent when nothing could be fetched; any other failure degrades to
// a partial profile built from the candidate itself. The returned profile
// always has CompanyName and WebsiteURL set, and Email when one could be
// extracted or guessed.
func (e *Enricher) Enrich(ctx context.Context, cand model.Candidate) (*model.Profile, error) {
	baseURL := model.BaseURL(cand.URL)
	if baseURL == "" {
		return nil, eris.Wrapf(ErrNoContent, "candidate %q has no usable url", cand.Name)
	}

	pages := e.fetcher.FetchSite(ctx, baseURL, e.opts.MaxPages)
	if len(pages) == 0 {
		return nil, eris.Wrapf(ErrNoContent, "all fetches failed for %s", baseURL)
	}

	content := combinePages(pages, e.opts.MaxContentChars)

	profile, err := e.extract(ctx, cand, content)
	if err != nil {
		zap.L().Warn("extraction failed, using partial profile",
			zap.String("candidate", cand.Name),
			zap.String("url", baseURL),
			zap.Error(err))
		profile = &model.Profile{}
	}

	fillFromCandidate(profile, cand, baseURL, pages)
	resolveEmail(profile, content, baseURL)
	return profile, nil
}

// combinePages concatenates page text with URL markers, capping each page
// so the total stays within maxChars.
func combinePages(pages []scrape.Page, maxChars int) string {
	perPage := maxChars / len(pages)
	if perPage < 500 {
		perPage = 500
	}

	var b strings.Builder
	for _, p := range pages {
		if b.Len() >= maxChars {
			break
		}
		fmt.Fprintf(&b, "=== %s ===\n%s\n\n", p.URL, truncateRunes(p.Content, perPage))
	}
	return truncateRunes(b.String(), maxChars)
}

// truncateRunes cuts s to at most max bytes without splitting a rune, so
// scraped text stays valid UTF-8 after the cap.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// fillFromCandidate backfills identity fields extraction left empty.
func fillFromCandidate(p *model.Profile, cand model.Candidate, baseURL string, pages []scrape.Page) {
	if p.CompanyName == "" {
		p.CompanyName = cand.Name
	}
	if p.CompanyName == "" && len(pages) > 0 {
		p.CompanyName = pages[0].Title
	}
	if p.WebsiteURL == "" {
		p.WebsiteURL = baseURL
	}
	if p.Description == "" {
		p.Description = cand.Snippet
	}
}

var emailScanRe = regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)

// resolveEmail ensures the profile carries a contact email: keep a valid
// extracted one, otherwise scan the page text, otherwise guess
// contact@<domain>. A guess keeps the candidate persistable; bad guesses
// bounce and are cheap.
func resolveEmail(p *model.Profile, content, baseURL string) {
	if model.ValidEmail(p.Email) {
		p.Email = model.NormalizeEmail(p.Email)
		return
	}
	p.Email = ""

	for _, match := range emailScanRe.FindAllString(content, 10) {
		if isAssetName(match) {
			continue
		}
		if model.ValidEmail(match) {
			p.Email = model.NormalizeEmail(match)
			return
		}
	}

	if host := model.NormalizeHost(baseURL); host != "" {
		p.Email = "contact@" + host
	}
}

// isAssetName filters regex hits that are really filenames (logo@2x.png).
func isAssetName(s string) bool {
	lower := strings.ToLower(s)
	for _, ext := range []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".css", ".js"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
