package enrich

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/scrape"
	"github.com/sells-group/leadgen-cli/pkg/anthropic"
)

type stubFetcher struct {
	pages []scrape.Page
	calls int
}

func (s *stubFetcher) FetchSite(_ context.Context, _ string, _ int) []scrape.Page {
	s.calls++
	return s.pages
}

type scriptedLLM struct {
	responses []string // consumed in order; "" means return an error
	reqs      []anthropic.MessageRequest
}

func (s *scriptedLLM) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	s.reqs = append(s.reqs, req)
	if len(s.responses) == 0 {
		return nil, errors.New("no scripted response")
	}
	next := s.responses[0]
	s.responses = s.responses[1:]
	if next == "" {
		return nil, errors.New("provider unavailable")
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: next}},
	}, nil
}

const goodExtraction = `{
	"company_name": "Acme Corp",
	"website_url": "https://acme.com",
	"description": "Industrial widget manufacturer.",
	"industry": "Manufacturing",
	"location": "Toledo, OH",
	"key_features": ["custom widgets", "fast turnaround"],
	"pain_points": ["manual quoting"],
	"email": "sales@acme.com"
}`

func acmeCandidate() model.Candidate {
	return model.Candidate{Name: "Acme Corp", URL: "https://acme.com", Source: "jina_search"}
}

func acmePages() []scrape.Page {
	return []scrape.Page{
		{URL: "https://acme.com", Title: "Acme Corp", Content: strings.Repeat("Acme builds widgets. ", 30)},
		{URL: "https://acme.com/about", Title: "About", Content: "Founded 1987 in Toledo."},
	}
}

func TestEnrich_FullExtraction(t *testing.T) {
	fetcher := &stubFetcher{pages: acmePages()}
	llm := &scriptedLLM{responses: []string{goodExtraction}}
	e := New(fetcher, llm, "test-model", Options{})

	profile, err := e.Enrich(context.Background(), acmeCandidate())

	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", profile.CompanyName)
	assert.Equal(t, "sales@acme.com", profile.Email)
	assert.Equal(t, "Manufacturing", profile.Industry)
	assert.Len(t, llm.reqs, 1)
	assert.Contains(t, llm.reqs[0].Messages[0].Content, "Acme builds widgets")
}

func TestEnrich_NoUsableURL(t *testing.T) {
	e := New(&stubFetcher{}, &scriptedLLM{}, "test-model", Options{})

	_, err := e.Enrich(context.Background(), model.Candidate{Name: "Nameless Co"})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestEnrich_AllFetchesFail(t *testing.T) {
	fetcher := &stubFetcher{pages: nil}
	e := New(fetcher, &scriptedLLM{}, "test-model", Options{})

	_, err := e.Enrich(context.Background(), acmeCandidate())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoContent)
	assert.Equal(t, 1, fetcher.calls)
}

func TestEnrich_SchemaMismatchRetriesOnceThenPartial(t *testing.T) {
	fetcher := &stubFetcher{pages: acmePages()}
	llm := &scriptedLLM{responses: []string{"I think this company makes widgets.", "still not json"}}
	e := New(fetcher, llm, "test-model", Options{})

	profile, err := e.Enrich(context.Background(), acmeCandidate())

	require.NoError(t, err)
	require.Len(t, llm.reqs, 2, "exactly one stricter retry")
	assert.Contains(t, llm.reqs[1].System, "IMPORTANT")
	// Partial profile built from the candidate itself.
	assert.Equal(t, "Acme Corp", profile.CompanyName)
	assert.Equal(t, "https://acme.com", profile.WebsiteURL)
}

func TestEnrich_SchemaMismatchRecoveredOnRetry(t *testing.T) {
	fetcher := &stubFetcher{pages: acmePages()}
	llm := &scriptedLLM{responses: []string{"not json", goodExtraction}}
	e := New(fetcher, llm, "test-model", Options{})

	profile, err := e.Enrich(context.Background(), acmeCandidate())

	require.NoError(t, err)
	assert.Equal(t, "sales@acme.com", profile.Email)
	assert.Len(t, llm.reqs, 2)
}

func TestEnrich_FencedJSONAccepted(t *testing.T) {
	fetcher := &stubFetcher{pages: acmePages()}
	llm := &scriptedLLM{responses: []string{"```json\n" + goodExtraction + "\n```"}}
	e := New(fetcher, llm, "test-model", Options{})

	profile, err := e.Enrich(context.Background(), acmeCandidate())

	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", profile.CompanyName)
	assert.Len(t, llm.reqs, 1)
}

func TestResolveEmail_ScansContent(t *testing.T) {
	p := &model.Profile{}
	content := "Questions? Write to hello@acme.com or call us. Logo: logo@2x.png"

	resolveEmail(p, content, "https://acme.com")

	assert.Equal(t, "hello@acme.com", p.Email)
}

func TestResolveEmail_SkipsAssetNames(t *testing.T) {
	p := &model.Profile{}
	content := "Our hero image is hero@2x.png and nothing else."

	resolveEmail(p, content, "https://www.acme.com")

	assert.Equal(t, "contact@acme.com", p.Email)
}

func TestResolveEmail_GuessesFromDomain(t *testing.T) {
	p := &model.Profile{}

	resolveEmail(p, "no emails anywhere in this text", "https://www.globex.io")

	assert.Equal(t, "contact@globex.io", p.Email)
}

func TestResolveEmail_KeepsValidExtractedEmail(t *testing.T) {
	p := &model.Profile{Email: "Sales@Acme.com"}

	resolveEmail(p, "other@elsewhere.com", "https://acme.com")

	assert.Equal(t, "sales@acme.com", p.Email)
}

func TestResolveEmail_DiscardsInvalidExtractedEmail(t *testing.T) {
	p := &model.Profile{Email: "not-an-email"}

	resolveEmail(p, "contact us at info@acme.com today", "https://acme.com")

	assert.Equal(t, "info@acme.com", p.Email)
}

func TestCombinePages_CapsTotal(t *testing.T) {
	pages := []scrape.Page{
		{URL: "https://a.com", Content: strings.Repeat("x", 5000)},
		{URL: "https://a.com/about", Content: strings.Repeat("y", 5000)},
	}

	combined := combinePages(pages, 2000)

	assert.LessOrEqual(t, len(combined), 2000)
	assert.Contains(t, combined, "https://a.com")
}

func TestCombinePages_TruncatesOnRuneBoundary(t *testing.T) {
	// Multi-byte content sized so a byte-offset cut would land mid-rune.
	pages := []scrape.Page{
		{URL: "https://a.com", Content: strings.Repeat("ü", 2000)},
		{URL: "https://a.com/about", Content: strings.Repeat("日本語", 1500)},
	}

	for _, max := range []int{999, 1000, 1001, 2000, 2048} {
		combined := combinePages(pages, max)
		assert.LessOrEqual(t, len(combined), max)
		assert.True(t, utf8.ValidString(combined), "max=%d produced invalid UTF-8", max)
	}
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "日本", truncateRunes("日本語", 7))
	assert.Equal(t, "日本", truncateRunes("日本語", 8))
	assert.Equal(t, "日本語", truncateRunes("日本語", 9))
	assert.Equal(t, "abc", truncateRunes("abc", 10))
	assert.Equal(t, "", truncateRunes("語", 2))
}
