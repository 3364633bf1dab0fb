package search

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/pkg/jina"
)

// JinaProvider finds candidates through the Jina AI search API.
type JinaProvider struct {
	client jina.Client
}

// NewJinaProvider creates a provider backed by the given Jina client.
func NewJinaProvider(client jina.Client) *JinaProvider {
	return &JinaProvider{client: client}
}

func (p *JinaProvider) Name() string { return "jina_search" }

// Search runs the query through s.jina.ai and maps results to candidates.
// Results without a URL are kept when they carry a title; the enricher can
// still work from the company name alone.
func (p *JinaProvider) Search(ctx context.Context, query string, maxResults int) ([]model.Candidate, error) {
	resp, err := p.client.Search(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "jina_search: query")
	}

	candidates := make([]model.Candidate, 0, len(resp.Data))
	for _, r := range resp.Data {
		name := strings.TrimSpace(r.Title)
		if name == "" && r.URL == "" {
			continue
		}
		snippet := r.Description
		if snippet == "" {
			snippet = truncate(r.Content, 500)
		}
		candidates = append(candidates, model.Candidate{
			Name:       name,
			URL:        r.URL,
			Snippet:    snippet,
			Source:     p.Name(),
			Confidence: 1.0,
		})
		if maxResults > 0 && len(candidates) >= maxResults {
			break
		}
	}
	return candidates, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
