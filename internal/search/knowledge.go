package search

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/pkg/anthropic"
)

const knowledgeSystemPrompt = `You are a B2B market research assistant. Given a
search query describing a type of company, list real companies that match.
Respond with ONLY a JSON array, no prose, where each element is:
{"name": "Company Name", "url": "https://company.com", "snippet": "one sentence on what they do"}
Only include companies you are confident actually exist. If you cannot find
the website, set "url" to an empty string. Never invent URLs.`

// KnowledgeProvider asks a language model to enumerate companies matching
// the query from its own knowledge. Used when live search is unavailable;
// candidates carry lower confidence since nothing was verified against the
// web.
type KnowledgeProvider struct {
	llm   anthropic.Client
	model string
}

// NewKnowledgeProvider creates a provider backed by the given model.
func NewKnowledgeProvider(llm anthropic.Client, modelName string) *KnowledgeProvider {
	return &KnowledgeProvider{llm: llm, model: modelName}
}

func (p *KnowledgeProvider) Name() string { return "llm_knowledge" }

type knowledgeResult struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Search prompts the model and parses its JSON array into candidates.
func (p *KnowledgeProvider) Search(ctx context.Context, query string, maxResults int) ([]model.Candidate, error) {
	if maxResults <= 0 {
		maxResults = 10
	}

	resp, err := p.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     p.model,
		MaxTokens: 2048,
		System:    knowledgeSystemPrompt,
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf("List up to %d companies matching: %s", maxResults, query)},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "llm_knowledge: create message")
	}

	raw := anthropic.StripCodeFences(resp.Text())
	var results []knowledgeResult
	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		return nil, eris.Wrap(err, "llm_knowledge: parse response")
	}

	candidates := make([]model.Candidate, 0, len(results))
	for _, r := range results {
		if r.Name == "" && r.URL == "" {
			continue
		}
		candidates = append(candidates, model.Candidate{
			Name:       r.Name,
			URL:        r.URL,
			Snippet:    r.Snippet,
			Source:     p.Name(),
			Confidence: 0.5,
		})
		if len(candidates) >= maxResults {
			break
		}
	}
	return candidates, nil
}
