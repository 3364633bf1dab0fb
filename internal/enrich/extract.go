package enrich

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/pkg/anthropic"
)

const extractSystemPrompt = `You are a company research analyst. You read text
scraped from a company's website and extract a structured profile.
Respond with ONLY a JSON object matching this schema, no prose:
{
  "company_name": "",
  "website_url": "",
  "description": "",
  "industry": "",
  "location": "",
  "company_size": "",
  "founded_year": "",
  "target_audience": "",
  "key_features": [],
  "pain_points": [],
  "recent_news": "",
  "social_links": {},
  "email": "",
  "contact_name": "",
  "phone": ""
}
Leave a field empty ("" or [] or {}) when the text does not support it.
Never invent emails, phone numbers, or facts not present in the text.`

const stricterSuffix = `

IMPORTANT: your previous output was not valid JSON for this schema. Output
exactly one JSON object with exactly these keys and correct value types.
Do not wrap it in markdown fences. Do not add any other text.`

// extract runs the LLM over the scraped content and strictly parses the
// result. A parse failure triggers exactly one retry with a stricter
// instruction before giving up with ErrSchemaMismatch.
func (e *Enricher) extract(ctx context.Context, cand model.Candidate, content string) (*model.Profile, error) {
	userMsg := fmt.Sprintf(
		"Company: %s\nScraped website text follows.\n\n%s",
		cand.Name, content)

	profile, parseErr := e.extractOnce(ctx, extractSystemPrompt, userMsg)
	if parseErr == nil {
		return profile, nil
	}
	if !eris.Is(parseErr, ErrSchemaMismatch) {
		return nil, parseErr
	}

	profile, parseErr = e.extractOnce(ctx, extractSystemPrompt+stricterSuffix, userMsg)
	if parseErr != nil {
		return nil, parseErr
	}
	return profile, nil
}

func (e *Enricher) extractOnce(ctx context.Context, system, userMsg string) (*model.Profile, error) {
	resp, err := resilience.DoVal(ctx, e.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return e.llm.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     e.model,
			MaxTokens: 2048,
			System:    system,
			Messages:  []anthropic.Message{{Role: "user", Content: userMsg}},
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "enrich: extraction call")
	}

	raw := anthropic.StripCodeFences(resp.Text())
	var profile model.Profile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		return nil, eris.Wrapf(ErrSchemaMismatch, "unmarshal: %v", err)
	}
	if profile.Empty() {
		return nil, eris.Wrap(ErrSchemaMismatch, "model returned an empty profile")
	}
	return &profile, nil
}
