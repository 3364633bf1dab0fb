// Package draft generates outreach email copy from a lead's profile. Pure
// generation: no persistence, no sending. Unlike validation, drafting does
// not fail open; sending a blank or garbled email is worse than sending
// nothing, so provider failures surface as typed errors.
package draft

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/pkg/anthropic"
)

// Email is a generated subject and body, ready to persist or send.
type Email struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// GenerationError wraps a drafting failure with the lead it was for.
type GenerationError struct {
	LeadEmail string
	Kind      string // "cold" or "follow_up"
	Err       error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("draft: %s email for %s: %v", e.Kind, e.LeadEmail, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

const coldSystemPrompt = `You write concise B2B cold outreach emails. Use the
company profile to personalize: reference a pain point or recent news when
available. Professional, direct, no hype. Body under 100 words. No placeholders
like [Name]; use the contact name or company name given, or address the reader
generically. Respond with ONLY a JSON object: {"subject": "...", "body": "..."}`

const followUpSystemPrompt = `You write short, polite B2B follow-up emails
referencing an earlier unanswered message. Do not guilt-trip. Add one new
angle from the company profile if possible. Body under 80 words. Respond with
ONLY a JSON object: {"subject": "...", "body": "..."}`

// Drafter generates cold and follow-up emails.
type Drafter struct {
	llm   anthropic.Client
	model string
	retry resilience.RetryConfig
}

// New creates a Drafter using the given model.
func New(llm anthropic.Client, modelName string) *Drafter {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("anthropic", "draft_email")
	return &Drafter{llm: llm, model: modelName, retry: retry}
}

// ColdEmail drafts the initial outreach email for a lead.
func (d *Drafter) ColdEmail(ctx context.Context, lead *model.Lead, userContext string) (*Email, error) {
	email, err := d.generate(ctx, coldSystemPrompt, lead, userContext, "")
	if err != nil {
		return nil, &GenerationError{LeadEmail: lead.Email, Kind: "cold", Err: err}
	}
	return email, nil
}

// FollowUp drafts a follow-up referencing the previously sent email.
func (d *Drafter) FollowUp(ctx context.Context, lead *model.Lead, userContext string) (*Email, error) {
	email, err := d.generate(ctx, followUpSystemPrompt, lead, userContext, lead.EmailBody)
	if err != nil {
		return nil, &GenerationError{LeadEmail: lead.Email, Kind: "follow_up", Err: err}
	}
	return email, nil
}

func (d *Drafter) generate(ctx context.Context, system string, lead *model.Lead, userContext, previousBody string) (*Email, error) {
	profileJSON, err := json.Marshal(lead.Profile)
	if err != nil {
		return nil, eris.Wrap(err, "marshal profile")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Recipient: %s", lead.CompanyName)
	if lead.Name != "" {
		fmt.Fprintf(&b, " (contact: %s)", lead.Name)
	}
	fmt.Fprintf(&b, "\nCompany profile:\n%s\n", profileJSON)
	if userContext != "" {
		fmt.Fprintf(&b, "\nSender context: %s\n", userContext)
	}
	if previousBody != "" {
		fmt.Fprintf(&b, "\nPreviously sent email:\n%s\n", previousBody)
	}

	resp, err := resilience.DoVal(ctx, d.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return d.llm.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     d.model,
			MaxTokens: 1024,
			System:    system,
			Messages:  []anthropic.Message{{Role: "user", Content: b.String()}},
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "create message")
	}

	raw := anthropic.StripCodeFences(resp.Text())
	var email Email
	if err := json.Unmarshal([]byte(raw), &email); err != nil {
		return nil, eris.Wrap(err, "parse response")
	}
	if email.Subject == "" || email.Body == "" {
		return nil, eris.New("model returned an incomplete email")
	}
	return &email, nil
}
