// Package validate judges whether an enriched profile matches the caller's
// intent. The policy is fail-open: a provider outage accepts the candidate
// with a warning, because dropping real prospects costs more than letting a
// weak one through.
package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/pkg/anthropic"
)

const validateSystemPrompt = `You are screening companies for a B2B outreach
campaign. Given the user's search intent and a company profile, decide
whether the company plausibly matches the intent. Lean toward accepting when
unsure. Respond with exactly one word: "yes" or "no".`

// Validator screens profiles against the user's search intent.
type Validator struct {
	llm   anthropic.Client
	model string
	retry resilience.RetryConfig
}

// New creates a Validator using the given model.
func New(llm anthropic.Client, modelName string) *Validator {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("anthropic", "validate_profile")
	return &Validator{llm: llm, model: modelName, retry: retry}
}

// Accept reports whether the profile matches the intent. It never returns
// an error for an ordinary mismatch; a provider failure logs a warning and
// accepts the candidate.
func (v *Validator) Accept(ctx context.Context, profile *model.Profile, query, userContext string) bool {
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		zap.L().Warn("validate: marshal profile, accepting", zap.Error(err))
		return true
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Search intent: %s\n", query)
	if userContext != "" {
		fmt.Fprintf(&b, "Additional context: %s\n", userContext)
	}
	fmt.Fprintf(&b, "\nCompany profile:\n%s", profileJSON)

	resp, err := resilience.DoVal(ctx, v.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return v.llm.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     v.model,
			MaxTokens: 8,
			System:    validateSystemPrompt,
			Messages:  []anthropic.Message{{Role: "user", Content: b.String()}},
		})
	})
	if err != nil {
		zap.L().Warn("validate: provider unavailable, accepting",
			zap.String("company", profile.CompanyName),
			zap.Error(eris.Wrap(err, "validate: judge call")))
		return true
	}

	answer := strings.ToLower(strings.TrimSpace(resp.Text()))
	rejected := strings.HasPrefix(answer, "no")
	if rejected {
		zap.L().Debug("validate: rejected",
			zap.String("company", profile.CompanyName),
			zap.String("answer", answer))
	}
	return !rejected
}
