package search

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// ErrAllProvidersFailed signals that every provider in the chain errored.
// Distinct from a chain that ran but found nothing; callers use it to mark
// a run as degraded rather than empty.
var ErrAllProvidersFailed = eris.New("search: all providers failed")

// Provider finds candidate companies for a search query.
type Provider interface {
	// Search returns candidates for the query, up to maxResults.
	// A nil error with zero candidates is a valid outcome.
	Search(ctx context.Context, query string, maxResults int) ([]model.Candidate, error)

	// Name identifies the provider in logs and candidate attribution.
	Name() string
}

// Chain tries providers in order until one returns usable results.
// A provider error or an empty result set both advance to the next
// provider; only when every provider errors does the chain fail.
type Chain struct {
	providers []Provider
	// timeout bounds each provider attempt; zero means no per-provider bound.
	timeout time.Duration
}

// NewChain creates a chain that tries providers in the given order.
func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

// WithTimeout sets a per-provider attempt timeout and returns the chain.
func (c *Chain) WithTimeout(d time.Duration) *Chain {
	c.timeout = d
	return c
}

// Search runs the chain. It returns the first non-empty result set, or an
// empty set if every provider ran cleanly but found nothing. It returns
// ErrAllProvidersFailed only when no provider produced a response at all.
func (c *Chain) Search(ctx context.Context, query string, maxResults int) ([]model.Candidate, error) {
	if len(c.providers) == 0 {
		return nil, eris.New("search: no providers configured")
	}

	anySucceeded := false
	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "search: context done")
		}

		candidates, err := c.searchOne(ctx, p, query, maxResults)
		if err != nil {
			zap.L().Warn("search provider failed, trying next",
				zap.String("provider", p.Name()),
				zap.Error(err))
			continue
		}
		anySucceeded = true

		if len(candidates) > 0 {
			zap.L().Debug("search provider returned candidates",
				zap.String("provider", p.Name()),
				zap.Int("count", len(candidates)))
			return candidates, nil
		}
		zap.L().Debug("search provider returned no candidates, trying next",
			zap.String("provider", p.Name()))
	}

	if !anySucceeded {
		return nil, ErrAllProvidersFailed
	}
	return nil, nil
}

func (c *Chain) searchOne(ctx context.Context, p Provider, query string, maxResults int) ([]model.Candidate, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return p.Search(ctx, query, maxResults)
}
