// Package pipeline orchestrates a discovery run: search for candidates,
// enrich each one into a profile, validate against the caller's intent, and
// persist the survivors as leads. Candidates fail independently; the run
// report always distinguishes partial success from total failure.
package pipeline

import (
	"context"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadgen-cli/internal/enrich"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/search"
	"github.com/sells-group/leadgen-cli/internal/store"
)

// Searcher finds candidates. *search.Chain satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]model.Candidate, error)
}

// Enricher produces a profile for one candidate. *enrich.Enricher satisfies it.
type Enricher interface {
	Enrich(ctx context.Context, cand model.Candidate) (*model.Profile, error)
}

// Validator screens a profile against the search intent. *validate.Validator
// satisfies it.
type Validator interface {
	Accept(ctx context.Context, profile *model.Profile, query, userContext string) bool
}

// DiscoverRequest describes one discovery run.
type DiscoverRequest struct {
	Query       string `json:"query"`
	UserContext string `json:"user_context,omitempty"`
	CampaignID  string `json:"campaign_id,omitempty"`
	MaxLeads    int    `json:"max_leads"`
}

// RunReport summarizes a discovery run. Counts track each stage so partial
// failure is visible: Attempted candidates entered enrichment; Dropped had
// no fetchable content; Rejected failed validation; NoEmail had no usable
// address; Duplicates hit the email uniqueness constraint.
type RunReport struct {
	Attempted      int          `json:"attempted"`
	Deduped        int          `json:"deduped"`
	Enriched       int          `json:"enriched"`
	Dropped        int          `json:"dropped"`
	Rejected       int          `json:"rejected"`
	NoEmail        int          `json:"no_email"`
	Duplicates     int          `json:"duplicates"`
	Persisted      int          `json:"persisted"`
	SearchDegraded bool         `json:"search_degraded,omitempty"`
	Leads          []model.Lead `json:"leads,omitempty"`
}

// Pipeline wires the discovery stages together.
type Pipeline struct {
	searcher      Searcher
	enricher      Enricher
	validator     Validator
	store         store.Store
	maxConcurrent int
}

// New creates a Pipeline. maxConcurrent bounds parallel enrichment.
func New(searcher Searcher, enricher Enricher, validator Validator, st store.Store, maxConcurrent int) *Pipeline {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &Pipeline{
		searcher:      searcher,
		enricher:      enricher,
		validator:     validator,
		store:         st,
		maxConcurrent: maxConcurrent,
	}
}

// Discover runs the full pipeline for one query. It returns a nil error
// with a zero report when search finds nothing; an all-provider search
// outage sets SearchDegraded instead of failing the run.
func (p *Pipeline) Discover(ctx context.Context, req DiscoverRequest) (*RunReport, error) {
	if req.Query == "" {
		return nil, eris.New("pipeline: empty query")
	}
	maxLeads := req.MaxLeads
	if maxLeads <= 0 {
		maxLeads = 10
	}

	report := &RunReport{}

	// Over-fetch so dedup, drops, and rejections still leave enough to fill
	// the requested lead count.
	candidates, err := p.searcher.Search(ctx, req.Query, maxLeads*3)
	if err != nil {
		if eris.Is(err, search.ErrAllProvidersFailed) {
			zap.L().Warn("all search providers failed", zap.String("query", req.Query))
			report.SearchDegraded = true
			return report, nil
		}
		return nil, eris.Wrap(err, "pipeline: search")
	}

	unique := model.DedupeCandidates(candidates)
	report.Deduped = len(candidates) - len(unique)
	// Keep the strongest candidates when trimming: knowledge-fallback
	// results score lower than live search hits and go first on the floor.
	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].Confidence > unique[j].Confidence
	})
	if len(unique) > maxLeads {
		unique = unique[:maxLeads]
	}
	report.Attempted = len(unique)
	if len(unique) == 0 {
		return report, nil
	}

	accepted := p.enrichAll(ctx, unique, req, report)

	for i := range accepted {
		lead := &accepted[i]
		inserted, err := p.store.InsertLeadIfAbsent(ctx, lead)
		if err != nil {
			zap.L().Warn("persist failed, skipping lead",
				zap.String("email", lead.Email),
				zap.Error(err))
			continue
		}
		if !inserted {
			report.Duplicates++
			continue
		}
		report.Persisted++
		report.Leads = append(report.Leads, *lead)
	}

	zap.L().Info("discovery run finished",
		zap.String("query", req.Query),
		zap.Int("attempted", report.Attempted),
		zap.Int("enriched", report.Enriched),
		zap.Int("persisted", report.Persisted),
		zap.Int("duplicates", report.Duplicates))
	return report, nil
}

// enrichAll fans candidates out over a bounded worker group. Workers never
// propagate errors; every outcome lands in a report counter.
func (p *Pipeline) enrichAll(ctx context.Context, candidates []model.Candidate, req DiscoverRequest, report *RunReport) []model.Lead {
	var (
		mu       sync.Mutex
		accepted []model.Lead
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxConcurrent)

	for _, cand := range candidates {
		g.Go(func() error {
			profile, err := p.enricher.Enrich(gctx, cand)
			if err != nil {
				if !eris.Is(err, enrich.ErrNoContent) {
					zap.L().Warn("enrichment failed",
						zap.String("candidate", cand.Name),
						zap.Error(err))
				}
				mu.Lock()
				report.Dropped++
				mu.Unlock()
				return nil
			}

			mu.Lock()
			report.Enriched++
			mu.Unlock()

			if !model.ValidEmail(profile.Email) {
				zap.L().Debug("no usable email, skipping",
					zap.String("candidate", cand.Name))
				mu.Lock()
				report.NoEmail++
				mu.Unlock()
				return nil
			}

			if !p.validator.Accept(gctx, profile, req.Query, req.UserContext) {
				mu.Lock()
				report.Rejected++
				mu.Unlock()
				return nil
			}

			mu.Lock()
			accepted = append(accepted, model.Lead{
				Email:       profile.Email,
				Name:        profile.ContactName,
				CompanyName: profile.CompanyName,
				Profile:     *profile,
				CampaignID:  req.CampaignID,
			})
			mu.Unlock()
			return nil
		})
	}

	// Workers return nil; Wait only propagates context cancellation.
	_ = g.Wait()
	return accepted
}
