package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/enrich"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/search"
	"github.com/sells-group/leadgen-cli/internal/store"
)

type stubSearcher struct {
	candidates []model.Candidate
	err        error
}

func (s *stubSearcher) Search(_ context.Context, _ string, _ int) ([]model.Candidate, error) {
	return s.candidates, s.err
}

// mapEnricher returns a canned profile per candidate key; keys mapped to nil
// simulate a fetch failure.
type mapEnricher struct {
	mu       sync.Mutex
	profiles map[string]*model.Profile
	calls    int
}

func (m *mapEnricher) Enrich(_ context.Context, cand model.Candidate) (*model.Profile, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	profile, ok := m.profiles[cand.Key()]
	if !ok || profile == nil {
		return nil, eris.Wrap(enrich.ErrNoContent, cand.Name)
	}
	return profile, nil
}

type stubValidator struct {
	rejectCompanies map[string]bool
}

func (s *stubValidator) Accept(_ context.Context, profile *model.Profile, _, _ string) bool {
	return !s.rejectCompanies[profile.CompanyName]
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func candidate(name string) model.Candidate {
	host := strings.ToLower(strings.ReplaceAll(name, " ", "")) + ".com"
	return model.Candidate{Name: name, URL: "https://" + host, Source: "test"}
}

func profileFor(name, email string) *model.Profile {
	return &model.Profile{CompanyName: name, Email: email, Industry: "Manufacturing"}
}

func TestDiscover_HappyPath(t *testing.T) {
	st := newTestStore(t)
	searcher := &stubSearcher{candidates: []model.Candidate{
		candidate("Acme Corp"), candidate("Globex"),
	}}
	enricher := &mapEnricher{profiles: map[string]*model.Profile{
		"acmecorp.com": profileFor("Acme Corp", "sales@acmecorp.com"),
		"globex.com":   profileFor("Globex", "hello@globex.com"),
	}}

	p := New(searcher, enricher, &stubValidator{}, st, 2)
	report, err := p.Discover(context.Background(), DiscoverRequest{Query: "widget makers", MaxLeads: 5})

	require.NoError(t, err)
	assert.Equal(t, 2, report.Attempted)
	assert.Equal(t, 2, report.Enriched)
	assert.Equal(t, 2, report.Persisted)
	assert.Len(t, report.Leads, 2)
	assert.False(t, report.SearchDegraded)

	stored, err := st.ListLeads(context.Background(), store.LeadFilter{})
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

// Seven candidates including a duplicate URL and one with no extractable
// email, capped at five leads.
func TestDiscover_SevenCandidateScenario(t *testing.T) {
	st := newTestStore(t)

	var candidates []model.Candidate
	profiles := map[string]*model.Profile{}
	for i := 1; i <= 6; i++ {
		name := fmt.Sprintf("Company%d", i)
		candidates = append(candidates, candidate(name))
		email := fmt.Sprintf("contact@company%d.com", i)
		if i == 3 {
			email = "" // no extractable email
		}
		profiles[fmt.Sprintf("company%d.com", i)] = &model.Profile{CompanyName: name, Email: email}
	}
	// Seventh candidate duplicates the first one's URL.
	candidates = append(candidates, model.Candidate{Name: "Company One Again", URL: "https://company1.com", Source: "test"})

	enricher := &mapEnricher{profiles: profiles}
	p := New(&stubSearcher{candidates: candidates}, enricher, &stubValidator{}, st, 3)

	report, err := p.Discover(context.Background(), DiscoverRequest{Query: "q", MaxLeads: 5})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Deduped, "duplicate URL collapsed before enrichment")
	assert.Equal(t, 5, report.Attempted, "capped at max leads")
	assert.Equal(t, 5, enricher.calls, "no wasted enrichment")
	assert.Equal(t, 1, report.NoEmail)
	assert.Equal(t, 4, report.Persisted)
	assert.LessOrEqual(t, report.Persisted, 5)
}

func TestDiscover_RediscoveryIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	searcher := &stubSearcher{candidates: []model.Candidate{candidate("Acme Corp")}}
	enricher := &mapEnricher{profiles: map[string]*model.Profile{
		"acmecorp.com": profileFor("Acme Corp", "sales@acmecorp.com"),
	}}
	p := New(searcher, enricher, &stubValidator{}, st, 2)

	first, err := p.Discover(context.Background(), DiscoverRequest{Query: "q", MaxLeads: 5})
	require.NoError(t, err)
	require.Equal(t, 1, first.Persisted)

	second, err := p.Discover(context.Background(), DiscoverRequest{Query: "q", MaxLeads: 5})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Persisted)
	assert.Equal(t, 1, second.Duplicates)

	stored, err := st.ListLeads(context.Background(), store.LeadFilter{})
	require.NoError(t, err)
	assert.Len(t, stored, 1, "same email never creates two rows")
}

func TestDiscover_FetchFailureDropsOnlyThatCandidate(t *testing.T) {
	st := newTestStore(t)
	searcher := &stubSearcher{candidates: []model.Candidate{
		candidate("Acme Corp"), candidate("Deadsite"),
	}}
	enricher := &mapEnricher{profiles: map[string]*model.Profile{
		"acmecorp.com": profileFor("Acme Corp", "sales@acmecorp.com"),
		// deadsite.com missing: both fetch paths failed.
	}}
	p := New(searcher, enricher, &stubValidator{}, st, 2)

	report, err := p.Discover(context.Background(), DiscoverRequest{Query: "q", MaxLeads: 5})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Dropped)
	assert.Equal(t, 1, report.Persisted)
	require.Len(t, report.Leads, 1)
	assert.Equal(t, "sales@acmecorp.com", report.Leads[0].Email)
}

func TestDiscover_ValidationRejectionCounted(t *testing.T) {
	st := newTestStore(t)
	searcher := &stubSearcher{candidates: []model.Candidate{
		candidate("Acme Corp"), candidate("Globex"),
	}}
	enricher := &mapEnricher{profiles: map[string]*model.Profile{
		"acmecorp.com": profileFor("Acme Corp", "sales@acmecorp.com"),
		"globex.com":   profileFor("Globex", "hello@globex.com"),
	}}
	validator := &stubValidator{rejectCompanies: map[string]bool{"Globex": true}}
	p := New(searcher, enricher, validator, st, 2)

	report, err := p.Discover(context.Background(), DiscoverRequest{Query: "q", MaxLeads: 5})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Rejected)
	assert.Equal(t, 1, report.Persisted)
}

func TestDiscover_ZeroCandidatesIsCleanRun(t *testing.T) {
	st := newTestStore(t)
	p := New(&stubSearcher{}, &mapEnricher{}, &stubValidator{}, st, 2)

	report, err := p.Discover(context.Background(), DiscoverRequest{Query: "obscure niche", MaxLeads: 5})

	require.NoError(t, err)
	assert.Equal(t, 0, report.Attempted)
	assert.False(t, report.SearchDegraded)
}

func TestDiscover_AllProvidersFailedIsDegradedNotError(t *testing.T) {
	st := newTestStore(t)
	p := New(&stubSearcher{err: search.ErrAllProvidersFailed}, &mapEnricher{}, &stubValidator{}, st, 2)

	report, err := p.Discover(context.Background(), DiscoverRequest{Query: "q", MaxLeads: 5})

	require.NoError(t, err)
	assert.True(t, report.SearchDegraded)
	assert.Equal(t, 0, report.Persisted)
}

func TestDiscover_OtherSearchErrorPropagates(t *testing.T) {
	st := newTestStore(t)
	p := New(&stubSearcher{err: errors.New("bad request")}, &mapEnricher{}, &stubValidator{}, st, 2)

	_, err := p.Discover(context.Background(), DiscoverRequest{Query: "q", MaxLeads: 5})
	require.Error(t, err)
}

func TestDiscover_EmptyQueryRejected(t *testing.T) {
	p := New(&stubSearcher{}, &mapEnricher{}, &stubValidator{}, newTestStore(t), 2)

	_, err := p.Discover(context.Background(), DiscoverRequest{MaxLeads: 5})
	require.Error(t, err)
}

// Trimming to the lead cap keeps the strongest candidates, so a live search
// hit outranks a knowledge-fallback guess regardless of result order.
func TestDiscover_TruncationPrefersHighConfidence(t *testing.T) {
	st := newTestStore(t)

	weak := candidate("Guesswork Inc")
	weak.Confidence = 0.5
	strong := candidate("Verified Co")
	strong.Confidence = 1.0

	enricher := &mapEnricher{profiles: map[string]*model.Profile{
		"guessworkinc.com": profileFor("Guesswork Inc", "info@guessworkinc.com"),
		"verifiedco.com":   profileFor("Verified Co", "sales@verifiedco.com"),
	}}
	p := New(&stubSearcher{candidates: []model.Candidate{weak, strong}}, enricher, &stubValidator{}, st, 2)

	report, err := p.Discover(context.Background(), DiscoverRequest{Query: "q", MaxLeads: 1})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Attempted)
	require.Len(t, report.Leads, 1)
	assert.Equal(t, "sales@verifiedco.com", report.Leads[0].Email)
	assert.Equal(t, 1, enricher.calls, "trimmed candidate never enriched")
}

// Persisted never exceeds the number of unique, valid-email, accepted,
// non-duplicate candidates.
func TestDiscover_PersistedBoundedByAccepted(t *testing.T) {
	st := newTestStore(t)

	var candidates []model.Candidate
	profiles := map[string]*model.Profile{}
	for i := 0; i < 10; i++ {
		name := fmt.Sprintf("Co%d", i)
		candidates = append(candidates, candidate(name))
		profiles[fmt.Sprintf("co%d.com", i)] = profileFor(name, fmt.Sprintf("x@co%d.com", i))
	}
	p := New(&stubSearcher{candidates: candidates}, &mapEnricher{profiles: profiles}, &stubValidator{}, st, 4)

	report, err := p.Discover(context.Background(), DiscoverRequest{Query: "q", MaxLeads: 3})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Attempted)
	assert.LessOrEqual(t, report.Persisted, 3)
}
