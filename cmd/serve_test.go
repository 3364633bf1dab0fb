package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/draft"
	"github.com/sells-group/leadgen-cli/internal/mailer"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/outreach"
	"github.com/sells-group/leadgen-cli/internal/pipeline"
	"github.com/sells-group/leadgen-cli/internal/store"
)

type apiSearcher struct {
	candidates []model.Candidate
}

func (s *apiSearcher) Search(_ context.Context, _ string, _ int) ([]model.Candidate, error) {
	return s.candidates, nil
}

type apiEnricher struct{}

func (apiEnricher) Enrich(_ context.Context, cand model.Candidate) (*model.Profile, error) {
	return &model.Profile{
		CompanyName: cand.Name,
		Email:       "contact@" + model.NormalizeHost(cand.URL),
	}, nil
}

type apiValidator struct{}

func (apiValidator) Accept(_ context.Context, _ *model.Profile, _, _ string) bool { return true }

type apiTransport struct {
	sent []mailer.Message
}

func (t *apiTransport) Send(_ context.Context, msg mailer.Message) error {
	t.sent = append(t.sent, msg)
	return nil
}

type apiDrafter struct{}

func (apiDrafter) FollowUp(_ context.Context, lead *model.Lead, _ string) (*draft.Email, error) {
	return &draft.Email{Subject: "Re: " + lead.EmailSubject, Body: "Checking in."}, nil
}

func newTestRouter(t *testing.T) (http.Handler, store.Store, *apiTransport) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	searcher := &apiSearcher{candidates: []model.Candidate{
		{Name: "Acme Corp", URL: "https://acme.example.com", Source: "jina_search", Confidence: 1.0},
	}}
	p := pipeline.New(searcher, apiEnricher{}, apiValidator{}, st, 2)

	transport := &apiTransport{}
	sched := outreach.NewScheduler(st, apiDrafter{}, transport, time.Hour, "")

	return newRouter(p, st, sched), st, transport
}

func TestRouterHealth(t *testing.T) {
	r, _, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouterDiscover(t *testing.T) {
	r, st, _ := newTestRouter(t)

	body, err := json.Marshal(pipeline.DiscoverRequest{Query: "manufacturers in ohio", MaxLeads: 5})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/discover", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)

	var report pipeline.RunReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 1, report.Persisted)

	lead, err := st.GetLeadByEmail(context.Background(), "contact@acme.example.com")
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusFound, lead.Status)
}

func TestRouterDiscoverBadRequest(t *testing.T) {
	r, _, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/discover", bytes.NewReader([]byte(`{"max_leads":5}`))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/discover", bytes.NewReader([]byte(`not json`))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouterMarkReplied(t *testing.T) {
	r, st, _ := newTestRouter(t)
	ctx := context.Background()

	lead := &model.Lead{Email: "pat@acme.example.com", CompanyName: "Acme Corp"}
	inserted, err := st.InsertLeadIfAbsent(ctx, lead)
	require.NoError(t, err)
	require.True(t, inserted)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/leads/"+lead.ID+"/reply", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := st.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.True(t, got.HasReplied)
}

func TestRouterMarkRepliedNotFound(t *testing.T) {
	r, _, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/leads/no-such-id/reply", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterSweep(t *testing.T) {
	r, st, transport := newTestRouter(t)
	ctx := context.Background()

	lead := &model.Lead{Email: "due@acme.example.com", CompanyName: "Acme Corp"}
	inserted, err := st.InsertLeadIfAbsent(ctx, lead)
	require.NoError(t, err)
	require.True(t, inserted)

	past := time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, st.MarkEmailed(ctx, lead.ID, "Intro", "Hello", past, past.Add(24*time.Hour)))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sweep", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"sent":1}`, rec.Body.String())
	require.Len(t, transport.sent, 1)
	assert.Equal(t, "due@acme.example.com", transport.sent[0].To)

	// A second sweep finds nothing due.
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sweep", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"sent":0}`, rec.Body.String())
}
