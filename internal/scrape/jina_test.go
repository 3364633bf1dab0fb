package scrape

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/pkg/jina"
)

// stubJinaClient returns a canned response or error for Read.
type stubJinaClient struct {
	resp  *jina.ReadResponse
	err   error
	calls int
}

func (s *stubJinaClient) Read(_ context.Context, _ string) (*jina.ReadResponse, error) {
	s.calls++
	return s.resp, s.err
}

func (s *stubJinaClient) Search(_ context.Context, _ string) (*jina.SearchResponse, error) {
	return nil, errors.New("not used")
}

func TestJinaAdapter_Scrape(t *testing.T) {
	client := &stubJinaClient{resp: &jina.ReadResponse{
		Code: 200,
		Data: jina.ReadData{
			Title:   "Acme Corp",
			URL:     "https://acme.com",
			Content: "Acme Corp builds industrial widgets for manufacturers across the midwest region, supplying durable components to factories since 1985.",
		},
	}}

	result, err := NewJinaAdapter(client).Scrape(context.Background(), "https://acme.com")

	require.NoError(t, err)
	assert.Equal(t, "jina", result.Source)
	assert.Equal(t, "Acme Corp", result.Page.Title)
}

func TestJinaAdapter_RateLimitOpensCircuit(t *testing.T) {
	client := &stubJinaClient{err: &jina.APIError{StatusCode: 429, Body: "rate limited"}}
	adapter := NewJinaAdapter(client)

	_, err := adapter.Scrape(context.Background(), "https://acme.com")
	require.Error(t, err)

	// One 429 is enough; the chain must skip the adapter for the cooldown.
	assert.False(t, adapter.Supports("https://acme.com"))
	_, err = adapter.Scrape(context.Background(), "https://acme.com")
	require.Error(t, err)
	assert.Equal(t, 1, client.calls)
}

func TestJinaAdapter_HardErrorDoesNotOpenCircuit(t *testing.T) {
	client := &stubJinaClient{err: &jina.APIError{StatusCode: 404, Body: "no such page"}}
	adapter := NewJinaAdapter(client)

	_, err := adapter.Scrape(context.Background(), "https://acme.com")
	require.Error(t, err)

	assert.True(t, adapter.Supports("https://acme.com"))
}

func TestNeedsFallback_BlockedContent(t *testing.T) {
	resp := &jina.ReadResponse{
		Code: 200,
		Data: jina.ReadData{Content: "Just a moment... checking your browser before accessing the site."},
	}
	assert.True(t, needsFallback(resp))
}
