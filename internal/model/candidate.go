package model

import (
	"net/url"
	"strings"
)

// Candidate is an unvalidated company reference produced by search. It is
// ephemeral and untrusted: search providers (especially the LLM knowledge
// fallback) may fabricate names and URLs, so every field is re-verified
// during enrichment.
type Candidate struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
	// Source names the provider that produced the candidate.
	Source string `json:"source"`
	// Confidence is the provider's relevance estimate; knowledge-fallback
	// results are scored lower than real search hits.
	Confidence float64 `json:"confidence"`
}

// Key returns the dedup identity for a candidate: the normalized site host
// when the URL parses, otherwise the lowercased company name.
func (c Candidate) Key() string {
	if host := NormalizeHost(c.URL); host != "" {
		return host
	}
	return strings.ToLower(strings.TrimSpace(c.Name))
}

// NormalizeHost extracts a lowercased host (without www.) from a URL string.
// Returns "" when no host can be derived.
func NormalizeHost(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Host)
	return strings.TrimPrefix(host, "www.")
}

// BaseURL returns the scheme://host root for a candidate URL, defaulting to
// https when the scheme is missing. Returns "" when no host can be derived.
func BaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	scheme := u.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return scheme + "://" + u.Host
}

// DedupeCandidates collapses candidates sharing the same Key, keeping the
// first occurrence (providers order results by relevance).
func DedupeCandidates(cands []Candidate) []Candidate {
	seen := make(map[string]struct{}, len(cands))
	out := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		key := c.Key()
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}
