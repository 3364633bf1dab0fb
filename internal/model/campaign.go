package model

import "time"

// Campaign is a named grouping of leads around one search query. Purely
// organizational: dedup and the follow-up state machine operate across
// campaigns.
type Campaign struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	SearchQuery string    `json:"search_query"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	LeadCount   int       `json:"lead_count"`
}
