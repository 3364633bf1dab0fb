// Package store persists leads and campaigns. Two implementations share the
// Store interface: PostgresStore for shared deployments and SQLiteStore for
// single-user local use. The email uniqueness constraint is the dedup source
// of truth; status transitions are guarded in SQL so they can never regress,
// even under concurrent writers.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// ErrNotFound is returned when a lead or campaign does not exist.
var ErrNotFound = eris.New("store: not found")

// ErrInvalidTransition is returned when a guarded status update matched the
// row but not its expected current status. The row is left untouched.
var ErrInvalidTransition = eris.New("store: invalid status transition")

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	CampaignID string           `json:"campaign_id,omitempty"`
	Status     model.LeadStatus `json:"status,omitempty"`
	Limit      int              `json:"limit,omitempty"`
	Offset     int              `json:"offset,omitempty"`
}

// Store defines the persistence interface for leads and campaigns.
type Store interface {
	// Leads
	//
	// InsertLeadIfAbsent atomically inserts the lead unless one with the
	// same email already exists. It reports inserted=false for a duplicate;
	// a duplicate is a normal outcome, not an error. The lead's ID and
	// CreatedAt are assigned on insert.
	InsertLeadIfAbsent(ctx context.Context, lead *model.Lead) (inserted bool, err error)
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	GetLeadByEmail(ctx context.Context, email string) (*model.Lead, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)

	// UpdateLeadEmail overwrites the drafted email content. Discovery never
	// calls this; only explicit regeneration does.
	UpdateLeadEmail(ctx context.Context, id, subject, body string) error

	// MarkEmailed transitions found→emailed, records the sent content and
	// timestamps, and schedules the follow-up. Guarded: fails with
	// ErrInvalidTransition if the lead is not in status found.
	MarkEmailed(ctx context.Context, id, subject, body string, sentAt, followUpAt time.Time) error

	// MarkFollowedUp transitions emailed→followed_up, records the sent
	// follow-up, and clears follow_up_date so no further automatic round is
	// scheduled. Guarded like MarkEmailed.
	MarkFollowedUp(ctx context.Context, id, subject, body string, sentAt time.Time) error

	// MarkReplied sets has_replied. It never touches status and is
	// idempotent.
	MarkReplied(ctx context.Context, id string) error

	// DueFollowUps returns leads with status emailed, has_replied false,
	// and follow_up_date at or before now.
	DueFollowUps(ctx context.Context, now time.Time) ([]model.Lead, error)

	// Campaigns
	CreateCampaign(ctx context.Context, name, searchQuery, notes string) (*model.Campaign, error)
	GetCampaign(ctx context.Context, id string) (*model.Campaign, error)
	ListCampaigns(ctx context.Context) ([]model.Campaign, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
