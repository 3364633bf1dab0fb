package model

import (
	"regexp"
	"strings"
	"time"
)

// LeadStatus represents the outreach state of a lead. Status only advances
// forward: found → emailed → followed_up. Reply state is tracked separately
// by Lead.HasReplied, which can flip at any status.
type LeadStatus string

const (
	LeadStatusFound      LeadStatus = "found"
	LeadStatusEmailed    LeadStatus = "emailed"
	LeadStatusFollowedUp LeadStatus = "followed_up"
)

// CanAdvanceTo reports whether a transition from s to next moves forward.
func (s LeadStatus) CanAdvanceTo(next LeadStatus) bool {
	rank := map[LeadStatus]int{
		LeadStatusFound:      0,
		LeadStatusEmailed:    1,
		LeadStatusFollowedUp: 2,
	}
	from, ok := rank[s]
	if !ok {
		return false
	}
	to, ok := rank[next]
	if !ok {
		return false
	}
	return to == from+1
}

// Lead is a persisted prospect. Identity is the email address: the store
// enforces a global uniqueness constraint on it, so re-discovering a known
// contact never creates a second row.
type Lead struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name,omitempty"`
	CompanyName string     `json:"company_name,omitempty"`
	Profile     Profile    `json:"profile"`
	CampaignID  string     `json:"campaign_id,omitempty"`
	Status      LeadStatus `json:"status"`

	// Last drafted or sent outreach email.
	EmailSubject string `json:"email_subject,omitempty"`
	EmailBody    string `json:"email_body,omitempty"`

	FollowUpDate    *time.Time `json:"follow_up_date,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	LastContactedAt *time.Time `json:"last_contacted_at,omitempty"`
	SentEmailAt     *time.Time `json:"sent_email_at,omitempty"`
	HasReplied      bool       `json:"has_replied"`
}

var emailRe = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)

// ValidEmail reports whether s looks like a deliverable email address.
// Extraction output is untrusted, so leads are gated on this before persistence.
func ValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 254 {
		return false
	}
	return emailRe.MatchString(s)
}

// NormalizeEmail lowercases and trims an address for identity comparison.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
