// Package outreach drives the email side of the lead state machine: the
// initial send (found → emailed) and the scheduled follow-up sweep
// (emailed → followed_up). All state transitions go through the store's
// guarded updates, so a bug here can delay outreach but never regress a
// lead's status.
package outreach

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/draft"
	"github.com/sells-group/leadgen-cli/internal/mailer"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/store"
)

// Sender performs the initial outreach send for a lead.
type Sender struct {
	store        store.Store
	transport    mailer.Transport
	followUpDays int
	clock        func() time.Time
}

// NewSender creates a Sender. followUpDays controls how far out the single
// automatic follow-up is scheduled after the initial send.
func NewSender(st store.Store, transport mailer.Transport, followUpDays int) *Sender {
	if followUpDays <= 0 {
		followUpDays = 7
	}
	return &Sender{store: st, transport: transport, followUpDays: followUpDays, clock: time.Now}
}

// SendInitial sends the email to the lead and transitions it to emailed,
// scheduling the follow-up. The transition is guarded: a lead that already
// left status found fails with store.ErrInvalidTransition before anything
// is sent, so retrying a partially failed command cannot double-send.
func (s *Sender) SendInitial(ctx context.Context, leadID string, email draft.Email) error {
	lead, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		return err
	}
	if !lead.Status.CanAdvanceTo(model.LeadStatusEmailed) {
		return eris.Wrapf(store.ErrInvalidTransition, "lead %s already in status %s", leadID, lead.Status)
	}
	if email.Subject == "" || email.Body == "" {
		return eris.Errorf("outreach: empty email for lead %s", leadID)
	}

	if err := s.transport.Send(ctx, mailer.Message{
		To:      lead.Email,
		Subject: email.Subject,
		Body:    email.Body,
	}); err != nil {
		return eris.Wrapf(err, "outreach: initial send to %s", lead.Email)
	}

	now := s.clock().UTC()
	followUpAt := now.AddDate(0, 0, s.followUpDays)
	if err := s.store.MarkEmailed(ctx, leadID, email.Subject, email.Body, now, followUpAt); err != nil {
		// The mail went out but the row did not advance. Surface loudly;
		// without the transition the lead would be re-sendable.
		return eris.Wrapf(err, "outreach: sent to %s but state update failed", lead.Email)
	}

	zap.L().Info("initial email sent",
		zap.String("lead_id", leadID),
		zap.String("email", lead.Email),
		zap.Time("follow_up_at", followUpAt))
	return nil
}
