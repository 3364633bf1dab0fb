package outreach

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/draft"
	"github.com/sells-group/leadgen-cli/internal/mailer"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/store"
)

// FollowUpDrafter generates the follow-up email for a lead. *draft.Drafter
// satisfies it.
type FollowUpDrafter interface {
	FollowUp(ctx context.Context, lead *model.Lead, userContext string) (*draft.Email, error)
}

// Scheduler periodically sweeps for leads whose follow-up is due and sends
// exactly one follow-up round per lead. Failures leave the row untouched so
// the next sweep retries; successes clear follow_up_date so the lead is
// never selected again.
type Scheduler struct {
	store     store.Store
	drafter   FollowUpDrafter
	transport mailer.Transport
	interval  time.Duration
	context   string

	mu    sync.Mutex
	clock func() time.Time
}

// NewScheduler creates a Scheduler sweeping at the given interval.
// userContext is passed through to follow-up drafting.
func NewScheduler(st store.Store, drafter FollowUpDrafter, transport mailer.Transport, interval time.Duration, userContext string) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{
		store:     st,
		drafter:   drafter,
		transport: transport,
		interval:  interval,
		context:   userContext,
		clock:     time.Now,
	}
}

// RunSweep processes all currently due leads and returns how many follow-ups
// were sent. Per-lead failures are logged and skipped, never aborting the
// sweep. If another sweep is already running this one is a no-op; the mutex
// guarantees the same lead cannot be picked up twice concurrently.
func (s *Scheduler) RunSweep(ctx context.Context) (int, error) {
	if !s.mu.TryLock() {
		zap.L().Debug("sweep already running, skipping")
		return 0, nil
	}
	defer s.mu.Unlock()

	now := s.clock().UTC()
	leads, err := s.store.DueFollowUps(ctx, now)
	if err != nil {
		return 0, eris.Wrap(err, "outreach: select due follow-ups")
	}
	if len(leads) == 0 {
		return 0, nil
	}

	zap.L().Info("follow-up sweep started", zap.Int("due", len(leads)))

	sent := 0
	for i := range leads {
		lead := &leads[i]
		if err := ctx.Err(); err != nil {
			return sent, eris.Wrap(err, "outreach: sweep interrupted")
		}
		if err := s.followUp(ctx, lead, now); err != nil {
			zap.L().Warn("follow-up failed, lead stays due",
				zap.String("lead_id", lead.ID),
				zap.String("email", lead.Email),
				zap.Error(err))
			continue
		}
		sent++
	}

	zap.L().Info("follow-up sweep finished", zap.Int("sent", sent), zap.Int("due", len(leads)))
	return sent, nil
}

// followUp drafts, sends, and transitions one lead. Any error before the
// transition leaves the row untouched for the next sweep.
func (s *Scheduler) followUp(ctx context.Context, lead *model.Lead, now time.Time) error {
	email, err := s.drafter.FollowUp(ctx, lead, s.context)
	if err != nil {
		return eris.Wrap(err, "draft")
	}

	if err := s.transport.Send(ctx, mailer.Message{
		To:      lead.Email,
		Subject: email.Subject,
		Body:    email.Body,
	}); err != nil {
		return eris.Wrap(err, "send")
	}

	if err := s.store.MarkFollowedUp(ctx, lead.ID, email.Subject, email.Body, now); err != nil {
		return eris.Wrap(err, "transition")
	}
	return nil
}

// Start runs sweeps at the configured interval until ctx is done. The first
// sweep runs immediately.
func (s *Scheduler) Start(ctx context.Context) {
	zap.L().Info("follow-up scheduler started", zap.Duration("interval", s.interval))

	if _, err := s.RunSweep(ctx); err != nil {
		zap.L().Error("sweep failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("follow-up scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.RunSweep(ctx); err != nil {
				zap.L().Error("sweep failed", zap.Error(err))
			}
		}
	}
}
