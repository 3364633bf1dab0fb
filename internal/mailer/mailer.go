// Package mailer sends outreach email. Transport abstracts the delivery
// mechanism so senders and the scheduler can be tested without a mail
// server; SMTP is the production implementation.
package mailer

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
	"gopkg.in/gomail.v2"

	"github.com/sells-group/leadgen-cli/internal/config"
)

// Message is a single outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Transport delivers messages. Send blocks until the message is handed to
// the provider or ctx is done.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// SMTP implements Transport over gomail with outbound rate limiting.
type SMTP struct {
	dialer  *gomail.Dialer
	from    string
	limiter *rate.Limiter
}

// NewSMTP creates an SMTP transport from config. Sends are paced at
// SendsPerMinute to stay under provider limits; a burst of 1 keeps the
// pacing even rather than front-loaded.
func NewSMTP(cfg config.SMTPConfig) *SMTP {
	perMinute := cfg.SendsPerMinute
	if perMinute <= 0 {
		perMinute = 20
	}
	return &SMTP{
		dialer:  gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:    cfg.From,
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 1),
	}
}

// Send waits for rate-limit headroom, then dials and sends the message.
func (s *SMTP) Send(ctx context.Context, msg Message) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "mailer: rate limit wait")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return eris.Wrapf(err, "mailer: send to %s", msg.To)
	}
	return nil
}
