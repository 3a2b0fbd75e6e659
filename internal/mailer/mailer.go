// Package mailer delivers transactional email over SMTP.
package mailer

import (
	"context"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/PsiTechC/medai-billing/internal/config"
)

// Mailer sends one message, best effort. Delivery failure is the caller's
// problem to log; there is no retry.
type Mailer interface {
	Send(ctx context.Context, to, subject, text, html string) error
}

type smtpMailer struct {
	cfg config.MailConfig
	log *zap.Logger
}

// NewSMTPMailer builds the production mailer from service config.
func NewSMTPMailer(cfg config.Config, log *zap.Logger) Mailer {
	return &smtpMailer{cfg: cfg.Mail, log: log.Named("mailer")}
}

func (m *smtpMailer) Send(ctx context.Context, to, subject, text, html string) error {
	msg := gomail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return err
	}
	if err := msg.To(to); err != nil {
		return err
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, text)
	if html != "" {
		msg.AddAlternativeString(gomail.TypeTextHTML, html)
	}

	client, err := gomail.NewClient(m.cfg.Host,
		gomail.WithPort(m.cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(m.cfg.Username),
		gomail.WithPassword(m.cfg.Password),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	)
	if err != nil {
		return err
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return err
	}
	m.log.Debug("mail sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}
