package service

import (
	"context"
	"fmt"
	"net/smtp"
	"time"

	"github.com/nextai/nextai/internal/config"
	"github.com/sirupsen/logrus"
)

type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

type SMTPMailer struct {
	cfg    config.MailConfig
	logger *logrus.Logger
}

func NewSMTPMailer(cfg config.MailConfig, logger *logrus.Logger) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, logger: logger}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%s", m.cfg.SMTPHost, m.cfg.SMTPPort)
	msg := []byte(
		"From: " + m.cfg.From + "\r\n" +
			"To: " + to + "\r\n" +
			"Subject: " + subject + "\r\n" +
			"Content-Type: text/plain; charset=\"utf-8\"\r\n" +
			"\r\n" +
			body + "\r\n")

	var auth smtp.Auth
	if m.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", m.cfg.SMTPUser, m.cfg.SMTPPass, m.cfg.SMTPHost)
	}

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, msg); err != nil {
		m.logger.WithError(err).WithField("to", to).Error("Failed to send email")
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// LogMailer writes outgoing mail to the log instead of sending it.
type LogMailer struct {
	logger *logrus.Logger
}

func NewLogMailer(logger *logrus.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, to, subject, body string) error {
	m.logger.WithFields(logrus.Fields{
		"to":      to,
		"subject": subject,
		"body":    body,
	}).Info("Email delivered to log (development)")
	return nil
}

// NewMailer picks SMTP when a host is configured.
func NewMailer(cfg config.MailConfig, logger *logrus.Logger) Mailer {
	if cfg.SMTPHost == "" {
		return NewLogMailer(logger)
	}
	return NewSMTPMailer(cfg, logger)
}

// CodeMailer delivers verification codes by email.
type CodeMailer struct {
	mailer Mailer
	expiry time.Duration
}

func NewCodeMailer(mailer Mailer, expiry time.Duration) *CodeMailer {
	return &CodeMailer{mailer: mailer, expiry: expiry}
}

func (c *CodeMailer) SendVerificationCode(ctx context.Context, email, code string) error {
	body := fmt.Sprintf("Your NextAI verification code is %s.\n\nIt expires in %d minutes and can be used once.\n",
		code, int(c.expiry.Minutes()))
	return c.mailer.Send(ctx, email, "Your NextAI verification code", body)
}
