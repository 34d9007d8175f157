// Package mail delivers alert emails.
package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"gopkg.in/gomail.v2"
)

// ErrInvalidRecipient is returned when the destination address is empty.
var ErrInvalidRecipient = errors.New("mail: recipient cannot be empty")

// Sender sends an HTML email.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SMTPConfig configures an SMTPSender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string

	// From is the envelope and header sender.
	From string

	// FromName is the display name shown to recipients.
	// Default: Pennywise
	FromName string
}

// SMTPSender sends mail through an SMTP relay.
type SMTPSender struct {
	cfg    SMTPConfig
	dialer *gomail.Dialer
}

// NewSMTPSender creates an SMTPSender.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, errors.New("mail: smtp host cannot be empty")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.FromName == "" {
		cfg.FromName = "Pennywise"
	}
	return &SMTPSender{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}, nil
}

// Send implements Sender. gomail does not accept a context, so cancellation
// is only observed before dialing.
func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	if to == "" {
		return ErrInvalidRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.cfg.From, s.cfg.FromName)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}

// Message is a sent email captured by LogSender.
type Message struct {
	To      string
	Subject string
	Body    string
}

// LogSender logs emails instead of sending them. It keeps the sent
// messages for inspection.
type LogSender struct {
	logger *slog.Logger

	mu   sync.Mutex
	sent []Message
}

// NewLogSender creates a LogSender.
func NewLogSender() *LogSender {
	return &LogSender{logger: slog.Default().With("component", "mail")}
}

// Send implements Sender.
func (l *LogSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	if to == "" {
		return ErrInvalidRecipient
	}
	l.mu.Lock()
	l.sent = append(l.sent, Message{To: to, Subject: subject, Body: htmlBody})
	l.mu.Unlock()

	l.logger.Info("email delivered to log", "to", to, "subject", subject, "bytes", len(htmlBody))
	return nil
}

// Sent returns a copy of the captured messages.
func (l *LogSender) Sent() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Message(nil), l.sent...)
}
