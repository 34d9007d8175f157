package mail

import (
	"context"
	"errors"
	"testing"
)

func TestLogSender(t *testing.T) {
	s := NewLogSender()
	ctx := context.Background()

	if err := s.Send(ctx, "", "s", "b"); !errors.Is(err, ErrInvalidRecipient) {
		t.Errorf("Expected ErrInvalidRecipient, got %v", err)
	}
	if err := s.Send(ctx, "a@example.com", "Budget Alert", "<p>hi</p>"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	sent := s.Sent()
	if len(sent) != 1 || sent[0].To != "a@example.com" || sent[0].Subject != "Budget Alert" {
		t.Errorf("Unexpected sent messages %+v", sent)
	}
}

func TestNewSMTPSender(t *testing.T) {
	if _, err := NewSMTPSender(SMTPConfig{}); err == nil {
		t.Error("Expected error without host")
	}

	s, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Username: "alerts@example.com"})
	if err != nil {
		t.Fatalf("NewSMTPSender failed: %v", err)
	}
	if s.cfg.Port != 587 || s.cfg.From != "alerts@example.com" || s.cfg.FromName != "Pennywise" {
		t.Errorf("Unexpected defaults %+v", s.cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Send(ctx, "a@example.com", "s", "b"); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled before dialing, got %v", err)
	}
}
