// Package mailer renders templated emails, delivers them through a pluggable
// Sender and keeps an outbound log. Delivery is best-effort everywhere; a nil
// sender disables the mailer entirely.
package mailer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lifeos-hq/lifeos/internal/app/domain/mail"
	"github.com/lifeos-hq/lifeos/internal/app/metrics"
	"github.com/lifeos-hq/lifeos/internal/app/storage"
	"github.com/lifeos-hq/lifeos/pkg/logger"
)

// Service sends templated emails and records every attempt.
type Service struct {
	store  storage.MailStore
	sender Sender
	log    *logger.Logger
}

// New constructs a mailer. A nil sender leaves the mailer disabled.
func New(store storage.MailStore, sender Sender, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("mailer")
	}
	return &Service{store: store, sender: sender, log: log}
}

// Enabled reports whether a sender is configured.
func (s *Service) Enabled() bool {
	return s != nil && s.sender != nil
}

// Send renders the named template and delivers it. When the mailer is
// disabled the call is a silent no-op.
func (s *Service) Send(ctx context.Context, userID, to, template string, data map[string]string) (mail.Message, error) {
	if !s.Enabled() {
		return mail.Message{}, nil
	}

	to = strings.TrimSpace(to)
	if to == "" {
		return mail.Message{}, fmt.Errorf("recipient is required")
	}
	subject, html, err := Render(template, data)
	if err != nil {
		return mail.Message{}, err
	}

	msg, err := s.store.CreateMailMessage(ctx, mail.Message{
		UserID:   userID,
		To:       to,
		Subject:  subject,
		Template: template,
		Status:   mail.StatusQueued,
	})
	if err != nil {
		return mail.Message{}, err
	}

	providerID, sendErr := s.sender.Send(ctx, to, subject, html)
	if sendErr != nil {
		msg.Status = mail.StatusFailed
		msg.Error = sendErr.Error()
		if updated, uerr := s.store.UpdateMailMessage(ctx, msg); uerr != nil {
			s.log.WithError(uerr).WithField("message_id", msg.ID).Warn("record failed send")
		} else {
			msg = updated
		}
		metrics.RecordEmail(template, "failed")
		s.log.WithError(sendErr).
			WithField("template", template).
			WithField("to", to).
			Warn("email send failed")
		return msg, sendErr
	}

	msg.Status = mail.StatusSent
	msg.ProviderID = providerID
	if msg, err = s.store.UpdateMailMessage(ctx, msg); err != nil {
		return mail.Message{}, err
	}
	metrics.RecordEmail(template, "sent")
	s.log.WithField("template", template).
		WithField("message_id", msg.ID).
		Info("email sent")
	return msg, nil
}

// MarkDelivered moves the message with the given provider id to delivered.
func (s *Service) MarkDelivered(ctx context.Context, providerID string) (mail.Message, error) {
	return s.setStatus(ctx, providerID, mail.StatusDelivered)
}

// MarkBounced moves the message with the given provider id to bounced.
func (s *Service) MarkBounced(ctx context.Context, providerID string) (mail.Message, error) {
	return s.setStatus(ctx, providerID, mail.StatusBounced)
}

func (s *Service) setStatus(ctx context.Context, providerID, status string) (mail.Message, error) {
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return mail.Message{}, fmt.Errorf("provider id is required")
	}

	msg, err := s.store.GetMailMessageByProviderID(ctx, providerID)
	if err != nil {
		return mail.Message{}, err
	}
	msg.Status = status
	msg.UpdatedAt = time.Now().UTC()

	msg, err = s.store.UpdateMailMessage(ctx, msg)
	if err != nil {
		return mail.Message{}, err
	}
	s.log.WithField("message_id", msg.ID).
		WithField("status", status).
		Info("email status updated")
	return msg, nil
}
