// Package tickets manages support requests and the admin reply flow.
package tickets

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lifeos-hq/lifeos/internal/app/domain/ticket"
	"github.com/lifeos-hq/lifeos/internal/app/realtime"
	"github.com/lifeos-hq/lifeos/internal/app/services/mailer"
	"github.com/lifeos-hq/lifeos/internal/app/services/notifications"
	"github.com/lifeos-hq/lifeos/internal/app/storage"
	"github.com/lifeos-hq/lifeos/pkg/logger"
)

// Service manages support tickets.
type Service struct {
	store  storage.TicketStore
	users  storage.UserStore
	log    *logger.Logger
	hub    *realtime.Hub
	notify *notifications.Service
	mail   *mailer.Service
}

// New constructs a ticket service.
func New(store storage.TicketStore, users storage.UserStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("tickets")
	}
	return &Service{store: store, users: users, log: log}
}

// AttachHub enables realtime ticket events.
func (s *Service) AttachHub(hub *realtime.Hub) {
	s.hub = hub
}

// AttachNotifier enables in-app reply notifications.
func (s *Service) AttachNotifier(notify *notifications.Service) {
	s.notify = notify
}

// AttachMailer enables ticket emails.
func (s *Service) AttachMailer(mail *mailer.Service) {
	s.mail = mail
}

// Create opens a ticket and sends a best-effort acknowledgment email.
func (s *Service) Create(ctx context.Context, userID, subject, body string) (ticket.Ticket, error) {
	subject = strings.TrimSpace(subject)
	body = strings.TrimSpace(body)
	if subject == "" {
		return ticket.Ticket{}, fmt.Errorf("subject is required")
	}
	if body == "" {
		return ticket.Ticket{}, fmt.Errorf("body is required")
	}

	t, err := s.store.CreateTicket(ctx, ticket.Ticket{
		UserID:  userID,
		Subject: subject,
		Body:    body,
		Status:  ticket.StatusOpen,
	})
	if err != nil {
		return ticket.Ticket{}, err
	}

	s.acknowledge(ctx, t)
	s.hub.Publish(userID, realtime.TopicTickets, realtime.EventInsert, t)
	s.log.WithField("ticket_id", t.ID).
		WithField("user_id", userID).
		Info("ticket opened")
	return t, nil
}

// Get returns one of the user's tickets.
func (s *Service) Get(ctx context.Context, userID, ticketID string) (ticket.Ticket, error) {
	return s.owned(ctx, userID, ticketID)
}

// List returns the user's tickets, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]ticket.Ticket, error) {
	return s.store.ListTickets(ctx, userID)
}

// ListAll returns every ticket, optionally narrowed to one status. Admin only;
// the HTTP layer enforces the role.
func (s *Service) ListAll(ctx context.Context, status string) ([]ticket.Ticket, error) {
	if status != "" && !ticket.KnownStatus(status) {
		return nil, fmt.Errorf("unknown ticket status %q", status)
	}
	all, err := s.store.ListTickets(ctx, "")
	if err != nil {
		return nil, err
	}
	if status == "" {
		return all, nil
	}
	out := make([]ticket.Ticket, 0, len(all))
	for _, t := range all {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out, nil
}

// Update sets the status and optionally records an admin reply. A reply is
// emailed to the ticket owner and raised as a notification.
func (s *Service) Update(ctx context.Context, adminID, ticketID string, status, reply *string) (ticket.Ticket, error) {
	t, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		return ticket.Ticket{}, err
	}

	if status != nil {
		if !ticket.KnownStatus(*status) {
			return ticket.Ticket{}, fmt.Errorf("unknown ticket status %q", *status)
		}
		t.Status = *status
	}

	replied := false
	if reply != nil {
		text := strings.TrimSpace(*reply)
		if text == "" {
			return ticket.Ticket{}, fmt.Errorf("reply cannot be empty")
		}
		now := time.Now().UTC()
		t.Reply = text
		t.RepliedBy = adminID
		t.RepliedAt = &now
		replied = true
	}

	t, err = s.store.UpdateTicket(ctx, t)
	if err != nil {
		return ticket.Ticket{}, err
	}

	if replied {
		s.deliverReply(ctx, t)
	}
	s.hub.Publish(t.UserID, realtime.TopicTickets, realtime.EventUpdate, t)
	s.log.WithField("ticket_id", t.ID).
		WithField("status", t.Status).
		WithField("replied", replied).
		Info("ticket updated")
	return t, nil
}

// acknowledge confirms receipt by email. The canned reply text rides the
// ticket_reply template so the template set stays closed.
func (s *Service) acknowledge(ctx context.Context, t ticket.Ticket) {
	if !s.mail.Enabled() {
		return
	}
	u, err := s.users.GetUser(ctx, t.UserID)
	if err != nil {
		s.log.WithError(err).Warn("ticket owner lookup failed")
		return
	}
	_, err = s.mail.Send(ctx, u.ID, u.Email, mailer.TemplateTicketReply, map[string]string{
		"name":    u.DisplayName,
		"subject": t.Subject,
		"reply":   "We received your request and will get back to you shortly.",
	})
	if err != nil {
		s.log.WithError(err).Warn("ticket acknowledgment email failed")
	}
}

// deliverReply pushes an admin reply to the owner over email and the
// notification inbox. Both channels are best-effort.
func (s *Service) deliverReply(ctx context.Context, t ticket.Ticket) {
	if s.notify != nil {
		_, err := s.notify.Notify(ctx, t.UserID, "ticket",
			fmt.Sprintf("Support replied: %s", t.Subject),
			t.Reply, "/support", "tickets")
		if err != nil {
			s.log.WithError(err).Warn("ticket reply notification failed")
		}
	}

	if !s.mail.Enabled() {
		return
	}
	u, err := s.users.GetUser(ctx, t.UserID)
	if err != nil {
		s.log.WithError(err).Warn("ticket owner lookup failed")
		return
	}
	_, err = s.mail.Send(ctx, u.ID, u.Email, mailer.TemplateTicketReply, map[string]string{
		"name":    u.DisplayName,
		"subject": t.Subject,
		"reply":   t.Reply,
	})
	if err != nil {
		s.log.WithError(err).Warn("ticket reply email failed")
	}
}

func (s *Service) owned(ctx context.Context, userID, ticketID string) (ticket.Ticket, error) {
	t, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		return ticket.Ticket{}, err
	}
	if t.UserID != userID {
		return ticket.Ticket{}, fmt.Errorf("ticket %s: %w", ticketID, sql.ErrNoRows)
	}
	return t, nil
}
