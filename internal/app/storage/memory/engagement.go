package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lifeos-hq/lifeos/internal/app/domain/admin"
	"github.com/lifeos-hq/lifeos/internal/app/domain/assistant"
	"github.com/lifeos-hq/lifeos/internal/app/domain/billing"
	"github.com/lifeos-hq/lifeos/internal/app/domain/mail"
	"github.com/lifeos-hq/lifeos/internal/app/domain/notification"
	"github.com/lifeos-hq/lifeos/internal/app/domain/ticket"
)

// NotificationStore implementation --------------------------------------------

func (s *Store) CreateNotification(_ context.Context, n notification.Notification) (notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.ID == "" {
		n.ID = s.nextIDLocked()
	}
	n.CreatedAt = time.Now().UTC()

	s.notifications[n.ID] = n
	return n, nil
}

func (s *Store) GetNotification(_ context.Context, id string) (notification.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.notifications[id]
	if !ok {
		return notification.Notification{}, notFound("notification", id)
	}
	return n, nil
}

func (s *Store) ListNotifications(_ context.Context, userID string) ([]notification.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]notification.Notification, 0)
	for _, n := range s.notifications {
		if userID == "" || n.UserID == userID {
			result = append(result, n)
		}
	}
	sortByCreated(result, func(n notification.Notification) time.Time { return n.CreatedAt })
	return result, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, id string) (notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return notification.Notification{}, notFound("notification", id)
	}
	n.Read = true
	s.notifications[id] = n
	return n, nil
}

func (s *Store) MarkAllNotificationsRead(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := 0
	for id, n := range s.notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			s.notifications[id] = n
			updated++
		}
	}
	return updated, nil
}

func (s *Store) DeleteNotification(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notifications[id]; !ok {
		return notFound("notification", id)
	}
	delete(s.notifications, id)
	return nil
}

func (s *Store) CreateTrigger(_ context.Context, trg notification.Trigger) (notification.Trigger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if trg.ID == "" {
		trg.ID = s.nextIDLocked()
	} else if _, exists := s.notifTriggers[trg.ID]; exists {
		return notification.Trigger{}, fmt.Errorf("trigger %s already exists", trg.ID)
	}

	now := time.Now().UTC()
	trg.CreatedAt = now
	trg.UpdatedAt = now
	trg.Params = cloneParams(trg.Params)

	s.notifTriggers[trg.ID] = trg
	return cloneNotifTrigger(trg), nil
}

func (s *Store) UpdateTrigger(_ context.Context, trg notification.Trigger) (notification.Trigger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.notifTriggers[trg.ID]
	if !ok {
		return notification.Trigger{}, notFound("trigger", trg.ID)
	}

	trg.CreatedAt = original.CreatedAt
	trg.UpdatedAt = time.Now().UTC()
	trg.Params = cloneParams(trg.Params)

	s.notifTriggers[trg.ID] = trg
	return cloneNotifTrigger(trg), nil
}

func (s *Store) GetTrigger(_ context.Context, id string) (notification.Trigger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trg, ok := s.notifTriggers[id]
	if !ok {
		return notification.Trigger{}, notFound("trigger", id)
	}
	return cloneNotifTrigger(trg), nil
}

func (s *Store) ListTriggers(_ context.Context, userID string) ([]notification.Trigger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]notification.Trigger, 0)
	for _, trg := range s.notifTriggers {
		if userID == "" || trg.UserID == userID {
			result = append(result, cloneNotifTrigger(trg))
		}
	}
	sortByCreated(result, func(t notification.Trigger) time.Time { return t.CreatedAt })
	return result, nil
}

func (s *Store) ListEnabledTriggers(_ context.Context) ([]notification.Trigger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]notification.Trigger, 0)
	for _, trg := range s.notifTriggers {
		if trg.Enabled {
			result = append(result, cloneNotifTrigger(trg))
		}
	}
	sortByCreated(result, func(t notification.Trigger) time.Time { return t.CreatedAt })
	return result, nil
}

func (s *Store) DeleteTrigger(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notifTriggers[id]; !ok {
		return notFound("trigger", id)
	}
	delete(s.notifTriggers, id)
	return nil
}

// AssistantStore implementation -----------------------------------------------

func (s *Store) CreatePersona(_ context.Context, p assistant.Persona) (assistant.Persona, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.personas {
		if strings.EqualFold(existing.Name, p.Name) {
			return assistant.Persona{}, fmt.Errorf("persona %s already exists", p.Name)
		}
	}

	if p.ID == "" {
		p.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	s.personas[p.ID] = p
	return p, nil
}

func (s *Store) UpdatePersona(_ context.Context, p assistant.Persona) (assistant.Persona, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.personas[p.ID]
	if !ok {
		return assistant.Persona{}, notFound("persona", p.ID)
	}

	p.CreatedAt = original.CreatedAt
	p.UpdatedAt = time.Now().UTC()

	s.personas[p.ID] = p
	return p, nil
}

func (s *Store) GetPersona(_ context.Context, id string) (assistant.Persona, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.personas[id]
	if !ok {
		return assistant.Persona{}, notFound("persona", id)
	}
	return p, nil
}

func (s *Store) GetPersonaByName(_ context.Context, name string) (assistant.Persona, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.personas {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}
	return assistant.Persona{}, fmt.Errorf("persona %s: %w", name, sql.ErrNoRows)
}

func (s *Store) ListPersonas(_ context.Context) ([]assistant.Persona, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]assistant.Persona, 0, len(s.personas))
	for _, p := range s.personas {
		result = append(result, p)
	}
	sortByCreated(result, func(p assistant.Persona) time.Time { return p.CreatedAt })
	return result, nil
}

func (s *Store) DeletePersona(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.personas[id]; !ok {
		return notFound("persona", id)
	}
	delete(s.personas, id)
	return nil
}

func (s *Store) CreateConversation(_ context.Context, c assistant.Conversation) (assistant.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	s.conversations[c.ID] = c
	return c, nil
}

func (s *Store) UpdateConversation(_ context.Context, c assistant.Conversation) (assistant.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.conversations[c.ID]
	if !ok {
		return assistant.Conversation{}, notFound("conversation", c.ID)
	}

	c.CreatedAt = original.CreatedAt
	c.UpdatedAt = time.Now().UTC()

	s.conversations[c.ID] = c
	return c, nil
}

func (s *Store) GetConversation(_ context.Context, id string) (assistant.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[id]
	if !ok {
		return assistant.Conversation{}, notFound("conversation", id)
	}
	return c, nil
}

func (s *Store) ListConversations(_ context.Context, userID string) ([]assistant.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]assistant.Conversation, 0)
	for _, c := range s.conversations {
		if userID == "" || c.UserID == userID {
			result = append(result, c)
		}
	}
	sortByCreated(result, func(c assistant.Conversation) time.Time { return c.UpdatedAt })
	return result, nil
}

func (s *Store) DeleteConversation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[id]; !ok {
		return notFound("conversation", id)
	}
	delete(s.conversations, id)
	delete(s.messages, id)
	return nil
}

func (s *Store) CreateMessage(_ context.Context, m assistant.Message) (assistant.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[m.ConversationID]; !ok {
		return assistant.Message{}, notFound("conversation", m.ConversationID)
	}

	if m.ID == "" {
		m.ID = s.nextIDLocked()
	}
	m.CreatedAt = time.Now().UTC()

	s.messages[m.ConversationID] = append(s.messages[m.ConversationID], m)
	return m, nil
}

func (s *Store) ListMessages(_ context.Context, conversationID string) ([]assistant.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]assistant.Message(nil), s.messages[conversationID]...), nil
}

// TicketStore implementation --------------------------------------------------

func (s *Store) CreateTicket(_ context.Context, t ticket.Ticket) (ticket.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	s.tickets[t.ID] = t
	return t, nil
}

func (s *Store) UpdateTicket(_ context.Context, t ticket.Ticket) (ticket.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.tickets[t.ID]
	if !ok {
		return ticket.Ticket{}, notFound("ticket", t.ID)
	}

	t.CreatedAt = original.CreatedAt
	t.UpdatedAt = time.Now().UTC()

	s.tickets[t.ID] = t
	return t, nil
}

func (s *Store) GetTicket(_ context.Context, id string) (ticket.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tickets[id]
	if !ok {
		return ticket.Ticket{}, notFound("ticket", id)
	}
	return t, nil
}

func (s *Store) ListTickets(_ context.Context, userID string) ([]ticket.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]ticket.Ticket, 0)
	for _, t := range s.tickets {
		if userID == "" || t.UserID == userID {
			result = append(result, t)
		}
	}
	sortByCreated(result, func(t ticket.Ticket) time.Time { return t.CreatedAt })
	return result, nil
}

// SettingStore implementation -------------------------------------------------

func (s *Store) PutSetting(_ context.Context, setting admin.Setting) (admin.Setting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	setting.Value = append([]byte(nil), setting.Value...)
	setting.UpdatedAt = time.Now().UTC()

	s.settings[setting.Key] = setting
	return setting, nil
}

func (s *Store) GetSetting(_ context.Context, key string) (admin.Setting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	setting, ok := s.settings[key]
	if !ok {
		return admin.Setting{}, fmt.Errorf("setting %s: %w", key, sql.ErrNoRows)
	}
	setting.Value = append([]byte(nil), setting.Value...)
	return setting, nil
}

func (s *Store) ListSettings(_ context.Context) ([]admin.Setting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]admin.Setting, 0, len(s.settings))
	for _, setting := range s.settings {
		setting.Value = append([]byte(nil), setting.Value...)
		result = append(result, setting)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

// MailStore implementation ----------------------------------------------------

func (s *Store) CreateMailMessage(_ context.Context, m mail.Message) (mail.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == "" {
		m.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now

	s.mailMessages[m.ID] = m
	if m.ProviderID != "" {
		s.mailByProvider[m.ProviderID] = m.ID
	}
	return m, nil
}

func (s *Store) UpdateMailMessage(_ context.Context, m mail.Message) (mail.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.mailMessages[m.ID]
	if !ok {
		return mail.Message{}, notFound("mail message", m.ID)
	}

	if original.ProviderID != "" && original.ProviderID != m.ProviderID {
		delete(s.mailByProvider, original.ProviderID)
	}
	m.CreatedAt = original.CreatedAt
	m.UpdatedAt = time.Now().UTC()

	s.mailMessages[m.ID] = m
	if m.ProviderID != "" {
		s.mailByProvider[m.ProviderID] = m.ID
	}
	return m, nil
}

func (s *Store) GetMailMessageByProviderID(_ context.Context, providerID string) (mail.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.mailByProvider[providerID]
	if !ok {
		return mail.Message{}, fmt.Errorf("mail message for provider id %s: %w", providerID, sql.ErrNoRows)
	}
	return s.mailMessages[id], nil
}

func (s *Store) ListMailMessages(_ context.Context, userID string) ([]mail.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]mail.Message, 0)
	for _, m := range s.mailMessages {
		if userID == "" || m.UserID == userID {
			result = append(result, m)
		}
	}
	sortByCreated(result, func(m mail.Message) time.Time { return m.CreatedAt })
	return result, nil
}

// PaymentStore implementation -------------------------------------------------

func (s *Store) CreatePayment(_ context.Context, p billing.Payment) (billing.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	refKey := p.Provider + "/" + p.Reference
	if existing, exists := s.paymentsByRef[refKey]; exists {
		return billing.Payment{}, fmt.Errorf("payment reference %s already recorded as %s", p.Reference, existing)
	}

	if p.ID == "" {
		p.ID = s.nextIDLocked()
	}
	p.CreatedAt = time.Now().UTC()

	s.payments[p.ID] = p
	s.paymentsByRef[refKey] = p.ID
	return p, nil
}

func (s *Store) GetPaymentByReference(_ context.Context, provider, reference string) (billing.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.paymentsByRef[provider+"/"+reference]
	if !ok {
		return billing.Payment{}, fmt.Errorf("payment %s/%s: %w", provider, reference, sql.ErrNoRows)
	}
	return s.payments[id], nil
}

func (s *Store) ListPayments(_ context.Context, userID string) ([]billing.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]billing.Payment, 0)
	for _, p := range s.payments {
		if userID == "" || p.UserID == userID {
			result = append(result, p)
		}
	}
	sortByCreated(result, func(p billing.Payment) time.Time { return p.CreatedAt })
	return result, nil
}

func cloneNotifTrigger(trg notification.Trigger) notification.Trigger {
	trg.Params = cloneParams(trg.Params)
	return trg
}
