package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/lifeos-hq/lifeos/internal/app/domain/admin"
	"github.com/lifeos-hq/lifeos/internal/app/domain/assistant"
	"github.com/lifeos-hq/lifeos/internal/app/domain/billing"
	"github.com/lifeos-hq/lifeos/internal/app/domain/mail"
	"github.com/lifeos-hq/lifeos/internal/app/domain/notification"
	"github.com/lifeos-hq/lifeos/internal/app/domain/ticket"
)

// --- NotificationStore ------------------------------------------------------

func (s *Store) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_notifications (id, user_id, kind, title, body, link, read, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, n.ID, n.UserID, n.Kind, n.Title, n.Body, n.Link, n.Read, n.Source, n.CreatedAt)
	if err != nil {
		return notification.Notification{}, err
	}
	return n, nil
}

func (s *Store) GetNotification(ctx context.Context, id string) (notification.Notification, error) {
	var n notification.Notification
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, kind, title, body, link, read, source, created_at
		FROM app_notifications
		WHERE id = $1
	`, id).Scan(&n.ID, &n.UserID, &n.Kind, &n.Title, &n.Body, &n.Link, &n.Read, &n.Source, &n.CreatedAt)
	if err != nil {
		return notification.Notification{}, err
	}
	return n, nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string) ([]notification.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, kind, title, body, link, read, source, created_at
		FROM app_notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []notification.Notification
	for rows.Next() {
		var n notification.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Title, &n.Body, &n.Link, &n.Read, &n.Source, &n.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

func (s *Store) MarkNotificationRead(ctx context.Context, id string) (notification.Notification, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE app_notifications SET read = TRUE WHERE id = $1
	`, id)
	if err != nil {
		return notification.Notification{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return notification.Notification{}, sql.ErrNoRows
	}
	return s.GetNotification(ctx, id)
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE app_notifications SET read = TRUE WHERE user_id = $1 AND NOT read
	`, userID)
	if err != nil {
		return 0, err
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

func (s *Store) DeleteNotification(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM app_notifications WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) CreateTrigger(ctx context.Context, trg notification.Trigger) (notification.Trigger, error) {
	if trg.ID == "" {
		trg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	trg.CreatedAt = now
	trg.UpdatedAt = now

	params, _ := json.Marshal(trg.Params)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_notification_triggers (id, user_id, kind, params, hour, enabled, last_fired_day, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, trg.ID, trg.UserID, trg.Kind, params, trg.Hour, trg.Enabled, trg.LastFiredDay, trg.CreatedAt, trg.UpdatedAt)
	if err != nil {
		return notification.Trigger{}, err
	}
	return trg, nil
}

func (s *Store) UpdateTrigger(ctx context.Context, trg notification.Trigger) (notification.Trigger, error) {
	existing, err := s.GetTrigger(ctx, trg.ID)
	if err != nil {
		return notification.Trigger{}, err
	}

	trg.UserID = existing.UserID
	trg.CreatedAt = existing.CreatedAt
	trg.UpdatedAt = time.Now().UTC()

	params, _ := json.Marshal(trg.Params)
	result, err := s.db.ExecContext(ctx, `
		UPDATE app_notification_triggers
		SET kind = $2, params = $3, hour = $4, enabled = $5, last_fired_day = $6, updated_at = $7
		WHERE id = $1
	`, trg.ID, trg.Kind, params, trg.Hour, trg.Enabled, trg.LastFiredDay, trg.UpdatedAt)
	if err != nil {
		return notification.Trigger{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return notification.Trigger{}, sql.ErrNoRows
	}
	return trg, nil
}

func (s *Store) GetTrigger(ctx context.Context, id string) (notification.Trigger, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, kind, params, hour, enabled, last_fired_day, created_at, updated_at
		FROM app_notification_triggers
		WHERE id = $1
	`, id)
	return scanTrigger(row.Scan)
}

func (s *Store) ListTriggers(ctx context.Context, userID string) ([]notification.Trigger, error) {
	return s.listTriggers(ctx, `
		SELECT id, user_id, kind, params, hour, enabled, last_fired_day, created_at, updated_at
		FROM app_notification_triggers
		WHERE user_id = $1
		ORDER BY created_at
	`, userID)
}

func (s *Store) ListEnabledTriggers(ctx context.Context) ([]notification.Trigger, error) {
	return s.listTriggers(ctx, `
		SELECT id, user_id, kind, params, hour, enabled, last_fired_day, created_at, updated_at
		FROM app_notification_triggers
		WHERE enabled
		ORDER BY created_at
	`)
}

func (s *Store) listTriggers(ctx context.Context, query string, args ...interface{}) ([]notification.Trigger, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []notification.Trigger
	for rows.Next() {
		trg, err := scanTrigger(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, trg)
	}
	return result, rows.Err()
}

func scanTrigger(scan func(dest ...interface{}) error) (notification.Trigger, error) {
	var (
		trg    notification.Trigger
		params []byte
	)
	err := scan(&trg.ID, &trg.UserID, &trg.Kind, &params, &trg.Hour, &trg.Enabled, &trg.LastFiredDay, &trg.CreatedAt, &trg.UpdatedAt)
	if err != nil {
		return notification.Trigger{}, err
	}
	if len(params) > 0 {
		_ = json.Unmarshal(params, &trg.Params)
	}
	return trg, nil
}

func (s *Store) DeleteTrigger(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM app_notification_triggers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// --- AssistantStore ---------------------------------------------------------

func (s *Store) CreatePersona(ctx context.Context, p assistant.Persona) (assistant.Persona, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_personas (id, name, tagline, system_prompt, built_in, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ID, p.Name, p.Tagline, p.SystemPrompt, p.BuiltIn, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return assistant.Persona{}, err
	}
	return p, nil
}

func (s *Store) UpdatePersona(ctx context.Context, p assistant.Persona) (assistant.Persona, error) {
	existing, err := s.GetPersona(ctx, p.ID)
	if err != nil {
		return assistant.Persona{}, err
	}

	p.BuiltIn = existing.BuiltIn
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE app_personas
		SET name = $2, tagline = $3, system_prompt = $4, updated_at = $5
		WHERE id = $1
	`, p.ID, p.Name, p.Tagline, p.SystemPrompt, p.UpdatedAt)
	if err != nil {
		return assistant.Persona{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return assistant.Persona{}, sql.ErrNoRows
	}
	return p, nil
}

func (s *Store) GetPersona(ctx context.Context, id string) (assistant.Persona, error) {
	return s.scanPersona(s.db.QueryRowContext(ctx, `
		SELECT id, name, tagline, system_prompt, built_in, created_at, updated_at
		FROM app_personas
		WHERE id = $1
	`, id))
}

func (s *Store) GetPersonaByName(ctx context.Context, name string) (assistant.Persona, error) {
	return s.scanPersona(s.db.QueryRowContext(ctx, `
		SELECT id, name, tagline, system_prompt, built_in, created_at, updated_at
		FROM app_personas
		WHERE LOWER(name) = LOWER($1)
	`, name))
}

func (s *Store) scanPersona(row *sql.Row) (assistant.Persona, error) {
	var p assistant.Persona
	if err := row.Scan(&p.ID, &p.Name, &p.Tagline, &p.SystemPrompt, &p.BuiltIn, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return assistant.Persona{}, err
	}
	return p, nil
}

func (s *Store) ListPersonas(ctx context.Context) ([]assistant.Persona, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, tagline, system_prompt, built_in, created_at, updated_at
		FROM app_personas
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []assistant.Persona
	for rows.Next() {
		var p assistant.Persona
		if err := rows.Scan(&p.ID, &p.Name, &p.Tagline, &p.SystemPrompt, &p.BuiltIn, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *Store) DeletePersona(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM app_personas WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) CreateConversation(ctx context.Context, c assistant.Conversation) (assistant.Conversation, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_conversations (id, user_id, persona_id, title, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.ID, c.UserID, c.PersonaID, c.Title, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return assistant.Conversation{}, err
	}
	return c, nil
}

func (s *Store) UpdateConversation(ctx context.Context, c assistant.Conversation) (assistant.Conversation, error) {
	existing, err := s.GetConversation(ctx, c.ID)
	if err != nil {
		return assistant.Conversation{}, err
	}

	c.UserID = existing.UserID
	c.PersonaID = existing.PersonaID
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE app_conversations SET title = $2, updated_at = $3 WHERE id = $1
	`, c.ID, c.Title, c.UpdatedAt)
	if err != nil {
		return assistant.Conversation{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return assistant.Conversation{}, sql.ErrNoRows
	}
	return c, nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (assistant.Conversation, error) {
	var c assistant.Conversation
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, persona_id, title, created_at, updated_at
		FROM app_conversations
		WHERE id = $1
	`, id).Scan(&c.ID, &c.UserID, &c.PersonaID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return assistant.Conversation{}, err
	}
	return c, nil
}

func (s *Store) ListConversations(ctx context.Context, userID string) ([]assistant.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, persona_id, title, created_at, updated_at
		FROM app_conversations
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []assistant.Conversation
	for rows.Next() {
		var c assistant.Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.PersonaID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// DeleteConversation removes the conversation together with its messages.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM app_messages WHERE conversation_id = $1`, id); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM app_conversations WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
}

func (s *Store) CreateMessage(ctx context.Context, m assistant.Message) (assistant.Message, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_messages (id, conversation_id, user_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, m.ID, m.ConversationID, m.UserID, m.Role, m.Content, m.CreatedAt)
	if err != nil {
		return assistant.Message{}, err
	}
	return m, nil
}

func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]assistant.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, user_id, role, content, created_at
		FROM app_messages
		WHERE conversation_id = $1
		ORDER BY created_at
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []assistant.Message
	for rows.Next() {
		var m assistant.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.UserID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// --- TicketStore ------------------------------------------------------------

func (s *Store) CreateTicket(ctx context.Context, t ticket.Ticket) (ticket.Ticket, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_tickets (id, user_id, subject, body, status, reply, replied_by, replied_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, t.ID, t.UserID, t.Subject, t.Body, t.Status, t.Reply, t.RepliedBy, ptrToNullTime(t.RepliedAt), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return ticket.Ticket{}, err
	}
	return t, nil
}

func (s *Store) UpdateTicket(ctx context.Context, t ticket.Ticket) (ticket.Ticket, error) {
	existing, err := s.GetTicket(ctx, t.ID)
	if err != nil {
		return ticket.Ticket{}, err
	}

	t.UserID = existing.UserID
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE app_tickets
		SET subject = $2, body = $3, status = $4, reply = $5, replied_by = $6, replied_at = $7, updated_at = $8
		WHERE id = $1
	`, t.ID, t.Subject, t.Body, t.Status, t.Reply, t.RepliedBy, ptrToNullTime(t.RepliedAt), t.UpdatedAt)
	if err != nil {
		return ticket.Ticket{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ticket.Ticket{}, sql.ErrNoRows
	}
	return t, nil
}

func (s *Store) GetTicket(ctx context.Context, id string) (ticket.Ticket, error) {
	var (
		t         ticket.Ticket
		repliedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, subject, body, status, reply, replied_by, replied_at, created_at, updated_at
		FROM app_tickets
		WHERE id = $1
	`, id).Scan(&t.ID, &t.UserID, &t.Subject, &t.Body, &t.Status, &t.Reply, &t.RepliedBy, &repliedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return ticket.Ticket{}, err
	}
	t.RepliedAt = nullTimeToPtr(repliedAt)
	return t, nil
}

func (s *Store) ListTickets(ctx context.Context, userID string) ([]ticket.Ticket, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, subject, body, status, reply, replied_by, replied_at, created_at, updated_at
		FROM app_tickets
		WHERE $1 = '' OR user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ticket.Ticket
	for rows.Next() {
		var (
			t         ticket.Ticket
			repliedAt sql.NullTime
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.Subject, &t.Body, &t.Status, &t.Reply, &t.RepliedBy, &repliedAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		t.RepliedAt = nullTimeToPtr(repliedAt)
		result = append(result, t)
	}
	return result, rows.Err()
}

// --- SettingStore -----------------------------------------------------------

func (s *Store) PutSetting(ctx context.Context, setting admin.Setting) (admin.Setting, error) {
	setting.UpdatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_settings (key, value, updated_by, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET value = $2, updated_by = $3, updated_at = $4
	`, setting.Key, []byte(setting.Value), setting.UpdatedBy, setting.UpdatedAt)
	if err != nil {
		return admin.Setting{}, err
	}
	return setting, nil
}

func (s *Store) GetSetting(ctx context.Context, key string) (admin.Setting, error) {
	var (
		setting admin.Setting
		value   []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT key, value, updated_by, updated_at
		FROM app_settings
		WHERE key = $1
	`, key).Scan(&setting.Key, &value, &setting.UpdatedBy, &setting.UpdatedAt)
	if err != nil {
		return admin.Setting{}, err
	}
	setting.Value = json.RawMessage(value)
	return setting, nil
}

func (s *Store) ListSettings(ctx context.Context) ([]admin.Setting, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value, updated_by, updated_at
		FROM app_settings
		ORDER BY key
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []admin.Setting
	for rows.Next() {
		var (
			setting admin.Setting
			value   []byte
		)
		if err := rows.Scan(&setting.Key, &value, &setting.UpdatedBy, &setting.UpdatedAt); err != nil {
			return nil, err
		}
		setting.Value = json.RawMessage(value)
		result = append(result, setting)
	}
	return result, rows.Err()
}

// --- MailStore --------------------------------------------------------------

func (s *Store) CreateMailMessage(ctx context.Context, m mail.Message) (mail.Message, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_mail_messages (id, user_id, recipient, subject, template, provider_id, status, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, m.ID, m.UserID, m.To, m.Subject, m.Template, m.ProviderID, m.Status, m.Error, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return mail.Message{}, err
	}
	return m, nil
}

func (s *Store) UpdateMailMessage(ctx context.Context, m mail.Message) (mail.Message, error) {
	m.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE app_mail_messages
		SET provider_id = $2, status = $3, error = $4, updated_at = $5
		WHERE id = $1
	`, m.ID, m.ProviderID, m.Status, m.Error, m.UpdatedAt)
	if err != nil {
		return mail.Message{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return mail.Message{}, sql.ErrNoRows
	}
	return m, nil
}

func (s *Store) GetMailMessageByProviderID(ctx context.Context, providerID string) (mail.Message, error) {
	var m mail.Message
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, recipient, subject, template, provider_id, status, error, created_at, updated_at
		FROM app_mail_messages
		WHERE provider_id = $1
	`, providerID).Scan(&m.ID, &m.UserID, &m.To, &m.Subject, &m.Template, &m.ProviderID, &m.Status, &m.Error, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return mail.Message{}, err
	}
	return m, nil
}

func (s *Store) ListMailMessages(ctx context.Context, userID string) ([]mail.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, recipient, subject, template, provider_id, status, error, created_at, updated_at
		FROM app_mail_messages
		WHERE $1 = '' OR user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []mail.Message
	for rows.Next() {
		var m mail.Message
		if err := rows.Scan(&m.ID, &m.UserID, &m.To, &m.Subject, &m.Template, &m.ProviderID, &m.Status, &m.Error, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// --- PaymentStore -----------------------------------------------------------

func (s *Store) CreatePayment(ctx context.Context, p billing.Payment) (billing.Payment, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_payments (id, user_id, provider, reference, amount, currency, plan, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, p.ID, p.UserID, p.Provider, p.Reference, p.Amount, p.Currency, p.Plan, p.Status, p.CreatedAt)
	if err != nil {
		return billing.Payment{}, err
	}
	return p, nil
}

func (s *Store) GetPaymentByReference(ctx context.Context, provider, reference string) (billing.Payment, error) {
	var p billing.Payment
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, provider, reference, amount, currency, plan, status, created_at
		FROM app_payments
		WHERE provider = $1 AND reference = $2
	`, provider, reference).Scan(&p.ID, &p.UserID, &p.Provider, &p.Reference, &p.Amount, &p.Currency, &p.Plan, &p.Status, &p.CreatedAt)
	if err != nil {
		return billing.Payment{}, err
	}
	return p, nil
}

func (s *Store) ListPayments(ctx context.Context, userID string) ([]billing.Payment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, provider, reference, amount, currency, plan, status, created_at
		FROM app_payments
		WHERE $1 = '' OR user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []billing.Payment
	for rows.Next() {
		var p billing.Payment
		if err := rows.Scan(&p.ID, &p.UserID, &p.Provider, &p.Reference, &p.Amount, &p.Currency, &p.Plan, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}
