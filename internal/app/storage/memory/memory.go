// Package memory provides an in-memory implementation of the storage
// interfaces. It is safe for concurrent use and is primarily intended for
// tests and zero-configuration local runs.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lifeos-hq/lifeos/internal/app/domain/admin"
	"github.com/lifeos-hq/lifeos/internal/app/domain/assistant"
	"github.com/lifeos-hq/lifeos/internal/app/domain/billing"
	"github.com/lifeos-hq/lifeos/internal/app/domain/currency"
	"github.com/lifeos-hq/lifeos/internal/app/domain/finance"
	"github.com/lifeos-hq/lifeos/internal/app/domain/habit"
	"github.com/lifeos-hq/lifeos/internal/app/domain/journal"
	"github.com/lifeos-hq/lifeos/internal/app/domain/mail"
	"github.com/lifeos-hq/lifeos/internal/app/domain/notification"
	"github.com/lifeos-hq/lifeos/internal/app/domain/task"
	"github.com/lifeos-hq/lifeos/internal/app/domain/ticket"
	"github.com/lifeos-hq/lifeos/internal/app/domain/user"
	"github.com/lifeos-hq/lifeos/internal/app/storage"
)

// Store is the in-memory implementation of every storage interface.
type Store struct {
	mu     sync.RWMutex
	nextID int64

	users        map[string]user.User
	usersByEmail map[string]string
	sessions     map[string]user.Session
	apiKeys      map[string]user.APIKey
	keysByHash   map[string]string

	tasks    map[string]task.Task
	systems  map[string]habit.System
	habits   map[string]habit.Habit
	checkIns map[string][]habit.CheckIn

	bankAccounts   map[string]finance.BankAccount
	transactions   map[string]finance.Transaction
	savingsGoals   map[string]finance.SavingsGoal
	savingsEntries map[string][]finance.SavingsEntry
	subscriptions  map[string]finance.Subscription
	rates          map[string]currency.Rate

	journalEntries map[string]journal.Entry

	notifications map[string]notification.Notification
	notifTriggers map[string]notification.Trigger

	personas      map[string]assistant.Persona
	conversations map[string]assistant.Conversation
	messages      map[string][]assistant.Message

	tickets  map[string]ticket.Ticket
	settings map[string]admin.Setting

	mailMessages   map[string]mail.Message
	mailByProvider map[string]string

	payments      map[string]billing.Payment
	paymentsByRef map[string]string
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.SessionStore = (*Store)(nil)
var _ storage.APIKeyStore = (*Store)(nil)
var _ storage.TaskStore = (*Store)(nil)
var _ storage.HabitStore = (*Store)(nil)
var _ storage.FinanceStore = (*Store)(nil)
var _ storage.CurrencyStore = (*Store)(nil)
var _ storage.JournalStore = (*Store)(nil)
var _ storage.NotificationStore = (*Store)(nil)
var _ storage.AssistantStore = (*Store)(nil)
var _ storage.TicketStore = (*Store)(nil)
var _ storage.SettingStore = (*Store)(nil)
var _ storage.MailStore = (*Store)(nil)
var _ storage.PaymentStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:         1,
		users:          make(map[string]user.User),
		usersByEmail:   make(map[string]string),
		sessions:       make(map[string]user.Session),
		apiKeys:        make(map[string]user.APIKey),
		keysByHash:     make(map[string]string),
		tasks:          make(map[string]task.Task),
		systems:        make(map[string]habit.System),
		habits:         make(map[string]habit.Habit),
		checkIns:       make(map[string][]habit.CheckIn),
		bankAccounts:   make(map[string]finance.BankAccount),
		transactions:   make(map[string]finance.Transaction),
		savingsGoals:   make(map[string]finance.SavingsGoal),
		savingsEntries: make(map[string][]finance.SavingsEntry),
		subscriptions:  make(map[string]finance.Subscription),
		rates:          make(map[string]currency.Rate),
		journalEntries: make(map[string]journal.Entry),
		notifications:  make(map[string]notification.Notification),
		notifTriggers:  make(map[string]notification.Trigger),
		personas:       make(map[string]assistant.Persona),
		conversations:  make(map[string]assistant.Conversation),
		messages:       make(map[string][]assistant.Message),
		tickets:        make(map[string]ticket.Ticket),
		settings:       make(map[string]admin.Setting),
		mailMessages:   make(map[string]mail.Message),
		mailByProvider: make(map[string]string),
		payments:       make(map[string]billing.Payment),
		paymentsByRef:  make(map[string]string),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// notFound wraps sql.ErrNoRows so services can detect missing rows the same
// way they do with the postgres store.
func notFound(what, id string) error {
	return fmt.Errorf("%s %s: %w", what, id, sql.ErrNoRows)
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	emailKey := strings.ToLower(strings.TrimSpace(u.Email))
	if existing, exists := s.usersByEmail[emailKey]; exists {
		return user.User{}, fmt.Errorf("email %s already registered to user %s", u.Email, existing)
	}

	if u.ID == "" {
		u.ID = s.nextIDLocked()
	} else if _, exists := s.users[u.ID]; exists {
		return user.User{}, fmt.Errorf("user %s already exists", u.ID)
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	s.users[u.ID] = u
	s.usersByEmail[emailKey] = u.ID
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.users[u.ID]
	if !ok {
		return user.User{}, notFound("user", u.ID)
	}

	oldKey := strings.ToLower(strings.TrimSpace(original.Email))
	newKey := strings.ToLower(strings.TrimSpace(u.Email))
	if newKey != oldKey {
		if existing, exists := s.usersByEmail[newKey]; exists && existing != u.ID {
			return user.User{}, fmt.Errorf("email %s already registered to user %s", u.Email, existing)
		}
		delete(s.usersByEmail, oldKey)
		s.usersByEmail[newKey] = u.ID
	}

	u.CreatedAt = original.CreatedAt
	u.UpdatedAt = time.Now().UTC()

	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, notFound("user", id)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return user.User{}, notFound("user", email)
	}
	return s.users[id], nil
}

func (s *Store) ListUsers(_ context.Context) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		result = append(result, u)
	}
	sortByCreated(result, func(u user.User) time.Time { return u.CreatedAt })
	return result, nil
}

func (s *Store) CountUsers(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.users), nil
}

// SessionStore implementation -------------------------------------------------

func (s *Store) CreateSession(_ context.Context, sess user.Session) (user.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.ID == "" {
		sess.ID = s.nextIDLocked()
	}
	sess.CreatedAt = time.Now().UTC()

	s.sessions[sess.TokenHash] = sess
	return sess, nil
}

func (s *Store) GetSessionByTokenHash(_ context.Context, tokenHash string) (user.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[tokenHash]
	if !ok {
		return user.Session{}, fmt.Errorf("session: %w", sql.ErrNoRows)
	}
	return sess, nil
}

func (s *Store) DeleteSessionByTokenHash(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[tokenHash]; !ok {
		return fmt.Errorf("session: %w", sql.ErrNoRows)
	}
	delete(s.sessions, tokenHash)
	return nil
}

func (s *Store) DeleteExpiredSessions(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for hash, sess := range s.sessions {
		if sess.ExpiresAt.Before(now) {
			delete(s.sessions, hash)
			removed++
		}
	}
	return removed, nil
}

// APIKeyStore implementation --------------------------------------------------

func (s *Store) CreateAPIKey(_ context.Context, k user.APIKey) (user.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if k.ID == "" {
		k.ID = s.nextIDLocked()
	}
	k.CreatedAt = time.Now().UTC()

	s.apiKeys[k.ID] = k
	s.keysByHash[k.KeyHash] = k.ID
	return k, nil
}

func (s *Store) GetAPIKeyByHash(_ context.Context, keyHash string) (user.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.keysByHash[keyHash]
	if !ok {
		return user.APIKey{}, fmt.Errorf("api key: %w", sql.ErrNoRows)
	}
	return s.apiKeys[id], nil
}

func (s *Store) ListAPIKeys(_ context.Context, userID string) ([]user.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]user.APIKey, 0)
	for _, k := range s.apiKeys {
		if k.UserID == userID {
			result = append(result, k)
		}
	}
	sortByCreated(result, func(k user.APIKey) time.Time { return k.CreatedAt })
	return result, nil
}

func (s *Store) TouchAPIKey(_ context.Context, id string, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.apiKeys[id]
	if !ok {
		return notFound("api key", id)
	}
	k.LastUsedAt = &usedAt
	s.apiKeys[id] = k
	return nil
}

func (s *Store) DeleteAPIKey(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.apiKeys[id]
	if !ok {
		return notFound("api key", id)
	}
	delete(s.apiKeys, id)
	delete(s.keysByHash, k.KeyHash)
	return nil
}

// Helpers ---------------------------------------------------------------------

// sortByCreated orders newest first; equal timestamps keep insertion order.
func sortByCreated[T any](items []T, created func(T) time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		return created(items[i]).After(created(items[j]))
	})
}

func cloneStrings(src []string) []string {
	return append([]string(nil), src...)
}

func cloneParams(src map[string]interface{}) map[string]interface{} {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
