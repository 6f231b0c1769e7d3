package storage

import (
	"context"
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
)

// Missing rows are reported as sql.ErrNoRows by every implementation,
// including the in-memory one, so services map them uniformly.

// UserStore persists user records.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)
	CountUsers(ctx context.Context) (int, error)
}

// SessionStore persists login sessions keyed by token hash.
type SessionStore interface {
	CreateSession(ctx context.Context, s user.Session) (user.Session, error)
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (user.Session, error)
	DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error)
}

// APIKeyStore persists API keys keyed by key hash.
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, k user.APIKey) (user.APIKey, error)
	GetAPIKeyByHash(ctx context.Context, keyHash string) (user.APIKey, error)
	ListAPIKeys(ctx context.Context, userID string) ([]user.APIKey, error)
	TouchAPIKey(ctx context.Context, id string, usedAt time.Time) error
	DeleteAPIKey(ctx context.Context, id string) error
}

// TaskStore persists tasks.
type TaskStore interface {
	CreateTask(ctx context.Context, t task.Task) (task.Task, error)
	UpdateTask(ctx context.Context, t task.Task) (task.Task, error)
	GetTask(ctx context.Context, id string) (task.Task, error)
	ListTasks(ctx context.Context, userID string) ([]task.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

// HabitStore persists systems, their habits and habit check-ins.
// DeleteSystem cascades to the system's habits and their check-ins.
type HabitStore interface {
	CreateSystem(ctx context.Context, s habit.System) (habit.System, error)
	UpdateSystem(ctx context.Context, s habit.System) (habit.System, error)
	GetSystem(ctx context.Context, id string) (habit.System, error)
	ListSystems(ctx context.Context, userID string) ([]habit.System, error)
	DeleteSystem(ctx context.Context, id string) error

	CreateHabit(ctx context.Context, h habit.Habit) (habit.Habit, error)
	UpdateHabit(ctx context.Context, h habit.Habit) (habit.Habit, error)
	GetHabit(ctx context.Context, id string) (habit.Habit, error)
	ListHabits(ctx context.Context, systemID string) ([]habit.Habit, error)
	ListUserHabits(ctx context.Context, userID string) ([]habit.Habit, error)
	DeleteHabit(ctx context.Context, id string) error

	CreateCheckIn(ctx context.Context, c habit.CheckIn) (habit.CheckIn, error)
	GetCheckIn(ctx context.Context, habitID, day string) (habit.CheckIn, error)
	ListCheckIns(ctx context.Context, habitID string) ([]habit.CheckIn, error)
	DeleteCheckIn(ctx context.Context, habitID, day string) error
}

// FinanceStore persists bank accounts, transactions, savings goals and
// subscriptions. Balance-affecting operations are atomic within the store.
type FinanceStore interface {
	CreateBankAccount(ctx context.Context, acct finance.BankAccount) (finance.BankAccount, error)
	UpdateBankAccount(ctx context.Context, acct finance.BankAccount) (finance.BankAccount, error)
	GetBankAccount(ctx context.Context, id string) (finance.BankAccount, error)
	ListBankAccounts(ctx context.Context, userID string) ([]finance.BankAccount, error)
	DeleteBankAccount(ctx context.Context, id string) error
	// SetPrimaryBankAccount flags one account and clears the flag on every
	// other account owned by the same user, in one atomic step.
	SetPrimaryBankAccount(ctx context.Context, userID, accountID string) error

	// ApplyTransaction inserts the transaction and shifts each listed account
	// balance by its delta, atomically.
	ApplyTransaction(ctx context.Context, tx finance.Transaction, balanceDeltas map[string]float64) (finance.Transaction, error)
	UpdateTransaction(ctx context.Context, tx finance.Transaction) (finance.Transaction, error)
	GetTransaction(ctx context.Context, id string) (finance.Transaction, error)
	ListTransactions(ctx context.Context, userID string) ([]finance.Transaction, error)
	// DeleteTransaction removes the row and applies the reversing balance
	// deltas, atomically.
	DeleteTransaction(ctx context.Context, id string, balanceDeltas map[string]float64) error
	CountTransactionsByAccount(ctx context.Context, accountID string) (int, error)

	CreateSavingsGoal(ctx context.Context, goal finance.SavingsGoal) (finance.SavingsGoal, error)
	UpdateSavingsGoal(ctx context.Context, goal finance.SavingsGoal) (finance.SavingsGoal, error)
	GetSavingsGoal(ctx context.Context, id string) (finance.SavingsGoal, error)
	ListSavingsGoals(ctx context.Context, userID string) ([]finance.SavingsGoal, error)
	DeleteSavingsGoal(ctx context.Context, id string) error

	CreateSavingsEntry(ctx context.Context, entry finance.SavingsEntry) (finance.SavingsEntry, error)
	ListSavingsEntries(ctx context.Context, goalID string) ([]finance.SavingsEntry, error)
	DeleteSavingsEntry(ctx context.Context, id string) error
	// RecalcSavingsGoal rewrites the goal balance as the sum of its entries
	// and returns the updated goal.
	RecalcSavingsGoal(ctx context.Context, goalID string) (finance.SavingsGoal, error)

	CreateSubscription(ctx context.Context, sub finance.Subscription) (finance.Subscription, error)
	UpdateSubscription(ctx context.Context, sub finance.Subscription) (finance.Subscription, error)
	GetSubscription(ctx context.Context, id string) (finance.Subscription, error)
	ListSubscriptions(ctx context.Context, userID string) ([]finance.Subscription, error)
	DeleteSubscription(ctx context.Context, id string) error
}

// CurrencyStore persists conversion rates into the base currency.
type CurrencyStore interface {
	UpsertRate(ctx context.Context, rate currency.Rate) (currency.Rate, error)
	GetRate(ctx context.Context, code string) (currency.Rate, error)
	ListRates(ctx context.Context) ([]currency.Rate, error)
}

// JournalStore persists journal entries.
type JournalStore interface {
	CreateEntry(ctx context.Context, e journal.Entry) (journal.Entry, error)
	UpdateEntry(ctx context.Context, e journal.Entry) (journal.Entry, error)
	GetEntry(ctx context.Context, id string) (journal.Entry, error)
	ListEntries(ctx context.Context, userID string) ([]journal.Entry, error)
	DeleteEntry(ctx context.Context, id string) error
}

// NotificationStore persists notifications and per-user trigger rules.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error)
	GetNotification(ctx context.Context, id string) (notification.Notification, error)
	ListNotifications(ctx context.Context, userID string) ([]notification.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) (notification.Notification, error)
	MarkAllNotificationsRead(ctx context.Context, userID string) (int, error)
	DeleteNotification(ctx context.Context, id string) error

	CreateTrigger(ctx context.Context, trg notification.Trigger) (notification.Trigger, error)
	UpdateTrigger(ctx context.Context, trg notification.Trigger) (notification.Trigger, error)
	GetTrigger(ctx context.Context, id string) (notification.Trigger, error)
	ListTriggers(ctx context.Context, userID string) ([]notification.Trigger, error)
	ListEnabledTriggers(ctx context.Context) ([]notification.Trigger, error)
	DeleteTrigger(ctx context.Context, id string) error
}

// AssistantStore persists personas, conversations and messages.
// DeleteConversation cascades to the conversation's messages.
type AssistantStore interface {
	CreatePersona(ctx context.Context, p assistant.Persona) (assistant.Persona, error)
	UpdatePersona(ctx context.Context, p assistant.Persona) (assistant.Persona, error)
	GetPersona(ctx context.Context, id string) (assistant.Persona, error)
	GetPersonaByName(ctx context.Context, name string) (assistant.Persona, error)
	ListPersonas(ctx context.Context) ([]assistant.Persona, error)
	DeletePersona(ctx context.Context, id string) error

	CreateConversation(ctx context.Context, c assistant.Conversation) (assistant.Conversation, error)
	UpdateConversation(ctx context.Context, c assistant.Conversation) (assistant.Conversation, error)
	GetConversation(ctx context.Context, id string) (assistant.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]assistant.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error

	CreateMessage(ctx context.Context, m assistant.Message) (assistant.Message, error)
	ListMessages(ctx context.Context, conversationID string) ([]assistant.Message, error)
}

// TicketStore persists support tickets. An empty userID lists every ticket.
type TicketStore interface {
	CreateTicket(ctx context.Context, t ticket.Ticket) (ticket.Ticket, error)
	UpdateTicket(ctx context.Context, t ticket.Ticket) (ticket.Ticket, error)
	GetTicket(ctx context.Context, id string) (ticket.Ticket, error)
	ListTickets(ctx context.Context, userID string) ([]ticket.Ticket, error)
}

// SettingStore persists admin settings.
type SettingStore interface {
	PutSetting(ctx context.Context, s admin.Setting) (admin.Setting, error)
	GetSetting(ctx context.Context, key string) (admin.Setting, error)
	ListSettings(ctx context.Context) ([]admin.Setting, error)
}

// MailStore persists the outbound email log.
type MailStore interface {
	CreateMailMessage(ctx context.Context, m mail.Message) (mail.Message, error)
	UpdateMailMessage(ctx context.Context, m mail.Message) (mail.Message, error)
	GetMailMessageByProviderID(ctx context.Context, providerID string) (mail.Message, error)
	ListMailMessages(ctx context.Context, userID string) ([]mail.Message, error)
}

// PaymentStore persists verified provider charges.
type PaymentStore interface {
	CreatePayment(ctx context.Context, p billing.Payment) (billing.Payment, error)
	GetPaymentByReference(ctx context.Context, provider, reference string) (billing.Payment, error)
	ListPayments(ctx context.Context, userID string) ([]billing.Payment, error)
}
