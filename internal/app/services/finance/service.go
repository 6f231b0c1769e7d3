// Package finance manages bank accounts, the transaction ledger, savings
// goals and subscriptions. All derived figures are normalised into the NGN
// base currency through the rates service.
package finance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	currencydomain "github.com/lifeos-hq/lifeos/internal/app/domain/currency"
	"github.com/lifeos-hq/lifeos/internal/app/domain/finance"
	"github.com/lifeos-hq/lifeos/internal/app/realtime"
	"github.com/lifeos-hq/lifeos/internal/app/services/assistant"
	"github.com/lifeos-hq/lifeos/internal/app/services/currency"
	"github.com/lifeos-hq/lifeos/internal/app/services/entitlements"
	"github.com/lifeos-hq/lifeos/internal/app/services/mailer"
	"github.com/lifeos-hq/lifeos/internal/app/services/notifications"
	"github.com/lifeos-hq/lifeos/internal/app/storage"
	"github.com/lifeos-hq/lifeos/pkg/logger"
)

// ErrAccountInUse rejects deleting an account that still has transactions.
var ErrAccountInUse = errors.New("account has transactions")

// Service manages the finance domain.
type Service struct {
	store  storage.FinanceStore
	users  storage.UserStore
	rates  *currency.Service
	ent    *entitlements.Service
	log    *logger.Logger
	hub    *realtime.Hub
	notify *notifications.Service
	mail   *mailer.Service
	assist *assistant.Service
}

// New constructs a finance service. The rates service is required; the
// entitlements service gates reports and auto-categorization.
func New(store storage.FinanceStore, users storage.UserStore, rates *currency.Service, ent *entitlements.Service, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("finance")
	}
	return &Service{store: store, users: users, rates: rates, ent: ent, log: log}
}

// AttachHub enables realtime change events.
func (s *Service) AttachHub(hub *realtime.Hub) {
	s.hub = hub
}

// AttachNotifier enables goal-reached notifications.
func (s *Service) AttachNotifier(notify *notifications.Service) {
	s.notify = notify
}

// AttachMailer enables goal-reached emails.
func (s *Service) AttachMailer(mail *mailer.Service) {
	s.mail = mail
}

// AttachAssistant enables auto-categorization of uncategorized expenses.
func (s *Service) AttachAssistant(assist *assistant.Service) {
	s.assist = assist
}

// CreateAccount stores a new bank account. The user's first account becomes
// primary.
func (s *Service) CreateAccount(ctx context.Context, userID, name, institution, kind, currencyCode string, openingBalance float64) (finance.BankAccount, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return finance.BankAccount{}, fmt.Errorf("name is required")
	}
	if kind == "" {
		kind = finance.AccountChecking
	}
	if !finance.KnownAccountKind(kind) {
		return finance.BankAccount{}, fmt.Errorf("unknown account kind %q", kind)
	}
	currencyCode = strings.ToUpper(strings.TrimSpace(currencyCode))
	if currencyCode == "" {
		currencyCode = currencydomain.Base
	}

	existing, err := s.store.ListBankAccounts(ctx, userID)
	if err != nil {
		return finance.BankAccount{}, err
	}

	acct, err := s.store.CreateBankAccount(ctx, finance.BankAccount{
		UserID:      userID,
		Name:        name,
		Institution: strings.TrimSpace(institution),
		Kind:        kind,
		Currency:    currencyCode,
		Balance:     openingBalance,
		Primary:     len(existing) == 0,
	})
	if err != nil {
		return finance.BankAccount{}, err
	}

	s.publish(userID, realtime.EventInsert, acct)
	s.log.WithField("account_id", acct.ID).
		WithField("user_id", userID).
		Info("bank account created")
	return acct, nil
}

// GetAccount returns one of the user's accounts.
func (s *Service) GetAccount(ctx context.Context, userID, accountID string) (finance.BankAccount, error) {
	return s.ownedAccount(ctx, userID, accountID)
}

// ListAccounts returns the user's accounts, newest first.
func (s *Service) ListAccounts(ctx context.Context, userID string) ([]finance.BankAccount, error) {
	return s.store.ListBankAccounts(ctx, userID)
}

// UpdateAccount applies the provided fields. The account currency is fixed
// at creation because the balance is denominated in it.
func (s *Service) UpdateAccount(ctx context.Context, userID, accountID string, name, institution, kind *string) (finance.BankAccount, error) {
	acct, err := s.ownedAccount(ctx, userID, accountID)
	if err != nil {
		return finance.BankAccount{}, err
	}

	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return finance.BankAccount{}, fmt.Errorf("name cannot be empty")
		}
		acct.Name = trimmed
	}
	if institution != nil {
		acct.Institution = strings.TrimSpace(*institution)
	}
	if kind != nil {
		if !finance.KnownAccountKind(*kind) {
			return finance.BankAccount{}, fmt.Errorf("unknown account kind %q", *kind)
		}
		acct.Kind = *kind
	}

	acct, err = s.store.UpdateBankAccount(ctx, acct)
	if err != nil {
		return finance.BankAccount{}, err
	}

	s.publish(userID, realtime.EventUpdate, acct)
	s.log.WithField("account_id", acct.ID).Info("bank account updated")
	return acct, nil
}

// SetPrimary flags one account as primary and clears the flag on the
// user's other accounts.
func (s *Service) SetPrimary(ctx context.Context, userID, accountID string) (finance.BankAccount, error) {
	if _, err := s.ownedAccount(ctx, userID, accountID); err != nil {
		return finance.BankAccount{}, err
	}
	if err := s.store.SetPrimaryBankAccount(ctx, userID, accountID); err != nil {
		return finance.BankAccount{}, err
	}

	acct, err := s.store.GetBankAccount(ctx, accountID)
	if err != nil {
		return finance.BankAccount{}, err
	}

	s.publish(userID, realtime.EventUpdate, acct)
	s.log.WithField("account_id", accountID).Info("primary account changed")
	return acct, nil
}

// DeleteAccount removes an account with no transactions. Deleting the
// primary account promotes nothing.
func (s *Service) DeleteAccount(ctx context.Context, userID, accountID string) error {
	acct, err := s.ownedAccount(ctx, userID, accountID)
	if err != nil {
		return err
	}

	count, err := s.store.CountTransactionsByAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("account %s: %w", accountID, ErrAccountInUse)
	}

	if err := s.store.DeleteBankAccount(ctx, accountID); err != nil {
		return err
	}

	s.publish(userID, realtime.EventDelete, acct)
	s.log.WithField("account_id", accountID).Info("bank account deleted")
	return nil
}

func (s *Service) ownedAccount(ctx context.Context, userID, accountID string) (finance.BankAccount, error) {
	acct, err := s.store.GetBankAccount(ctx, accountID)
	if err != nil {
		return finance.BankAccount{}, err
	}
	if acct.UserID != userID {
		return finance.BankAccount{}, fmt.Errorf("bank account %s: %w", accountID, sql.ErrNoRows)
	}
	return acct, nil
}

func (s *Service) publish(userID, event string, payload interface{}) {
	s.hub.Publish(userID, realtime.TopicFinance, event, payload)
}

// userLocation resolves the user's timezone, UTC when unknown.
func (s *Service) userLocation(ctx context.Context, userID string) *time.Location {
	if u, err := s.users.GetUser(ctx, userID); err == nil {
		if loc, err := time.LoadLocation(u.Timezone); err == nil {
			return loc
		}
	}
	return time.UTC
}
