package finance

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lifeos-hq/lifeos/internal/app/domain/finance"
	"github.com/lifeos-hq/lifeos/internal/app/realtime"
	"github.com/lifeos-hq/lifeos/internal/app/services/entitlements"
)

const (
	dayFormat   = "2006-01-02"
	monthFormat = "2006-01"
)

// CreateTransaction records a ledger movement and shifts the affected account
// balances atomically. Amount is always positive; the kind decides the sign.
// Transfers move money between two of the user's same-currency accounts.
func (s *Service) CreateTransaction(ctx context.Context, userID, accountID, kind, category, description, counterAccountID, currencyCode string, amount float64, occurredAt *time.Time) (finance.Transaction, error) {
	acct, err := s.ownedAccount(ctx, userID, accountID)
	if err != nil {
		return finance.Transaction{}, err
	}

	if kind == "" {
		kind = finance.KindExpense
	}
	if !finance.KnownTransactionKind(kind) {
		return finance.Transaction{}, fmt.Errorf("unknown transaction kind %q", kind)
	}
	if amount <= 0 {
		return finance.Transaction{}, fmt.Errorf("amount must be positive")
	}

	currencyCode = strings.ToUpper(strings.TrimSpace(currencyCode))
	if currencyCode == "" {
		currencyCode = acct.Currency
	}
	if currencyCode != acct.Currency {
		return finance.Transaction{}, fmt.Errorf("transaction currency %s does not match account currency %s", currencyCode, acct.Currency)
	}

	category = strings.TrimSpace(category)
	description = strings.TrimSpace(description)

	deltas := map[string]float64{}
	switch kind {
	case finance.KindIncome:
		if counterAccountID != "" {
			return finance.Transaction{}, fmt.Errorf("counter account is only for transfers")
		}
		deltas[accountID] = amount
	case finance.KindExpense:
		if counterAccountID != "" {
			return finance.Transaction{}, fmt.Errorf("counter account is only for transfers")
		}
		deltas[accountID] = -amount
	case finance.KindTransfer:
		if counterAccountID == "" {
			return finance.Transaction{}, fmt.Errorf("transfers need a counter account")
		}
		if counterAccountID == accountID {
			return finance.Transaction{}, fmt.Errorf("cannot transfer into the same account")
		}
		counter, err := s.ownedAccount(ctx, userID, counterAccountID)
		if err != nil {
			return finance.Transaction{}, err
		}
		if counter.Currency != acct.Currency {
			return finance.Transaction{}, fmt.Errorf("cannot transfer between %s and %s accounts", acct.Currency, counter.Currency)
		}
		deltas[accountID] = -amount
		deltas[counterAccountID] = amount
	}

	baseAmount, rate, err := s.rates.ToBase(ctx, amount, acct.Currency)
	if err != nil {
		return finance.Transaction{}, err
	}

	if category == "" {
		if kind == finance.KindExpense {
			category = s.categorize(ctx, userID, description, amount)
		} else {
			category = defaultCategory(kind)
		}
	}

	occurred := time.Now().UTC()
	if occurredAt != nil && !occurredAt.IsZero() {
		occurred = occurredAt.UTC()
	}

	tx, err := s.store.ApplyTransaction(ctx, finance.Transaction{
		UserID:           userID,
		AccountID:        accountID,
		Kind:             kind,
		Amount:           amount,
		Currency:         acct.Currency,
		BaseAmount:       baseAmount,
		RateUsed:         rate,
		Category:         category,
		Description:      description,
		CounterAccountID: counterAccountID,
		OccurredAt:       occurred,
	}, deltas)
	if err != nil {
		return finance.Transaction{}, err
	}

	s.publish(userID, realtime.EventInsert, tx)
	s.log.WithField("transaction_id", tx.ID).
		WithField("kind", kind).
		WithField("account_id", accountID).
		Info("transaction recorded")
	return tx, nil
}

// GetTransaction returns one of the user's transactions.
func (s *Service) GetTransaction(ctx context.Context, userID, txID string) (finance.Transaction, error) {
	return s.ownedTransaction(ctx, userID, txID)
}

// ListTransactions returns the user's transactions, newest first. Account,
// kind, category and month (YYYY-MM, in the user's timezone) each narrow the
// result when set.
func (s *Service) ListTransactions(ctx context.Context, userID, accountID, kind, category, month string) ([]finance.Transaction, error) {
	all, err := s.store.ListTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}

	var monthStart, monthEnd time.Time
	if month != "" {
		loc := s.userLocation(ctx, userID)
		start, err := time.ParseInLocation(monthFormat, month, loc)
		if err != nil {
			return nil, fmt.Errorf("month must be YYYY-MM")
		}
		monthStart = start
		monthEnd = start.AddDate(0, 1, 0)
	}

	out := make([]finance.Transaction, 0, len(all))
	for _, tx := range all {
		if accountID != "" && tx.AccountID != accountID && tx.CounterAccountID != accountID {
			continue
		}
		if kind != "" && tx.Kind != kind {
			continue
		}
		if category != "" && !strings.EqualFold(tx.Category, category) {
			continue
		}
		if month != "" {
			at := tx.OccurredAt.In(monthStart.Location())
			if at.Before(monthStart) || !at.Before(monthEnd) {
				continue
			}
		}
		out = append(out, tx)
	}
	return out, nil
}

// UpdateTransaction edits the descriptive fields of a transaction. Amount,
// kind and accounts are fixed; record a correcting transaction instead.
func (s *Service) UpdateTransaction(ctx context.Context, userID, txID string, category, description *string, occurredAt *time.Time) (finance.Transaction, error) {
	tx, err := s.ownedTransaction(ctx, userID, txID)
	if err != nil {
		return finance.Transaction{}, err
	}

	if category != nil {
		trimmed := strings.TrimSpace(*category)
		if trimmed == "" {
			trimmed = defaultCategory(tx.Kind)
		}
		tx.Category = trimmed
	}
	if description != nil {
		tx.Description = strings.TrimSpace(*description)
	}
	if occurredAt != nil {
		if occurredAt.IsZero() {
			return finance.Transaction{}, fmt.Errorf("occurred_at cannot be cleared")
		}
		tx.OccurredAt = occurredAt.UTC()
	}

	tx, err = s.store.UpdateTransaction(ctx, tx)
	if err != nil {
		return finance.Transaction{}, err
	}

	s.publish(userID, realtime.EventUpdate, tx)
	s.log.WithField("transaction_id", tx.ID).Info("transaction updated")
	return tx, nil
}

// DeleteTransaction removes a transaction and reverses its balance effect on
// the accounts that still exist.
func (s *Service) DeleteTransaction(ctx context.Context, userID, txID string) error {
	tx, err := s.ownedTransaction(ctx, userID, txID)
	if err != nil {
		return err
	}

	deltas := map[string]float64{}
	switch tx.Kind {
	case finance.KindIncome:
		deltas[tx.AccountID] = -tx.Amount
	case finance.KindExpense:
		deltas[tx.AccountID] = tx.Amount
	case finance.KindTransfer:
		deltas[tx.AccountID] = tx.Amount
		deltas[tx.CounterAccountID] = -tx.Amount
	}

	if err := s.store.DeleteTransaction(ctx, txID, deltas); err != nil {
		return err
	}

	s.publish(userID, realtime.EventDelete, tx)
	s.log.WithField("transaction_id", txID).Info("transaction deleted")
	return nil
}

func (s *Service) ownedTransaction(ctx context.Context, userID, txID string) (finance.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, txID)
	if err != nil {
		return finance.Transaction{}, err
	}
	if tx.UserID != userID {
		return finance.Transaction{}, fmt.Errorf("transaction %s: %w", txID, sql.ErrNoRows)
	}
	return tx, nil
}

// categorize fills an expense category through the assistant when the user is
// entitled to it. Anything short of a confident answer lands in the
// uncategorized bucket.
func (s *Service) categorize(ctx context.Context, userID, description string, amount float64) string {
	if s.assist == nil || description == "" {
		return finance.CategoryUncategorized
	}
	u, err := s.users.GetUser(ctx, userID)
	if err != nil || !s.ent.Allow(ctx, u, entitlements.FeatureAssistantCategorize) {
		return finance.CategoryUncategorized
	}
	suggestion, err := s.assist.Categorize(ctx, u, description, amount)
	if err != nil {
		s.log.WithError(err).Debug("auto-categorization failed")
		return finance.CategoryUncategorized
	}
	return suggestion.Category
}

func defaultCategory(kind string) string {
	switch kind {
	case finance.KindIncome:
		return "income"
	case finance.KindExpense:
		return finance.CategoryUncategorized
	}
	return ""
}
