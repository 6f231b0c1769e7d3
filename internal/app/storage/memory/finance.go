package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lifeos-hq/lifeos/internal/app/domain/currency"
	"github.com/lifeos-hq/lifeos/internal/app/domain/finance"
)

// FinanceStore implementation -------------------------------------------------

func (s *Store) CreateBankAccount(_ context.Context, acct finance.BankAccount) (finance.BankAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if acct.ID == "" {
		acct.ID = s.nextIDLocked()
	} else if _, exists := s.bankAccounts[acct.ID]; exists {
		return finance.BankAccount{}, fmt.Errorf("bank account %s already exists", acct.ID)
	}

	now := time.Now().UTC()
	acct.CreatedAt = now
	acct.UpdatedAt = now

	s.bankAccounts[acct.ID] = acct
	return acct, nil
}

func (s *Store) UpdateBankAccount(_ context.Context, acct finance.BankAccount) (finance.BankAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.updateBankAccountLocked(acct)
}

func (s *Store) updateBankAccountLocked(acct finance.BankAccount) (finance.BankAccount, error) {
	original, ok := s.bankAccounts[acct.ID]
	if !ok {
		return finance.BankAccount{}, notFound("bank account", acct.ID)
	}

	acct.CreatedAt = original.CreatedAt
	acct.UpdatedAt = time.Now().UTC()

	s.bankAccounts[acct.ID] = acct
	return acct, nil
}

func (s *Store) GetBankAccount(_ context.Context, id string) (finance.BankAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.bankAccounts[id]
	if !ok {
		return finance.BankAccount{}, notFound("bank account", id)
	}
	return acct, nil
}

func (s *Store) ListBankAccounts(_ context.Context, userID string) ([]finance.BankAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]finance.BankAccount, 0)
	for _, acct := range s.bankAccounts {
		if userID == "" || acct.UserID == userID {
			result = append(result, acct)
		}
	}
	sortByCreated(result, func(a finance.BankAccount) time.Time { return a.CreatedAt })
	return result, nil
}

func (s *Store) DeleteBankAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bankAccounts[id]; !ok {
		return notFound("bank account", id)
	}
	delete(s.bankAccounts, id)
	return nil
}

func (s *Store) SetPrimaryBankAccount(_ context.Context, userID, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.bankAccounts[accountID]
	if !ok || target.UserID != userID {
		return notFound("bank account", accountID)
	}

	now := time.Now().UTC()
	for id, acct := range s.bankAccounts {
		if acct.UserID != userID {
			continue
		}
		primary := id == accountID
		if acct.Primary != primary {
			acct.Primary = primary
			acct.UpdatedAt = now
			s.bankAccounts[id] = acct
		}
	}
	return nil
}

func (s *Store) ApplyTransaction(_ context.Context, tx finance.Transaction, balanceDeltas map[string]float64) (finance.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for accountID := range balanceDeltas {
		if _, ok := s.bankAccounts[accountID]; !ok {
			return finance.Transaction{}, notFound("bank account", accountID)
		}
	}

	if tx.ID == "" {
		tx.ID = s.nextIDLocked()
	} else if _, exists := s.transactions[tx.ID]; exists {
		return finance.Transaction{}, fmt.Errorf("transaction %s already exists", tx.ID)
	}

	now := time.Now().UTC()
	tx.CreatedAt = now
	tx.UpdatedAt = now
	if tx.OccurredAt.IsZero() {
		tx.OccurredAt = now
	}

	s.transactions[tx.ID] = tx
	for accountID, delta := range balanceDeltas {
		acct := s.bankAccounts[accountID]
		acct.Balance += delta
		acct.UpdatedAt = now
		s.bankAccounts[accountID] = acct
	}
	return tx, nil
}

func (s *Store) UpdateTransaction(_ context.Context, tx finance.Transaction) (finance.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.transactions[tx.ID]
	if !ok {
		return finance.Transaction{}, notFound("transaction", tx.ID)
	}

	tx.CreatedAt = original.CreatedAt
	tx.UpdatedAt = time.Now().UTC()

	s.transactions[tx.ID] = tx
	return tx, nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (finance.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[id]
	if !ok {
		return finance.Transaction{}, notFound("transaction", id)
	}
	return tx, nil
}

func (s *Store) ListTransactions(_ context.Context, userID string) ([]finance.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]finance.Transaction, 0)
	for _, tx := range s.transactions {
		if userID == "" || tx.UserID == userID {
			result = append(result, tx)
		}
	}
	sortByCreated(result, func(tx finance.Transaction) time.Time { return tx.OccurredAt })
	return result, nil
}

func (s *Store) DeleteTransaction(_ context.Context, id string, balanceDeltas map[string]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transactions[id]; !ok {
		return notFound("transaction", id)
	}

	now := time.Now().UTC()
	for accountID, delta := range balanceDeltas {
		acct, ok := s.bankAccounts[accountID]
		if !ok {
			continue
		}
		acct.Balance += delta
		acct.UpdatedAt = now
		s.bankAccounts[accountID] = acct
	}
	delete(s.transactions, id)
	return nil
}

func (s *Store) CountTransactionsByAccount(_ context.Context, accountID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, tx := range s.transactions {
		if tx.AccountID == accountID || tx.CounterAccountID == accountID {
			count++
		}
	}
	return count, nil
}

func (s *Store) CreateSavingsGoal(_ context.Context, goal finance.SavingsGoal) (finance.SavingsGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if goal.ID == "" {
		goal.ID = s.nextIDLocked()
	} else if _, exists := s.savingsGoals[goal.ID]; exists {
		return finance.SavingsGoal{}, fmt.Errorf("savings goal %s already exists", goal.ID)
	}

	now := time.Now().UTC()
	goal.CreatedAt = now
	goal.UpdatedAt = now

	s.savingsGoals[goal.ID] = goal
	return goal, nil
}

func (s *Store) UpdateSavingsGoal(_ context.Context, goal finance.SavingsGoal) (finance.SavingsGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.savingsGoals[goal.ID]
	if !ok {
		return finance.SavingsGoal{}, notFound("savings goal", goal.ID)
	}

	goal.CreatedAt = original.CreatedAt
	goal.UpdatedAt = time.Now().UTC()

	s.savingsGoals[goal.ID] = goal
	return goal, nil
}

func (s *Store) GetSavingsGoal(_ context.Context, id string) (finance.SavingsGoal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	goal, ok := s.savingsGoals[id]
	if !ok {
		return finance.SavingsGoal{}, notFound("savings goal", id)
	}
	return goal, nil
}

func (s *Store) ListSavingsGoals(_ context.Context, userID string) ([]finance.SavingsGoal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]finance.SavingsGoal, 0)
	for _, goal := range s.savingsGoals {
		if userID == "" || goal.UserID == userID {
			result = append(result, goal)
		}
	}
	sortByCreated(result, func(g finance.SavingsGoal) time.Time { return g.CreatedAt })
	return result, nil
}

func (s *Store) DeleteSavingsGoal(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.savingsGoals[id]; !ok {
		return notFound("savings goal", id)
	}
	delete(s.savingsGoals, id)
	delete(s.savingsEntries, id)
	return nil
}

func (s *Store) CreateSavingsEntry(_ context.Context, entry finance.SavingsEntry) (finance.SavingsEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.savingsGoals[entry.GoalID]; !ok {
		return finance.SavingsEntry{}, notFound("savings goal", entry.GoalID)
	}

	if entry.ID == "" {
		entry.ID = s.nextIDLocked()
	}
	entry.CreatedAt = time.Now().UTC()

	s.savingsEntries[entry.GoalID] = append(s.savingsEntries[entry.GoalID], entry)
	return entry, nil
}

func (s *Store) ListSavingsEntries(_ context.Context, goalID string) ([]finance.SavingsEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]finance.SavingsEntry(nil), s.savingsEntries[goalID]...), nil
}

func (s *Store) DeleteSavingsEntry(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for goalID, entries := range s.savingsEntries {
		for i, entry := range entries {
			if entry.ID == id {
				s.savingsEntries[goalID] = append(entries[:i], entries[i+1:]...)
				return nil
			}
		}
	}
	return notFound("savings entry", id)
}

func (s *Store) RecalcSavingsGoal(_ context.Context, goalID string) (finance.SavingsGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	goal, ok := s.savingsGoals[goalID]
	if !ok {
		return finance.SavingsGoal{}, notFound("savings goal", goalID)
	}

	sum := 0.0
	for _, entry := range s.savingsEntries[goalID] {
		sum += entry.Amount
	}
	goal.Balance = sum
	goal.UpdatedAt = time.Now().UTC()
	s.savingsGoals[goalID] = goal
	return goal, nil
}

func (s *Store) CreateSubscription(_ context.Context, sub finance.Subscription) (finance.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub.ID == "" {
		sub.ID = s.nextIDLocked()
	} else if _, exists := s.subscriptions[sub.ID]; exists {
		return finance.Subscription{}, fmt.Errorf("subscription %s already exists", sub.ID)
	}

	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	s.subscriptions[sub.ID] = sub
	return sub, nil
}

func (s *Store) UpdateSubscription(_ context.Context, sub finance.Subscription) (finance.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.subscriptions[sub.ID]
	if !ok {
		return finance.Subscription{}, notFound("subscription", sub.ID)
	}

	sub.CreatedAt = original.CreatedAt
	sub.UpdatedAt = time.Now().UTC()

	s.subscriptions[sub.ID] = sub
	return sub, nil
}

func (s *Store) GetSubscription(_ context.Context, id string) (finance.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subscriptions[id]
	if !ok {
		return finance.Subscription{}, notFound("subscription", id)
	}
	return sub, nil
}

func (s *Store) ListSubscriptions(_ context.Context, userID string) ([]finance.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]finance.Subscription, 0)
	for _, sub := range s.subscriptions {
		if userID == "" || sub.UserID == userID {
			result = append(result, sub)
		}
	}
	sortByCreated(result, func(sub finance.Subscription) time.Time { return sub.CreatedAt })
	return result, nil
}

func (s *Store) DeleteSubscription(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subscriptions[id]; !ok {
		return notFound("subscription", id)
	}
	delete(s.subscriptions, id)
	return nil
}

// CurrencyStore implementation ------------------------------------------------

func (s *Store) UpsertRate(_ context.Context, rate currency.Rate) (currency.Rate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rate.Code = strings.ToUpper(strings.TrimSpace(rate.Code))
	if rate.FetchedAt.IsZero() {
		rate.FetchedAt = time.Now().UTC()
	}

	s.rates[rate.Code] = rate
	return rate, nil
}

func (s *Store) GetRate(_ context.Context, code string) (currency.Rate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rate, ok := s.rates[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return currency.Rate{}, fmt.Errorf("rate %s: %w", code, sql.ErrNoRows)
	}
	return rate, nil
}

func (s *Store) ListRates(_ context.Context) ([]currency.Rate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]currency.Rate, 0, len(s.rates))
	for _, rate := range s.rates {
		result = append(result, rate)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result, nil
}
