package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lifeos-hq/lifeos/internal/app/domain/currency"
	"github.com/lifeos-hq/lifeos/internal/app/domain/finance"
)

// --- FinanceStore: bank accounts --------------------------------------------

func (s *Store) CreateBankAccount(ctx context.Context, acct finance.BankAccount) (finance.BankAccount, error) {
	if acct.ID == "" {
		acct.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	acct.CreatedAt = now
	acct.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_bank_accounts (id, user_id, name, institution, kind, currency, balance, is_primary, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, acct.ID, acct.UserID, acct.Name, acct.Institution, acct.Kind, acct.Currency, acct.Balance, acct.Primary, acct.CreatedAt, acct.UpdatedAt)
	if err != nil {
		return finance.BankAccount{}, err
	}
	return acct, nil
}

func (s *Store) UpdateBankAccount(ctx context.Context, acct finance.BankAccount) (finance.BankAccount, error) {
	existing, err := s.GetBankAccount(ctx, acct.ID)
	if err != nil {
		return finance.BankAccount{}, err
	}

	acct.UserID = existing.UserID
	acct.CreatedAt = existing.CreatedAt
	acct.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE app_bank_accounts
		SET name = $2, institution = $3, kind = $4, currency = $5, balance = $6, is_primary = $7, updated_at = $8
		WHERE id = $1
	`, acct.ID, acct.Name, acct.Institution, acct.Kind, acct.Currency, acct.Balance, acct.Primary, acct.UpdatedAt)
	if err != nil {
		return finance.BankAccount{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return finance.BankAccount{}, sql.ErrNoRows
	}
	return acct, nil
}

func (s *Store) GetBankAccount(ctx context.Context, id string) (finance.BankAccount, error) {
	var acct finance.BankAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, institution, kind, currency, balance, is_primary, created_at, updated_at
		FROM app_bank_accounts
		WHERE id = $1
	`, id).Scan(&acct.ID, &acct.UserID, &acct.Name, &acct.Institution, &acct.Kind, &acct.Currency, &acct.Balance, &acct.Primary, &acct.CreatedAt, &acct.UpdatedAt)
	if err != nil {
		return finance.BankAccount{}, err
	}
	return acct, nil
}

func (s *Store) ListBankAccounts(ctx context.Context, userID string) ([]finance.BankAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, institution, kind, currency, balance, is_primary, created_at, updated_at
		FROM app_bank_accounts
		WHERE user_id = $1
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []finance.BankAccount
	for rows.Next() {
		var acct finance.BankAccount
		if err := rows.Scan(&acct.ID, &acct.UserID, &acct.Name, &acct.Institution, &acct.Kind, &acct.Currency, &acct.Balance, &acct.Primary, &acct.CreatedAt, &acct.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, acct)
	}
	return result, rows.Err()
}

func (s *Store) DeleteBankAccount(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM app_bank_accounts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) SetPrimaryBankAccount(ctx context.Context, userID, accountID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE app_bank_accounts SET is_primary = TRUE, updated_at = $3
			WHERE id = $1 AND user_id = $2
		`, accountID, userID, time.Now().UTC())
		if err != nil {
			return err
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return sql.ErrNoRows
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE app_bank_accounts SET is_primary = FALSE
			WHERE user_id = $1 AND id <> $2 AND is_primary
		`, userID, accountID)
		return err
	})
}

// --- FinanceStore: transactions ---------------------------------------------

func (s *Store) ApplyTransaction(ctx context.Context, t finance.Transaction, balanceDeltas map[string]float64) (finance.Transaction, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.OccurredAt.IsZero() {
		t.OccurredAt = now
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO app_transactions (id, user_id, account_id, kind, amount, currency, base_amount, rate_used, category, description, counter_account_id, occurred_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`, t.ID, t.UserID, t.AccountID, t.Kind, t.Amount, t.Currency, t.BaseAmount, t.RateUsed, t.Category, t.Description, t.CounterAccountID, t.OccurredAt.UTC(), t.CreatedAt, t.UpdatedAt)
		if err != nil {
			return err
		}
		return applyBalanceDeltas(ctx, tx, balanceDeltas)
	})
	if err != nil {
		return finance.Transaction{}, err
	}
	return t, nil
}

func applyBalanceDeltas(ctx context.Context, tx *sql.Tx, deltas map[string]float64) error {
	for accountID, delta := range deltas {
		result, err := tx.ExecContext(ctx, `
			UPDATE app_bank_accounts SET balance = balance + $2, updated_at = $3
			WHERE id = $1
		`, accountID, delta, time.Now().UTC())
		if err != nil {
			return err
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return sql.ErrNoRows
		}
	}
	return nil
}

func (s *Store) UpdateTransaction(ctx context.Context, t finance.Transaction) (finance.Transaction, error) {
	existing, err := s.GetTransaction(ctx, t.ID)
	if err != nil {
		return finance.Transaction{}, err
	}

	// Monetary fields are append-only; only annotations may change.
	t.UserID = existing.UserID
	t.AccountID = existing.AccountID
	t.Kind = existing.Kind
	t.Amount = existing.Amount
	t.Currency = existing.Currency
	t.BaseAmount = existing.BaseAmount
	t.RateUsed = existing.RateUsed
	t.CounterAccountID = existing.CounterAccountID
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = time.Now().UTC()
	if t.OccurredAt.IsZero() {
		t.OccurredAt = existing.OccurredAt
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE app_transactions
		SET category = $2, description = $3, occurred_at = $4, updated_at = $5
		WHERE id = $1
	`, t.ID, t.Category, t.Description, t.OccurredAt.UTC(), t.UpdatedAt)
	if err != nil {
		return finance.Transaction{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return finance.Transaction{}, sql.ErrNoRows
	}
	return t, nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (finance.Transaction, error) {
	var t finance.Transaction
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, account_id, kind, amount, currency, base_amount, rate_used, category, description, counter_account_id, occurred_at, created_at, updated_at
		FROM app_transactions
		WHERE id = $1
	`, id).Scan(&t.ID, &t.UserID, &t.AccountID, &t.Kind, &t.Amount, &t.Currency, &t.BaseAmount, &t.RateUsed, &t.Category, &t.Description, &t.CounterAccountID, &t.OccurredAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return finance.Transaction{}, err
	}
	return t, nil
}

func (s *Store) ListTransactions(ctx context.Context, userID string) ([]finance.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, account_id, kind, amount, currency, base_amount, rate_used, category, description, counter_account_id, occurred_at, created_at, updated_at
		FROM app_transactions
		WHERE user_id = $1
		ORDER BY occurred_at DESC, created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []finance.Transaction
	for rows.Next() {
		var t finance.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.AccountID, &t.Kind, &t.Amount, &t.Currency, &t.BaseAmount, &t.RateUsed, &t.Category, &t.Description, &t.CounterAccountID, &t.OccurredAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (s *Store) DeleteTransaction(ctx context.Context, id string, balanceDeltas map[string]float64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM app_transactions WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return sql.ErrNoRows
		}
		return applyBalanceDeltas(ctx, tx, balanceDeltas)
	})
}

func (s *Store) CountTransactionsByAccount(ctx context.Context, accountID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM app_transactions
		WHERE account_id = $1 OR counter_account_id = $1
	`, accountID).Scan(&count)
	return count, err
}

// --- FinanceStore: savings goals --------------------------------------------

func (s *Store) CreateSavingsGoal(ctx context.Context, goal finance.SavingsGoal) (finance.SavingsGoal, error) {
	if goal.ID == "" {
		goal.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	goal.CreatedAt = now
	goal.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_savings_goals (id, user_id, name, target_amount, balance, deadline, account_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, goal.ID, goal.UserID, goal.Name, goal.TargetAmount, goal.Balance, ptrToNullTime(goal.Deadline), goal.AccountID, goal.CreatedAt, goal.UpdatedAt)
	if err != nil {
		return finance.SavingsGoal{}, err
	}
	return goal, nil
}

func (s *Store) UpdateSavingsGoal(ctx context.Context, goal finance.SavingsGoal) (finance.SavingsGoal, error) {
	existing, err := s.GetSavingsGoal(ctx, goal.ID)
	if err != nil {
		return finance.SavingsGoal{}, err
	}

	goal.UserID = existing.UserID
	goal.Balance = existing.Balance
	goal.CreatedAt = existing.CreatedAt
	goal.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE app_savings_goals
		SET name = $2, target_amount = $3, deadline = $4, account_id = $5, updated_at = $6
		WHERE id = $1
	`, goal.ID, goal.Name, goal.TargetAmount, ptrToNullTime(goal.Deadline), goal.AccountID, goal.UpdatedAt)
	if err != nil {
		return finance.SavingsGoal{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return finance.SavingsGoal{}, sql.ErrNoRows
	}
	return goal, nil
}

func (s *Store) GetSavingsGoal(ctx context.Context, id string) (finance.SavingsGoal, error) {
	var (
		goal     finance.SavingsGoal
		deadline sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, target_amount, balance, deadline, account_id, created_at, updated_at
		FROM app_savings_goals
		WHERE id = $1
	`, id).Scan(&goal.ID, &goal.UserID, &goal.Name, &goal.TargetAmount, &goal.Balance, &deadline, &goal.AccountID, &goal.CreatedAt, &goal.UpdatedAt)
	if err != nil {
		return finance.SavingsGoal{}, err
	}
	goal.Deadline = nullTimeToPtr(deadline)
	return goal, nil
}

func (s *Store) ListSavingsGoals(ctx context.Context, userID string) ([]finance.SavingsGoal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, target_amount, balance, deadline, account_id, created_at, updated_at
		FROM app_savings_goals
		WHERE user_id = $1
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []finance.SavingsGoal
	for rows.Next() {
		var (
			goal     finance.SavingsGoal
			deadline sql.NullTime
		)
		if err := rows.Scan(&goal.ID, &goal.UserID, &goal.Name, &goal.TargetAmount, &goal.Balance, &deadline, &goal.AccountID, &goal.CreatedAt, &goal.UpdatedAt); err != nil {
			return nil, err
		}
		goal.Deadline = nullTimeToPtr(deadline)
		result = append(result, goal)
	}
	return result, rows.Err()
}

func (s *Store) DeleteSavingsGoal(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM app_savings_entries WHERE goal_id = $1`, id); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM app_savings_goals WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
}

func (s *Store) CreateSavingsEntry(ctx context.Context, entry finance.SavingsEntry) (finance.SavingsEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_savings_entries (id, goal_id, user_id, amount, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.ID, entry.GoalID, entry.UserID, entry.Amount, entry.Note, entry.CreatedAt)
	if err != nil {
		return finance.SavingsEntry{}, err
	}
	return entry, nil
}

func (s *Store) ListSavingsEntries(ctx context.Context, goalID string) ([]finance.SavingsEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, goal_id, user_id, amount, note, created_at
		FROM app_savings_entries
		WHERE goal_id = $1
		ORDER BY created_at DESC
	`, goalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []finance.SavingsEntry
	for rows.Next() {
		var entry finance.SavingsEntry
		if err := rows.Scan(&entry.ID, &entry.GoalID, &entry.UserID, &entry.Amount, &entry.Note, &entry.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (s *Store) DeleteSavingsEntry(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM app_savings_entries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) RecalcSavingsGoal(ctx context.Context, goalID string) (finance.SavingsGoal, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE app_savings_goals
			SET balance = COALESCE((SELECT SUM(amount) FROM app_savings_entries WHERE goal_id = $1), 0), updated_at = $2
			WHERE id = $1
		`, goalID, time.Now().UTC())
		if err != nil {
			return err
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
	if err != nil {
		return finance.SavingsGoal{}, err
	}
	return s.GetSavingsGoal(ctx, goalID)
}

// --- FinanceStore: subscriptions --------------------------------------------

func (s *Store) CreateSubscription(ctx context.Context, sub finance.Subscription) (finance.Subscription, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_subscriptions (id, user_id, name, amount, currency, cadence, next_billing_date, account_id, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, sub.ID, sub.UserID, sub.Name, sub.Amount, sub.Currency, sub.Cadence, sub.NextBillingDate.UTC(), sub.AccountID, sub.Active, sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		return finance.Subscription{}, err
	}
	return sub, nil
}

func (s *Store) UpdateSubscription(ctx context.Context, sub finance.Subscription) (finance.Subscription, error) {
	existing, err := s.GetSubscription(ctx, sub.ID)
	if err != nil {
		return finance.Subscription{}, err
	}

	sub.UserID = existing.UserID
	sub.CreatedAt = existing.CreatedAt
	sub.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE app_subscriptions
		SET name = $2, amount = $3, currency = $4, cadence = $5, next_billing_date = $6, account_id = $7, active = $8, updated_at = $9
		WHERE id = $1
	`, sub.ID, sub.Name, sub.Amount, sub.Currency, sub.Cadence, sub.NextBillingDate.UTC(), sub.AccountID, sub.Active, sub.UpdatedAt)
	if err != nil {
		return finance.Subscription{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return finance.Subscription{}, sql.ErrNoRows
	}
	return sub, nil
}

func (s *Store) GetSubscription(ctx context.Context, id string) (finance.Subscription, error) {
	var sub finance.Subscription
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, amount, currency, cadence, next_billing_date, account_id, active, created_at, updated_at
		FROM app_subscriptions
		WHERE id = $1
	`, id).Scan(&sub.ID, &sub.UserID, &sub.Name, &sub.Amount, &sub.Currency, &sub.Cadence, &sub.NextBillingDate, &sub.AccountID, &sub.Active, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return finance.Subscription{}, err
	}
	return sub, nil
}

func (s *Store) ListSubscriptions(ctx context.Context, userID string) ([]finance.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, amount, currency, cadence, next_billing_date, account_id, active, created_at, updated_at
		FROM app_subscriptions
		WHERE user_id = $1
		ORDER BY next_billing_date
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []finance.Subscription
	for rows.Next() {
		var sub finance.Subscription
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Name, &sub.Amount, &sub.Currency, &sub.Cadence, &sub.NextBillingDate, &sub.AccountID, &sub.Active, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, sub)
	}
	return result, rows.Err()
}

func (s *Store) DeleteSubscription(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM app_subscriptions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// --- CurrencyStore ----------------------------------------------------------

func (s *Store) UpsertRate(ctx context.Context, rate currency.Rate) (currency.Rate, error) {
	rate.Code = strings.ToUpper(strings.TrimSpace(rate.Code))
	if rate.FetchedAt.IsZero() {
		rate.FetchedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_currency_rates (code, rate_to_ngn, source, fetched_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (code) DO UPDATE SET rate_to_ngn = $2, source = $3, fetched_at = $4
	`, rate.Code, rate.RateToNGN, rate.Source, rate.FetchedAt.UTC())
	if err != nil {
		return currency.Rate{}, err
	}
	return rate, nil
}

func (s *Store) GetRate(ctx context.Context, code string) (currency.Rate, error) {
	var rate currency.Rate
	err := s.db.QueryRowContext(ctx, `
		SELECT code, rate_to_ngn, source, fetched_at
		FROM app_currency_rates
		WHERE code = $1
	`, strings.ToUpper(strings.TrimSpace(code))).Scan(&rate.Code, &rate.RateToNGN, &rate.Source, &rate.FetchedAt)
	if err != nil {
		return currency.Rate{}, err
	}
	return rate, nil
}

func (s *Store) ListRates(ctx context.Context) ([]currency.Rate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT code, rate_to_ngn, source, fetched_at
		FROM app_currency_rates
		ORDER BY code
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []currency.Rate
	for rows.Next() {
		var rate currency.Rate
		if err := rows.Scan(&rate.Code, &rate.RateToNGN, &rate.Source, &rate.FetchedAt); err != nil {
			return nil, err
		}
		result = append(result, rate)
	}
	return result, rows.Err()
}
