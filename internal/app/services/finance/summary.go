package finance

import (
	"context"
	"time"

	"github.com/lifeos-hq/lifeos/internal/app/domain/finance"
	"github.com/lifeos-hq/lifeos/internal/app/services/entitlements"
)

// Summary aggregates the user's accounts, current-month cashflow and savings
// into the base currency. It needs the finance reports entitlement and a
// stored rate for every account currency.
func (s *Service) Summary(ctx context.Context, userID string) (finance.Summary, error) {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return finance.Summary{}, err
	}
	if err := s.ent.Require(ctx, u, entitlements.FeatureFinanceReports); err != nil {
		return finance.Summary{}, err
	}

	accounts, err := s.store.ListBankAccounts(ctx, userID)
	if err != nil {
		return finance.Summary{}, err
	}

	summary := finance.Summary{
		Accounts:   accounts,
		ByCategory: map[string]float64{},
	}
	for _, acct := range accounts {
		base, _, err := s.rates.ToBase(ctx, acct.Balance, acct.Currency)
		if err != nil {
			return finance.Summary{}, err
		}
		summary.TotalBalance += base
	}

	loc := time.UTC
	if l, err := time.LoadLocation(u.Timezone); err == nil {
		loc = l
	}
	now := time.Now().In(loc)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	monthEnd := monthStart.AddDate(0, 1, 0)

	txs, err := s.store.ListTransactions(ctx, userID)
	if err != nil {
		return finance.Summary{}, err
	}
	for _, tx := range txs {
		at := tx.OccurredAt.In(loc)
		if at.Before(monthStart) || !at.Before(monthEnd) {
			continue
		}
		switch tx.Kind {
		case finance.KindIncome:
			summary.MonthIncome += tx.BaseAmount
		case finance.KindExpense:
			summary.MonthExpense += tx.BaseAmount
			summary.ByCategory[tx.Category] += tx.BaseAmount
		}
	}

	goals, err := s.store.ListSavingsGoals(ctx, userID)
	if err != nil {
		return finance.Summary{}, err
	}
	for _, goal := range goals {
		summary.SavingsTotal += goal.Balance
	}

	return summary, nil
}
