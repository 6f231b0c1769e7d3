package finance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lifeos-hq/lifeos/internal/app/domain/finance"
	"github.com/lifeos-hq/lifeos/internal/app/domain/user"
	"github.com/lifeos-hq/lifeos/internal/app/services/entitlements"
)

func TestSummaryAggregatesInBaseCurrency(t *testing.T) {
	svc, env := newTestService(t)
	ctx := context.Background()

	_, err := env.rates.UpsertRate(ctx, "USD", 1500, "manual")
	require.NoError(t, err)

	naira := seedAccount(t, svc, env.userID, "Main", "NGN", 10000)
	_ = seedAccount(t, svc, env.userID, "Domiciliary", "USD", 100)

	now := time.Now().UTC()
	_, err = svc.CreateTransaction(ctx, env.userID, naira.ID, finance.KindIncome, "salary", "Pay", "", "", 5000, &now)
	require.NoError(t, err)
	_, err = svc.CreateTransaction(ctx, env.userID, naira.ID, finance.KindExpense, "groceries", "Shoprite", "", "", 2000, &now)
	require.NoError(t, err)

	// Last month's spending stays out of the current month figures.
	stale := now.AddDate(0, -2, 0)
	_, err = svc.CreateTransaction(ctx, env.userID, naira.ID, finance.KindExpense, "rent", "Old rent", "", "", 900, &stale)
	require.NoError(t, err)

	goal, err := svc.CreateGoal(ctx, env.userID, "Buffer", 100000, nil, "")
	require.NoError(t, err)
	_, _, err = svc.AddEntry(ctx, env.userID, goal.ID, 300, "")
	require.NoError(t, err)

	summary, err := svc.Summary(ctx, env.userID)
	require.NoError(t, err)

	// 10000 + 5000 - 2000 - 900 NGN on the naira account, 100 USD at 1500.
	require.InDelta(t, 12100+150000, summary.TotalBalance, 0.001)
	require.InDelta(t, 5000, summary.MonthIncome, 0.001)
	require.InDelta(t, 2000, summary.MonthExpense, 0.001)
	require.InDelta(t, 2000, summary.ByCategory["groceries"], 0.001)
	require.NotContains(t, summary.ByCategory, "rent")
	require.InDelta(t, 300, summary.SavingsTotal, 0.001)
	require.Len(t, summary.Accounts, 2)
}

func TestSummaryNeedsReportsEntitlement(t *testing.T) {
	svc, env := newTestService(t)
	ctx := context.Background()

	free := env.seedUser(t, "free@example.com", user.PlanFree)
	_, err := svc.Summary(ctx, free.ID)
	require.ErrorIs(t, err, entitlements.ErrNotEntitled)
}

func TestSummaryFailsWithoutStoredRate(t *testing.T) {
	svc, env := newTestService(t)
	ctx := context.Background()

	seedAccount(t, svc, env.userID, "Euros", "EUR", 50)
	_, err := svc.Summary(ctx, env.userID)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no stored rate")
}
