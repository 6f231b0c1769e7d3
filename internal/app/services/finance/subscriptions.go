package finance

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	currencydomain "github.com/lifeos-hq/lifeos/internal/app/domain/currency"
	"github.com/lifeos-hq/lifeos/internal/app/domain/finance"
	"github.com/lifeos-hq/lifeos/internal/app/realtime"
)

// CreateSubscription tracks a recurring charge. A linked account fixes the
// subscription to that account's currency.
func (s *Service) CreateSubscription(ctx context.Context, userID, name string, amount float64, currencyCode, cadence string, nextBillingDate time.Time, accountID string) (finance.Subscription, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return finance.Subscription{}, fmt.Errorf("name is required")
	}
	if amount <= 0 {
		return finance.Subscription{}, fmt.Errorf("amount must be positive")
	}
	if cadence == "" {
		cadence = finance.CadenceMonthly
	}
	if !finance.KnownCadence(cadence) {
		return finance.Subscription{}, fmt.Errorf("unknown cadence %q", cadence)
	}
	if nextBillingDate.IsZero() {
		return finance.Subscription{}, fmt.Errorf("next billing date is required")
	}

	currencyCode = strings.ToUpper(strings.TrimSpace(currencyCode))
	if accountID != "" {
		acct, err := s.ownedAccount(ctx, userID, accountID)
		if err != nil {
			return finance.Subscription{}, err
		}
		if currencyCode == "" {
			currencyCode = acct.Currency
		}
		if currencyCode != acct.Currency {
			return finance.Subscription{}, fmt.Errorf("subscription currency %s does not match account currency %s", currencyCode, acct.Currency)
		}
	}
	if currencyCode == "" {
		currencyCode = currencydomain.Base
	}

	sub, err := s.store.CreateSubscription(ctx, finance.Subscription{
		UserID:          userID,
		Name:            name,
		Amount:          amount,
		Currency:        currencyCode,
		Cadence:         cadence,
		NextBillingDate: nextBillingDate.UTC(),
		AccountID:       accountID,
		Active:          true,
	})
	if err != nil {
		return finance.Subscription{}, err
	}

	s.publish(userID, realtime.EventInsert, sub)
	s.log.WithField("subscription_id", sub.ID).
		WithField("user_id", userID).
		Info("subscription created")
	return sub, nil
}

// GetSubscription returns one of the user's subscriptions.
func (s *Service) GetSubscription(ctx context.Context, userID, subID string) (finance.Subscription, error) {
	return s.ownedSubscription(ctx, userID, subID)
}

// ListSubscriptions returns all of the user's subscriptions.
func (s *Service) ListSubscriptions(ctx context.Context, userID string) ([]finance.Subscription, error) {
	return s.store.ListSubscriptions(ctx, userID)
}

// ListUpcoming returns active subscriptions billing within the window,
// soonest first. Past-due subscriptions are always included. Days defaults
// to 30.
func (s *Service) ListUpcoming(ctx context.Context, userID string, days int) ([]finance.Subscription, error) {
	if days <= 0 {
		days = 30
	}
	subs, err := s.store.ListSubscriptions(ctx, userID)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().UTC().AddDate(0, 0, days)
	out := make([]finance.Subscription, 0, len(subs))
	for _, sub := range subs {
		if !sub.Active || sub.NextBillingDate.After(cutoff) {
			continue
		}
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].NextBillingDate.Before(out[j].NextBillingDate)
	})
	return out, nil
}

// UpdateSubscription applies the provided fields. An empty account pointer
// unlinks the subscription; relinking requires matching currencies.
func (s *Service) UpdateSubscription(ctx context.Context, userID, subID string, name *string, amount *float64, cadence *string, nextBillingDate *time.Time, accountID *string, active *bool) (finance.Subscription, error) {
	sub, err := s.ownedSubscription(ctx, userID, subID)
	if err != nil {
		return finance.Subscription{}, err
	}

	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return finance.Subscription{}, fmt.Errorf("name cannot be empty")
		}
		sub.Name = trimmed
	}
	if amount != nil {
		if *amount <= 0 {
			return finance.Subscription{}, fmt.Errorf("amount must be positive")
		}
		sub.Amount = *amount
	}
	if cadence != nil {
		if !finance.KnownCadence(*cadence) {
			return finance.Subscription{}, fmt.Errorf("unknown cadence %q", *cadence)
		}
		sub.Cadence = *cadence
	}
	if nextBillingDate != nil {
		if nextBillingDate.IsZero() {
			return finance.Subscription{}, fmt.Errorf("next billing date cannot be cleared")
		}
		sub.NextBillingDate = nextBillingDate.UTC()
	}
	if accountID != nil {
		if *accountID == "" {
			sub.AccountID = ""
		} else {
			acct, err := s.ownedAccount(ctx, userID, *accountID)
			if err != nil {
				return finance.Subscription{}, err
			}
			if acct.Currency != sub.Currency {
				return finance.Subscription{}, fmt.Errorf("subscription currency %s does not match account currency %s", sub.Currency, acct.Currency)
			}
			sub.AccountID = *accountID
		}
	}
	if active != nil {
		sub.Active = *active
	}

	sub, err = s.store.UpdateSubscription(ctx, sub)
	if err != nil {
		return finance.Subscription{}, err
	}

	s.publish(userID, realtime.EventUpdate, sub)
	s.log.WithField("subscription_id", sub.ID).Info("subscription updated")
	return sub, nil
}

// DeleteSubscription removes a subscription. Transactions it produced stay.
func (s *Service) DeleteSubscription(ctx context.Context, userID, subID string) error {
	sub, err := s.ownedSubscription(ctx, userID, subID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteSubscription(ctx, subID); err != nil {
		return err
	}

	s.publish(userID, realtime.EventDelete, sub)
	s.log.WithField("subscription_id", subID).Info("subscription deleted")
	return nil
}

// MarkPaid advances the billing date one cadence step and, when the
// subscription is linked to an account, records the charge as an expense.
// A failed expense still advances the date so reminders stop repeating.
func (s *Service) MarkPaid(ctx context.Context, userID, subID string) (finance.Subscription, error) {
	sub, err := s.ownedSubscription(ctx, userID, subID)
	if err != nil {
		return finance.Subscription{}, err
	}

	sub.NextBillingDate = addCadence(sub.NextBillingDate, sub.Cadence)
	sub, err = s.store.UpdateSubscription(ctx, sub)
	if err != nil {
		return finance.Subscription{}, err
	}

	if sub.AccountID != "" {
		_, err := s.CreateTransaction(ctx, userID, sub.AccountID, finance.KindExpense,
			"subscriptions", "Subscription: "+sub.Name, "", sub.Currency, sub.Amount, nil)
		if err != nil {
			s.log.WithError(err).
				WithField("subscription_id", subID).
				Warn("subscription charge not recorded")
		}
	}

	s.publish(userID, realtime.EventUpdate, sub)
	s.log.WithField("subscription_id", subID).
		WithField("next_billing_date", sub.NextBillingDate.Format(dayFormat)).
		Info("subscription paid")
	return sub, nil
}

func (s *Service) ownedSubscription(ctx context.Context, userID, subID string) (finance.Subscription, error) {
	sub, err := s.store.GetSubscription(ctx, subID)
	if err != nil {
		return finance.Subscription{}, err
	}
	if sub.UserID != userID {
		return finance.Subscription{}, fmt.Errorf("subscription %s: %w", subID, sql.ErrNoRows)
	}
	return sub, nil
}

// addCadence steps a billing date forward one period. Month and year steps
// clamp to the last day of shorter months, so a Jan 31 monthly charge lands
// on Feb 28 or 29.
func addCadence(t time.Time, cadence string) time.Time {
	switch cadence {
	case finance.CadenceWeekly:
		return t.AddDate(0, 0, 7)
	case finance.CadenceYearly:
		return addMonthsClamped(t, 12)
	default:
		return addMonthsClamped(t, 1)
	}
}

func addMonthsClamped(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	first = first.AddDate(0, months, 0)

	day := t.Day()
	if last := daysInMonth(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
