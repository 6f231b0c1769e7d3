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
	"github.com/lifeos-hq/lifeos/internal/app/services/mailer"
)

// CreateGoal stores a savings goal. Targets are in the base currency.
func (s *Service) CreateGoal(ctx context.Context, userID, name string, targetAmount float64, deadline *time.Time, accountID string) (finance.SavingsGoal, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return finance.SavingsGoal{}, fmt.Errorf("name is required")
	}
	if targetAmount <= 0 {
		return finance.SavingsGoal{}, fmt.Errorf("target amount must be positive")
	}
	if accountID != "" {
		if _, err := s.ownedAccount(ctx, userID, accountID); err != nil {
			return finance.SavingsGoal{}, err
		}
	}

	goal := finance.SavingsGoal{
		UserID:       userID,
		Name:         name,
		TargetAmount: targetAmount,
		AccountID:    accountID,
	}
	if deadline != nil && !deadline.IsZero() {
		d := deadline.UTC()
		goal.Deadline = &d
	}

	goal, err := s.store.CreateSavingsGoal(ctx, goal)
	if err != nil {
		return finance.SavingsGoal{}, err
	}

	s.publish(userID, realtime.EventInsert, goal)
	s.log.WithField("goal_id", goal.ID).
		WithField("user_id", userID).
		Info("savings goal created")
	return goal, nil
}

// GetGoal returns one of the user's savings goals.
func (s *Service) GetGoal(ctx context.Context, userID, goalID string) (finance.SavingsGoal, error) {
	return s.ownedGoal(ctx, userID, goalID)
}

// ListGoals returns the user's savings goals.
func (s *Service) ListGoals(ctx context.Context, userID string) ([]finance.SavingsGoal, error) {
	return s.store.ListSavingsGoals(ctx, userID)
}

// UpdateGoal applies the provided fields. A zero deadline clears it; an empty
// account pointer unlinks the goal from its account.
func (s *Service) UpdateGoal(ctx context.Context, userID, goalID string, name *string, targetAmount *float64, deadline *time.Time, accountID *string) (finance.SavingsGoal, error) {
	goal, err := s.ownedGoal(ctx, userID, goalID)
	if err != nil {
		return finance.SavingsGoal{}, err
	}

	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return finance.SavingsGoal{}, fmt.Errorf("name cannot be empty")
		}
		goal.Name = trimmed
	}
	if targetAmount != nil {
		if *targetAmount <= 0 {
			return finance.SavingsGoal{}, fmt.Errorf("target amount must be positive")
		}
		goal.TargetAmount = *targetAmount
	}
	if deadline != nil {
		if deadline.IsZero() {
			goal.Deadline = nil
		} else {
			d := deadline.UTC()
			goal.Deadline = &d
		}
	}
	if accountID != nil {
		if *accountID == "" {
			goal.AccountID = ""
		} else {
			if _, err := s.ownedAccount(ctx, userID, *accountID); err != nil {
				return finance.SavingsGoal{}, err
			}
			goal.AccountID = *accountID
		}
	}

	goal, err = s.store.UpdateSavingsGoal(ctx, goal)
	if err != nil {
		return finance.SavingsGoal{}, err
	}

	s.publish(userID, realtime.EventUpdate, goal)
	s.log.WithField("goal_id", goal.ID).Info("savings goal updated")
	return goal, nil
}

// DeleteGoal removes a goal together with its entries.
func (s *Service) DeleteGoal(ctx context.Context, userID, goalID string) error {
	goal, err := s.ownedGoal(ctx, userID, goalID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteSavingsGoal(ctx, goalID); err != nil {
		return err
	}

	s.publish(userID, realtime.EventDelete, goal)
	s.log.WithField("goal_id", goalID).Info("savings goal deleted")
	return nil
}

// AddEntry records a signed movement against a goal and recomputes its
// balance. Withdrawals may not push the balance below zero. Crossing the
// target from below fires a goal-reached notification.
func (s *Service) AddEntry(ctx context.Context, userID, goalID string, amount float64, note string) (finance.SavingsEntry, finance.SavingsGoal, error) {
	goal, err := s.ownedGoal(ctx, userID, goalID)
	if err != nil {
		return finance.SavingsEntry{}, finance.SavingsGoal{}, err
	}
	if amount == 0 {
		return finance.SavingsEntry{}, finance.SavingsGoal{}, fmt.Errorf("amount cannot be zero")
	}
	if goal.Balance+amount < 0 {
		return finance.SavingsEntry{}, finance.SavingsGoal{}, fmt.Errorf("withdrawal exceeds the goal balance")
	}

	entry, err := s.store.CreateSavingsEntry(ctx, finance.SavingsEntry{
		GoalID: goalID,
		UserID: userID,
		Amount: amount,
		Note:   strings.TrimSpace(note),
	})
	if err != nil {
		return finance.SavingsEntry{}, finance.SavingsGoal{}, err
	}

	updated, err := s.store.RecalcSavingsGoal(ctx, goalID)
	if err != nil {
		return finance.SavingsEntry{}, finance.SavingsGoal{}, err
	}

	if goal.Balance < goal.TargetAmount && updated.Balance >= updated.TargetAmount {
		s.goalReached(ctx, updated)
	}

	s.publish(userID, realtime.EventUpdate, updated)
	s.log.WithField("goal_id", goalID).
		WithField("amount", amount).
		Info("savings entry recorded")
	return entry, updated, nil
}

// ListEntries returns a goal's entries, oldest first.
func (s *Service) ListEntries(ctx context.Context, userID, goalID string) ([]finance.SavingsEntry, error) {
	if _, err := s.ownedGoal(ctx, userID, goalID); err != nil {
		return nil, err
	}
	return s.store.ListSavingsEntries(ctx, goalID)
}

// DeleteEntry removes one entry and recomputes the goal balance. The removal
// is rejected when it would leave the balance negative.
func (s *Service) DeleteEntry(ctx context.Context, userID, goalID, entryID string) (finance.SavingsGoal, error) {
	goal, err := s.ownedGoal(ctx, userID, goalID)
	if err != nil {
		return finance.SavingsGoal{}, err
	}

	entries, err := s.store.ListSavingsEntries(ctx, goalID)
	if err != nil {
		return finance.SavingsGoal{}, err
	}
	var entry *finance.SavingsEntry
	for i := range entries {
		if entries[i].ID == entryID {
			entry = &entries[i]
			break
		}
	}
	if entry == nil {
		return finance.SavingsGoal{}, fmt.Errorf("savings entry %s: %w", entryID, sql.ErrNoRows)
	}
	if goal.Balance-entry.Amount < 0 {
		return finance.SavingsGoal{}, fmt.Errorf("removing this entry would leave the balance negative")
	}

	if err := s.store.DeleteSavingsEntry(ctx, entryID); err != nil {
		return finance.SavingsGoal{}, err
	}
	updated, err := s.store.RecalcSavingsGoal(ctx, goalID)
	if err != nil {
		return finance.SavingsGoal{}, err
	}

	s.publish(userID, realtime.EventUpdate, updated)
	s.log.WithField("goal_id", goalID).Info("savings entry deleted")
	return updated, nil
}

// goalReached pushes the celebration through every channel the user has.
// Failures are logged and never surface to the caller.
func (s *Service) goalReached(ctx context.Context, goal finance.SavingsGoal) {
	if s.notify != nil {
		_, err := s.notify.Notify(ctx, goal.UserID, "goal",
			fmt.Sprintf("Goal reached: %s", goal.Name),
			fmt.Sprintf("You hit your target of %.2f NGN. Well done.", goal.TargetAmount),
			"/finance/savings", "finance")
		if err != nil {
			s.log.WithError(err).Warn("goal-reached notification failed")
		}
	}

	if s.mail.Enabled() && s.ent != nil {
		u, err := s.users.GetUser(ctx, goal.UserID)
		if err != nil || !s.ent.Allow(ctx, u, entitlements.FeatureEmailNotifications) {
			return
		}
		_, err = s.mail.Send(ctx, u.ID, u.Email, mailer.TemplateGoalReached, map[string]string{
			"name":   u.DisplayName,
			"goal":   goal.Name,
			"target": fmt.Sprintf("%.2f NGN", goal.TargetAmount),
		})
		if err != nil {
			s.log.WithError(err).Warn("goal-reached email failed")
		}
	}
}

func (s *Service) ownedGoal(ctx context.Context, userID, goalID string) (finance.SavingsGoal, error) {
	goal, err := s.store.GetSavingsGoal(ctx, goalID)
	if err != nil {
		return finance.SavingsGoal{}, err
	}
	if goal.UserID != userID {
		return finance.SavingsGoal{}, fmt.Errorf("savings goal %s: %w", goalID, sql.ErrNoRows)
	}
	return goal, nil
}
