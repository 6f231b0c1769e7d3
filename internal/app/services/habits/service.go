// Package habits manages systems (goals), their recurring habits and habit
// check-ins, including streak computation.
package habits

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lifeos-hq/lifeos/internal/app/domain/habit"
	"github.com/lifeos-hq/lifeos/internal/app/realtime"
	"github.com/lifeos-hq/lifeos/internal/app/storage"
	"github.com/lifeos-hq/lifeos/pkg/logger"
)

const dayFormat = "2006-01-02"

// Service manages systems, habits and check-ins.
type Service struct {
	store storage.HabitStore
	users storage.UserStore
	log   *logger.Logger
	hub   *realtime.Hub
}

// New constructs a habits service.
func New(store storage.HabitStore, users storage.UserStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("habits")
	}
	return &Service{store: store, users: users, log: log}
}

// AttachHub enables realtime change events.
func (s *Service) AttachHub(hub *realtime.Hub) {
	s.hub = hub
}

// --- Systems ---

// CreateSystem stores a new system.
func (s *Service) CreateSystem(ctx context.Context, userID, name, description string, targetDate *time.Time) (habit.System, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return habit.System{}, fmt.Errorf("name is required")
	}

	sys := habit.System{
		UserID:      userID,
		Name:        name,
		Description: strings.TrimSpace(description),
	}
	if targetDate != nil && !targetDate.IsZero() {
		utc := targetDate.UTC()
		sys.TargetDate = &utc
	}

	sys, err := s.store.CreateSystem(ctx, sys)
	if err != nil {
		return habit.System{}, err
	}

	s.publish(userID, realtime.EventInsert, sys)
	s.log.WithField("system_id", sys.ID).
		WithField("user_id", userID).
		Info("system created")
	return sys, nil
}

// GetSystem returns one of the user's systems.
func (s *Service) GetSystem(ctx context.Context, userID, systemID string) (habit.System, error) {
	return s.ownedSystem(ctx, userID, systemID)
}

// ListSystems returns the user's systems, newest first.
func (s *Service) ListSystems(ctx context.Context, userID string) ([]habit.System, error) {
	return s.store.ListSystems(ctx, userID)
}

// UpdateSystem applies the provided fields. A pointer to the zero time
// clears the target date.
func (s *Service) UpdateSystem(ctx context.Context, userID, systemID string, name, description *string, targetDate *time.Time, archived *bool) (habit.System, error) {
	sys, err := s.ownedSystem(ctx, userID, systemID)
	if err != nil {
		return habit.System{}, err
	}

	if name != nil {
		if trimmed := strings.TrimSpace(*name); trimmed != "" {
			sys.Name = trimmed
		} else {
			return habit.System{}, fmt.Errorf("name cannot be empty")
		}
	}
	if description != nil {
		sys.Description = strings.TrimSpace(*description)
	}
	if targetDate != nil {
		if targetDate.IsZero() {
			sys.TargetDate = nil
		} else {
			utc := targetDate.UTC()
			sys.TargetDate = &utc
		}
	}
	if archived != nil {
		sys.Archived = *archived
	}

	sys, err = s.store.UpdateSystem(ctx, sys)
	if err != nil {
		return habit.System{}, err
	}

	s.publish(userID, realtime.EventUpdate, sys)
	s.log.WithField("system_id", sys.ID).Info("system updated")
	return sys, nil
}

// DeleteSystem removes a system together with its habits and check-ins.
func (s *Service) DeleteSystem(ctx context.Context, userID, systemID string) error {
	sys, err := s.ownedSystem(ctx, userID, systemID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteSystem(ctx, sys.ID); err != nil {
		return err
	}

	s.publish(userID, realtime.EventDelete, sys)
	s.log.WithField("system_id", sys.ID).Info("system deleted")
	return nil
}

// --- Habits ---

// CreateHabit attaches a habit to one of the user's systems.
func (s *Service) CreateHabit(ctx context.Context, userID, systemID, name, cadence, reminder string) (habit.Habit, error) {
	name = strings.TrimSpace(name)
	cadence = strings.TrimSpace(cadence)
	reminder = strings.TrimSpace(reminder)

	if name == "" {
		return habit.Habit{}, fmt.Errorf("name is required")
	}
	if cadence == "" {
		cadence = habit.CadenceDaily
	}
	if !habit.KnownCadence(cadence) {
		return habit.Habit{}, fmt.Errorf("unknown cadence %q", cadence)
	}
	if reminder != "" {
		if _, err := time.Parse("15:04", reminder); err != nil {
			return habit.Habit{}, fmt.Errorf("reminder must be HH:MM")
		}
	}
	if _, err := s.ownedSystem(ctx, userID, systemID); err != nil {
		return habit.Habit{}, err
	}

	h, err := s.store.CreateHabit(ctx, habit.Habit{
		SystemID: systemID,
		UserID:   userID,
		Name:     name,
		Cadence:  cadence,
		Reminder: reminder,
	})
	if err != nil {
		return habit.Habit{}, err
	}

	s.publish(userID, realtime.EventInsert, h)
	s.log.WithField("habit_id", h.ID).
		WithField("system_id", systemID).
		Info("habit created")
	return h, nil
}

// GetHabit returns one of the user's habits.
func (s *Service) GetHabit(ctx context.Context, userID, habitID string) (habit.Habit, error) {
	return s.ownedHabit(ctx, userID, habitID)
}

// ListHabits returns the habits of one of the user's systems.
func (s *Service) ListHabits(ctx context.Context, userID, systemID string) ([]habit.Habit, error) {
	if _, err := s.ownedSystem(ctx, userID, systemID); err != nil {
		return nil, err
	}
	return s.store.ListHabits(ctx, systemID)
}

// UpdateHabit applies the provided fields.
func (s *Service) UpdateHabit(ctx context.Context, userID, habitID string, name, cadence, reminder *string, archived *bool) (habit.Habit, error) {
	h, err := s.ownedHabit(ctx, userID, habitID)
	if err != nil {
		return habit.Habit{}, err
	}

	if name != nil {
		if trimmed := strings.TrimSpace(*name); trimmed != "" {
			h.Name = trimmed
		} else {
			return habit.Habit{}, fmt.Errorf("name cannot be empty")
		}
	}
	if cadence != nil {
		if !habit.KnownCadence(*cadence) {
			return habit.Habit{}, fmt.Errorf("unknown cadence %q", *cadence)
		}
		h.Cadence = *cadence
	}
	if reminder != nil {
		trimmed := strings.TrimSpace(*reminder)
		if trimmed != "" {
			if _, err := time.Parse("15:04", trimmed); err != nil {
				return habit.Habit{}, fmt.Errorf("reminder must be HH:MM")
			}
		}
		h.Reminder = trimmed
	}
	if archived != nil {
		h.Archived = *archived
	}

	h, err = s.store.UpdateHabit(ctx, h)
	if err != nil {
		return habit.Habit{}, err
	}

	s.publish(userID, realtime.EventUpdate, h)
	s.log.WithField("habit_id", h.ID).Info("habit updated")
	return h, nil
}

// DeleteHabit removes a habit and its check-ins.
func (s *Service) DeleteHabit(ctx context.Context, userID, habitID string) error {
	h, err := s.ownedHabit(ctx, userID, habitID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteHabit(ctx, h.ID); err != nil {
		return err
	}

	s.publish(userID, realtime.EventDelete, h)
	s.log.WithField("habit_id", h.ID).Info("habit deleted")
	return nil
}

// --- Check-ins ---

// CheckIn records a completion for the given day, defaulting to today in the
// user's timezone. Checking in twice on the same day returns the existing
// row.
func (s *Service) CheckIn(ctx context.Context, userID, habitID, day string) (habit.CheckIn, error) {
	h, err := s.ownedHabit(ctx, userID, habitID)
	if err != nil {
		return habit.CheckIn{}, err
	}

	today := s.today(ctx, userID)
	day = strings.TrimSpace(day)
	if day == "" {
		day = today
	}
	if _, err := time.Parse(dayFormat, day); err != nil {
		return habit.CheckIn{}, fmt.Errorf("day must be YYYY-MM-DD")
	}
	if day > today {
		return habit.CheckIn{}, fmt.Errorf("check-in cannot be in the future")
	}

	if existing, err := s.store.GetCheckIn(ctx, h.ID, day); err == nil {
		return existing, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return habit.CheckIn{}, err
	}

	c, err := s.store.CreateCheckIn(ctx, habit.CheckIn{
		HabitID: h.ID,
		UserID:  userID,
		Day:     day,
	})
	if err != nil {
		return habit.CheckIn{}, err
	}

	s.publish(userID, realtime.EventInsert, c)
	s.log.WithField("habit_id", h.ID).
		WithField("day", day).
		Info("habit checked in")
	return c, nil
}

// RemoveCheckIn deletes the check-in for one day.
func (s *Service) RemoveCheckIn(ctx context.Context, userID, habitID, day string) error {
	h, err := s.ownedHabit(ctx, userID, habitID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteCheckIn(ctx, h.ID, day); err != nil {
		return err
	}

	s.publish(userID, realtime.EventDelete, habit.CheckIn{HabitID: h.ID, UserID: userID, Day: day})
	s.log.WithField("habit_id", h.ID).
		WithField("day", day).
		Info("check-in removed")
	return nil
}

// ListCheckIns returns check-ins for a habit, optionally bounded by
// inclusive from/to days.
func (s *Service) ListCheckIns(ctx context.Context, userID, habitID, from, to string) ([]habit.CheckIn, error) {
	h, err := s.ownedHabit(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}

	all, err := s.store.ListCheckIns(ctx, h.ID)
	if err != nil {
		return nil, err
	}
	if from == "" && to == "" {
		return all, nil
	}

	result := make([]habit.CheckIn, 0, len(all))
	for _, c := range all {
		if from != "" && c.Day < from {
			continue
		}
		if to != "" && c.Day > to {
			continue
		}
		result = append(result, c)
	}
	return result, nil
}

// Streak computes the current and longest completion runs for a habit.
// Daily habits count consecutive days ending today or yesterday; weekly
// habits count consecutive ISO weeks ending this or last week.
func (s *Service) Streak(ctx context.Context, userID, habitID string) (habit.Streak, error) {
	h, err := s.ownedHabit(ctx, userID, habitID)
	if err != nil {
		return habit.Streak{}, err
	}

	checkIns, err := s.store.ListCheckIns(ctx, h.ID)
	if err != nil {
		return habit.Streak{}, err
	}

	days := make([]string, 0, len(checkIns))
	for _, c := range checkIns {
		days = append(days, c.Day)
	}
	today := s.today(ctx, userID)

	if h.Cadence == habit.CadenceWeekly {
		return weeklyStreak(days, today), nil
	}
	return dailyStreak(days, today), nil
}

func (s *Service) ownedSystem(ctx context.Context, userID, systemID string) (habit.System, error) {
	sys, err := s.store.GetSystem(ctx, systemID)
	if err != nil {
		return habit.System{}, err
	}
	if sys.UserID != userID {
		return habit.System{}, fmt.Errorf("system %s: %w", systemID, sql.ErrNoRows)
	}
	return sys, nil
}

func (s *Service) ownedHabit(ctx context.Context, userID, habitID string) (habit.Habit, error) {
	h, err := s.store.GetHabit(ctx, habitID)
	if err != nil {
		return habit.Habit{}, err
	}
	if h.UserID != userID {
		return habit.Habit{}, fmt.Errorf("habit %s: %w", habitID, sql.ErrNoRows)
	}
	return h, nil
}

func (s *Service) publish(userID, event string, payload interface{}) {
	s.hub.Publish(userID, realtime.TopicHabits, event, payload)
}

// today returns the current day in the user's timezone, UTC when the
// timezone is unknown.
func (s *Service) today(ctx context.Context, userID string) string {
	loc := time.UTC
	if u, err := s.users.GetUser(ctx, userID); err == nil {
		if l, err := time.LoadLocation(u.Timezone); err == nil {
			loc = l
		}
	}
	return time.Now().In(loc).Format(dayFormat)
}
