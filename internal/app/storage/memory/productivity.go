package memory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lifeos-hq/lifeos/internal/app/domain/habit"
	"github.com/lifeos-hq/lifeos/internal/app/domain/journal"
	"github.com/lifeos-hq/lifeos/internal/app/domain/task"
)

// TaskStore implementation ----------------------------------------------------

func (s *Store) CreateTask(_ context.Context, t task.Task) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = s.nextIDLocked()
	} else if _, exists := s.tasks[t.ID]; exists {
		return task.Task{}, fmt.Errorf("task %s already exists", t.ID)
	}

	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.Tags = cloneStrings(t.Tags)

	s.tasks[t.ID] = t
	return cloneTask(t), nil
}

func (s *Store) UpdateTask(_ context.Context, t task.Task) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.tasks[t.ID]
	if !ok {
		return task.Task{}, notFound("task", t.ID)
	}

	t.CreatedAt = original.CreatedAt
	t.UpdatedAt = time.Now().UTC()
	t.Tags = cloneStrings(t.Tags)

	s.tasks[t.ID] = t
	return cloneTask(t), nil
}

func (s *Store) GetTask(_ context.Context, id string) (task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return task.Task{}, notFound("task", id)
	}
	return cloneTask(t), nil
}

func (s *Store) ListTasks(_ context.Context, userID string) ([]task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]task.Task, 0)
	for _, t := range s.tasks {
		if userID == "" || t.UserID == userID {
			result = append(result, cloneTask(t))
		}
	}
	sortByCreated(result, func(t task.Task) time.Time { return t.CreatedAt })
	return result, nil
}

func (s *Store) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return notFound("task", id)
	}
	delete(s.tasks, id)
	return nil
}

// HabitStore implementation ---------------------------------------------------

func (s *Store) CreateSystem(_ context.Context, sys habit.System) (habit.System, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sys.ID == "" {
		sys.ID = s.nextIDLocked()
	} else if _, exists := s.systems[sys.ID]; exists {
		return habit.System{}, fmt.Errorf("system %s already exists", sys.ID)
	}

	now := time.Now().UTC()
	sys.CreatedAt = now
	sys.UpdatedAt = now

	s.systems[sys.ID] = sys
	return sys, nil
}

func (s *Store) UpdateSystem(_ context.Context, sys habit.System) (habit.System, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.systems[sys.ID]
	if !ok {
		return habit.System{}, notFound("system", sys.ID)
	}

	sys.CreatedAt = original.CreatedAt
	sys.UpdatedAt = time.Now().UTC()

	s.systems[sys.ID] = sys
	return sys, nil
}

func (s *Store) GetSystem(_ context.Context, id string) (habit.System, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sys, ok := s.systems[id]
	if !ok {
		return habit.System{}, notFound("system", id)
	}
	return sys, nil
}

func (s *Store) ListSystems(_ context.Context, userID string) ([]habit.System, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]habit.System, 0)
	for _, sys := range s.systems {
		if userID == "" || sys.UserID == userID {
			result = append(result, sys)
		}
	}
	sortByCreated(result, func(sys habit.System) time.Time { return sys.CreatedAt })
	return result, nil
}

func (s *Store) DeleteSystem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.systems[id]; !ok {
		return notFound("system", id)
	}
	delete(s.systems, id)
	for habitID, h := range s.habits {
		if h.SystemID == id {
			delete(s.habits, habitID)
			delete(s.checkIns, habitID)
		}
	}
	return nil
}

func (s *Store) CreateHabit(_ context.Context, h habit.Habit) (habit.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h.ID == "" {
		h.ID = s.nextIDLocked()
	} else if _, exists := s.habits[h.ID]; exists {
		return habit.Habit{}, fmt.Errorf("habit %s already exists", h.ID)
	}

	now := time.Now().UTC()
	h.CreatedAt = now
	h.UpdatedAt = now

	s.habits[h.ID] = h
	return h, nil
}

func (s *Store) UpdateHabit(_ context.Context, h habit.Habit) (habit.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.habits[h.ID]
	if !ok {
		return habit.Habit{}, notFound("habit", h.ID)
	}

	h.CreatedAt = original.CreatedAt
	h.UpdatedAt = time.Now().UTC()

	s.habits[h.ID] = h
	return h, nil
}

func (s *Store) GetHabit(_ context.Context, id string) (habit.Habit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.habits[id]
	if !ok {
		return habit.Habit{}, notFound("habit", id)
	}
	return h, nil
}

func (s *Store) ListHabits(_ context.Context, systemID string) ([]habit.Habit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]habit.Habit, 0)
	for _, h := range s.habits {
		if systemID == "" || h.SystemID == systemID {
			result = append(result, h)
		}
	}
	sortByCreated(result, func(h habit.Habit) time.Time { return h.CreatedAt })
	return result, nil
}

func (s *Store) ListUserHabits(_ context.Context, userID string) ([]habit.Habit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]habit.Habit, 0)
	for _, h := range s.habits {
		if h.UserID == userID {
			result = append(result, h)
		}
	}
	sortByCreated(result, func(h habit.Habit) time.Time { return h.CreatedAt })
	return result, nil
}

func (s *Store) DeleteHabit(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.habits[id]; !ok {
		return notFound("habit", id)
	}
	delete(s.habits, id)
	delete(s.checkIns, id)
	return nil
}

func (s *Store) CreateCheckIn(_ context.Context, c habit.CheckIn) (habit.CheckIn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.checkIns[c.HabitID] {
		if existing.Day == c.Day {
			return habit.CheckIn{}, fmt.Errorf("habit %s already checked in on %s", c.HabitID, c.Day)
		}
	}

	if c.ID == "" {
		c.ID = s.nextIDLocked()
	}
	c.CreatedAt = time.Now().UTC()

	s.checkIns[c.HabitID] = append(s.checkIns[c.HabitID], c)
	return c, nil
}

func (s *Store) GetCheckIn(_ context.Context, habitID, day string) (habit.CheckIn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.checkIns[habitID] {
		if c.Day == day {
			return c, nil
		}
	}
	return habit.CheckIn{}, fmt.Errorf("check-in %s/%s: %w", habitID, day, sql.ErrNoRows)
}

func (s *Store) ListCheckIns(_ context.Context, habitID string) ([]habit.CheckIn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]habit.CheckIn(nil), s.checkIns[habitID]...), nil
}

func (s *Store) DeleteCheckIn(_ context.Context, habitID, day string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.checkIns[habitID]
	for i, c := range entries {
		if c.Day == day {
			s.checkIns[habitID] = append(entries[:i], entries[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("check-in %s/%s: %w", habitID, day, sql.ErrNoRows)
}

// JournalStore implementation -------------------------------------------------

func (s *Store) CreateEntry(_ context.Context, e journal.Entry) (journal.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = s.nextIDLocked()
	} else if _, exists := s.journalEntries[e.ID]; exists {
		return journal.Entry{}, fmt.Errorf("journal entry %s already exists", e.ID)
	}

	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
	e.Tags = cloneStrings(e.Tags)

	s.journalEntries[e.ID] = e
	return cloneEntry(e), nil
}

func (s *Store) UpdateEntry(_ context.Context, e journal.Entry) (journal.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.journalEntries[e.ID]
	if !ok {
		return journal.Entry{}, notFound("journal entry", e.ID)
	}

	e.CreatedAt = original.CreatedAt
	e.UpdatedAt = time.Now().UTC()
	e.Tags = cloneStrings(e.Tags)

	s.journalEntries[e.ID] = e
	return cloneEntry(e), nil
}

func (s *Store) GetEntry(_ context.Context, id string) (journal.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.journalEntries[id]
	if !ok {
		return journal.Entry{}, notFound("journal entry", id)
	}
	return cloneEntry(e), nil
}

func (s *Store) ListEntries(_ context.Context, userID string) ([]journal.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]journal.Entry, 0)
	for _, e := range s.journalEntries {
		if userID == "" || e.UserID == userID {
			result = append(result, cloneEntry(e))
		}
	}
	sortByCreated(result, func(e journal.Entry) time.Time { return e.CreatedAt })
	return result, nil
}

func (s *Store) DeleteEntry(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.journalEntries[id]; !ok {
		return notFound("journal entry", id)
	}
	delete(s.journalEntries, id)
	return nil
}

func cloneTask(t task.Task) task.Task {
	t.Tags = cloneStrings(t.Tags)
	return t
}

func cloneEntry(e journal.Entry) journal.Entry {
	e.Tags = cloneStrings(e.Tags)
	return e
}
