package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/lifeos-hq/lifeos/internal/app/domain/habit"
	"github.com/lifeos-hq/lifeos/internal/app/domain/journal"
	"github.com/lifeos-hq/lifeos/internal/app/domain/task"
)

// --- TaskStore --------------------------------------------------------------

func (s *Store) CreateTask(ctx context.Context, t task.Task) (task.Task, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	tags, _ := json.Marshal(t.Tags)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_tasks (id, user_id, title, notes, priority, status, due_date, scheduled_for, duration_minutes, tags, completed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, t.ID, t.UserID, t.Title, t.Notes, t.Priority, t.Status, ptrToNullTime(t.DueDate), ptrToNullTime(t.ScheduledFor), t.DurationMinutes, tags, ptrToNullTime(t.CompletedAt), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return task.Task{}, err
	}
	return t, nil
}

func (s *Store) UpdateTask(ctx context.Context, t task.Task) (task.Task, error) {
	existing, err := s.GetTask(ctx, t.ID)
	if err != nil {
		return task.Task{}, err
	}

	t.UserID = existing.UserID
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = time.Now().UTC()

	tags, _ := json.Marshal(t.Tags)
	result, err := s.db.ExecContext(ctx, `
		UPDATE app_tasks
		SET title = $2, notes = $3, priority = $4, status = $5, due_date = $6, scheduled_for = $7, duration_minutes = $8, tags = $9, completed_at = $10, updated_at = $11
		WHERE id = $1
	`, t.ID, t.Title, t.Notes, t.Priority, t.Status, ptrToNullTime(t.DueDate), ptrToNullTime(t.ScheduledFor), t.DurationMinutes, tags, ptrToNullTime(t.CompletedAt), t.UpdatedAt)
	if err != nil {
		return task.Task{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return task.Task{}, sql.ErrNoRows
	}
	return t, nil
}

func (s *Store) GetTask(ctx context.Context, id string) (task.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, notes, priority, status, due_date, scheduled_for, duration_minutes, tags, completed_at, created_at, updated_at
		FROM app_tasks
		WHERE id = $1
	`, id)
	return scanTask(row.Scan)
}

func (s *Store) ListTasks(ctx context.Context, userID string) ([]task.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, notes, priority, status, due_date, scheduled_for, duration_minutes, tags, completed_at, created_at, updated_at
		FROM app_tasks
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []task.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func scanTask(scan func(dest ...interface{}) error) (task.Task, error) {
	var (
		t         task.Task
		due       sql.NullTime
		scheduled sql.NullTime
		completed sql.NullTime
		tags      []byte
	)
	err := scan(&t.ID, &t.UserID, &t.Title, &t.Notes, &t.Priority, &t.Status, &due, &scheduled, &t.DurationMinutes, &tags, &completed, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return task.Task{}, err
	}
	t.DueDate = nullTimeToPtr(due)
	t.ScheduledFor = nullTimeToPtr(scheduled)
	t.CompletedAt = nullTimeToPtr(completed)
	if len(tags) > 0 {
		_ = json.Unmarshal(tags, &t.Tags)
	}
	return t, nil
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM app_tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// --- HabitStore -------------------------------------------------------------

func (s *Store) CreateSystem(ctx context.Context, sys habit.System) (habit.System, error) {
	if sys.ID == "" {
		sys.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	sys.CreatedAt = now
	sys.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_systems (id, user_id, name, description, target_date, archived, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, sys.ID, sys.UserID, sys.Name, sys.Description, ptrToNullTime(sys.TargetDate), sys.Archived, sys.CreatedAt, sys.UpdatedAt)
	if err != nil {
		return habit.System{}, err
	}
	return sys, nil
}

func (s *Store) UpdateSystem(ctx context.Context, sys habit.System) (habit.System, error) {
	existing, err := s.GetSystem(ctx, sys.ID)
	if err != nil {
		return habit.System{}, err
	}

	sys.UserID = existing.UserID
	sys.CreatedAt = existing.CreatedAt
	sys.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE app_systems
		SET name = $2, description = $3, target_date = $4, archived = $5, updated_at = $6
		WHERE id = $1
	`, sys.ID, sys.Name, sys.Description, ptrToNullTime(sys.TargetDate), sys.Archived, sys.UpdatedAt)
	if err != nil {
		return habit.System{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return habit.System{}, sql.ErrNoRows
	}
	return sys, nil
}

func (s *Store) GetSystem(ctx context.Context, id string) (habit.System, error) {
	var (
		sys    habit.System
		target sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, description, target_date, archived, created_at, updated_at
		FROM app_systems
		WHERE id = $1
	`, id).Scan(&sys.ID, &sys.UserID, &sys.Name, &sys.Description, &target, &sys.Archived, &sys.CreatedAt, &sys.UpdatedAt)
	if err != nil {
		return habit.System{}, err
	}
	sys.TargetDate = nullTimeToPtr(target)
	return sys, nil
}

func (s *Store) ListSystems(ctx context.Context, userID string) ([]habit.System, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, description, target_date, archived, created_at, updated_at
		FROM app_systems
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []habit.System
	for rows.Next() {
		var (
			sys    habit.System
			target sql.NullTime
		)
		if err := rows.Scan(&sys.ID, &sys.UserID, &sys.Name, &sys.Description, &target, &sys.Archived, &sys.CreatedAt, &sys.UpdatedAt); err != nil {
			return nil, err
		}
		sys.TargetDate = nullTimeToPtr(target)
		result = append(result, sys)
	}
	return result, rows.Err()
}

// DeleteSystem removes the system together with its habits and their
// check-ins.
func (s *Store) DeleteSystem(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM app_habit_checkins
			WHERE habit_id IN (SELECT id FROM app_habits WHERE system_id = $1)
		`, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM app_habits WHERE system_id = $1`, id); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM app_systems WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
}

func (s *Store) CreateHabit(ctx context.Context, h habit.Habit) (habit.Habit, error) {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	h.CreatedAt = now
	h.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_habits (id, system_id, user_id, name, cadence, reminder, archived, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, h.ID, h.SystemID, h.UserID, h.Name, h.Cadence, h.Reminder, h.Archived, h.CreatedAt, h.UpdatedAt)
	if err != nil {
		return habit.Habit{}, err
	}
	return h, nil
}

func (s *Store) UpdateHabit(ctx context.Context, h habit.Habit) (habit.Habit, error) {
	existing, err := s.GetHabit(ctx, h.ID)
	if err != nil {
		return habit.Habit{}, err
	}

	h.SystemID = existing.SystemID
	h.UserID = existing.UserID
	h.CreatedAt = existing.CreatedAt
	h.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE app_habits
		SET name = $2, cadence = $3, reminder = $4, archived = $5, updated_at = $6
		WHERE id = $1
	`, h.ID, h.Name, h.Cadence, h.Reminder, h.Archived, h.UpdatedAt)
	if err != nil {
		return habit.Habit{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return habit.Habit{}, sql.ErrNoRows
	}
	return h, nil
}

func (s *Store) GetHabit(ctx context.Context, id string) (habit.Habit, error) {
	var h habit.Habit
	err := s.db.QueryRowContext(ctx, `
		SELECT id, system_id, user_id, name, cadence, reminder, archived, created_at, updated_at
		FROM app_habits
		WHERE id = $1
	`, id).Scan(&h.ID, &h.SystemID, &h.UserID, &h.Name, &h.Cadence, &h.Reminder, &h.Archived, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return habit.Habit{}, err
	}
	return h, nil
}

func (s *Store) ListHabits(ctx context.Context, systemID string) ([]habit.Habit, error) {
	return s.listHabits(ctx, `
		SELECT id, system_id, user_id, name, cadence, reminder, archived, created_at, updated_at
		FROM app_habits
		WHERE system_id = $1
		ORDER BY created_at
	`, systemID)
}

func (s *Store) ListUserHabits(ctx context.Context, userID string) ([]habit.Habit, error) {
	return s.listHabits(ctx, `
		SELECT id, system_id, user_id, name, cadence, reminder, archived, created_at, updated_at
		FROM app_habits
		WHERE user_id = $1
		ORDER BY created_at
	`, userID)
}

func (s *Store) listHabits(ctx context.Context, query, arg string) ([]habit.Habit, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []habit.Habit
	for rows.Next() {
		var h habit.Habit
		if err := rows.Scan(&h.ID, &h.SystemID, &h.UserID, &h.Name, &h.Cadence, &h.Reminder, &h.Archived, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, h)
	}
	return result, rows.Err()
}

// DeleteHabit removes the habit together with its check-ins.
func (s *Store) DeleteHabit(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM app_habit_checkins WHERE habit_id = $1`, id); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM app_habits WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
}

func (s *Store) CreateCheckIn(ctx context.Context, c habit.CheckIn) (habit.CheckIn, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_habit_checkins (id, habit_id, user_id, day, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID, c.HabitID, c.UserID, c.Day, c.CreatedAt)
	if err != nil {
		return habit.CheckIn{}, err
	}
	return c, nil
}

func (s *Store) GetCheckIn(ctx context.Context, habitID, day string) (habit.CheckIn, error) {
	var c habit.CheckIn
	err := s.db.QueryRowContext(ctx, `
		SELECT id, habit_id, user_id, day, created_at
		FROM app_habit_checkins
		WHERE habit_id = $1 AND day = $2
	`, habitID, day).Scan(&c.ID, &c.HabitID, &c.UserID, &c.Day, &c.CreatedAt)
	if err != nil {
		return habit.CheckIn{}, err
	}
	return c, nil
}

func (s *Store) ListCheckIns(ctx context.Context, habitID string) ([]habit.CheckIn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, habit_id, user_id, day, created_at
		FROM app_habit_checkins
		WHERE habit_id = $1
		ORDER BY day DESC
	`, habitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []habit.CheckIn
	for rows.Next() {
		var c habit.CheckIn
		if err := rows.Scan(&c.ID, &c.HabitID, &c.UserID, &c.Day, &c.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (s *Store) DeleteCheckIn(ctx context.Context, habitID, day string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM app_habit_checkins WHERE habit_id = $1 AND day = $2
	`, habitID, day)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// --- JournalStore -----------------------------------------------------------

func (s *Store) CreateEntry(ctx context.Context, e journal.Entry) (journal.Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now

	tags, _ := json.Marshal(e.Tags)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_journal_entries (id, user_id, title, content, mood, tags, entry_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, e.ID, e.UserID, e.Title, e.Content, e.Mood, tags, e.EntryDate, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return journal.Entry{}, err
	}
	return e, nil
}

func (s *Store) UpdateEntry(ctx context.Context, e journal.Entry) (journal.Entry, error) {
	existing, err := s.GetEntry(ctx, e.ID)
	if err != nil {
		return journal.Entry{}, err
	}

	e.UserID = existing.UserID
	e.CreatedAt = existing.CreatedAt
	e.UpdatedAt = time.Now().UTC()

	tags, _ := json.Marshal(e.Tags)
	result, err := s.db.ExecContext(ctx, `
		UPDATE app_journal_entries
		SET title = $2, content = $3, mood = $4, tags = $5, entry_date = $6, updated_at = $7
		WHERE id = $1
	`, e.ID, e.Title, e.Content, e.Mood, tags, e.EntryDate, e.UpdatedAt)
	if err != nil {
		return journal.Entry{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return journal.Entry{}, sql.ErrNoRows
	}
	return e, nil
}

func (s *Store) GetEntry(ctx context.Context, id string) (journal.Entry, error) {
	var (
		e    journal.Entry
		tags []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, content, mood, tags, entry_date, created_at, updated_at
		FROM app_journal_entries
		WHERE id = $1
	`, id).Scan(&e.ID, &e.UserID, &e.Title, &e.Content, &e.Mood, &tags, &e.EntryDate, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return journal.Entry{}, err
	}
	if len(tags) > 0 {
		_ = json.Unmarshal(tags, &e.Tags)
	}
	return e, nil
}

func (s *Store) ListEntries(ctx context.Context, userID string) ([]journal.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, content, mood, tags, entry_date, created_at, updated_at
		FROM app_journal_entries
		WHERE user_id = $1
		ORDER BY entry_date DESC, created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []journal.Entry
	for rows.Next() {
		var (
			e    journal.Entry
			tags []byte
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Title, &e.Content, &e.Mood, &tags, &e.EntryDate, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		if len(tags) > 0 {
			_ = json.Unmarshal(tags, &e.Tags)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM app_journal_entries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
