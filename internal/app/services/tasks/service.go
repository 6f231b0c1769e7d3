// Package tasks implements task planning: creation, owner-scoped listing
// with due-date filters, completion and reopening.
package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lifeos-hq/lifeos/internal/app/domain/task"
	"github.com/lifeos-hq/lifeos/internal/app/realtime"
	"github.com/lifeos-hq/lifeos/internal/app/storage"
	"github.com/lifeos-hq/lifeos/pkg/logger"
)

// Service manages tasks.
type Service struct {
	store storage.TaskStore
	users storage.UserStore
	log   *logger.Logger
	hub   *realtime.Hub
}

// New constructs a tasks service.
func New(store storage.TaskStore, users storage.UserStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("tasks")
	}
	return &Service{store: store, users: users, log: log}
}

// AttachHub enables realtime change events.
func (s *Service) AttachHub(hub *realtime.Hub) {
	s.hub = hub
}

// Create stores a new open task. Priority defaults to medium.
func (s *Service) Create(ctx context.Context, userID, title, notes, priority string, dueDate, scheduledFor *time.Time, durationMinutes int, tags []string) (task.Task, error) {
	title = strings.TrimSpace(title)
	priority = strings.TrimSpace(priority)

	if title == "" {
		return task.Task{}, fmt.Errorf("title is required")
	}
	if priority == "" {
		priority = task.PriorityMedium
	}
	if !task.KnownPriority(priority) {
		return task.Task{}, fmt.Errorf("unknown priority %q", priority)
	}
	if durationMinutes < 0 {
		return task.Task{}, fmt.Errorf("duration_minutes cannot be negative")
	}

	t := task.Task{
		UserID:          userID,
		Title:           title,
		Notes:           strings.TrimSpace(notes),
		Priority:        priority,
		Status:          task.StatusOpen,
		DueDate:         normalizeTime(dueDate),
		ScheduledFor:    normalizeTime(scheduledFor),
		DurationMinutes: durationMinutes,
		Tags:            cleanTags(tags),
	}
	t, err := s.store.CreateTask(ctx, t)
	if err != nil {
		return task.Task{}, err
	}

	s.publish(realtime.EventInsert, t)
	s.log.WithField("task_id", t.ID).
		WithField("user_id", userID).
		Info("task created")
	return t, nil
}

// Get returns one of the user's tasks.
func (s *Service) Get(ctx context.Context, userID, taskID string) (task.Task, error) {
	return s.owned(ctx, userID, taskID)
}

// List returns the user's tasks, newest first, narrowed by the optional
// status, due window and tag filters. Due windows evaluate in the user's
// timezone.
func (s *Service) List(ctx context.Context, userID, status, due, tag string) ([]task.Task, error) {
	status = strings.TrimSpace(status)
	due = strings.TrimSpace(due)
	tag = strings.TrimSpace(tag)

	if due != "" && due != "today" && due != "overdue" && due != "week" {
		return nil, fmt.Errorf("unknown due filter %q", due)
	}

	all, err := s.store.ListTasks(ctx, userID)
	if err != nil {
		return nil, err
	}

	var loc *time.Location
	if due != "" {
		loc = s.userLocation(ctx, userID)
	}

	result := make([]task.Task, 0, len(all))
	for _, t := range all {
		if status != "" && t.Status != status {
			continue
		}
		if tag != "" && !hasTag(t.Tags, tag) {
			continue
		}
		if due != "" && !matchesDue(t, due, loc) {
			continue
		}
		result = append(result, t)
	}
	return result, nil
}

// Update applies the provided fields. A pointer to the zero time clears the
// corresponding date.
func (s *Service) Update(ctx context.Context, userID, taskID string, title, notes, priority *string, dueDate, scheduledFor *time.Time, durationMinutes *int, tags []string) (task.Task, error) {
	t, err := s.owned(ctx, userID, taskID)
	if err != nil {
		return task.Task{}, err
	}

	if title != nil {
		if trimmed := strings.TrimSpace(*title); trimmed != "" {
			t.Title = trimmed
		} else {
			return task.Task{}, fmt.Errorf("title cannot be empty")
		}
	}
	if notes != nil {
		t.Notes = strings.TrimSpace(*notes)
	}
	if priority != nil {
		if !task.KnownPriority(*priority) {
			return task.Task{}, fmt.Errorf("unknown priority %q", *priority)
		}
		t.Priority = *priority
	}
	if dueDate != nil {
		t.DueDate = normalizeTime(dueDate)
	}
	if scheduledFor != nil {
		t.ScheduledFor = normalizeTime(scheduledFor)
	}
	if durationMinutes != nil {
		if *durationMinutes < 0 {
			return task.Task{}, fmt.Errorf("duration_minutes cannot be negative")
		}
		t.DurationMinutes = *durationMinutes
	}
	if tags != nil {
		t.Tags = cleanTags(tags)
	}

	t, err = s.store.UpdateTask(ctx, t)
	if err != nil {
		return task.Task{}, err
	}

	s.publish(realtime.EventUpdate, t)
	s.log.WithField("task_id", t.ID).Info("task updated")
	return t, nil
}

// Delete removes one of the user's tasks.
func (s *Service) Delete(ctx context.Context, userID, taskID string) error {
	t, err := s.owned(ctx, userID, taskID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTask(ctx, t.ID); err != nil {
		return err
	}

	s.publish(realtime.EventDelete, t)
	s.log.WithField("task_id", t.ID).Info("task deleted")
	return nil
}

// Complete marks a task done. Completing a done task returns it unchanged.
func (s *Service) Complete(ctx context.Context, userID, taskID string) (task.Task, error) {
	t, err := s.owned(ctx, userID, taskID)
	if err != nil {
		return task.Task{}, err
	}
	if t.Status == task.StatusDone {
		return t, nil
	}

	now := time.Now().UTC()
	t.Status = task.StatusDone
	t.CompletedAt = &now

	t, err = s.store.UpdateTask(ctx, t)
	if err != nil {
		return task.Task{}, err
	}

	s.publish(realtime.EventUpdate, t)
	s.log.WithField("task_id", t.ID).Info("task completed")
	return t, nil
}

// Reopen moves a done task back to open.
func (s *Service) Reopen(ctx context.Context, userID, taskID string) (task.Task, error) {
	t, err := s.owned(ctx, userID, taskID)
	if err != nil {
		return task.Task{}, err
	}
	if t.Status == task.StatusOpen {
		return t, nil
	}

	t.Status = task.StatusOpen
	t.CompletedAt = nil

	t, err = s.store.UpdateTask(ctx, t)
	if err != nil {
		return task.Task{}, err
	}

	s.publish(realtime.EventUpdate, t)
	s.log.WithField("task_id", t.ID).Info("task reopened")
	return t, nil
}

func (s *Service) owned(ctx context.Context, userID, taskID string) (task.Task, error) {
	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return task.Task{}, err
	}
	if t.UserID != userID {
		return task.Task{}, fmt.Errorf("task %s: %w", taskID, sql.ErrNoRows)
	}
	return t, nil
}

func (s *Service) publish(event string, t task.Task) {
	s.hub.Publish(t.UserID, realtime.TopicTasks, event, t)
}

func (s *Service) userLocation(ctx context.Context, userID string) *time.Location {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return time.UTC
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func matchesDue(t task.Task, due string, loc *time.Location) bool {
	if t.DueDate == nil {
		return false
	}

	now := time.Now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	dueDay := t.DueDate.In(loc)
	dueDate := time.Date(dueDay.Year(), dueDay.Month(), dueDay.Day(), 0, 0, 0, 0, loc)

	switch due {
	case "today":
		return dueDate.Equal(today)
	case "overdue":
		return dueDate.Before(today) && t.Status == task.StatusOpen
	case "week":
		return !dueDate.Before(today) && dueDate.Before(today.AddDate(0, 0, 7))
	}
	return false
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

func cleanTags(tags []string) []string {
	result := make([]string, 0, len(tags))
	for _, t := range tags {
		if trimmed := strings.TrimSpace(t); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// normalizeTime maps nil and the zero time to nil, everything else to UTC.
func normalizeTime(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	utc := t.UTC()
	return &utc
}
