package assistant

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lifeos-hq/lifeos/internal/app/domain/assistant"
	"github.com/lifeos-hq/lifeos/internal/app/domain/habit"
	"github.com/lifeos-hq/lifeos/internal/app/domain/task"
	"github.com/lifeos-hq/lifeos/internal/app/domain/user"
	"github.com/lifeos-hq/lifeos/internal/app/metrics"
	"github.com/lifeos-hq/lifeos/internal/app/services/entitlements"
)

const dayFormat = "2006-01-02"

const categorizePrompt = "You categorize personal finance transactions. " +
	"Reply with exactly one word from this list and nothing else: " +
	"groceries, transport, dining, utilities, rent, entertainment, health, income, other."

const schedulePrompt = "You plan one day for the user. Reply with a JSON array only, no prose. " +
	`Each element is {"start":"HH:MM","end":"HH:MM","title":"...","task_id":"..."} ` +
	"where task_id is present only for blocks taken from the task list. " +
	"Keep blocks between 06:00 and 23:00 and do not overlap them."

// Categorize suggests a spending category for a transaction description.
func (s *Service) Categorize(ctx context.Context, u user.User, description string, amount float64) (assistant.CategorySuggestion, error) {
	if err := s.ent.Require(ctx, u, entitlements.FeatureAssistantCategorize); err != nil {
		metrics.RecordAssistantRequest("categorize", "denied")
		return assistant.CategorySuggestion{}, err
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return assistant.CategorySuggestion{}, fmt.Errorf("description is required")
	}

	if s.completer == nil {
		metrics.RecordAssistantRequest("categorize", "fallback")
		return s.rules.Categorize(description), nil
	}

	reply, err := s.completer.Complete(ctx, categorizePrompt, []assistant.ChatMessage{
		{Role: assistant.RoleUser, Content: fmt.Sprintf("%s (amount %.2f)", description, amount)},
	})
	if err != nil {
		metrics.RecordAssistantRequest("categorize", "error")
		return assistant.CategorySuggestion{}, fmt.Errorf("%w: %v", ErrGatewayFailure, err)
	}

	metrics.RecordAssistantRequest("categorize", "ok")
	candidate := strings.ToLower(strings.Trim(strings.TrimSpace(reply), `."'`))
	if fields := strings.Fields(candidate); len(fields) > 0 {
		candidate = fields[0]
	}
	if !assistant.KnownCategory(candidate) {
		return assistant.CategorySuggestion{Category: "other", Confidence: 0.4}, nil
	}
	return assistant.CategorySuggestion{Category: candidate, Confidence: 0.9}, nil
}

// Schedule generates a timeboxed plan for the given day from open tasks due
// by that day and daily habits still unchecked on it. The plan is returned,
// never stored.
func (s *Service) Schedule(ctx context.Context, u user.User, date string) ([]assistant.ScheduleBlock, error) {
	if err := s.ent.Require(ctx, u, entitlements.FeatureAssistantSchedule); err != nil {
		metrics.RecordAssistantRequest("schedule", "denied")
		return nil, err
	}

	loc := time.UTC
	if l, err := time.LoadLocation(u.Timezone); err == nil {
		loc = l
	}
	if date == "" {
		date = time.Now().In(loc).Format(dayFormat)
	} else if _, err := time.Parse(dayFormat, date); err != nil {
		return nil, fmt.Errorf("date must be YYYY-MM-DD")
	}

	dueTasks, err := s.dueTasks(ctx, u.ID, date, loc)
	if err != nil {
		return nil, err
	}
	openHabits, err := s.uncheckedDailyHabits(ctx, u.ID, date)
	if err != nil {
		return nil, err
	}

	if s.completer == nil {
		metrics.RecordAssistantRequest("schedule", "fallback")
		return s.rules.Plan(dueTasks, openHabits), nil
	}

	reply, err := s.completer.Complete(ctx, schedulePrompt, []assistant.ChatMessage{
		{Role: assistant.RoleUser, Content: scheduleRequest(date, dueTasks, openHabits)},
	})
	if err == nil {
		if blocks, perr := parsePlan(reply); perr == nil {
			metrics.RecordAssistantRequest("schedule", "ok")
			return blocks, nil
		}
	} else {
		s.log.WithError(err).Warn("schedule completion failed, using deterministic plan")
	}

	metrics.RecordAssistantRequest("schedule", "fallback")
	return s.rules.Plan(dueTasks, openHabits), nil
}

// dueTasks returns open tasks whose due date falls on or before the day.
func (s *Service) dueTasks(ctx context.Context, userID, date string, loc *time.Location) ([]task.Task, error) {
	all, err := s.tasks.ListTasks(ctx, userID)
	if err != nil {
		return nil, err
	}
	due := make([]task.Task, 0, len(all))
	for _, t := range all {
		if t.Status != task.StatusOpen || t.DueDate == nil {
			continue
		}
		if t.DueDate.In(loc).Format(dayFormat) <= date {
			due = append(due, t)
		}
	}
	return due, nil
}

// uncheckedDailyHabits returns unarchived daily habits without a check-in on
// the day.
func (s *Service) uncheckedDailyHabits(ctx context.Context, userID, date string) ([]habit.Habit, error) {
	all, err := s.habits.ListUserHabits(ctx, userID)
	if err != nil {
		return nil, err
	}
	open := make([]habit.Habit, 0, len(all))
	for _, h := range all {
		if h.Archived || h.Cadence != habit.CadenceDaily {
			continue
		}
		if _, err := s.habits.GetCheckIn(ctx, h.ID, date); err == nil {
			continue
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		open = append(open, h)
	}
	return open, nil
}

// scheduleRequest renders the task and habit inventory the completer plans
// from.
func scheduleRequest(date string, tasks []task.Task, habits []habit.Habit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan %s.\n\nTasks:\n", date)
	if len(tasks) == 0 {
		b.WriteString("(none)\n")
	}
	for _, t := range tasks {
		dur := t.DurationMinutes
		if dur <= 0 {
			dur = defaultTaskMin
		}
		due := ""
		if t.DueDate != nil {
			due = " due " + t.DueDate.Format(dayFormat)
		}
		fmt.Fprintf(&b, "- [%s] %s (%s priority, ~%d min%s)\n", t.ID, t.Title, t.Priority, dur, due)
	}
	b.WriteString("\nHabits:\n")
	if len(habits) == 0 {
		b.WriteString("(none)\n")
	}
	for _, h := range habits {
		if h.Reminder != "" {
			fmt.Fprintf(&b, "- %s (preferred at %s)\n", h.Name, h.Reminder)
			continue
		}
		fmt.Fprintf(&b, "- %s\n", h.Name)
	}
	return b.String()
}

// parsePlan decodes the completer's reply into schedule blocks, tolerating
// a markdown code fence around the JSON.
func parsePlan(reply string) ([]assistant.ScheduleBlock, error) {
	trimmed := strings.TrimSpace(reply)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		trimmed = strings.TrimSpace(trimmed)
	}

	var blocks []assistant.ScheduleBlock
	if err := json.Unmarshal([]byte(trimmed), &blocks); err != nil {
		return nil, fmt.Errorf("plan is not a JSON array: %w", err)
	}
	for _, blk := range blocks {
		if _, err := minuteOfDay(blk.Start); err != nil {
			return nil, fmt.Errorf("bad start %q", blk.Start)
		}
		if _, err := minuteOfDay(blk.End); err != nil {
			return nil, fmt.Errorf("bad end %q", blk.End)
		}
		if strings.TrimSpace(blk.Title) == "" {
			return nil, fmt.Errorf("block without title")
		}
	}
	return blocks, nil
}
