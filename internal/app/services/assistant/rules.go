package assistant

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lifeos-hq/lifeos/internal/app/domain/assistant"
	"github.com/lifeos-hq/lifeos/internal/app/domain/habit"
	"github.com/lifeos-hq/lifeos/internal/app/domain/task"
)

const (
	planDayStart   = 9 * 60 // 09:00
	planDayEnd     = 22 * 60
	defaultTaskMin = 60
	habitBlockMin  = 30
)

// RuleCompleter is the no-gateway fallback. It categorizes by keyword table
// and timeboxes schedules deterministically; chat gets a fixed notice.
type RuleCompleter struct{}

// Complete implements Completer with a fixed notice.
func (r *RuleCompleter) Complete(_ context.Context, _ string, _ []assistant.ChatMessage) (string, error) {
	return "The AI gateway is not configured, so chat is unavailable. Categorization and day planning still work in deterministic mode.", nil
}

var categoryKeywords = []struct {
	category string
	words    []string
}{
	{"groceries", []string{"grocery", "groceries", "supermarket", "market", "foodstuff", "shoprite", "spar"}},
	{"transport", []string{"uber", "bolt", "taxi", "bus", "fuel", "petrol", "diesel", "okada", "keke", "flight", "train"}},
	{"dining", []string{"restaurant", "lunch", "dinner", "breakfast", "cafe", "eatery", "suya", "pizza", "shawarma"}},
	{"utilities", []string{"electricity", "nepa", "phcn", "prepaid", "water bill", "internet", "data", "airtime", "dstv", "gotv"}},
	{"rent", []string{"rent", "landlord", "lease", "accommodation"}},
	{"entertainment", []string{"netflix", "spotify", "showmax", "cinema", "movie", "concert", "game"}},
	{"health", []string{"hospital", "pharmacy", "clinic", "doctor", "medicine", "drugs", "gym"}},
	{"income", []string{"salary", "wages", "bonus", "payout", "refund", "dividend"}},
}

// Categorize matches the description against the keyword table. No match
// lands in "other" with low confidence.
func (r *RuleCompleter) Categorize(description string) assistant.CategorySuggestion {
	lowered := strings.ToLower(description)
	for _, entry := range categoryKeywords {
		for _, word := range entry.words {
			if strings.Contains(lowered, word) {
				return assistant.CategorySuggestion{Category: entry.category, Confidence: 0.8}
			}
		}
	}
	return assistant.CategorySuggestion{Category: "other", Confidence: 0.3}
}

// Plan timeboxes tasks from 09:00, ordered by priority then due date, flowing
// around habit blocks pinned at their reminder times. Habits without a
// reminder go after the last task.
func (r *RuleCompleter) Plan(tasks []task.Task, habits []habit.Habit) []assistant.ScheduleBlock {
	ordered := append([]task.Task(nil), tasks...)
	sort.SliceStable(ordered, func(i, j int) bool {
		pi, pj := priorityRank(ordered[i].Priority), priorityRank(ordered[j].Priority)
		if pi != pj {
			return pi < pj
		}
		di, dj := ordered[i].DueDate, ordered[j].DueDate
		switch {
		case di == nil && dj == nil:
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		case di == nil:
			return false
		case dj == nil:
			return true
		}
		return di.Before(*dj)
	})

	var blocks []assistant.ScheduleBlock
	var pinned []assistant.ScheduleBlock
	var floating []habit.Habit
	for _, h := range habits {
		start, err := minuteOfDay(h.Reminder)
		if err != nil {
			floating = append(floating, h)
			continue
		}
		pinned = append(pinned, assistant.ScheduleBlock{
			Start: formatMinute(start),
			End:   formatMinute(start + habitBlockMin),
			Title: h.Name,
		})
	}
	sort.Slice(pinned, func(i, j int) bool { return pinned[i].Start < pinned[j].Start })
	blocks = append(blocks, pinned...)

	cursor := planDayStart
	for _, t := range ordered {
		dur := t.DurationMinutes
		if dur <= 0 {
			dur = defaultTaskMin
		}
		cursor = skipPinned(pinned, cursor, dur)
		if cursor+dur > planDayEnd {
			break
		}
		blocks = append(blocks, assistant.ScheduleBlock{
			Start:  formatMinute(cursor),
			End:    formatMinute(cursor + dur),
			Title:  t.Title,
			TaskID: t.ID,
		})
		cursor += dur
	}

	for _, h := range floating {
		cursor = skipPinned(pinned, cursor, habitBlockMin)
		if cursor+habitBlockMin > planDayEnd {
			break
		}
		blocks = append(blocks, assistant.ScheduleBlock{
			Start: formatMinute(cursor),
			End:   formatMinute(cursor + habitBlockMin),
			Title: h.Name,
		})
		cursor += habitBlockMin
	}

	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Start < blocks[j].Start })
	return blocks
}

// skipPinned moves the cursor past any pinned block a [cursor, cursor+dur)
// slot would overlap.
func skipPinned(pinned []assistant.ScheduleBlock, cursor, dur int) int {
	for _, p := range pinned {
		start, _ := minuteOfDay(p.Start)
		end, _ := minuteOfDay(p.End)
		if cursor < end && cursor+dur > start {
			cursor = end
		}
	}
	return cursor
}

func priorityRank(p string) int {
	switch p {
	case task.PriorityHigh:
		return 0
	case task.PriorityMedium:
		return 1
	}
	return 2
}

// minuteOfDay parses "HH:MM" into minutes since midnight.
func minuteOfDay(hhmm string) (int, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func formatMinute(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
