package habits

import (
	"sort"
	"time"

	"github.com/lifeos-hq/lifeos/internal/app/domain/habit"
)

// dailyStreak counts runs of consecutive calendar days. The current streak
// must end today or yesterday, otherwise it is broken.
func dailyStreak(days []string, today string) habit.Streak {
	return streakFrom(dayIndices(days), 1, dayIndex(today))
}

// weeklyStreak counts runs of consecutive ISO weeks, keyed by each day's
// Monday. Any check-in within a week counts the whole week, and the current
// streak must reach this week or last week.
func weeklyStreak(days []string, today string) habit.Streak {
	weeks := make([]string, len(days))
	for i, d := range days {
		weeks[i] = mondayOf(d)
	}
	return streakFrom(dayIndices(weeks), 7, dayIndex(mondayOf(today)))
}

// streakFrom scans sorted unique day indices where consecutive entries
// differ by step. The current streak counts the final run when it ends at
// the anchor index or one step before it.
func streakFrom(idx []int, step, anchor int) habit.Streak {
	if len(idx) == 0 {
		return habit.Streak{}
	}

	longest, run := 1, 1
	for i := 1; i < len(idx); i++ {
		if idx[i] == idx[i-1]+step {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}

	st := habit.Streak{Longest: longest}
	if last := idx[len(idx)-1]; last == anchor || last == anchor-step {
		current := 1
		for i := len(idx) - 1; i > 0 && idx[i-1] == idx[i]-step; i-- {
			current++
		}
		st.Current = current
	}
	return st
}

// dayIndex maps a 2006-01-02 day to its day number since the Unix epoch.
func dayIndex(day string) int {
	t, err := time.Parse(dayFormat, day)
	if err != nil {
		return -1
	}
	return int(t.Unix() / 86400)
}

// dayIndices converts days to sorted unique epoch day numbers, skipping
// anything unparseable.
func dayIndices(days []string) []int {
	seen := make(map[int]struct{}, len(days))
	idx := make([]int, 0, len(days))
	for _, d := range days {
		i := dayIndex(d)
		if i < 0 {
			continue
		}
		if _, ok := seen[i]; ok {
			continue
		}
		seen[i] = struct{}{}
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}

// mondayOf returns the Monday of the week containing day.
func mondayOf(day string) string {
	t, err := time.Parse(dayFormat, day)
	if err != nil {
		return day
	}
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset).Format(dayFormat)
}
