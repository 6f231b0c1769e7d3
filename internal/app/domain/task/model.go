package task

import "time"

const (
	StatusOpen = "open"
	StatusDone = "done"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Task is a single planned item of work.
type Task struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	Title           string     `json:"title"`
	Notes           string     `json:"notes,omitempty"`
	Priority        string     `json:"priority"`
	Status          string     `json:"status"`
	DueDate         *time.Time `json:"due_date,omitempty"`
	ScheduledFor    *time.Time `json:"scheduled_for,omitempty"`
	DurationMinutes int        `json:"duration_minutes,omitempty"`
	Tags            []string   `json:"tags,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// KnownPriority reports whether p is a supported priority level.
func KnownPriority(p string) bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}
