package habit

import "time"

const (
	CadenceDaily  = "daily"
	CadenceWeekly = "weekly"
)

// System is a user-defined goal with attached recurring habits.
type System struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	TargetDate  *time.Time `json:"target_date,omitempty"`
	Archived    bool       `json:"archived"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Habit is a recurring practice attached to a system.
type Habit struct {
	ID        string    `json:"id"`
	SystemID  string    `json:"system_id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Cadence   string    `json:"cadence"`
	Reminder  string    `json:"reminder,omitempty"` // "HH:MM", user-local
	Archived  bool      `json:"archived"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CheckIn records one completion of a habit on a calendar day. Day is
// date-only in the user's timezone, formatted 2006-01-02.
type CheckIn struct {
	ID        string    `json:"id"`
	HabitID   string    `json:"habit_id"`
	UserID    string    `json:"user_id"`
	Day       string    `json:"day"`
	CreatedAt time.Time `json:"created_at"`
}

// Streak summarises consecutive completion runs for a habit.
type Streak struct {
	Current int `json:"current"`
	Longest int `json:"longest"`
}

// KnownCadence reports whether c is a supported cadence.
func KnownCadence(c string) bool {
	return c == CadenceDaily || c == CadenceWeekly
}
