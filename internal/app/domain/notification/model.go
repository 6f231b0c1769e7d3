package notification

import "time"

// Trigger kinds the engine knows how to evaluate.
const (
	TriggerTaskDue             = "task_due"
	TriggerHabitReminder       = "habit_reminder"
	TriggerSubscriptionRenewal = "subscription_renewal"
	TriggerGoalReminder        = "goal_reminder"
	TriggerJournalReminder     = "journal_reminder"
)

// Notification is one item in a user's inbox.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	Link      string    `json:"link,omitempty"`
	Read      bool      `json:"read"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Trigger is a per-user notification rule. The engine evaluates an enabled
// trigger at most once per user-local day, during the configured hour.
type Trigger struct {
	ID           string                 `json:"id"`
	UserID       string                 `json:"user_id"`
	Kind         string                 `json:"kind"`
	Params       map[string]interface{} `json:"params,omitempty"`
	Hour         int                    `json:"hour"`
	Enabled      bool                   `json:"enabled"`
	LastFiredDay string                 `json:"last_fired_day,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// KnownTriggerKind reports whether k is a trigger kind the engine evaluates.
func KnownTriggerKind(k string) bool {
	switch k {
	case TriggerTaskDue, TriggerHabitReminder, TriggerSubscriptionRenewal,
		TriggerGoalReminder, TriggerJournalReminder:
		return true
	}
	return false
}
