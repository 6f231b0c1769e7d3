package ticket

import "time"

const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
)

// Ticket is a support request raised by a user. Reply holds the latest admin
// response.
type Ticket struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Subject   string     `json:"subject"`
	Body      string     `json:"body"`
	Status    string     `json:"status"`
	Reply     string     `json:"reply,omitempty"`
	RepliedBy string     `json:"replied_by,omitempty"`
	RepliedAt *time.Time `json:"replied_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// KnownStatus reports whether s is a supported ticket status.
func KnownStatus(s string) bool {
	return s == StatusOpen || s == StatusInProgress || s == StatusResolved
}
