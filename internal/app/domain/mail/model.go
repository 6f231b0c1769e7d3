package mail

import "time"

// Delivery states of an outbound email. Provider webhooks move sent messages
// to delivered or bounced.
const (
	StatusQueued    = "queued"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusBounced   = "bounced"
	StatusFailed    = "failed"
)

// Message is one outbound email attempt. ProviderID is the id assigned by
// the email API and is how webhook events find the row again.
type Message struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id,omitempty"`
	To         string    `json:"to"`
	Subject    string    `json:"subject"`
	Template   string    `json:"template"`
	ProviderID string    `json:"provider_id,omitempty"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
