package billing

import "time"

// Payment providers with webhook support.
const (
	ProviderPaystack    = "paystack"
	ProviderFlutterwave = "flutterwave"
)

const (
	StatusVerified = "verified"
	StatusRejected = "rejected"
)

// Payment records one verified (or rejected) provider charge. Reference is
// unique per provider; a webhook replay with a known reference is a no-op.
type Payment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Provider  string    `json:"provider"`
	Reference string    `json:"reference"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	Plan      string    `json:"plan"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Info is what a provider verification API reports for a reference.
type Info struct {
	Reference string
	Amount    float64
	Currency  string
	Email     string
	UserID    string
	Plan      string
	Succeeded bool
}
