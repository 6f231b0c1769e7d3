package currency

import "time"

// Base is the code every stored rate converts into.
const Base = "NGN"

// Rate converts one unit of Code into NGN. The NGN rate is implicitly 1 and
// never stored.
type Rate struct {
	Code      string    `json:"code"`
	RateToNGN float64   `json:"rate_to_ngn"`
	Source    string    `json:"source,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}
