package user

import "time"

// Plans a user can hold. Entitlements derive from these.
const (
	PlanFree = "free"
	PlanPro  = "pro"
)

// Roles controlling access to the admin surface.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// BaseCurrency is the storage currency all monetary amounts normalise to.
const BaseCurrency = "NGN"

// User is an account holder. PasswordHash never serialises.
type User struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	PasswordHash    string    `json:"-"`
	DisplayName     string    `json:"display_name"`
	Timezone        string    `json:"timezone"`
	Plan            string    `json:"plan"`
	Role            string    `json:"role"`
	BaseCurrency    string    `json:"base_currency"`
	DisplayCurrency string    `json:"display_currency"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Session is a live login. TokenHash is the SHA-256 of the issued token; the
// plaintext token is never stored.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TokenHash string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// APIKey authenticates non-browser clients. KeyHash is the SHA-256 of the
// plaintext key, which is shown exactly once at creation.
type APIKey struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Name       string     `json:"name"`
	KeyHash    string     `json:"-"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// KnownPlan reports whether plan is one of the supported plan names.
func KnownPlan(plan string) bool {
	return plan == PlanFree || plan == PlanPro
}
