package finance

import "time"

// Bank account kinds.
const (
	AccountChecking = "checking"
	AccountSavings  = "savings"
	AccountCash     = "cash"
	AccountCard     = "card"
)

// Transaction kinds.
const (
	KindIncome   = "income"
	KindExpense  = "expense"
	KindTransfer = "transfer"
)

// Subscription cadences.
const (
	CadenceWeekly  = "weekly"
	CadenceMonthly = "monthly"
	CadenceYearly  = "yearly"
)

// CategoryUncategorized is assigned when no category is supplied and the
// auto-categorizer is unavailable or not entitled.
const CategoryUncategorized = "uncategorized"

// BankAccount is one ledger a user tracks money in. At most one account per
// user carries Primary.
type BankAccount struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Institution string    `json:"institution,omitempty"`
	Kind        string    `json:"kind"`
	Currency    string    `json:"currency"`
	Balance     float64   `json:"balance"`
	Primary     bool      `json:"primary"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Transaction is a ledger movement. Amount is in the original currency;
// BaseAmount is the same value normalised to NGN at RateUsed.
type Transaction struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	AccountID        string    `json:"account_id"`
	Kind             string    `json:"kind"`
	Amount           float64   `json:"amount"`
	Currency         string    `json:"currency"`
	BaseAmount       float64   `json:"base_amount"`
	RateUsed         float64   `json:"rate_used"`
	Category         string    `json:"category"`
	Description      string    `json:"description,omitempty"`
	CounterAccountID string    `json:"counter_account_id,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// SavingsGoal is a target amount in NGN. Balance is always the sum of the
// goal's signed entries, never incrementally maintained.
type SavingsGoal struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	Name         string     `json:"name"`
	TargetAmount float64    `json:"target_amount"`
	Balance      float64    `json:"balance"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	AccountID    string     `json:"account_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// SavingsEntry is one signed movement against a goal, in NGN. Negative
// amounts are withdrawals.
type SavingsEntry struct {
	ID        string    `json:"id"`
	GoalID    string    `json:"goal_id"`
	UserID    string    `json:"user_id"`
	Amount    float64   `json:"amount"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Subscription is a recurring charge the user wants tracked and reminded
// about.
type Subscription struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Name            string    `json:"name"`
	Amount          float64   `json:"amount"`
	Currency        string    `json:"currency"`
	Cadence         string    `json:"cadence"`
	NextBillingDate time.Time `json:"next_billing_date"`
	AccountID       string    `json:"account_id,omitempty"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Summary aggregates a user's finances in the base currency.
type Summary struct {
	TotalBalance float64            `json:"total_balance"`
	Accounts     []BankAccount      `json:"accounts"`
	MonthIncome  float64            `json:"month_income"`
	MonthExpense float64            `json:"month_expense"`
	SavingsTotal float64            `json:"savings_total"`
	ByCategory   map[string]float64 `json:"by_category"`
}

// KnownAccountKind reports whether k is a supported bank account kind.
func KnownAccountKind(k string) bool {
	switch k {
	case AccountChecking, AccountSavings, AccountCash, AccountCard:
		return true
	}
	return false
}

// KnownTransactionKind reports whether k is a supported transaction kind.
func KnownTransactionKind(k string) bool {
	return k == KindIncome || k == KindExpense || k == KindTransfer
}

// KnownCadence reports whether c is a supported subscription cadence.
func KnownCadence(c string) bool {
	return c == CadenceWeekly || c == CadenceMonthly || c == CadenceYearly
}
