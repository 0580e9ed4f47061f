package subscription

// Status mirrors the billing provider's subscription status.
// StatusPaused is local only: the provider keeps the subscription active while collection is paused.
type Status string

const (
	StatusTrialing Status = "trialing"
	StatusActive   Status = "active"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
	StatusUnpaid   Status = "unpaid"
	StatusPaused   Status = "paused"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusTrialing, StatusActive, StatusPastDue, StatusCanceled, StatusUnpaid, StatusPaused:
		return true
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// Role is a capability an actor holds for an owner.
type Role string

const (
	// RoleOwner gates every lifecycle operation.
	RoleOwner Role = "owner"
)

const (
	// DefaultTrialDays is used when a plan does not define its own trial length.
	DefaultTrialDays = 14

	MinPauseMonths = 1
	MaxPauseMonths = 3
)

// Money represents a monetary amount in the smallest currency unit.
// For example, $10.99 USD would be Amount: 1099, Currency: "USD".
type Money struct {
	Amount   int64  `json:"amount" yaml:"amount"`
	Currency string `json:"currency" yaml:"currency"` // ISO 4217 currency code
}

// BillingInterval represents the billing frequency for a subscription plan.
type BillingInterval string

const (
	BillingIntervalMonthly BillingInterval = "monthly"
	BillingIntervalAnnual  BillingInterval = "annual"
)

// BillingRef points at the provider's customer and subscription objects.
type BillingRef struct {
	CustomerID     string
	SubscriptionID string
}

// IsZero reports whether the reference is unset.
func (r BillingRef) IsZero() bool {
	return r.CustomerID == "" && r.SubscriptionID == ""
}
