package models

import "time"

// StripeAccountStatus tracks the verification state of a partner's
// connected account at the payment processor.
type StripeAccountStatus string

const (
	StripeAccountNone     StripeAccountStatus = "NONE"
	StripeAccountPending  StripeAccountStatus = "PENDING"
	StripeAccountVerified StripeAccountStatus = "VERIFIED"
	StripeAccountRejected StripeAccountStatus = "REJECTED"
)

// User represents a guest or hotel partner account.
type User struct {
	ID                  int64               `json:"id" example:"1"`                   // User ID
	Email               string              `json:"email" example:"user@example.com"` // User email
	FullName            string              `json:"fullName" example:"Jane Doe"`      // User full name
	Role                string              `json:"role" example:"guest"`             // guest or partner
	Balance             int64               `json:"balance" example:"100000"`         // Wallet balance in minor units
	StripeCustomerID    string              `json:"-"`
	StripeAccountID     string              `json:"-"`
	StripeAccountStatus StripeAccountStatus `json:"stripeAccountStatus,omitempty"`
	CreatedAt           time.Time           `json:"createdAt"`
	UpdatedAt           time.Time           `json:"updatedAt"`
}
