package models

import "time"

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TransactionDeposit  TransactionType = "DEPOSIT"
	TransactionWithdraw TransactionType = "WITHDRAW"
	TransactionRefund   TransactionType = "REFUND"
	TransactionPayment  TransactionType = "PAYMENT"
)

// TransactionStatus is the settlement state of a ledger entry.
type TransactionStatus string

const (
	StatusPending TransactionStatus = "PENDING"
	StatusSuccess TransactionStatus = "SUCCESS"
	StatusFailed  TransactionStatus = "FAILED"
)

// Transaction is a single ledger entry. Rows are append-only except for
// status, which moves PENDING -> SUCCESS/FAILED exactly once.
// At most one of the Stripe reference fields is populated: the intent id
// for gateway-backed payments, the session id for checkout deposits,
// neither for internal wallet transfers.
type Transaction struct {
	ID                    string            `json:"id" db:"id"`
	UserID                int64             `json:"user_id" db:"user_id"`
	TicketID              *int64            `json:"ticket_id,omitempty" db:"ticket_id"`
	Amount                int64             `json:"amount" db:"amount"` // minor units
	Currency              string            `json:"currency" db:"currency"`
	Type                  TransactionType   `json:"type" db:"type"`
	Status                TransactionStatus `json:"status" db:"status"`
	StripePaymentIntentID string            `json:"stripe_payment_intent_id,omitempty" db:"stripe_payment_intent_id"`
	StripeSessionID       string            `json:"stripe_session_id,omitempty" db:"stripe_session_id"`
	CreatedAt             time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at" db:"updated_at"`
}
