package services

import (
	"errors"
	"fmt"
)

// Domain error values. Handlers map these to HTTP statuses; expected
// business outcomes (insufficient funds on internal settlement) travel as
// SettlementResult values instead, so callers can tell them apart from
// faults.
var (
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrNotFound             = errors.New("not found")
	ErrTicketAlreadyPaid    = errors.New("ticket already paid")
	ErrNotTicketOwner       = errors.New("payer is not the ticket owner")
	ErrNoDestinationAccount = errors.New("payee has no linked payout account")
	ErrSignatureInvalid     = errors.New("webhook signature invalid")
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrDepositBelowMinimum  = errors.New("deposit below minimum amount")
)

// GatewayError wraps any failure returned by the external payment
// processor. No local state is committed when one is returned; the whole
// operation is safe to retry.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
