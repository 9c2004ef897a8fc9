package models

import "time"

// TicketStatus is the payment lifecycle of a booking.
type TicketStatus string

const (
	TicketPending TicketStatus = "PENDING"
	TicketPaid    TicketStatus = "PAID"
	TicketUnpaid  TicketStatus = "UNPAID"
)

// PaymentMethod records how a ticket was (or will be) settled.
type PaymentMethod string

const (
	MethodCash   PaymentMethod = "CASH"
	MethodBank   PaymentMethod = "BANK"
	MethodWallet PaymentMethod = "WALLET"
)

// Ticket is a room reservation. It is created PENDING with no amount
// fixed; Amount and PaymentMethod are written at settlement time.
// OwedAmount is computed from the booked room's nightly price and the
// stay length, and is what settlement charges.
type Ticket struct {
	ID                    int64         `json:"id" db:"id"`
	UserID                int64         `json:"user_id" db:"user_id"`
	RoomID                int64         `json:"room_id" db:"room_id"`
	Amount                int64         `json:"amount" db:"amount"`
	OwedAmount            int64         `json:"owed_amount" db:"-"`
	PaymentMethod         PaymentMethod `json:"payment_method,omitempty" db:"payment_method"`
	Status                TicketStatus  `json:"status" db:"status"`
	StripePaymentIntentID string        `json:"stripe_payment_intent_id,omitempty" db:"stripe_payment_intent_id"`
	CheckIn               time.Time     `json:"check_in" db:"check_in"`
	CheckOut              time.Time     `json:"check_out" db:"check_out"`
	CreatedAt             time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at" db:"updated_at"`
}

// CreateTicketInput is the booking creation payload.
type CreateTicketInput struct {
	RoomID   int64     `json:"roomId" validate:"required,gt=0"`
	CheckIn  time.Time `json:"checkIn" validate:"required"`
	CheckOut time.Time `json:"checkOut" validate:"required,gtfield=CheckIn"`
}
