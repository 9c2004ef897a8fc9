package services

import (
	"context"
	"database/sql"

	"github.com/stayloop/backend/internal/models"
)

// TicketService owns booking rows and the room -> hotel -> partner chain
// that resolves the payee for a settlement.
type TicketService struct {
	db *sql.DB
}

func NewTicketService(db *sql.DB) *TicketService {
	return &TicketService{db: db}
}

// CreateTicket opens a PENDING booking. No amount is fixed here; the owed
// amount is derived from the room price at settlement time.
func (s *TicketService) CreateTicket(ctx context.Context, userID int64, input *models.CreateTicketInput) (*models.Ticket, error) {
	t := &models.Ticket{
		UserID:   userID,
		RoomID:   input.RoomID,
		Status:   models.TicketPending,
		CheckIn:  input.CheckIn,
		CheckOut: input.CheckOut,
	}
	err := s.db.QueryRowContext(ctx, `
        INSERT INTO tickets (user_id, room_id, status, check_in, check_out, created_at, updated_at)
        SELECT $1, r.id, $2, $3, $4, NOW(), NOW()
        FROM rooms r WHERE r.id = $5
        RETURNING id, created_at, updated_at
    `, userID, t.Status, t.CheckIn, t.CheckOut, input.RoomID).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetTicket fetches a booking with its computed owed amount
// (nightly price times stay length, minimum one night).
func (s *TicketService) GetTicket(ctx context.Context, id int64) (*models.Ticket, error) {
	t := &models.Ticket{}
	var amount sql.NullInt64
	var method sql.NullString
	var intentRef sql.NullString
	err := s.db.QueryRowContext(ctx, `
        SELECT t.id, t.user_id, t.room_id, t.amount, t.payment_method, t.status,
               t.stripe_payment_intent_id,
               GREATEST(1, EXTRACT(DAY FROM (t.check_out - t.check_in))::bigint) * r.price_per_night AS owed_amount,
               t.check_in, t.check_out, t.created_at, t.updated_at
        FROM tickets t
        INNER JOIN rooms r ON t.room_id = r.id
        WHERE t.id = $1
    `, id).Scan(
		&t.ID, &t.UserID, &t.RoomID, &amount, &method, &t.Status,
		&intentRef, &t.OwedAmount, &t.CheckIn, &t.CheckOut, &t.CreatedAt, &t.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if amount.Valid {
		t.Amount = amount.Int64
	}
	if method.Valid {
		t.PaymentMethod = models.PaymentMethod(method.String)
	}
	if intentRef.Valid {
		t.StripePaymentIntentID = intentRef.String
	}
	return t, nil
}

// ResolvePayee walks room -> hotel -> partner and returns the partner who
// gets paid for the booking.
func (s *TicketService) ResolvePayee(ctx context.Context, ticketID int64) (int64, error) {
	var partnerID int64
	err := s.db.QueryRowContext(ctx, `
        SELECT h.partner_id
        FROM tickets t
        INNER JOIN rooms r ON t.room_id = r.id
        INNER JOIN hotels h ON r.hotel_id = h.id
        WHERE t.id = $1
    `, ticketID).Scan(&partnerID)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return partnerID, err
}

// MarkPaidTx transitions a ticket PENDING -> PAID, writing the settled
// amount and method in the same statement. Zero rows means the ticket was
// already paid (or never existed) and the settlement must abort: the
// conditional transition is what makes a ticket payable at most once.
func (s *TicketService) MarkPaidTx(tx *sql.Tx, ticketID, amount int64, method models.PaymentMethod) error {
	result, err := tx.Exec(`
        UPDATE tickets
        SET status = $1, amount = $2, payment_method = $3, updated_at = NOW()
        WHERE id = $4 AND status = $5
    `, models.TicketPaid, amount, method, ticketID, models.TicketPending)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrTicketAlreadyPaid
	}
	return nil
}

// AttachPaymentIntent records the processor intent reference and the
// chosen method on a still-PENDING ticket. The ticket is not marked PAID
// here; that only happens on webhook confirmation.
func (s *TicketService) AttachPaymentIntent(ctx context.Context, ticketID int64, intentRef string, method models.PaymentMethod) error {
	result, err := s.db.ExecContext(ctx, `
        UPDATE tickets
        SET stripe_payment_intent_id = $1, payment_method = $2, updated_at = NOW()
        WHERE id = $3 AND status = $4
    `, intentRef, method, ticketID, models.TicketPending)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrTicketAlreadyPaid
	}
	return nil
}

// SettleByIntentTx moves the ticket carrying the given intent reference
// to the target status, writing the confirmed amount. Conditional on
// PENDING so webhook redelivery is a no-op.
func (s *TicketService) SettleByIntentTx(tx *sql.Tx, intentRef string, status models.TicketStatus, amount int64) (bool, error) {
	result, err := tx.Exec(`
        UPDATE tickets
        SET status = $1, amount = $2, updated_at = NOW()
        WHERE stripe_payment_intent_id = $3 AND status = $4
    `, status, amount, intentRef, models.TicketPending)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}
