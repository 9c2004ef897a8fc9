package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stayloop/backend/internal/models"
)

// RefKind selects which processor reference column a lookup or status
// transition matches on. Reconciliation always matches on the stored
// reference string, never on a parsed numeric id.
type RefKind string

const (
	RefPaymentIntent RefKind = "stripe_payment_intent_id"
	RefSession       RefKind = "stripe_session_id"
)

const transactionColumns = `id, user_id, ticket_id, amount, currency, type, status,
	       COALESCE(stripe_payment_intent_id, '') AS stripe_payment_intent_id,
	       COALESCE(stripe_session_id, '') AS stripe_session_id,
	       created_at, updated_at`

// LedgerService is the single source of truth for money movement history.
// Rows are append-only; only status moves, and only PENDING -> terminal.
type LedgerService struct {
	db *sql.DB
}

func NewLedgerService(db *sql.DB) *LedgerService {
	return &LedgerService{db: db}
}

// Append inserts a new ledger entry. A missing id gets a fresh UUID and a
// missing status defaults to PENDING.
func (s *LedgerService) Append(ctx context.Context, t *models.Transaction) error {
	return s.append(ctx, s.db, t)
}

// AppendTx is Append inside a caller-owned database transaction.
func (s *LedgerService) AppendTx(tx *sql.Tx, t *models.Transaction) error {
	return s.append(context.Background(), tx, t)
}

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *LedgerService) append(ctx context.Context, q execQuerier, t *models.Transaction) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = models.StatusPending
	}
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt

	_, err := q.ExecContext(ctx, `
        INSERT INTO transactions
        (id, user_id, ticket_id, amount, currency, type, status, stripe_payment_intent_id, stripe_session_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10, $11)
    `, t.ID, t.UserID, t.TicketID, t.Amount, t.Currency, t.Type, t.Status,
		t.StripePaymentIntentID, t.StripeSessionID, t.CreatedAt, t.UpdatedAt)
	return err
}

// FindByIntentRef returns the ledger entry carrying the given payment
// intent reference. Absence is ErrNotFound, never silently ignored.
func (s *LedgerService) FindByIntentRef(ctx context.Context, ref string) (*models.Transaction, error) {
	return s.findByRef(ctx, s.db, RefPaymentIntent, ref)
}

// FindBySessionRef returns the ledger entry carrying the given checkout
// session reference.
func (s *LedgerService) FindBySessionRef(ctx context.Context, ref string) (*models.Transaction, error) {
	return s.findByRef(ctx, s.db, RefSession, ref)
}

// FindByRefTx looks a reference up inside a caller-owned transaction.
func (s *LedgerService) FindByRefTx(tx *sql.Tx, kind RefKind, ref string) (*models.Transaction, error) {
	return s.findByRef(context.Background(), tx, kind, ref)
}

func (s *LedgerService) findByRef(ctx context.Context, q execQuerier, kind RefKind, ref string) (*models.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE %s = $1`, transactionColumns, kind)
	t, err := scanTransaction(q.QueryRowContext(ctx, query, ref))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return t, err
}

// MarkStatus transitions the entry matching ref from PENDING to status.
// It reports whether a row actually flipped: re-applying SUCCESS to an
// already-SUCCESS entry is a no-op, not an error. That conditional
// transition is the dedup key for at-least-once webhook delivery.
func (s *LedgerService) MarkStatus(ctx context.Context, kind RefKind, ref string, status models.TransactionStatus) (bool, error) {
	return s.markStatus(ctx, s.db, kind, ref, status)
}

// MarkStatusTx is MarkStatus inside a caller-owned transaction.
func (s *LedgerService) MarkStatusTx(tx *sql.Tx, kind RefKind, ref string, status models.TransactionStatus) (bool, error) {
	return s.markStatus(context.Background(), tx, kind, ref, status)
}

func (s *LedgerService) markStatus(ctx context.Context, q execQuerier, kind RefKind, ref string, status models.TransactionStatus) (bool, error) {
	query := fmt.Sprintf(`
        UPDATE transactions
        SET status = $1, updated_at = NOW()
        WHERE %s = $2 AND status = 'PENDING'
    `, kind)
	result, err := q.ExecContext(ctx, query, status, ref)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// ListForUser returns the user's ledger entries, newest first.
func (s *LedgerService) ListForUser(ctx context.Context, userID int64, page, limit int) ([]models.Transaction, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	query := fmt.Sprintf(`
        SELECT %s FROM transactions
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3
    `, transactionColumns)

	rows, err := s.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *t)
	}
	return transactions, rows.Err()
}

// SumByTypeAndStatus aggregates amounts for reporting, e.g. lifetime
// confirmed deposits for a user.
func (s *LedgerService) SumByTypeAndStatus(ctx context.Context, userID int64, txType models.TransactionType, status models.TransactionStatus) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `
        SELECT COALESCE(SUM(amount), 0) FROM transactions
        WHERE user_id = $1 AND type = $2 AND status = $3
    `, userID, txType, status).Scan(&total)
	return total, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	t := &models.Transaction{}
	var ticketID sql.NullInt64
	err := row.Scan(
		&t.ID, &t.UserID, &ticketID, &t.Amount, &t.Currency, &t.Type, &t.Status,
		&t.StripePaymentIntentID, &t.StripeSessionID, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if ticketID.Valid {
		t.TicketID = &ticketID.Int64
	}
	return t, nil
}
