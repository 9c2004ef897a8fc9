package services

import (
	"context"
	"database/sql"
	"log"

	"github.com/stayloop/backend/internal/models"
)

// UserService owns the users table, including the wallet balance
// primitives. Business logic never assigns balances directly; it goes
// through IncreaseBalance/DecreaseBalance, whose SQL applies the
// sufficiency check and the mutation as one statement.
type UserService struct {
	db *sql.DB
}

func NewUserService(db *sql.DB) *UserService {
	return &UserService{db: db}
}

const userColumns = `id, email, full_name, role, balance,
	       COALESCE(stripe_customer_id, '') AS stripe_customer_id,
	       COALESCE(stripe_account_id, '') AS stripe_account_id,
	       stripe_account_status, created_at, updated_at`

func (s *UserService) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	u := &models.User{}
	err := s.db.QueryRowContext(ctx, `
        SELECT `+userColumns+` FROM users WHERE id = $1
    `, id).Scan(
		&u.ID, &u.Email, &u.FullName, &u.Role, &u.Balance,
		&u.StripeCustomerID, &u.StripeAccountID, &u.StripeAccountStatus,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// IncreaseBalance credits the user's wallet.
func (s *UserService) IncreaseBalance(ctx context.Context, userID, amount int64) error {
	return s.increase(ctx, s.db, userID, amount)
}

// IncreaseBalanceTx credits inside a caller-owned database transaction.
func (s *UserService) IncreaseBalanceTx(tx *sql.Tx, userID, amount int64) error {
	return s.increase(context.Background(), tx, userID, amount)
}

func (s *UserService) increase(ctx context.Context, q execQuerier, userID, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	result, err := q.ExecContext(ctx, `
        UPDATE users SET balance = balance + $1, updated_at = NOW() WHERE id = $2
    `, amount, userID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// DecreaseBalance debits the user's wallet. The sufficiency check is part
// of the UPDATE predicate so two concurrent debits cannot both pass
// against a stale balance.
func (s *UserService) DecreaseBalance(ctx context.Context, userID, amount int64) error {
	return s.decrease(ctx, s.db, userID, amount)
}

// DecreaseBalanceTx debits inside a caller-owned database transaction.
func (s *UserService) DecreaseBalanceTx(tx *sql.Tx, userID, amount int64) error {
	return s.decrease(context.Background(), tx, userID, amount)
}

func (s *UserService) decrease(ctx context.Context, q execQuerier, userID, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	result, err := q.ExecContext(ctx, `
        UPDATE users SET balance = balance - $1, updated_at = NOW()
        WHERE id = $2 AND balance >= $1
    `, amount, userID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrInsufficientFunds
	}
	return nil
}

// LockBalanceTx locks the user's row for the duration of the transaction
// and returns the current balance. Callers lock multiple users in
// ascending id order to avoid deadlocks.
func (s *UserService) LockBalanceTx(tx *sql.Tx, userID int64) (int64, error) {
	var balance int64
	err := tx.QueryRow(`
        SELECT balance FROM users WHERE id = $1 FOR UPDATE
    `, userID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return balance, err
}

// SetStripeCustomerID persists a newly created processor customer
// identity. It only fills an empty column, so a concurrent create cannot
// leave a user pointing at two customers.
func (s *UserService) SetStripeCustomerID(ctx context.Context, userID int64, customerID string) error {
	_, err := s.db.ExecContext(ctx, `
        UPDATE users SET stripe_customer_id = $1, updated_at = NOW()
        WHERE id = $2 AND stripe_customer_id IS NULL
    `, customerID, userID)
	return err
}

// UpdateStripeAccountID links a partner to their connected payout account.
func (s *UserService) UpdateStripeAccountID(ctx context.Context, userID int64, accountID string) error {
	result, err := s.db.ExecContext(ctx, `
        UPDATE users SET stripe_account_id = $1, stripe_account_status = $2, updated_at = NOW()
        WHERE id = $3
    `, accountID, models.StripeAccountPending, userID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStripeAccountStatus records the processor-side verification state
// for the user owning the given connected account. A stale or unknown
// account id is logged by the caller, not treated as fatal.
func (s *UserService) UpdateStripeAccountStatus(ctx context.Context, accountID string, status models.StripeAccountStatus) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
        UPDATE users SET stripe_account_status = $1, updated_at = NOW()
        WHERE stripe_account_id = $2
    `, status, accountID)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// RemoveStripeAccount unlinks a deauthorized connected account.
func (s *UserService) RemoveStripeAccount(ctx context.Context, accountID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
        UPDATE users SET stripe_account_id = NULL, stripe_account_status = $1, updated_at = NOW()
        WHERE stripe_account_id = $2
    `, models.StripeAccountNone, accountID)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 0 {
		log.Printf("[USER] Deauthorized account %s has no linked user", accountID)
	}
	return rows == 1, nil
}
