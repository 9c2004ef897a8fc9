package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/stayloop/backend/internal/models"
)

func TestUserService_GetUserByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewUserService(db)

	t.Run("found", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery("SELECT (.+) FROM users WHERE id = \\$1").
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "email", "full_name", "role", "balance",
				"stripe_customer_id", "stripe_account_id", "stripe_account_status",
				"created_at", "updated_at",
			}).AddRow(1, "guest@example.com", "Guest One", "guest", 100000, "cus_1", "", "NONE", now, now))

		user, err := service.GetUserByID(context.Background(), 1)
		assert.NoError(t, err)
		assert.Equal(t, int64(100000), user.Balance)
		assert.Equal(t, "cus_1", user.StripeCustomerID)
	})

	t.Run("missing user", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM users WHERE id = \\$1").
			WithArgs(int64(99)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		user, err := service.GetUserByID(context.Background(), 99)
		assert.Nil(t, user)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestUserService_DecreaseBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewUserService(db)

	t.Run("sufficient balance", func(t *testing.T) {
		mock.ExpectExec("UPDATE users SET balance = balance - \\$1").
			WithArgs(int64(50000), int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := service.DecreaseBalance(context.Background(), 1, 50000)
		assert.NoError(t, err)
	})

	t.Run("insufficient balance", func(t *testing.T) {
		mock.ExpectExec("UPDATE users SET balance = balance - \\$1").
			WithArgs(int64(50000), int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := service.DecreaseBalance(context.Background(), 1, 50000)
		assert.ErrorIs(t, err, ErrInsufficientFunds)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		err := service.DecreaseBalance(context.Background(), 1, 0)
		assert.ErrorIs(t, err, ErrInvalidAmount)

		err = service.DecreaseBalance(context.Background(), 1, -5)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestUserService_IncreaseBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewUserService(db)

	t.Run("credits existing user", func(t *testing.T) {
		mock.ExpectExec("UPDATE users SET balance = balance \\+ \\$1").
			WithArgs(int64(2000), int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := service.IncreaseBalance(context.Background(), 1, 2000)
		assert.NoError(t, err)
	})

	t.Run("missing user", func(t *testing.T) {
		mock.ExpectExec("UPDATE users SET balance = balance \\+ \\$1").
			WithArgs(int64(2000), int64(99)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := service.IncreaseBalance(context.Background(), 99, 2000)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestUserService_LockBalanceTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewUserService(db)

	mock.ExpectBegin()
	tx, err := db.Begin()
	assert.NoError(t, err)

	mock.ExpectQuery("SELECT balance FROM users WHERE id = \\$1 FOR UPDATE").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(100000))

	balance, err := service.LockBalanceTx(tx, 1)
	assert.NoError(t, err)
	assert.Equal(t, int64(100000), balance)
}

func TestUserService_UpdateStripeAccountStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewUserService(db)

	t.Run("linked account", func(t *testing.T) {
		mock.ExpectExec("UPDATE users SET stripe_account_status = \\$1").
			WithArgs(models.StripeAccountVerified, "acct_1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		updated, err := service.UpdateStripeAccountStatus(context.Background(), "acct_1", models.StripeAccountVerified)
		assert.NoError(t, err)
		assert.True(t, updated)
	})

	t.Run("unknown account is not fatal", func(t *testing.T) {
		mock.ExpectExec("UPDATE users SET stripe_account_status = \\$1").
			WithArgs(models.StripeAccountVerified, "acct_unknown").
			WillReturnResult(sqlmock.NewResult(0, 0))

		updated, err := service.UpdateStripeAccountStatus(context.Background(), "acct_unknown", models.StripeAccountVerified)
		assert.NoError(t, err)
		assert.False(t, updated)
	})
}
