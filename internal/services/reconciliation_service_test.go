package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v79"

	"github.com/stayloop/backend/internal/models"
)

func newReconciliationFixture(t *testing.T) (*ReconciliationService, sqlmock.Sqlmock, *MockGateway, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	gateway := new(MockGateway)
	service := NewReconciliationService(db, NewLedgerService(db), NewTicketService(db), NewUserService(db), gateway, nil)
	return service, mock, gateway, func() { db.Close() }
}

func stripeEvent(id, eventType, rawObject string) stripe.Event {
	return stripe.Event{
		ID:   id,
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: json.RawMessage(rawObject)},
	}
}

func TestReconciliationService_PaymentConfirmed(t *testing.T) {
	t.Run("flips entry and ticket in one transaction", func(t *testing.T) {
		service, mock, _, closeDB := newReconciliationFixture(t)
		defer closeDB()

		now := time.Now()
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE transactions").
			WithArgs(models.StatusSuccess, "pi_123").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT (.+) FROM transactions WHERE stripe_payment_intent_id = \\$1").
			WithArgs("pi_123").
			WillReturnRows(transactionRows().
				AddRow("tx1", 1, 10, 50000, "usd", "PAYMENT", "PENDING", "pi_123", "", now, now))
		mock.ExpectExec("UPDATE tickets").
			WithArgs(models.TicketPaid, int64(50000), "pi_123", models.TicketPending).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := service.HandleEvent(context.Background(),
			stripeEvent("evt_1", "payment_intent.succeeded", `{"id":"pi_123"}`))
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("redelivered event is a no-op", func(t *testing.T) {
		service, mock, _, closeDB := newReconciliationFixture(t)
		defer closeDB()

		now := time.Now()
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE transactions").
			WithArgs(models.StatusSuccess, "pi_123").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT (.+) FROM transactions WHERE stripe_payment_intent_id = \\$1").
			WithArgs("pi_123").
			WillReturnRows(transactionRows().
				AddRow("tx1", 1, 10, 50000, "usd", "PAYMENT", "SUCCESS", "pi_123", "", now, now))
		mock.ExpectRollback()

		err := service.HandleEvent(context.Background(),
			stripeEvent("evt_2", "payment_intent.succeeded", `{"id":"pi_123"}`))
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown reference fails so the event gets redelivered", func(t *testing.T) {
		service, mock, _, closeDB := newReconciliationFixture(t)
		defer closeDB()

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE transactions").
			WithArgs(models.StatusSuccess, "pi_unknown").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT (.+) FROM transactions WHERE stripe_payment_intent_id = \\$1").
			WithArgs("pi_unknown").
			WillReturnRows(transactionRows())
		mock.ExpectRollback()

		err := service.HandleEvent(context.Background(),
			stripeEvent("evt_3", "payment_intent.succeeded", `{"id":"pi_unknown"}`))
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestReconciliationService_PaymentFailed(t *testing.T) {
	service, mock, _, closeDB := newReconciliationFixture(t)
	defer closeDB()

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE transactions").
		WithArgs(models.StatusFailed, "pi_123").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM transactions WHERE stripe_payment_intent_id = \\$1").
		WithArgs("pi_123").
		WillReturnRows(transactionRows().
			AddRow("tx1", 1, 10, 50000, "usd", "PAYMENT", "PENDING", "pi_123", "", now, now))
	mock.ExpectExec("UPDATE tickets").
		WithArgs(models.TicketUnpaid, int64(50000), "pi_123", models.TicketPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := service.HandleEvent(context.Background(),
		stripeEvent("evt_4", "payment_intent.payment_failed", `{"id":"pi_123"}`))
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReconciliationService_DepositCompleted(t *testing.T) {
	t.Run("credits wallet together with the flip", func(t *testing.T) {
		service, mock, _, closeDB := newReconciliationFixture(t)
		defer closeDB()

		now := time.Now()
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE transactions").
			WithArgs(models.StatusSuccess, "cs_123").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT (.+) FROM transactions WHERE stripe_session_id = \\$1").
			WithArgs("cs_123").
			WillReturnRows(transactionRows().
				AddRow("tx1", 1, nil, 20000, "usd", "DEPOSIT", "PENDING", "", "cs_123", now, now))
		mock.ExpectExec("UPDATE users SET balance = balance \\+ \\$1").
			WithArgs(int64(20000), int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := service.HandleEvent(context.Background(),
			stripeEvent("evt_5", "checkout.session.completed", `{"id":"cs_123"}`))
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("redelivery does not credit twice", func(t *testing.T) {
		service, mock, _, closeDB := newReconciliationFixture(t)
		defer closeDB()

		now := time.Now()
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE transactions").
			WithArgs(models.StatusSuccess, "cs_123").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT (.+) FROM transactions WHERE stripe_session_id = \\$1").
			WithArgs("cs_123").
			WillReturnRows(transactionRows().
				AddRow("tx1", 1, nil, 20000, "usd", "DEPOSIT", "SUCCESS", "", "cs_123", now, now))
		mock.ExpectRollback()

		err := service.HandleEvent(context.Background(),
			stripeEvent("evt_6", "checkout.session.completed", `{"id":"cs_123"}`))
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReconciliationService_AccountEvents(t *testing.T) {
	t.Run("fully enabled account becomes verified", func(t *testing.T) {
		service, mock, _, closeDB := newReconciliationFixture(t)
		defer closeDB()

		mock.ExpectExec("UPDATE users SET stripe_account_status = \\$1").
			WithArgs(models.StripeAccountVerified, "acct_1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := service.HandleEvent(context.Background(),
			stripeEvent("evt_7", "account.updated",
				`{"id":"acct_1","charges_enabled":true,"payouts_enabled":true,"details_submitted":true}`))
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("submitted but disabled account becomes rejected", func(t *testing.T) {
		service, mock, _, closeDB := newReconciliationFixture(t)
		defer closeDB()

		mock.ExpectExec("UPDATE users SET stripe_account_status = \\$1").
			WithArgs(models.StripeAccountRejected, "acct_1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := service.HandleEvent(context.Background(),
			stripeEvent("evt_8", "account.updated",
				`{"id":"acct_1","charges_enabled":false,"payouts_enabled":false,"details_submitted":true}`))
		assert.NoError(t, err)
	})

	t.Run("deauthorization unlinks the account", func(t *testing.T) {
		service, mock, _, closeDB := newReconciliationFixture(t)
		defer closeDB()

		mock.ExpectExec("UPDATE users SET stripe_account_id = NULL").
			WithArgs(models.StripeAccountNone, "acct_1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		event := stripeEvent("evt_9", "account.application.deauthorized", `{}`)
		event.Account = "acct_1"
		err := service.HandleEvent(context.Background(), event)
		assert.NoError(t, err)
	})

	t.Run("capability delta re-reads the full account", func(t *testing.T) {
		service, mock, gateway, closeDB := newReconciliationFixture(t)
		defer closeDB()

		gateway.On("GetConnectedAccount", "acct_1").
			Return(&ConnectedAccount{ID: "acct_1", ChargesEnabled: true, PayoutsEnabled: true}, nil)
		mock.ExpectExec("UPDATE users SET stripe_account_status = \\$1").
			WithArgs(models.StripeAccountVerified, "acct_1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		event := stripeEvent("evt_10", "capability.updated", `{"account":"acct_1"}`)
		err := service.HandleEvent(context.Background(), event)
		assert.NoError(t, err)
		gateway.AssertExpectations(t)
	})
}

func TestReconciliationService_EventDedup(t *testing.T) {
	t.Run("cached event id skips processing", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		redisClient, redisMock := redismock.NewClientMock()
		gateway := new(MockGateway)
		service := NewReconciliationService(db, NewLedgerService(db), NewTicketService(db), NewUserService(db), gateway, redisClient)

		redisMock.ExpectExists("stripe:event:evt_11").SetVal(1)

		err = service.HandleEvent(context.Background(),
			stripeEvent("evt_11", "payment_intent.succeeded", `{"id":"pi_123"}`))
		assert.NoError(t, err)
		assert.NoError(t, dbMock.ExpectationsWereMet())
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("event id is cached only after success", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		redisClient, redisMock := redismock.NewClientMock()
		gateway := new(MockGateway)
		service := NewReconciliationService(db, NewLedgerService(db), NewTicketService(db), NewUserService(db), gateway, redisClient)

		now := time.Now()
		redisMock.ExpectExists("stripe:event:evt_12").SetVal(0)
		dbMock.ExpectBegin()
		dbMock.ExpectExec("UPDATE transactions").
			WillReturnResult(sqlmock.NewResult(0, 1))
		dbMock.ExpectQuery("SELECT (.+) FROM transactions WHERE stripe_payment_intent_id = \\$1").
			WillReturnRows(transactionRows().
				AddRow("tx1", 1, 10, 50000, "usd", "PAYMENT", "PENDING", "pi_123", "", now, now))
		dbMock.ExpectExec("UPDATE tickets").
			WillReturnResult(sqlmock.NewResult(0, 1))
		dbMock.ExpectCommit()
		redisMock.ExpectSet("stripe:event:evt_12", 1, 24*time.Hour).SetVal("OK")

		err = service.HandleEvent(context.Background(),
			stripeEvent("evt_12", "payment_intent.succeeded", `{"id":"pi_123"}`))
		assert.NoError(t, err)
		assert.NoError(t, dbMock.ExpectationsWereMet())
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})
}

func TestReconciliationService_UnhandledEvent(t *testing.T) {
	service, mock, _, closeDB := newReconciliationFixture(t)
	defer closeDB()

	err := service.HandleEvent(context.Background(),
		stripeEvent("evt_13", "customer.created", `{"id":"cus_1"}`))
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
