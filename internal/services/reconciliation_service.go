package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stripe/stripe-go/v79"

	"github.com/stayloop/backend/internal/audit"
	"github.com/stayloop/backend/internal/models"
)

// LedgerReconciler is the slice of LedgerService reconciliation needs.
type LedgerReconciler interface {
	FindByRefTx(tx *sql.Tx, kind RefKind, ref string) (*models.Transaction, error)
	MarkStatusTx(tx *sql.Tx, kind RefKind, ref string, status models.TransactionStatus) (bool, error)
}

// TicketSettler transitions tickets by their stored processor reference.
type TicketSettler interface {
	SettleByIntentTx(tx *sql.Tx, intentRef string, status models.TicketStatus, amount int64) (bool, error)
}

// AccountReconciler applies processor-side account and balance state onto
// local users.
type AccountReconciler interface {
	IncreaseBalanceTx(tx *sql.Tx, userID, amount int64) error
	UpdateStripeAccountStatus(ctx context.Context, accountID string, status models.StripeAccountStatus) (bool, error)
	RemoveStripeAccount(ctx context.Context, accountID string) (bool, error)
}

// ReconciliationService turns at-least-once, unordered processor webhook
// deliveries into exactly-once ledger and ticket state changes. The
// authoritative dedup key is the conditional PENDING->SUCCESS transition
// on the stored processor reference; the Redis event-id cache is only a
// fast path and is written after successful processing.
type ReconciliationService struct {
	db      *sql.DB
	ledger  LedgerReconciler
	tickets TicketSettler
	users   AccountReconciler
	gateway PaymentGateway
	redis   *redis.Client
	audit   *audit.Logger
}

func NewReconciliationService(db *sql.DB, ledger LedgerReconciler, tickets TicketSettler, users AccountReconciler, gateway PaymentGateway, redisClient *redis.Client) *ReconciliationService {
	return &ReconciliationService{
		db:      db,
		ledger:  ledger,
		tickets: tickets,
		users:   users,
		gateway: gateway,
		redis:   redisClient,
		audit:   audit.NewLogger(),
	}
}

// VerifyEvent checks the signature over the raw body and parses the event.
func (s *ReconciliationService) VerifyEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	return s.gateway.ConstructEvent(payload, sigHeader)
}

// HandleEvent dispatches a verified event. Unrecognized types are logged
// and ignored; a returned error means processing failed and the processor
// should redeliver.
func (s *ReconciliationService) HandleEvent(ctx context.Context, event stripe.Event) error {
	if s.alreadyProcessed(ctx, event.ID) {
		log.Printf("[WEBHOOK] Event %s already processed, skipping", event.ID)
		return nil
	}

	var err error
	switch string(event.Type) {
	case "payment_intent.succeeded":
		err = s.handlePaymentConfirmed(ctx, event)
	case "payment_intent.payment_failed":
		err = s.handlePaymentFailed(ctx, event)
	case "checkout.session.completed":
		err = s.handleDepositCompleted(ctx, event)
	case "account.updated":
		err = s.handleAccountUpdated(ctx, event)
	case "account.application.deauthorized":
		err = s.handleAccountDeauthorized(ctx, event)
	case "capability.updated":
		err = s.handleCapabilityUpdated(ctx, event)
	default:
		log.Printf("[WEBHOOK] Ignoring unhandled event type: %s", event.Type)
		return nil
	}

	if err == nil {
		s.markProcessed(ctx, event.ID)
	}
	return err
}

func objectID(event stripe.Event) (string, error) {
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(event.Data.Raw, &obj); err != nil {
		return "", fmt.Errorf("decoding event object: %w", err)
	}
	if obj.ID == "" {
		return "", fmt.Errorf("event %s carries no object id", event.ID)
	}
	return obj.ID, nil
}

// handlePaymentConfirmed flips the matching PENDING transaction to
// SUCCESS and the ticket carrying the same intent reference to PAID, in
// one database transaction. A redelivered event finds no PENDING row and
// does nothing; an unknown reference is ErrNotFound, never a fabricated
// transaction.
func (s *ReconciliationService) handlePaymentConfirmed(ctx context.Context, event stripe.Event) error {
	intentID, err := objectID(event)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	flipped, err := s.ledger.MarkStatusTx(tx, RefPaymentIntent, intentID, models.StatusSuccess)
	if err != nil {
		return err
	}
	entry, err := s.ledger.FindByRefTx(tx, RefPaymentIntent, intentID)
	if err != nil {
		return err
	}
	if !flipped {
		log.Printf("[WEBHOOK] Intent %s already %s, no-op", intentID, entry.Status)
		return nil
	}

	settled, err := s.tickets.SettleByIntentTx(tx, intentID, models.TicketPaid, entry.Amount)
	if err != nil {
		return err
	}
	if !settled {
		log.Printf("[WEBHOOK] No pending ticket for intent %s", intentID)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.audit.LogOperation(entry.ID, entry.UserID, "PAYMENT_CONFIRMED", intentID)
	return nil
}

func (s *ReconciliationService) handlePaymentFailed(ctx context.Context, event stripe.Event) error {
	intentID, err := objectID(event)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	flipped, err := s.ledger.MarkStatusTx(tx, RefPaymentIntent, intentID, models.StatusFailed)
	if err != nil {
		return err
	}
	entry, err := s.ledger.FindByRefTx(tx, RefPaymentIntent, intentID)
	if err != nil {
		return err
	}
	if !flipped {
		return nil
	}

	if _, err := s.tickets.SettleByIntentTx(tx, intentID, models.TicketUnpaid, entry.Amount); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.audit.LogOperation(entry.ID, entry.UserID, "PAYMENT_FAILED", intentID)
	return nil
}

// handleDepositCompleted credits the wallet together with the status flip
// in one transaction; the conditional flip guarantees the credit cannot
// repeat on redelivery.
func (s *ReconciliationService) handleDepositCompleted(ctx context.Context, event stripe.Event) error {
	sessionID, err := objectID(event)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	flipped, err := s.ledger.MarkStatusTx(tx, RefSession, sessionID, models.StatusSuccess)
	if err != nil {
		return err
	}
	entry, err := s.ledger.FindByRefTx(tx, RefSession, sessionID)
	if err != nil {
		return err
	}
	if !flipped {
		log.Printf("[WEBHOOK] Session %s already %s, no-op", sessionID, entry.Status)
		return nil
	}

	if err := s.users.IncreaseBalanceTx(tx, entry.UserID, entry.Amount); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.audit.LogDeposit(entry.ID, entry.UserID, entry.Amount, "SUCCESS")
	return nil
}

func (s *ReconciliationService) handleAccountUpdated(ctx context.Context, event stripe.Event) error {
	var account struct {
		ID               string `json:"id"`
		ChargesEnabled   bool   `json:"charges_enabled"`
		PayoutsEnabled   bool   `json:"payouts_enabled"`
		DetailsSubmitted bool   `json:"details_submitted"`
	}
	if err := json.Unmarshal(event.Data.Raw, &account); err != nil {
		return fmt.Errorf("decoding account event: %w", err)
	}
	return s.applyAccountStatus(ctx, account.ID, account.ChargesEnabled, account.PayoutsEnabled, account.DetailsSubmitted)
}

func (s *ReconciliationService) handleAccountDeauthorized(ctx context.Context, event stripe.Event) error {
	accountID := event.Account
	if accountID == "" {
		log.Printf("[WEBHOOK] Deauthorization event %s without account id", event.ID)
		return nil
	}
	if _, err := s.users.RemoveStripeAccount(ctx, accountID); err != nil {
		return err
	}
	return nil
}

// handleCapabilityUpdated re-reads the full account from the processor:
// capability payloads only carry a delta, and the stored status must
// reflect the whole account.
func (s *ReconciliationService) handleCapabilityUpdated(ctx context.Context, event stripe.Event) error {
	accountID := event.Account
	if accountID == "" {
		var capability struct {
			Account string `json:"account"`
		}
		if err := json.Unmarshal(event.Data.Raw, &capability); err != nil {
			return fmt.Errorf("decoding capability event: %w", err)
		}
		accountID = capability.Account
	}
	if accountID == "" {
		log.Printf("[WEBHOOK] Capability event %s without account id", event.ID)
		return nil
	}

	account, err := s.gateway.GetConnectedAccount(accountID)
	if err != nil {
		return err
	}
	return s.applyAccountStatus(ctx, account.ID, account.ChargesEnabled, account.PayoutsEnabled, account.DetailsSubmitted)
}

func (s *ReconciliationService) applyAccountStatus(ctx context.Context, accountID string, chargesEnabled, payoutsEnabled, detailsSubmitted bool) error {
	status := models.StripeAccountPending
	switch {
	case chargesEnabled && payoutsEnabled:
		status = models.StripeAccountVerified
	case detailsSubmitted:
		status = models.StripeAccountRejected
	}
	updated, err := s.users.UpdateStripeAccountStatus(ctx, accountID, status)
	if err != nil {
		return err
	}
	if !updated {
		// Stale or foreign account metadata is logged, not fatal.
		log.Printf("[WEBHOOK] No user linked to account %s", accountID)
	}
	return nil
}

func (s *ReconciliationService) alreadyProcessed(ctx context.Context, eventID string) bool {
	if s.redis == nil || eventID == "" {
		return false
	}
	n, err := s.redis.Exists(ctx, "stripe:event:"+eventID).Result()
	return err == nil && n > 0
}

func (s *ReconciliationService) markProcessed(ctx context.Context, eventID string) {
	if s.redis == nil || eventID == "" {
		return
	}
	if err := s.redis.Set(ctx, "stripe:event:"+eventID, 1, 24*time.Hour).Err(); err != nil {
		log.Printf("[WEBHOOK] Failed to cache event %s: %v", eventID, err)
	}
}
