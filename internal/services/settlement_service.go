package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
	"github.com/stayloop/backend/internal/audit"
	"github.com/stayloop/backend/internal/models"
)

// SettlementResult reports the outcome of a settlement attempt. Expected
// business failures (insufficient funds, ticket already paid) come back
// here with Success=false rather than as errors.
type SettlementResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// TicketResolver is the slice of TicketService the engine depends on.
type TicketResolver interface {
	GetTicket(ctx context.Context, id int64) (*models.Ticket, error)
	ResolvePayee(ctx context.Context, ticketID int64) (int64, error)
	MarkPaidTx(tx *sql.Tx, ticketID, amount int64, method models.PaymentMethod) error
	AttachPaymentIntent(ctx context.Context, ticketID int64, intentRef string, method models.PaymentMethod) error
}

// BalanceMutator is the slice of UserService that moves money.
type BalanceMutator interface {
	LockBalanceTx(tx *sql.Tx, userID int64) (int64, error)
	IncreaseBalanceTx(tx *sql.Tx, userID, amount int64) error
	DecreaseBalanceTx(tx *sql.Tx, userID, amount int64) error
}

// UserDirectory resolves users and persists their processor identity.
type UserDirectory interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	SetStripeCustomerID(ctx context.Context, userID int64, customerID string) error
}

// LedgerAppender is the slice of LedgerService the engine writes through.
type LedgerAppender interface {
	Append(ctx context.Context, t *models.Transaction) error
	AppendTx(tx *sql.Tx, t *models.Transaction) error
}

// SettlementService decides and executes how a ticket gets paid: either an
// internal wallet-to-wallet transfer applied as one atomic unit, or an
// external processor charge that completes asynchronously via webhook.
type SettlementService struct {
	db         *sql.DB
	tickets    TicketResolver
	balances   BalanceMutator
	users      UserDirectory
	ledger     LedgerAppender
	gateway    PaymentGateway
	redis      *redis.Client
	audit      *audit.Logger
	currency   string
	minDeposit int64
}

func NewSettlementService(db *sql.DB, tickets TicketResolver, balances BalanceMutator, users UserDirectory, ledger LedgerAppender, gateway PaymentGateway, redisClient *redis.Client) *SettlementService {
	viper.SetDefault("payments.currency", "usd")
	viper.SetDefault("payments.min_deposit", 1000)
	return &SettlementService{
		db:         db,
		tickets:    tickets,
		balances:   balances,
		users:      users,
		ledger:     ledger,
		gateway:    gateway,
		redis:      redisClient,
		audit:      audit.NewLogger(),
		currency:   viper.GetString("payments.currency"),
		minDeposit: viper.GetInt64("payments.min_deposit"),
	}
}

// ProcessInternalPayment settles a ticket from the payer's wallet into the
// partner's wallet. The balance check, both balance mutations, the ticket
// transition and the ledger write happen inside one database transaction;
// payer and payee rows are locked in ascending id order first, so two
// concurrent settlements against the same payer cannot both pass the
// sufficiency check, and the conditional PENDING->PAID transition makes a
// ticket payable at most once.
func (s *SettlementService) ProcessInternalPayment(ctx context.Context, ticketID, payerID int64, method models.PaymentMethod) (*SettlementResult, error) {
	ticket, err := s.tickets.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.UserID != payerID {
		return nil, ErrNotTicketOwner
	}
	if ticket.Status != models.TicketPending {
		return nil, ErrTicketAlreadyPaid
	}

	payeeID, err := s.tickets.ResolvePayee(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	amount := ticket.OwedAmount
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Lock both wallets in ascending id order to prevent deadlocks.
	firstLock, secondLock := payerID, payeeID
	if payerID > payeeID {
		firstLock, secondLock = payeeID, payerID
	}
	firstBalance, err := s.balances.LockBalanceTx(tx, firstLock)
	if err != nil {
		return nil, err
	}
	secondBalance, err := s.balances.LockBalanceTx(tx, secondLock)
	if err != nil {
		return nil, err
	}
	payerBalance := firstBalance
	if secondLock == payerID {
		payerBalance = secondBalance
	}

	if payerBalance < amount {
		log.Printf("[SETTLEMENT] Insufficient balance for ticket %d: %d < %d", ticketID, payerBalance, amount)
		return &SettlementResult{Success: false, Message: "insufficient balance"}, nil
	}

	if err := s.tickets.MarkPaidTx(tx, ticketID, amount, method); err != nil {
		return nil, err
	}
	if err := s.balances.DecreaseBalanceTx(tx, payerID, amount); err != nil {
		return nil, err
	}
	if err := s.balances.IncreaseBalanceTx(tx, payeeID, amount); err != nil {
		return nil, err
	}

	entry := &models.Transaction{
		UserID:   payerID,
		TicketID: &ticketID,
		Amount:   amount,
		Currency: s.currency,
		Type:     models.TransactionPayment,
		Status:   models.StatusSuccess,
	}
	if err := s.ledger.AppendTx(tx, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		s.audit.LogError(entry.ID, payerID, err)
		return nil, err
	}

	s.audit.LogSettlement(entry.ID, payerID, payeeID, amount, "SUCCESS")
	s.publishEvent(ctx, "ticket.paid", entry.ID, payerID, amount)
	return &SettlementResult{Success: true}, nil
}

// CreateExternalPaymentIntent charges a ticket through the processor,
// routed to the payee's connected account. The gateway round trip happens
// before any local write: a timed-out or failed processor call leaves no
// PENDING ledger row behind, and the PENDING row is only created once the
// processor has confirmed the intent exists.
func (s *SettlementService) CreateExternalPaymentIntent(ctx context.Context, ticketID, payerID, amount int64, currency string, method models.PaymentMethod, destinationAccount string) (string, error) {
	if amount <= 0 {
		return "", ErrInvalidAmount
	}
	if currency == "" {
		currency = s.currency
	}

	ticket, err := s.tickets.GetTicket(ctx, ticketID)
	if err != nil {
		return "", err
	}
	if ticket.UserID != payerID {
		return "", ErrNotTicketOwner
	}
	if ticket.Status != models.TicketPending {
		return "", ErrTicketAlreadyPaid
	}

	payeeID, err := s.tickets.ResolvePayee(ctx, ticketID)
	if err != nil {
		return "", err
	}
	if destinationAccount == "" {
		payee, err := s.users.GetUserByID(ctx, payeeID)
		if err != nil {
			return "", err
		}
		if payee.StripeAccountID == "" {
			return "", ErrNoDestinationAccount
		}
		destinationAccount = payee.StripeAccountID
	}

	customerID, err := s.ensureCustomer(ctx, payerID)
	if err != nil {
		return "", err
	}

	transferGroup := transferGroupForTicket(ticketID)
	intent, err := s.gateway.CreatePaymentIntent(amount, currency, customerID, destinationAccount, transferGroup)
	if err != nil {
		return "", err
	}

	entry := &models.Transaction{
		UserID:                payerID,
		TicketID:              &ticketID,
		Amount:                amount,
		Currency:              currency,
		Type:                  models.TransactionPayment,
		StripePaymentIntentID: intent.ID,
	}
	if err := s.ledger.Append(ctx, entry); err != nil {
		s.audit.LogError(intent.ID, payerID, err)
		return "", err
	}
	if err := s.tickets.AttachPaymentIntent(ctx, ticketID, intent.ID, method); err != nil {
		s.audit.LogError(intent.ID, payerID, err)
		return "", err
	}

	s.audit.LogOperation(entry.ID, payerID, "PAYMENT_INTENT_CREATED", intent.ID)
	return intent.ClientSecret, nil
}

// CreateDeposit opens a checkout session for a wallet top-up. The balance
// is not touched here; it is credited only when the webhook confirms the
// session completed.
func (s *SettlementService) CreateDeposit(ctx context.Context, userID, amount int64) (string, error) {
	if amount < s.minDeposit {
		return "", ErrDepositBelowMinimum
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}

	session, err := s.gateway.CreateCheckoutSession(amount, s.currency, user.StripeCustomerID)
	if err != nil {
		return "", err
	}

	entry := &models.Transaction{
		UserID:          userID,
		Amount:          amount,
		Currency:        s.currency,
		Type:            models.TransactionDeposit,
		StripeSessionID: session.ID,
	}
	if err := s.ledger.Append(ctx, entry); err != nil {
		s.audit.LogError(session.ID, userID, err)
		return "", err
	}

	s.audit.LogDeposit(entry.ID, userID, amount, "PENDING")
	return session.ID, nil
}

// ensureCustomer returns the user's processor customer id, creating and
// persisting one if absent. The stored id is always preferred, so the
// same user never ends up with two customer identities.
func (s *SettlementService) ensureCustomer(ctx context.Context, userID int64) (string, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.StripeCustomerID != "" {
		return user.StripeCustomerID, nil
	}
	customerID, err := s.gateway.CreateCustomer(user.Email, user.FullName)
	if err != nil {
		return "", err
	}
	if err := s.users.SetStripeCustomerID(ctx, userID, customerID); err != nil {
		return "", err
	}
	return customerID, nil
}

// publishEvent pushes a settlement event onto the notification queue
// after commit. Best effort: a queue failure never unwinds a settlement.
func (s *SettlementService) publishEvent(ctx context.Context, eventType, transactionID string, userID, amount int64) {
	if s.redis == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"type":           eventType,
		"transaction_id": transactionID,
		"user_id":        userID,
		"amount":         amount,
	})
	if err != nil {
		return
	}
	if err := s.redis.RPush(ctx, "payment_events", payload).Err(); err != nil {
		log.Printf("[SETTLEMENT] Failed to queue %s event: %v", eventType, err)
	}
}

func transferGroupForTicket(ticketID int64) string {
	return fmt.Sprintf("ticket-%d", ticketID)
}

// IsExpectedFailure reports whether an error is an expected business
// outcome rather than a fault, for handler status mapping.
func IsExpectedFailure(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrTicketAlreadyPaid) ||
		errors.Is(err, ErrDepositBelowMinimum)
}
