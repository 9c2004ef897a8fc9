package services

import (
	"fmt"
	"net/http"

	"github.com/spf13/viper"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
)

// PaymentIntent is the adapter-level view of a processor payment intent.
type PaymentIntent struct {
	ID           string
	ClientSecret string
}

// CheckoutSession is the adapter-level view of a processor checkout session.
type CheckoutSession struct {
	ID  string
	URL string
}

// ConnectedAccount carries the verification flags reconciliation maps onto
// a partner's stored account status.
type ConnectedAccount struct {
	ID               string
	ChargesEnabled   bool
	PayoutsEnabled   bool
	DetailsSubmitted bool
}

// Transfer is the adapter-level view of a processor transfer.
type Transfer struct {
	ID     string
	Amount int64
}

// PaymentGateway wraps the external payment processor. Implementations
// never retry payment-creating calls on their own; idempotency is the
// caller's responsibility (check for an existing identity or reference
// before creating a new one). All failures surface as *GatewayError.
type PaymentGateway interface {
	CreateCustomer(email, name string) (string, error)
	CreatePaymentIntent(amount int64, currency, customerID, destinationAccount, transferGroup string) (*PaymentIntent, error)
	CreateCheckoutSession(amount int64, currency, customerID string) (*CheckoutSession, error)
	CreateConnectedAccount(email string) (string, error)
	GetConnectedAccount(accountID string) (*ConnectedAccount, error)
	CreateAccountLink(accountID string) (string, error)
	CreateTransfer(amount int64, currency, destinationAccount, transferGroup string) (*Transfer, error)
	ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error)
}

// StripeGateway implements PaymentGateway over the Stripe SDK. Every call
// is a bounded network round trip; callers must never hold a database
// transaction open across one.
type StripeGateway struct {
	api            *client.API
	webhookSecret  string
	platformFeeBps int64
	successURL     string
	cancelURL      string
	refreshURL     string
	returnURL      string
}

func NewStripeGateway() *StripeGateway {
	viper.SetDefault("stripe.timeout", "15s")
	viper.SetDefault("stripe.platform_fee_bps", 0)
	viper.SetDefault("stripe.success_url", "http://localhost:3000/wallet?deposit=success")
	viper.SetDefault("stripe.cancel_url", "http://localhost:3000/wallet?deposit=cancelled")
	viper.SetDefault("stripe.connect_refresh_url", "http://localhost:3000/partner/onboarding/refresh")
	viper.SetDefault("stripe.connect_return_url", "http://localhost:3000/partner/onboarding/done")

	httpClient := &http.Client{Timeout: viper.GetDuration("stripe.timeout")}
	api := &client.API{}
	api.Init(viper.GetString("stripe.secret_key"), stripe.NewBackends(httpClient))

	return &StripeGateway{
		api:            api,
		webhookSecret:  viper.GetString("stripe.webhook_secret"),
		platformFeeBps: viper.GetInt64("stripe.platform_fee_bps"),
		successURL:     viper.GetString("stripe.success_url"),
		cancelURL:      viper.GetString("stripe.cancel_url"),
		refreshURL:     viper.GetString("stripe.connect_refresh_url"),
		returnURL:      viper.GetString("stripe.connect_return_url"),
	}
}

func (g *StripeGateway) CreateCustomer(email, name string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	customer, err := g.api.Customers.New(params)
	if err != nil {
		return "", &GatewayError{Op: "create customer", Err: err}
	}
	return customer.ID, nil
}

func (g *StripeGateway) CreatePaymentIntent(amount int64, currency, customerID, destinationAccount, transferGroup string) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
		Customer: stripe.String(customerID),
		TransferData: &stripe.PaymentIntentTransferDataParams{
			Destination: stripe.String(destinationAccount),
		},
		TransferGroup: stripe.String(transferGroup),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	intent, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, &GatewayError{Op: "create payment intent", Err: err}
	}
	return &PaymentIntent{ID: intent.ID, ClientSecret: intent.ClientSecret}, nil
}

func (g *StripeGateway) CreateCheckoutSession(amount int64, currency, customerID string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(currency),
					UnitAmount: stripe.Int64(amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Wallet deposit"),
					},
				},
			},
		},
		SuccessURL: stripe.String(g.successURL),
		CancelURL:  stripe.String(g.cancelURL),
	}
	if customerID != "" {
		params.Customer = stripe.String(customerID)
	}
	session, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, &GatewayError{Op: "create checkout session", Err: err}
	}
	return &CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

func (g *StripeGateway) CreateConnectedAccount(email string) (string, error) {
	params := &stripe.AccountParams{
		Type:  stripe.String(string(stripe.AccountTypeExpress)),
		Email: stripe.String(email),
	}
	account, err := g.api.Accounts.New(params)
	if err != nil {
		return "", &GatewayError{Op: "create connected account", Err: err}
	}
	return account.ID, nil
}

func (g *StripeGateway) GetConnectedAccount(accountID string) (*ConnectedAccount, error) {
	account, err := g.api.Accounts.GetByID(accountID, nil)
	if err != nil {
		return nil, &GatewayError{Op: "retrieve connected account", Err: err}
	}
	return &ConnectedAccount{
		ID:               account.ID,
		ChargesEnabled:   account.ChargesEnabled,
		PayoutsEnabled:   account.PayoutsEnabled,
		DetailsSubmitted: account.DetailsSubmitted,
	}, nil
}

func (g *StripeGateway) CreateAccountLink(accountID string) (string, error) {
	params := &stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(g.refreshURL),
		ReturnURL:  stripe.String(g.returnURL),
		Type:       stripe.String(string(stripe.AccountLinkTypeAccountOnboarding)),
	}
	link, err := g.api.AccountLinks.New(params)
	if err != nil {
		return "", &GatewayError{Op: "create account link", Err: err}
	}
	return link.URL, nil
}

// payoutAfterFee splits a gross amount into the partner payout and the
// platform fee at the given basis points. The fee rounds down, so the
// partner keeps the remainder of the division.
func payoutAfterFee(amount, feeBps int64) (payout, fee int64) {
	fee = amount * feeBps / 10000
	return amount - fee, fee
}

// CreateTransfer pays out amount minus the configured platform fee
// (basis points) to the destination account.
func (g *StripeGateway) CreateTransfer(amount int64, currency, destinationAccount, transferGroup string) (*Transfer, error) {
	payout, fee := payoutAfterFee(amount, g.platformFeeBps)
	if payout <= 0 {
		return nil, &GatewayError{Op: "create transfer", Err: fmt.Errorf("platform fee %d leaves no payout from %d", fee, amount)}
	}
	params := &stripe.TransferParams{
		Amount:        stripe.Int64(payout),
		Currency:      stripe.String(currency),
		Destination:   stripe.String(destinationAccount),
		TransferGroup: stripe.String(transferGroup),
	}
	transfer, err := g.api.Transfers.New(params)
	if err != nil {
		return nil, &GatewayError{Op: "create transfer", Err: err}
	}
	return &Transfer{ID: transfer.ID, Amount: transfer.Amount}, nil
}

// ConstructEvent verifies the webhook signature against the raw body and
// parses the event. The error wraps ErrSignatureInvalid so the handler
// can reject without processing.
func (g *StripeGateway) ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, sigHeader, g.webhookSecret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	return event, nil
}
