package services

import (
	"github.com/stretchr/testify/mock"
	"github.com/stripe/stripe-go/v79"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateCustomer(email, name string) (string, error) {
	args := m.Called(email, name)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) CreatePaymentIntent(amount int64, currency, customerID, destinationAccount, transferGroup string) (*PaymentIntent, error) {
	args := m.Called(amount, currency, customerID, destinationAccount, transferGroup)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PaymentIntent), args.Error(1)
}

func (m *MockGateway) CreateCheckoutSession(amount int64, currency, customerID string) (*CheckoutSession, error) {
	args := m.Called(amount, currency, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CheckoutSession), args.Error(1)
}

func (m *MockGateway) CreateConnectedAccount(email string) (string, error) {
	args := m.Called(email)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) GetConnectedAccount(accountID string) (*ConnectedAccount, error) {
	args := m.Called(accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ConnectedAccount), args.Error(1)
}

func (m *MockGateway) CreateAccountLink(accountID string) (string, error) {
	args := m.Called(accountID)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) CreateTransfer(amount int64, currency, destinationAccount, transferGroup string) (*Transfer, error) {
	args := m.Called(amount, currency, destinationAccount, transferGroup)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Transfer), args.Error(1)
}

func (m *MockGateway) ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	args := m.Called(payload, sigHeader)
	return args.Get(0).(stripe.Event), args.Error(1)
}
