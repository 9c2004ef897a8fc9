package audit

import (
	"encoding/json"
	"log"
	"time"
)

type Event struct {
	Timestamp     time.Time `json:"timestamp"`
	EventType     string    `json:"event_type"`
	TransactionID string    `json:"transaction_id"`
	UserID        int64     `json:"user_id"`
	Amount        int64     `json:"amount"`
	Status        string    `json:"status"`
	Details       any       `json:"details"`
}

// Logger emits one JSON line per money-movement event. Every balance
// mutation and ledger status change passes through here so the ledger can
// be reconciled against an external log stream.
type Logger struct{}

func NewLogger() *Logger {
	return &Logger{}
}

func (a *Logger) LogSettlement(transactionID string, payerID, payeeID, amount int64, status string) {
	event := Event{
		Timestamp:     time.Now(),
		EventType:     "SETTLEMENT",
		TransactionID: transactionID,
		UserID:        payerID,
		Amount:        amount,
		Status:        status,
		Details: map[string]int64{
			"payer_id": payerID,
			"payee_id": payeeID,
		},
	}
	a.log(event)
}

func (a *Logger) LogDeposit(transactionID string, userID, amount int64, status string) {
	event := Event{
		Timestamp:     time.Now(),
		EventType:     "DEPOSIT",
		TransactionID: transactionID,
		UserID:        userID,
		Amount:        amount,
		Status:        status,
	}
	a.log(event)
}

func (a *Logger) LogError(transactionID string, userID int64, err error) {
	event := Event{
		Timestamp:     time.Now(),
		EventType:     "ERROR",
		TransactionID: transactionID,
		UserID:        userID,
		Status:        "FAILED",
		Details:       map[string]string{"error": err.Error()},
	}
	a.log(event)
}

func (a *Logger) LogOperation(transactionID string, userID int64, operation, details string) {
	event := Event{
		Timestamp:     time.Now(),
		EventType:     operation,
		TransactionID: transactionID,
		UserID:        userID,
		Status:        "SUCCESS",
		Details:       map[string]string{"details": details},
	}
	a.log(event)
}

func (a *Logger) log(event Event) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
