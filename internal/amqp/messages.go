package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// DistributionMessage announces a committed distribution. It carries only
// identifiers and totals; consumers read the ledger rows from storage.
// AmountCents is the distributed sum and Transactions the number of
// credits the distribution wrote.
type DistributionMessage struct {
	PaymentID    string    `json:"payment_id"`
	ProjectID    string    `json:"project_id"`
	AmountCents  int64     `json:"amount_cents"`
	Currency     string    `json:"currency"`
	Transactions int       `json:"transactions"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewDistributionMessage stamps a message with the current time.
func NewDistributionMessage(paymentID, projectID string, amountCents int64, currency string, transactions int) *DistributionMessage {
	return &DistributionMessage{
		PaymentID:    paymentID,
		ProjectID:    projectID,
		AmountCents:  amountCents,
		Currency:     currency,
		Transactions: transactions,
		Timestamp:    time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *DistributionMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// DistributionMessageFromJSON decodes a message and requires a payment id.
func DistributionMessageFromJSON(data []byte) (*DistributionMessage, error) {
	var msg DistributionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.PaymentID == "" {
		return nil, fmt.Errorf("message has no payment_id")
	}
	return &msg, nil
}
