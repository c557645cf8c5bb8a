package amqp

import (
	"encoding/json"
	"time"

	"ledger/internal/core"
)

// Message type values carried in the AMQP Type header.
const (
	TypeTransactionCreated = "transaction.created"
	TypeImportCompleted    = "transactions.imported"
)

// TransactionCreatedMessage announces a single committed transaction.
// Consumers fetch the full record from storage by ID when they need more.
type TransactionCreatedMessage struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Type       string    `json:"type"`
	ValueCents int64     `json:"value_cents"`
	Category   string    `json:"category"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewTransactionCreatedMessage(t core.Transaction) *TransactionCreatedMessage {
	return &TransactionCreatedMessage{
		ID:         t.ID,
		Title:      t.Title,
		Type:       string(t.Type),
		ValueCents: t.Value.Cents,
		Category:   t.Category.Title,
		Timestamp:  time.Now(),
	}
}

func (m *TransactionCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionCreatedMessageFromJSON(data []byte) (*TransactionCreatedMessage, error) {
	var msg TransactionCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ImportCompletedMessage announces a finished bulk import.
type ImportCompletedMessage struct {
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

func NewImportCompletedMessage(count int) *ImportCompletedMessage {
	return &ImportCompletedMessage{
		Count:     count,
		Timestamp: time.Now(),
	}
}

func (m *ImportCompletedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ImportCompletedMessageFromJSON(data []byte) (*ImportCompletedMessage, error) {
	var msg ImportCompletedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
