package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Outcome TransactionType = "outcome"
)

type (
	TransactionType string

	Money struct {
		Cents int64
	}

	// Category is a named bucket transactions are filed under.
	// Titles are unique across the whole ledger.
	Category struct {
		ID        string
		Title     string
		CreatedAt time.Time
	}

	// Transaction is a single income or outcome entry. Immutable once stored.
	Transaction struct {
		ID        string
		Title     string
		Value     Money
		Type      TransactionType
		Category  Category
		CreatedAt time.Time
	}

	// TransactionInput is a request to record one transaction. Category is
	// the category title, resolved or created on write.
	TransactionInput struct {
		Title    string
		Value    Money
		Type     TransactionType
		Category string
	}

	// NewTransaction pairs a validated input with its resolved category,
	// ready to be persisted.
	NewTransaction struct {
		Input    TransactionInput
		Category Category
	}

	// Balance is the derived income/outcome summary over the whole ledger.
	Balance struct {
		Income  Money
		Outcome Money
		Total   Money
	}
)

var (
	ErrInvalidType          = errors.New(`type must be "income" or "outcome"`)
	ErrMissingFields        = errors.New("title, value, type and category are all required")
	ErrOutcomeExceedsIncome = errors.New("outcome total cannot exceed income total")
	ErrTransactionNotFound  = errors.New("transaction does not exist")
	ErrInvalidAmount        = errors.New("invalid amount")
)

func (t TransactionType) Valid() bool {
	return t == Income || t == Outcome
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Validate rejects a request before it touches storage.
func (in TransactionInput) Validate() error {
	if !in.Type.Valid() {
		return ErrInvalidType
	}
	if strings.TrimSpace(in.Title) == "" ||
		strings.TrimSpace(in.Category) == "" ||
		in.Value.Cents <= 0 {
		return ErrMissingFields
	}
	return nil
}

// Allows reports whether an outcome of the given value can be committed
// against this balance. Income entries are always allowed.
func (b Balance) Allows(in TransactionInput) bool {
	if in.Type != Outcome {
		return true
	}
	return in.Value.Cents+b.Outcome.Cents <= b.Income.Cents
}
