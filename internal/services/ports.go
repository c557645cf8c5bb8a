package services

import (
	"context"
	"io"

	"ledger/internal/core"
)

// Ports for outbound adapters.
type (
	// Store is the persistence surface the ledger core writes through.
	// Implemented by storage.SQLiteRepository.
	Store interface {
		FindTransactions(ctx context.Context) ([]core.Transaction, error)
		FindCategoriesByTitles(ctx context.Context, titles []string) ([]core.Category, error)
		CreateCategories(ctx context.Context, titles []string) ([]core.Category, error)
		CreateTransaction(ctx context.Context, row core.NewTransaction) (core.Transaction, error)
		CreateTransactions(ctx context.Context, batch []core.NewTransaction) ([]core.Transaction, error)
		DeleteTransaction(ctx context.Context, id string) error
	}

	// EventPublisher emits ledger events after successful writes.
	EventPublisher interface {
		PublishTransactionCreated(ctx context.Context, t core.Transaction) error
		PublishImportCompleted(ctx context.Context, count int) error
	}

	// ImportSource is a readable import stream backed by a disposable
	// resource, typically a staged upload file. Release destroys the
	// backing resource and must only be called after a successful commit.
	ImportSource interface {
		io.Reader
		Release() error
	}
)
