package services

import (
	"context"
	"fmt"
	"log/slog"

	"ledger/internal/core"
)

// TransactionService handles the interactive write path: validate the
// request, enforce the balance invariant, resolve the category and persist
// exactly one transaction.
type TransactionService struct {
	store    Store
	resolver *CategoryResolver
	events   EventPublisher
}

func NewTransactionService(store Store, resolver *CategoryResolver, events EventPublisher) *TransactionService {
	return &TransactionService{
		store:    store,
		resolver: resolver,
		events:   events,
	}
}

// Create validates and persists a single transaction. An outcome that would
// push cumulative outcomes above cumulative income is rejected with
// core.ErrOutcomeExceedsIncome before anything is written.
//
// The balance check and the insert are not one atomic unit; two concurrent
// outcome creations can validate against the same stale balance.
func (s *TransactionService) Create(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	if in.Type == core.Outcome {
		balance, err := s.Balance(ctx)
		if err != nil {
			return core.Transaction{}, err
		}
		if !balance.Allows(in) {
			return core.Transaction{}, core.ErrOutcomeExceedsIncome
		}
	}

	categories, err := s.resolver.Resolve(ctx, []string{in.Category})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("resolve category: %w", err)
	}
	if len(categories) == 0 {
		return core.Transaction{}, fmt.Errorf("resolve category %q: no record returned", in.Category)
	}

	created, err := s.store.CreateTransaction(ctx, core.NewTransaction{
		Input:    in,
		Category: categories[0],
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("persist transaction: %w", err)
	}

	if s.events != nil {
		if err := s.events.PublishTransactionCreated(ctx, created); err != nil {
			// The transaction is committed; a lost event must not fail the request.
			slog.ErrorContext(ctx, "Failed to publish created event",
				"id", created.ID, "error", err)
		}
	}

	return created, nil
}

// Delete removes a transaction by id. Returns core.ErrTransactionNotFound
// when it does not exist.
func (s *TransactionService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	return nil
}

// List returns every transaction together with the current balance.
func (s *TransactionService) List(ctx context.Context) ([]core.Transaction, core.Balance, error) {
	transactions, err := s.store.FindTransactions(ctx)
	if err != nil {
		return nil, core.Balance{}, fmt.Errorf("list transactions: %w", err)
	}
	return transactions, ComputeBalance(transactions), nil
}

// Balance scans the whole ledger and returns the derived totals. O(n) in
// stored transactions; run once per interactive outcome creation.
func (s *TransactionService) Balance(ctx context.Context) (core.Balance, error) {
	transactions, err := s.store.FindTransactions(ctx)
	if err != nil {
		return core.Balance{}, fmt.Errorf("load transactions for balance: %w", err)
	}
	return ComputeBalance(transactions), nil
}
