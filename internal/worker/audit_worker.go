package worker

import (
	"context"
	"fmt"
	"log/slog"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/services"
)

// AuditWorker consumes ledger events and writes an audit trail of every
// committed write together with the balance it left behind. It reads
// through the same Store port as the services so it always reports the
// persisted state, not the event payload.
type AuditWorker struct {
	store services.Store
}

func NewAuditWorker(store services.Store) *AuditWorker {
	return &AuditWorker{store: store}
}

// HandleCreated processes a single transaction.created event.
func (w *AuditWorker) HandleCreated(ctx context.Context, msg *amqp.TransactionCreatedMessage) error {
	transactions, err := w.store.FindTransactions(ctx)
	if err != nil {
		return fmt.Errorf("load ledger for audit: %w", err)
	}

	var recorded *core.Transaction
	for i := range transactions {
		if transactions[i].ID == msg.ID {
			recorded = &transactions[i]
			break
		}
	}
	if recorded == nil {
		// Deleted between commit and consumption; nothing left to audit.
		slog.WarnContext(ctx, "Audited transaction no longer stored", "id", msg.ID)
		return nil
	}

	balance := services.ComputeBalance(transactions)
	slog.InfoContext(ctx, "Audit: transaction recorded",
		"id", recorded.ID,
		"title", recorded.Title,
		"type", recorded.Type,
		"value_cents", recorded.Value.Cents,
		"category", recorded.Category.Title,
		"income_cents", balance.Income.Cents,
		"outcome_cents", balance.Outcome.Cents,
		"total_cents", balance.Total.Cents)

	if balance.Total.Cents < 0 {
		// Bulk imports bypass the invariant check, so this can legitimately
		// happen; surface it loudly for the operator.
		slog.WarnContext(ctx, "Audit: ledger total is negative",
			"total_cents", balance.Total.Cents)
	}

	return nil
}

// HandleImported processes a transactions.imported event.
func (w *AuditWorker) HandleImported(ctx context.Context, msg *amqp.ImportCompletedMessage) error {
	transactions, err := w.store.FindTransactions(ctx)
	if err != nil {
		return fmt.Errorf("load ledger for audit: %w", err)
	}

	balance := services.ComputeBalance(transactions)
	slog.InfoContext(ctx, "Audit: bulk import recorded",
		"imported", msg.Count,
		"ledger_size", len(transactions),
		"income_cents", balance.Income.Cents,
		"outcome_cents", balance.Outcome.Cents,
		"total_cents", balance.Total.Cents)

	if balance.Total.Cents < 0 {
		slog.WarnContext(ctx, "Audit: ledger total is negative after import",
			"total_cents", balance.Total.Cents)
	}

	return nil
}
