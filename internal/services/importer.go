package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"ledger/internal/core"
)

// Importer loads transactions in bulk from a comma-delimited stream. Rows
// are parsed incrementally, categories are resolved in one batched call and
// all transactions are persisted in a single write.
//
// Unlike the interactive path, the importer does not enforce the balance
// invariant: imported rows are inserted even when they push the total
// negative. Row types other than income/outcome are stored as-is; upstream
// data is trusted to conform.
type Importer struct {
	store    Store
	resolver *CategoryResolver
	events   EventPublisher
}

func NewImporter(store Store, resolver *CategoryResolver, events EventPublisher) *Importer {
	return &Importer{
		store:    store,
		resolver: resolver,
		events:   events,
	}
}

// Import reads the whole stream (skipping the header row), persists every
// valid row and then releases the backing resource. Rows missing any of the
// four fields title,type,value,category are skipped silently, as are rows
// whose value is not a positive decimal.
//
// If persistence fails the source is NOT released, so the import can be
// retried against the original file.
func (i *Importer) Import(ctx context.Context, src ImportSource) ([]core.Transaction, error) {
	inputs, titles, err := i.parse(ctx, src)
	if err != nil {
		return nil, err
	}

	// Parsing is fully done here; all downstream steps operate on the
	// complete row set.
	categories, err := i.resolver.Resolve(ctx, titles)
	if err != nil {
		return nil, fmt.Errorf("resolve categories: %w", err)
	}

	byTitle := make(map[string]core.Category, len(categories))
	for _, c := range categories {
		byTitle[c.Title] = c
	}

	batch := make([]core.NewTransaction, 0, len(inputs))
	for _, in := range inputs {
		batch = append(batch, core.NewTransaction{
			Input:    in,
			Category: byTitle[in.Category],
		})
	}

	created, err := i.store.CreateTransactions(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("persist imported transactions: %w", err)
	}

	if err := src.Release(); err != nil {
		// The batch is committed; a leftover staging file is only worth a warning.
		slog.WarnContext(ctx, "Failed to release import source", "error", err)
	}

	if i.events != nil {
		if err := i.events.PublishImportCompleted(ctx, len(created)); err != nil {
			slog.ErrorContext(ctx, "Failed to publish import event",
				"count", len(created), "error", err)
		}
	}

	slog.InfoContext(ctx, "Import completed",
		"rows", len(inputs),
		"created", len(created),
		"categories", len(categories))

	return created, nil
}

// parse streams the CSV row by row and collects valid inputs plus every
// row's category title (duplicates retained, for batch resolution).
func (i *Importer) parse(ctx context.Context, src io.Reader) ([]core.TransactionInput, []string, error) {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var (
		inputs  []core.TransactionInput
		titles  []string
		skipped int
		header  = true
	)

	for {
		select {
		case <-ctx.Done():
			// Abandon the stream cleanly; the source stays on disk.
			return nil, nil, ctx.Err()
		default:
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read csv row: %w", err)
		}

		if header {
			header = false
			continue
		}

		if len(record) < 4 {
			skipped++
			continue
		}

		title := strings.TrimSpace(record[0])
		typ := strings.TrimSpace(record[1])
		value := strings.TrimSpace(record[2])
		category := strings.TrimSpace(record[3])
		if title == "" || typ == "" || value == "" || category == "" {
			skipped++
			continue
		}

		cents, err := core.ParseDecimalToCents(value)
		if err != nil {
			skipped++
			continue
		}

		inputs = append(inputs, core.TransactionInput{
			Title:    title,
			Value:    core.Money{Cents: cents},
			Type:     core.TransactionType(typ),
			Category: category,
		})
		titles = append(titles, category)
	}

	if skipped > 0 {
		slog.InfoContext(ctx, "Skipped incomplete import rows", "skipped", skipped)
	}

	return inputs, titles, nil
}
