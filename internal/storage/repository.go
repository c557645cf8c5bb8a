package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"ledger/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository persists transactions and categories in a local SQLite
// database. It is the single shared mutable resource of the service.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// FindTransactions returns every stored transaction with its category,
// oldest first.
func (r *SQLiteRepository) FindTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.id, t.title, t.value_cents, t.type, t.created_at,
		       c.id, c.title, c.created_at
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		ORDER BY t.created_at, t.id`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var t core.Transaction
		if err := rows.Scan(
			&t.ID, &t.Title, &t.Value.Cents, &t.Type, &t.CreatedAt,
			&t.Category.ID, &t.Category.Title, &t.Category.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// GetTransaction returns a single transaction by id, or
// core.ErrTransactionNotFound.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	var t core.Transaction
	err := r.db.QueryRowContext(ctx, `
		SELECT t.id, t.title, t.value_cents, t.type, t.created_at,
		       c.id, c.title, c.created_at
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE t.id = ?`, id).Scan(
		&t.ID, &t.Title, &t.Value.Cents, &t.Type, &t.CreatedAt,
		&t.Category.ID, &t.Category.Title, &t.Category.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrTransactionNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// FindCategoriesByTitles returns the categories whose title is in the given
// set. Missing titles are simply absent from the result.
func (r *SQLiteRepository) FindCategoriesByTitles(ctx context.Context, titles []string) ([]core.Category, error) {
	if len(titles) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(titles)), ",")
	args := make([]any, len(titles))
	for i, title := range titles {
		args[i] = title
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, created_at FROM categories WHERE title IN (`+placeholders+`)`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("query categories by titles: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}

// CreateCategories inserts one category per title in a single transaction
// and returns the stored records. A title that raced into existence between
// the caller's read and this write is tolerated: the conflict is ignored and
// the existing row is fetched back instead.
func (r *SQLiteRepository) CreateCategories(ctx context.Context, titles []string) ([]core.Category, error) {
	if len(titles) == 0 {
		return nil, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create categories: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, title := range titles {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO categories (id, title, created_at) VALUES (?, ?, ?)
			ON CONFLICT (title) DO NOTHING`,
			uuid.NewString(), title, now)
		if err != nil {
			return nil, fmt.Errorf("insert category %q: %w", title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create categories: %w", err)
	}

	created, err := r.FindCategoriesByTitles(ctx, titles)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Categories created", "requested", len(titles), "stored", len(created))
	return created, nil
}

// CreateTransaction persists a single transaction and returns the stored
// record.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, row core.NewTransaction) (core.Transaction, error) {
	t := core.Transaction{
		ID:        uuid.NewString(),
		Title:     row.Input.Title,
		Value:     row.Input.Value,
		Type:      row.Input.Type,
		Category:  row.Category,
		CreatedAt: time.Now().UTC(),
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, title, value_cents, type, category_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Value.Cents, string(t.Type), t.Category.ID, t.CreatedAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", t.ID,
		"title", t.Title,
		"type", t.Type,
		"value_cents", t.Value.Cents,
		"category", t.Category.Title)

	return t, nil
}

// CreateTransactions persists all rows inside one database transaction. On
// any failure the whole batch is rolled back and nothing is committed.
func (r *SQLiteRepository) CreateTransactions(ctx context.Context, batch []core.NewTransaction) ([]core.Transaction, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create transactions: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	out := make([]core.Transaction, 0, len(batch))
	for _, row := range batch {
		t := core.Transaction{
			ID:        uuid.NewString(),
			Title:     row.Input.Title,
			Value:     row.Input.Value,
			Type:      row.Input.Type,
			Category:  row.Category,
			CreatedAt: now,
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO transactions (id, title, value_cents, type, category_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			t.ID, t.Title, t.Value.Cents, string(t.Type), t.Category.ID, t.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("insert transaction %q: %w", t.Title, err)
		}
		out = append(out, t)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create transactions: %w", err)
	}

	slog.InfoContext(ctx, "Transaction batch saved", "count", len(out))
	return out, nil
}

// DeleteTransaction removes a transaction by id. Returns
// core.ErrTransactionNotFound when no row matches.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction rows affected: %w", err)
	}
	if affected == 0 {
		return core.ErrTransactionNotFound
	}

	slog.InfoContext(ctx, "Transaction deleted", "id", id)
	return nil
}
