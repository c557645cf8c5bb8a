package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"ledger/internal/core"
)

// memStore is an in-memory Store used across the service tests. It mirrors
// the SQLite repository's semantics: unique category titles, generated ids,
// all-or-nothing batch writes.
type memStore struct {
	mu           sync.Mutex
	transactions []core.Transaction
	categories   []core.Category
	nextID       int

	failFind         bool
	failCreateBatch  bool
	createCatCalls   int
	findByTitleCalls int
}

var errStoreDown = errors.New("store unavailable")

func (m *memStore) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

func (m *memStore) FindTransactions(ctx context.Context) ([]core.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFind {
		return nil, errStoreDown
	}
	out := make([]core.Transaction, len(m.transactions))
	copy(out, m.transactions)
	return out, nil
}

func (m *memStore) FindCategoriesByTitles(ctx context.Context, titles []string) ([]core.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findByTitleCalls++
	var out []core.Category
	for _, c := range m.categories {
		for _, title := range titles {
			if c.Title == title {
				out = append(out, c)
				break
			}
		}
	}
	return out, nil
}

func (m *memStore) CreateCategories(ctx context.Context, titles []string) ([]core.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCatCalls++
	var out []core.Category
	for _, title := range titles {
		exists := false
		for _, c := range m.categories {
			if c.Title == title {
				out = append(out, c)
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		c := core.Category{ID: m.id("cat"), Title: title, CreatedAt: time.Now()}
		m.categories = append(m.categories, c)
		out = append(out, c)
	}
	return out, nil
}

func (m *memStore) CreateTransaction(ctx context.Context, row core.NewTransaction) (core.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := core.Transaction{
		ID:        m.id("tx"),
		Title:     row.Input.Title,
		Value:     row.Input.Value,
		Type:      row.Input.Type,
		Category:  row.Category,
		CreatedAt: time.Now(),
	}
	m.transactions = append(m.transactions, t)
	return t, nil
}

func (m *memStore) CreateTransactions(ctx context.Context, batch []core.NewTransaction) ([]core.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreateBatch {
		return nil, errStoreDown
	}
	out := make([]core.Transaction, 0, len(batch))
	for _, row := range batch {
		t := core.Transaction{
			ID:        m.id("tx"),
			Title:     row.Input.Title,
			Value:     row.Input.Value,
			Type:      row.Input.Type,
			Category:  row.Category,
			CreatedAt: time.Now(),
		}
		m.transactions = append(m.transactions, t)
		out = append(out, t)
	}
	return out, nil
}

func (m *memStore) DeleteTransaction(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.transactions {
		if t.ID == id {
			m.transactions = append(m.transactions[:i], m.transactions[i+1:]...)
			return nil
		}
	}
	return core.ErrTransactionNotFound
}

func (m *memStore) categoryCount(title string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.categories {
		if c.Title == title {
			n++
		}
	}
	return n
}

// fakePublisher records published events.
type fakePublisher struct {
	mu       sync.Mutex
	created  []string
	imported []int
}

func (p *fakePublisher) PublishTransactionCreated(ctx context.Context, t core.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, t.ID)
	return nil
}

func (p *fakePublisher) PublishImportCompleted(ctx context.Context, count int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.imported = append(p.imported, count)
	return nil
}

// fakeSource is an ImportSource over a string.
type fakeSource struct {
	*strings.Reader
	released bool
}

func newFakeSource(content string) *fakeSource {
	return &fakeSource{Reader: strings.NewReader(content)}
}

func (s *fakeSource) Release() error {
	s.released = true
	return nil
}

func mustCreate(t *testing.T, svc *TransactionService, title string, cents int64, typ core.TransactionType, category string) core.Transaction {
	t.Helper()
	created, err := svc.Create(context.Background(), core.TransactionInput{
		Title:    title,
		Value:    core.Money{Cents: cents},
		Type:     typ,
		Category: category,
	})
	if err != nil {
		t.Fatalf("create %q: %v", title, err)
	}
	return created
}
