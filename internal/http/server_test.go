package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"ledger/internal/core"
	"ledger/internal/services"
)

type fakeTransactions struct {
	transactions []core.Transaction
	balance      core.Balance
	createErr    error
	deleteErr    error
	created      []core.TransactionInput
	deleted      []string
}

func (f *fakeTransactions) Create(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	if f.createErr != nil {
		return core.Transaction{}, f.createErr
	}
	f.created = append(f.created, in)
	return core.Transaction{
		ID:        "tx-1",
		Title:     in.Title,
		Value:     in.Value,
		Type:      in.Type,
		Category:  core.Category{ID: "cat-1", Title: in.Category},
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}, nil
}

func (f *fakeTransactions) Delete(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeTransactions) List(ctx context.Context) ([]core.Transaction, core.Balance, error) {
	return f.transactions, f.balance, nil
}

type fakeImporter struct {
	result []core.Transaction
	err    error
	got    string
}

func (f *fakeImporter) Import(ctx context.Context, src services.ImportSource) ([]core.Transaction, error) {
	content, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	f.got = string(content)
	if f.err != nil {
		return nil, f.err
	}
	if err := src.Release(); err != nil {
		return nil, err
	}
	return f.result, nil
}

func newTestServer(t *testing.T, txs TransactionAPI, imp ImportAPI) (*Server, string) {
	t.Helper()
	uploadDir := t.TempDir()
	srv := NewServer(":0", txs, imp, uploadDir, 1<<20)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv, uploadDir
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, &fakeTransactions{}, &fakeImporter{})

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		srv.Handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestListTransactions(t *testing.T) {
	txs := &fakeTransactions{
		transactions: []core.Transaction{
			{
				ID:       "tx-1",
				Title:    "Salary",
				Value:    core.Money{Cents: 150000},
				Type:     core.Income,
				Category: core.Category{ID: "cat-1", Title: "Work"},
			},
		},
		balance: core.Balance{
			Income: core.Money{Cents: 150000},
			Total:  core.Money{Cents: 150000},
		},
	}
	srv, _ := newTestServer(t, txs, &fakeImporter{})

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/transactions", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}

	var body struct {
		Transactions []transactionDTO `json:"transactions"`
		Balance      balanceDTO       `json:"balance"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Transactions) != 1 || body.Transactions[0].Value != 1500 {
		t.Fatalf("unexpected transactions: %+v", body.Transactions)
	}
	if body.Balance.Total != 1500 {
		t.Fatalf("unexpected balance: %+v", body.Balance)
	}
}

func TestCreateTransaction(t *testing.T) {
	txs := &fakeTransactions{}
	srv, _ := newTestServer(t, txs, &fakeImporter{})

	payload := `{"title":"Salary","value":1500,"type":"income","category":"Work"}`
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(payload))
	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if len(txs.created) != 1 {
		t.Fatalf("expected one create call, got %d", len(txs.created))
	}
	if txs.created[0].Value.Cents != 150000 {
		t.Fatalf("expected 150000 cents, got %d", txs.created[0].Value.Cents)
	}

	var dto transactionDTO
	if err := json.Unmarshal(rr.Body.Bytes(), &dto); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dto.ID != "tx-1" || dto.Category.Title != "Work" {
		t.Fatalf("unexpected response: %+v", dto)
	}
}

func TestCreateTransactionErrors(t *testing.T) {
	cases := []struct {
		name       string
		payload    string
		createErr  error
		wantStatus int
	}{
		{"malformed JSON", `{"title":`, nil, http.StatusBadRequest},
		{"bad value", `{"title":"a","value":"abc","type":"income","category":"c"}`, nil, http.StatusBadRequest},
		{"invalid type", `{"title":"a","value":1,"type":"loan","category":"c"}`, core.ErrInvalidType, http.StatusBadRequest},
		{"invariant violation", `{"title":"a","value":1,"type":"outcome","category":"c"}`, core.ErrOutcomeExceedsIncome, http.StatusBadRequest},
		{"storage failure", `{"title":"a","value":1,"type":"income","category":"c"}`, errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := newTestServer(t, &fakeTransactions{createErr: tc.createErr}, &fakeImporter{})

			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(tc.payload))
			srv.Handler.ServeHTTP(rr, req)
			if rr.Code != tc.wantStatus {
				t.Fatalf("status=%d, want %d (body=%s)", rr.Code, tc.wantStatus, rr.Body.String())
			}
			if tc.wantStatus == http.StatusInternalServerError &&
				strings.Contains(rr.Body.String(), "disk on fire") {
				t.Fatalf("internal error details must not leak to clients")
			}
		})
	}
}

func TestDeleteTransaction(t *testing.T) {
	txs := &fakeTransactions{}
	srv, _ := newTestServer(t, txs, &fakeImporter{})

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/transactions/tx-9", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status=%d", rr.Code)
	}
	if len(txs.deleted) != 1 || txs.deleted[0] != "tx-9" {
		t.Fatalf("unexpected delete calls: %v", txs.deleted)
	}
}

func TestDeleteTransactionNotFound(t *testing.T) {
	srv, _ := newTestServer(t, &fakeTransactions{deleteErr: core.ErrTransactionNotFound}, &fakeImporter{})

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/transactions/missing", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rr.Code)
	}
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestImportTransactions(t *testing.T) {
	imp := &fakeImporter{
		result: []core.Transaction{
			{ID: "tx-1", Title: "Salary", Value: core.Money{Cents: 150000}, Type: core.Income},
		},
	}
	srv, uploadDir := newTestServer(t, &fakeTransactions{}, imp)

	csv := "title,type,value,category\nSalary,income,1500,Work\n"
	body, contentType := multipartBody(t, "file", "import.csv", csv)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/transactions/import", body)
	req.Header.Set("Content-Type", contentType)
	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if imp.got != csv {
		t.Fatalf("importer received %q", imp.got)
	}

	// The fake importer released the staged file; the staging dir must be
	// empty again.
	entries, err := os.ReadDir(uploadDir)
	if err != nil {
		t.Fatalf("read upload dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected staged file to be released, found %d entries", len(entries))
	}
}

func TestImportKeepsStagedFileOnFailure(t *testing.T) {
	imp := &fakeImporter{err: errors.New("db down")}
	srv, uploadDir := newTestServer(t, &fakeTransactions{}, imp)

	body, contentType := multipartBody(t, "file", "import.csv", "title,type,value,category\n")

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/transactions/import", body)
	req.Header.Set("Content-Type", contentType)
	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", rr.Code)
	}

	entries, err := os.ReadDir(uploadDir)
	if err != nil {
		t.Fatalf("read upload dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("staged file must survive a failed import, found %d entries", len(entries))
	}
}

func TestImportRequiresFileField(t *testing.T) {
	srv, _ := newTestServer(t, &fakeTransactions{}, &fakeImporter{})

	body, contentType := multipartBody(t, "wrong", "import.csv", "x")
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/transactions/import", body)
	req.Header.Set("Content-Type", contentType)
	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestRateLimiterAllows(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	for i := 0; i < 60; i++ {
		if !rl.allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.allow("1.2.3.4") {
		t.Fatalf("request 61 within a minute should be rejected")
	}
	if !rl.allow("5.6.7.8") {
		t.Fatalf("other clients must not be affected")
	}
}
