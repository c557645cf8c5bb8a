package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"ledger/internal/core"
	"ledger/internal/upload"
)

type (
	categoryDTO struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}

	transactionDTO struct {
		ID        string      `json:"id"`
		Title     string      `json:"title"`
		Value     float64     `json:"value"`
		Type      string      `json:"type"`
		Category  categoryDTO `json:"category"`
		CreatedAt string      `json:"created_at"`
	}

	balanceDTO struct {
		Income  float64 `json:"income"`
		Outcome float64 `json:"outcome"`
		Total   float64 `json:"total"`
	}

	createTransactionRequest struct {
		Title    string      `json:"title"`
		Value    json.Number `json:"value"`
		Type     string      `json:"type"`
		Category string      `json:"category"`
	}
)

func toTransactionDTO(t core.Transaction) transactionDTO {
	return transactionDTO{
		ID:       t.ID,
		Title:    t.Title,
		Value:    t.Value.Units(),
		Type:     string(t.Type),
		Category: categoryDTO{ID: t.Category.ID, Title: t.Category.Title},
		// RFC 3339 keeps timestamps sortable in clients.
		CreatedAt: t.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func toBalanceDTO(b core.Balance) balanceDTO {
	return balanceDTO{
		Income:  b.Income.Units(),
		Outcome: b.Outcome.Units(),
		Total:   b.Total.Units(),
	}
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	transactions, balance, err := s.transactions.List(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	dtos := make([]transactionDTO, 0, len(transactions))
	for _, t := range transactions {
		dtos = append(dtos, toTransactionDTO(t))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": dtos,
		"balance":      toBalanceDTO(balance),
	})
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	var value core.Money
	if v := strings.TrimSpace(req.Value.String()); v != "" {
		cents, err := core.ParseDecimalToCents(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, core.ErrInvalidAmount.Error())
			return
		}
		value = core.Money{Cents: cents}
	}

	created, err := s.transactions.Create(r.Context(), core.TransactionInput{
		Title:    strings.TrimSpace(req.Title),
		Value:    value,
		Type:     core.TransactionType(strings.TrimSpace(req.Type)),
		Category: strings.TrimSpace(req.Category),
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toTransactionDTO(created))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "transaction id is required")
		return
	}

	if err := s.transactions.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleImportTransactions(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, "expected a multipart form with a 'file' field")
		return
	}

	part, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing 'file' upload")
		return
	}
	defer part.Close()

	path, err := upload.Stage(s.uploadDir, header.Filename, part)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to stage upload", "error", err, "filename", header.Filename)
		writeError(w, http.StatusInternalServerError, "could not stage uploaded file")
		return
	}

	src, err := upload.Open(path)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to open staged upload", "error", err, "path", path)
		writeError(w, http.StatusInternalServerError, "could not read staged file")
		return
	}

	created, err := s.importer.Import(r.Context(), src)
	if err != nil {
		// The staged file is kept on disk so the import can be retried.
		s.writeServiceError(w, r, err)
		return
	}

	dtos := make([]transactionDTO, 0, len(created))
	for _, t := range created {
		dtos = append(dtos, toTransactionDTO(t))
	}

	writeJSON(w, http.StatusOK, map[string]any{"transactions": dtos})
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed",
			"error", err, "method", r.Method, "url", r.URL.Path)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalidType),
		errors.Is(err, core.ErrMissingFields),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrOutcomeExceedsIncome):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrTransactionNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
