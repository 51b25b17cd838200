package handlers

import (
	"net/http"
	"strings"

	"github.com/esathiyasekhar/FinanceTracker/internal/api/middleware"
	"github.com/esathiyasekhar/FinanceTracker/internal/domain"
	"github.com/esathiyasekhar/FinanceTracker/internal/finance"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// AccountsHandler handles bank, transaction and settings endpoints.
type AccountsHandler struct {
	svc *finance.Service
	log zerolog.Logger
}

// NewAccountsHandler creates a new accounts handler.
func NewAccountsHandler(svc *finance.Service, log zerolog.Logger) *AccountsHandler {
	return &AccountsHandler{svc: svc, log: log}
}

// CreateBank handles POST /api/banks
func (h *AccountsHandler) CreateBank(w http.ResponseWriter, r *http.Request) {
	var req finance.BankInput
	if err := decodeBody(r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	bank, err := h.svc.AddBank(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to add bank")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, bank)
}

// DeleteBank handles DELETE /api/banks/{id}
func (h *AccountsHandler) DeleteBank(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ok, err := h.svc.DeleteBank(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to delete bank")
		return
	}
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "Bank not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SaveBalances handles PUT /api/bank-balances
func (h *AccountsHandler) SaveBalances(w http.ResponseWriter, r *http.Request) {
	period, err := periodParam(r, h.svc)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req struct {
		Balances map[string]decimal.Decimal `json:"balances"`
	}
	if err := decodeBody(r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.SaveBankBalances(r.Context(), period, req.Balances); err != nil {
		writeServiceError(w, h.log, err, "Failed to save bank balances")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"period": period,
		"count":  len(req.Balances),
	})
}

// ListTransactions handles GET /api/transactions
func (h *AccountsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	period, err := periodParam(r, h.svc)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	txs, err := h.svc.Transactions(r.Context(), period)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list transactions")
		return
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
	})
}

// CreateTransaction handles POST /api/transactions
func (h *AccountsHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req finance.TransactionInput
	if err := decodeBody(r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	tx, err := h.svc.AddTransaction(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to add transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, tx)
}

// ImportTransactions handles POST /api/transactions/import
//
// The source defaults to the account detected from the uploaded filename.
func (h *AccountsHandler) ImportTransactions(w http.ResponseWriter, r *http.Request) {
	period, err := periodParam(r, h.svc)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req struct {
		Source     string             `json:"source"`
		Filename   string             `json:"filename"`
		Candidates []domain.Candidate `json:"candidates"`
	}
	if err := decodeBody(r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	source := strings.TrimSpace(req.Source)
	if source == "" && req.Filename != "" {
		source = h.svc.DetectSource(r.Context(), req.Filename)
	}

	stored, err := h.svc.ImportCandidates(r.Context(), period, source, req.Candidates)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to import transactions")
		return
	}
	if stored == nil {
		stored = []domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"source":       source,
		"transactions": stored,
		"imported":     len(stored),
		"skipped":      len(req.Candidates) - len(stored),
	})
}

// DetectSource handles GET /api/sources/detect?filename=
func (h *AccountsHandler) DetectSource(w http.ResponseWriter, r *http.Request) {
	filename := r.URL.Query().Get("filename")
	if filename == "" {
		middleware.WriteError(w, http.StatusBadRequest, "filename is required")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"filename": filename,
		"source":   h.svc.DetectSource(r.Context(), filename),
	})
}

// ListSettings handles GET /api/settings
func (h *AccountsHandler) ListSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.svc.Settings(r.Context())
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to read settings")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, settings)
}

// SetSetting handles PUT /api/settings/{key}
func (h *AccountsHandler) SetSetting(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	var req struct {
		Value string `json:"value"`
	}
	if err := decodeBody(r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.SetSetting(r.Context(), key, req.Value); err != nil {
		writeServiceError(w, h.log, err, "Failed to save setting")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{key: req.Value})
}
