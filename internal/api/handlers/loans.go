package handlers

import (
	"net/http"

	"github.com/esathiyasekhar/FinanceTracker/internal/api/middleware"
	"github.com/esathiyasekhar/FinanceTracker/internal/finance"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// LoansHandler handles loan and installment plan endpoints.
type LoansHandler struct {
	svc *finance.Service
	log zerolog.Logger
}

// NewLoansHandler creates a new loans handler.
func NewLoansHandler(svc *finance.Service, log zerolog.Logger) *LoansHandler {
	return &LoansHandler{svc: svc, log: log}
}

// ListLoans handles GET /api/loans
func (h *LoansHandler) ListLoans(w http.ResponseWriter, r *http.Request) {
	period, err := periodParam(r, h.svc)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	loans, unavailable := h.svc.LoanOverview(r.Context(), period)
	writeView(w, "loans", loans, len(loans), unavailable)
}

// CreateLoan handles POST /api/loans
func (h *LoansHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var req finance.LoanInput
	if err := decodeBody(r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	loan, err := h.svc.AddLoan(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to add loan")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, loan)
}

// UpdateLoan handles PATCH /api/loans/{id}
func (h *LoansHandler) UpdateLoan(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req finance.LoanUpdate
	if err := decodeBody(r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ok, err := h.svc.UpdateLoan(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update loan")
		return
	}
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "Loan not found")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"id": id})
}

// DeleteLoan handles DELETE /api/loans/{id}
func (h *LoansHandler) DeleteLoan(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ok, err := h.svc.DeleteLoan(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to delete loan")
		return
	}
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "Loan not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RecordPayment handles POST /api/loans/{id}/payments
func (h *LoansHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req finance.LoanPaymentInput
	if err := decodeBody(r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.LoanID = mux.Vars(r)["id"]

	repayment, err := h.svc.RecordLoanPayment(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to record loan payment")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, repayment)
}

// ListEMIs handles GET /api/emis
func (h *LoansHandler) ListEMIs(w http.ResponseWriter, r *http.Request) {
	period, err := periodParam(r, h.svc)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	emis, unavailable := h.svc.EMIOverview(r.Context(), period)
	writeView(w, "emis", emis, len(emis), unavailable)
}

// CreateEMI handles POST /api/emis
func (h *LoansHandler) CreateEMI(w http.ResponseWriter, r *http.Request) {
	var req finance.EMIInput
	if err := decodeBody(r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	emi, err := h.svc.AddEMI(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to add EMI")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, emi)
}

// MarkEMIPaid handles POST /api/emis/{id}/paid
func (h *LoansHandler) MarkEMIPaid(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	period, err := periodParam(r, h.svc)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	logged, err := h.svc.MarkEMIPaid(r.Context(), id, period)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to mark EMI paid")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"emi_id": id,
		"period": period,
		"logged": logged,
	})
}

// DeleteEMI handles DELETE /api/emis/{id}
func (h *LoansHandler) DeleteEMI(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ok, err := h.svc.DeleteEMI(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to delete EMI")
		return
	}
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "EMI not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
