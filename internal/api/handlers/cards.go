package handlers

import (
	"net/http"

	"github.com/esathiyasekhar/FinanceTracker/internal/api/middleware"
	"github.com/esathiyasekhar/FinanceTracker/internal/finance"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// CardsHandler handles card, statement and card payment endpoints.
type CardsHandler struct {
	svc *finance.Service
	log zerolog.Logger
}

// NewCardsHandler creates a new cards handler.
func NewCardsHandler(svc *finance.Service, log zerolog.Logger) *CardsHandler {
	return &CardsHandler{svc: svc, log: log}
}

// ListCards handles GET /api/cards
func (h *CardsHandler) ListCards(w http.ResponseWriter, r *http.Request) {
	period, err := periodParam(r, h.svc)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	cards, unavailable := h.svc.CardOverview(r.Context(), period)
	writeView(w, "cards", cards, len(cards), unavailable)
}

// CreateCard handles POST /api/cards
func (h *CardsHandler) CreateCard(w http.ResponseWriter, r *http.Request) {
	var req finance.CardInput
	if err := decodeBody(r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	card, err := h.svc.AddCard(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to add card")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, card)
}

// UpdateCard handles PUT /api/cards/{id}
func (h *CardsHandler) UpdateCard(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req finance.CardInput
	if err := decodeBody(r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ok, err := h.svc.UpdateCard(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update card")
		return
	}
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "Card not found")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"id": id})
}

// DeleteCard handles DELETE /api/cards/{id}
func (h *CardsHandler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ok, err := h.svc.DeleteCard(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to delete card")
		return
	}
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "Card not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SaveStatement handles POST /api/statements
func (h *CardsHandler) SaveStatement(w http.ResponseWriter, r *http.Request) {
	var req finance.StatementInput
	if err := decodeBody(r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	stmt, err := h.svc.SaveStatement(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to save statement")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, stmt)
}

// RecordPayment handles POST /api/card-payments
func (h *CardsHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req finance.CardPaymentInput
	if err := decodeBody(r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	payment, err := h.svc.RecordCardPayment(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to record card payment")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, payment)
}
