// Package handlers serves the finance actions and views over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/esathiyasekhar/FinanceTracker/internal/api/middleware"
	"github.com/esathiyasekhar/FinanceTracker/internal/domain"
	"github.com/esathiyasekhar/FinanceTracker/internal/finance"
	"github.com/esathiyasekhar/FinanceTracker/internal/gridsync"
	"github.com/esathiyasekhar/FinanceTracker/internal/parse"
	"github.com/esathiyasekhar/FinanceTracker/internal/remote"
	"github.com/esathiyasekhar/FinanceTracker/internal/repository"
	"github.com/esathiyasekhar/FinanceTracker/internal/schema"
	"github.com/rs/zerolog"
)

// periodParam reads ?year=&month= from r. Missing values default to the
// current month of the service's clock.
func periodParam(r *http.Request, svc *finance.Service) (domain.Period, error) {
	p := domain.PeriodOf(svc.Today())
	query := r.URL.Query()

	if y := query.Get("year"); y != "" {
		n, err := strconv.Atoi(y)
		if err != nil || n <= 0 {
			return domain.Period{}, fmt.Errorf("invalid year %q", y)
		}
		p.Year = n
	}
	if m := query.Get("month"); m != "" {
		month, ok := parse.Month(m)
		if !ok {
			return domain.Period{}, fmt.Errorf("invalid month %q", m)
		}
		p.Month = month
	}
	return p, nil
}

// decodeBody decodes the JSON request body into v.
func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// writeServiceError maps a service error to a status code and writes it.
// fallback is the message used for unexpected failures.
func writeServiceError(w http.ResponseWriter, log zerolog.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, finance.ErrUnknownRef):
		middleware.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, finance.ErrDuplicate):
		middleware.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, finance.ErrValidation):
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, remote.ErrVersionConflict), errors.Is(err, gridsync.ErrDuplicateKey):
		middleware.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, repository.ErrUnavailable):
		log.Warn().Err(err).Msg(fallback)
		middleware.WriteError(w, http.StatusServiceUnavailable, err.Error())
	default:
		log.Error().Err(err).Msg(fallback)
		middleware.WriteError(w, http.StatusInternalServerError, fallback)
	}
}

// writeView writes a read-only overview along with the tables that could not
// be read while building it.
func writeView(w http.ResponseWriter, key string, items interface{}, count int, unavailable []schema.Table) {
	body := map[string]interface{}{
		key:     items,
		"count": count,
	}
	if len(unavailable) > 0 {
		body["unavailable"] = unavailable
	}
	middleware.WriteJSON(w, http.StatusOK, body)
}

// DashboardHandler serves the monthly summary.
type DashboardHandler struct {
	svc *finance.Service
	log zerolog.Logger
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(svc *finance.Service, log zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{svc: svc, log: log}
}

// GetDashboard handles GET /api/dashboard
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	period, err := periodParam(r, h.svc)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	view := h.svc.Dashboard(r.Context(), period)
	if len(view.Unavailable) > 0 {
		h.log.Warn().Interface("unavailable", view.Unavailable).Stringer("period", period).Msg("Dashboard built with missing tables")
	}
	middleware.WriteJSON(w, http.StatusOK, view)
}
