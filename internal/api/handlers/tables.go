package handlers

import (
	"net/http"

	"github.com/esathiyasekhar/FinanceTracker/internal/api/middleware"
	"github.com/esathiyasekhar/FinanceTracker/internal/finance"
	"github.com/esathiyasekhar/FinanceTracker/internal/gridsync"
	"github.com/esathiyasekhar/FinanceTracker/internal/schema"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// TablesHandler serves raw tables for grid editing.
type TablesHandler struct {
	svc *finance.Service
	log zerolog.Logger
}

// NewTablesHandler creates a new tables handler.
func NewTablesHandler(svc *finance.Service, log zerolog.Logger) *TablesHandler {
	return &TablesHandler{svc: svc, log: log}
}

func tableVar(w http.ResponseWriter, r *http.Request) (schema.Table, bool) {
	table, err := schema.ParseTable(mux.Vars(r)["table"])
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, err.Error())
		return "", false
	}
	return table, true
}

// GetTable handles GET /api/tables/{table}
//
// Every query parameter narrows the rows to those whose column equals the
// value, e.g. ?Year=2025&Month=October.
func (h *TablesHandler) GetTable(w http.ResponseWriter, r *http.Request) {
	table, ok := tableVar(w, r)
	if !ok {
		return
	}
	where := map[string]string{}
	for col, values := range r.URL.Query() {
		if len(values) > 0 {
			where[col] = values[0]
		}
	}

	c, err := h.svc.Grid(r.Context(), table, where)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to read table")
		return
	}
	// Rows carry their origin so edits of ID or key cells sync back to the
	// same row.
	rows := gridsync.RowsOf(c)
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"table":   c.Table,
		"version": c.Version,
		"header":  c.Header,
		"rows":    rows,
		"count":   len(rows),
	})
}

// SyncTable handles POST /api/tables/{table}/sync
func (h *TablesHandler) SyncTable(w http.ResponseWriter, r *http.Request) {
	table, ok := tableVar(w, r)
	if !ok {
		return
	}
	var req struct {
		Version string         `json:"version"`
		Rows    []gridsync.Row `json:"rows"`
	}
	if err := decodeBody(r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.svc.SyncGrid(r.Context(), table, req.Version, req.Rows)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to sync table")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, res)
}
