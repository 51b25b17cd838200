// Package api wires the HTTP handlers into a router.
package api

import (
	"net/http"

	"github.com/esathiyasekhar/FinanceTracker/internal/api/handlers"
	"github.com/esathiyasekhar/FinanceTracker/internal/api/middleware"
	"github.com/esathiyasekhar/FinanceTracker/internal/finance"
	"github.com/esathiyasekhar/FinanceTracker/internal/jobs"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// NewRouter registers every endpoint and wraps the router in the standard
// middleware chain.
func NewRouter(svc *finance.Service, publisher jobs.Publisher, store jobs.JobStore, log zerolog.Logger) http.Handler {
	dashboard := handlers.NewDashboardHandler(svc, log)
	cards := handlers.NewCardsHandler(svc, log)
	loans := handlers.NewLoansHandler(svc, log)
	accounts := handlers.NewAccountsHandler(svc, log)
	tables := handlers.NewTablesHandler(svc, log)
	jobsHandler := handlers.NewJobsHandler(publisher, store, log)

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/dashboard", dashboard.GetDashboard).Methods(http.MethodGet)

	api.HandleFunc("/cards", cards.ListCards).Methods(http.MethodGet)
	api.HandleFunc("/cards", cards.CreateCard).Methods(http.MethodPost)
	api.HandleFunc("/cards/{id}", cards.UpdateCard).Methods(http.MethodPut)
	api.HandleFunc("/cards/{id}", cards.DeleteCard).Methods(http.MethodDelete)
	api.HandleFunc("/statements", cards.SaveStatement).Methods(http.MethodPost)
	api.HandleFunc("/card-payments", cards.RecordPayment).Methods(http.MethodPost)

	api.HandleFunc("/loans", loans.ListLoans).Methods(http.MethodGet)
	api.HandleFunc("/loans", loans.CreateLoan).Methods(http.MethodPost)
	api.HandleFunc("/loans/{id}", loans.UpdateLoan).Methods(http.MethodPatch)
	api.HandleFunc("/loans/{id}", loans.DeleteLoan).Methods(http.MethodDelete)
	api.HandleFunc("/loans/{id}/payments", loans.RecordPayment).Methods(http.MethodPost)

	api.HandleFunc("/emis", loans.ListEMIs).Methods(http.MethodGet)
	api.HandleFunc("/emis", loans.CreateEMI).Methods(http.MethodPost)
	api.HandleFunc("/emis/{id}", loans.DeleteEMI).Methods(http.MethodDelete)
	api.HandleFunc("/emis/{id}/paid", loans.MarkEMIPaid).Methods(http.MethodPost)

	api.HandleFunc("/banks", accounts.CreateBank).Methods(http.MethodPost)
	api.HandleFunc("/banks/{id}", accounts.DeleteBank).Methods(http.MethodDelete)
	api.HandleFunc("/bank-balances", accounts.SaveBalances).Methods(http.MethodPut)

	api.HandleFunc("/transactions", accounts.ListTransactions).Methods(http.MethodGet)
	api.HandleFunc("/transactions", accounts.CreateTransaction).Methods(http.MethodPost)
	api.HandleFunc("/transactions/import", accounts.ImportTransactions).Methods(http.MethodPost)
	api.HandleFunc("/sources/detect", accounts.DetectSource).Methods(http.MethodGet)

	api.HandleFunc("/settings", accounts.ListSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings/{key}", accounts.SetSetting).Methods(http.MethodPut)

	api.HandleFunc("/tables/{table}", tables.GetTable).Methods(http.MethodGet)
	api.HandleFunc("/tables/{table}/sync", tables.SyncTable).Methods(http.MethodPost)

	api.HandleFunc("/jobs", jobsHandler.CreateJob).Methods(http.MethodPost)
	api.HandleFunc("/jobs", jobsHandler.ListJobs).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}", jobsHandler.GetJob).Methods(http.MethodGet)

	return middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(r),
			),
		),
	)
}
