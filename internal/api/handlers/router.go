package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/moliya/internal/api/middleware"
	"github.com/dvloznov/moliya/internal/app"
	"github.com/dvloznov/moliya/internal/logger"
)

// NewRouter registers every endpoint and wraps the mux in the middleware chain.
func NewRouter(a *app.App, log zerolog.Logger) http.Handler {
	chat := NewChatHandler(a.Pipeline, logger.Component(log, "chat"))
	transactions := NewTransactionsHandler(a.Store, a, logger.Component(log, "transactions"))
	people := NewPeopleHandler(a.Store, a, logger.Component(log, "people"))
	summary := NewSummaryHandler(a, a.Advice, a.Jobs, logger.Component(log, "summary"))

	mux := http.NewServeMux()

	// Chat and pending action endpoints
	mux.HandleFunc("/api/chat", only(http.MethodPost, chat.Chat))
	mux.HandleFunc("/api/pending", only(http.MethodGet, chat.Pending))
	mux.HandleFunc("/api/pending/confirm", only(http.MethodPost, chat.Confirm))
	mux.HandleFunc("/api/pending/cancel", only(http.MethodPost, chat.Cancel))
	mux.HandleFunc("/api/pending/clarify", only(http.MethodPost, chat.Clarify))

	// Transactions endpoints
	mux.HandleFunc("/api/transactions", only(http.MethodGet, transactions.ListTransactions))
	mux.HandleFunc("/api/transactions/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/transactions/")
		if id == "" || strings.Contains(id, "/") {
			middleware.WriteError(w, http.StatusBadRequest, "Transaction ID is required")
			return
		}
		switch r.Method {
		case http.MethodPut:
			transactions.UpdateTransaction(w, r, id)
		case http.MethodDelete:
			transactions.DeleteTransaction(w, r, id)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// People endpoints
	mux.HandleFunc("/api/people", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			people.ListPeople(w, r)
		case http.MethodPost:
			people.AddPerson(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Summary and advice endpoints
	mux.HandleFunc("/api/summary", only(http.MethodGet, summary.Summary))
	mux.HandleFunc("/api/advice", only(http.MethodGet, summary.Advice))
	mux.HandleFunc("/api/advice/jobs", only(http.MethodGet, summary.ListAdviceJobs))

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return middleware.Chain(log, mux)
}

func only(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h(w, r)
	}
}
