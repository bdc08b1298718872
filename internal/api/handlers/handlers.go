// Package handlers implements the JSON HTTP API over the ledger and the action pipeline.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/moliya/internal/advice"
	"github.com/dvloznov/moliya/internal/api/middleware"
	"github.com/dvloznov/moliya/internal/balance"
	"github.com/dvloznov/moliya/internal/domain"
	"github.com/dvloznov/moliya/internal/pipeline"
)

// maxBodyBytes bounds request bodies; every payload is a small JSON object.
const maxBodyBytes = 64 << 10

// Pipeline is the action pipeline as seen by the chat endpoints.
type Pipeline interface {
	State() pipeline.State
	Pending() (domain.PendingAction, bool)
	Submit(ctx context.Context, text string) (domain.AIResponse, error)
	Clarify(field domain.ClarificationField, value string) (domain.PendingAction, error)
	Confirm(ctx context.Context) (pipeline.Committed, error)
	Cancel() bool
}

// Ledger is the read side of the store plus roster management.
type Ledger interface {
	Transactions() []domain.Transaction
	AddPerson(ctx context.Context, name string) (domain.Person, error)
}

// Editor edits and deletes recorded transactions.
type Editor interface {
	EditTransaction(ctx context.Context, id string, in domain.EditInput) (domain.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
}

// Summarizer derives balances from the ledger.
type Summarizer interface {
	Summary() balance.Summary
}

// AdviceSource returns the latest advice.
type AdviceSource interface {
	Current() advice.Advice
}

// statusFor maps domain and pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrEmptyInput),
		errors.Is(err, pipeline.ErrUnsupportedClarification),
		errors.Is(err, pipeline.ErrInvalidClarification),
		errors.Is(err, domain.ErrEmptyPersonName),
		errors.Is(err, domain.ErrInvalidEdit):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrTransactionNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrActionPending),
		errors.Is(err, pipeline.ErrNoPendingAction),
		errors.Is(err, pipeline.ErrClarificationRequired),
		errors.Is(err, domain.ErrDuplicatePerson):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeErr logs unexpected failures and writes the error envelope. Client
// errors echo the error text; server errors hide it behind msg.
func writeErr(w http.ResponseWriter, log zerolog.Logger, err error, msg string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Msg(msg)
		middleware.WriteError(w, status, msg)
		return
	}
	middleware.WriteError(w, status, err.Error())
}

// decodeJSON reads a bounded JSON body into dst, writing 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
