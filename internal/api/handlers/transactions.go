package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/moliya/internal/api/middleware"
	"github.com/dvloznov/moliya/internal/domain"
)

// TransactionsHandler handles transaction-related endpoints.
type TransactionsHandler struct {
	ledger Ledger
	editor Editor
	log    zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(ledger Ledger, editor Editor, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{ledger: ledger, editor: editor, log: log}
}

// ListTransactions handles GET /api/transactions
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs := h.ledger.Transactions()
	// Return array directly for frontend compatibility
	if txs == nil {
		txs = []domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, txs)
}

// UpdateTransaction handles PUT /api/transactions/{id}
func (h *TransactionsHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request, id string) {
	var in domain.EditInput
	if !decodeJSON(w, r, &in) {
		return
	}

	tx, err := h.editor.EditTransaction(r.Context(), id, in)
	if err != nil {
		writeErr(w, h.log, err, "Failed to update transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, tx)
}

// DeleteTransaction handles DELETE /api/transactions/{id}?confirm=true
func (h *TransactionsHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request, id string) {
	if r.URL.Query().Get("confirm") != "true" {
		middleware.WriteError(w, http.StatusPreconditionRequired, "Deletion must be confirmed with ?confirm=true")
		return
	}

	if err := h.editor.DeleteTransaction(r.Context(), id); err != nil {
		writeErr(w, h.log, err, "Failed to delete transaction")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
