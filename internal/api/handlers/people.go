package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/moliya/internal/api/middleware"
	"github.com/dvloznov/moliya/internal/balance"
)

// PeopleHandler handles the roster of debt counterparties.
type PeopleHandler struct {
	ledger  Ledger
	summary Summarizer
	log     zerolog.Logger
}

// NewPeopleHandler creates a new people handler.
func NewPeopleHandler(ledger Ledger, summary Summarizer, log zerolog.Logger) *PeopleHandler {
	return &PeopleHandler{ledger: ledger, summary: summary, log: log}
}

// ListPeople handles GET /api/people
func (h *PeopleHandler) ListPeople(w http.ResponseWriter, r *http.Request) {
	people := h.summary.Summary().People
	if people == nil {
		people = []balance.PersonBalanceView{}
	}
	middleware.WriteJSON(w, http.StatusOK, people)
}

// AddPerson handles POST /api/people
func (h *PeopleHandler) AddPerson(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	person, err := h.ledger.AddPerson(r.Context(), req.Name)
	if err != nil {
		writeErr(w, h.log, err, "Failed to add person")
		return
	}

	h.log.Info().Str("person_name", person.Name).Msg("person added")
	middleware.WriteJSON(w, http.StatusCreated, balance.PersonBalanceView{ID: person.ID, Name: person.Name})
}
