package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/moliya/internal/api/middleware"
	"github.com/dvloznov/moliya/internal/domain"
	"github.com/dvloznov/moliya/internal/pipeline"
)

// ChatHandler exposes the action pipeline.
type ChatHandler struct {
	pipeline Pipeline
	log      zerolog.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(p Pipeline, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{pipeline: p, log: log}
}

// PendingResponse describes the pipeline after a call.
type PendingResponse struct {
	State   pipeline.State        `json:"state"`
	Pending *domain.PendingAction `json:"pending"`
}

// ChatResponse is the reply to POST /api/chat.
type ChatResponse struct {
	Response domain.AIResponse `json:"response"`
	PendingResponse
}

func (h *ChatHandler) pendingResponse() PendingResponse {
	out := PendingResponse{State: h.pipeline.State()}
	if p, ok := h.pipeline.Pending(); ok {
		out.Pending = &p
	}
	return out
}

// Chat handles POST /api/chat
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.pipeline.Submit(r.Context(), req.Text)
	if err != nil {
		writeErr(w, h.log, err, "Failed to process message")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, ChatResponse{
		Response:        resp,
		PendingResponse: h.pendingResponse(),
	})
}

// Pending handles GET /api/pending
func (h *ChatHandler) Pending(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, h.pendingResponse())
}

// Confirm handles POST /api/pending/confirm
func (h *ChatHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	committed, err := h.pipeline.Confirm(r.Context())
	if err != nil {
		writeErr(w, h.log, err, "Failed to save transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, committed)
}

// Cancel handles POST /api/pending/cancel
func (h *ChatHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	cancelled := h.pipeline.Cancel()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"cancelled": cancelled,
		"state":     h.pipeline.State(),
	})
}

// Clarify handles POST /api/pending/clarify
func (h *ChatHandler) Clarify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Field domain.ClarificationField `json:"field"`
		Value string                    `json:"value"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if _, err := h.pipeline.Clarify(req.Field, req.Value); err != nil {
		writeErr(w, h.log, err, "Failed to apply clarification")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, h.pendingResponse())
}
