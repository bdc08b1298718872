package handlers

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/dvloznov/moliya/internal/api/middleware"
	"github.com/dvloznov/moliya/internal/jobs"
)

// SummaryHandler serves the dashboard figures and advice.
type SummaryHandler struct {
	summary Summarizer
	advice  AdviceSource
	jobs    jobs.JobStore
	log     zerolog.Logger
}

// NewSummaryHandler creates a new summary handler. store may be nil.
func NewSummaryHandler(summary Summarizer, advice AdviceSource, store jobs.JobStore, log zerolog.Logger) *SummaryHandler {
	return &SummaryHandler{summary: summary, advice: advice, jobs: store, log: log}
}

// Summary handles GET /api/summary
func (h *SummaryHandler) Summary(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, h.summary.Summary())
}

// Advice handles GET /api/advice
func (h *SummaryHandler) Advice(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, h.advice.Current())
}

// ListAdviceJobs handles GET /api/advice/jobs
func (h *SummaryHandler) ListAdviceJobs(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		middleware.WriteError(w, http.StatusNotFound, "Job history is disabled")
		return
	}

	query := r.URL.Query()
	filter := jobs.JobFilter{
		Status: jobs.JobStatus(query.Get("status")),
	}
	if limit, err := strconv.Atoi(query.Get("limit")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(query.Get("offset")); err == nil {
		filter.Offset = offset
	}

	jobsList, err := h.jobs.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
