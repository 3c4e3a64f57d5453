package http

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

// ResultsHandler serves stored results and live attempt snapshots over REST.
type ResultsHandler struct {
	service *app.AttemptService
}

func NewResultsHandler(service *app.AttemptService) *ResultsHandler {
	return &ResultsHandler{service: service}
}

func (h *ResultsHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Result(r.Context(), chi.URLParam(r, "attemptID"))
	if errors.Is(err, domain.ErrResultNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load result")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *ResultsHandler) GetAttempt(w http.ResponseWriter, r *http.Request) {
	attempt, err := h.service.Locate(r.Context(), chi.URLParam(r, "attemptID"))
	if errors.Is(err, domain.ErrAttemptElsewhere) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, attempt.Snapshot())
}

type submitRequest struct {
	Confirm bool `json:"confirm"`
}

// SubmitAttempt submits a live attempt, or retries saving one whose save failed. An empty
// body submits without confirmation.
func (h *ResultsHandler) SubmitAttempt(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	attemptID := chi.URLParam(r, "attemptID")
	res, err := h.service.Submit(r.Context(), attemptID, req.Confirm)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, domain.ErrAttemptNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrAttemptClosed):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, domain.ErrConfirmationRequired),
		errors.Is(err, domain.ErrSubmissionInProgress),
		errors.Is(err, domain.ErrAttemptNotStarted),
		errors.Is(err, domain.ErrAttemptElsewhere):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("submit attempt %s: %v", attemptID, err)
		writeError(w, http.StatusServiceUnavailable, "result not saved; retry")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorPayload{Message: msg})
}
