package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"quiz-attempt-service/internal/app"
)

// NewRouter wires the websocket and REST endpoints.
func NewRouter(service *app.AttemptService) http.Handler {
	ws := NewWSHandler(service)
	results := NewResultsHandler(service)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/ws", ws.ServeWS)
	r.Get("/attempts/{attemptID}", results.GetAttempt)
	r.Post("/attempts/{attemptID}/submit", results.SubmitAttempt)
	r.Get("/results/{attemptID}", results.GetResult)
	return r
}
