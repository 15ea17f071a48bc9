package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/skillforge/liveclass/internal/metrics"
)

// APIPrefix is where the REST resources are mounted.
const APIPrefix = "/api"

// NewRouter wires the REST handler, the realtime endpoint and the operational
// routes. realtime may be nil.
func NewRouter(h *Handler, realtime http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route(APIPrefix, func(api chi.Router) {
		api.Use(middleware.Logger)
		api.Use(Identity)
		h.RegisterRoutes(api)
	})

	if realtime != nil {
		r.Handle("/ws/live-class/{id}/", realtime)
	}

	return r
}
