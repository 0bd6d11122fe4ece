package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/grove/internal/contentservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *contentservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/collections/{name}", h.GetCollection)
	r.Get("/items/{identifier}", h.GetItem)
	r.Get("/search", h.Search)
	r.Get("/audit", h.Audit)
	r.Get("/build", h.GetBuild)
	r.Post("/build", h.Rebuild)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
