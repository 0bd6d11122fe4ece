package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/grove/internal/content"
	"github.com/starford/grove/internal/contentservice"
	"github.com/starford/grove/internal/models"
)

// Handler holds API route handlers.
type Handler struct {
	svc *contentservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *contentservice.Service) *Handler {
	return &Handler{svc: svc}
}

// GetCollection handles GET /api/collections/{name}.
//
//	@Summary		Get a collection of the latest build
//	@Tags			collections
//	@Produce		json
//	@Param			name	path		string	true	"Collection name"	Enums(posts, notes, pages)
//	@Success		200		{object}	CollectionResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/collections/{name} [get]
func (h *Handler) GetCollection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	items, err := h.svc.Collection(r.Context(), name)
	if err != nil {
		writeError(w, "get collection", err)
		return
	}
	total := len(items)
	if name == content.CollectionNotes {
		total = 0
		content.Walk(items, func(*models.ContentItem) { total++ })
	}
	writeJSON(w, http.StatusOK, CollectionResponse{Name: name, Items: items, Total: total})
}

// GetItem handles GET /api/items/{identifier}.
//
//	@Summary		Get a single item by identifier
//	@Tags			items
//	@Produce		json
//	@Param			identifier	path		string	true	"Item identifier (file slug)"
//	@Success		200			{object}	ItemDetail
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/items/{identifier} [get]
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")
	item, err := h.svc.Item(r.Context(), identifier)
	if err != nil {
		writeError(w, "get item", err)
		return
	}
	etag := `"` + item.ETag + `"`
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	writeJSON(w, http.StatusOK, item)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across built content
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Audit handles GET /api/audit. With ?format=html the report is returned as
// the HTML sent to the notifier.
//
//	@Summary		Editorial audit of all content
//	@Tags			audit
//	@Produce		json,html
//	@Param			format	query		string	false	"Response format"	Enums(json, html)
//	@Success		200		{object}	content.AuditReport
//	@Security		BearerAuth
//	@Router			/audit [get]
func (h *Handler) Audit(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("format") == "html" {
		html, err := h.svc.AuditHTML(r.Context())
		if err != nil {
			writeError(w, "audit", err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(html))
		return
	}
	report, err := h.svc.Audit(r.Context())
	if err != nil {
		writeError(w, "audit", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GetBuild handles GET /api/build.
//
//	@Summary		Summary of the latest build
//	@Tags			build
//	@Produce		json
//	@Success		200	{object}	BuildResponse
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/build [get]
func (h *Handler) GetBuild(w http.ResponseWriter, _ *http.Request) {
	b := h.svc.Current()
	if b == nil {
		writeError(w, "get build", contentservice.ErrNotBuilt)
		return
	}
	writeJSON(w, http.StatusOK, b.Summary)
}

// Rebuild handles POST /api/build.
//
//	@Summary		Rebuild the site now
//	@Tags			build
//	@Produce		json
//	@Success		200	{object}	BuildResponse
//	@Security		BearerAuth
//	@Router			/build [post]
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.Rebuild(r.Context())
	if err != nil {
		writeError(w, "rebuild", err)
		return
	}
	writeJSON(w, http.StatusOK, b.Summary)
}
