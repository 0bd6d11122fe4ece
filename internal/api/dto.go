package api

import (
	"github.com/starford/grove/internal/contentservice"
	"github.com/starford/grove/internal/index"
	"github.com/starford/grove/internal/models"
)

// CollectionResponse wraps one collection. Notes are returned as a tree of roots.
type CollectionResponse struct {
	Name  string                `json:"name" example:"posts" validate:"required"`
	Items []*models.ContentItem `json:"items" validate:"required"`
	Total int                   `json:"total" example:"42" validate:"required"`
}

// ItemDetail is the full item response type (aliased from the domain layer).
type ItemDetail = contentservice.ItemDetail

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// BuildResponse describes the latest build.
type BuildResponse = contentservice.Summary
