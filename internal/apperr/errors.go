// Package apperr holds the sentinel errors shared across grove packages.
package apperr

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrUnresolvedParent    = errors.New("unresolved parent reference")
	ErrDuplicateIdentifier = errors.New("duplicate identifier")
	ErrCycle               = errors.New("parent cycle")
	ErrUnknownCollection   = errors.New("unknown collection")
)
