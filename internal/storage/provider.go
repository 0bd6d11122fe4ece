// Package storage gives the pipeline file access confined to one directory:
// the content root on the way in and the output site on the way out.
package storage

import "github.com/starford/grove/internal/models"

// Provider is the interface for file operations rooted at one directory.
// Paths are slash-separated and relative to the root.
type Provider interface {
	Root() string
	// Glob returns files matching any of the doublestar patterns, sorted by
	// path. Metadata carries no checksum; callers hash what they read.
	Glob(patterns ...string) ([]models.ContentMetadata, error)
	Read(path string) ([]byte, error)
	// Write replaces path atomically, creating parent directories.
	Write(path string, content []byte) error
	Delete(path string) error
}
