package store

import (
	"context"
	"errors"

	"posdoctor/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrUnavailable means the store could not be read at all.
	ErrUnavailable = errors.New("store unavailable")
	// ErrPersistence means a save did not complete; the caller must surface it.
	ErrPersistence = errors.New("persistence failure")
)

// DocumentStore loads and saves the whole POS document. Implementations do
// no validation; a save replaces every key in one step.
type DocumentStore interface {
	Load(ctx context.Context) (domain.Document, error)
	Save(ctx context.Context, doc domain.Document) error
}
