// Package store provides the entity document store used by the event
// handlers. Entities are JSON documents addressed by (kind, id); there are no
// transactions spanning multiple entities.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by implementations for internal lookups; Get
// reports absence through its boolean instead so handlers can treat a missing
// entity as a defined no-op rather than an error.
var ErrNotFound = errors.New("not found")

// Store is a keyed JSON document store.
type Store interface {
	// Get loads the entity into out and reports whether it existed.
	Get(ctx context.Context, kind, id string, out any) (bool, error)

	// Put creates or replaces the entity.
	Put(ctx context.Context, kind, id string, v any) error

	// Delete removes the entity. Deleting an absent entity is not an error.
	Delete(ctx context.Context, kind, id string) error
}
