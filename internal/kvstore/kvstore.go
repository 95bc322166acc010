// Package kvstore defines the durable string-keyed store the derived-state
// cache persists through.
//
// Stores offer whole-value reads and writes only: no transactions, no TTLs,
// no partial merges. Keys are opaque strings; the cache namespaces them per
// user.
package kvstore

import (
	"context"
	"errors"
)

// ErrNotFound indicates a requested key is absent.
var ErrNotFound = errors.New("key not found")

// Store persists string values by key.
type Store interface {
	// Get returns the value for key or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set replaces the value for key.
	Set(ctx context.Context, key string, value string) error
	// Delete removes key; deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// Closer is implemented by stores holding files or connections.
type Closer interface {
	Close() error
}
