// Package kv is the persistent key-value surface that record stores write
// their snapshots to. Values are opaque JSON documents, always overwritten
// whole.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when a key has never been written.
var ErrNotFound = errors.New("key not found")

// Entry is one key/value pair of a multi-key write.
type Entry struct {
	Key   string
	Value []byte
}

// Store is implemented by every backend.
type Store interface {
	// Get returns the stored value or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set overwrites a single key.
	Set(ctx context.Context, key string, value []byte) error

	// SetMulti writes all entries or none of them.
	SetMulti(ctx context.Context, entries []Entry) error

	// Close releases backend resources.
	Close() error
}
