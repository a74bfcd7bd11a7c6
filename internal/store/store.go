// Package store defines the storage backend interface for model blobs.
package store

import (
	"context"
	"errors"

	"github.com/discochess/irwin/internal/codec"
)

// ErrNotFound is returned when no blob is stored under a name.
var ErrNotFound = errors.New("store: model not found")

// Store defines the interface for storage backends.
// Implementations handle key formats and compression internally.
type Store interface {
	// Read returns the blob stored under name, or ErrNotFound.
	Read(ctx context.Context, name string) ([]byte, error)

	// Write stores data under name, replacing any previous blob.
	Write(ctx context.Context, name string, data []byte) error

	// Close releases any resources held by the store.
	Close() error
}

// Key returns the object key for a named blob compressed with c,
// relative to the store root.
func Key(name string, c codec.Codec) string {
	key := "models/" + name
	if ext := c.Extension(); ext != "" {
		key += "." + ext
	}
	return key
}
