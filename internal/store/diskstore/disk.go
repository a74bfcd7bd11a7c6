// Package diskstore implements a disk-based filesystem storage backend.
package diskstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/discochess/irwin/internal/codec"
	"github.com/discochess/irwin/internal/store"
)

var _ store.Store = (*Store)(nil)

// Store is a disk-based filesystem storage backend.
type Store struct {
	root  string
	codec codec.Codec
}

// New creates a new disk store rooted at the given directory.
// The directory must exist. The codec handles compression/decompression.
func New(root string, codec codec.Codec) (*Store, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	return &Store{
		root:  root,
		codec: codec,
	}, nil
}

// Read reads and decompresses the blob stored under name.
func (s *Store) Read(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	compressed, err := os.ReadFile(s.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	data, err := codec.Decompress(s.codec, compressed)
	if err != nil {
		return nil, fmt.Errorf("decompressing %s: %w", name, err)
	}
	return data, nil
}

// Write compresses data and stores it under name. The file is written
// to a temporary sibling and renamed into place, so readers never see a
// partial blob.
func (s *Store) Write(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	compressed, err := codec.Compress(s.codec, data)
	if err != nil {
		return fmt.Errorf("compressing %s: %w", name, err)
	}

	path := s.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating model directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming %s into place: %w", name, err)
	}
	return nil
}

// Close releases any resources held by the store.
func (s *Store) Close() error {
	return nil
}

// Path returns the filesystem path of the blob stored under name.
func (s *Store) Path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(store.Key(name, s.codec)))
}
