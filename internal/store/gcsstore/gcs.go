// Package gcsstore implements a Google Cloud Storage backend.
package gcsstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/discochess/irwin/internal/codec"
	"github.com/discochess/irwin/internal/store"
)

var _ store.Store = (*Store)(nil)

// bucket is the object access the store needs from a GCS bucket.
type bucket interface {
	NewReader(ctx context.Context, key string) (io.ReadCloser, error)
	NewWriter(ctx context.Context, key string) io.WriteCloser
}

type gcsBucket struct {
	handle *storage.BucketHandle
}

func (b gcsBucket) NewReader(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := b.handle.Object(key).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (b gcsBucket) NewWriter(ctx context.Context, key string) io.WriteCloser {
	w := b.handle.Object(key).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	return w
}

// Store is a Google Cloud Storage backend.
type Store struct {
	client *storage.Client
	bucket bucket
	prefix string
	codec  codec.Codec
}

// New creates a new GCS store.
// The bucket must already exist.
// The codec handles compression/decompression.
func New(ctx context.Context, bucketName string, c codec.Codec, opts ...Option) (*Store, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating GCS client: %w", err)
	}

	s := &Store{
		client: client,
		bucket: gcsBucket{handle: client.Bucket(bucketName)},
		codec:  c,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets a key prefix for all operations.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = strings.TrimSuffix(prefix, "/")
		if s.prefix != "" {
			s.prefix += "/"
		}
	}
}

// Read downloads and decompresses the blob stored under name.
func (s *Store) Read(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reader, err := s.bucket.NewReader(ctx, s.key(name))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("creating reader: %w", err)
	}
	defer reader.Close()

	decompressor, err := s.codec.Reader(reader)
	if err != nil {
		return nil, fmt.Errorf("creating decompressor: %w", err)
	}
	defer decompressor.Close()

	data, err := io.ReadAll(decompressor)
	if err != nil {
		return nil, fmt.Errorf("decompressing %s: %w", name, err)
	}
	return data, nil
}

// Write compresses data and uploads it under name. The object only
// becomes visible once the upload completes.
func (s *Store) Write(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Cancelling the writer's context aborts the upload.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := s.bucket.NewWriter(ctx, s.key(name))
	compressor, err := s.codec.Writer(w)
	if err != nil {
		return fmt.Errorf("creating compressor: %w", err)
	}
	if _, err := compressor.Write(data); err != nil {
		return fmt.Errorf("uploading %s: %w", name, err)
	}
	if err := compressor.Close(); err != nil {
		return fmt.Errorf("finishing compression of %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("uploading %s: %w", name, err)
	}
	return nil
}

// Close releases resources.
func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// key returns the full object key for a named blob.
func (s *Store) key(name string) string {
	return s.prefix + store.Key(name, s.codec)
}
