// Package s3store implements an AWS S3 storage backend.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/discochess/irwin/internal/codec"
	"github.com/discochess/irwin/internal/store"
)

var _ store.Store = (*Store)(nil)

// API is the subset of the S3 client the store uses.
type API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store is an AWS S3 storage backend.
type Store struct {
	client API
	bucket string
	prefix string
	codec  codec.Codec
}

type settings struct {
	client   API
	prefix   string
	region   string
	endpoint string
}

// Option configures a Store.
type Option func(*settings)

// WithPrefix sets a key prefix for all operations.
func WithPrefix(prefix string) Option {
	return func(s *settings) {
		s.prefix = normalizePrefix(prefix)
	}
}

// WithRegion sets the AWS region.
func WithRegion(region string) Option {
	return func(s *settings) {
		s.region = region
	}
}

// WithEndpoint sets a custom endpoint (for S3-compatible services like
// MinIO). Path-style addressing is used with a custom endpoint.
func WithEndpoint(endpoint string) Option {
	return func(s *settings) {
		s.endpoint = endpoint
	}
}

// WithClient uses client instead of one built from the AWS default
// configuration. Region and endpoint options are then ignored.
func WithClient(client API) Option {
	return func(s *settings) {
		s.client = client
	}
}

// New creates a new S3 store.
// The bucket must already exist.
// The codec handles compression/decompression.
func New(ctx context.Context, bucketName string, c codec.Codec, opts ...Option) (*Store, error) {
	var set settings
	for _, opt := range opts {
		opt(&set)
	}

	if set.client == nil {
		var loadOpts []func(*config.LoadOptions) error
		if set.region != "" {
			loadOpts = append(loadOpts, config.WithRegion(set.region))
		}
		cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		endpoint := set.endpoint
		set.client = s3.NewFromConfig(cfg, func(o *s3.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
				o.UsePathStyle = true
			}
		})
	}

	return &Store{
		client: set.client,
		bucket: bucketName,
		prefix: set.prefix,
		codec:  c,
	}, nil
}

// Read downloads and decompresses the blob stored under name.
func (s *Store) Read(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	defer result.Body.Close()

	decompressor, err := s.codec.Reader(result.Body)
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

// Write compresses data and uploads it under name. S3 replaces objects
// atomically.
func (s *Store) Write(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	compressed, err := codec.Compress(s.codec, data)
	if err != nil {
		return fmt.Errorf("compressing %s: %w", name, err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(name)),
		Body:          bytes.NewReader(compressed),
		ContentLength: aws.Int64(int64(len(compressed))),
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", name, err)
	}
	return nil
}

// Close releases resources.
func (s *Store) Close() error {
	// S3 client doesn't need explicit closing.
	return nil
}

// key returns the full object key for a named blob.
func (s *Store) key(name string) string {
	return s.prefix + store.Key(name, s.codec)
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return prefix
}
