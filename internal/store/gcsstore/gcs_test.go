package gcsstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"cloud.google.com/go/storage"

	"github.com/discochess/irwin/internal/codec/noopcodec"
	"github.com/discochess/irwin/internal/codec/zstdcodec"
	"github.com/discochess/irwin/internal/store"
)

// memBucket keeps objects in memory. Writes become visible on Close.
type memBucket struct {
	objects map[string][]byte
}

func (m *memBucket) NewReader(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memBucket) NewWriter(ctx context.Context, key string) io.WriteCloser {
	return &memWriter{bucket: m, key: key}
}

type memWriter struct {
	bytes.Buffer
	bucket *memBucket
	key    string
}

func (w *memWriter) Close() error {
	w.bucket.objects[w.key] = w.Bytes()
	return nil
}

func TestWithPrefix(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"prefix", "prefix/"},
		{"prefix/", "prefix/"},
		{"a/b/c", "a/b/c/"},
		{"a/b/c/", "a/b/c/"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			s := &Store{}
			WithPrefix(tt.input)(s)
			if s.prefix != tt.want {
				t.Errorf("prefix = %q, want %q", s.prefix, tt.want)
			}
		})
	}
}

func TestStore_key(t *testing.T) {
	tests := []struct {
		prefix string
		store  *Store
		want   string
	}{
		{"", &Store{codec: zstdcodec.New()}, "models/basicGame.zst"},
		{"irwin/v1", &Store{codec: zstdcodec.New()}, "irwin/v1/models/basicGame.zst"},
		{"", &Store{codec: noopcodec.New()}, "models/basicGame"},
	}

	for _, tt := range tests {
		WithPrefix(tt.prefix)(tt.store)
		if got := tt.store.key("basicGame"); got != tt.want {
			t.Errorf("key() = %q, want %q", got, tt.want)
		}
	}
}

func TestStore_ReadWrite(t *testing.T) {
	b := &memBucket{objects: make(map[string][]byte)}
	s := &Store{bucket: b, codec: zstdcodec.New()}
	ctx := context.Background()

	if _, err := s.Read(ctx, "basicGame"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Read() error = %v, want ErrNotFound", err)
	}

	data := []byte("encoded network")
	if err := s.Write(ctx, "basicGame", data); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if _, ok := b.objects["models/basicGame.zst"]; !ok {
		t.Fatal("object not stored under models/basicGame.zst")
	}

	got, err := s.Read(ctx, "basicGame")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Read() = %q, want %q", got, data)
	}

	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
