package s3store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/discochess/irwin/internal/codec/zstdcodec"
	"github.com/discochess/irwin/internal/store"
)

// fakeS3 keeps objects in memory, keyed by bucket and key.
type fakeS3 struct {
	objects map[string][]byte
	err     error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Bucket+"/"+*in.Key] = data
	return &s3.PutObjectOutput{}, nil
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
			var s settings
			WithPrefix(tt.input)(&s)
			if s.prefix != tt.want {
				t.Errorf("prefix = %q, want %q", s.prefix, tt.want)
			}
		})
	}
}

func TestStore_ReadWrite(t *testing.T) {
	fake := newFakeS3()
	s, err := New(context.Background(), "irwin", zstdcodec.New(), WithClient(fake), WithPrefix("prod"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	data := []byte("encoded network")

	if err := s.Write(ctx, "basicGame", data); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	stored, ok := fake.objects["irwin/prod/models/basicGame.zst"]
	if !ok {
		t.Fatalf("object not stored under expected key, have %d objects", len(fake.objects))
	}
	if bytes.Equal(stored, data) {
		t.Error("stored object is not compressed")
	}

	got, err := s.Read(ctx, "basicGame")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Read() = %q, want %q", got, data)
	}
}

func TestStore_ReadNotFound(t *testing.T) {
	s, err := New(context.Background(), "irwin", zstdcodec.New(), WithClient(newFakeS3()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = s.Read(context.Background(), "basicGame")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Read() error = %v, want ErrNotFound", err)
	}
}

func TestStore_ClientErrors(t *testing.T) {
	boom := errors.New("boom")
	fake := newFakeS3()
	fake.err = boom
	s, err := New(context.Background(), "irwin", zstdcodec.New(), WithClient(fake))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	if err := s.Write(ctx, "basicGame", []byte("x")); !errors.Is(err, boom) {
		t.Errorf("Write() error = %v, want %v", err, boom)
	}
	if _, err := s.Read(ctx, "basicGame"); !errors.Is(err, boom) {
		t.Errorf("Read() error = %v, want %v", err, boom)
	}
}
