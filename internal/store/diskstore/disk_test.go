package diskstore

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/discochess/irwin/internal/codec/noopcodec"
	"github.com/discochess/irwin/internal/codec/zstdcodec"
	"github.com/discochess/irwin/internal/store"
)

func TestStore_ReadWrite(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, zstdcodec.New())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	data := bytes.Repeat([]byte("weights"), 1000)

	if err := s.Write(ctx, "basicGame", data); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	want := filepath.Join(dir, "models", "basicGame.zst")
	if s.Path("basicGame") != want {
		t.Errorf("Path() = %q, want %q", s.Path("basicGame"), want)
	}
	info, err := os.Stat(want)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Size() >= int64(len(data)) {
		t.Errorf("stored %d bytes, want compressed below %d", info.Size(), len(data))
	}

	got, err := s.Read(ctx, "basicGame")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Read() = %d bytes, want %d", len(got), len(data))
	}
}

func TestStore_WriteOverwrites(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, noopcodec.New())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	for _, v := range []string{"first", "second"} {
		if err := s.Write(ctx, "basicGame", []byte(v)); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	got, err := s.Read(ctx, "basicGame")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(got) != "second" {
		t.Errorf("Read() = %q, want %q", got, "second")
	}

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Join(dir, "models"))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "basicGame" {
		t.Errorf("models dir holds %v, want only basicGame", entries)
	}
}

func TestStore_ReadNotFound(t *testing.T) {
	s, err := New(t.TempDir(), noopcodec.New())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = s.Read(context.Background(), "basicGame")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Read() error = %v, want ErrNotFound", err)
	}
}

func TestStore_Cancelled(t *testing.T) {
	s, err := New(t.TempDir(), noopcodec.New())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Write(ctx, "basicGame", []byte("x")); !errors.Is(err, context.Canceled) {
		t.Errorf("Write() error = %v, want context.Canceled", err)
	}
	if _, err := s.Read(ctx, "basicGame"); !errors.Is(err, context.Canceled) {
		t.Errorf("Read() error = %v, want context.Canceled", err)
	}
}

func TestNew_InvalidPath(t *testing.T) {
	_, err := New("/nonexistent/path", noopcodec.New())
	if err == nil {
		t.Error("New() with invalid path should return error")
	}
}

func TestNew_NotDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	_, err := New(path, noopcodec.New())
	if err == nil {
		t.Error("New() with file (not directory) should return error")
	}
}
