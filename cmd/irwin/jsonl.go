package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// maxLineSize bounds a single JSONL record.
const maxLineSize = 16 << 20

// openInput opens path for reading, "-" meaning stdin. Files ending in
// .zst are decompressed.
func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening input: %w", err)
	}
	if !strings.HasSuffix(path, ".zst") {
		return f, nil
	}

	dec, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating zstd reader: %w", err)
	}
	return &zstdFile{Decoder: dec, file: f}, nil
}

type zstdFile struct {
	*zstd.Decoder
	file *os.File
}

func (z *zstdFile) Close() error {
	z.Decoder.Close()
	return z.file.Close()
}

// jsonlBatch is a run of consecutive non-empty lines.
type jsonlBatch[T any] struct {
	Records []T

	// Invalid holds the line numbers that failed to parse. It is only
	// set by lenient reads.
	Invalid []int
}

// readJSONL decodes one T per non-empty line of r and passes them to fn
// in batches of at most size. A line that fails to parse is an error. It
// returns the number of records read.
func readJSONL[T any](ctx context.Context, r io.Reader, size int, fn func([]T) error) (int, error) {
	return scanJSONL(ctx, r, size, false, func(b jsonlBatch[T]) error {
		return fn(b.Records)
	})
}

// scanJSONL groups the non-empty lines of r into batches of at most size
// lines. When lenient is set, lines that fail to parse are listed in the
// batch's Invalid field instead of stopping the scan. It returns the
// number of records decoded.
func scanJSONL[T any](ctx context.Context, r io.Reader, size int, lenient bool, fn func(jsonlBatch[T]) error) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var (
		batch jsonlBatch[T]
		lines int
		total int
		line  int
	)
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			if !lenient {
				return total, fmt.Errorf("line %d: %w", line, err)
			}
			batch.Invalid = append(batch.Invalid, line)
		} else {
			batch.Records = append(batch.Records, v)
			total++
		}
		lines++

		if lines >= size {
			if err := ctx.Err(); err != nil {
				return total, err
			}
			if err := fn(batch); err != nil {
				return total, err
			}
			batch = jsonlBatch[T]{}
			lines = 0
		}
	}
	if err := scanner.Err(); err != nil {
		return total, fmt.Errorf("reading input: %w", err)
	}

	if lines > 0 {
		if err := fn(batch); err != nil {
			return total, err
		}
	}
	return total, nil
}
