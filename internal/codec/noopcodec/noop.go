// Package noopcodec provides a codec that stores data uncompressed.
package noopcodec

import (
	"io"

	"github.com/discochess/irwin/internal/codec"
)

var _ codec.Codec = (*Codec)(nil)

// Codec implements no compression.
type Codec struct{}

// New returns a new no-op codec.
func New() *Codec {
	return &Codec{}
}

// Name returns "none".
func (c *Codec) Name() string {
	return "none"
}

// Reader returns r unchanged.
func (c *Codec) Reader(r io.Reader) (io.ReadCloser, error) {
	if rc, ok := r.(io.ReadCloser); ok {
		return rc, nil
	}
	return io.NopCloser(r), nil
}

// Writer returns w unchanged. Closing it does not close w.
func (c *Codec) Writer(w io.Writer) (io.WriteCloser, error) {
	return nopWriteCloser{w}, nil
}

// Extension returns empty string.
func (c *Codec) Extension() string {
	return ""
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
