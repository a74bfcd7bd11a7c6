package model

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
)

// FormatVersion is the encoding version written by Encode.
const FormatVersion = "irwin.model.v1"

// ErrInvalidModel is returned when an encoded model cannot be decoded.
var ErrInvalidModel = errors.New("model: invalid encoded model")

// Header describes an encoded model. It is written as a single JSON line
// ahead of the little-endian float64 payload, which holds for each tensor
// its values followed by the optimiser's first and second moments.
type Header struct {
	Version      string        `json:"version"`
	Architecture string        `json:"architecture"`
	Step         int           `json:"step"`
	Tensors      []TensorEntry `json:"tensors"`
}

// TensorEntry names one parameter tensor and its shape.
type TensorEntry struct {
	Name string `json:"name"`
	Rows int    `json:"rows"`
	Cols int    `json:"cols"`
}

// Header returns the header Encode would write.
func (n *Network) Header() Header {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.header()
}

func (n *Network) header() Header {
	h := Header{
		Version:      FormatVersion,
		Architecture: Architecture,
		Step:         n.optimizer.Step,
	}
	for _, p := range n.Params() {
		r, c := p.Value.Dims()
		h.Tensors = append(h.Tensors, TensorEntry{Name: p.Name, Rows: r, Cols: c})
	}
	return h
}

// Encode writes the network and its optimiser state to w.
func (n *Network) Encode(w io.Writer) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	bw := bufio.NewWriter(w)
	if err := json.NewEncoder(bw).Encode(n.header()); err != nil {
		return fmt.Errorf("encoding header: %w", err)
	}
	for _, p := range n.Params() {
		m, v := n.optimizer.Moments(p)
		for _, values := range [][]float64{p.Value.RawMatrix().Data, m, v} {
			if err := binary.Write(bw, binary.LittleEndian, values); err != nil {
				return fmt.Errorf("encoding %s: %w", p.Name, err)
			}
		}
	}
	return bw.Flush()
}

// ReadHeader reads just the header of an encoded model.
func ReadHeader(r io.Reader) (Header, error) {
	return readHeader(bufio.NewReader(r))
}

func readHeader(br *bufio.Reader) (Header, error) {
	line, err := br.ReadBytes('\n')
	if err != nil {
		return Header{}, fmt.Errorf("%w: reading header: %v", ErrInvalidModel, err)
	}
	var h Header
	if err := json.Unmarshal(line, &h); err != nil {
		return Header{}, fmt.Errorf("%w: parsing header: %v", ErrInvalidModel, err)
	}
	if h.Version != FormatVersion {
		return Header{}, fmt.Errorf("%w: unsupported version %q", ErrInvalidModel, h.Version)
	}
	if h.Architecture != Architecture {
		return Header{}, fmt.Errorf("%w: unknown architecture %q", ErrInvalidModel, h.Architecture)
	}
	return h, nil
}

// Decode reads a network written by Encode. The rng drives dropout and
// shuffling of further training; if nil a randomly seeded one is used.
func Decode(r io.Reader, rng *rand.Rand) (*Network, error) {
	br := bufio.NewReader(r)
	h, err := readHeader(br)
	if err != nil {
		return nil, err
	}

	n := New(rng)
	params := n.Params()
	if len(h.Tensors) != len(params) {
		return nil, fmt.Errorf("%w: %d tensors, want %d", ErrInvalidModel, len(h.Tensors), len(params))
	}
	for i, p := range params {
		rows, cols := p.Value.Dims()
		e := h.Tensors[i]
		if e.Name != p.Name || e.Rows != rows || e.Cols != cols {
			return nil, fmt.Errorf("%w: tensor %d is %s %dx%d, want %s %dx%d",
				ErrInvalidModel, i, e.Name, e.Rows, e.Cols, p.Name, rows, cols)
		}
	}

	for _, p := range params {
		m, v := n.optimizer.Moments(p)
		for _, values := range [][]float64{p.Value.RawMatrix().Data, m, v} {
			if err := binary.Read(br, binary.LittleEndian, values); err != nil {
				return nil, fmt.Errorf("%w: reading %s: %v", ErrInvalidModel, p.Name, err)
			}
		}
	}
	n.optimizer.Step = h.Step

	return n, nil
}
