// Package nn implements the neural-network building blocks the game
// model is assembled from: time-distributed dense layers, 1D
// convolutions, LSTMs, dropout and flattening, trained with Adam on a
// binary cross-entropy loss.
//
// Every layer processes one sample at a time. A sample is a matrix whose
// rows are time steps and whose columns are features; vectors are 1-row
// matrices. Forward caches what Backward needs, so each Forward must be
// followed by at most one Backward before the next Forward.
package nn

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Layer is a differentiable transformation of a sample.
type Layer interface {
	// Forward computes the layer output. train enables training-only
	// behaviour such as dropout.
	Forward(x *mat.Dense, train bool) *mat.Dense

	// Backward takes the gradient of the loss with respect to the last
	// output, accumulates parameter gradients and returns the gradient
	// with respect to the last input.
	Backward(grad *mat.Dense) *mat.Dense

	// Params returns the trainable parameters.
	Params() []*Param
}

// Param is a trainable tensor with its accumulated gradient.
type Param struct {
	Name  string
	Value *mat.Dense
	Grad  *mat.Dense
}

func newParam(name string, rows, cols int) *Param {
	return &Param{
		Name:  name,
		Value: mat.NewDense(rows, cols, nil),
		Grad:  mat.NewDense(rows, cols, nil),
	}
}

// Len returns the number of scalar values in the parameter.
func (p *Param) Len() int {
	r, c := p.Value.Dims()
	return r * c
}

// glorotUniform fills p with values drawn from U(-l, l), l = sqrt(6/(in+out)).
func (p *Param) glorotUniform(rng *rand.Rand, fanIn, fanOut int) {
	limit := math.Sqrt(6 / float64(fanIn+fanOut))
	v := raw(p.Value)
	for i := range v {
		v[i] = (rng.Float64()*2 - 1) * limit
	}
}

// orthogonal fills p with a random semi-orthogonal matrix: its rows or
// its columns, whichever are fewer, are orthonormal. The matrix is the Q
// factor of a Gaussian matrix with signs fixed by R's diagonal.
func (p *Param) orthogonal(rng *rand.Rand) {
	rows, cols := p.Value.Dims()
	m, n := max(rows, cols), min(rows, cols)

	a := mat.NewDense(m, n, nil)
	v := raw(a)
	for i := range v {
		v[i] = rng.NormFloat64()
	}

	var qr mat.QR
	qr.Factorize(a)
	var q, r mat.Dense
	qr.QTo(&q)
	qr.RTo(&r)

	for j := 0; j < n; j++ {
		sign := 1.0
		if r.At(j, j) < 0 {
			sign = -1
		}
		for i := 0; i < m; i++ {
			if rows >= cols {
				p.Value.Set(i, j, sign*q.At(i, j))
			} else {
				p.Value.Set(j, i, sign*q.At(i, j))
			}
		}
	}
}

// raw returns the backing slice of a contiguous matrix.
func raw(m *mat.Dense) []float64 {
	rm := m.RawMatrix()
	if rm.Stride != rm.Cols {
		panic(fmt.Sprintf("nn: matrix not contiguous (stride %d, cols %d)", rm.Stride, rm.Cols))
	}
	return rm.Data[:rm.Rows*rm.Cols]
}

// row returns row i of a contiguous matrix as a slice.
func row(m *mat.Dense, i int) []float64 {
	rm := m.RawMatrix()
	return rm.Data[i*rm.Stride : i*rm.Stride+rm.Cols]
}

// addBias adds the 1-row bias b to every row of m.
func addBias(m *mat.Dense, b *mat.Dense) {
	bias := raw(b)
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		rw := row(m, i)
		for j := range rw {
			rw[j] += bias[j]
		}
	}
}

// accumulateColumnSums adds the column sums of m to the 1-row dst.
func accumulateColumnSums(dst, m *mat.Dense) {
	d := raw(dst)
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		for j, v := range row(m, i) {
			d[j] += v
		}
	}
}

// accumulateMul adds a*b to dst.
func accumulateMul(dst *mat.Dense, a, b mat.Matrix) {
	var tmp mat.Dense
	tmp.Mul(a, b)
	dst.Add(dst, &tmp)
}

// Sequential chains layers.
type Sequential struct {
	Layers []Layer
}

// NewSequential creates a Sequential from layers.
func NewSequential(layers ...Layer) *Sequential {
	return &Sequential{Layers: layers}
}

// Forward runs the layers in order.
func (s *Sequential) Forward(x *mat.Dense, train bool) *mat.Dense {
	for _, l := range s.Layers {
		x = l.Forward(x, train)
	}
	return x
}

// Backward runs the layers in reverse order.
func (s *Sequential) Backward(grad *mat.Dense) *mat.Dense {
	for i := len(s.Layers) - 1; i >= 0; i-- {
		grad = s.Layers[i].Backward(grad)
	}
	return grad
}

// Params returns the parameters of all layers in order.
func (s *Sequential) Params() []*Param {
	var out []*Param
	for _, l := range s.Layers {
		out = append(out, l.Params()...)
	}
	return out
}

// Compile-time check that Sequential implements Layer.
var _ Layer = (*Sequential)(nil)
