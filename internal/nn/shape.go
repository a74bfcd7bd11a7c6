package nn

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Flatten reshapes a T x C sample into a single 1 x T*C row.
type Flatten struct {
	rows, cols int
}

// Compile-time check that Flatten implements Layer.
var _ Layer = (*Flatten)(nil)

// NewFlatten creates a Flatten layer.
func NewFlatten() *Flatten {
	return &Flatten{}
}

// Forward copies x into one row.
func (f *Flatten) Forward(x *mat.Dense, train bool) *mat.Dense {
	f.rows, f.cols = x.Dims()
	out := make([]float64, f.rows*f.cols)
	for i := 0; i < f.rows; i++ {
		copy(out[i*f.cols:], row(x, i))
	}
	return mat.NewDense(1, f.rows*f.cols, out)
}

// Backward restores the input shape.
func (f *Flatten) Backward(grad *mat.Dense) *mat.Dense {
	data := make([]float64, f.rows*f.cols)
	copy(data, raw(grad))
	return mat.NewDense(f.rows, f.cols, data)
}

// Params returns nil.
func (f *Flatten) Params() []*Param { return nil }

// Dropout zeroes a random fraction of its input while training and
// rescales the rest so the expected activation is unchanged.
type Dropout struct {
	Rate float64

	rng  *rand.Rand
	mask []float64
}

// Compile-time check that Dropout implements Layer.
var _ Layer = (*Dropout)(nil)

// NewDropout creates a dropout layer dropping the given fraction.
func NewDropout(rate float64, rng *rand.Rand) *Dropout {
	return &Dropout{Rate: rate, rng: rng}
}

// Forward applies a fresh mask when training and is the identity otherwise.
func (d *Dropout) Forward(x *mat.Dense, train bool) *mat.Dense {
	if !train || d.Rate <= 0 {
		d.mask = nil
		return x
	}

	r, c := x.Dims()
	keep := 1 - d.Rate
	d.mask = make([]float64, r*c)
	for i := range d.mask {
		if d.rng.Float64() < keep {
			d.mask[i] = 1 / keep
		}
	}

	y := mat.NewDense(r, c, nil)
	yv, xv := raw(y), raw(x)
	for i := range yv {
		yv[i] = xv[i] * d.mask[i]
	}
	return y
}

// Backward applies the mask of the last Forward.
func (d *Dropout) Backward(grad *mat.Dense) *mat.Dense {
	if d.mask == nil {
		return grad
	}
	r, c := grad.Dims()
	dx := mat.NewDense(r, c, nil)
	dv, gv := raw(dx), raw(grad)
	for i := range dv {
		dv[i] = gv[i] * d.mask[i]
	}
	return dx
}

// Params returns nil.
func (d *Dropout) Params() []*Param { return nil }
