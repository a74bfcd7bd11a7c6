package nn

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Dense is a fully connected layer applied independently to every row
// (time step) of its input.
type Dense struct {
	W   *Param
	B   *Param
	Act Activation

	x, z, y *mat.Dense
}

// Compile-time check that Dense implements Layer.
var _ Layer = (*Dense)(nil)

// NewDense creates a dense layer mapping in features to out features.
func NewDense(name string, in, out int, act Activation, rng *rand.Rand) *Dense {
	d := &Dense{
		W:   newParam(name+"/kernel", in, out),
		B:   newParam(name+"/bias", 1, out),
		Act: act,
	}
	d.W.glorotUniform(rng, in, out)
	return d
}

// Forward computes act(x·W + b).
func (d *Dense) Forward(x *mat.Dense, train bool) *mat.Dense {
	r, _ := x.Dims()
	_, out := d.W.Value.Dims()

	z := mat.NewDense(r, out, nil)
	z.Mul(x, d.W.Value)
	addBias(z, d.B.Value)

	y := mat.NewDense(r, out, nil)
	d.Act.applyInto(raw(y), raw(z))

	d.x, d.z, d.y = x, z, y
	return y
}

// Backward accumulates kernel and bias gradients.
func (d *Dense) Backward(grad *mat.Dense) *mat.Dense {
	r, c := grad.Dims()
	dz := mat.NewDense(r, c, nil)
	d.Act.backprop(raw(dz), raw(grad), raw(d.z), raw(d.y))

	accumulateMul(d.W.Grad, d.x.T(), dz)
	accumulateColumnSums(d.B.Grad, dz)

	in, _ := d.W.Value.Dims()
	dx := mat.NewDense(r, in, nil)
	dx.Mul(dz, d.W.Value.T())
	return dx
}

// Params returns the kernel and bias.
func (d *Dense) Params() []*Param {
	return []*Param{d.W, d.B}
}
