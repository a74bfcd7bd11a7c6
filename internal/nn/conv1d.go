package nn

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Conv1D is a 1D convolution over time with stride 1 and no padding.
// An input of T steps yields T-Kernel+1 output steps.
type Conv1D struct {
	W      *Param
	B      *Param
	Kernel int
	Act    Activation

	in    int
	steps int
	cols  *mat.Dense
	z, y  *mat.Dense
}

// Compile-time check that Conv1D implements Layer.
var _ Layer = (*Conv1D)(nil)

// NewConv1D creates a convolution with the given number of filters.
func NewConv1D(name string, in, filters, kernel int, act Activation, rng *rand.Rand) *Conv1D {
	c := &Conv1D{
		W:      newParam(name+"/kernel", kernel*in, filters),
		B:      newParam(name+"/bias", 1, filters),
		Kernel: kernel,
		Act:    act,
		in:     in,
	}
	c.W.glorotUniform(rng, kernel*in, kernel*filters)
	return c
}

// Forward unrolls the input windows into rows and multiplies them by the
// kernel.
func (c *Conv1D) Forward(x *mat.Dense, train bool) *mat.Dense {
	steps, in := x.Dims()
	if in != c.in {
		panic(fmt.Sprintf("nn: conv1d input has %d features, want %d", in, c.in))
	}
	outSteps := steps - c.Kernel + 1
	if outSteps < 1 {
		panic(fmt.Sprintf("nn: conv1d kernel %d longer than input %d", c.Kernel, steps))
	}

	cols := mat.NewDense(outSteps, c.Kernel*in, nil)
	for t := 0; t < outSteps; t++ {
		dst := row(cols, t)
		for k := 0; k < c.Kernel; k++ {
			copy(dst[k*in:(k+1)*in], row(x, t+k))
		}
	}

	_, filters := c.W.Value.Dims()
	z := mat.NewDense(outSteps, filters, nil)
	z.Mul(cols, c.W.Value)
	addBias(z, c.B.Value)

	y := mat.NewDense(outSteps, filters, nil)
	c.Act.applyInto(raw(y), raw(z))

	c.steps, c.cols, c.z, c.y = steps, cols, z, y
	return y
}

// Backward accumulates gradients and folds the window gradients back
// onto the input steps.
func (c *Conv1D) Backward(grad *mat.Dense) *mat.Dense {
	r, f := grad.Dims()
	dz := mat.NewDense(r, f, nil)
	c.Act.backprop(raw(dz), raw(grad), raw(c.z), raw(c.y))

	accumulateMul(c.W.Grad, c.cols.T(), dz)
	accumulateColumnSums(c.B.Grad, dz)

	var dcols mat.Dense
	dcols.Mul(dz, c.W.Value.T())

	dx := mat.NewDense(c.steps, c.in, nil)
	for t := 0; t < r; t++ {
		src := row(&dcols, t)
		for k := 0; k < c.Kernel; k++ {
			dst := row(dx, t+k)
			for j := 0; j < c.in; j++ {
				dst[j] += src[k*c.in+j]
			}
		}
	}
	return dx
}

// Params returns the kernel and bias.
func (c *Conv1D) Params() []*Param {
	return []*Param{c.W, c.B}
}
