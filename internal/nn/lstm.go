package nn

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// LSTM is a long short-term memory layer with gates ordered input,
// forget, cell, output.
type LSTM struct {
	W *Param // input kernel, in x 4*units
	U *Param // recurrent kernel, units x 4*units
	B *Param // bias, 1 x 4*units

	Units           int
	Act             Activation // cell and output activation
	RecurrentAct    Activation // gate activation
	ReturnSequences bool

	x     *mat.Dense
	steps []lstmStep
}

// lstmStep caches the values of one time step for backpropagation.
type lstmStep struct {
	hPrev, cPrev []float64
	z, gates     []float64 // pre-activations and activations, 4*units
	c, actC      []float64
}

// Compile-time check that LSTM implements Layer.
var _ Layer = (*LSTM)(nil)

// NewLSTM creates an LSTM with tanh cell activation and sigmoid gates.
// The recurrent kernel starts orthogonal and the forget-gate bias at 1.
func NewLSTM(name string, in, units int, returnSequences bool, rng *rand.Rand) *LSTM {
	l := &LSTM{
		W:               newParam(name+"/kernel", in, 4*units),
		U:               newParam(name+"/recurrent_kernel", units, 4*units),
		B:               newParam(name+"/bias", 1, 4*units),
		Units:           units,
		Act:             Tanh,
		RecurrentAct:    Sigmoid,
		ReturnSequences: returnSequences,
	}
	l.W.glorotUniform(rng, in, 4*units)
	l.U.orthogonal(rng)
	b := raw(l.B.Value)
	for j := units; j < 2*units; j++ {
		b[j] = 1
	}
	return l
}

// WithActivations overrides the cell and gate activations.
func (l *LSTM) WithActivations(act, recurrent Activation) *LSTM {
	l.Act = act
	l.RecurrentAct = recurrent
	return l
}

// Forward runs the recurrence over every row of x starting from zero
// state. It returns all hidden states, or only the last one unless
// ReturnSequences is set.
func (l *LSTM) Forward(x *mat.Dense, train bool) *mat.Dense {
	steps, _ := x.Dims()
	n := l.Units

	var xw mat.Dense
	xw.Mul(x, l.W.Value)

	u := raw(l.U.Value)
	b := raw(l.B.Value)

	h := make([]float64, n)
	c := make([]float64, n)

	l.x = x
	l.steps = make([]lstmStep, steps)

	var out *mat.Dense
	if l.ReturnSequences {
		out = mat.NewDense(steps, n, nil)
	} else {
		out = mat.NewDense(1, n, nil)
	}

	for t := 0; t < steps; t++ {
		z := make([]float64, 4*n)
		copy(z, row(&xw, t))
		for j := range z {
			z[j] += b[j]
		}
		for k, hk := range h {
			if hk == 0 {
				continue
			}
			uk := u[k*4*n : (k+1)*4*n]
			for j := range z {
				z[j] += hk * uk[j]
			}
		}

		gates := make([]float64, 4*n)
		for j := 0; j < n; j++ {
			gates[j] = l.RecurrentAct.Apply(z[j])
			gates[n+j] = l.RecurrentAct.Apply(z[n+j])
			gates[2*n+j] = l.Act.Apply(z[2*n+j])
			gates[3*n+j] = l.RecurrentAct.Apply(z[3*n+j])
		}

		cNew := make([]float64, n)
		actC := make([]float64, n)
		hNew := make([]float64, n)
		for j := 0; j < n; j++ {
			cNew[j] = gates[n+j]*c[j] + gates[j]*gates[2*n+j]
			actC[j] = l.Act.Apply(cNew[j])
			hNew[j] = gates[3*n+j] * actC[j]
		}

		l.steps[t] = lstmStep{hPrev: h, cPrev: c, z: z, gates: gates, c: cNew, actC: actC}
		h, c = hNew, cNew

		if l.ReturnSequences {
			copy(row(out, t), h)
		}
	}
	if !l.ReturnSequences {
		copy(row(out, 0), h)
	}
	return out
}

// Backward propagates through time.
func (l *LSTM) Backward(grad *mat.Dense) *mat.Dense {
	steps := len(l.steps)
	n := l.Units

	u := raw(l.U.Value)
	du := raw(l.U.Grad)
	db := raw(l.B.Grad)

	dz := mat.NewDense(steps, 4*n, nil)
	dhNext := make([]float64, n)
	dcNext := make([]float64, n)
	dh := make([]float64, n)

	for t := steps - 1; t >= 0; t-- {
		s := l.steps[t]

		copy(dh, dhNext)
		switch {
		case l.ReturnSequences:
			for j, v := range row(grad, t) {
				dh[j] += v
			}
		case t == steps-1:
			for j, v := range row(grad, 0) {
				dh[j] += v
			}
		}

		dzt := row(dz, t)
		for j := 0; j < n; j++ {
			i, f, g, o := s.gates[j], s.gates[n+j], s.gates[2*n+j], s.gates[3*n+j]

			dzt[3*n+j] = dh[j] * s.actC[j] * l.RecurrentAct.Deriv(s.z[3*n+j], o)

			dc := dh[j]*o*l.Act.Deriv(s.c[j], s.actC[j]) + dcNext[j]
			dzt[j] = dc * g * l.RecurrentAct.Deriv(s.z[j], i)
			dzt[n+j] = dc * s.cPrev[j] * l.RecurrentAct.Deriv(s.z[n+j], f)
			dzt[2*n+j] = dc * i * l.Act.Deriv(s.z[2*n+j], g)
			dcNext[j] = dc * f
		}

		for j, v := range dzt {
			db[j] += v
		}
		for k, hk := range s.hPrev {
			uk := u[k*4*n : (k+1)*4*n]
			duk := du[k*4*n : (k+1)*4*n]
			var sum float64
			for j, v := range dzt {
				duk[j] += hk * v
				sum += uk[j] * v
			}
			dhNext[k] = sum
		}
	}

	accumulateMul(l.W.Grad, l.x.T(), dz)

	in, _ := l.W.Value.Dims()
	dx := mat.NewDense(steps, in, nil)
	dx.Mul(dz, l.W.Value.T())
	return dx
}

// Params returns the input kernel, recurrent kernel and bias.
func (l *LSTM) Params() []*Param {
	return []*Param{l.W, l.U, l.B}
}
