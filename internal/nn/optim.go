package nn

import "math"

// Adam implements the Adam optimiser.
type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64

	// Step is the number of updates applied so far.
	Step int

	moments map[string]*moments
}

type moments struct {
	m, v []float64
}

// NewAdam creates an optimiser with the usual decay rates.
func NewAdam(learningRate float64) *Adam {
	return &Adam{
		LearningRate: learningRate,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-7,
		moments:      make(map[string]*moments),
	}
}

// Moments returns the first and second moment estimates for p,
// allocating zeroed ones on first use. The slices are live.
func (a *Adam) Moments(p *Param) (m, v []float64) {
	mo, ok := a.moments[p.Name]
	if !ok {
		mo = &moments{m: make([]float64, p.Len()), v: make([]float64, p.Len())}
		a.moments[p.Name] = mo
	}
	return mo.m, mo.v
}

// Update applies one step using the gradients accumulated in params,
// scaled by scale, then clears the gradients.
func (a *Adam) Update(params []*Param, scale float64) {
	a.Step++
	t := float64(a.Step)
	lr := a.LearningRate * math.Sqrt(1-math.Pow(a.Beta2, t)) / (1 - math.Pow(a.Beta1, t))

	for _, p := range params {
		m, v := a.Moments(p)
		w := raw(p.Value)
		g := raw(p.Grad)
		for i := range w {
			gi := g[i] * scale
			m[i] = a.Beta1*m[i] + (1-a.Beta1)*gi
			v[i] = a.Beta2*v[i] + (1-a.Beta2)*gi*gi
			w[i] -= lr * m[i] / (math.Sqrt(v[i]) + a.Epsilon)
			g[i] = 0
		}
	}
}

// ZeroGrad clears the gradients of params.
func ZeroGrad(params []*Param) {
	for _, p := range params {
		p.Grad.Zero()
	}
}

// lossEpsilon clips probabilities away from 0 and 1.
const lossEpsilon = 1e-7

// BinaryCrossEntropy returns the loss of predicting p for label y and its
// derivative with respect to p.
func BinaryCrossEntropy(p, y float64) (loss, grad float64) {
	p = math.Max(lossEpsilon, math.Min(1-lossEpsilon, p))
	loss = -(y*math.Log(p) + (1-y)*math.Log(1-p))
	grad = -y/p + (1-y)/(1-p)
	return loss, grad
}
