package nn

import "math"

// Activation is an element-wise non-linearity.
type Activation int

const (
	Linear Activation = iota
	ReLU
	Sigmoid
	HardSigmoid
	Tanh
)

func (a Activation) String() string {
	switch a {
	case Linear:
		return "linear"
	case ReLU:
		return "relu"
	case Sigmoid:
		return "sigmoid"
	case HardSigmoid:
		return "hard_sigmoid"
	case Tanh:
		return "tanh"
	default:
		return "unknown"
	}
}

// Apply evaluates the activation at z.
func (a Activation) Apply(z float64) float64 {
	switch a {
	case ReLU:
		return math.Max(0, z)
	case Sigmoid:
		return 1 / (1 + math.Exp(-z))
	case HardSigmoid:
		return math.Max(0, math.Min(1, 0.2*z+0.5))
	case Tanh:
		return math.Tanh(z)
	default:
		return z
	}
}

// Deriv returns the derivative at z, given y = Apply(z).
func (a Activation) Deriv(z, y float64) float64 {
	switch a {
	case ReLU:
		if z > 0 {
			return 1
		}
		return 0
	case Sigmoid:
		return y * (1 - y)
	case HardSigmoid:
		if z > -2.5 && z < 2.5 {
			return 0.2
		}
		return 0
	case Tanh:
		return 1 - y*y
	default:
		return 1
	}
}

// applyInto sets y = a(z) element-wise.
func (a Activation) applyInto(y, z []float64) {
	for i, v := range z {
		y[i] = a.Apply(v)
	}
}

// backprop sets dz = grad * a'(z) element-wise.
func (a Activation) backprop(dz, grad, z, y []float64) {
	for i := range grad {
		dz[i] = grad[i] * a.Deriv(z[i], y[i])
	}
}
