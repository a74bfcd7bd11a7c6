// Package model defines the basic game model: a two-branch network that
// scores a game tensor with the probability that the player was assisted
// by an engine.
//
// The convolutional branch looks for local irregularities in the move
// statistics at three window sizes; the recurrent branch reads the game
// as a sequence. Their 16-wide summaries are concatenated and classified
// by a small dense head.
package model

import (
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/discochess/irwin/internal/nn"
	"github.com/discochess/irwin/internal/tensor"
)

const (
	// Architecture identifies the layer layout in encoded models.
	Architecture = "basicGame"

	// LearningRate is the Adam learning rate the model is compiled with.
	LearningRate = 0.0001

	// summaryWidth is the width of each branch's output.
	summaryWidth = 16
)

// Network is the compiled model: layers plus optimiser state.
// It is safe for concurrent use. Layers keep per-call caches, so
// inference, training and encoding are serialised.
type Network struct {
	// mu guards the layer caches, the weights and the optimiser.
	mu sync.Mutex

	conv      *nn.Sequential
	recurrent *nn.Sequential
	head      *nn.Sequential
	optimizer *nn.Adam
	rng       *rand.Rand
}

// New builds and compiles a freshly initialised network.
// If rng is nil a randomly seeded source is used.
func New(rng *rand.Rand) *Network {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	conv := nn.NewSequential(
		nn.NewConv1D("conv/conv1", tensor.Features, 64, 3, nn.ReLU, rng),
		nn.NewDense("conv/dense1", 64, 32, nn.ReLU, rng),
		nn.NewConv1D("conv/conv2", 32, 64, 5, nn.ReLU, rng),
		nn.NewDense("conv/dense2", 64, 32, nn.Sigmoid, rng),
		nn.NewConv1D("conv/conv3", 32, 64, 10, nn.ReLU, rng),
		nn.NewDense("conv/dense3", 64, 16, nn.ReLU, rng),
		nn.NewDense("conv/dense4", 16, 8, nn.Sigmoid, rng),
		nn.NewFlatten(),
		nn.NewDense("conv/dense5", convSteps*8, 64, nn.ReLU, rng),
		nn.NewDense("conv/output", 64, summaryWidth, nn.Sigmoid, rng),
	)

	recurrent := nn.NewSequential(
		nn.NewDense("lstm/dense1", tensor.Features, 32, nn.ReLU, rng),
		nn.NewDropout(0.3, rng),
		nn.NewDense("lstm/dense2", 32, 16, nn.ReLU, rng),
		nn.NewConv1D("lstm/conv1", 16, 64, 5, nn.Linear, rng),
		nn.NewLSTM("lstm/lstm1", 64, 64, true, rng),
		nn.NewLSTM("lstm/lstm2", 64, 32, true, rng).WithActivations(nn.ReLU, nn.Sigmoid),
		nn.NewConv1D("lstm/conv2", 32, 64, 10, nn.Linear, rng),
		nn.NewLSTM("lstm/lstm3", 64, 32, true, rng),
		nn.NewLSTM("lstm/lstm4", 32, 16, true, rng).WithActivations(nn.ReLU, nn.HardSigmoid),
		nn.NewLSTM("lstm/output", 16, summaryWidth, false, rng).WithActivations(nn.Sigmoid, nn.Sigmoid),
	)

	head := nn.NewSequential(
		nn.NewDense("head/dense1", 2*summaryWidth, 16, nn.Sigmoid, rng),
		nn.NewDense("head/output", 16, 1, nn.Sigmoid, rng),
	)

	return &Network{
		conv:      conv,
		recurrent: recurrent,
		head:      head,
		optimizer: nn.NewAdam(LearningRate),
		rng:       rng,
	}
}

// convSteps is the sequence length left after the three convolutions of
// the convolutional branch.
const convSteps = tensor.Moves - (3 - 1) - (5 - 1) - (10 - 1)

// Params returns every trainable parameter in a stable order. The
// parameters are shared with the network and must not be read while it
// is training.
func (n *Network) Params() []*nn.Param {
	var out []*nn.Param
	out = append(out, n.conv.Params()...)
	out = append(out, n.recurrent.Params()...)
	out = append(out, n.head.Params()...)
	return out
}

// NumParams returns the number of trainable scalars.
func (n *Network) NumParams() int {
	var total int
	for _, p := range n.Params() {
		total += p.Len()
	}
	return total
}

// Step returns how many optimiser updates the network has received.
func (n *Network) Step() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.optimizer.Step
}

// Predict returns the engine-assistance probability for one tensor.
func (n *Network) Predict(t *tensor.Game) float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.predict(t)
}

// PredictBatch scores every tensor.
func (n *Network) PredictBatch(data []*tensor.Game) []float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]float64, len(data))
	for i, t := range data {
		out[i] = n.predict(t)
	}
	return out
}

// predict scores one tensor. n.mu must be held.
func (n *Network) predict(t *tensor.Game) float64 {
	return n.forward(toMatrix(t), false).At(0, 0)
}

// forward returns the 1x1 output for one input matrix.
func (n *Network) forward(x *mat.Dense, train bool) *mat.Dense {
	convOut := n.conv.Forward(x, train)
	recOut := n.recurrent.Forward(x, train)

	merged := mat.NewDense(1, 2*summaryWidth, nil)
	for j := 0; j < summaryWidth; j++ {
		merged.Set(0, j, recOut.At(0, j))
		merged.Set(0, summaryWidth+j, convOut.At(0, j))
	}
	return n.head.Forward(merged, train)
}

// backward propagates the output gradient into both branches.
func (n *Network) backward(grad *mat.Dense) {
	merged := n.head.Backward(grad)

	recGrad := mat.NewDense(1, summaryWidth, nil)
	convGrad := mat.NewDense(1, summaryWidth, nil)
	for j := 0; j < summaryWidth; j++ {
		recGrad.Set(0, j, merged.At(0, j))
		convGrad.Set(0, j, merged.At(0, summaryWidth+j))
	}
	n.recurrent.Backward(recGrad)
	n.conv.Backward(convGrad)
}

func toMatrix(t *tensor.Game) *mat.Dense {
	return mat.NewDense(tensor.Moves, tensor.Features, t.Flat())
}
