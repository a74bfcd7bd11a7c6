package model

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/discochess/irwin/internal/nn"
	"github.com/discochess/irwin/internal/tensor"
)

var (
	// ErrEmptyBatch is returned when there is nothing to train on.
	ErrEmptyBatch = errors.New("model: empty training batch")

	// ErrLabelMismatch is returned when data and labels differ in length.
	ErrLabelMismatch = errors.New("model: data and labels differ in length")
)

// Default fitting parameters.
const (
	DefaultBatchSize       = 32
	DefaultValidationSplit = 0.2
)

// FitOptions configures Fit.
type FitOptions struct {
	Epochs    int
	BatchSize int

	// ValidationSplit is the fraction of samples, taken from the end of
	// the data before any shuffling, held out for validation.
	ValidationSplit float64

	// OnEpoch, if set, is called after every epoch.
	OnEpoch func(EpochStats)
}

// EpochStats holds the metrics of one epoch.
type EpochStats struct {
	Epoch       int
	Loss        float64
	Accuracy    float64
	ValLoss     float64
	ValAccuracy float64
	Samples     int
	ValSamples  int
}

// History is the per-epoch record of a Fit call.
type History struct {
	Epochs []EpochStats
}

// Last returns the stats of the final epoch, or zero stats if none ran.
func (h History) Last() EpochStats {
	if len(h.Epochs) == 0 {
		return EpochStats{}
	}
	return h.Epochs[len(h.Epochs)-1]
}

// Fit trains the network in place on data and binary labels.
// The context is checked between mini-batches. Other calls on n wait
// until Fit returns.
func (n *Network) Fit(ctx context.Context, data []*tensor.Game, labels []float64, opts FitOptions) (History, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if len(data) != len(labels) {
		return History{}, fmt.Errorf("%w: %d samples, %d labels", ErrLabelMismatch, len(data), len(labels))
	}
	if len(data) == 0 {
		return History{}, ErrEmptyBatch
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.ValidationSplit < 0 || opts.ValidationSplit >= 1 {
		return History{}, fmt.Errorf("model: validation split %v out of range [0, 1)", opts.ValidationSplit)
	}

	split := int(float64(len(data)) * (1 - opts.ValidationSplit))
	if split == 0 {
		return History{}, fmt.Errorf("%w: validation split leaves no training samples out of %d", ErrEmptyBatch, len(data))
	}
	trainX, trainY := data[:split], labels[:split]
	valX, valY := data[split:], labels[split:]

	params := n.Params()
	nn.ZeroGrad(params)

	var history History
	for epoch := 1; epoch <= opts.Epochs; epoch++ {
		order := n.rng.Perm(len(trainX))

		var lossSum float64
		var correct int
		for start := 0; start < len(order); start += opts.BatchSize {
			if err := ctx.Err(); err != nil {
				return history, err
			}
			end := min(start+opts.BatchSize, len(order))

			for _, idx := range order[start:end] {
				p := n.forward(toMatrix(trainX[idx]), true).At(0, 0)
				loss, grad := nn.BinaryCrossEntropy(p, trainY[idx])
				lossSum += loss
				if classify(p) == trainY[idx] {
					correct++
				}
				n.backward(mat.NewDense(1, 1, []float64{grad}))
			}
			n.optimizer.Update(params, 1/float64(end-start))
		}

		stats := EpochStats{
			Epoch:    epoch,
			Loss:     lossSum / float64(len(trainX)),
			Accuracy: float64(correct) / float64(len(trainX)),
			Samples:  len(trainX),
		}
		if len(valX) > 0 {
			stats.ValLoss, stats.ValAccuracy = n.evaluate(valX, valY)
			stats.ValSamples = len(valX)
		}
		history.Epochs = append(history.Epochs, stats)
		if opts.OnEpoch != nil {
			opts.OnEpoch(stats)
		}
	}

	return history, nil
}

// Evaluate returns the mean loss and accuracy over data without
// updating the network. It returns zeros for empty input.
func (n *Network) Evaluate(data []*tensor.Game, labels []float64) (loss, accuracy float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.evaluate(data, labels)
}

func (n *Network) evaluate(data []*tensor.Game, labels []float64) (loss, accuracy float64) {
	if len(data) == 0 {
		return 0, 0
	}
	var correct int
	for i, t := range data {
		p := n.predict(t)
		l, _ := nn.BinaryCrossEntropy(p, labels[i])
		loss += l
		if classify(p) == labels[i] {
			correct++
		}
	}
	return loss / float64(len(data)), float64(correct) / float64(len(data))
}

// classify rounds a probability to a label.
func classify(p float64) float64 {
	if p > 0.5 {
		return 1
	}
	return 0
}
