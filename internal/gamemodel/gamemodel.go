// Package gamemodel owns the lifecycle of the single-game model: loading
// or building it, training it on a fresh dataset and saving it back.
package gamemodel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/discochess/irwin/internal/cache"
	"github.com/discochess/irwin/internal/cache/lru"
	"github.com/discochess/irwin/internal/dataset"
	"github.com/discochess/irwin/internal/model"
	"github.com/discochess/irwin/internal/stats"
	"github.com/discochess/irwin/internal/store"
)

// Name is the name the model is stored under. There is one model; saving
// replaces it.
const Name = model.Architecture

// CacheSize bounds how many networks Get memoises, one per argument.
const CacheSize = 2

// Model loads, builds, trains and saves the network.
type Model struct {
	store   store.Store
	builder *dataset.Builder
	cache   *cache.Cache[bool, *model.Network]
	stats   stats.Collector
	logger  *zap.Logger
	rng     *rand.Rand

	// mu guards the cache and rng; trainMu serialises training runs, which
	// mutate the cached network in place.
	mu      sync.Mutex
	trainMu sync.Mutex
}

// Option configures a Model.
type Option interface {
	apply(*Model)
}

type optionFunc func(*Model)

func (f optionFunc) apply(m *Model) { f(m) }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(m *Model) {
		m.logger = l
	})
}

// WithStats sets the stats collector.
func WithStats(c stats.Collector) Option {
	return optionFunc(func(m *Model) {
		m.stats = c
	})
}

// WithRand sets the source for weight initialisation and shuffling.
func WithRand(rng *rand.Rand) Option {
	return optionFunc(func(m *Model) {
		m.rng = rng
	})
}

// New creates a Model persisting to st and training on batches from
// builder.
func New(st store.Store, builder *dataset.Builder, opts ...Option) (*Model, error) {
	m := &Model{
		store:   st,
		builder: builder,
		stats:   stats.NewNoop(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt.apply(m)
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	m.logger = m.logger.Named("gamemodel")

	strategy, err := lru.New[bool, *model.Network](CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating model cache: %w", err)
	}
	m.cache = cache.New[bool, *model.Network](strategy, m.stats)
	return m, nil
}

// Get returns the saved network, or a freshly built one when newModel is
// true or nothing is saved yet. Results are memoised per argument.
func (m *Model) Get(ctx context.Context, newModel bool) (*model.Network, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n, ok := m.cache.Get(newModel); ok {
		return n, nil
	}

	var n *model.Network
	if !newModel {
		var err error
		n, err = m.load(ctx)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		if n == nil {
			m.logger.Info("no saved model, building a new one")
		}
	}
	if n == nil {
		n = model.New(m.childRand())
		m.stats.IncCounter(stats.MetricModelsBuilt, 1)
		m.logger.Debug("built model", zap.Int("params", n.NumParams()))
	}

	m.cache.Set(newModel, n)
	return n, nil
}

func (m *Model) load(ctx context.Context) (*model.Network, error) {
	data, err := m.store.Read(ctx, Name)
	if err != nil {
		return nil, fmt.Errorf("reading model: %w", err)
	}
	n, err := model.Decode(bytes.NewReader(data), m.childRand())
	if err != nil {
		return nil, fmt.Errorf("decoding model: %w", err)
	}
	m.stats.IncCounter(stats.MetricModelsLoaded, 1)
	m.logger.Debug("loaded model", zap.Int("step", n.Step()), zap.Int("bytes", len(data)))
	return n, nil
}

// childRand derives an independent source from m.rng. m.mu must be held.
func (m *Model) childRand() *rand.Rand {
	return rand.New(rand.NewPCG(m.rng.Uint64(), m.rng.Uint64()))
}

// Save encodes n and stores it under Name, replacing any saved model.
func (m *Model) Save(ctx context.Context, n *model.Network) error {
	var buf bytes.Buffer
	if err := n.Encode(&buf); err != nil {
		return fmt.Errorf("encoding model: %w", err)
	}
	if err := m.store.Write(ctx, Name, buf.Bytes()); err != nil {
		return fmt.Errorf("writing model: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// The saved network is what a later load would return. A memoised
	// fresh network that was just trained is no longer fresh.
	if cached, ok := m.cache.Peek(true); ok && cached == n {
		m.cache.Remove(true)
	}
	m.cache.Set(false, n)

	m.stats.IncCounter(stats.MetricModelsSaved, 1)
	m.logger.Debug("saved model", zap.Int("step", n.Step()), zap.Int("bytes", buf.Len()))
	return nil
}

// TrainOptions configures a training run.
type TrainOptions struct {
	Epochs int

	// Filtered selects cheat games by activation score instead of by the
	// players' engine flags.
	Filtered bool

	// NewModel trains a freshly built network instead of the saved one.
	NewModel bool
}

// Report summarises a training run.
type Report struct {
	Samples  int
	Cheats   int
	Step     int
	History  model.History
	Duration time.Duration
}

// Train fits the network on a freshly built dataset and saves it.
// It returns model.ErrEmptyBatch, without saving, when the dataset is
// empty. The network is saved after fitting regardless of how validation
// went.
func (m *Model) Train(ctx context.Context, opts TrainOptions) (Report, error) {
	m.trainMu.Lock()
	defer m.trainMu.Unlock()

	start := time.Now()
	m.logger.Info("training started",
		zap.Int("epochs", opts.Epochs),
		zap.Bool("filtered", opts.Filtered),
		zap.Bool("newModel", opts.NewModel),
	)

	n, err := m.Get(ctx, opts.NewModel)
	if err != nil {
		return Report{}, fmt.Errorf("getting model: %w", err)
	}

	m.logger.Debug("building dataset")
	batch, err := m.builder.Build(ctx, opts.Filtered)
	if err != nil {
		return Report{}, fmt.Errorf("building dataset: %w", err)
	}
	m.logger.Info("dataset built", zap.Int("samples", batch.Len()), zap.Int("cheats", batch.Cheats()))
	if batch.Len() == 0 {
		return Report{}, fmt.Errorf("%w: one class has no usable games", model.ErrEmptyBatch)
	}

	history, err := n.Fit(ctx, batch.Data, batch.Labels, model.FitOptions{
		Epochs:          opts.Epochs,
		BatchSize:       model.DefaultBatchSize,
		ValidationSplit: model.DefaultValidationSplit,
		OnEpoch:         m.recordEpoch,
	})
	if err != nil {
		return Report{}, fmt.Errorf("fitting: %w", err)
	}

	if err := m.Save(ctx, n); err != nil {
		return Report{}, err
	}

	report := Report{
		Samples:  batch.Len(),
		Cheats:   batch.Cheats(),
		Step:     n.Step(),
		History:  history,
		Duration: time.Since(start),
	}
	m.stats.IncCounter(stats.MetricTrainingRuns, 1)
	m.stats.IncCounter(stats.MetricTrainingSamples, int64(report.Samples))
	m.stats.ObserveHistogram(stats.MetricTrainingSeconds, report.Duration.Seconds())

	last := history.Last()
	m.logger.Info("training finished",
		zap.Duration("duration", report.Duration),
		zap.Int("step", report.Step),
		zap.Float64("loss", last.Loss),
		zap.Float64("valLoss", last.ValLoss),
	)
	return report, nil
}

func (m *Model) recordEpoch(s model.EpochStats) {
	m.stats.IncCounter(stats.MetricTrainingEpochs, 1)
	m.stats.SetGauge(stats.MetricTrainingLoss, s.Loss)
	m.stats.SetGauge(stats.MetricTrainingAccuracy, s.Accuracy)
	if s.ValSamples > 0 {
		m.stats.SetGauge(stats.MetricValidationLoss, s.ValLoss)
	}
	m.logger.Debug("epoch finished",
		zap.Int("epoch", s.Epoch),
		zap.Float64("loss", s.Loss),
		zap.Float64("accuracy", s.Accuracy),
		zap.Float64("valLoss", s.ValLoss),
		zap.Float64("valAccuracy", s.ValAccuracy),
	)
}
