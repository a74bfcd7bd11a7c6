// Package irwin trains and serves a neural network that detects engine
// assistance in online chess games.
//
// Example usage:
//
//	dataDir, err := irwin.WithDataDir("/var/lib/irwin")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client, err := irwin.New(dataDir)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	report, err := client.Train(ctx, irwin.TrainOptions{Epochs: 10, Filtered: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("trained on %d samples\n", report.Samples)
package irwin

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/discochess/irwin/internal/api"
	"github.com/discochess/irwin/internal/dataset"
	"github.com/discochess/irwin/internal/db"
	"github.com/discochess/irwin/internal/game"
	"github.com/discochess/irwin/internal/gamemodel"
	"github.com/discochess/irwin/internal/model"
	"github.com/discochess/irwin/internal/stats"
	"github.com/discochess/irwin/internal/store"
)

// Sentinel errors for well-defined error conditions.
var (
	// ErrClosed indicates the client has been closed.
	ErrClosed = errors.New("irwin: client closed")

	// ErrNoEnv indicates no record stores were provided.
	ErrNoEnv = errors.New("irwin: no database environment provided")

	// ErrNoStore indicates no model store was provided.
	ErrNoStore = errors.New("irwin: no model store provided")

	// ErrEmptyBatch indicates a training run found no usable games for
	// one of the two classes.
	ErrEmptyBatch = model.ErrEmptyBatch
)

// Re-exported domain types.
type (
	// Network is the trained classifier.
	Network = model.Network

	// Game is a played game with move times and engine analysis.
	Game = game.Game

	// Document is a raw analysed-game record.
	Document = game.Document

	// TrainOptions configures a training run.
	TrainOptions = gamemodel.TrainOptions

	// Report summarises a training run.
	Report = gamemodel.Report
)

// Client trains, loads and saves the model and ingests analysed games.
// A Client is safe for concurrent use; training runs are serialised.
type Client struct {
	env    *db.Env
	store  store.Store
	model  *gamemodel.Model
	api    *api.API
	stats  stats.Collector
	logger *zap.Logger
	closed atomic.Bool
}

// New creates a new Client with the given options.
// A database environment and a model store are required.
func New(opts ...Option) (*Client, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	if cfg.env == nil {
		return nil, ErrNoEnv
	}
	if cfg.store == nil {
		return nil, ErrNoStore
	}

	datasetOpts := []dataset.Option{dataset.WithLogger(cfg.logger)}
	modelOpts := []gamemodel.Option{gamemodel.WithLogger(cfg.logger), gamemodel.WithStats(cfg.stats)}
	if cfg.rng != nil {
		// Separate sources: the builder and the model use theirs under
		// different locks.
		datasetOpts = append(datasetOpts, dataset.WithRand(rand.New(rand.NewPCG(cfg.rng.Uint64(), cfg.rng.Uint64()))))
		modelOpts = append(modelOpts, gamemodel.WithRand(rand.New(rand.NewPCG(cfg.rng.Uint64(), cfg.rng.Uint64()))))
	}

	m, err := gamemodel.New(cfg.store, dataset.New(cfg.env, datasetOpts...), modelOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating model: %w", err)
	}

	c := &Client{
		env:    cfg.env,
		store:  cfg.store,
		model:  m,
		api:    api.New(cfg.env, cfg.logger, cfg.stats),
		stats:  cfg.stats,
		logger: cfg.logger,
	}

	c.logger.Debug("client initialized")
	return c, nil
}

// Train fits the model on a freshly built dataset and saves it.
// It returns ErrEmptyBatch when either class has no usable games.
func (c *Client) Train(ctx context.Context, opts TrainOptions) (Report, error) {
	if c.closed.Load() {
		return Report{}, ErrClosed
	}
	return c.model.Train(ctx, opts)
}

// Model returns the saved network, or a newly built one when newModel is
// true or no model has been saved.
func (c *Client) Model(ctx context.Context, newModel bool) (*Network, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	return c.model.Get(ctx, newModel)
}

// Predict scores playerID's play in g with the saved model. The boolean
// is false when the game holds too little data for that player.
func (c *Client) Predict(ctx context.Context, g *Game, playerID string) (float64, bool, error) {
	n, err := c.Model(ctx, false)
	if err != nil {
		return 0, false, err
	}
	t, ok := g.Tensor(playerID)
	if !ok {
		return 0, false, nil
	}
	return n.Predict(t), true, nil
}

// InsertAnalysedGames decodes and stores analysed games. A batch holding
// any malformed record is dropped with a warning and no error.
func (c *Client) InsertAnalysedGames(ctx context.Context, docs []Document) error {
	if c.closed.Load() {
		return ErrClosed
	}
	return c.api.InsertAnalysedGames(ctx, docs)
}

// Close releases the model store and the database environment.
// After Close, the client should not be used.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	var err error
	if cerr := c.store.Close(); cerr != nil {
		err = multierr.Append(err, fmt.Errorf("closing model store: %w", cerr))
	}
	if cerr := c.env.Close(); cerr != nil {
		err = multierr.Append(err, fmt.Errorf("closing database: %w", cerr))
	}
	return err
}

// Store returns the model store used by this client.
func (c *Client) Store() store.Store {
	return c.store
}
