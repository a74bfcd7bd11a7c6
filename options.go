package irwin

import (
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/discochess/irwin/internal/codec/zstdcodec"
	"github.com/discochess/irwin/internal/db"
	"github.com/discochess/irwin/internal/db/boltdb"
	"github.com/discochess/irwin/internal/stats"
	"github.com/discochess/irwin/internal/store"
	"github.com/discochess/irwin/internal/store/diskstore"
)

// Option configures a Client.
type Option interface {
	apply(*options)
}

// options holds the client configuration.
type options struct {
	env    *db.Env
	store  store.Store
	stats  stats.Collector
	logger *zap.Logger
	rng    *rand.Rand
}

// defaultOptions returns the default configuration.
func defaultOptions() options {
	return options{
		stats:  stats.NewNoop(),
		logger: zap.NewNop(),
	}
}

// optionFunc wraps a function to implement Option.
type optionFunc func(*options)

var _ Option = optionFunc(nil)

func (f optionFunc) apply(o *options) { f(o) }

// WithEnv sets the record stores to train from and ingest into.
// The client closes env when it is closed.
func WithEnv(env *db.Env) Option {
	return optionFunc(func(o *options) {
		o.env = env
	})
}

// WithModelStore sets where the model is saved.
func WithModelStore(s store.Store) Option {
	return optionFunc(func(o *options) {
		o.store = s
	})
}

// WithStats sets the stats collector.
// If not set or nil, a no-op collector is used.
func WithStats(c stats.Collector) Option {
	return optionFunc(func(o *options) {
		if c != nil {
			o.stats = c
		}
	})
}

// WithLogger sets the logger.
// If not set, a no-op logger is used.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(o *options) {
		o.logger = l
	})
}

// WithRand sets the random source for weight initialisation and
// shuffling. If not set, a randomly seeded source is used.
func WithRand(rng *rand.Rand) Option {
	return optionFunc(func(o *options) {
		o.rng = rng
	})
}

// WithDataDir configures the client from a data directory: the record
// stores live in a BoltDB file inside it and the model is saved under
// its models/ directory with zstd compression.
func WithDataDir(dir string) (Option, error) {
	bolt, err := boltdb.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	st, err := diskstore.New(dir, zstdcodec.New())
	if err != nil {
		bolt.Close()
		return nil, fmt.Errorf("creating store: %w", err)
	}

	return optionFunc(func(o *options) {
		o.env = bolt.Env()
		o.store = st
	}), nil
}
