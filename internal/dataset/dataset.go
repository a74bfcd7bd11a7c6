// Package dataset assembles balanced, labelled training batches from the
// game, player and activation stores.
package dataset

import (
	"context"
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/discochess/irwin/internal/db"
	"github.com/discochess/irwin/internal/game"
	"github.com/discochess/irwin/internal/tensor"
)

// MinPrediction is the activation score at or above which a game is
// trusted as engine-assisted in filtered mode.
const MinPrediction = 70

// Label values.
const (
	Legit = 0.0
	Cheat = 1.0
)

// Batch is a labelled training batch. Data[i] carries label Labels[i].
type Batch struct {
	Data   []*tensor.Game
	Labels []float64
}

// Len returns the number of samples.
func (b *Batch) Len() int {
	return len(b.Data)
}

// Cheats returns how many samples are labelled Cheat.
func (b *Batch) Cheats() int {
	var n int
	for _, l := range b.Labels {
		if l == Cheat {
			n++
		}
	}
	return n
}

// Builder builds training batches.
type Builder struct {
	games       db.GameStore
	players     db.PlayerStore
	activations db.ActivationStore
	rng         *rand.Rand
	logger      *zap.Logger
}

// Option configures a Builder.
type Option interface {
	apply(*Builder)
}

type optionFunc func(*Builder)

func (f optionFunc) apply(b *Builder) { f(b) }

// WithRand sets the source used for shuffling.
func WithRand(rng *rand.Rand) Option {
	return optionFunc(func(b *Builder) {
		b.rng = rng
	})
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(b *Builder) {
		b.logger = l
	})
}

// New creates a Builder reading from the stores of env.
func New(env *db.Env, opts ...Option) *Builder {
	b := &Builder{
		games:       env.Games,
		players:     env.Players,
		activations: env.Activations,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt.apply(b)
	}
	if b.rng == nil {
		b.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	b.logger = b.logger.Named("dataset")
	return b
}

// Build assembles a batch. When filtered is true the cheat class comes
// from games whose engine activation is at least MinPrediction; otherwise
// both classes come from the players' engine flags. The batch is empty,
// not an error, when either class has no samples.
func (b *Builder) Build(ctx context.Context, filtered bool) (*Batch, error) {
	var cheats []*tensor.Game
	var err error
	if filtered {
		cheats, err = b.activatedTensors(ctx)
	} else {
		cheats, err = b.playerTensors(ctx, true)
	}
	if err != nil {
		return nil, fmt.Errorf("collecting cheat games: %w", err)
	}

	legits, err := b.playerTensors(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("collecting legit games: %w", err)
	}

	b.logger.Debug("collected tensors",
		zap.Bool("filtered", filtered),
		zap.Int("cheats", len(cheats)),
		zap.Int("legits", len(legits)),
	)

	return b.CreateBatchAndLabels(cheats, legits), nil
}

// playerTensors returns a tensor for every usable game of every player
// whose engine flag equals engine.
func (b *Builder) playerTensors(ctx context.Context, engine bool) ([]*tensor.Game, error) {
	players, err := b.players.ByEngine(ctx, engine)
	if err != nil {
		return nil, fmt.Errorf("loading players: %w", err)
	}

	var out []*tensor.Game
	for _, p := range players {
		games, err := b.games.ByUserID(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("loading games of %s: %w", p.ID, err)
		}
		for i := range games {
			if t, ok := games[i].Tensor(p.ID); ok {
				out = append(out, t)
			}
		}
	}
	return out, nil
}

// activatedTensors returns a tensor for every game with an engine
// activation of at least MinPrediction, taken from the activated player's
// side. Activations are matched to games by game id.
func (b *Builder) activatedTensors(ctx context.Context) ([]*tensor.Game, error) {
	activations, err := b.activations.ByEngineAndPrediction(ctx, true, MinPrediction)
	if err != nil {
		return nil, fmt.Errorf("loading activations: %w", err)
	}
	if len(activations) == 0 {
		return nil, nil
	}

	ids := make([]string, len(activations))
	for i, a := range activations {
		ids[i] = a.GameID
	}
	games, err := b.games.ByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading activated games: %w", err)
	}

	byID := make(map[string]*game.Game, len(games))
	for i := range games {
		byID[games[i].ID] = &games[i]
	}

	var out []*tensor.Game
	for _, a := range activations {
		g, ok := byID[a.GameID]
		if !ok {
			continue
		}
		if t, ok := g.Tensor(a.UserID); ok {
			out = append(out, t)
		}
	}
	return out, nil
}

// CreateBatchAndLabels balances the two classes by truncating the larger
// after shuffling each, labels them and shuffles the pairs jointly. Nil
// tensors are dropped first. If either class is empty the batch is empty.
func (b *Builder) CreateBatchAndLabels(cheats, legits []*tensor.Game) *Batch {
	cheats = present(cheats)
	legits = present(legits)

	b.shuffle(cheats)
	b.shuffle(legits)

	n := min(len(cheats), len(legits))
	batch := &Batch{
		Data:   make([]*tensor.Game, 0, 2*n),
		Labels: make([]float64, 0, 2*n),
	}
	for _, t := range cheats[:n] {
		batch.Data = append(batch.Data, t)
		batch.Labels = append(batch.Labels, Cheat)
	}
	for _, t := range legits[:n] {
		batch.Data = append(batch.Data, t)
		batch.Labels = append(batch.Labels, Legit)
	}

	b.rng.Shuffle(len(batch.Data), func(i, j int) {
		batch.Data[i], batch.Data[j] = batch.Data[j], batch.Data[i]
		batch.Labels[i], batch.Labels[j] = batch.Labels[j], batch.Labels[i]
	})
	return batch
}

func (b *Builder) shuffle(ts []*tensor.Game) {
	b.rng.Shuffle(len(ts), func(i, j int) { ts[i], ts[j] = ts[j], ts[i] })
}

// present returns the non-nil tensors of ts in a new slice.
func present(ts []*tensor.Game) []*tensor.Game {
	out := make([]*tensor.Game, 0, len(ts))
	for _, t := range ts {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}
