// Package db defines the record stores the detector reads its training
// data from and writes analysed games to.
package db

import (
	"context"
	"errors"

	"go.uber.org/multierr"

	"github.com/discochess/irwin/internal/game"
)

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("db: store closed")

// GameStore reads games.
type GameStore interface {
	// ByUserID returns every game the player took part in.
	ByUserID(ctx context.Context, userID string) ([]game.Game, error)

	// ByIDs returns the games with the given ids. Unknown ids are skipped,
	// so the result may be shorter than ids.
	ByIDs(ctx context.Context, ids []string) ([]game.Game, error)
}

// PlayerStore reads players.
type PlayerStore interface {
	// ByEngine returns the players whose engine flag equals engine.
	ByEngine(ctx context.Context, engine bool) ([]game.Player, error)
}

// ActivationStore reads upstream detector activations.
type ActivationStore interface {
	// ByEngineAndPrediction returns activations with the given engine flag
	// and a prediction of at least minPrediction.
	ByEngineAndPrediction(ctx context.Context, engine bool, minPrediction int) ([]game.Activation, error)
}

// AnalysedGameStore persists analysed games.
type AnalysedGameStore interface {
	// LazyWriteMany schedules the games for writing. Implementations may
	// buffer; callers must not assume the games are readable on return.
	LazyWriteMany(ctx context.Context, games []game.AnalysedGame) error
}

// Env bundles the stores one deployment works against.
type Env struct {
	Games         GameStore
	Players       PlayerStore
	Activations   ActivationStore
	AnalysedGames AnalysedGameStore

	closers []func() error
}

// OnClose registers fn to run when the environment is closed.
func (e *Env) OnClose(fn func() error) {
	e.closers = append(e.closers, fn)
}

// Close runs the registered close functions in reverse order and
// combines their errors.
func (e *Env) Close() error {
	var err error
	for i := len(e.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, e.closers[i]())
	}
	e.closers = nil
	return err
}
