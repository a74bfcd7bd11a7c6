// Package memdb provides in-memory stores for testing.
package memdb

import (
	"context"
	"sort"
	"sync"

	"github.com/discochess/irwin/internal/db"
	"github.com/discochess/irwin/internal/game"
)

// Compile-time checks that DB implements the store interfaces.
var (
	_ db.GameStore         = (*DB)(nil)
	_ db.PlayerStore       = (*DB)(nil)
	_ db.ActivationStore   = (*DB)(nil)
	_ db.AnalysedGameStore = (*DB)(nil)
)

// DB is an in-memory implementation of every store.
// Query results are returned in insertion order.
type DB struct {
	mu          sync.RWMutex
	games       []game.Game
	players     []game.Player
	activations []game.Activation
	analysed    map[string]game.AnalysedGame
	writes      int
}

// New creates an empty DB.
func New() *DB {
	return &DB{analysed: make(map[string]game.AnalysedGame)}
}

// Env returns an environment backed by d.
func (d *DB) Env() *db.Env {
	return &db.Env{
		Games:         d,
		Players:       d,
		Activations:   d,
		AnalysedGames: d,
	}
}

// AddGames adds games (for test setup).
func (d *DB) AddGames(games ...game.Game) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.games = append(d.games, games...)
}

// AddPlayers adds players (for test setup).
func (d *DB) AddPlayers(players ...game.Player) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.players = append(d.players, players...)
}

// AddActivations adds activations (for test setup).
func (d *DB) AddActivations(activations ...game.Activation) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.activations = append(d.activations, activations...)
}

// ByUserID returns every game the player took part in.
func (d *DB) ByUserID(ctx context.Context, userID string) ([]game.Game, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []game.Game
	for _, g := range d.games {
		if g.White == userID || g.Black == userID {
			out = append(out, g)
		}
	}
	return out, nil
}

// ByIDs returns the games with the given ids.
func (d *DB) ByIDs(ctx context.Context, ids []string) ([]game.Game, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []game.Game
	for _, g := range d.games {
		if want[g.ID] {
			out = append(out, g)
		}
	}
	return out, nil
}

// ByEngine returns the players with the given engine flag.
func (d *DB) ByEngine(ctx context.Context, engine bool) ([]game.Player, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []game.Player
	for _, p := range d.players {
		if p.Engine == engine {
			out = append(out, p)
		}
	}
	return out, nil
}

// ByEngineAndPrediction returns matching activations.
func (d *DB) ByEngineAndPrediction(ctx context.Context, engine bool, minPrediction int) ([]game.Activation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []game.Activation
	for _, a := range d.activations {
		if a.Engine == engine && a.Prediction >= minPrediction {
			out = append(out, a)
		}
	}
	return out, nil
}

// LazyWriteMany stores the games immediately.
func (d *DB) LazyWriteMany(ctx context.Context, games []game.AnalysedGame) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, g := range games {
		d.analysed[g.ID] = g
	}
	d.writes++
	return nil
}

// AnalysedGames returns the stored analysed games sorted by id.
func (d *DB) AnalysedGames() []game.AnalysedGame {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]game.AnalysedGame, 0, len(d.analysed))
	for _, g := range d.analysed {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Writes returns how many LazyWriteMany calls were made.
func (d *DB) Writes() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.writes
}
