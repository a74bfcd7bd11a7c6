// Package game holds the chess game records the detector learns from:
// games with their engine analysis, players with their ground-truth
// engine flag, and upstream detector activations.
package game

import (
	"math"

	"github.com/notnil/chess"

	"github.com/discochess/irwin/internal/tensor"
)

// MinMoves is the fewest moves a player must have made in a game for the
// game to produce a tensor.
const MinMoves = 10

// Eval is an engine evaluation from White's perspective.
// Exactly one of CP and Mate is expected to be set.
type Eval struct {
	CP   *int `json:"cp,omitempty"`
	Mate *int `json:"mate,omitempty"`
}

// WinningChances maps the evaluation to [-1, 1] from the given side's
// perspective.
func (e Eval) WinningChances(white bool) float64 {
	var wc float64
	switch {
	case e.Mate != nil:
		switch {
		case *e.Mate > 0:
			wc = 1
		case *e.Mate < 0:
			wc = -1
		}
	case e.CP != nil:
		wc = 2/(1+math.Exp(-0.004*float64(*e.CP))) - 1
	}
	if !white {
		wc = -wc
	}
	return wc
}

// Game is a played game with per-ply move times and engine analysis.
type Game struct {
	ID    string `json:"id"`
	White string `json:"white"`
	Black string `json:"black"`

	// PGN is the move list in SAN, one entry per ply.
	PGN []string `json:"pgn"`

	// Emts holds the elapsed time of each ply in centiseconds.
	Emts []int `json:"emts,omitempty"`

	// Analysis holds the evaluation after each ply.
	Analysis []Eval `json:"analysis,omitempty"`
}

// Tensor summarises the moves playerID made in the game.
// It returns false when the game holds too little data for that player.
func (g *Game) Tensor(playerID string) (*tensor.Game, bool) {
	var first int
	switch playerID {
	case g.White:
		first = 0
	case g.Black:
		first = 1
	default:
		return nil, false
	}

	plies := len(g.PGN)
	if len(g.Emts) < plies || len(g.Analysis) < plies {
		return nil, false
	}
	if (plies-first+1)/2 < MinMoves {
		return nil, false
	}

	moves, ok := replay(g.PGN)
	if !ok {
		return nil, false
	}

	var total float64
	for i := first; i < plies; i += 2 {
		total += float64(g.Emts[i])
	}
	mean := total / float64((plies-first+1)/2)

	white := first == 0
	rows := make([][tensor.Features]float64, 0, (plies-first+1)/2)
	for i := first; i < plies; i += 2 {
		var before float64
		if i > 0 {
			before = g.Analysis[i-1].WinningChances(white)
		}
		after := g.Analysis[i].WinningChances(white)

		var row [tensor.Features]float64
		row[tensor.FeatureLoss] = math.Max(0, before-after)
		row[tensor.FeatureBefore] = before
		row[tensor.FeatureAfter] = after
		if mean > 0 {
			row[tensor.FeatureTime] = float64(g.Emts[i]) / mean
		}
		if moves[i].HasTag(chess.Capture) || moves[i].HasTag(chess.EnPassant) {
			row[tensor.FeatureCapture] = 1
		}
		if moves[i].HasTag(chess.Check) {
			row[tensor.FeatureCheck] = 1
		}
		rows = append(rows, row)
	}

	return tensor.FromRows(rows), true
}

// replay plays the SAN move list from the initial position.
func replay(san []string) ([]*chess.Move, bool) {
	g := chess.NewGame()
	for _, m := range san {
		if err := g.MoveStr(m); err != nil {
			return nil, false
		}
	}
	return g.Moves(), true
}

// Player is a player account with its ground-truth label.
type Player struct {
	ID string `json:"id"`

	// Engine marks the player as a known engine user.
	Engine bool `json:"engine"`
}

// Activation is the confidence an upstream detector assigned to one
// player's play in one game.
type Activation struct {
	GameID string `json:"gameId"`
	UserID string `json:"userId"`

	// Engine is the label of the player at the time of the run.
	Engine bool `json:"engine"`

	// Prediction is the detector confidence in [0, 100].
	Prediction int `json:"prediction"`
}

// ID returns the activation key.
func (a Activation) ID() string {
	return a.GameID + "/" + a.UserID
}
