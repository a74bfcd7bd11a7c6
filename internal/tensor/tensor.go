// Package tensor defines the fixed-shape move-statistics tensor that
// summarises one game for one player.
package tensor

import "fmt"

const (
	// Moves is the number of player moves (time steps) in a tensor.
	Moves = 100

	// Features is the number of statistics recorded per move.
	Features = 6
)

// Feature column indices.
const (
	FeatureLoss    = iota // winning-chances lost by the move
	FeatureBefore         // winning chances before the move
	FeatureAfter          // winning chances after the move
	FeatureTime           // move time relative to the player's mean
	FeatureCapture        // 1 if the move captured a piece
	FeatureCheck          // 1 if the move gave check
)

// Game is a Moves x Features array. The zero value is an all-padding tensor.
type Game [Moves][Features]float64

// FromRows builds a tensor from per-move feature rows.
// Rows beyond Moves are dropped; fewer rows are zero-padded at the front
// so the most recent move always sits in the last row.
func FromRows(rows [][Features]float64) *Game {
	if len(rows) > Moves {
		rows = rows[:Moves]
	}
	var t Game
	offset := Moves - len(rows)
	for i, r := range rows {
		t[offset+i] = r
	}
	return &t
}

// Flat returns the tensor in row-major order.
func (t *Game) Flat() []float64 {
	out := make([]float64, 0, Moves*Features)
	for i := range t {
		out = append(out, t[i][:]...)
	}
	return out
}

// FromFlat is the inverse of Flat.
func FromFlat(data []float64) (*Game, error) {
	if len(data) != Moves*Features {
		return nil, fmt.Errorf("tensor: got %d values, want %d", len(data), Moves*Features)
	}
	var t Game
	for i := range t {
		copy(t[i][:], data[i*Features:(i+1)*Features])
	}
	return &t, nil
}
