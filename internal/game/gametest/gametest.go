// Package gametest provides game fixtures for tests.
package gametest

import "github.com/discochess/irwin/internal/game"

// Breyer is a legal 24-ply line of the Ruy Lopez, Breyer variation.
var Breyer = []string{
	"e4", "e5", "Nf3", "Nc6", "Bb5", "a6", "Ba4", "Nf6",
	"O-O", "Be7", "Re1", "b5", "Bb3", "d6", "c3", "O-O",
	"h3", "Nb8", "d4", "Nbd7", "c4", "c6", "cxb5", "axb5",
}

// Game returns a well-formed game over Breyer with move times and
// analysis for every ply, so both players get a tensor. The evaluations
// depend on seed: games with different seeds produce different tensors.
func Game(id, white, black string, seed int) game.Game {
	g := game.Game{ID: id, White: white, Black: black, PGN: Breyer}
	for i := range Breyer {
		cp := seed + i*(seed%7+1)
		g.Emts = append(g.Emts, 50+i)
		g.Analysis = append(g.Analysis, game.Eval{CP: &cp})
	}
	return g
}

// Short returns a game too short to produce a tensor for either player.
func Short(id, white, black string) game.Game {
	g := Game(id, white, black, 0)
	g.PGN = g.PGN[:6]
	return g
}
