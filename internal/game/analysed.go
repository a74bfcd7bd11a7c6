package game

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrMalformed is wrapped by every DecodeError.
var ErrMalformed = errors.New("game: malformed analysed game")

// Document is a raw, schemaless analysed-game record as produced by the
// analysis workers.
type Document map[string]any

// AnalysedMove is one move of an analysed game.
type AnalysedMove struct {
	UCI  string `json:"uci"`
	Move int    `json:"move"`
	Emt  int    `json:"emt"`
	Blur bool   `json:"blur,omitempty"`
	Eval Eval   `json:"engineEval"`

	// Rank is the position of the played move in the engine's ordering,
	// nil when the move was outside the analysed lines.
	Rank *int `json:"trueRank,omitempty"`
}

// AnalysedGame is the move-by-move engine analysis of one player's
// moves in one game.
type AnalysedGame struct {
	ID     string         `json:"id"`
	UserID string         `json:"userId"`
	GameID string         `json:"gameId"`
	Moves  []AnalysedMove `json:"analysis"`
}

// AnalysedGameID returns the canonical id of a game analysed for a user.
func AnalysedGameID(gameID, userID string) string {
	return gameID + "/" + userID
}

// DecodeErrorKind classifies a decoding failure.
type DecodeErrorKind int

const (
	// MissingField means a required field was absent.
	MissingField DecodeErrorKind = iota + 1

	// InvalidValue means a field was present with an unusable value.
	InvalidValue
)

func (k DecodeErrorKind) String() string {
	switch k {
	case MissingField:
		return "missing field"
	case InvalidValue:
		return "invalid value"
	default:
		return "unknown"
	}
}

// DecodeError reports why a Document could not be decoded.
type DecodeError struct {
	Kind  DecodeErrorKind
	Field string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("game: %s %q", e.Kind, e.Field)
}

func (e *DecodeError) Unwrap() error {
	return ErrMalformed
}

// DecodeAnalysedGame decodes a raw record into an AnalysedGame.
// All failures are *DecodeError.
func DecodeAnalysedGame(doc Document) (AnalysedGame, error) {
	var ag AnalysedGame
	var err error

	if ag.UserID, err = requireString(doc, "userId"); err != nil {
		return AnalysedGame{}, err
	}
	if ag.GameID, err = requireString(doc, "gameId"); err != nil {
		return AnalysedGame{}, err
	}

	ag.ID = AnalysedGameID(ag.GameID, ag.UserID)
	if raw, ok := doc["_id"]; ok {
		id, ok := raw.(string)
		if !ok || id != ag.ID {
			return AnalysedGame{}, &DecodeError{Kind: InvalidValue, Field: "_id"}
		}
	}

	raw, ok := doc["analysis"]
	if !ok || raw == nil {
		return AnalysedGame{}, &DecodeError{Kind: MissingField, Field: "analysis"}
	}
	list, ok := raw.([]any)
	if !ok {
		return AnalysedGame{}, &DecodeError{Kind: InvalidValue, Field: "analysis"}
	}

	ag.Moves = make([]AnalysedMove, 0, len(list))
	for i, item := range list {
		m, err := decodeMove(item, fmt.Sprintf("analysis.%d", i))
		if err != nil {
			return AnalysedGame{}, err
		}
		ag.Moves = append(ag.Moves, m)
	}

	return ag, nil
}

func decodeMove(item any, path string) (AnalysedMove, error) {
	doc, ok := asDocument(item)
	if !ok {
		return AnalysedMove{}, &DecodeError{Kind: InvalidValue, Field: path}
	}

	var m AnalysedMove
	var err error

	if m.UCI, err = requireString(doc, path+".uci"); err != nil {
		return AnalysedMove{}, err
	}
	if !validUCI(m.UCI) {
		return AnalysedMove{}, &DecodeError{Kind: InvalidValue, Field: path + ".uci"}
	}
	if m.Move, err = requireInt(doc, path+".move"); err != nil {
		return AnalysedMove{}, err
	}
	if m.Move < 1 {
		return AnalysedMove{}, &DecodeError{Kind: InvalidValue, Field: path + ".move"}
	}
	if m.Emt, err = requireInt(doc, path+".emt"); err != nil {
		return AnalysedMove{}, err
	}
	if m.Emt < 0 {
		return AnalysedMove{}, &DecodeError{Kind: InvalidValue, Field: path + ".emt"}
	}

	if raw, ok := doc["blur"]; ok {
		b, ok := raw.(bool)
		if !ok {
			return AnalysedMove{}, &DecodeError{Kind: InvalidValue, Field: path + ".blur"}
		}
		m.Blur = b
	}

	if raw, ok := doc["trueRank"]; ok && raw != nil {
		rank, ok := asInt(raw)
		if !ok || rank < 1 {
			return AnalysedMove{}, &DecodeError{Kind: InvalidValue, Field: path + ".trueRank"}
		}
		m.Rank = &rank
	}

	raw, ok := doc["engineEval"]
	if !ok || raw == nil {
		return AnalysedMove{}, &DecodeError{Kind: MissingField, Field: path + ".engineEval"}
	}
	evalDoc, ok := asDocument(raw)
	if !ok {
		return AnalysedMove{}, &DecodeError{Kind: InvalidValue, Field: path + ".engineEval"}
	}
	if m.Eval, err = decodeEval(evalDoc, path+".engineEval"); err != nil {
		return AnalysedMove{}, err
	}

	return m, nil
}

func decodeEval(doc Document, path string) (Eval, error) {
	var e Eval
	if raw, ok := doc["cp"]; ok && raw != nil {
		cp, ok := asInt(raw)
		if !ok {
			return Eval{}, &DecodeError{Kind: InvalidValue, Field: path + ".cp"}
		}
		e.CP = &cp
	}
	if raw, ok := doc["mate"]; ok && raw != nil {
		mate, ok := asInt(raw)
		if !ok {
			return Eval{}, &DecodeError{Kind: InvalidValue, Field: path + ".mate"}
		}
		e.Mate = &mate
	}
	if e.CP == nil && e.Mate == nil {
		return Eval{}, &DecodeError{Kind: MissingField, Field: path + ".cp"}
	}
	return e, nil
}

// requireString reads the last path element of field from doc.
func requireString(doc Document, field string) (string, error) {
	raw, ok := doc[leaf(field)]
	if !ok || raw == nil {
		return "", &DecodeError{Kind: MissingField, Field: field}
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", &DecodeError{Kind: InvalidValue, Field: field}
	}
	return s, nil
}

func requireInt(doc Document, field string) (int, error) {
	raw, ok := doc[leaf(field)]
	if !ok || raw == nil {
		return 0, &DecodeError{Kind: MissingField, Field: field}
	}
	n, ok := asInt(raw)
	if !ok {
		return 0, &DecodeError{Kind: InvalidValue, Field: field}
	}
	return n, nil
}

func leaf(field string) string {
	if i := strings.LastIndexByte(field, '.'); i >= 0 {
		return field[i+1:]
	}
	return field
}

func asDocument(v any) (Document, bool) {
	switch d := v.(type) {
	case Document:
		return d, true
	case map[string]any:
		return Document(d), true
	default:
		return nil, false
	}
}

// asInt accepts the numeric types JSON and BSON decoders produce.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

// validUCI reports whether s looks like a long-algebraic move ("e2e4",
// "e7e8q").
func validUCI(s string) bool {
	if len(s) != 4 && len(s) != 5 {
		return false
	}
	for i := 0; i < 4; i += 2 {
		if s[i] < 'a' || s[i] > 'h' || s[i+1] < '1' || s[i+1] > '8' {
			return false
		}
	}
	if len(s) == 5 && !strings.ContainsRune("qrbn", rune(s[4])) {
		return false
	}
	return s[0:2] != s[2:4]
}
