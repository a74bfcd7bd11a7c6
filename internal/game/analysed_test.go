package game

import (
	"errors"
	"testing"
)

func validDocument() Document {
	return Document{
		"_id":    "g1/u1",
		"userId": "u1",
		"gameId": "g1",
		"analysis": []any{
			map[string]any{
				"uci":        "e2e4",
				"move":       float64(1),
				"emt":        float64(120),
				"blur":       false,
				"trueRank":   float64(1),
				"engineEval": map[string]any{"cp": float64(25)},
			},
			map[string]any{
				"uci":        "g1f3",
				"move":       2,
				"emt":        int64(80),
				"engineEval": map[string]any{"mate": float64(-4)},
			},
		},
	}
}

func TestDecodeAnalysedGame(t *testing.T) {
	ag, err := DecodeAnalysedGame(validDocument())
	if err != nil {
		t.Fatalf("DecodeAnalysedGame() error = %v", err)
	}

	if ag.ID != "g1/u1" || ag.UserID != "u1" || ag.GameID != "g1" {
		t.Errorf("ids = %q %q %q", ag.ID, ag.UserID, ag.GameID)
	}
	if len(ag.Moves) != 2 {
		t.Fatalf("len(Moves) = %d, want 2", len(ag.Moves))
	}
	m := ag.Moves[0]
	if m.UCI != "e2e4" || m.Move != 1 || m.Emt != 120 {
		t.Errorf("Moves[0] = %+v", m)
	}
	if m.Rank == nil || *m.Rank != 1 {
		t.Errorf("Moves[0].Rank = %v, want 1", m.Rank)
	}
	if m.Eval.CP == nil || *m.Eval.CP != 25 {
		t.Errorf("Moves[0].Eval.CP = %v, want 25", m.Eval.CP)
	}
	if mate := ag.Moves[1].Eval.Mate; mate == nil || *mate != -4 {
		t.Errorf("Moves[1].Eval.Mate = %v, want -4", mate)
	}
}

func TestDecodeAnalysedGame_DerivesID(t *testing.T) {
	doc := validDocument()
	delete(doc, "_id")

	ag, err := DecodeAnalysedGame(doc)
	if err != nil {
		t.Fatalf("DecodeAnalysedGame() error = %v", err)
	}
	if ag.ID != "g1/u1" {
		t.Errorf("ID = %q, want %q", ag.ID, "g1/u1")
	}
}

func TestDecodeAnalysedGame_Errors(t *testing.T) {
	move := func(doc Document) map[string]any {
		return doc["analysis"].([]any)[0].(map[string]any)
	}

	tests := []struct {
		name   string
		mutate func(Document)
		kind   DecodeErrorKind
		field  string
	}{
		{"missing user", func(d Document) { delete(d, "userId") }, MissingField, "userId"},
		{"missing game", func(d Document) { delete(d, "gameId") }, MissingField, "gameId"},
		{"user not string", func(d Document) { d["userId"] = 42 }, InvalidValue, "userId"},
		{"wrong id", func(d Document) { d["_id"] = "other" }, InvalidValue, "_id"},
		{"missing analysis", func(d Document) { delete(d, "analysis") }, MissingField, "analysis"},
		{"analysis not list", func(d Document) { d["analysis"] = "x" }, InvalidValue, "analysis"},
		{"move not object", func(d Document) { d["analysis"] = []any{1} }, InvalidValue, "analysis.0"},
		{"missing uci", func(d Document) { delete(move(d), "uci") }, MissingField, "analysis.0.uci"},
		{"bad uci", func(d Document) { move(d)["uci"] = "e9e4" }, InvalidValue, "analysis.0.uci"},
		{"null move", func(d Document) { move(d)["uci"] = "e2e2" }, InvalidValue, "analysis.0.uci"},
		{"fractional emt", func(d Document) { move(d)["emt"] = 1.5 }, InvalidValue, "analysis.0.emt"},
		{"negative emt", func(d Document) { move(d)["emt"] = -1 }, InvalidValue, "analysis.0.emt"},
		{"zero move", func(d Document) { move(d)["move"] = 0 }, InvalidValue, "analysis.0.move"},
		{"bad blur", func(d Document) { move(d)["blur"] = "yes" }, InvalidValue, "analysis.0.blur"},
		{"bad rank", func(d Document) { move(d)["trueRank"] = 0 }, InvalidValue, "analysis.0.trueRank"},
		{"missing eval", func(d Document) { delete(move(d), "engineEval") }, MissingField, "analysis.0.engineEval"},
		{"empty eval", func(d Document) { move(d)["engineEval"] = map[string]any{} }, MissingField, "analysis.0.engineEval.cp"},
		{"bad cp", func(d Document) { move(d)["engineEval"] = map[string]any{"cp": "1"} }, InvalidValue, "analysis.0.engineEval.cp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := validDocument()
			tt.mutate(doc)

			_, err := DecodeAnalysedGame(doc)
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("DecodeAnalysedGame() error = %v, want *DecodeError", err)
			}
			if de.Kind != tt.kind || de.Field != tt.field {
				t.Errorf("DecodeError = {%v %q}, want {%v %q}", de.Kind, de.Field, tt.kind, tt.field)
			}
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("errors.Is(err, ErrMalformed) = false")
			}
		})
	}
}
