package boltdb

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/discochess/irwin/internal/db"
	"github.com/discochess/irwin/internal/game"
)

func openTestDB(t *testing.T, opts ...Option) *DB {
	t.Helper()
	d, err := Open(t.TempDir(), opts...)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestOpen_CreatesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	d, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer d.Close()

	if _, err := os.Stat(filepath.Join(dir, dbFilename)); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestDB_Games(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	games := []game.Game{
		{ID: "g1", White: "alice", Black: "bob"},
		{ID: "g2", White: "bob", Black: "carol"},
		{ID: "g3", White: "alice", Black: "carol"},
	}
	if err := d.PutGames(ctx, games...); err != nil {
		t.Fatalf("PutGames() error = %v", err)
	}

	got, err := d.ByUserID(ctx, "alice")
	if err != nil {
		t.Fatalf("ByUserID() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "g1" || got[1].ID != "g3" {
		t.Errorf("ByUserID(alice) = %+v, want g1, g3", got)
	}

	// "bo" must not match "bob" through the prefix index.
	got, err = d.ByUserID(ctx, "bo")
	if err != nil {
		t.Fatalf("ByUserID() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ByUserID(bo) = %+v, want none", got)
	}

	got, err = d.ByIDs(ctx, []string{"g3", "missing", "g1"})
	if err != nil {
		t.Fatalf("ByIDs() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "g3" || got[1].ID != "g1" {
		t.Errorf("ByIDs() = %+v, want g3, g1", got)
	}
}

func TestDB_Players(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	err := d.PutPlayers(ctx,
		game.Player{ID: "a", Engine: true},
		game.Player{ID: "b"},
		game.Player{ID: "c", Engine: true},
	)
	if err != nil {
		t.Fatalf("PutPlayers() error = %v", err)
	}

	cheats, err := d.ByEngine(ctx, true)
	if err != nil {
		t.Fatalf("ByEngine() error = %v", err)
	}
	if len(cheats) != 2 {
		t.Errorf("ByEngine(true) = %d players, want 2", len(cheats))
	}

	legits, err := d.ByEngine(ctx, false)
	if err != nil {
		t.Fatalf("ByEngine() error = %v", err)
	}
	if len(legits) != 1 || legits[0].ID != "b" {
		t.Errorf("ByEngine(false) = %+v, want [b]", legits)
	}
}

func TestDB_Activations(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	err := d.PutActivations(ctx,
		game.Activation{GameID: "g1", UserID: "a", Engine: true, Prediction: 90},
		game.Activation{GameID: "g2", UserID: "a", Engine: true, Prediction: 70},
		game.Activation{GameID: "g3", UserID: "a", Engine: true, Prediction: 69},
		game.Activation{GameID: "g4", UserID: "b", Engine: false, Prediction: 95},
	)
	if err != nil {
		t.Fatalf("PutActivations() error = %v", err)
	}

	got, err := d.ByEngineAndPrediction(ctx, true, 70)
	if err != nil {
		t.Fatalf("ByEngineAndPrediction() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("ByEngineAndPrediction(true, 70) = %+v, want 2 activations", got)
	}
}

func TestDB_LazyWriteMany(t *testing.T) {
	d := openTestDB(t, WithFlushSize(2))
	ctx := context.Background()

	if err := d.LazyWriteMany(ctx, []game.AnalysedGame{{ID: "g1/a"}}); err != nil {
		t.Fatalf("LazyWriteMany() error = %v", err)
	}
	if _, found, _ := d.AnalysedGame(ctx, "g1/a"); found {
		t.Error("game written before flush size reached")
	}

	if err := d.LazyWriteMany(ctx, []game.AnalysedGame{{ID: "g2/a"}}); err != nil {
		t.Fatalf("LazyWriteMany() error = %v", err)
	}
	for _, id := range []string{"g1/a", "g2/a"} {
		if _, found, err := d.AnalysedGame(ctx, id); err != nil || !found {
			t.Errorf("AnalysedGame(%s) found = %v, err = %v", id, found, err)
		}
	}
}

func TestDB_FlushAndClose(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	d, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := d.LazyWriteMany(ctx, []game.AnalysedGame{{ID: "g1/a", UserID: "a"}}); err != nil {
		t.Fatalf("LazyWriteMany() error = %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := d.LazyWriteMany(ctx, nil); !errors.Is(err, db.ErrClosed) {
		t.Errorf("LazyWriteMany() after close error = %v, want ErrClosed", err)
	}

	d, err = Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer d.Close()

	ag, found, err := d.AnalysedGame(ctx, "g1/a")
	if err != nil || !found {
		t.Fatalf("AnalysedGame() found = %v, err = %v", found, err)
	}
	if ag.UserID != "a" {
		t.Errorf("UserID = %q, want %q", ag.UserID, "a")
	}
}

func TestDB_EnvClose(t *testing.T) {
	d, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	env := d.Env()
	if err := env.Close(); err != nil {
		t.Errorf("Env.Close() error = %v", err)
	}
	if err := d.LazyWriteMany(context.Background(), nil); !errors.Is(err, db.ErrClosed) {
		t.Errorf("LazyWriteMany() after env close error = %v, want ErrClosed", err)
	}
}

func TestDB_FailedFlushKeepsPending(t *testing.T) {
	d := openTestDB(t, WithFlushSize(2))
	ctx := context.Background()

	if err := d.LazyWriteMany(ctx, []game.AnalysedGame{{ID: "g1/a"}}); err != nil {
		t.Fatalf("LazyWriteMany() error = %v", err)
	}

	// Make every write fail.
	if err := d.bolt.Close(); err != nil {
		t.Fatalf("bolt.Close() error = %v", err)
	}

	if err := d.LazyWriteMany(ctx, []game.AnalysedGame{{ID: "g2/a"}}); err == nil {
		t.Fatal("LazyWriteMany() error = nil, want write error")
	}
	d.mu.Lock()
	pending := append([]game.AnalysedGame(nil), d.pending...)
	d.mu.Unlock()
	if len(pending) != 2 || pending[0].ID != "g1/a" || pending[1].ID != "g2/a" {
		t.Errorf("pending = %+v, want g1/a, g2/a", pending)
	}

	if err := d.Flush(ctx); err == nil {
		t.Error("Flush() error = nil, want write error")
	}
	d.mu.Lock()
	n := len(d.pending)
	d.mu.Unlock()
	if n != 2 {
		t.Errorf("len(pending) after failed Flush = %d, want 2", n)
	}

	if err := d.Close(); err == nil {
		t.Error("Close() error = nil, want the failed write reported")
	}
}

func TestDB_PutGamesReindexes(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	if err := d.PutGames(ctx, game.Game{ID: "g1", White: "alice", Black: "bob"}); err != nil {
		t.Fatalf("PutGames() error = %v", err)
	}
	if err := d.PutGames(ctx, game.Game{ID: "g1", White: "alice", Black: "carol"}); err != nil {
		t.Fatalf("PutGames() error = %v", err)
	}

	tests := []struct {
		user string
		want int
	}{
		{"alice", 1},
		{"bob", 0},
		{"carol", 1},
	}
	for _, tt := range tests {
		got, err := d.ByUserID(ctx, tt.user)
		if err != nil {
			t.Fatalf("ByUserID(%s) error = %v", tt.user, err)
		}
		if len(got) != tt.want {
			t.Errorf("ByUserID(%s) = %d games, want %d", tt.user, len(got), tt.want)
		}
	}
}
