// Package boltdb implements the record stores on top of a single BoltDB
// file.
//
// Records are stored as JSON values. Games are additionally indexed by
// player so ByUserID is a prefix scan rather than a full bucket walk.
// Analysed games are buffered and written in batches.
package boltdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/multierr"

	"github.com/discochess/irwin/internal/db"
	"github.com/discochess/irwin/internal/game"
)

const (
	gamesBucket       = "games"
	userGamesBucket   = "user_games"
	playersBucket     = "players"
	activationsBucket = "activations"
	analysedBucket    = "analysed_games"

	// DefaultFlushSize is the number of buffered analysed games that
	// triggers a write.
	DefaultFlushSize = 256

	dbFilename = "irwin.db"
)

// Compile-time checks that DB implements the store interfaces.
var (
	_ db.GameStore         = (*DB)(nil)
	_ db.PlayerStore       = (*DB)(nil)
	_ db.ActivationStore   = (*DB)(nil)
	_ db.AnalysedGameStore = (*DB)(nil)
)

// DB is a BoltDB-backed implementation of every store.
type DB struct {
	bolt      *bbolt.DB
	flushSize int

	mu      sync.Mutex
	pending []game.AnalysedGame
	closed  bool
}

// Option configures a DB.
type Option func(*DB)

// WithFlushSize sets how many analysed games are buffered before they are
// written.
func WithFlushSize(n int) Option {
	return func(d *DB) {
		if n > 0 {
			d.flushSize = n
		}
	}
}

// Open opens (creating if needed) the database in dir.
func Open(dir string, opts ...Option) (*DB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	bolt, err := bbolt.Open(filepath.Join(dir, dbFilename), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	err = bolt.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{gamesBucket, userGamesBucket, playersBucket, activationsBucket, analysedBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("creating %s bucket: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		bolt.Close()
		return nil, err
	}

	d := &DB{bolt: bolt, flushSize: DefaultFlushSize}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Env returns an environment backed by d. Closing the environment closes d.
func (d *DB) Env() *db.Env {
	env := &db.Env{
		Games:         d,
		Players:       d,
		Activations:   d,
		AnalysedGames: d,
	}
	env.OnClose(d.Close)
	return env
}

// PutGames stores games and indexes them by both players.
func (d *DB) PutGames(ctx context.Context, games ...game.Game) error {
	return d.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(gamesBucket))
		idx := tx.Bucket([]byte(userGamesBucket))
		for _, g := range games {
			data, err := json.Marshal(g)
			if err != nil {
				return fmt.Errorf("marshal game %s: %w", g.ID, err)
			}
			if err := unindexGame(b, idx, g.ID); err != nil {
				return err
			}
			if err := b.Put([]byte(g.ID), data); err != nil {
				return err
			}
			for _, user := range []string{g.White, g.Black} {
				if user == "" {
					continue
				}
				if err := idx.Put(userGameKey(user, g.ID), nil); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// unindexGame removes the index keys of the stored game id, if any.
func unindexGame(games, idx *bbolt.Bucket, id string) error {
	data := games.Get([]byte(id))
	if data == nil {
		return nil
	}
	var old game.Game
	if err := json.Unmarshal(data, &old); err != nil {
		return fmt.Errorf("unmarshal game %s: %w", id, err)
	}
	for _, user := range []string{old.White, old.Black} {
		if user == "" {
			continue
		}
		if err := idx.Delete(userGameKey(user, id)); err != nil {
			return err
		}
	}
	return nil
}

// PutPlayers stores players, replacing existing records.
func (d *DB) PutPlayers(ctx context.Context, players ...game.Player) error {
	return d.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(playersBucket))
		for _, p := range players {
			if err := putJSON(b, p.ID, p); err != nil {
				return err
			}
		}
		return nil
	})
}

// PutActivations stores activations keyed by game and user.
func (d *DB) PutActivations(ctx context.Context, activations ...game.Activation) error {
	return d.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(activationsBucket))
		for _, a := range activations {
			if err := putJSON(b, a.ID(), a); err != nil {
				return err
			}
		}
		return nil
	})
}

// ByUserID returns every game the player took part in, ordered by game id.
func (d *DB) ByUserID(ctx context.Context, userID string) ([]game.Game, error) {
	var out []game.Game
	err := d.bolt.View(func(tx *bbolt.Tx) error {
		games := tx.Bucket([]byte(gamesBucket))
		prefix := userGameKey(userID, "")
		c := tx.Bucket([]byte(userGamesBucket)).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			data := games.Get(k[len(prefix):])
			if data == nil {
				continue
			}
			var g game.Game
			if err := json.Unmarshal(data, &g); err != nil {
				return fmt.Errorf("unmarshal game %s: %w", k[len(prefix):], err)
			}
			out = append(out, g)
		}
		return nil
	})
	return out, err
}

// ByIDs returns the games with the given ids, in the order of ids.
// Unknown ids are skipped.
func (d *DB) ByIDs(ctx context.Context, ids []string) ([]game.Game, error) {
	out := make([]game.Game, 0, len(ids))
	err := d.bolt.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(gamesBucket))
		for _, id := range ids {
			data := b.Get([]byte(id))
			if data == nil {
				continue
			}
			var g game.Game
			if err := json.Unmarshal(data, &g); err != nil {
				return fmt.Errorf("unmarshal game %s: %w", id, err)
			}
			out = append(out, g)
		}
		return nil
	})
	return out, err
}

// ByEngine returns the players with the given engine flag.
func (d *DB) ByEngine(ctx context.Context, engine bool) ([]game.Player, error) {
	var out []game.Player
	err := d.bolt.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(playersBucket)).ForEach(func(k, v []byte) error {
			var p game.Player
			if err := json.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("unmarshal player %s: %w", k, err)
			}
			if p.Engine == engine {
				out = append(out, p)
			}
			return nil
		})
	})
	return out, err
}

// ByEngineAndPrediction returns matching activations.
func (d *DB) ByEngineAndPrediction(ctx context.Context, engine bool, minPrediction int) ([]game.Activation, error) {
	var out []game.Activation
	err := d.bolt.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(activationsBucket)).ForEach(func(k, v []byte) error {
			var a game.Activation
			if err := json.Unmarshal(v, &a); err != nil {
				return fmt.Errorf("unmarshal activation %s: %w", k, err)
			}
			if a.Engine == engine && a.Prediction >= minPrediction {
				out = append(out, a)
			}
			return nil
		})
	})
	return out, err
}

// LazyWriteMany buffers the games and writes the buffer once it reaches
// the flush size.
func (d *DB) LazyWriteMany(ctx context.Context, games []game.AnalysedGame) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return db.ErrClosed
	}
	d.pending = append(d.pending, games...)
	if len(d.pending) < d.flushSize {
		d.mu.Unlock()
		return nil
	}
	batch := d.pending
	d.pending = nil
	d.mu.Unlock()

	return d.flush(batch)
}

// Flush writes any buffered analysed games.
func (d *DB) Flush(ctx context.Context) error {
	d.mu.Lock()
	batch := d.pending
	d.pending = nil
	d.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	return d.flush(batch)
}

// flush writes batch. On failure the batch goes back to the front of the
// buffer so a later flush retries it.
func (d *DB) flush(batch []game.AnalysedGame) error {
	err := d.writeAnalysed(batch)
	if err == nil {
		return nil
	}
	d.mu.Lock()
	d.pending = append(batch, d.pending...)
	d.mu.Unlock()
	return fmt.Errorf("writing %d analysed games: %w", len(batch), err)
}

// AnalysedGame reads a stored analysed game. It returns false if the game
// has not been written yet.
func (d *DB) AnalysedGame(ctx context.Context, id string) (game.AnalysedGame, bool, error) {
	var ag game.AnalysedGame
	var found bool
	err := d.bolt.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(analysedBucket)).Get([]byte(id))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &ag)
	})
	return ag, found, err
}

// Close flushes buffered writes and closes the database.
func (d *DB) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	batch := d.pending
	d.pending = nil
	d.mu.Unlock()

	var err error
	if len(batch) > 0 {
		if werr := d.writeAnalysed(batch); werr != nil {
			err = multierr.Append(err, fmt.Errorf("writing %d analysed games: %w", len(batch), werr))
		}
	}
	if cerr := d.bolt.Close(); cerr != nil {
		err = multierr.Append(err, cerr)
	}
	return err
}

func (d *DB) writeAnalysed(games []game.AnalysedGame) error {
	return d.bolt.Batch(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(analysedBucket))
		for _, g := range games {
			if err := putJSON(b, g.ID, g); err != nil {
				return err
			}
		}
		return nil
	})
}

func putJSON(b *bbolt.Bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return b.Put([]byte(key), data)
}

// userGameKey builds the index key "<user>\x00<game>".
func userGameKey(userID, gameID string) []byte {
	k := make([]byte, 0, len(userID)+1+len(gameID))
	k = append(k, userID...)
	k = append(k, 0)
	return append(k, gameID...)
}
