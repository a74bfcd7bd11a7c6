// Package api is the entry point analysis workers use to hand analysed
// games to storage.
package api

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/discochess/irwin/internal/db"
	"github.com/discochess/irwin/internal/game"
	"github.com/discochess/irwin/internal/stats"
)

// API writes analysed games to the environment's analysed-game store.
// It holds no state of its own.
type API struct {
	env    *db.Env
	logger *zap.Logger
	stats  stats.Collector
}

// New creates an API over env. A nil logger or collector is replaced by
// a no-op one.
func New(env *db.Env, logger *zap.Logger, collector stats.Collector) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	if collector == nil {
		collector = stats.NewNoop()
	}
	return &API{
		env:    env,
		logger: logger.Named("api"),
		stats:  collector,
	}
}

// InsertAnalysedGames decodes every document and writes the batch.
// If any document is malformed the whole batch is dropped with a warning
// and nil is returned. Storage errors are returned.
func (a *API) InsertAnalysedGames(ctx context.Context, docs []game.Document) error {
	games := make([]game.AnalysedGame, 0, len(docs))
	for i, doc := range docs {
		ag, err := game.DecodeAnalysedGame(doc)
		if err != nil {
			var de *game.DecodeError
			if !errors.As(err, &de) {
				return fmt.Errorf("decoding analysed game %d: %w", i, err)
			}
			a.stats.IncCounter(stats.MetricAnalysedRejected, 1)
			a.logger.Warn("rejected analysed game batch",
				zap.Int("index", i),
				zap.Int("size", len(docs)),
				zap.Stringer("kind", de.Kind),
				zap.String("field", de.Field),
			)
			return nil
		}
		games = append(games, ag)
	}
	if len(games) == 0 {
		return nil
	}

	if err := a.env.AnalysedGames.LazyWriteMany(ctx, games); err != nil {
		return fmt.Errorf("writing analysed games: %w", err)
	}
	a.stats.IncCounter(stats.MetricAnalysedWritten, int64(len(games)))
	a.logger.Debug("wrote analysed games", zap.Int("count", len(games)))
	return nil
}
