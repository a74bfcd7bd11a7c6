// Package memoryirwinfx provides an fx module for an in-memory irwin
// client. Useful for testing.
package memoryirwinfx

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/discochess/irwin"
	"github.com/discochess/irwin/internal/db/memdb"
	"github.com/discochess/irwin/internal/stats"
	"github.com/discochess/irwin/internal/stats/logger"
	"github.com/discochess/irwin/internal/store/memstore"
)

// Module provides an in-memory irwin client for testing.
// Requires a *zap.Logger to be provided.
var Module = fx.Module("memoryirwin",
	fx.Provide(
		newStatsCollector,
		memdb.New,
		memstore.New,
		newClient,
	),
)

func newStatsCollector(log *zap.Logger) stats.Collector {
	return logger.New(log.Named("irwin"))
}

// Params holds dependencies for creating the client.
type Params struct {
	fx.In

	Logger    *zap.Logger
	Collector stats.Collector
	DB        *memdb.DB
	Store     *memstore.Store
	Lifecycle fx.Lifecycle
}

// Result holds the provided client.
type Result struct {
	fx.Out

	Client *irwin.Client
}

func newClient(p Params) (Result, error) {
	client, err := irwin.New(
		irwin.WithEnv(p.DB.Env()),
		irwin.WithModelStore(p.Store),
		irwin.WithStats(p.Collector),
		irwin.WithLogger(p.Logger.Named("irwin")),
	)
	if err != nil {
		return Result{}, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	return Result{Client: client}, nil
}
