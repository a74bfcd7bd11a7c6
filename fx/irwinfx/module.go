// Package irwinfx provides an fx module for an irwin client configured
// from a config.Config: BoltDB record stores in the data directory and
// the configured model store.
package irwinfx

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/discochess/irwin"
	"github.com/discochess/irwin/internal/config"
	"github.com/discochess/irwin/internal/db/boltdb"
	"github.com/discochess/irwin/internal/stats"
	"github.com/discochess/irwin/internal/stats/logger"
)

// Module provides an *irwin.Client.
// Requires a config.Config and a *zap.Logger to be provided. A
// stats.Collector may be supplied; otherwise metrics are logged.
var Module = fx.Module("irwin",
	fx.Provide(
		fx.Private,
		newStatsCollector,
	),
	fx.Provide(newClient),
)

// CollectorParams lets callers supply their own collector.
type CollectorParams struct {
	fx.In

	Logger    *zap.Logger
	Collector stats.Collector `name:"irwin.stats" optional:"true"`
}

func newStatsCollector(p CollectorParams) stats.Collector {
	if p.Collector != nil {
		return p.Collector
	}
	return logger.New(p.Logger.Named("irwin"))
}

// Params holds dependencies for creating the client.
type Params struct {
	fx.In

	Config    config.Config
	Logger    *zap.Logger
	Collector stats.Collector
	Lifecycle fx.Lifecycle
}

// Result holds the provided client.
type Result struct {
	fx.Out

	Client *irwin.Client
}

func newClient(p Params) (Result, error) {
	bolt, err := boltdb.Open(p.Config.DataDir)
	if err != nil {
		return Result{}, err
	}

	st, err := p.Config.OpenStore(context.Background())
	if err != nil {
		bolt.Close()
		return Result{}, fmt.Errorf("opening model store: %w", err)
	}

	client, err := irwin.New(
		irwin.WithEnv(bolt.Env()),
		irwin.WithModelStore(st),
		irwin.WithStats(p.Collector),
		irwin.WithLogger(p.Logger.Named("irwin")),
	)
	if err != nil {
		st.Close()
		bolt.Close()
		return Result{}, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	return Result{Client: client}, nil
}
