package irwinfx

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap/zaptest"

	"github.com/discochess/irwin"
	"github.com/discochess/irwin/internal/config"
	"github.com/discochess/irwin/internal/stats"
	promstats "github.com/discochess/irwin/internal/stats/prometheus"
)

func TestModule(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()

	var client *irwin.Client
	app := fxtest.New(t,
		fx.Supply(cfg),
		fx.Supply(zaptest.NewLogger(t)),
		Module,
		fx.Populate(&client),
	)
	app.RequireStart()

	if _, err := client.Model(context.Background(), false); err != nil {
		t.Fatalf("Model() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.DataDir, "irwin.db")); err != nil {
		t.Errorf("database not created: %v", err)
	}

	app.RequireStop()

	if err := client.Close(); !errors.Is(err, irwin.ErrClosed) {
		t.Errorf("Close() after stop error = %v, want ErrClosed", err)
	}
}

func TestModule_SuppliedCollector(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	reg := prometheus.NewRegistry()

	var client *irwin.Client
	app := fxtest.New(t,
		fx.Supply(cfg),
		fx.Supply(zaptest.NewLogger(t)),
		fx.Provide(fx.Annotate(
			func() stats.Collector { return promstats.New(reg) },
			fx.ResultTags(`name:"irwin.stats"`),
		)),
		Module,
		fx.Populate(&client),
	)
	app.RequireStart()
	defer app.RequireStop()

	if _, err := client.Model(context.Background(), true); err != nil {
		t.Fatalf("Model() error = %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	var built bool
	for _, f := range families {
		if f.GetName() == stats.MetricModelsBuilt {
			built = true
		}
	}
	if !built {
		t.Errorf("%s not recorded by the supplied collector", stats.MetricModelsBuilt)
	}
}

func TestModule_InvalidDataDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	cfg := config.Default()
	cfg.DataDir = file

	var client *irwin.Client
	app := fx.New(
		fx.Supply(cfg),
		fx.Supply(zaptest.NewLogger(t)),
		Module,
		fx.Populate(&client),
		fx.NopLogger,
	)
	if app.Err() == nil {
		t.Error("fx.New() error = nil, want error for a data directory that is a file")
	}
}
