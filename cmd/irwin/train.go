package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/discochess/irwin"
	"github.com/discochess/irwin/internal/stats"
	statslogger "github.com/discochess/irwin/internal/stats/logger"
	promstats "github.com/discochess/irwin/internal/stats/prometheus"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the model on the imported records",
	Long: `Build a balanced training set from the database, fit the model and
save it.

Cheat games come from players flagged as engine users, or with --filtered
from detector activations scoring at least 70. Legit games come from
players not flagged. Both classes are truncated to the same size.

Examples:
  # Continue training the saved model
  irwin train --epochs 20

  # Start over from fresh weights using activations
  irwin train --new --filtered

  # Expose Prometheus metrics while training
  irwin train --metrics-addr :9090`,
	RunE: runTrain,
}

var (
	trainEpochs   int
	trainFiltered bool
	trainNew      bool
	metricsAddr   string
)

func init() {
	trainCmd.Flags().IntVarP(&trainEpochs, "epochs", "e", 0, "number of epochs (default from config)")
	trainCmd.Flags().BoolVar(&trainFiltered, "filtered", false, "select cheat games by activation score")
	trainCmd.Flags().BoolVar(&trainNew, "new", false, "train a freshly built model instead of the saved one")
	trainCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on")
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("epochs") {
		cfg.Train.Epochs = trainEpochs
	}
	if cmd.Flags().Changed("filtered") {
		cfg.Train.Filtered = trainFiltered
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.MetricsAddr = metricsAddr
	}
	if cfg.Train.Epochs < 1 {
		return fmt.Errorf("epochs must be positive, got %d", cfg.Train.Epochs)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	var collector stats.Collector = statslogger.New(logger)
	if cfg.MetricsAddr != "" {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		collector = promstats.New(registry)

		srv := serveMetrics(cfg.MetricsAddr, registry, logger)
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			srv.Shutdown(shutdownCtx)
		}()
	}

	client, err := openClient(ctx, cfg, logger, collector)
	if err != nil {
		return err
	}
	defer client.Close()

	fmt.Printf("Training %s model\n", modelKind(trainNew))
	fmt.Printf("  Data:     %s\n", cfg.DataDir)
	fmt.Printf("  Backend:  %s\n", cfg.Model.Backend)
	fmt.Printf("  Epochs:   %d\n", cfg.Train.Epochs)
	fmt.Printf("  Filtered: %t\n", cfg.Train.Filtered)
	fmt.Println()

	report, err := client.Train(ctx, irwin.TrainOptions{
		Epochs:   cfg.Train.Epochs,
		Filtered: cfg.Train.Filtered,
		NewModel: trainNew,
	})
	if errors.Is(err, irwin.ErrEmptyBatch) {
		return fmt.Errorf("no training data: import games for both engine and legit players first: %w", err)
	}
	if err != nil {
		return fmt.Errorf("training: %w", err)
	}

	for _, e := range report.History.Epochs {
		fmt.Printf("Epoch %3d  loss %.4f  acc %.3f  val_loss %.4f  val_acc %.3f\n",
			e.Epoch, e.Loss, e.Accuracy, e.ValLoss, e.ValAccuracy)
	}
	fmt.Println()
	fmt.Printf("Samples:  %d (%d cheats)\n", report.Samples, report.Cheats)
	fmt.Printf("Step:     %d\n", report.Step)
	fmt.Printf("Duration: %v\n", report.Duration.Round(time.Millisecond))
	return nil
}

func modelKind(newModel bool) string {
	if newModel {
		return "new"
	}
	return "saved"
}

func serveMetrics(addr string, registry *prometheus.Registry, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))
	return srv
}
