package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/discochess/irwin"
	"github.com/discochess/irwin/internal/config"
	"github.com/discochess/irwin/internal/db/boltdb"
	"github.com/discochess/irwin/internal/stats"
)

var (
	// Global flags.
	configPath string
	envFile    string
	dataDir    string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "irwin",
	Short: "Train and inspect the engine-assistance detection model",
	Long: `Irwin trains a neural network that scores how likely a player's
moves in a game were engine assisted.

Game records, player labels and detector activations are imported into a
local BoltDB database, from which balanced training sets are built. The
trained model is saved to disk, S3 or GCS.

Examples:
  # Load records
  irwin import --games games.jsonl --players players.jsonl

  # Train for 20 epochs
  irwin train --epochs 20

  # Show the saved model
  irwin inspect`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with IRWIN_* overrides")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "", "directory holding the database and the disk model store")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

// loadConfig loads the configuration and applies the flags set on cmd.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.DataDir = dataDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = lvl
	zcfg.Encoding = "console"
	zcfg.DisableStacktrace = true
	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	return logger.Named("irwin"), nil
}

// openClient opens the database and model store described by cfg.
func openClient(ctx context.Context, cfg config.Config, logger *zap.Logger, collector stats.Collector) (*irwin.Client, error) {
	bolt, err := boltdb.Open(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	st, err := cfg.OpenStore(ctx)
	if err != nil {
		bolt.Close()
		return nil, fmt.Errorf("opening model store: %w", err)
	}

	client, err := irwin.New(
		irwin.WithEnv(bolt.Env()),
		irwin.WithModelStore(st),
		irwin.WithLogger(logger),
		irwin.WithStats(collector),
	)
	if err != nil {
		st.Close()
		bolt.Close()
		return nil, fmt.Errorf("creating client: %w", err)
	}
	return client, nil
}

// signalContext returns a context cancelled on interrupt.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nInterrupted, stopping...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
