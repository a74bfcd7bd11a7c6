// Package config loads the command-line configuration: a YAML file,
// then a .env file, then IRWIN_* environment variables, each overriding
// the previous.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/discochess/irwin/internal/codec"
	"github.com/discochess/irwin/internal/codec/gzipcodec"
	"github.com/discochess/irwin/internal/codec/noopcodec"
	"github.com/discochess/irwin/internal/codec/zstdcodec"
	"github.com/discochess/irwin/internal/store"
	"github.com/discochess/irwin/internal/store/diskstore"
	"github.com/discochess/irwin/internal/store/gcsstore"
	"github.com/discochess/irwin/internal/store/s3store"
)

// Model store backends.
const (
	BackendDisk = "disk"
	BackendS3   = "s3"
	BackendGCS  = "gcs"
)

// Config is the full configuration.
type Config struct {
	DataDir     string `yaml:"dataDir"`
	MetricsAddr string `yaml:"metricsAddr"`
	LogLevel    string `yaml:"logLevel"`

	Model Model `yaml:"model"`
	Train Train `yaml:"train"`
}

// Model configures where the model is saved.
type Model struct {
	Backend     string `yaml:"backend"`
	Bucket      string `yaml:"bucket"`
	Prefix      string `yaml:"prefix"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	Compression string `yaml:"compression"`
}

// Train holds training defaults.
type Train struct {
	Epochs   int  `yaml:"epochs"`
	Filtered bool `yaml:"filtered"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		DataDir:  "data",
		LogLevel: "info",
		Model: Model{
			Backend:     BackendDisk,
			Compression: "zstd",
		},
		Train: Train{
			Epochs: 10,
		},
	}
}

// Load builds a configuration from the defaults, the YAML file at path
// and the dotenv file at envFile, then environment variables. Empty
// paths are skipped, as is a missing envFile.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	dotenv := map[string]string{}
	if envFile != "" {
		var err error
		dotenv, err = godotenv.Read(envFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("reading %s: %w", envFile, err)
		}
	}
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	if err := cfg.override(lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) override(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"IRWIN_DATA_DIR":          &c.DataDir,
		"IRWIN_METRICS_ADDR":      &c.MetricsAddr,
		"IRWIN_LOG_LEVEL":         &c.LogLevel,
		"IRWIN_MODEL_BACKEND":     &c.Model.Backend,
		"IRWIN_MODEL_BUCKET":      &c.Model.Bucket,
		"IRWIN_MODEL_PREFIX":      &c.Model.Prefix,
		"IRWIN_MODEL_REGION":      &c.Model.Region,
		"IRWIN_MODEL_ENDPOINT":    &c.Model.Endpoint,
		"IRWIN_MODEL_COMPRESSION": &c.Model.Compression,
	}
	for key, field := range strs {
		if v, ok := lookup(key); ok {
			*field = v
		}
	}

	if v, ok := lookup("IRWIN_TRAIN_EPOCHS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("IRWIN_TRAIN_EPOCHS: %w", err)
		}
		c.Train.Epochs = n
	}
	if v, ok := lookup("IRWIN_TRAIN_FILTERED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("IRWIN_TRAIN_FILTERED: %w", err)
		}
		c.Train.Filtered = b
	}
	return nil
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	if c.Train.Epochs < 1 {
		return fmt.Errorf("config: train.epochs must be positive, got %d", c.Train.Epochs)
	}
	if _, err := c.Codec(); err != nil {
		return err
	}
	switch c.Model.Backend {
	case BackendDisk:
		if c.DataDir == "" {
			return errors.New("config: dataDir is required for the disk backend")
		}
	case BackendS3, BackendGCS:
		if c.Model.Bucket == "" {
			return fmt.Errorf("config: model.bucket is required for the %s backend", c.Model.Backend)
		}
	default:
		return fmt.Errorf("config: unknown model.backend %q", c.Model.Backend)
	}
	return nil
}

// Codec returns the configured compression codec.
func (c Config) Codec() (codec.Codec, error) {
	switch c.Model.Compression {
	case "zstd", "":
		return zstdcodec.New(), nil
	case "gzip":
		return gzipcodec.New(), nil
	case "none":
		return noopcodec.New(), nil
	default:
		return nil, fmt.Errorf("config: unknown model.compression %q", c.Model.Compression)
	}
}

// OpenStore opens the configured model store. The disk store lives in
// the data directory, which is created if needed.
func (c Config) OpenStore(ctx context.Context) (store.Store, error) {
	cod, err := c.Codec()
	if err != nil {
		return nil, err
	}

	switch c.Model.Backend {
	case BackendS3:
		opts := []s3store.Option{s3store.WithPrefix(c.Model.Prefix)}
		if c.Model.Region != "" {
			opts = append(opts, s3store.WithRegion(c.Model.Region))
		}
		if c.Model.Endpoint != "" {
			opts = append(opts, s3store.WithEndpoint(c.Model.Endpoint))
		}
		return s3store.New(ctx, c.Model.Bucket, cod, opts...)
	case BackendGCS:
		return gcsstore.New(ctx, c.Model.Bucket, cod, gcsstore.WithPrefix(c.Model.Prefix))
	default:
		if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return diskstore.New(c.DataDir, cod)
	}
}
