package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/discochess/irwin/internal/store/diskstore"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg != Default() {
		t.Errorf("Load() = %+v, want defaults", cfg)
	}
}

func TestLoad_Layers(t *testing.T) {
	yamlPath := writeFile(t, "irwin.yaml", `
dataDir: /srv/irwin
model:
  backend: s3
  bucket: models
  prefix: prod
train:
  epochs: 20
`)
	envPath := writeFile(t, ".env", "IRWIN_MODEL_PREFIX=staging\nIRWIN_TRAIN_EPOCHS=5\n")
	t.Setenv("IRWIN_TRAIN_EPOCHS", "7")
	t.Setenv("IRWIN_TRAIN_FILTERED", "true")

	cfg, err := Load(yamlPath, envPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"yaml", cfg.DataDir, "/srv/irwin"},
		{"yaml nested", cfg.Model.Bucket, "models"},
		{"dotenv over yaml", cfg.Model.Prefix, "staging"},
		{"env over dotenv", cfg.Train.Epochs, 7},
		{"env", cfg.Train.Filtered, true},
		{"default kept", cfg.Model.Compression, "zstd"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestLoad_MissingDotenvIgnored(t *testing.T) {
	if _, err := Load("", filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Errorf("Load() error = %v", err)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  map[string]string
	}{
		{"bad yaml", "model: [", nil},
		{"unknown backend", "model:\n  backend: ftp\n", nil},
		{"bucket required", "model:\n  backend: gcs\n", nil},
		{"unknown compression", "model:\n  compression: lz4\n", nil},
		{"zero epochs", "train:\n  epochs: 0\n", nil},
		{"bad epochs env", "", map[string]string{"IRWIN_TRAIN_EPOCHS": "ten"}},
		{"bad filtered env", "", map[string]string{"IRWIN_TRAIN_FILTERED": "maybe"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := writeFile(t, "irwin.yaml", tt.yaml)
			if _, err := Load(path, ""); err == nil {
				t.Error("Load() error = nil, want error")
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), ""); err == nil {
		t.Error("Load(missing file) error = nil, want error")
	}
}

func TestConfig_Codec(t *testing.T) {
	for _, name := range []string{"zstd", "gzip", "none"} {
		cfg := Default()
		cfg.Model.Compression = name
		c, err := cfg.Codec()
		if err != nil {
			t.Fatalf("Codec(%s) error = %v", name, err)
		}
		if c.Name() != name {
			t.Errorf("Codec(%s).Name() = %q", name, c.Name())
		}
	}
}

func TestConfig_OpenStoreDisk(t *testing.T) {
	cfg := Default()
	cfg.DataDir = filepath.Join(t.TempDir(), "nested", "data")

	st, err := cfg.OpenStore(context.Background())
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	defer st.Close()

	if _, ok := st.(*diskstore.Store); !ok {
		t.Errorf("OpenStore() = %T, want *diskstore.Store", st)
	}
	if _, err := os.Stat(cfg.DataDir); err != nil {
		t.Errorf("data directory not created: %v", err)
	}
}
