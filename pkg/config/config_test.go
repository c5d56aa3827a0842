package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleConfig = `
service_name = "pricing"

[http]
port = 9000

[database]
dsn = "user:pass@tcp(localhost:3306)/pricing"

[kafka]
brokers = ["localhost:9092"]

[engine]
num_sims = 250000
block_size = 4096
precision = "single"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.Port != 9000 || cfg.GRPC.Port != 50051 {
		t.Errorf("ports = %d/%d", cfg.HTTP.Port, cfg.GRPC.Port)
	}
	if cfg.Engine.NumSims != 250000 || cfg.Engine.BlockSize != 4096 || cfg.Engine.Precision != "single" {
		t.Errorf("engine = %+v", cfg.Engine)
	}
	if cfg.Engine.Confidence != 0.99 || cfg.Engine.NumericPolicy != "FAIL" || !cfg.Engine.RunReference {
		t.Errorf("engine defaults = %+v", cfg.Engine)
	}
	if !cfg.Kafka.Enabled() || cfg.Kafka.Topic != "pricing.path-options" {
		t.Errorf("kafka = %+v", cfg.Kafka)
	}
	if cfg.Environment != "dev" {
		t.Errorf("Environment = %q, want dev", cfg.Environment)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("APP_ENGINE_NUM_SIMS", "5000")
	t.Setenv("APP_LOGGER_LEVEL", "debug")
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Engine.NumSims != 5000 {
		t.Errorf("NumSims = %d, want 5000", cfg.Engine.NumSims)
	}
	if cfg.Logger.Level != "debug" {
		t.Errorf("Logger.Level = %q, want debug", cfg.Logger.Level)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("Load() of a missing file returned nil error")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	t.Setenv("APP_DATABASE_DSN", "user:pass@tcp(db:3306)/pricing")
	cfg, err := LoadWithDefaults(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("LoadWithDefaults() error = %v", err)
	}
	if cfg.Engine.NumSims != 1000000 || cfg.Kafka.Enabled() {
		t.Errorf("defaults = %+v / %+v", cfg.Engine, cfg.Kafka)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing dsn", "service_name = \"pricing\"\n"},
		{"bad port", sampleConfig + "\n[grpc]\nport = 70000\n"},
		{"bad confidence", "[database]\ndsn = \"x\"\n[engine]\nconfidence = 1.5\n"},
		{"max below default", "[database]\ndsn = \"x\"\n[engine]\nnum_sims = 10\nmax_sims = 5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Fatal("Load() returned nil error")
			}
		})
	}
}

func TestLoad_MemoryDriverNeedsNoDSN(t *testing.T) {
	cfg, err := Load(writeConfig(t, "[database]\ndriver = \"memory\"\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Driver != "memory" || cfg.Database.DSN != "" {
		t.Errorf("database = %+v", cfg.Database)
	}
}
