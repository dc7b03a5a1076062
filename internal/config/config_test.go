package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  jwt_secret: test
database:
  host: localhost
  name: snapvault
  user: sv
  password: sv
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("default port got = %d, want = 8080", cfg.Server.Port)
	}
	if cfg.Server.TokenTTL != 24*time.Hour {
		t.Errorf("default token ttl got = %v, want = 24h", cfg.Server.TokenTTL)
	}
	if cfg.Vision.EmbeddingDim != 512 {
		t.Errorf("default embedding dim got = %d, want = 512", cfg.Vision.EmbeddingDim)
	}
	if cfg.Vision.MatchThreshold != 0.6 {
		t.Errorf("default match threshold got = %v, want = 0.6", cfg.Vision.MatchThreshold)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("default log format got = %q, want = json", cfg.Logging.Format)
	}
}

func TestLoadValues(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  jwt_secret: s3cret
  token_ttl: 1h
database:
  host: db.internal
  port: 5433
  name: sv
  user: sv
  password: pw
vision:
  embedding_dim: 256
  match_threshold: 0.75
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port got = %d, want = 9090", cfg.Server.Port)
	}
	if cfg.Server.TokenTTL != time.Hour {
		t.Errorf("token ttl got = %v, want = 1h", cfg.Server.TokenTTL)
	}
	if cfg.Vision.EmbeddingDim != 256 {
		t.Errorf("embedding dim got = %d, want = 256", cfg.Vision.EmbeddingDim)
	}

	wantDSN := "postgres://sv:pw@db.internal:5433/sv?sslmode=disable"
	if got := cfg.Database.DSN(); got != wantDSN {
		t.Errorf("DSN() got = %q, want = %q", got, wantDSN)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
database:
  host: localhost
`)

	t.Setenv("SV_SERVER_PORT", "7070")
	t.Setenv("SV_DB_HOST", "override.internal")
	t.Setenv("SV_JWT_SECRET", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("port got = %d, want = 7070", cfg.Server.Port)
	}
	if cfg.Database.Host != "override.internal" {
		t.Errorf("db host got = %q, want = override.internal", cfg.Database.Host)
	}
	if cfg.Server.JWTSecret != "from-env" {
		t.Errorf("jwt secret got = %q, want = from-env", cfg.Server.JWTSecret)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load() on missing file did not error")
	}
}
