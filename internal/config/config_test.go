package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ListenAddr != "localhost:8000" {
		t.Errorf("unexpected listen addr: %s", cfg.ListenAddr)
	}
	if cfg.Queue.ClaimTimeout != 1*time.Second {
		t.Errorf("unexpected claim timeout: %v", cfg.Queue.ClaimTimeout)
	}
	if cfg.Worker.HeartbeatInterval != 10*time.Second {
		t.Errorf("unexpected heartbeat interval: %v", cfg.Worker.HeartbeatInterval)
	}
	if cfg.Worker.IdleSleep != 1*time.Second {
		t.Errorf("unexpected idle sleep: %v", cfg.Worker.IdleSleep)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
listen_addr: ":9000"
redis:
  addr: "redis.internal:6379"
  db: 2
worker:
  heartbeat_interval: 5s
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ListenAddr != ":9000" {
		t.Errorf("listen addr not overridden: %s", cfg.ListenAddr)
	}
	if cfg.Redis.Addr != "redis.internal:6379" || cfg.Redis.DB != 2 {
		t.Errorf("redis config not overridden: %+v", cfg.Redis)
	}
	if cfg.Worker.HeartbeatInterval != 5*time.Second {
		t.Errorf("heartbeat interval not overridden: %v", cfg.Worker.HeartbeatInterval)
	}
	// Untouched values keep their defaults
	if cfg.Worker.IdleSleep != 1*time.Second {
		t.Errorf("idle sleep should keep its default: %v", cfg.Worker.IdleSleep)
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_PG_URI", "postgres://doc:flow@db/results")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
postgres:
  uri: "${TEST_PG_URI}"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Postgres.URI != "postgres://doc:flow@db/results" {
		t.Errorf("env var not expanded: %s", cfg.Postgres.URI)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/no/such/config.yaml"); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestLoadIfPresentFallsBack(t *testing.T) {
	cfg, err := LoadIfPresent("/no/such/config.yaml")
	if err != nil {
		t.Fatalf("LoadIfPresent failed: %v", err)
	}
	if cfg.ListenAddr != "localhost:8000" {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}
