package global

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8088
jwt:
  secret: abc
  ttl: 30m
retention:
  days: 7
seed:
  modules:
    - slug: sales
      name: Sales
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8088 {
		t.Errorf("port not applied: %d", cfg.Server.Port)
	}
	if cfg.JWT.TTL != 30*time.Minute {
		t.Errorf("ttl not parsed: %v", cfg.JWT.TTL)
	}
	if cfg.Retention.Days != 7 {
		t.Errorf("retention not applied: %d", cfg.Retention.Days)
	}
	// Untouched sections keep defaults.
	if cfg.Mongo.Database != "nioboard" {
		t.Errorf("default lost: %q", cfg.Mongo.Database)
	}
	if len(cfg.Seed.Modules) != 1 || cfg.Seed.Modules[0].Slug != "sales" {
		t.Errorf("seed modules not decoded: %+v", cfg.Seed.Modules)
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 1\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("missing jwt secret accepted")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "jwt:\n  secret: from-file\n")
	t.Setenv("NIOBOARD_JWT_SECRET", "from-env")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.JWT.Secret != "from-env" {
		t.Fatalf("env override lost: %q", cfg.JWT.Secret)
	}
}
