package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	os.Unsetenv("EMPLEO_ADDR")
	os.Unsetenv("EMPLEO_JWT_SECRET")
	os.Unsetenv("EMPLEO_DATABASE_PATH")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.DatabasePath != "empleo.db" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.APITimeout != 15*time.Second || cfg.TokenDuration != time.Hour {
		t.Fatalf("unexpected durations: %+v", cfg)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("EMPLEO_ADDR", ":9090")
	t.Setenv("EMPLEO_JWT_SECRET", "envsecret")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Addr != ":9090" || cfg.JWTSecret != "envsecret" {
		t.Fatalf("env override not applied: %+v", cfg)
	}
}

func TestLoadConfigYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "addr: \":7070\"\njwt_secret: \"filesecret\"\nworker_count: 8\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.JWTSecret != "filesecret" || cfg.WorkerCount != 8 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	// values the file does not set keep their defaults
	if cfg.DatabasePath != "empleo.db" {
		t.Fatalf("defaults lost on file load: %+v", cfg)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{Addr: ":8080", JWTSecret: "strong", DatabasePath: "empleo.db"}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	c := base()
	c.Addr = ""
	if err := c.Validate(); err == nil {
		t.Fatalf("empty addr accepted")
	}

	c = base()
	c.DatabasePath = ""
	if err := c.Validate(); err == nil {
		t.Fatalf("empty database_path accepted")
	}

	c = base()
	c.JWTSecret = ""
	if err := c.Validate(); err == nil {
		t.Fatalf("empty jwt_secret accepted")
	}

	t.Setenv("EMPLEO_ENV", "production")
	c = base()
	c.JWTSecret = "supersecretkey"
	if err := c.Validate(); err == nil {
		t.Fatalf("default secret accepted outside development")
	}

	t.Setenv("EMPLEO_ENV", "development")
	if err := c.Validate(); err != nil {
		t.Fatalf("default secret rejected in development: %v", err)
	}
}
