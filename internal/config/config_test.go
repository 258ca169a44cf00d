package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", c.Server.Port)
	}
	if c.Auth.SessionMaxAge != 30*24*time.Hour {
		t.Errorf("session max age = %v", c.Auth.SessionMaxAge)
	}
	if c.Backend.SkillBenchmarkLimit != 60*time.Second {
		t.Errorf("skill benchmark timeout = %v", c.Backend.SkillBenchmarkLimit)
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := `
server:
  port: 9000
backend:
  base_url: ${TEST_BACKEND_URL}
database:
  driver: sqlite
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TEST_BACKEND_URL", "https://ai.example.com")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000", c.Server.Port)
	}
	if c.Backend.BaseURL != "https://ai.example.com" {
		t.Errorf("backend url = %q", c.Backend.BaseURL)
	}
	if c.Database.Driver != "sqlite" {
		t.Errorf("driver = %q", c.Database.Driver)
	}
	if c.Logging.Level != "warn" {
		t.Errorf("env should override yaml, level = %q", c.Logging.Level)
	}
	if len(c.CORS.AllowedOrigins) != 2 || c.CORS.AllowedOrigins[1] != "https://b.example.com" {
		t.Errorf("origins = %v", c.CORS.AllowedOrigins)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err != nil {
		t.Errorf("missing config file should fall back to defaults, got %v", err)
	}
}

func TestExpandEnvVarsKeepsUnset(t *testing.T) {
	t.Setenv("SET_ONE", "x")
	got := expandEnvVars("${SET_ONE}-${DEFINITELY_UNSET_VAR_123}")
	if got != "x-${DEFINITELY_UNSET_VAR_123}" {
		t.Errorf("got %q", got)
	}
}
