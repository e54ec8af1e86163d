package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadRequiresSecret(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", "")
	os.Unsetenv("JWT_SECRET")

	if _, err := Load(); err == nil {
		t.Fatal("Load() without JWT_SECRET should fail")
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "parley.toml")
	content := `
[server]
host = "127.0.0.1"
port = 7000
allowed_origins = ["https://chat.example.com"]

[database]
path = "/var/lib/parley/file.db"

[jwt]
secret = "from-file"
expiry_hours = 12
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("SERVER_PORT", "7100")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("METRICS_INTERVAL", "1m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want value from file", cfg.Server.Host)
	}
	if cfg.Server.Port != 7100 {
		t.Errorf("Server.Port = %d, want 7100 from env", cfg.Server.Port)
	}
	if cfg.Database.Path != "/var/lib/parley/file.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.JWT.Secret != "from-env" {
		t.Errorf("JWT.Secret = %q, want env to win", cfg.JWT.Secret)
	}
	if got := cfg.JWT.TokenTTL(); got != 12*time.Hour {
		t.Errorf("TokenTTL() = %v, want 12h", got)
	}
	if cfg.Metrics.Interval != time.Minute {
		t.Errorf("Metrics.Interval = %v, want 1m", cfg.Metrics.Interval)
	}

	want := []string{"https://a.example.com", "https://b.example.com"}
	if diff := cmp.Diff(want, cfg.Server.AllowedOrigins); diff != "" {
		t.Errorf("AllowedOrigins mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("SERVER_PORT", "not-a-port")

	if _, err := Load(); err == nil {
		t.Fatal("Load() with invalid SERVER_PORT should fail")
	}
}

func TestServerAddr(t *testing.T) {
	c := ServerConfig{Host: "0.0.0.0", Port: 9090}
	if got := c.Addr(); got != "0.0.0.0:9090" {
		t.Errorf("Addr() = %q", got)
	}
}
