package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestBaseConfigApplyDefaults(t *testing.T) {
	cfg := BaseConfig{Name: "svc"}
	cfg.ApplyDefaults()
	if cfg.Environment != "development" {
		t.Errorf("expected 'development', got %q", cfg.Environment)
	}
	if cfg.Debug {
		t.Error("expected debug to stay as configured")
	}
}

func TestBaseConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     BaseConfig
		wantErr bool
		errMsg  string
	}{
		{"valid development", BaseConfig{Name: "svc", Environment: "development"}, false, ""},
		{"valid production", BaseConfig{Name: "svc", Environment: "production"}, false, ""},
		{"missing name", BaseConfig{Environment: "production"}, true, "base.name is required"},
		{"invalid environment", BaseConfig{Name: "svc", Environment: "invalid"}, true, "base.environment must be one of"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !strings.Contains(err.Error(), tc.errMsg) {
					t.Errorf("expected error containing %q, got %q", tc.errMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

type redisSection struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type testConfig struct {
	Base  BaseConfig   `mapstructure:"base"`
	Redis redisSection `mapstructure:"redis"`
	Cache struct {
		DefaultTTL time.Duration `mapstructure:"default_ttl"`
	} `mapstructure:"cache"`
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadConfigWithYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yml", `
base:
  name: satkit
  environment: staging
redis:
  enabled: true
  addr: "cache:6379"
cache:
  default_ttl: 90s
`)

	var cfg testConfig
	if err := LoadConfig("satkit", &cfg, WithConfigFile(path)); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Base.Name != "satkit" || cfg.Base.Environment != "staging" {
		t.Errorf("unexpected base %+v", cfg.Base)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "cache:6379" {
		t.Errorf("unexpected redis %+v", cfg.Redis)
	}
	if cfg.Cache.DefaultTTL != 90*time.Second {
		t.Errorf("expected 90s, got %s", cfg.Cache.DefaultTTL)
	}
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yml", "redis:\n  addr: \"file:6379\"\n")
	t.Setenv("SATKIT_REDIS_ADDR", "env:6379")
	t.Setenv("SATKIT_BASE_DEBUG", "true")

	var cfg testConfig
	if err := LoadConfig("satkit", &cfg, WithConfigFile(path), WithEnvPrefix("SATKIT")); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Redis.Addr != "env:6379" {
		t.Errorf("expected env override, got %q", cfg.Redis.Addr)
	}
	if !cfg.Base.Debug {
		t.Error("expected debug from environment")
	}
}

func TestLoadConfigEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := writeFile(t, dir, ".env", "ENVFILE_REDIS_ENABLED=true\n")
	t.Cleanup(func() { _ = os.Unsetenv("ENVFILE_REDIS_ENABLED") })

	var cfg testConfig
	if err := LoadConfig("satkit", &cfg, WithEnvFile(envPath), WithEnvPrefix("ENVFILE"), WithFileSystem(OSFileSystem{})); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if !cfg.Redis.Enabled {
		t.Error("expected redis.enabled from .env file")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	var cfg testConfig
	if err := LoadConfig("nonexistent-service", &cfg, WithConfigFile("/nonexistent/path.yml")); err != nil {
		t.Fatalf("expected LoadConfig to succeed with missing file, got %v", err)
	}
}

func TestLoadConfigResolvesServiceFile(t *testing.T) {
	fs := &mockFS{files: map[string]bool{
		filepath.Join("cmd", "my-svc", "config.yml"): true,
	}}
	got := firstExisting(fs, ConfigCandidates("my-svc"))
	if want := filepath.Join("cmd", "my-svc", "config.yml"); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if got := firstExisting(fs, EnvCandidates("my-svc")); got != "" {
		t.Errorf("expected no env file, got %q", got)
	}
}

type mockFS struct {
	files map[string]bool
}

func (m *mockFS) Exists(path string) bool   { return m.files[path] }
func (m *mockFS) LoadEnv(path string) error { return nil }

func TestKeys(t *testing.T) {
	want := []string{
		"base.name", "base.environment", "base.version", "base.debug",
		"redis.enabled", "redis.addr",
		"cache.default_ttl",
	}
	if diff := cmp.Diff(want, Keys(&testConfig{})); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}
}
