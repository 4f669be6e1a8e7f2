package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("CATALOG_URL", "https://catalog.example.com")
	t.Setenv("OAUTH_URL", "https://lms.example.com")
	t.Setenv("OAUTH_CLIENT_ID", "license-manager")
	t.Setenv("OAUTH_CLIENT_SECRET", "secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.CatalogAPIPath != "/api/v1" {
		t.Errorf("CatalogAPIPath = %q", cfg.CatalogAPIPath)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %v, want 30s", cfg.RequestTimeout)
	}
	if cfg.MaxPages != 10000 {
		t.Errorf("MaxPages = %d, want 10000", cfg.MaxPages)
	}
	if cfg.RedisURL != "" {
		t.Errorf("RedisURL = %q, want empty", cfg.RedisURL)
	}
	if got := cfg.APIBaseURL(); got != "https://catalog.example.com/api/v1" {
		t.Errorf("APIBaseURL() = %q", got)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_PRETTY", "true")
	t.Setenv("REQUEST_TIMEOUT", "5")
	t.Setenv("MAX_PAGES", "12")
	t.Setenv("REDIS_URL", "redis://localhost:6379/2")

	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "debug" || !cfg.LogPretty {
		t.Errorf("log settings = %q/%v", cfg.LogLevel, cfg.LogPretty)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Errorf("RequestTimeout = %v, want 5s", cfg.RequestTimeout)
	}
	if cfg.MaxPages != 12 {
		t.Errorf("MaxPages = %d, want 12", cfg.MaxPages)
	}
	if cfg.RedisURL != "redis://localhost:6379/2" {
		t.Errorf("RedisURL = %q", cfg.RedisURL)
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name     string
		unset    string
		override map[string]string
		errorMsg string
	}{
		{name: "missing catalog url", unset: "CATALOG_URL", errorMsg: "catalog_url is required"},
		{name: "missing oauth url", unset: "OAUTH_URL", errorMsg: "oauth_url is required"},
		{name: "missing client secret", unset: "OAUTH_CLIENT_SECRET", errorMsg: "oauth_client_id and oauth_client_secret are required"},
		{name: "zero timeout", override: map[string]string{"REQUEST_TIMEOUT": "0"}, errorMsg: "invalid request_timeout (must be positive seconds)"},
		{name: "zero max pages", override: map[string]string{"MAX_PAGES": "0"}, errorMsg: "invalid max_pages (must be positive)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			if tt.unset != "" {
				t.Setenv(tt.unset, "")
			}
			for k, v := range tt.override {
				t.Setenv(k, v)
			}

			_, err := Load(Options{})
			if err == nil {
				t.Fatal("Expected error but got nil")
			}
			if err.Error() != tt.errorMsg {
				t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
			}
		})
	}
}

func TestLoad_EnvFileValues(t *testing.T) {
	// t.Setenv registers cleanup so values loaded by godotenv are restored.
	for _, key := range []string{"CATALOG_URL", "OAUTH_URL", "OAUTH_CLIENT_ID", "OAUTH_CLIENT_SECRET"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := "CATALOG_URL=https://from-env-file.example.com/\n" +
		"OAUTH_URL=https://lms.example.com\n" +
		"OAUTH_CLIENT_ID=id\n" +
		"OAUTH_CLIENT_SECRET=secret\n"
	if err := os.WriteFile(envFile, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(Options{EnvFile: envFile})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.APIBaseURL(); got != "https://from-env-file.example.com/api/v1" {
		t.Errorf("APIBaseURL() = %q", got)
	}
}

func TestLoad_EnvFileErrors(t *testing.T) {
	setRequired(t)

	t.Run("missing file ignored", func(t *testing.T) {
		if _, err := Load(Options{EnvFile: filepath.Join(t.TempDir(), "absent.env")}); err != nil {
			t.Errorf("Load() error = %v, want nil for missing env file", err)
		}
	})

	t.Run("unparseable file rejected", func(t *testing.T) {
		envFile := filepath.Join(t.TempDir(), ".env")
		if err := os.WriteFile(envFile, []byte("BAD-KEY=1\n"), 0o600); err != nil {
			t.Fatalf("write env file: %v", err)
		}

		_, err := Load(Options{EnvFile: envFile})
		if err == nil || !strings.Contains(err.Error(), "load env file") {
			t.Errorf("Load() error = %v, want env file parse error", err)
		}
	})
}

func TestLoad_ConfigFile(t *testing.T) {
	setRequired(t)

	dir := t.TempDir()
	file := filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(file, []byte("catalog_api_path: /api/v2\nmax_pages: 50\n"), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := Load(Options{ConfigFile: file})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxPages != 50 {
		t.Errorf("MaxPages = %d, want 50", cfg.MaxPages)
	}
	if got := cfg.APIBaseURL(); got != "https://catalog.example.com/api/v2" {
		t.Errorf("APIBaseURL() = %q", got)
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	setRequired(t)

	if _, err := Load(Options{ConfigFile: filepath.Join(t.TempDir(), "missing.yaml")}); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestAPIBaseURL(t *testing.T) {
	tests := []struct {
		url, path, want string
	}{
		{"https://c.example.com", "/api/v1", "https://c.example.com/api/v1"},
		{"https://c.example.com/", "api/v1/", "https://c.example.com/api/v1"},
		{"https://c.example.com/api/v1", "", "https://c.example.com/api/v1"},
	}

	for _, tt := range tests {
		cfg := &Config{CatalogURL: tt.url, CatalogAPIPath: tt.path}
		if got := cfg.APIBaseURL(); got != tt.want {
			t.Errorf("APIBaseURL(%q, %q) = %q, want %q", tt.url, tt.path, got, tt.want)
		}
	}
}
