package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.PDFDirectory = t.TempDir()
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Mode != "stdio" {
		t.Errorf("Expected default mode to be 'stdio', got '%s'", cfg.Mode)
	}
	if cfg.Host != "127.0.0.1" {
		t.Errorf("Expected default host to be '127.0.0.1', got '%s'", cfg.Host)
	}
	if cfg.Port != 8080 {
		t.Errorf("Expected default port to be 8080, got %d", cfg.Port)
	}
	if cfg.ServerName != "pdf-autofill" {
		t.Errorf("Expected default server name to be 'pdf-autofill', got '%s'", cfg.ServerName)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log level to be 'info', got '%s'", cfg.LogLevel)
	}
	if cfg.MaxFileSize != 100*1024*1024 {
		t.Errorf("Expected default max file size to be 100MB, got %d", cfg.MaxFileSize)
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("Expected default model to be 'gpt-4o-mini', got '%s'", cfg.LLM.Model)
	}
	if cfg.LLM.Timeout != 60*time.Second {
		t.Errorf("Expected default completion timeout to be 60s, got %s", cfg.LLM.Timeout)
	}
	if cfg.Policy != "meaningful" {
		t.Errorf("Expected default policy to be 'meaningful', got '%s'", cfg.Policy)
	}
	if !cfg.Flatten {
		t.Error("Expected exports to flatten by default")
	}

	currentDir, _ := os.Getwd()
	if cfg.PDFDirectory != currentDir {
		t.Errorf("Expected default PDF directory to be '%s', got '%s'", currentDir, cfg.PDFDirectory)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid stdio config", mutate: func(c *Config) {}},
		{name: "valid server config", mutate: func(c *Config) { c.Mode = ModeServer }},
		{name: "invalid mode", mutate: func(c *Config) { c.Mode = "invalid" }, wantErr: "mode must be"},
		{name: "port too low in server mode", mutate: func(c *Config) { c.Mode = ModeServer; c.Port = 0 }, wantErr: "port must be"},
		{name: "port too high in server mode", mutate: func(c *Config) { c.Mode = ModeServer; c.Port = 70000 }, wantErr: "port must be"},
		{name: "port ignored in stdio mode", mutate: func(c *Config) { c.Port = 0 }},
		{name: "empty directory", mutate: func(c *Config) { c.PDFDirectory = "" }, wantErr: "directory cannot be empty"},
		{name: "zero max file size", mutate: func(c *Config) { c.MaxFileSize = 0 }, wantErr: "file size must be positive"},
		{name: "invalid log level", mutate: func(c *Config) { c.LogLevel = "verbose" }, wantErr: "invalid log level"},
		{name: "institution policy", mutate: func(c *Config) { c.Policy = "institution" }},
		{name: "invalid policy", mutate: func(c *Config) { c.Policy = "personal" }, wantErr: "invalid policy"},
		{name: "zero timeout", mutate: func(c *Config) { c.LLM.Timeout = 0 }, wantErr: "timeout must be positive"},
		{name: "negative rate", mutate: func(c *Config) { c.LLM.RequestsPerMinute = -1 }, wantErr: "rate limit cannot be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfigValidateDirectoryCreation(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "forms")
	cfg := validConfig(t)
	cfg.PDFDirectory = dir

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("Validate() should create missing directory %s", dir)
	}
}

func TestConfigAddress(t *testing.T) {
	cfg := &Config{Host: "0.0.0.0", Port: 9090}
	if got := cfg.Address(); got != "0.0.0.0:9090" {
		t.Errorf("Address() = %s, want 0.0.0.0:9090", got)
	}
}

func TestConfigModes(t *testing.T) {
	cfg := &Config{Mode: ModeServer, LogLevel: "debug"}
	if !cfg.IsServerMode() || cfg.IsStdioMode() {
		t.Error("server mode not reported")
	}
	if !cfg.IsDebug() {
		t.Error("debug level not reported")
	}

	cfg.Mode = ModeStdio
	cfg.LogLevel = "info"
	if cfg.IsServerMode() || !cfg.IsStdioMode() {
		t.Error("stdio mode not reported")
	}
	if cfg.IsDebug() {
		t.Error("info level reported as debug")
	}
}

func TestConfigStringHidesKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.APIKey = "sk-secret-value"

	s := cfg.String()
	if strings.Contains(s, "sk-secret-value") {
		t.Errorf("String() leaks the API key: %s", s)
	}
	if !strings.Contains(s, "Credential: true") {
		t.Errorf("String() = %s, want credential presence", s)
	}
}

func TestHasCredential(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.HasCredential() {
		t.Error("default config has no credential")
	}
	cfg.LLM.APIKey = "   "
	if cfg.HasCredential() {
		t.Error("blank key is not a credential")
	}
	cfg.LLM.APIKey = "sk-x"
	if !cfg.HasCredential() {
		t.Error("key not reported")
	}
}
