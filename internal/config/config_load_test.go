package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// resetFlags gives each test a fresh flag set and viper instance
func resetFlags() {
	pflag.CommandLine = pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	viper.Reset()
}

// withArgs runs LoadFromFlags with args, restoring global state afterwards
func withArgs(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	originalArgs := os.Args
	t.Cleanup(func() {
		os.Args = originalArgs
		resetFlags()
	})

	os.Args = append([]string{"pdf-autofill"}, args...)
	resetFlags()
	return LoadFromFlags()
}

func TestLoadFromFlags_DefaultConfig(t *testing.T) {
	cfg, err := withArgs(t, "--dir="+t.TempDir())
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.Mode != "stdio" {
		t.Errorf("LoadFromFlags() Mode = %v, want stdio", cfg.Mode)
	}
	if cfg.Port != 8080 {
		t.Errorf("LoadFromFlags() Port = %v, want 8080", cfg.Port)
	}
	if cfg.LLM.Timeout != 60*time.Second {
		t.Errorf("LoadFromFlags() LLM.Timeout = %v, want 60s", cfg.LLM.Timeout)
	}
	if !cfg.Flatten {
		t.Error("LoadFromFlags() Flatten should default to true")
	}
	if cfg.Policy != "meaningful" {
		t.Errorf("LoadFromFlags() Policy = %v, want meaningful", cfg.Policy)
	}
}

func TestLoadFromFlags_ValidFlags(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, cfg *Config)
	}{
		{
			name: "server mode with custom host and port",
			args: []string{"--mode=server", "--host=0.0.0.0", "--port=9090"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Mode != "server" || cfg.Host != "0.0.0.0" || cfg.Port != 9090 {
					t.Errorf("got %s %s:%d", cfg.Mode, cfg.Host, cfg.Port)
				}
			},
		},
		{
			name: "debug logging",
			args: []string{"--loglevel=debug"},
			check: func(t *testing.T, cfg *Config) {
				if !cfg.IsDebug() {
					t.Errorf("LogLevel = %s, want debug", cfg.LogLevel)
				}
			},
		},
		{
			name: "completion settings",
			args: []string{"--llm-model=gpt-4.1-mini", "--llm-timeout=15s", "--llm-rpm=30", "--llm-baseurl=http://localhost:11434/v1"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.LLM.Model != "gpt-4.1-mini" {
					t.Errorf("LLM.Model = %s", cfg.LLM.Model)
				}
				if cfg.LLM.Timeout != 15*time.Second {
					t.Errorf("LLM.Timeout = %s", cfg.LLM.Timeout)
				}
				if cfg.LLM.RequestsPerMinute != 30 {
					t.Errorf("LLM.RequestsPerMinute = %d", cfg.LLM.RequestsPerMinute)
				}
				if cfg.LLM.BaseURL != "http://localhost:11434/v1" {
					t.Errorf("LLM.BaseURL = %s", cfg.LLM.BaseURL)
				}
			},
		},
		{
			name: "policy and flatten",
			args: []string{"--policy=institution", "--flatten=false"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Policy != "institution" {
					t.Errorf("Policy = %s", cfg.Policy)
				}
				if cfg.Flatten {
					t.Error("Flatten should be false")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := withArgs(t, append(tt.args, "--dir="+t.TempDir())...)
			if err != nil {
				t.Fatalf("LoadFromFlags() unexpected error: %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestLoadFromFlags_EnvironmentVariables(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("PDF_AUTOFILL_MODE", "server")
	t.Setenv("PDF_AUTOFILL_PORT", "3000")
	t.Setenv("PDF_AUTOFILL_DIR", tempDir)
	t.Setenv("PDF_AUTOFILL_LOGLEVEL", "warn")
	t.Setenv("PDF_AUTOFILL_POLICY", "all")
	t.Setenv("LLM_API_KEY", "sk-from-env")
	t.Setenv("LLM_MODEL", "mistral-small")
	t.Setenv("LLM_BASE_URL", "https://llm.example.test/v1")

	cfg, err := withArgs(t)
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.Mode != "server" {
		t.Errorf("Mode = %v, want server", cfg.Mode)
	}
	if cfg.Port != 3000 {
		t.Errorf("Port = %v, want 3000", cfg.Port)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %v, want warn", cfg.LogLevel)
	}
	if cfg.Policy != "all" {
		t.Errorf("Policy = %v, want all", cfg.Policy)
	}
	if cfg.LLM.APIKey != "sk-from-env" {
		t.Errorf("LLM.APIKey not read from LLM_API_KEY")
	}
	if cfg.LLM.Model != "mistral-small" {
		t.Errorf("LLM.Model = %v, want mistral-small", cfg.LLM.Model)
	}
	if cfg.LLM.BaseURL != "https://llm.example.test/v1" {
		t.Errorf("LLM.BaseURL = %v", cfg.LLM.BaseURL)
	}
}

func TestLoadFromFlags_PrefixedKeyWins(t *testing.T) {
	t.Setenv("PDF_AUTOFILL_LLM_APIKEY", "sk-prefixed")
	t.Setenv("OPENAI_API_KEY", "sk-openai")

	cfg, err := withArgs(t, "--dir="+t.TempDir())
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}
	if cfg.LLM.APIKey != "sk-prefixed" {
		t.Errorf("LLM.APIKey = %q, want the prefixed variable", cfg.LLM.APIKey)
	}
}

func TestLoadFromFlags_FlagOverridesEnvironment(t *testing.T) {
	t.Setenv("PDF_AUTOFILL_MODE", "server")
	t.Setenv("PDF_AUTOFILL_PORT", "3000")

	cfg, err := withArgs(t, "--mode=stdio", "--port=8888", "--dir="+t.TempDir())
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}
	if cfg.Mode != "stdio" {
		t.Errorf("Mode = %v, want stdio (should override env)", cfg.Mode)
	}
	if cfg.Port != 8888 {
		t.Errorf("Port = %v, want 8888 (should override env)", cfg.Port)
	}
}

func TestLoadFromFlags_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "mode", args: []string{"--mode=invalid"}, wantErr: "mode must be either 'stdio' or 'server'"},
		{name: "port", args: []string{"--mode=server", "--port=99999"}, wantErr: "port must be between 1 and 65535"},
		{name: "log level", args: []string{"--loglevel=invalid"}, wantErr: "invalid log level"},
		{name: "policy", args: []string{"--policy=everything"}, wantErr: "invalid policy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := withArgs(t, append(tt.args, "--dir="+t.TempDir())...)
			if err == nil {
				t.Fatalf("LoadFromFlags() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadFromFlags() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFlags_VersionFlag(t *testing.T) {
	_, err := withArgs(t, "--version")
	if err == nil || err.Error() != "version requested" {
		t.Errorf("LoadFromFlags() error = %v, want 'version requested'", err)
	}
}
