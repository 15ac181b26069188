package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 100 * 1024 * 1024 // 100MB
	DefaultModel       = "gpt-4o-mini"
	DefaultLLMTimeout  = 60 * time.Second
	DefaultPolicy      = "meaningful"

	// Directory permissions
	DefaultDirPerm = 0o750

	// EnvPrefix prefixes every environment variable read by the configuration
	EnvPrefix = "PDF_AUTOFILL"
)

// Config holds all configuration for the auto-fill server and CLI
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// Document configuration
	PDFDirectory string

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	MaxFileSize int64 // Maximum PDF file size in bytes

	// Completion capability
	LLM LLMConfig

	// Field policy offered to the model: all, meaningful or institution
	Policy string

	// Flatten is the export default when a request does not say
	Flatten bool
}

// LLMConfig configures the OpenAI-compatible completion endpoint
type LLMConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	Timeout           time.Duration
	RequestsPerMinute int
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		// Fallback to current directory if working directory cannot be determined
		currentDir = "."
	}

	return &Config{
		Mode:         ModeStdio, // Default to stdio mode for MCP compatibility
		Host:         DefaultHost,
		Port:         DefaultPort,
		PDFDirectory: currentDir,
		Version:      "1.0.0",
		ServerName:   "pdf-autofill",
		LogLevel:     DefaultLogLevel,
		MaxFileSize:  DefaultMaxFileSize,
		LLM: LLMConfig{
			Model:   DefaultModel,
			Timeout: DefaultLLMTimeout,
		},
		Policy:  DefaultPolicy,
		Flatten: true,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	// a missing .env file is not an error
	_ = godotenv.Load()

	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	// Check for version flag before parsing
	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)

	// Expand paths if needed
	if cfg.PDFDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.PDFDirectory); err == nil {
			cfg.PDFDirectory = expandedPath
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	// Set environment variable prefix
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// The completion settings also answer to the conventional names
	_ = viper.BindEnv("llm.apikey", EnvPrefix+"_LLM_APIKEY", "LLM_API_KEY", "OPENAI_API_KEY")
	_ = viper.BindEnv("llm.baseurl", EnvPrefix+"_LLM_BASEURL", "LLM_BASE_URL")
	_ = viper.BindEnv("llm.model", EnvPrefix+"_LLM_MODEL", "LLM_MODEL")

	// Define flags with Viper
	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("dir", cfg.PDFDirectory)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
	viper.SetDefault("llm.model", cfg.LLM.Model)
	viper.SetDefault("llm.timeout", cfg.LLM.Timeout)
	viper.SetDefault("llm.rpm", cfg.LLM.RequestsPerMinute)
	viper.SetDefault("policy", cfg.Policy)
	viper.SetDefault("flatten", cfg.Flatten)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP server")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("dir", cfg.PDFDirectory, "Directory containing PDF files")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum PDF file size in bytes")
	pflag.String("llm-baseurl", "", "Alternate OpenAI-compatible endpoint")
	pflag.String("llm-model", cfg.LLM.Model, "Completion model identifier")
	pflag.Duration("llm-timeout", cfg.LLM.Timeout, "Timeout of one completion call")
	pflag.Int("llm-rpm", cfg.LLM.RequestsPerMinute, "Maximum completion calls per minute (0 = unlimited)")
	pflag.String("policy", cfg.Policy, "Fields offered to the model: all, meaningful or institution")
	pflag.Bool("flatten", cfg.Flatten, "Flatten exported documents unless a request says otherwise")
}

// flagKeys maps each viper key to the flag that sets it
var flagKeys = map[string]string{
	"mode":        "mode",
	"host":        "host",
	"port":        "port",
	"dir":         "dir",
	"loglevel":    "loglevel",
	"maxfilesize": "maxfilesize",
	"llm.baseurl": "llm-baseurl",
	"llm.model":   "llm-model",
	"llm.timeout": "llm-timeout",
	"llm.rpm":     "llm-rpm",
	"policy":      "policy",
	"flatten":     "flatten",
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for key, flag := range flagKeys {
		_ = viper.BindPFlag(key, pflag.Lookup(flag))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nPDF Auto-Fill - A Model Context Protocol server that fills PDF forms\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                         "+
			"# stdio mode, current directory (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --dir=/path/to/forms                    "+
			"# stdio mode with custom directory\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --dir=/path/to/forms      # server mode\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --policy=institution                    # only institution fields\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables (a .env file is read when present):\n")
		fmt.Fprintf(os.Stderr, "  PDF_AUTOFILL_MODE          Server mode\n")
		fmt.Fprintf(os.Stderr, "  PDF_AUTOFILL_HOST          Server host\n")
		fmt.Fprintf(os.Stderr, "  PDF_AUTOFILL_PORT          Server port\n")
		fmt.Fprintf(os.Stderr, "  PDF_AUTOFILL_DIR           Document directory\n")
		fmt.Fprintf(os.Stderr, "  PDF_AUTOFILL_LOGLEVEL      Log level\n")
		fmt.Fprintf(os.Stderr, "  PDF_AUTOFILL_MAXFILESIZE   Maximum file size\n")
		fmt.Fprintf(os.Stderr, "  PDF_AUTOFILL_POLICY        Field policy\n")
		fmt.Fprintf(os.Stderr, "  LLM_API_KEY                Completion API key (or OPENAI_API_KEY)\n")
		fmt.Fprintf(os.Stderr, "  LLM_BASE_URL               Alternate completion endpoint\n")
		fmt.Fprintf(os.Stderr, "  LLM_MODEL                  Completion model\n")
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.PDFDirectory = viper.GetString("dir")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
	cfg.LLM.APIKey = viper.GetString("llm.apikey")
	cfg.LLM.BaseURL = viper.GetString("llm.baseurl")
	cfg.LLM.Model = viper.GetString("llm.model")
	cfg.LLM.Timeout = viper.GetDuration("llm.timeout")
	cfg.LLM.RequestsPerMinute = viper.GetInt("llm.rpm")
	cfg.Policy = viper.GetString("policy")
	cfg.Flatten = viper.GetBool("flatten")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate mode
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	// Validate port range (only for server mode)
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	// Validate PDF directory
	if c.PDFDirectory == "" {
		return errors.New("PDF directory cannot be empty")
	}

	// Check if PDF directory exists, create if it doesn't
	if _, err := os.Stat(c.PDFDirectory); os.IsNotExist(err) {
		if err := os.MkdirAll(c.PDFDirectory, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create PDF directory %s: %w", c.PDFDirectory, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access PDF directory %s: %w", c.PDFDirectory, err)
	}

	// Validate max file size
	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	validPolicies := map[string]bool{
		"all":         true,
		"meaningful":  true,
		"institution": true,
	}
	if !validPolicies[c.Policy] {
		return fmt.Errorf("invalid policy: %s (must be one of: all, meaningful, institution)", c.Policy)
	}

	if c.LLM.Timeout <= 0 {
		return errors.New("completion timeout must be positive")
	}
	if c.LLM.RequestsPerMinute < 0 {
		return errors.New("completion rate limit cannot be negative")
	}

	return nil
}

// HasCredential reports whether a completion API key is configured
func (c *Config) HasCredential() bool {
	return strings.TrimSpace(c.LLM.APIKey) != ""
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration. The API key
// is never printed.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, PDFDirectory: %s, LogLevel: %s, MaxFileSize: %d, "+
		"Model: %s, Policy: %s, Flatten: %t, Credential: %t}",
		c.Mode, c.Host, c.Port, c.PDFDirectory, c.LogLevel, c.MaxFileSize,
		c.LLM.Model, c.Policy, c.Flatten, c.HasCredential())
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
