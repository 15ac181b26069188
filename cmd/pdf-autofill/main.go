package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/a3tai/pdf-autofill/internal/analysis"
	"github.com/a3tai/pdf-autofill/internal/config"
	"github.com/a3tai/pdf-autofill/internal/llm"
	"github.com/a3tai/pdf-autofill/internal/mcp"
	"github.com/a3tai/pdf-autofill/internal/pdf"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// setupLogging builds the logger for the configured mode
func setupLogging(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	// stdout carries the MCP protocol in stdio mode
	if cfg.IsStdioMode() && !cfg.IsDebug() {
		logger.SetOutput(io.Discard)
	}
	return logger
}

// newCompleter returns the completion client, or nil when no credential is
// configured. Analysis then fails with MISSING_CREDENTIAL while extraction
// and export keep working.
func newCompleter(cfg *config.Config, logger *logrus.Logger) llm.Completer {
	if !cfg.HasCredential() {
		logger.Warn("No completion API key configured, analysis is disabled")
		return nil
	}

	client, err := llm.NewOpenAIClient(llm.Config{
		APIKey:            cfg.LLM.APIKey,
		BaseURL:           cfg.LLM.BaseURL,
		Model:             cfg.LLM.Model,
		Timeout:           cfg.LLM.Timeout,
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
	}, logger)
	if err != nil {
		logger.WithError(err).Warn("Completion client unavailable, analysis is disabled")
		return nil
	}
	return client
}

// newServer wires the analysis, document and MCP layers
func newServer(cfg *config.Config, logger *logrus.Logger) (*mcp.Server, error) {
	policy, err := analysis.PolicyByName(cfg.Policy)
	if err != nil {
		return nil, err
	}

	analyzer := analysis.NewService(newCompleter(cfg, logger), analysis.EngineOptions{Policy: policy}, logger)

	pdfService, err := pdf.NewService(pdf.Options{
		MaxFileSize: cfg.MaxFileSize,
		Directory:   cfg.PDFDirectory,
		Flatten:     cfg.Flatten,
	}, analyzer, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF service: %w", err)
	}

	return mcp.NewServer(cfg, pdfService, logger)
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion()
			return
		}
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogging(cfg)

	// Set version if it was provided during build
	if version != "dev" {
		cfg.Version = version
	}

	if cfg.IsDebug() {
		logger.Debugf("Starting with configuration: %s", cfg.String())
	}

	server, err := newServer(cfg, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to create MCP server")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx); err != nil {
		logger.WithError(err).Error("Server stopped with error")
		stop()
		os.Exit(1)
	}

	logger.Info("Server stopped successfully")
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("PDF Auto-Fill\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
