package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/a3tai/pdf-autofill/internal/config"
	"github.com/a3tai/pdf-autofill/internal/descriptions"
	apperrors "github.com/a3tai/pdf-autofill/internal/errors"
	"github.com/a3tai/pdf-autofill/internal/pdf"
)

const shutdownTimeout = 5 * time.Second

// Server represents the MCP server instance
type Server struct {
	config     *config.Config
	pdfService *pdf.Service
	mcpServer  *server.MCPServer
	logger     *logrus.Logger
}

// toolError is the body of a failed tool call
type toolError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
	Field   string `json:"field,omitempty"`
	// Retryable tells the caller the same request may succeed later
	Retryable bool `json:"retryable"`
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, pdfService *pdf.Service, logger *logrus.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if pdfService == nil {
		return nil, fmt.Errorf("pdfService cannot be nil")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s := &Server{
		config:     cfg,
		pdfService: pdfService,
		mcpServer:  mcpServer,
		logger:     logger,
	}
	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_analyze_document",
		mcp.WithDescription(descriptions.GetToolDescription("pdf_analyze_document")),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the PDF form, relative to the configured directory or absolute inside it"),
		),
		mcp.WithString("context",
			mcp.Description("Optional description of what the document is for (5 to 500 characters)"),
		),
	), s.handleAnalyzeDocument)

	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_extract_fields",
		mcp.WithDescription(descriptions.GetToolDescription("pdf_extract_fields")),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the PDF form"),
		),
	), s.handleExtractFields)

	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_export_document",
		mcp.WithDescription(descriptions.GetToolDescription("pdf_export_document")),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to the source PDF form")),
		mcp.WithString("output", mcp.Required(), mcp.Description("Path of the filled PDF to write")),
		mcp.WithObject("values", mcp.Description("Field name to value; a JSON string is also accepted")),
		mcp.WithBoolean("flatten", mcp.Description("Bake values into the page and remove the form")),
		mcp.WithString("signature", mcp.Description("Signature image as a PNG/JPEG data URL or raw base64")),
		mcp.WithNumber("signature_x", mcp.Description("Left edge of the signature in the container")),
		mcp.WithNumber("signature_y", mcp.Description("Top edge of the signature in the container")),
		mcp.WithNumber("signature_width", mcp.Description("Signature width in the container")),
		mcp.WithNumber("signature_height", mcp.Description("Signature height in the container")),
		mcp.WithNumber("container_width", mcp.Description("Width of the container representing the page")),
		mcp.WithNumber("container_height", mcp.Description("Height of the container representing the page")),
		mcp.WithNumber("signature_page", mcp.Description("Zero-based page index, clamped to the last page")),
	), s.handleExportDocument)

	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_validate_context",
		mcp.WithDescription(descriptions.GetToolDescription("pdf_validate_context")),
		mcp.WithString("context", mcp.Required(), mcp.Description("Document description to check")),
	), s.handleValidateContext)

	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_list_documents",
		mcp.WithDescription(descriptions.GetToolDescription("pdf_list_documents")),
		mcp.WithString("directory", mcp.Description("Directory to search (uses the configured directory if empty)")),
		mcp.WithString("query", mcp.Description("Optional file name query")),
	), s.handleListDocuments)

	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_server_info",
		mcp.WithDescription(descriptions.GetToolDescription("pdf_server_info")),
	), s.handleServerInfo)
}

// Handler functions

func (s *Server) handleAnalyzeDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	log := s.requestLogger("pdf_analyze_document")

	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := request.GetArguments()
	userContext, _ := args["context"].(string)

	result, err := s.pdfService.AnalyzeDocument(ctx, pdf.AnalyzeDocumentRequest{Path: path, Context: userContext})
	if err != nil {
		return s.errorResult(log, err), nil
	}

	log.WithFields(logrus.Fields{"path": result.Path, "fields": len(result.Fields)}).Info("Analysis returned")
	return jsonResult(result)
}

func (s *Server) handleExtractFields(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	log := s.requestLogger("pdf_extract_fields")

	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.ExtractFields(ctx, pdf.ExtractFieldsRequest{Path: path})
	if err != nil {
		return s.errorResult(log, err), nil
	}
	return jsonResult(result)
}

func (s *Server) handleExportDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	log := s.requestLogger("pdf_export_document")

	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	output, err := request.RequireString("output")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	args := request.GetArguments()
	values, err := parseValues(args["values"])
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	req := pdf.ExportDocumentRequest{Path: path, Output: output, Values: values}
	if flatten, ok := args["flatten"].(bool); ok {
		req.Flatten = &flatten
	}
	if dataURL, ok := args["signature"].(string); ok && dataURL != "" {
		req.Signature = &pdf.SignatureRequest{
			DataURL:         dataURL,
			X:               number(args, "signature_x"),
			Y:               number(args, "signature_y"),
			Width:           number(args, "signature_width"),
			Height:          number(args, "signature_height"),
			ContainerWidth:  number(args, "container_width"),
			ContainerHeight: number(args, "container_height"),
			PageIndex:       int(number(args, "signature_page")),
		}
	}

	result, err := s.pdfService.ExportDocument(ctx, req)
	if err != nil {
		return s.errorResult(log, err), nil
	}

	for _, w := range result.Report.Warnings {
		log.WithError(w.Err()).WithField("field", w.Field).Warn("Value not applied")
	}
	return jsonResult(result)
}

func (s *Server) handleValidateContext(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userContext, err := request.RequireString("context")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.pdfService.ValidateContext(userContext))
}

func (s *Server) handleListDocuments(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	log := s.requestLogger("pdf_list_documents")
	args := request.GetArguments()

	req := pdf.ListDocumentsRequest{}
	if dir, ok := args["directory"].(string); ok {
		req.Directory = dir
	}
	if q, ok := args["query"].(string); ok {
		req.Query = q
	}

	result, err := s.pdfService.ListDocuments(req)
	if err != nil {
		return s.errorResult(log, err), nil
	}
	return jsonResult(result)
}

func (s *Server) handleServerInfo(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result := s.pdfService.ServerInfo(ctx, pdf.ServerDetails{
		ServerName:    s.config.ServerName,
		Version:       s.config.Version,
		Model:         s.config.LLM.Model,
		HasCredential: s.config.HasCredential(),
		Policy:        s.config.Policy,
	})
	return jsonResult(result)
}

// requestLogger tags every log line of one tool call with a request id
func (s *Server) requestLogger(tool string) *logrus.Entry {
	return s.logger.WithFields(logrus.Fields{
		"request_id": uuid.NewString(),
		"tool":       tool,
	})
}

// errorResult turns err into a tool error carrying its wire code
func (s *Server) errorResult(log *logrus.Entry, err error) *mcp.CallToolResult {
	body := toolError{Code: "INVALID_REQUEST", Message: err.Error()}

	severity := apperrors.SeverityError
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		body.Code = appErr.Code()
		body.Message = appErr.Message
		body.Reason = appErr.Reason
		body.Field = appErr.Field
		body.Retryable = appErr.Type.IsRetryable()
		severity = appErr.Type.GetSeverity()
	} else if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		body.Code = "CANCELLED"
		severity = apperrors.SeverityWarning
	}

	entry := log.WithError(err).WithField("code", body.Code)
	if severity == apperrors.SeverityWarning {
		entry.Warn("Tool call failed")
	} else {
		entry.Error("Tool call failed")
	}

	data, mErr := json.Marshal(body)
	if mErr != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultError(string(data))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// parseValues accepts the values argument as an object or a JSON string.
// Non-string scalars are stringified; nulls are dropped.
func parseValues(raw any) (map[string]string, error) {
	if raw == nil {
		return map[string]string{}, nil
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		text, isString := raw.(string)
		if !isString {
			return nil, fmt.Errorf("values must be an object of field name to value")
		}
		if err := json.Unmarshal([]byte(text), &obj); err != nil {
			return nil, fmt.Errorf("values is not a JSON object: %w", err)
		}
	}

	values := make(map[string]string, len(obj))
	for name, v := range obj {
		switch tv := v.(type) {
		case nil:
			continue
		case string:
			values[name] = tv
		case bool, float64, json.Number:
			values[name] = fmt.Sprint(tv)
		default:
			return nil, fmt.Errorf("value of %q must be a string, number or boolean", name)
		}
	}
	return values, nil
}

func number(args map[string]any, key string) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// Run starts the MCP server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	switch {
	case s.config.IsServerMode():
		return s.runServerMode(ctx)
	case s.config.IsStdioMode():
		return s.runStdioMode(ctx)
	default:
		return fmt.Errorf("unsupported mode: %s", s.config.Mode)
	}
}

// runStdioMode serves the protocol on stdin/stdout until ctx ends
func (s *Server) runStdioMode(ctx context.Context) error {
	s.logger.WithField("directory", s.config.PDFDirectory).Debug("Starting stdio server")

	stdio := server.NewStdioServer(s.mcpServer)
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode serves the SSE transport on host:port until ctx ends
func (s *Server) runServerMode(ctx context.Context) error {
	addr := s.config.Address()
	sse := server.NewSSEServer(s.mcpServer, server.WithBaseURL("http://"+addr))

	errChan := make(chan error, 1)
	go func() {
		s.logger.WithField("address", addr).Info("Starting SSE server")
		errChan <- sse.Start(addr)
	}()

	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve SSE: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := sse.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down SSE server: %w", err)
		}
		return nil
	}
}
