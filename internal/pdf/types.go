package pdf

import (
	"github.com/a3tai/pdf-autofill/internal/analysis"
	"github.com/a3tai/pdf-autofill/internal/pdf/extraction"
	"github.com/a3tai/pdf-autofill/internal/pdf/fill"
)

// FileInfo represents information about a PDF file
type FileInfo struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	ModifiedTime string `json:"modified_time"`
}

// Request Types

// AnalyzeDocumentRequest asks for fill suggestions for one document
type AnalyzeDocumentRequest struct {
	Path    string `json:"path"`
	Context string `json:"context,omitempty"`
}

// ExtractFieldsRequest asks for the labelled fields of one document
type ExtractFieldsRequest struct {
	Path string `json:"path"`
}

// SignatureRequest places a signature image given as a data URL or raw base64
type SignatureRequest struct {
	DataURL         string  `json:"data_url"`
	X               float64 `json:"x"`
	Y               float64 `json:"y"`
	Width           float64 `json:"width"`
	Height          float64 `json:"height"`
	ContainerWidth  float64 `json:"container_width"`
	ContainerHeight float64 `json:"container_height"`
	PageIndex       int     `json:"page_index"`
}

// ExportDocumentRequest fills a document and writes the result to Output.
// Suggestions are applied first, then Values, so explicit values win.
type ExportDocumentRequest struct {
	Path        string                     `json:"path"`
	Output      string                     `json:"output"`
	Values      map[string]string          `json:"values,omitempty"`
	Suggestions []analysis.FieldSuggestion `json:"suggestions,omitempty"`
	Flatten     *bool                      `json:"flatten,omitempty"`
	Signature   *SignatureRequest          `json:"signature,omitempty"`
}

// ListDocumentsRequest represents a request to search for PDF files in a directory
type ListDocumentsRequest struct {
	Directory string `json:"directory"`
	Query     string `json:"query"`
}

// Response Types

// AnalyzeDocumentResult is the analysis of one document
type AnalyzeDocumentResult struct {
	Path string `json:"path"`
	*analysis.AnalyzeResult
}

// ExtractFieldsResult lists a document's fields and whether it has text
type ExtractFieldsResult struct {
	Path      string                       `json:"path"`
	PageCount int                          `json:"page_count"`
	HasText   bool                         `json:"has_text"`
	Fields    []extraction.FieldDescriptor `json:"fields"`
}

// ExportDocumentResult describes a written document
type ExportDocumentResult struct {
	Output    string       `json:"output"`
	Size      int          `json:"size"`
	Flattened bool         `json:"flattened"`
	Signed    bool         `json:"signed"`
	Report    *fill.Report `json:"report"`
}

// ValidateContextResult reports whether a user context would be accepted
type ValidateContextResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// ListDocumentsResult represents the result of a directory search
type ListDocumentsResult struct {
	Files       []FileInfo `json:"files"`
	TotalCount  int        `json:"total_count"`
	Directory   string     `json:"directory"`
	SearchQuery string     `json:"search_query,omitempty"`
}

// ServerInfoResult describes the server and its tools
type ServerInfoResult struct {
	ServerName        string     `json:"server_name"`
	Version           string     `json:"version"`
	DefaultDirectory  string     `json:"default_directory"`
	MaxFileSize       int64      `json:"max_file_size"`
	Model             string     `json:"model"`
	HasCredential     bool       `json:"has_credential"`
	Policy            string     `json:"policy"`
	FlattenByDefault  bool       `json:"flatten_by_default"`
	DirectoryContents []FileInfo `json:"directory_contents"`
	AvailableTools    []ToolInfo `json:"available_tools"`
	UsageGuidance     string     `json:"usage_guidance"`
}

// ToolInfo represents information about an available tool
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Usage       string `json:"usage"`
	Parameters  string `json:"parameters"`
}
