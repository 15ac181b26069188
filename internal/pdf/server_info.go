package pdf

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/a3tai/pdf-autofill/internal/descriptions"
)

const (
	infoCacheTTL   = 5 * time.Minute
	infoFileLimit  = 100
	infoScanBudget = 3 * time.Second
)

// DirectoryCache provides TTL-based caching for directory contents
type DirectoryCache struct {
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
}

type cacheEntry struct {
	files      []FileInfo
	lastUpdate time.Time
}

// NewDirectoryCache creates a new directory cache with specified TTL
func NewDirectoryCache(ttl time.Duration) *DirectoryCache {
	return &DirectoryCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get retrieves cached directory contents if still fresh
func (c *DirectoryCache) Get(path string) ([]FileInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[path]
	if !ok || c.now().Sub(entry.lastUpdate) > c.ttl {
		return nil, false
	}
	return entry.files, true
}

// Set stores directory contents in cache
func (c *DirectoryCache) Set(path string, files []FileInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = cacheEntry{files: files, lastUpdate: c.now()}
}

// ServerDetails are the host facts reported by ServerInfo
type ServerDetails struct {
	ServerName    string
	Version       string
	Model         string
	HasCredential bool
	Policy        string
}

// ServerInfo returns server information, directory contents and usage guidance.
// The directory scan is bounded in time and cached.
func (s *Service) ServerInfo(ctx context.Context, details ServerDetails) *ServerInfoResult {
	directory := s.pathValidator.GetConfiguredDirectory()

	contents, ok := s.infoCache.Get(directory)
	if !ok {
		contents = s.scanDirectory(ctx, directory)
		s.infoCache.Set(directory, contents)
	}

	return &ServerInfoResult{
		ServerName:        details.ServerName,
		Version:           details.Version,
		DefaultDirectory:  directory,
		MaxFileSize:       s.maxFileSize,
		Model:             details.Model,
		HasCredential:     details.HasCredential,
		Policy:            details.Policy,
		FlattenByDefault:  s.flatten,
		DirectoryContents: contents,
		AvailableTools:    availableTools(),
		UsageGuidance:     s.usageGuidance(details.HasCredential),
	}
}

// scanDirectory lists documents, giving up with an empty list after the budget
func (s *Service) scanDirectory(ctx context.Context, directory string) []FileInfo {
	ctx, cancel := context.WithTimeout(ctx, infoScanBudget)
	defer cancel()

	resultChan := make(chan []FileInfo, 1)
	go func() {
		files, err := s.search.FindPDFs(directory, "", infoFileLimit)
		if err != nil {
			s.logger.WithError(err).Debug("Directory scan failed")
			files = []FileInfo{}
		}
		resultChan <- files
	}()

	select {
	case files := <-resultChan:
		return files
	case <-ctx.Done():
		s.logger.WithField("directory", directory).Warn("Directory scan timed out")
		return []FileInfo{}
	}
}

func availableTools() []ToolInfo {
	return []ToolInfo{
		{
			Name:        "pdf_analyze_document",
			Description: descriptions.GetToolDescription("pdf_analyze_document"),
			Usage:       "Detect what the form is for and get a suggested value for each meaningful field.",
			Parameters:  "path (required), context (optional): what the document is for, 5 to 500 characters",
		},
		{
			Name:        "pdf_extract_fields",
			Description: descriptions.GetToolDescription("pdf_extract_fields"),
			Usage:       "List the fillable fields with their kind, page and inferred label. No model call.",
			Parameters:  "path (required)",
		},
		{
			Name:        "pdf_export_document",
			Description: descriptions.GetToolDescription("pdf_export_document"),
			Usage:       "Write a filled copy of the form, optionally flattened and signed.",
			Parameters: "path (required), output (required), values (object of field name to value), " +
				"flatten (optional), signature (optional data URL) with signature_x, signature_y, " +
				"signature_width, signature_height, container_width, container_height, signature_page",
		},
		{
			Name:        "pdf_validate_context",
			Description: descriptions.GetToolDescription("pdf_validate_context"),
			Usage:       "Check a document description before sending it with pdf_analyze_document.",
			Parameters:  "context (required)",
		},
		{
			Name:        "pdf_list_documents",
			Description: descriptions.GetToolDescription("pdf_list_documents"),
			Usage:       "Find PDF forms under the configured directory by file name.",
			Parameters:  "directory (optional), query (optional)",
		},
		{
			Name:        "pdf_server_info",
			Description: descriptions.GetToolDescription("pdf_server_info"),
			Usage:       "Show configuration, available tools and documents.",
			Parameters:  "none",
		},
	}
}

func (s *Service) usageGuidance(hasCredential bool) string {
	guide := fmt.Sprintf(`PDF Auto-Fill Usage Guide:

1. FIND A FORM:
   - Use 'pdf_list_documents' to find forms under the configured directory
   - Use 'pdf_extract_fields' to see its fields and the label found for each

2. GET SUGGESTIONS:
   - Optionally check your description with 'pdf_validate_context'
   - Use 'pdf_analyze_document' with the description, or without it to let the
     server detect the document type
   - A suggested value of null means "leave the field empty"

3. EXPORT:
   - Use 'pdf_export_document' with the values you accept or edit
   - Unknown field names are skipped, invalid choices are reported as warnings
   - Flattened exports can no longer be edited

IMPORTANT NOTES:
- Paths are relative to the configured directory; nothing outside it is read or written
- The server can handle files up to %dMB
- Scanned forms without a text layer cannot be analyzed`, s.maxFileSize/(1024*1024))

	if !hasCredential {
		guide += "\n- No completion API key is configured: analysis fails with MISSING_CREDENTIAL"
	}
	return guide
}
