// Package pdf is the document gateway of the server: it confines paths,
// loads and writes files, and runs the analysis and fill pipelines on them.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/a3tai/pdf-autofill/internal/analysis"
	apperrors "github.com/a3tai/pdf-autofill/internal/errors"
	"github.com/a3tai/pdf-autofill/internal/formstate"
	"github.com/a3tai/pdf-autofill/internal/pdf/fill"
	"github.com/a3tai/pdf-autofill/internal/pdf/security"
)

// Options configure a Service
type Options struct {
	MaxFileSize int64
	Directory   string
	// Flatten is used when an export request does not say
	Flatten bool
}

// Service handles document operations by orchestrating the pipeline components
type Service struct {
	maxFileSize   int64
	flatten       bool
	validator     *Validator
	search        *Search
	pathValidator *security.PathValidator
	analyzer      *analysis.Service
	filler        *fill.Filler
	infoCache     *DirectoryCache
	logger        *logrus.Logger
}

// NewService creates a new document service
func NewService(opts Options, analyzer *analysis.Service, logger *logrus.Logger) (*Service, error) {
	if analyzer == nil {
		return nil, fmt.Errorf("analyzer cannot be nil")
	}
	if opts.MaxFileSize <= 0 {
		return nil, fmt.Errorf("max file size must be positive")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	pathValidator, err := security.NewPathValidator(opts.Directory)
	if err != nil {
		return nil, fmt.Errorf("failed to create path validator: %w", err)
	}

	return &Service{
		maxFileSize:   opts.MaxFileSize,
		flatten:       opts.Flatten,
		validator:     NewValidator(opts.MaxFileSize),
		search:        NewSearch(opts.MaxFileSize),
		pathValidator: pathValidator,
		analyzer:      analyzer,
		filler:        fill.NewFiller(logger),
		infoCache:     NewDirectoryCache(infoCacheTTL),
		logger:        logger,
	}, nil
}

// AnalyzeDocument suggests values for the fields of the document at req.Path
func (s *Service) AnalyzeDocument(ctx context.Context, req AnalyzeDocumentRequest) (*AnalyzeDocumentResult, error) {
	path, data, err := s.load(req.Path)
	if err != nil {
		return nil, err
	}

	result, err := s.analyzer.AnalyzeDocument(ctx, data, req.Context)
	if err != nil {
		return nil, err
	}
	return &AnalyzeDocumentResult{Path: path, AnalyzeResult: result}, nil
}

// ExtractFields lists the labelled fields of the document at req.Path. A
// document without a text layer is not an error here.
func (s *Service) ExtractFields(ctx context.Context, req ExtractFieldsRequest) (*ExtractFieldsResult, error) {
	path, data, err := s.load(req.Path)
	if err != nil {
		return nil, err
	}

	extracted, err := s.analyzer.Extractor().Extract(ctx, data)
	if err != nil && !errors.Is(err, apperrors.ErrNoExtractableText) {
		return nil, err
	}

	return &ExtractFieldsResult{
		Path:      path,
		PageCount: extracted.PageCount,
		HasText:   extracted.Text != "",
		Fields:    extracted.Fields,
	}, nil
}

// ExportDocument fills the document at req.Path and writes it to req.Output
func (s *Service) ExportDocument(ctx context.Context, req ExportDocumentRequest) (*ExportDocumentResult, error) {
	inPath, src, err := s.load(req.Path)
	if err != nil {
		return nil, err
	}

	outPath, err := s.pathValidator.NormalizePath(req.Output)
	if err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}
	if !isPDFFile(outPath) {
		return nil, fmt.Errorf("output must be a .pdf file: %s", req.Output)
	}
	if outPath == inPath {
		return nil, fmt.Errorf("output must differ from the source document")
	}

	values, err := s.collectValues(ctx, req)
	if err != nil {
		return nil, err
	}

	var placement *fill.SignaturePlacement
	if req.Signature != nil {
		placement, err = signaturePlacement(req.Signature)
		if err != nil {
			return nil, err
		}
	}

	flatten := s.flatten
	if req.Flatten != nil {
		flatten = *req.Flatten
	}

	out, report, err := s.filler.Export(ctx, src, values, placement, fill.Options{Flatten: flatten})
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrorTypeExportFailed, "failed to create output directory", err)
	}
	if err := os.WriteFile(outPath, out, 0o644); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrorTypeExportFailed, "failed to write output", err)
	}

	s.logger.WithFields(logrus.Fields{
		"source":   inPath,
		"output":   outPath,
		"applied":  len(report.Applied),
		"warnings": len(report.Warnings),
	}).Info("Document exported")

	return &ExportDocumentResult{
		Output:    outPath,
		Size:      len(out),
		Flattened: flatten,
		Signed:    placement != nil,
		Report:    report,
	}, nil
}

// collectValues merges suggestions and explicit values through a form-state
// store, the same way interactive edits arrive.
func (s *Service) collectValues(ctx context.Context, req ExportDocumentRequest) (map[string]string, error) {
	store := formstate.NewStore(nil, s.logger)
	defer store.Close()

	suggestions := make([]formstate.Suggestion, 0, len(req.Suggestions))
	for _, sg := range req.Suggestions {
		suggestions = append(suggestions, formstate.Suggestion{FieldName: sg.FieldName, Value: sg.SuggestedValue})
	}
	if _, err := store.ApplySuggestions(ctx, suggestions); err != nil {
		return nil, err
	}
	for name, value := range req.Values {
		if err := store.Publish(ctx, name, value); err != nil {
			return nil, err
		}
	}
	return store.Snapshot(ctx)
}

func signaturePlacement(sig *SignatureRequest) (*fill.SignaturePlacement, error) {
	img, err := fill.DecodeSignatureDataURL(sig.DataURL)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrorTypeExportFailed, "invalid signature image", err)
	}
	return &fill.SignaturePlacement{
		ImageBytes:      img,
		X:               sig.X,
		Y:               sig.Y,
		Width:           sig.Width,
		Height:          sig.Height,
		ContainerWidth:  sig.ContainerWidth,
		ContainerHeight: sig.ContainerHeight,
		PageIndex:       sig.PageIndex,
	}, nil
}

// ValidateContext reports whether a user context would be accepted
func (s *Service) ValidateContext(userContext string) *ValidateContextResult {
	if err := analysis.ValidateContext(userContext); err != nil {
		return &ValidateContextResult{Valid: false, Reason: apperrors.ReasonOf(err)}
	}
	return &ValidateContextResult{Valid: true}
}

// ListDocuments searches for PDF files in a directory
func (s *Service) ListDocuments(req ListDocumentsRequest) (*ListDocumentsResult, error) {
	directory := s.pathValidator.GetConfiguredDirectory()
	if req.Directory != "" {
		normalized, err := s.pathValidator.NormalizePath(req.Directory)
		if err != nil {
			return nil, fmt.Errorf("security validation failed: %w", err)
		}
		directory = normalized
	}
	if err := s.pathValidator.ValidateDirectory(directory); err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}

	files, err := s.search.FindPDFs(directory, req.Query, 0)
	if err != nil {
		return nil, err
	}
	return &ListDocumentsResult{
		Files:       files,
		TotalCount:  len(files),
		Directory:   directory,
		SearchQuery: req.Query,
	}, nil
}

// GetMaxFileSize returns the maximum file size limit
func (s *Service) GetMaxFileSize() int64 {
	return s.maxFileSize
}

// load confines and reads a source document
func (s *Service) load(path string) (string, []byte, error) {
	normalized, err := s.pathValidator.NormalizePath(path)
	if err != nil {
		return "", nil, fmt.Errorf("security validation failed: %w", err)
	}
	data, err := s.validator.ReadFile(normalized)
	if err != nil {
		return "", nil, err
	}
	s.logger.WithFields(logrus.Fields{"path": normalized, "bytes": len(data)}).Debug("Document loaded")
	return normalized, data, nil
}
