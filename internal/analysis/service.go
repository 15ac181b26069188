package analysis

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	apperrors "github.com/a3tai/pdf-autofill/internal/errors"
	"github.com/a3tai/pdf-autofill/internal/llm"
	"github.com/a3tai/pdf-autofill/internal/pdf/extraction"
)

// AnalyzeResult is the outcome of analyzing one document
type AnalyzeResult struct {
	Context     string                       `json:"context"`
	Fields      []FieldSuggestion            `json:"fields"`
	Descriptors []extraction.FieldDescriptor `json:"descriptors"`
	PageCount   int                          `json:"page_count"`
}

// Service runs the full analysis of a document: context validation,
// extraction, context resolution and suggestion.
type Service struct {
	extractor *extraction.Extractor
	resolver  *ContextResolver
	engine    *Engine
	logger    *logrus.Logger
}

// NewService wires a Service around one completer
func NewService(completer llm.Completer, opts EngineOptions, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		extractor: extraction.NewExtractor(logger),
		resolver:  NewContextResolver(completer, logger),
		engine:    NewEngine(completer, opts, logger),
		logger:    logger,
	}
}

// ValidateContext checks a user-supplied context. Empty context is valid
// and means "detect it".
func ValidateContext(userContext string) error {
	trimmed := strings.TrimSpace(userContext)
	if trimmed == "" {
		return nil
	}
	if ok, reason := llm.ValidateUserPrompt(trimmed); !ok {
		return apperrors.New(apperrors.ErrorTypeInvalidContext, "context rejected").WithReason(reason)
	}
	return nil
}

// AnalyzeDocument suggests values for the fields of data. A rejected user
// context fails before anything reaches the model. A document without a
// text layer fails with ErrExtractionFailed.
func (s *Service) AnalyzeDocument(ctx context.Context, data []byte, userContext string) (*AnalyzeResult, error) {
	if err := ValidateContext(userContext); err != nil {
		s.logger.WithField("reason", apperrors.ReasonOf(err)).Info("User context rejected")
		return nil, err
	}

	extracted, err := s.extractor.Extract(ctx, data)
	if err != nil {
		if errors.Is(err, apperrors.ErrNoExtractableText) {
			return nil, apperrors.Wrap(apperrors.ErrorTypeExtractionFailed, "document has no extractable text", err)
		}
		return nil, err
	}

	resolved := s.resolver.Resolve(ctx, userContext, extracted.Text)
	docContext := ""
	if resolved != nil {
		docContext = *resolved
	}

	suggestions, err := s.engine.Suggest(ctx, SuggestRequest{
		Text:    extracted.Text,
		Context: docContext,
		Fields:  extracted.Fields,
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"fields":      len(extracted.Fields),
		"suggestions": len(suggestions),
		"has_context": resolved != nil,
	}).Info("Document analyzed")

	return &AnalyzeResult{
		Context:     docContext,
		Fields:      suggestions,
		Descriptors: extracted.Fields,
		PageCount:   extracted.PageCount,
	}, nil
}

// Extractor returns the extractor the service reads documents with
func (s *Service) Extractor() *extraction.Extractor {
	return s.extractor
}
