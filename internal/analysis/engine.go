// Package analysis turns extracted document text and fields into fill
// suggestions with the help of a completion model.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "github.com/a3tai/pdf-autofill/internal/errors"
	"github.com/a3tai/pdf-autofill/internal/llm"
	"github.com/a3tai/pdf-autofill/internal/pdf/extraction"
)

const defaultConfidence = 0.9

// FieldSuggestion is a proposed value for one field. A nil SuggestedValue
// means the field should be left alone.
type FieldSuggestion struct {
	FieldName      string  `json:"fieldName"`
	SuggestedValue *string `json:"suggestedValue"`
	Confidence     float64 `json:"confidence"`
}

// SuggestRequest is the input of Engine.Suggest
type SuggestRequest struct {
	Text    string
	Context string
	Fields  []extraction.FieldDescriptor
}

// EngineOptions tune an Engine. Zero values select the defaults.
type EngineOptions struct {
	Policy FieldPolicy      // defaults to MeaningfulLabelPolicy
	Now    func() time.Time // defaults to time.Now
}

// Engine asks the completion model for field values
type Engine struct {
	completer llm.Completer
	policy    FieldPolicy
	now       func() time.Time
	logger    *logrus.Logger
}

// NewEngine creates a suggestion engine
func NewEngine(completer llm.Completer, opts EngineOptions, logger *logrus.Logger) *Engine {
	if opts.Policy == nil {
		opts.Policy = MeaningfulLabelPolicy{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Engine{
		completer: completer,
		policy:    opts.Policy,
		now:       opts.Now,
		logger:    logger,
	}
}

// Suggest makes one completion call and maps its JSON reply to suggestions.
// Suggestions for names outside req.Fields are kept.
func (e *Engine) Suggest(ctx context.Context, req SuggestRequest) ([]FieldSuggestion, error) {
	if e.completer == nil {
		return nil, apperrors.New(apperrors.ErrorTypeMissingCredential, "no completion capability configured")
	}

	offered := filterFields(e.policy, req.Fields)
	e.logger.WithFields(logrus.Fields{
		"fields":  len(req.Fields),
		"offered": len(offered),
	}).Debug("Requesting fill suggestions")

	reply, err := e.completer.Complete(ctx, llm.CompletionRequest{
		System:      suggestionSystemPrompt(req.Context, offered, req.Text, e.now()),
		User:        suggestionUserPrompt(req.Text),
		JSON:        true,
		Temperature: 0,
	})
	if err != nil {
		return nil, llm.Classify(err)
	}

	suggestions, err := parseSuggestions(reply)
	if err != nil {
		e.logger.WithError(err).Debug("Unusable completion reply")
		return nil, apperrors.Wrap(apperrors.ErrorTypeAnalysisFailed, "could not read suggestions", err)
	}
	return suggestions, nil
}

// parseSuggestions reads {"fields":[{"name"|"id", "value", "confidence"}]}
func parseSuggestions(reply string) ([]FieldSuggestion, error) {
	content := stripCodeFence(strings.TrimSpace(reply))
	if content == "" {
		return nil, fmt.Errorf("empty completion")
	}

	dec := json.NewDecoder(strings.NewReader(content))
	dec.UseNumber()

	var parsed struct {
		Fields *[]map[string]any `json:"fields"`
	}
	if err := dec.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if parsed.Fields == nil {
		return nil, fmt.Errorf("reply has no fields array")
	}

	suggestions := make([]FieldSuggestion, 0, len(*parsed.Fields))
	for _, entry := range *parsed.Fields {
		name := scalarString(entry["name"])
		if name == nil || *name == "" {
			name = scalarString(entry["id"])
		}
		if name == nil || *name == "" {
			continue
		}

		suggestions = append(suggestions, FieldSuggestion{
			FieldName:      *name,
			SuggestedValue: scalarString(entry["value"]),
			Confidence:     confidence(entry["confidence"]),
		})
	}
	return suggestions, nil
}

// scalarString renders a JSON scalar as a string. null, absent and
// structured values give nil.
func scalarString(v any) *string {
	var s string
	switch val := v.(type) {
	case string:
		s = val
	case json.Number:
		s = val.String()
	case bool:
		s = strconv.FormatBool(val)
	default:
		return nil
	}
	return &s
}

func confidence(v any) float64 {
	n, ok := v.(json.Number)
	if !ok {
		return defaultConfidence
	}
	f, err := n.Float64()
	if err != nil {
		return defaultConfidence
	}
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// stripCodeFence removes a ```json fence some endpoints wrap JSON in
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return string(bytes.TrimSpace([]byte(s)))
}
