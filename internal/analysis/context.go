package analysis

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/a3tai/pdf-autofill/internal/llm"
)

const (
	unknownContext   = "UNKNOWN"
	contextMaxTokens = 80
)

// ContextResolver decides the purpose of a document
type ContextResolver struct {
	completer llm.Completer
	logger    *logrus.Logger
}

// NewContextResolver creates a resolver that asks completer when the user
// supplied no context. A nil logger uses the logrus standard logger.
func NewContextResolver(completer llm.Completer, logger *logrus.Logger) *ContextResolver {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ContextResolver{completer: completer, logger: logger}
}

// Resolve returns the user context when it is non-empty after trimming,
// without calling the model. Otherwise it asks the model to classify the
// document. An unsure answer, an empty answer or any failure yields nil.
func (r *ContextResolver) Resolve(ctx context.Context, userContext, text string) *string {
	if trimmed := strings.TrimSpace(userContext); trimmed != "" {
		return &userContext
	}
	if strings.TrimSpace(text) == "" || r.completer == nil {
		return nil
	}

	reply, err := r.completer.Complete(ctx, llm.CompletionRequest{
		System:      contextSystemPrompt,
		User:        contextUserPrompt(text),
		MaxTokens:   contextMaxTokens,
		Temperature: 0,
	})
	if err != nil {
		r.logger.WithError(err).Warn("Context detection failed")
		return nil
	}

	detected := cleanContextReply(reply)
	if detected == "" {
		r.logger.Debug("Document context unknown")
		return nil
	}
	r.logger.WithField("context", detected).Debug("Document context detected")
	return &detected
}

// cleanContextReply strips quotes and maps the unsure marker to ""
func cleanContextReply(reply string) string {
	s := strings.TrimSpace(reply)
	s = strings.Trim(s, "\"'«»“” ")
	s = strings.TrimSpace(s)
	if strings.EqualFold(strings.TrimRight(s, "."), unknownContext) {
		return ""
	}
	return s
}
