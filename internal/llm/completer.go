// Package llm provides the text completion capability used to detect a
// document's context and suggest field values.
package llm

import "context"

// CompletionRequest is one chat completion with a system and a user message
type CompletionRequest struct {
	System      string
	User        string
	JSON        bool // ask for a JSON object reply
	MaxTokens   int  // 0 leaves the provider default
	Temperature float64
}

// Completer returns the text of a single completion
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompleterFunc adapts a function to the Completer interface
type CompleterFunc func(ctx context.Context, req CompletionRequest) (string, error)

// Complete calls f
func (f CompleterFunc) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return f(ctx, req)
}
