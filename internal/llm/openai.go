package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	apperrors "github.com/a3tai/pdf-autofill/internal/errors"
)

const (
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 60 * time.Second
)

// Config configures an OpenAI-compatible completion endpoint
type Config struct {
	APIKey            string
	BaseURL           string // optional alternate endpoint
	Model             string
	Timeout           time.Duration
	RequestsPerMinute int // 0 disables rate limiting
}

// OpenAIClient is a Completer backed by an OpenAI-compatible chat API.
// It is safe for concurrent use.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	limiter *rate.Limiter
	logger  *logrus.Logger
}

// NewOpenAIClient creates a client. A missing API key is reported as
// ErrMissingCredential.
func NewOpenAIClient(cfg Config, logger *logrus.Logger) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, apperrors.New(apperrors.ErrorTypeMissingCredential, "no completion API key configured")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// retries are the caller's decision
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(cfg.RequestsPerMinute) / 60
	}

	return &OpenAIClient{
		client:  &client,
		model:   model,
		timeout: timeout,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}, nil
}

// Model returns the model identifier sent with each request
func (c *OpenAIClient) Model() string {
	return c.model
}

// Complete sends one chat completion and returns the first choice's content
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return "", apperrors.Wrap(apperrors.ErrorTypeAnalysisFailed, "completion cancelled before sending", err)
	}

	messages := []openai.ChatCompletionMessageParamUnion{}
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.User))

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.JSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	start := time.Now()
	response, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		c.logger.WithError(err).WithField("model", c.model).Debug("Completion request failed")
		return "", Classify(err)
	}

	c.logger.WithFields(logrus.Fields{
		"model":             c.model,
		"duration":          time.Since(start),
		"prompt_tokens":     response.Usage.PromptTokens,
		"completion_tokens": response.Usage.CompletionTokens,
	}).Debug("Completion received")

	if len(response.Choices) == 0 {
		return "", apperrors.New(apperrors.ErrorTypeAnalysisFailed, "no choices in completion response")
	}
	return response.Choices[0].Message.Content, nil
}

// Classify maps a completion failure onto the error taxonomy. Quota,
// billing and rate limit failures become ErrCreditExhausted, identified by
// status code or by message. Already classified errors pass through.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeCreditExhausted, apperrors.ErrorTypeMissingCredential, apperrors.ErrorTypeAnalysisFailed:
		return err
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests, http.StatusPaymentRequired:
			return apperrors.Wrap(apperrors.ErrorTypeCreditExhausted, "completion provider refused the request", err)
		case http.StatusUnauthorized:
			return apperrors.Wrap(apperrors.ErrorTypeMissingCredential, "completion provider rejected the credential", err)
		}
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"quota", "rate", "billing"} {
		if strings.Contains(msg, marker) {
			return apperrors.Wrap(apperrors.ErrorTypeCreditExhausted, "completion provider refused the request", err)
		}
	}

	return apperrors.Wrap(apperrors.ErrorTypeAnalysisFailed, "completion failed", err)
}
