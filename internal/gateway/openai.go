package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIConfig configures the OpenAI completer.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// OpenAI issues Chat Completions requests with a single user message.
type OpenAI struct {
	client openai.Client
	model  string
}

// NewOpenAI builds a completer. It fails fast when no credential is set.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingCredential
	}
	if cfg.Model == "" {
		return nil, errors.New("gateway: model cannot be empty")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// One call per operation; failures surface to the user as-is.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &OpenAI{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
	}, nil
}

// Model returns the model identifier sent with every request.
func (o *OpenAI) Model() string {
	return o.model
}

// Complete sends req and returns the first choice's message content.
func (o *OpenAI) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: o.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Prompt),
		},
		MaxTokens:   openai.Int(int64(req.MaxTokens)),
		Temperature: openai.Float(req.Temperature),
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classify(fmt.Errorf("openai chat completion failed: %w", err))
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", &Error{Err: errors.New("empty response from OpenAI: no choices"), Kind: KindEmptyResponse}
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", &Error{Err: errors.New("empty response from OpenAI: no content"), Kind: KindEmptyResponse}
	}
	return content, nil
}
