// Package anthropic provides a text generation backend for the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Options configure the Anthropic backend.
type Options struct {
	Model     anthropic.Model
	MaxTokens int64
	APIKey    string
	BaseURL   string
}

// Backend wraps an Anthropic client. It only generates text.
type Backend struct {
	client *anthropic.Client
	opts   Options
}

// New creates a backend using the official client. Without an explicit API
// key the client reads ANTHROPIC_API_KEY.
func New(optFns ...func(o *Options)) *Backend {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Backend{client: &client, opts: opts}
}

// NewFromClient creates a backend from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Backend {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Backend{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:     anthropic.ModelClaude3_5Sonnet20241022,
		MaxTokens: 1024,
	}
}

// Name returns the model id.
func (b *Backend) Name() string {
	return "anthropic/" + string(b.opts.Model)
}

// Generate sends prompt as a single user message and concatenates the text
// blocks of the reply.
func (b *Backend) Generate(ctx context.Context, prompt string, maxTokens uint32, stopOn string) (string, error) {
	limit := b.opts.MaxTokens
	if maxTokens > 0 {
		limit = int64(maxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     b.opts.Model,
		MaxTokens: limit,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if stopOn != "" {
		params.StopSequences = []string{stopOn}
	}

	resp, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	return sb.String(), nil
}
