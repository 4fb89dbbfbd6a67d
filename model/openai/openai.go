// Package openai provides a model backend for OpenAI-compatible APIs: chat
// completions for text generation and the embeddings endpoint for vectors.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Options configure the OpenAI backend.
type Options struct {
	Model          string
	EmbeddingModel string
	APIKey         string
	BaseURL        string
	// Dimensions requests shortened embeddings when non-zero.
	Dimensions          int64
	MaxCompletionTokens int64
}

// Backend wraps an OpenAI client.
type Backend struct {
	client *openai.Client
	opts   Options
}

// New creates a backend using the official client. Without an explicit API
// key the client reads OPENAI_API_KEY.
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
	client := openai.NewClient(clientOpts...)

	return &Backend{client: &client, opts: opts}
}

// NewFromClient creates a backend from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Backend {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Backend{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:               openai.ChatModelGPT4oMini,
		EmbeddingModel:      string(openai.EmbeddingModelTextEmbedding3Small),
		MaxCompletionTokens: 1024,
	}
}

// Name returns the chat model id.
func (b *Backend) Name() string {
	return "openai/" + b.opts.Model
}

// Generate sends prompt as a single user message.
func (b *Backend) Generate(ctx context.Context, prompt string, maxTokens uint32, stopOn string) (string, error) {
	limit := b.opts.MaxCompletionTokens
	if maxTokens > 0 {
		limit = int64(maxTokens)
	}

	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model:               b.opts.Model,
		MaxCompletionTokens: openai.Int(limit),
	}
	if stopOn != "" {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfString: openai.String(stopOn)}
	}

	resp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed returns the embedding of text.
func (b *Backend) Embed(ctx context.Context, text string) ([]float32, error) {
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(b.opts.EmbeddingModel),
	}
	if b.opts.Dimensions > 0 {
		params.Dimensions = openai.Int(b.opts.Dimensions)
	}

	resp, err := b.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}

	src := resp.Data[0].Embedding
	vec := make([]float32, len(src))
	for i, v := range src {
		vec[i] = float32(v)
	}
	return vec, nil
}
