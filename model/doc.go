// Package model provides the model resource held by plugins.
//
// A Model is declared by name in a Catalog and created unloaded; its backend
// is constructed on first use and a failed construction is cached for the
// model's lifetime. Calls are rate limited per model when the spec sets
// requests_per_second.
//
// Built-in providers:
//
//   - openai: chat completions and embeddings (any OpenAI-compatible base URL)
//   - anthropic: text generation through the Messages API
//   - hash: offline feature-hashing embedder
package model
