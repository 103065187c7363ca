package domain

import (
	"context"
	"strings"
)

// Embedder is the text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// Moderator classifies text against the provider's content policy.
type Moderator interface {
	Moderate(ctx context.Context, text string) (flagged bool, err error)
}

// HealthChecker verifies provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector and token usage.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

type apiKeyKey struct{}

// ContextWithAPIKey attaches a caller-supplied provider key to the context.
// Provider clients prefer it over their configured default key.
func ContextWithAPIKey(ctx context.Context, key string) context.Context {
	key = strings.TrimSpace(key)
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, apiKeyKey{}, key)
}

// APIKeyFromContext returns the caller-supplied key, or fallback if none is set.
func APIKeyFromContext(ctx context.Context, fallback string) string {
	if k, ok := ctx.Value(apiKeyKey{}).(string); ok && k != "" {
		return k
	}
	return fallback
}
