package chat

import (
	"context"
	"io"

	"github.com/kailas-cloud/schemachat/internal/domain"
)

// Moderator classifies the query against the content policy.
type Moderator interface {
	Moderate(ctx context.Context, text string) (bool, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Searcher finds context records similar to the query embedding.
type Searcher interface {
	MatchSchema(ctx context.Context, embedding []float32, params domain.RetrievalParams) ([]domain.ContextRecord, error)
}

// Completer opens a streaming chat completion and returns the raw event stream body.
type Completer interface {
	Dispatch(ctx context.Context, req domain.CompletionRequest) (io.ReadCloser, error)
}

// TokenCounter counts model tokens in text.
type TokenCounter interface {
	Count(text string) int
}
