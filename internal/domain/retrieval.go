package domain

import "context"

// ContextRecord is a single ranked snippet returned by similarity search.
type ContextRecord struct {
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

// RetrievalParams are the fixed similarity search parameters.
type RetrievalParams struct {
	MatchThreshold   float64
	MatchCount       int
	MinContentLength int
}

// DefaultRetrievalParams returns the parameters used by the schema matcher.
func DefaultRetrievalParams() RetrievalParams {
	return RetrievalParams{
		MatchThreshold:   0.1,
		MatchCount:       10,
		MinContentLength: 10,
	}
}

// Searcher returns context records similar to a query embedding, ordered by descending similarity.
type Searcher interface {
	MatchSchema(ctx context.Context, embedding []float32, params RetrievalParams) ([]ContextRecord, error)
}
