// Package schema serves the match_schema retrieval contract from a Valkey vector index.
package schema

import (
	"context"
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/kailas-cloud/schemachat/internal/db"
	"github.com/kailas-cloud/schemachat/internal/domain"
)

// store is the consumer interface for search operations (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	Ping(ctx context.Context) error
}

// Repo implements domain.Searcher over a KNN index.
type Repo struct {
	store        store
	index        string
	contentField string
}

// New creates a schema repository for the given index and content field.
func New(s store, index, contentField string) *Repo {
	return &Repo{store: s, index: index, contentField: contentField}
}

// MatchSchema returns up to MatchCount records with similarity above MatchThreshold
// and content of at least MinContentLength characters, most similar first.
func (r *Repo) MatchSchema(
	ctx context.Context, embedding []float32, params domain.RetrievalParams,
) ([]domain.ContextRecord, error) {
	if params.MatchCount <= 0 {
		return nil, nil
	}

	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.index,
		Vector:       embedding,
		K:            params.MatchCount,
		ReturnFields: []string{r.contentField},
	})
	if err != nil {
		return nil, &domain.RetrievalError{Message: fmt.Sprintf("search %s", r.index), Err: err}
	}

	records := make([]domain.ContextRecord, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		content := e.Fields[r.contentField]
		if e.Score <= params.MatchThreshold {
			continue
		}
		if utf8.RuneCountInString(content) < params.MinContentLength {
			continue
		}
		records = append(records, domain.ContextRecord{Content: content, Similarity: e.Score})
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Similarity > records[j].Similarity
	})
	if len(records) > params.MatchCount {
		records = records[:params.MatchCount]
	}
	return records, nil
}

// HealthCheck pings the underlying store.
func (r *Repo) HealthCheck(ctx context.Context) error {
	if err := r.store.Ping(ctx); err != nil {
		return fmt.Errorf("vector store: %w", err)
	}
	return nil
}
