package schema

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/schemachat/internal/db"
	"github.com/kailas-cloud/schemachat/internal/domain"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	searchKNNFn func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	pingErr     error
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) Ping(context.Context) error { return m.pingErr }

func entry(content string, score float64) db.SearchEntry {
	return db.SearchEntry{Key: "schema:" + content, Score: score, Fields: map[string]string{"content": content}}
}

func TestMatchSchema_FiltersAndOrders(t *testing.T) {
	var gotQuery *db.KNNQuery
	ms := &mockStore{searchKNNFn: func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		gotQuery = q
		return &db.SearchResult{Total: 5, Entries: []db.SearchEntry{
			entry("create table orders (id int)", 0.6),
			entry("short", 0.95),
			entry("create table users (id int)", 0.9),
			entry("create table logs (id int)", 0.1),
			entry("create table events (id int)", 0.05),
		}}, nil
	}}
	repo := New(ms, "schemachat:schemas", "content")

	records, err := repo.MatchSchema(context.Background(), []float32{0.1, 0.2}, domain.DefaultRetrievalParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotQuery.IndexName != "schemachat:schemas" || gotQuery.K != 10 {
		t.Errorf("unexpected query %+v", gotQuery)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %+v", records)
	}
	if records[0].Content != "create table users (id int)" || records[1].Content != "create table orders (id int)" {
		t.Errorf("expected descending similarity, got %+v", records)
	}
}

func TestMatchSchema_TruncatesToCount(t *testing.T) {
	ms := &mockStore{searchKNNFn: func(context.Context, *db.KNNQuery) (*db.SearchResult, error) {
		return &db.SearchResult{Entries: []db.SearchEntry{
			entry("create table a (id int)", 0.9),
			entry("create table b (id int)", 0.8),
			entry("create table c (id int)", 0.7),
		}}, nil
	}}
	repo := New(ms, "idx", "content")

	params := domain.DefaultRetrievalParams()
	params.MatchCount = 2
	records, err := repo.MatchSchema(context.Background(), []float32{1}, params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 records, got %d", len(records))
	}
}

func TestMatchSchema_StoreError(t *testing.T) {
	storeErr := errors.New("connection refused")
	ms := &mockStore{searchKNNFn: func(context.Context, *db.KNNQuery) (*db.SearchResult, error) {
		return nil, storeErr
	}}
	repo := New(ms, "idx", "content")

	_, err := repo.MatchSchema(context.Background(), []float32{1}, domain.DefaultRetrievalParams())
	if !errors.Is(err, domain.ErrRetrieval) {
		t.Fatalf("expected ErrRetrieval, got %v", err)
	}
	if !errors.Is(err, storeErr) {
		t.Error("expected the store error to be preserved")
	}
}

func TestMatchSchema_ZeroCount(t *testing.T) {
	ms := &mockStore{searchKNNFn: func(context.Context, *db.KNNQuery) (*db.SearchResult, error) {
		t.Fatal("store must not be queried for zero count")
		return nil, nil
	}}
	repo := New(ms, "idx", "content")

	records, err := repo.MatchSchema(context.Background(), []float32{1}, domain.RetrievalParams{})
	if err != nil || len(records) != 0 {
		t.Fatalf("expected empty result, got %v, %v", records, err)
	}
}

func TestHealthCheck(t *testing.T) {
	repo := New(&mockStore{pingErr: errors.New("down")}, "idx", "content")
	if err := repo.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	repo = New(&mockStore{}, "idx", "content")
	if err := repo.HealthCheck(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
