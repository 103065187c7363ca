// Package supabase calls the match_schema similarity function through PostgREST RPC.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/schemachat/internal/domain"
)

const maxErrorBody = 64 << 10

// Config holds the PostgREST connection settings.
type Config struct {
	URL            string // project URL without /rest/v1
	ServiceRoleKey string
	Function       string
	HTTPClient     *http.Client
	Logger         *zap.Logger
}

// Client implements domain.Searcher over the Supabase RPC endpoint.
type Client struct {
	baseURL    string
	key        string
	function   string
	httpClient *http.Client
	logger     *zap.Logger
}

type matchRequest struct {
	Embedding        []float32 `json:"embedding"`
	MatchThreshold   float64   `json:"match_threshold"`
	MatchCount       int       `json:"match_count"`
	MinContentLength int       `json:"min_content_length"`
}

// postgrestError is the error object PostgREST returns for failed calls.
type postgrestError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

// NewClient creates a Supabase RPC client with a 30s default timeout.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	fn := cfg.Function
	if fn == "" {
		fn = "match_schema"
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		key:        cfg.ServiceRoleKey,
		function:   fn,
		httpClient: httpClient,
		logger:     logger,
	}
}

// MatchSchema implements domain.Searcher.
func (c *Client) MatchSchema(
	ctx context.Context, embedding []float32, params domain.RetrievalParams,
) ([]domain.ContextRecord, error) {
	body, err := json.Marshal(matchRequest{
		Embedding:        embedding,
		MatchThreshold:   params.MatchThreshold,
		MatchCount:       params.MatchCount,
		MinContentLength: params.MinContentLength,
	})
	if err != nil {
		return nil, &domain.RetrievalError{Message: "encode request", Err: err}
	}

	endpoint := c.baseURL + "/rest/v1/rpc/" + url.PathEscape(c.function)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &domain.RetrievalError{Message: "build request", Err: err}
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.RetrievalError{Message: "rpc " + c.function, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeError(resp)
	}

	var records []domain.ContextRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, &domain.RetrievalError{Message: "decode response", Err: err}
	}

	c.logger.Debug("Schema matched",
		zap.String("function", c.function),
		zap.Int("records", len(records)),
	)
	return records, nil
}

// HealthCheck verifies the PostgREST endpoint answers for the service role.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/rest/v1/", http.NoBody)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("supabase unreachable: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("supabase returned %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var pe postgrestError
	if err := json.Unmarshal(raw, &pe); err != nil || pe.Message == "" {
		return &domain.RetrievalError{
			Message: fmt.Sprintf("rpc returned %d", resp.StatusCode),
			Details: strings.TrimSpace(string(raw)),
		}
	}
	return &domain.RetrievalError{
		Message: pe.Message,
		Code:    pe.Code,
		Details: pe.Details,
		Hint:    pe.Hint,
	}
}
