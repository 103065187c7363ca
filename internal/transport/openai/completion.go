package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/schemachat/internal/domain"
	"github.com/kailas-cloud/schemachat/internal/metrics"
)

const maxErrorBody = 64 << 10

// DispatcherConfig configures the streaming chat completion client.
type DispatcherConfig struct {
	APIHost        string
	Kind           domain.ProviderKind
	APIKey         string
	DeploymentID   string // gateway only
	APIVersion     string // gateway only
	OrganizationID string // direct only
	MaxTokens      int
	HTTPClient     *http.Client
	Logger         *zap.Logger
}

// Dispatcher sends streaming chat completion requests in the direct or gateway shape.
type Dispatcher struct {
	cfg    DispatcherConfig
	client *http.Client
	logger *zap.Logger
}

// chatRequest is the wire body. Model is omitted for gateways, which bind it to the deployment.
type chatRequest struct {
	Model       string                         `json:"model,omitempty"`
	Messages    []openai.ChatCompletionMessage `json:"messages"`
	MaxTokens   int                            `json:"max_tokens"`
	Temperature float32                        `json:"temperature"`
	Stream      bool                           `json:"stream"`
}

// NewDispatcher creates a completion dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	cfg.APIHost = strings.TrimRight(cfg.APIHost, "/")
	return &Dispatcher{cfg: cfg, client: client, logger: logger}
}

// Dispatch sends the request and returns the live event stream body on HTTP 200.
// Any other status yields *domain.CompletionProviderError and the body is closed.
func (d *Dispatcher) Dispatch(ctx context.Context, req domain.CompletionRequest) (io.ReadCloser, error) {
	kind := string(d.cfg.Kind)
	httpReq, err := d.newRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := d.client.Do(httpReq)
	if err != nil {
		metrics.CompletionRequestsTotal.WithLabelValues(kind, "error").Inc()
		return nil, fmt.Errorf("completion request failed: %v: %w", err, domain.ErrCompletionProviderError)
	}
	metrics.CompletionRequestDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	metrics.CompletionRequestsTotal.WithLabelValues(kind, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		return nil, providerError(resp)
	}

	d.logger.Debug("Completion stream opened",
		zap.String("provider_kind", kind),
		zap.String("model", req.Model.ID),
		zap.Duration("time_to_headers", time.Since(start)),
	)
	return resp.Body, nil
}

func (d *Dispatcher) newRequest(ctx context.Context, req domain.CompletionRequest) (*http.Request, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: req.SystemPrompt,
	})
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}

	body := chatRequest{
		Messages:    messages,
		MaxTokens:   d.cfg.MaxTokens,
		Temperature: req.Temperature,
		Stream:      true,
	}
	if d.cfg.Kind != domain.ProviderGateway {
		body.Model = req.Model.ID
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	key := domain.APIKeyFromContext(ctx, d.cfg.APIKey)
	if d.cfg.Kind == domain.ProviderGateway {
		httpReq.Header.Set("api-key", key)
	} else {
		httpReq.Header.Set("Authorization", "Bearer "+key)
		if d.cfg.OrganizationID != "" {
			httpReq.Header.Set("OpenAI-Organization", d.cfg.OrganizationID)
		}
	}
	return httpReq, nil
}

func (d *Dispatcher) endpoint() string {
	if d.cfg.Kind == domain.ProviderGateway {
		return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
			d.cfg.APIHost, url.PathEscape(d.cfg.DeploymentID), url.QueryEscape(d.cfg.APIVersion))
	}
	return d.cfg.APIHost + "/v1/chat/completions"
}

// HealthCheck verifies the completion endpoint is reachable. Direct providers are probed via
// the models listing; gateways are only checked for TCP/TLS reachability.
func (d *Dispatcher) HealthCheck(ctx context.Context) error {
	target := d.cfg.APIHost + "/v1/models"
	if d.cfg.Kind == domain.ProviderGateway {
		target = d.cfg.APIHost + "/"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	if d.cfg.Kind == domain.ProviderGateway {
		req.Header.Set("api-key", d.cfg.APIKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+d.cfg.APIKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("completion endpoint unreachable: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("completion endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// providerError decodes the error object of a rejected completion request.
func providerError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	perr := &domain.CompletionProviderError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(raw),
	}

	var parsed openai.ErrorResponse
	if err := json.Unmarshal(raw, &parsed); err != nil || parsed.Error == nil {
		return perr
	}
	perr.Message = parsed.Error.Message
	perr.Type = parsed.Error.Type
	if parsed.Error.Param != nil {
		perr.Param = *parsed.Error.Param
	}
	perr.Code = codeString(parsed.Error.Code)
	return perr
}

func codeString(code any) string {
	switch c := code.(type) {
	case nil:
		return ""
	case string:
		return c
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	default:
		return fmt.Sprint(c)
	}
}
