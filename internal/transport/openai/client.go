package openai

import (
	"context"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/schemachat/internal/domain"
)

// clientFactory builds go-openai clients against {host}/v1, one per distinct key.
type clientFactory struct {
	host       string
	apiKey     string
	httpClient *http.Client
	fallback   *openai.Client
}

func newClientFactory(host, apiKey string, httpClient *http.Client) *clientFactory {
	f := &clientFactory{
		host:       strings.TrimRight(host, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
	f.fallback = f.build(apiKey)
	return f
}

// forContext returns a client authorized with the caller's key when one is attached to ctx.
func (f *clientFactory) forContext(ctx context.Context) *openai.Client {
	key := domain.APIKeyFromContext(ctx, f.apiKey)
	if key == f.apiKey {
		return f.fallback
	}
	return f.build(key)
}

func (f *clientFactory) build(key string) *openai.Client {
	cfg := openai.DefaultConfig(key)
	cfg.BaseURL = f.host + "/v1"
	if f.httpClient != nil {
		cfg.HTTPClient = f.httpClient
	}
	return openai.NewClientWithConfig(cfg)
}
