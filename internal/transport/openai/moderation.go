package openai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/schemachat/internal/domain"
)

var errModerationProvider = errors.New("moderation provider error")

// Moderator classifies input with the provider's moderation endpoint.
type Moderator struct {
	clients *clientFactory
	model   string
	logger  *zap.Logger
}

// NewModerator creates a moderation client. cfg.Model may be empty to use the provider default.
func NewModerator(cfg *Config) *Moderator {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Moderator{
		clients: newClientFactory(cfg.APIHost, cfg.APIKey, cfg.HTTPClient),
		model:   cfg.Model,
		logger:  logger,
	}
}

// Moderate implements domain.Moderator. It reports the flagged verdict of the first result;
// transport failures and empty result lists are returned as errors.
func (m *Moderator) Moderate(ctx context.Context, text string) (bool, error) {
	resp, err := m.clients.forContext(ctx).Moderations(ctx, openai.ModerationRequest{
		Input: text,
		Model: m.model,
	})
	if err != nil {
		return false, parseAPIError("moderation", err, errModerationProvider)
	}
	if len(resp.Results) == 0 {
		return false, fmt.Errorf("empty moderation response: %w", errModerationProvider)
	}

	flagged := resp.Results[0].Flagged
	if flagged {
		m.logger.Info("Query flagged by moderation", zap.String("moderation_id", resp.ID))
	}
	return flagged, nil
}

var _ domain.Moderator = (*Moderator)(nil)
