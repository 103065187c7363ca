package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/schemachat/internal/domain"
	"github.com/kailas-cloud/schemachat/internal/logger"
	"github.com/kailas-cloud/schemachat/internal/metrics"
	"github.com/kailas-cloud/schemachat/internal/stream"
)

// Pipeline stage names used in logs and metrics.
const (
	StageQuery      = "query"
	StageModeration = "moderation"
	StageEmbedding  = "embedding"
	StageRetrieval  = "retrieval"
	StageAssembly   = "assembly"
	StageCompletion = "completion"
)

// ModerationPolicy decides what happens when the moderation endpoint itself fails.
type ModerationPolicy int

const (
	// ModerationPermissive logs the failure and lets the query through.
	ModerationPermissive ModerationPolicy = iota
	// ModerationStrict fails the request with domain.ErrModerationUnavailable.
	ModerationStrict
	// ModerationDisabled skips the guard.
	ModerationDisabled
)

// Options holds the per-deployment pipeline settings.
type Options struct {
	Moderation  ModerationPolicy
	Retrieval   domain.RetrievalParams
	Model       domain.ModelSelector
	Temperature float32
}

// Request is one chat turn. Model, Temperature and APIKey override the configured values when set.
type Request struct {
	Messages    []domain.Message
	Model       *domain.ModelSelector
	Temperature *float32
	APIKey      string
}

// Service runs the retrieval-augmented chat pipeline.
type Service struct {
	moderator Moderator
	embedder  Embedder
	searcher  Searcher
	assembler *Assembler
	completer Completer
	opts      Options
	logger    *zap.Logger
}

// New creates a chat service. moderator may be nil when moderation is disabled.
func New(
	moderator Moderator, embedder Embedder, searcher Searcher,
	assembler *Assembler, completer Completer,
	opts Options, log *zap.Logger,
) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if moderator == nil {
		opts.Moderation = ModerationDisabled
	}
	return &Service{
		moderator: moderator,
		embedder:  embedder,
		searcher:  searcher,
		assembler: assembler,
		completer: completer,
		opts:      opts,
		logger:    log,
	}
}

// Stream answers the conversation. It returns once the completion stream is open;
// any failure before that point returns an error and no stream. The caller must
// close the returned reader.
func (s *Service) Stream(ctx context.Context, req Request) (io.ReadCloser, error) {
	log := logger.FromContextOr(ctx, s.logger)
	ctx = domain.ContextWithAPIKey(ctx, req.APIKey)

	query, err := domain.QueryText(req.Messages)
	if err != nil {
		metrics.PipelineFailuresTotal.WithLabelValues(StageQuery).Inc()
		return nil, err
	}

	if err := s.guard(ctx, log, query); err != nil {
		return nil, err
	}

	var emb domain.EmbeddingResult
	err = s.stage(log, StageEmbedding, func() error {
		var e error
		emb, e = s.embedder.Embed(ctx, query)
		return e
	})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var records []domain.ContextRecord
	err = s.stage(log, StageRetrieval, func() error {
		var e error
		records, e = s.searcher.MatchSchema(ctx, emb.Embedding, s.opts.Retrieval)
		return e
	})
	if err != nil {
		return nil, fmt.Errorf("match schema: %w", err)
	}

	var assembled Assembled
	_ = s.stage(log, StageAssembly, func() error {
		assembled = s.assembler.Assemble(records)
		return nil
	})
	metrics.ContextTokens.Observe(float64(assembled.Tokens))
	metrics.ContextRecords.WithLabelValues("retrieved").Observe(float64(len(records)))
	metrics.ContextRecords.WithLabelValues("included").Observe(float64(assembled.Included))
	log.Debug("Context assembled",
		zap.Int("retrieved", len(records)),
		zap.Int("included", assembled.Included),
		zap.Int("tokens", assembled.Tokens),
	)

	creq := domain.CompletionRequest{
		SystemPrompt: BuildSystemPrompt(assembled.Text),
		Messages:     req.Messages,
		Model:        s.opts.Model,
		Temperature:  s.opts.Temperature,
	}
	if req.Model != nil && req.Model.ID != "" {
		creq.Model = *req.Model
	}
	if req.Temperature != nil {
		creq.Temperature = *req.Temperature
	}

	var body io.ReadCloser
	err = s.stage(log, StageCompletion, func() error {
		var e error
		body, e = s.completer.Dispatch(ctx, creq)
		return e
	})
	if err != nil {
		return nil, fmt.Errorf("dispatch completion: %w", err)
	}

	return stream.Relay(ctx, body, log), nil
}

// guard applies the moderation policy to the query.
func (s *Service) guard(ctx context.Context, log *zap.Logger, query string) error {
	if s.opts.Moderation == ModerationDisabled {
		return nil
	}

	var flagged bool
	err := s.stage(log, StageModeration, func() error {
		var e error
		flagged, e = s.moderator.Moderate(ctx, query)
		return e
	})
	if err != nil {
		if s.opts.Moderation == ModerationStrict {
			log.Error("Moderation unavailable", zap.Error(err))
			return fmt.Errorf("%w: %w", domain.ErrModerationUnavailable, err)
		}
		metrics.ModerationTotal.WithLabelValues("unavailable").Inc()
		log.Warn("Moderation unavailable, continuing without it", zap.Error(err))
		return nil
	}

	if flagged {
		metrics.ModerationTotal.WithLabelValues("flagged").Inc()
		log.Info("Query rejected by moderation")
		return &domain.ContentPolicyViolationError{Input: query}
	}
	metrics.ModerationTotal.WithLabelValues("allowed").Inc()
	return nil
}

// stage times fn and records its outcome. Moderation failures are logged by guard,
// which knows whether they are fatal.
func (s *Service) stage(log *zap.Logger, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	metrics.PipelineStageDuration.WithLabelValues(name).Observe(elapsed.Seconds())

	if err != nil {
		metrics.PipelineFailuresTotal.WithLabelValues(name).Inc()
		if name != StageModeration && !errors.Is(err, context.Canceled) {
			log.Error("Pipeline stage failed", zap.String("stage", name), zap.Duration("duration", elapsed), zap.Error(err))
		}
		return err
	}
	log.Debug("Pipeline stage done", zap.String("stage", name), zap.Duration("duration", elapsed))
	return nil
}
