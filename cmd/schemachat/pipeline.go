package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/schemachat/internal/config"
	dbValkey "github.com/kailas-cloud/schemachat/internal/db/valkey"
	"github.com/kailas-cloud/schemachat/internal/domain"
	"github.com/kailas-cloud/schemachat/internal/metrics"
	schemarepo "github.com/kailas-cloud/schemachat/internal/repository/schema"
	"github.com/kailas-cloud/schemachat/internal/tokenizer"
	openaiTransport "github.com/kailas-cloud/schemachat/internal/transport/openai"
	"github.com/kailas-cloud/schemachat/internal/transport/supabase"
	chatuc "github.com/kailas-cloud/schemachat/internal/usecase/chat"
	healthuc "github.com/kailas-cloud/schemachat/internal/usecase/health"
)

// pipeline is the composition root shared by serve and ask.
type pipeline struct {
	chat   *chatuc.Service
	health *healthuc.Service
	close  func()
}

// searchBackend is a retrieval backend that can report its health.
type searchBackend interface {
	chatuc.Searcher
	healthuc.Checker
}

// buildPipeline wires providers, the retrieval backend and the chat service from cfg.
func buildPipeline(ctx context.Context, cfg config.Config, logger *zap.Logger) (*pipeline, error) {
	// Register metrics explicitly (no init())
	metrics.RegisterProviderMetrics()
	metrics.RegisterPipelineMetrics()

	counter, err := tokenizer.New(cfg.Retrieval.TokenizerEncoding)
	if err != nil {
		return nil, fmt.Errorf("create tokenizer: %w", err)
	}

	var backend searchBackend
	closeStore := func() {}
	if cfg.Retrieval.Backend == config.BackendValkey {
		store, err := openValkey(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		closeStore = store.Close
		backend = schemarepo.New(store, cfg.Valkey.Index, cfg.Valkey.ContentField)
	} else {
		backend = supabase.NewClient(supabase.Config{
			URL:            cfg.Supabase.URL,
			ServiceRoleKey: cfg.Supabase.ServiceRoleKey,
			Function:       cfg.Supabase.Function,
			Logger:         logger,
		})
	}

	var providerClient *http.Client
	if cfg.Provider.TimeoutSec > 0 {
		providerClient = &http.Client{Timeout: time.Duration(cfg.Provider.TimeoutSec) * time.Second}
	}

	embedder := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.Provider.APIKey,
		APIHost:    cfg.Provider.APIHost,
		Model:      cfg.Embedding.Model,
		HTTPClient: providerClient,
		Logger:     logger,
	})

	// Pass nil interface (not typed nil pointer) when moderation is off.
	var moderator chatuc.Moderator
	if *cfg.Moderation.Enabled {
		moderator = openaiTransport.NewModerator(&openaiTransport.Config{
			APIKey:     cfg.Provider.APIKey,
			APIHost:    cfg.Provider.APIHost,
			HTTPClient: providerClient,
			Logger:     logger,
		})
	}

	dispatcher := openaiTransport.NewDispatcher(openaiTransport.DispatcherConfig{
		APIHost:        cfg.Provider.APIHost,
		Kind:           domain.ProviderKind(cfg.Provider.Kind),
		APIKey:         cfg.Provider.APIKey,
		DeploymentID:   cfg.Provider.DeploymentID,
		APIVersion:     cfg.Provider.APIVersion,
		OrganizationID: cfg.Provider.OrganizationID,
		MaxTokens:      cfg.Completion.MaxTokens,
		HTTPClient:     providerClient,
		Logger:         logger,
	})

	policy := chatuc.ModerationPermissive
	if cfg.Moderation.FailureMode == config.ModerationStrict {
		policy = chatuc.ModerationStrict
	}

	chatSvc := chatuc.New(
		moderator, embedder, backend,
		chatuc.NewAssembler(counter, cfg.Retrieval.TokenBudget),
		dispatcher,
		chatuc.Options{
			Moderation:  policy,
			Retrieval:   cfg.RetrievalParams(),
			Model:       cfg.ModelSelector(),
			Temperature: *cfg.Completion.Temperature,
		},
		logger,
	)

	logger.Info("Pipeline ready",
		zap.String("provider_kind", cfg.Provider.Kind),
		zap.String("model", cfg.Model.ID),
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.String("backend", cfg.Retrieval.Backend),
		zap.Bool("moderation", *cfg.Moderation.Enabled),
		zap.String("tokenizer", counter.Encoding()),
	)

	return &pipeline{
		chat:   chatSvc,
		health: healthuc.New(backend, embedder, dispatcher),
		close:  closeStore,
	}, nil
}

func openValkey(ctx context.Context, cfg config.Config, logger *zap.Logger) (*dbValkey.Store, error) {
	store, err := dbValkey.NewStore(dbValkey.Config{
		Addrs:    cfg.Valkey.Addrs,
		Password: cfg.Valkey.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create valkey store: %w", err)
	}

	// Wait for database to be ready
	timeout := time.Duration(cfg.Valkey.ReadinessTimeout) * time.Second
	if err := store.WaitForReady(ctx, timeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("valkey not ready: %w", err)
	}
	logger.Info("Connected to valkey",
		zap.Strings("addrs", cfg.Valkey.Addrs),
		zap.String("index", cfg.Valkey.Index),
	)
	return store, nil
}
