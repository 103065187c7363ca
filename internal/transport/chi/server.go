package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/schemachat/internal/domain"
	"github.com/kailas-cloud/schemachat/internal/logger"
	chatuc "github.com/kailas-cloud/schemachat/internal/usecase/chat"
	healthuc "github.com/kailas-cloud/schemachat/internal/usecase/health"
)

const (
	maxRequestBody = 1 << 20
	streamBufSize  = 4096
)

// Error codes returned in JSON error bodies.
const (
	CodeBadRequest             = "bad_request"
	CodeUnauthorized           = "unauthorized"
	CodeNoQuery                = "no_query"
	CodeContentPolicyViolation = "content_policy_violation"
	CodeModerationUnavailable  = "moderation_unavailable"
	CodeEmbeddingProviderError = "embedding_provider_error"
	CodeRetrievalError         = "retrieval_error"
	CodeCompletionProviderErr  = "completion_provider_error"
	CodeInternalError          = "internal_error"
)

// ChatStreamer runs the chat pipeline.
type ChatStreamer interface {
	Stream(ctx context.Context, req chatuc.Request) (io.ReadCloser, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Provider *ProviderError `json:"provider,omitempty"`
}

// ProviderError carries the completion provider's structured error.
type ProviderError struct {
	Status  int    `json:"status"`
	Message string `json:"message,omitempty"`
	Type    string `json:"type,omitempty"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty"`
}

// HealthResponse is the GET /health body.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ChatRequest is the POST /v1/chat body.
type ChatRequest struct {
	Messages    []domain.Message      `json:"messages"`
	Model       *domain.ModelSelector `json:"model,omitempty"`
	Temperature *float32              `json:"temperature,omitempty"`
	Key         string                `json:"key,omitempty"`
}

// Server is the HTTP API.
type Server struct {
	chat          ChatStreamer
	health        HealthChecker
	metrics       http.Handler
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(chat ChatStreamer, health HealthChecker, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{chat: chat, health: health, metrics: promhttp.Handler(), logger: logger}
	s.errorHandlers = []errorHandler{
		completionErrorHandler,
		sentinelHandler(domain.ErrNoQuery, http.StatusBadRequest, CodeNoQuery),
		sentinelHandler(domain.ErrContentPolicyViolation, http.StatusBadRequest, CodeContentPolicyViolation),
		sentinelHandler(domain.ErrModerationUnavailable, http.StatusBadGateway, CodeModerationUnavailable),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingProviderError),
		sentinelHandler(domain.ErrRetrieval, http.StatusBadGateway, CodeRetrievalError),
	}
	return s
}

// Mount registers the API routes on r.
func (s *Server) Mount(r chi.Router) {
	r.Post("/v1/chat", s.Chat)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// Chat handles POST /v1/chat: runs the pipeline and streams the answer as plain text.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return
	}
	if err := validateChatRequest(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	out, err := s.chat.Stream(r.Context(), chatuc.Request{
		Messages:    req.Messages,
		Model:       req.Model,
		Temperature: req.Temperature,
		APIKey:      req.Key,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	defer func() { _ = out.Close() }()

	s.relay(w, r, out)
}

// relay copies the answer to the client, flushing after every chunk. A failure after
// the status line was sent aborts the response so the client sees an incomplete body.
func (s *Server) relay(w http.ResponseWriter, r *http.Request, out io.Reader) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	_ = rc.Flush()

	buf := make([]byte, streamBufSize)
	for {
		n, err := out.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			_ = rc.Flush()
		}
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			if r.Context().Err() == nil {
				logger.FromContextOr(r.Context(), s.logger).Error("Answer stream failed", zap.Error(err))
			}
			panic(http.ErrAbortHandler)
		}
	}
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	s.metrics.ServeHTTP(w, r)
}

func validateChatRequest(req *ChatRequest) error {
	if len(req.Messages) == 0 {
		return errors.New("messages must not be empty")
	}
	for i, m := range req.Messages {
		if !m.Role.Valid() {
			return fmt.Errorf("messages[%d]: unknown role %q", i, m.Role)
		}
	}
	if req.Temperature != nil && (*req.Temperature < 0 || *req.Temperature > 2) {
		return errors.New("temperature must be within [0, 2]")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
// Only the sentinel text reaches the client.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

// completionErrorHandler forwards the provider's structured error fields.
func completionErrorHandler(w http.ResponseWriter, err error) bool {
	var perr *domain.CompletionProviderError
	if !errors.As(err, &perr) {
		if errors.Is(err, domain.ErrCompletionProviderError) {
			writeError(w, http.StatusBadGateway, CodeCompletionProviderErr, domain.ErrCompletionProviderError.Error())
			return true
		}
		return false
	}

	msg := perr.Message
	if msg == "" {
		msg = domain.ErrCompletionProviderError.Error()
	}
	writeJSON(w, http.StatusBadGateway, ErrorResponse{
		Code:    CodeCompletionProviderErr,
		Message: msg,
		Provider: &ProviderError{
			Status:  perr.StatusCode,
			Message: perr.Message,
			Type:    perr.Type,
			Param:   perr.Param,
			Code:    perr.Code,
		},
	})
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContextOr(r.Context(), s.logger)
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Warn("Chat request rejected", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
