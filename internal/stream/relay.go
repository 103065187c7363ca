package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/schemachat/internal/domain"
	"github.com/kailas-cloud/schemachat/internal/metrics"
	"github.com/kailas-cloud/schemachat/internal/sse"
)

var errNoChoices = errors.New("completion event has no choices")

const (
	defaultReadSize = 4096
	doneSentinel    = "[DONE]"
)

// Relay starts a producer that turns the provider's SSE body into text deltas.
//
// The returned stream ends with io.EOF when a choice reports a finish reason
// (or the [DONE] sentinel arrives), and with an error when a payload cannot be
// decoded, the upstream read fails, or the body ends before a finish reason.
// The upstream body is always closed by the producer.
func Relay(ctx context.Context, body io.ReadCloser, logger *zap.Logger) *Stream {
	if logger == nil {
		logger = zap.NewNop()
	}
	out, ctrl := New()
	r := &relayer{
		ctx:    ctx,
		body:   body,
		ctrl:   ctrl,
		parser: sse.NewParser(),
		logger: logger,
	}
	go r.watch(ctx)
	go r.run()
	return out
}

type relayer struct {
	ctx    context.Context
	body   io.ReadCloser
	ctrl   *Controller
	parser *sse.Parser
	logger *zap.Logger
	bytes  int
}

// watch unblocks a pending upstream read when the caller goes away.
func (r *relayer) watch(ctx context.Context) {
	select {
	case <-ctx.Done():
		_ = r.body.Close()
	case <-r.ctrl.Canceled():
		_ = r.body.Close()
	case <-r.ctrl.Done():
	}
}

func (r *relayer) run() {
	defer func() { _ = r.body.Close() }()

	buf := make([]byte, defaultReadSize)
	for {
		n, err := r.body.Read(buf)
		if n > 0 {
			if done := r.feed(buf[:n]); done {
				return
			}
		}
		if err == nil {
			continue
		}

		select {
		case <-r.ctrl.Canceled():
			r.finish("canceled", ErrConsumerClosed)
			return
		default:
		}
		if ctxErr := r.ctx.Err(); ctxErr != nil {
			r.finish("canceled", ctxErr)
			return
		}
		if errors.Is(err, io.EOF) {
			r.finish("truncated", domain.ErrStreamTruncated)
			return
		}
		r.finish("errored", err)
		return
	}
}

// feed parses one upstream chunk; it reports true once the stream reached a terminal state.
func (r *relayer) feed(chunk []byte) bool {
	for _, ev := range r.parser.Feed(chunk) {
		if ev.Kind != sse.KindEvent {
			continue
		}
		if done := r.handle(ev); done {
			return true
		}
	}
	return false
}

func (r *relayer) handle(ev sse.Event) bool {
	if strings.TrimSpace(ev.Data) == doneSentinel {
		r.finish("closed", nil)
		return true
	}

	var payload openai.ChatCompletionStreamResponse
	if err := json.Unmarshal([]byte(ev.Data), &payload); err != nil {
		r.finish("errored", &domain.StreamParseError{Payload: ev.Data, Err: err})
		return true
	}
	if len(payload.Choices) == 0 {
		r.finish("errored", &domain.StreamParseError{Payload: ev.Data, Err: errNoChoices})
		return true
	}

	choice := payload.Choices[0]
	if choice.FinishReason != "" {
		r.logger.Debug("Completion stream finished", zap.String("finish_reason", string(choice.FinishReason)))
		r.finish("closed", nil)
		return true
	}

	delta := choice.Delta.Content
	if delta == "" {
		return false
	}
	if err := r.ctrl.Emit([]byte(delta)); err != nil {
		r.finish("canceled", err)
		return true
	}
	r.bytes += len(delta)
	metrics.RelayBytesTotal.Add(float64(len(delta)))
	return false
}

func (r *relayer) finish(outcome string, err error) {
	metrics.RelayStreamsTotal.WithLabelValues(outcome).Inc()
	switch outcome {
	case "closed":
		r.logger.Debug("Relay closed", zap.Int("bytes", r.bytes))
		r.ctrl.Close()
	case "canceled":
		r.logger.Debug("Relay stopped by consumer", zap.Int("bytes", r.bytes))
		r.ctrl.Fail(err)
	default:
		r.logger.Error("Relay failed",
			zap.String("outcome", outcome),
			zap.Int("bytes", r.bytes),
			zap.Error(err),
		)
		r.ctrl.Fail(err)
	}
}
