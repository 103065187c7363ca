package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrContentPolicyViolation signals that moderation flagged the query.
	ErrContentPolicyViolation = errors.New("content policy violation")
	// ErrModerationUnavailable signals a moderation infrastructure failure (strict mode only).
	ErrModerationUnavailable = errors.New("moderation unavailable")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrRetrieval signals a similarity search failure.
	ErrRetrieval = errors.New("retrieval error")
	// ErrCompletionProviderError signals a non-success chat completion response.
	ErrCompletionProviderError = errors.New("completion provider error")
	// ErrStreamParse signals a malformed event payload in the completion stream.
	ErrStreamParse = errors.New("stream parse error")
	// ErrStreamTruncated signals that the upstream stream ended without a finish reason.
	ErrStreamTruncated = errors.New("completion stream ended before finish reason")
	// ErrNoQuery signals a conversation without any user message.
	ErrNoQuery = errors.New("conversation has no user message")
)

// ContentPolicyViolationError carries the text that moderation flagged.
type ContentPolicyViolationError struct {
	Input string
}

func (e *ContentPolicyViolationError) Error() string {
	return fmt.Sprintf("%s: query was flagged as inappropriate", ErrContentPolicyViolation.Error())
}

func (e *ContentPolicyViolationError) Unwrap() error { return ErrContentPolicyViolation }

// RetrievalError wraps ErrRetrieval with the vector store's reported detail.
type RetrievalError struct {
	Message string
	Code    string
	Details string
	Hint    string
	Err     error
}

func (e *RetrievalError) Error() string {
	var b strings.Builder
	b.WriteString("failed to match schema")
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Code != "" {
		b.WriteString(" (code ")
		b.WriteString(e.Code)
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *RetrievalError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrRetrieval, e.Err}
	}
	return []error{ErrRetrieval}
}

// CompletionProviderError is returned when the chat completion endpoint rejects a request.
// Message, Type, Param and Code are set when the provider returned a structured error body;
// otherwise Status and Body carry the raw response.
type CompletionProviderError struct {
	StatusCode int
	Status     string
	Message    string
	Type       string
	Param      string
	Code       string
	Body       string
}

// Structured reports whether the provider returned an error object.
func (e *CompletionProviderError) Structured() bool {
	return e.Message != "" || e.Type != "" || e.Param != "" || e.Code != ""
}

func (e *CompletionProviderError) Error() string {
	if e.Structured() {
		return fmt.Sprintf("completion provider error %d: %s (type=%s param=%s code=%s)",
			e.StatusCode, e.Message, e.Type, e.Param, e.Code)
	}
	detail := e.Body
	if detail == "" {
		detail = e.Status
	}
	return fmt.Sprintf("completion provider returned an error: %d: %s", e.StatusCode, detail)
}

func (e *CompletionProviderError) Unwrap() error { return ErrCompletionProviderError }

// StreamParseError reports an event payload the relay could not decode.
type StreamParseError struct {
	Payload string
	Err     error
}

func (e *StreamParseError) Error() string {
	return fmt.Sprintf("%s: %v", ErrStreamParse.Error(), e.Err)
}

func (e *StreamParseError) Unwrap() []error { return []error{ErrStreamParse, e.Err} }
