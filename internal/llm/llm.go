package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Tool describes the single function the model is forced to call.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Request is one model call. System is sent as the leading system message.
type Request struct {
	System   string
	Messages []Message
	Tool     *Tool
}

// Result carries the function-call arguments, or the message text when the
// model answered without calling the tool.
type Result struct {
	Arguments json.RawMessage
	Text      string
}

// HasArguments reports whether the model returned a structured payload.
func (r Result) HasArguments() bool {
	return len(r.Arguments) > 0
}

// Gateway abstracts the chat-completions provider.
type Gateway interface {
	Invoke(ctx context.Context, req Request) (Result, error)
	// Stream returns the raw upstream event stream. The caller closes it.
	Stream(ctx context.Context, req Request) (io.ReadCloser, error)
}

var (
	ErrRateLimited    = errors.New("rate limit exceeded")
	ErrQuotaExhausted = errors.New("ai credits exhausted")
	ErrGateway        = errors.New("ai gateway error")
	ErrNotConfigured  = errors.New("ai gateway not configured")
)

// GatewayError is a non-2xx upstream response other than 429 and 402.
type GatewayError struct {
	Status int
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("ai gateway returned status %d", e.Status)
}

func (e *GatewayError) Is(target error) bool {
	return target == ErrGateway
}

// StatusError maps an upstream status code to the error taxonomy.
func StatusError(status int) error {
	switch status {
	case 429:
		return ErrRateLimited
	case 402:
		return ErrQuotaExhausted
	default:
		return &GatewayError{Status: status}
	}
}

// PlaceholderGateway is used when no API key is configured.
type PlaceholderGateway struct{}

func (PlaceholderGateway) Invoke(ctx context.Context, req Request) (Result, error) {
	return Result{}, ErrNotConfigured
}

func (PlaceholderGateway) Stream(ctx context.Context, req Request) (io.ReadCloser, error) {
	return nil, ErrNotConfigured
}
