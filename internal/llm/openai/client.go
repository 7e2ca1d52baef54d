package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"studyai-backend/internal/llm"
	"studyai-backend/internal/shared/metrics"
	"studyai-backend/internal/shared/telemetry"
)

const (
	defaultBaseURL = "https://ai.gateway.lovable.dev/v1"
	maxLoggedBody  = 2048
)

// Config configures an OpenAI-compatible chat-completions endpoint.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	// Timeout bounds non-streamed calls; zero means no limit.
	Timeout time.Duration
}

// Client implements llm.Gateway.
type Client struct {
	endpoint   string
	apiKey     string
	model      string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient constructs a new client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("LLM_API_KEY is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	return &Client{
		endpoint:   base + "/chat/completions",
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		timeout:    cfg.Timeout,
		httpClient: &http.Client{},
	}, nil
}

type chatRequest struct {
	Model      string        `json:"model"`
	Messages   []llm.Message `json:"messages"`
	Tools      []chatTool    `json:"tools,omitempty"`
	ToolChoice *toolChoice   `json:"tool_choice,omitempty"`
	Stream     bool          `json:"stream,omitempty"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function functionSpec `json:"function"`
}

type functionSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type toolChoice struct {
	Type     string `json:"type"`
	Function struct {
		Name string `json:"name"`
	} `json:"function"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
}

// Invoke sends a non-streamed request. With a tool set, the model is forced to
// call it and the call's arguments are returned.
func (c *Client) Invoke(ctx context.Context, req llm.Request) (llm.Result, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.do(ctx, c.buildRequest(req, false))
	if err != nil {
		return llm.Result{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	metrics.ObserveGenerationDurationMs(float64(time.Since(start).Milliseconds()))
	if err != nil {
		return llm.Result{}, fmt.Errorf("%w: read response: %w", llm.ErrGateway, err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return llm.Result{}, fmt.Errorf("%w: response parse: %w", llm.ErrGateway, err)
	}
	if len(parsed.Choices) == 0 {
		return llm.Result{}, fmt.Errorf("%w: response missing choices", llm.ErrGateway)
	}
	logUsage(c.model, req.Tool, parsed)

	msg := parsed.Choices[0].Message
	if len(msg.ToolCalls) > 0 {
		args := strings.TrimSpace(msg.ToolCalls[0].Function.Arguments)
		if !json.Valid([]byte(args)) {
			return llm.Result{}, fmt.Errorf("%w: tool arguments are not valid JSON", llm.ErrGateway)
		}
		return llm.Result{Arguments: json.RawMessage(args)}, nil
	}
	return llm.Result{Text: msg.Content}, nil
}

// Stream sends a streamed request and hands back the upstream body unread.
func (c *Client) Stream(ctx context.Context, req llm.Request) (io.ReadCloser, error) {
	resp, err := c.do(ctx, c.buildRequest(req, true))
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) buildRequest(req llm.Request, stream bool) chatRequest {
	messages := make([]llm.Message, 0, len(req.Messages)+1)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, llm.Message{Role: "system", Content: req.System})
	}
	messages = append(messages, req.Messages...)

	out := chatRequest{Model: c.model, Messages: messages, Stream: stream}
	if req.Tool != nil {
		out.Tools = []chatTool{{
			Type: "function",
			Function: functionSpec{
				Name:        req.Tool.Name,
				Description: req.Tool.Description,
				Parameters:  req.Tool.Parameters,
			},
		}}
		choice := &toolChoice{Type: "function"}
		choice.Function.Name = req.Tool.Name
		out.ToolChoice = choice
	}
	return out
}

// do posts the payload and returns the response only for 2xx statuses.
func (c *Client) do(ctx context.Context, payload chatRequest) (*http.Response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: request timeout: %w", llm.ErrGateway, err)
		}
		return nil, fmt.Errorf("%w: %w", llm.ErrGateway, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBody))
	metrics.IncGatewayError(resp.StatusCode)
	telemetry.Error("llm.gateway_error", map[string]any{
		"status": resp.StatusCode,
		"model":  c.model,
		"stream": payload.Stream,
		"body":   string(body),
	})
	return nil, llm.StatusError(resp.StatusCode)
}

func logUsage(model string, tool *llm.Tool, resp chatResponse) {
	fields := map[string]any{"model": model}
	if resp.Model != "" {
		fields["upstream_model"] = resp.Model
	}
	if tool != nil {
		fields["function"] = tool.Name
	}
	if resp.Usage != nil {
		fields["prompt_tokens"] = resp.Usage.PromptTokens
		fields["completion_tokens"] = resp.Usage.CompletionTokens
		fields["total_tokens"] = resp.Usage.TotalTokens
	}
	telemetry.Info("llm.response", fields)
}

var _ llm.Gateway = (*Client)(nil)
