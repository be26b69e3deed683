package llm

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"notecast/internal/services"
	"notecast/internal/services/retry"
)

const (
	defaultOpenRouterURL = "https://openrouter.ai/api/v1/chat/completions"
	defaultHTTPTimeout   = 120 * time.Second
	openRouterName       = "openrouter"
)

// Config holds the OpenRouter connection settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// Referer and Title are sent as OpenRouter attribution headers.
	Referer        string
	Title          string
	TimeoutSeconds int
}

// Client talks to an OpenAI-compatible chat completions endpoint, OpenRouter
// by default.
type Client struct {
	cfg    Config
	http   *http.Client
	policy retry.Policy
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithRetryPolicy overrides the retry policy.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(c *Client) { c.policy = policy }
}

// NewClient builds a client; an empty BaseURL selects OpenRouter.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.Referer = strings.TrimSpace(cfg.Referer)
	cfg.Title = strings.TrimSpace(cfg.Title)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenRouterURL
	}
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	c := &Client{cfg: cfg, http: &http.Client{Timeout: timeout}, policy: retry.DefaultPolicy()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return openRouterName }

// emptyReplyError marks a 200 response without usable text. Providers
// occasionally do this under load, so it is retried.
type emptyReplyError struct {
	finishReason string
	refusal      string
	snippet      string
}

func (e *emptyReplyError) Error() string {
	return fmt.Sprintf("openrouter generate: empty content (finish_reason=%q, refusal=%q, response_snippet=%s)",
		e.finishReason, e.refusal, e.snippet)
}

func (e *emptyReplyError) Retryable() bool { return true }

// Generate returns the model's reply to req. JSON requests ask for a
// json_object response format.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	const op = "openrouter generate"
	if err := req.validate(op); err != nil {
		return "", err
	}
	if c.cfg.APIKey == "" {
		return "", services.Wrap(services.ErrConfiguration, "llm", openRouterName, "api key required (llm.api_key or OPENROUTER_API_KEY)", nil)
	}
	body := chatCompletionRequest{
		Model:       cmp.Or(strings.TrimSpace(req.Model), c.cfg.Model),
		Messages:    buildMessages(req),
		Temperature: req.Temperature,
	}
	if req.JSON {
		body.ResponseFormat = map[string]string{"type": "json_object"}
	}

	var reply string
	err := c.policy.Do(ctx, op, func(int) error {
		resp, raw, err := c.post(ctx, body)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("%s: empty choices", op)
		}
		text, finish, refusal := resp.reply()
		if text == "" {
			return &emptyReplyError{finishReason: finish, refusal: refusal, snippet: payloadSnippet(string(raw))}
		}
		reply = text
		return nil
	})
	return reply, err
}

// HealthCheck verifies the key and model with a tiny JSON round trip.
func (c *Client) HealthCheck(ctx context.Context) error {
	reply, err := c.Generate(ctx, Request{
		System: "You must respond with JSON only.",
		User:   `Respond with {"ok":true}`,
		JSON:   true,
	})
	if err != nil {
		return err
	}
	var probe struct {
		OK bool `json:"ok"`
	}
	if err := DecodeLLMJSON(reply, &probe); err != nil {
		return fmt.Errorf("openrouter health: parse payload: %w", err)
	}
	if !probe.OK {
		return errors.New("openrouter health: unexpected response")
	}
	return nil
}

func (c *Client) post(ctx context.Context, payload chatCompletionRequest) (chatCompletionResponse, []byte, error) {
	const op = "openrouter request"
	var out chatCompletionResponse
	encoded, err := json.Marshal(payload)
	if err != nil {
		return out, nil, fmt.Errorf("%s: encode body: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return out, nil, fmt.Errorf("%s: new request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return out, nil, fmt.Errorf("%s: http error (timeout=%s): %w", op, c.http.Timeout, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return out, nil, fmt.Errorf("%s: read body: %w", op, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return out, raw, retry.NewStatusError(op, resp, raw)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, raw, fmt.Errorf("%s: decode response: %w", op, err)
	}
	if out.Error != nil {
		return out, raw, fmt.Errorf("%s: api error: %s", op, strings.TrimSpace(out.Error.Message))
	}
	return out, raw, nil
}

func buildMessages(req Request) []chatMessage {
	msgs := make([]chatMessage, 0, 2)
	if system := strings.TrimSpace(req.System); system != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: system})
	}
	return append(msgs, chatMessage{Role: "user", Content: strings.TrimSpace(req.User)})
}

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type chatChoice struct {
	Message replyMessage `json:"message"`
	// Some providers answer with the streaming "delta" shape or the legacy
	// completion "text" field even for non-streamed requests.
	Delta        replyMessage `json:"delta"`
	Text         string       `json:"text"`
	FinishReason string       `json:"finish_reason"`
}

type replyMessage struct {
	Content   string `json:"content"`
	Refusal   string `json:"refusal"`
	ToolCalls []struct {
		Function functionCall `json:"function"`
	} `json:"tool_calls"`
	FunctionCall *functionCall `json:"function_call"`
}

type functionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// arguments returns the first non-empty function or tool call payload.
func (m replyMessage) arguments() string {
	if m.FunctionCall != nil {
		if args := strings.TrimSpace(m.FunctionCall.Arguments); args != "" {
			return args
		}
	}
	for _, call := range m.ToolCalls {
		if args := strings.TrimSpace(call.Function.Arguments); args != "" {
			return args
		}
	}
	return ""
}

// reply picks the first usable text across choices, falling back to tool
// call arguments. It also reports the first finish reason and refusal seen.
func (r chatCompletionResponse) reply() (text, finishReason, refusal string) {
	for _, choice := range r.Choices {
		finishReason = cmp.Or(finishReason, strings.TrimSpace(choice.FinishReason))
		refusal = cmp.Or(refusal, strings.TrimSpace(choice.Message.Refusal), strings.TrimSpace(choice.Delta.Refusal))
		text = cmp.Or(
			strings.TrimSpace(choice.Message.Content),
			strings.TrimSpace(choice.Delta.Content),
			strings.TrimSpace(choice.Text),
			choice.Message.arguments(),
			choice.Delta.arguments(),
		)
		if text != "" {
			return text, finishReason, refusal
		}
	}
	return "", finishReason, refusal
}
