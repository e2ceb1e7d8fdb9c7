// Package chat forwards a conversation to an OpenAI-compatible chat
// completion API and degrades every failure into a displayable reply.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL      = "https://api.groq.com/openai/v1"
	DefaultModel        = "llama3-70b-8192"
	DefaultTemperature  = 0.3
	DefaultTimeout      = 30 * time.Second
	DefaultSystemPrompt = "You are a helpful and cautious medical assistant. Always provide safe and polite answers."

	// ErrorPrefix starts every reply produced from a failed completion.
	ErrorPrefix = "Error getting response: "
)

var (
	// ErrNotConfigured is returned when no API key was provided.
	ErrNotConfigured = errors.New("chat service is not configured")
	// ErrNoMessages is returned when the history has no user or assistant turns.
	ErrNoMessages = errors.New("conversation has no messages")
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer is the part of *openai.Client the Client uses.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config tunes a Client. Zero fields take the package defaults, except
// MaxRetries and RateLimit where zero means none.
type Config struct {
	Model        string
	Temperature  float32
	SystemPrompt string
	Timeout      time.Duration
	MaxRetries   int
	// RateLimit is outbound requests per second.
	RateLimit float64
}

// Budget is the longest a single Complete call may run: every attempt at its
// full timeout, rate-limiter waits included.
func (c Config) Budget() time.Duration {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return time.Duration(max(c.MaxRetries, 0)+1) * timeout
}

// Client is safe for concurrent use.
type Client struct {
	completer Completer
	cfg       Config
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// NewOpenAICompatible returns a go-openai client pointed at baseURL.
func NewOpenAICompatible(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return openai.NewClientWithConfig(cfg)
}

// New returns a Client over completer. A nil completer yields a Client whose
// every call fails with ErrNotConfigured.
func New(completer Completer, cfg Config, logger *slog.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{completer: completer, cfg: cfg, logger: logger}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return c
}

// Configured reports whether the client has a backend to talk to.
func (c *Client) Configured() bool { return c.completer != nil }

// Complete sends the system instruction followed by the user and assistant
// turns of history and returns the reply text. Each attempt is bounded by the
// configured timeout and the whole call by Config.Budget. Only unavailable
// errors are retried.
func (c *Client) Complete(ctx context.Context, history []Message) (string, error) {
	if c.completer == nil {
		return "", &ServiceError{Kind: KindUnavailable, Err: ErrNotConfigured}
	}
	req, err := c.request(history)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Budget())
	defer cancel()

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", classify(ctx, err)
			}
		}
		reply, err := c.attempt(ctx, req)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		var se *ServiceError
		if !errors.As(err, &se) || se.Kind != KindUnavailable {
			break
		}
		if attempt < c.cfg.MaxRetries {
			c.logger.Warn("chat completion failed, retrying", "attempt", attempt+1, "error", err)
		}
	}
	return "", lastErr
}

func (c *Client) attempt(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.completer.CreateChatCompletion(attemptCtx, req)
	if err != nil {
		if ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return "", &ServiceError{Kind: KindTimeout, Err: fmt.Errorf("no reply within %s: %w", c.cfg.Timeout, err)}
		}
		return "", classify(ctx, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", &ServiceError{Kind: KindEmptyReply, Err: errors.New("completion had no content")}
	}
	c.logger.Debug("chat completion",
		"model", req.Model,
		"messages", len(req.Messages),
		"total_tokens", resp.Usage.TotalTokens,
		"elapsed", time.Since(start),
	)
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) request(history []Message) (openai.ChatCompletionRequest, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: c.cfg.SystemPrompt,
	})
	for _, m := range history {
		role := strings.ToLower(strings.TrimSpace(m.Role))
		if role != openai.ChatMessageRoleUser && role != openai.ChatMessageRoleAssistant {
			continue
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	if len(msgs) == 1 {
		return openai.ChatCompletionRequest{}, ErrNoMessages
	}
	return openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    msgs,
		Temperature: c.cfg.Temperature,
	}, nil
}

// Reply is what a caller shows for one chat turn.
type Reply struct {
	Content   string    `json:"reply"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
}

// Respond is Complete for display loops: it never fails. On error the content
// is ErrorPrefix followed by the error text.
func (c *Client) Respond(ctx context.Context, history []Message) Reply {
	content, err := c.Complete(ctx, history)
	if err == nil {
		return Reply{Content: content}
	}
	kind := KindInvalidRequest
	var se *ServiceError
	if errors.As(err, &se) {
		kind = se.Kind
	}
	c.logger.Warn("chat failed", "kind", kind, "error", err)
	return Reply{Content: ErrorPrefix + err.Error(), ErrorKind: kind}
}
