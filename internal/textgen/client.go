// Package textgen is a client for a chat-completions text generation API,
// plus helpers for pulling JSON payloads out of free-form model output.
package textgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/listenupapp/shelfwise/internal/errors"
	"github.com/listenupapp/shelfwise/internal/ratelimit"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultMaxTokens = 800

	// Completions are slow and metered; keep well under provider limits.
	defaultRPS   = 1.0
	defaultBurst = 2

	defaultRetries         = 2
	defaultInitialInterval = time.Second

	systemPrompt = "You are a meticulous literary analyst. Respond with valid JSON only, matching the schema you are given. Do not add commentary."
)

// Config captures the runtime settings required to talk to the API.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// Client wraps the chat completions endpoint.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *ratelimit.KeyedRateLimiter
	logger  *slog.Logger
	host    string

	retries         uint64
	initialInterval time.Duration
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithRetry sets how many times a transient failure (408, 429, 5xx) is
// retried within one Complete call, and the first backoff interval.
func WithRetry(retries uint64, initial time.Duration) Option {
	return func(c *Client) {
		c.retries = retries
		c.initialInterval = initial
	}
}

// New constructs a client. A missing API key is allowed; every Complete call
// then fails with an auth error.
func New(cfg Config, logger *slog.Logger, opts ...Option) (*Client, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.Model = strings.TrimSpace(cfg.Model)

	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Host == "" {
		return nil, errors.Validationf("text generation base URL %q is not absolute", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	// Zero is a valid temperature; callers choose the default.
	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		return nil, errors.Validationf("temperature %g out of range 0..2", cfg.Temperature)
	}

	c := &Client{
		cfg:             cfg,
		http:            &http.Client{Timeout: cfg.Timeout},
		limiter:         ratelimit.New(defaultRPS, defaultBurst),
		logger:          logger,
		host:            u.Host,
		retries:         defaultRetries,
		initialInterval: defaultInitialInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close releases resources held by the client.
func (c *Client) Close() {
	c.limiter.Stop()
}

// Configured reports whether a credential is present.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends prompt as the user message and returns the model's reply text.
// It fails with an auth error when no credential is configured and a network
// error on transport failures or non-2xx responses.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if !c.Configured() {
		return "", errors.Auth("text generation API key is not configured")
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.Validation("prompt is required")
	}

	body, err := json.Marshal(chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("encode completion request: %w", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialInterval
	policy.MaxInterval = 10 * time.Second

	start := time.Now()
	content, err := backoff.RetryNotifyWithData(
		func() (string, error) { return c.send(ctx, body) },
		backoff.WithContext(backoff.WithMaxRetries(policy, c.retries), ctx),
		func(err error, wait time.Duration) {
			c.logger.Warn("completion failed, retrying", "wait", wait, "error", err)
		},
	)
	if err != nil {
		return "", err
	}

	c.logger.Debug("completion finished", "model", c.cfg.Model, "duration", time.Since(start), "chars", len(content))
	return content, nil
}

func (c *Client) send(ctx context.Context, body []byte) (string, error) {
	if err := c.limiter.Wait(ctx, c.host); err != nil {
		return "", backoff.Permanent(fmt.Errorf("rate limit wait: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		wrapped := errors.Wrapf(err, errors.CodeNetwork, "completion request failed (timeout=%s)", c.http.Timeout)
		if ctx.Err() != nil {
			return "", backoff.Permanent(wrapped)
		}
		return "", wrapped
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", errors.Wrap(err, errors.CodeNetwork, "read completion response")
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", backoff.Permanent(errors.Auth("text generation API rejected the credential"))
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= http.StatusInternalServerError:
		return "", errors.Networkf("completion returned status %d", resp.StatusCode)
	case resp.StatusCode >= http.StatusMultipleChoices:
		return "", backoff.Permanent(errors.Networkf("completion returned status %d: %s", resp.StatusCode, snippet(string(raw))))
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(raw, &completion); err != nil {
		return "", backoff.Permanent(errors.Wrap(err, errors.CodeParse, "decode completion response"))
	}
	if completion.Error != nil {
		return "", backoff.Permanent(errors.Networkf("completion api error: %s", strings.TrimSpace(completion.Error.Message)))
	}
	for _, choice := range completion.Choices {
		if content := strings.TrimSpace(choice.Message.Content); content != "" {
			return content, nil
		}
	}
	return "", backoff.Permanent(errors.Parsef("completion had no content: %s", snippet(string(raw))))
}

// snippet collapses whitespace and truncates s for log and error messages.
func snippet(s string) string {
	clean := strings.Join(strings.Fields(s), " ")
	if clean == "" {
		return "<empty>"
	}
	const limit = 160
	if runes := []rune(clean); len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return clean
}
