// Package catalog is a client for a Google-Books-shaped public catalog API.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/moraes/isbn"

	"github.com/listenupapp/shelfwise/internal/errors"
	"github.com/listenupapp/shelfwise/internal/normalize"
	"github.com/listenupapp/shelfwise/internal/ratelimit"
)

const (
	// Public quota is generous but bursts get 429s.
	defaultRPS   = 2.0
	defaultBurst = 4

	defaultTimeout    = 15 * time.Second
	defaultMaxResults = 20
	maxMaxResults     = 40

	defaultRetries         = 2
	defaultInitialInterval = 500 * time.Millisecond
)

// Config configures the client.
type Config struct {
	BaseURL    string
	APIKey     string // optional
	MaxResults int
	Timeout    time.Duration
}

// Client is a rate-limited catalog API client.
type Client struct {
	http    *http.Client
	limiter *ratelimit.KeyedRateLimiter
	logger  *slog.Logger

	baseURL    string
	host       string
	apiKey     string
	maxResults int

	retries         uint64
	initialInterval time.Duration
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRetry sets how many times a transient failure (429 or 5xx) is retried
// and the first backoff interval.
func WithRetry(retries uint64, initial time.Duration) Option {
	return func(c *Client) {
		c.retries = retries
		c.initialInterval = initial
	}
}

// New creates a catalog client.
func New(cfg Config, logger *slog.Logger, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || u.Host == "" {
		return nil, errors.Validationf("catalog base URL %q is not absolute", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	c := &Client{
		http:            &http.Client{Timeout: timeout},
		limiter:         ratelimit.New(defaultRPS, defaultBurst),
		logger:          logger,
		baseURL:         u.String(),
		host:            u.Host,
		apiKey:          cfg.APIKey,
		maxResults:      min(maxResults, maxMaxResults),
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

// Search queries the catalog. A query that is itself a valid ISBN is sent as an
// isbn: query. maxResults <= 0 uses the configured default. Zero hits yield an
// empty slice.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]RawVolume, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.Validation("search query is required")
	}
	if maxResults <= 0 {
		maxResults = c.maxResults
	}
	maxResults = min(maxResults, maxMaxResults)

	if n := normalize.ISBN(query); isbn.Validate(n) {
		query = "isbn:" + n
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("maxResults", strconv.Itoa(maxResults))

	var resp volumesResponse
	if err := c.get(ctx, "/volumes", q, &resp); err != nil {
		return nil, fmt.Errorf("catalog search %q: %w", query, err)
	}
	if resp.Items == nil {
		return []RawVolume{}, nil
	}
	return resp.Items, nil
}

// FetchByIdentifier returns one volume. Valid ISBNs are looked up through an
// isbn: search and the first hit is returned; anything else is treated as a
// catalog volume id.
func (c *Client) FetchByIdentifier(ctx context.Context, isbnOrID string) (*RawVolume, error) {
	ident := strings.TrimSpace(isbnOrID)
	if ident == "" {
		return nil, errors.Validation("catalog identifier is required")
	}

	if n := normalize.ISBN(ident); isbn.Validate(n) {
		q := url.Values{}
		q.Set("q", "isbn:"+n)
		q.Set("maxResults", "1")

		var resp volumesResponse
		if err := c.get(ctx, "/volumes", q, &resp); err != nil {
			return nil, fmt.Errorf("catalog lookup isbn %s: %w", n, err)
		}
		if len(resp.Items) == 0 {
			return nil, errors.NotFoundf("no catalog volume for isbn %s", n)
		}
		return &resp.Items[0], nil
	}

	var vol RawVolume
	if err := c.get(ctx, "/volumes/"+url.PathEscape(ident), nil, &vol); err != nil {
		return nil, fmt.Errorf("catalog lookup %s: %w", ident, err)
	}
	if vol.ID == "" {
		return nil, errors.NotFoundf("catalog volume %s not found", ident)
	}
	return &vol, nil
}

// get performs a rate-limited GET, retrying transient failures, and decodes
// the JSON body into dst.
func (c *Client) get(ctx context.Context, path string, query url.Values, dst any) error {
	if query == nil {
		query = url.Values{}
	}
	if c.apiKey != "" {
		query.Set("key", c.apiKey)
	}
	target := c.baseURL + path
	if enc := query.Encode(); enc != "" {
		target += "?" + enc
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialInterval
	policy.RandomizationFactor = 0

	body, err := backoff.RetryNotifyWithData(
		func() ([]byte, error) { return c.do(ctx, target) },
		backoff.WithContext(backoff.WithMaxRetries(policy, c.retries), ctx),
		func(err error, wait time.Duration) {
			c.logger.Warn("catalog request failed, retrying", "path", path, "wait", wait, "error", err)
		},
	)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return errors.Wrap(err, errors.CodeParse, "decode catalog response")
	}
	return nil
}

// do executes one request. Errors wrapped in backoff.Permanent are not retried.
func (c *Client) do(ctx context.Context, target string) ([]byte, error) {
	if err := c.limiter.Wait(ctx, c.host); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("rate limit wait: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Shelfwise/1.0")

	c.logger.Debug("catalog request", "url", req.URL.Redacted())

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(errors.Wrap(err, errors.CodeNetwork, "catalog request canceled"))
		}
		return nil, errors.Wrap(err, errors.CodeNetwork, "catalog request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeNetwork, "read catalog response")
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, backoff.Permanent(errors.NotFound("catalog volume not found"))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, errors.Networkf("catalog returned status %d", resp.StatusCode)
	default:
		return nil, backoff.Permanent(errors.Networkf("catalog returned status %d: %s", resp.StatusCode, snippet(body)))
	}
}

func snippet(body []byte) string {
	const n = 200
	s := strings.TrimSpace(string(body))
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
