package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const userAgent = "qstorm-cli"

// Client talks to the Q-Storm platform backend over HTTP.
type Client struct {
	httpClient       *http.Client
	baseURL          string
	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	limiter          *rate.Limiter
	logger           *slog.Logger

	mu    sync.RWMutex
	token string
}

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL     string
	HTTPTimeout time.Duration
	RetryMax    int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// RateLimitRPS caps outgoing requests per second (0 = unlimited).
	RateLimitRPS float64
	Token        string
	Logger       *slog.Logger
	HTTPClient   *http.Client
}

// NewClient builds a Client with timeouts and retry/backoff behavior.
func NewClient(opts Options) *Client {
	if opts.HTTPTimeout <= 0 {
		opts.HTTPTimeout = 30 * time.Second
	}
	if opts.RetryMax <= 0 {
		opts.RetryMax = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 300 * time.Millisecond
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 3 * time.Second
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "http://127.0.0.1:8000"
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.HTTPTimeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		httpClient:       hc,
		baseURL:          strings.TrimRight(opts.BaseURL, "/"),
		retryMaxAttempts: opts.RetryMax,
		retryBaseDelay:   opts.BaseDelay,
		retryMaxDelay:    opts.MaxDelay,
		logger:           logger.With("component", "api"),
		token:            opts.Token,
	}
	if opts.RateLimitRPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1)
	}
	return c
}

// BaseURL returns the backend root the client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// SetToken installs (or clears, with "") the bearer token sent on every request.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// bodyFunc produces a fresh request body and its content type for each attempt.
type bodyFunc func() (io.Reader, string, error)

func jsonBody(v any) (bodyFunc, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return func() (io.Reader, string, error) {
		return bytes.NewReader(payload), "application/json", nil
	}, nil
}

func formBody(values url.Values) bodyFunc {
	encoded := values.Encode()
	return func() (io.Reader, string, error) {
		return strings.NewReader(encoded), "application/x-www-form-urlencoded", nil
	}
}

// do sends one logical request, retrying 429/5xx and transient network errors
// with capped exponential backoff, and decodes a 2xx JSON body into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body bodyFunc, out any) error {
	return c.send(ctx, method, path, query, body, out, c.retryMaxAttempts)
}

// doOnce is do without retries, for requests the server commits before it
// answers (uploads, registrations).
func (c *Client) doOnce(ctx context.Context, method, path string, query url.Values, body bodyFunc, out any) error {
	return c.send(ctx, method, path, query, body, out, 1)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body bodyFunc, out any, maxAttempts int) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	backoff := c.retryBaseDelay
	if backoff <= 0 {
		backoff = 300 * time.Millisecond
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limiter: %w", err)
			}
		}
		var reader io.Reader
		contentType := ""
		if body != nil {
			r, ct, err := body()
			if err != nil {
				return err
			}
			reader, contentType = r, ct
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		requestID := uuid.NewString()
		req.Header.Set("X-Request-Id", requestID)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", userAgent)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		if tok := c.bearer(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = &UnreachableError{Host: c.baseURL, Err: err}
			if isRetryableNetErr(err) && attempt < maxAttempts {
				c.logger.Warn("request failed, retrying", "method", method, "path", path, "attempt", attempt, "error", err)
				if err := sleepCtx(ctx, withJitter(backoff)); err != nil {
					return err
				}
				backoff *= 2
				continue
			}
			return lastErr
		}

		retry, err := c.handleResponse(resp, requestID, out)
		c.logger.Debug("request complete",
			"method", method, "path", path, "status", resp.StatusCode,
			"attempt", attempt, "duration", time.Since(start), "request_id", requestID)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry || attempt >= maxAttempts {
			break
		}
		wait := withJitter(backoff)
		var rl *RateLimitError
		if errors.As(err, &rl) && rl.RetryAfter > 0 {
			wait = rl.RetryAfter
		} else if c.retryMaxDelay > 0 && wait > c.retryMaxDelay {
			wait = c.retryMaxDelay
		}
		c.logger.Warn("retryable response", "method", method, "path", path, "status", resp.StatusCode, "attempt", attempt, "wait", wait)
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
		backoff *= 2
	}
	return lastErr
}

// handleResponse consumes resp. It reports whether a failure may be retried.
func (c *Client) handleResponse(resp *http.Response, requestID string, out any) (bool, error) {
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		apiErr := decodeAPIError(resp.StatusCode, body)
		apiErr.RequestID = extractRequestID(resp)
		if apiErr.RequestID == "" {
			apiErr.RequestID = requestID
		}
		retry := resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode <= 599)
		return retry, classifyAPIError(apiErr, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return false, nil
}

// decodeAPIError reads FastAPI-style error bodies: {"detail": "..."} or
// {"detail": [{"loc": [...], "msg": "..."}]} for validation failures.
func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		apiErr.Detail = strings.TrimSpace(string(body))
		if len(apiErr.Detail) > 200 || strings.HasPrefix(apiErr.Detail, "<") {
			apiErr.Detail = ""
		}
		return apiErr
	}
	apiErr.Raw = raw
	switch d := raw["detail"].(type) {
	case string:
		apiErr.Detail = d
	case []any:
		msgs := make([]string, 0, len(d))
		for _, item := range d {
			if m, ok := item.(map[string]any); ok {
				if msg, ok := m["msg"].(string); ok {
					msgs = append(msgs, msg)
				}
			}
		}
		apiErr.Detail = strings.Join(msgs, "; ")
	default:
		if msg, ok := raw["message"].(string); ok {
			apiErr.Detail = msg
		}
	}
	return apiErr
}

// classifyAPIError maps a generic APIError to typed errors for better UX.
func classifyAPIError(apiErr *APIError, resp *http.Response) error {
	switch sc := apiErr.StatusCode; {
	case sc == http.StatusConflict:
		return &NameConflictError{APIError: apiErr}
	case sc == http.StatusNotFound:
		return &NotFoundError{APIError: apiErr}
	case sc == http.StatusBadRequest || sc == http.StatusUnprocessableEntity:
		return &BadRequestError{APIError: apiErr}
	case sc == http.StatusUnauthorized || sc == http.StatusForbidden:
		return &AuthError{APIError: apiErr}
	case sc == http.StatusTooManyRequests:
		var ra time.Duration
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := parseRetryAfterSeconds(v); err == nil && secs > 0 {
				ra = time.Duration(secs) * time.Second
			}
		}
		return &RateLimitError{APIError: apiErr, RetryAfter: ra}
	case sc >= 500 && sc <= 599:
		return &ServerError{APIError: apiErr}
	}
	return apiErr
}

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// parseRetryAfterSeconds interprets a Retry-After header as seconds or HTTP date.
func parseRetryAfterSeconds(v string) (int, error) {
	if s, err := strconv.Atoi(v); err == nil {
		return s, nil
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return int(d.Seconds()), nil
	}
	return 0, fmt.Errorf("invalid Retry-After: %q", v)
}

// extractRequestID pulls a best-effort request ID from common headers.
func extractRequestID(resp *http.Response) string {
	if resp == nil {
		return ""
	}
	for _, k := range []string{"X-Request-Id", "X-Correlation-Id"} {
		if v := resp.Header.Get(k); v != "" {
			return v
		}
	}
	return ""
}

// withJitter returns a backoff duration with +/- 20% jitter applied.
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 300 * time.Millisecond
	}
	f := 0.8 + rand.Float64()*0.4
	out := time.Duration(float64(d) * f)
	if out <= 0 {
		return d
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Health calls GET /v1/health/.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var out HealthStatus
	if err := c.do(ctx, http.MethodGet, "/v1/health/", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
