package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// RequestIDHeader carries the per-request correlation id.
	RequestIDHeader = "X-Request-ID"

	tracerName  = "mercator-hq/warden/remote"
	maxBodySize = 10 << 20
)

// Config configures a Client.
type Config struct {
	// Endpoint is the base URL of the authority's web services.
	Endpoint string

	// Timeout bounds each HTTP attempt. Default: 10s
	Timeout time.Duration

	// MaxIdleConns is the connection pool size. Default: 10
	MaxIdleConns int

	// IdleConnTimeout closes pooled connections idle for this long. Default: 90s
	IdleConnTimeout time.Duration

	// MaxRetries is the number of retries after the first attempt for
	// transient failures. Default: 3. Negative disables retries.
	MaxRetries int

	// InitialBackoff is the first retry delay. Default: 200ms
	InitialBackoff time.Duration

	// MaxBackoff caps the retry delay. Default: 5s
	MaxBackoff time.Duration

	// Logger receives debug output. Default: slog.Default()
	Logger *slog.Logger

	// TracerProvider creates client spans. Default: the global provider.
	TracerProvider trace.TracerProvider
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 10
	}
	if c.IdleConnTimeout <= 0 {
		c.IdleConnTimeout = 90 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 200 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.TracerProvider == nil {
		c.TracerProvider = otel.GetTracerProvider()
	}
}

// Client talks to the Warden authority. It is safe for concurrent use.
type Client struct {
	cfg     Config
	baseURL *url.URL
	http    *http.Client
	tracer  trace.Tracer
	logger  *slog.Logger
}

// New creates a Client with its own cookie jar and connection pool.
func New(cfg Config) (*Client, error) {
	cfg.applyDefaults()

	base, err := url.Parse(strings.TrimRight(cfg.Endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", cfg.Endpoint, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid endpoint %q: scheme must be http or https", cfg.Endpoint)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConns,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	return &Client{
		cfg:     cfg,
		baseURL: base,
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
			Jar:       jar,
		},
		tracer: cfg.TracerProvider.Tracer(tracerName),
		logger: cfg.Logger.With("component", "warden_remote"),
	}, nil
}

// Endpoint returns the base URL the client talks to.
func (c *Client) Endpoint() string {
	return c.baseURL.String()
}

// Close releases pooled connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// do sends one logical request, retrying transient failures, and returns
// the response body of the successful attempt. path must already be
// escaped.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in any) ([]byte, error) {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
	}

	target := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}
	requestID := uuid.NewString()

	ctx, span := c.tracer.Start(ctx, "warden "+method+" "+routeOf(path),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.full", target.String()),
			attribute.String("warden.request_id", requestID),
		),
	)
	defer span.End()

	attempt := 0
	operation := func() ([]byte, error) {
		attempt++
		body, err := c.attempt(ctx, method, target.String(), requestID, payload)
		if err == nil {
			return body, nil
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) {
			apiErr.Path = path
			if !apiErr.Temporary() {
				return nil, backoff.Permanent(err)
			}
		}
		if ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		if !replayable(method, path) && !unsent(err) {
			return nil, backoff.Permanent(err)
		}

		c.logger.Debug("warden request failed, retrying",
			"method", method,
			"path", path,
			"attempt", attempt,
			"request_id", requestID,
			"error", err,
		)
		return nil, err
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.cfg.InitialBackoff
	eb.MaxInterval = c.cfg.MaxBackoff

	maxTries := uint(1)
	if c.cfg.MaxRetries > 0 {
		maxTries += uint(c.cfg.MaxRetries)
	}

	body, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(maxTries),
	)
	span.SetAttributes(attribute.Int("warden.attempts", attempt))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return body, nil
}

func (c *Client) attempt(ctx context.Context, method, target, requestID string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response of %s %s: %w", method, target, err)
	}

	c.logger.Debug("warden request",
		"method", method,
		"url", target,
		"status", resp.StatusCode,
		"duration", time.Since(start),
		"request_id", requestID,
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			Method:     method,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body),
		}
	}
	return body, nil
}

// replayable reports whether the request may be sent again once the
// authority may have acted on it. Creates may not.
func replayable(method, path string) bool {
	return method != http.MethodPost || path == "/auth/login"
}

// unsent reports whether a failed attempt was refused before the authority
// acted on it: the connection was never established, or the authority
// answered 429 or 503.
func unsent(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests ||
			apiErr.StatusCode == http.StatusServiceUnavailable
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// routeOf replaces numeric path segments so span names stay low-cardinality.
func routeOf(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if p == "" {
			continue
		}
		if strings.Trim(p, "0123456789") == "" {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}
