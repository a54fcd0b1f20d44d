// Package httpclient provides the outbound HTTP client used to call
// downstream services: pooled transport, optional bounded retries and a
// circuit breaker wrapper.
package httpclient

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"
)

// Doer is the outbound request interface consumed by downstream clients.
// It is satisfied by *Client and *CircuitBreaker so callers can be wired
// with or without breaker protection, and tests can substitute fakes.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Config controls transport pooling and retry behavior.
type Config struct {
	// Timeout bounds a single attempt including body read.
	Timeout time.Duration
	// MaxRetries is the number of additional attempts after the first.
	// Zero disables retries; callers whose requests are not idempotent
	// must keep it at zero.
	MaxRetries   int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration

	MaxIdleConns    int
	MaxConnsPerHost int
}

// DefaultConfig returns conservative production defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:         10 * time.Second,
		MaxRetries:      0,
		RetryWaitMin:    100 * time.Millisecond,
		RetryWaitMax:    2 * time.Second,
		MaxIdleConns:    100,
		MaxConnsPerHost: 32,
	}
}

// Client is a thin wrapper over http.Client adding context-scoped retries
// for transport failures and 5xx responses.
type Client struct {
	http   *http.Client
	cfg    Config
	logger *slog.Logger
}

// New builds a Client from cfg. Zero-valued fields fall back to defaults.
func New(cfg Config, logger *slog.Logger) *Client {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RetryWaitMin <= 0 {
		cfg.RetryWaitMin = def.RetryWaitMin
	}
	if cfg.RetryWaitMax <= 0 {
		cfg.RetryWaitMax = def.RetryWaitMax
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = def.MaxIdleConns
	}
	if cfg.MaxConnsPerHost <= 0 {
		cfg.MaxConnsPerHost = def.MaxConnsPerHost
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		cfg:    cfg,
		logger: logger,
	}
}

// Do executes the request. With MaxRetries > 0 the request is retried on
// transport errors and 5xx responses; retrying requires a replayable body
// (req.GetBody must be set, which http.NewRequest does for common body
// types).
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff(attempt)
			c.logger.DebugContext(ctx, "retrying request",
				slog.String("method", req.Method),
				slog.String("url", req.URL.String()),
				slog.Int("attempt", attempt),
				slog.Duration("wait", wait),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		attemptReq := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("replay request body: %w", err)
			}
			attemptReq.Body = body
		}

		resp, err := c.http.Do(attemptReq)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode >= http.StatusInternalServerError && attempt < c.cfg.MaxRetries {
			lastErr = fmt.Errorf("%s %s: status %d", req.Method, req.URL, resp.StatusCode)
			resp.Body.Close()
			continue
		}
		return resp, nil
	}

	return nil, fmt.Errorf("%s %s failed after %d attempt(s): %w",
		req.Method, req.URL, c.cfg.MaxRetries+1, lastErr)
}

// backoff returns an exponential wait with jitter, capped at RetryWaitMax.
func (c *Client) backoff(attempt int) time.Duration {
	wait := c.cfg.RetryWaitMin << (attempt - 1)
	if wait > c.cfg.RetryWaitMax {
		wait = c.cfg.RetryWaitMax
	}
	jitter := time.Duration(rand.Int64N(int64(wait)/2 + 1))
	return wait + jitter
}
