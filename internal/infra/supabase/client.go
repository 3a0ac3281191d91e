// Package supabase provides a client for Supabase (PostgREST).
// It is the hosted relational backend for the ledger tables.
package supabase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/boddenberg/stockledger-go/internal/domain"
	"github.com/boddenberg/stockledger-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

// Client wraps HTTP calls to Supabase PostgREST API.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	cb             *gobreaker.CircuitBreaker
	bulkhead       *resilience.Bulkhead
	cfg            resilience.Config
	logger         *zap.Logger
}

// NewClient creates a Supabase client. In-flight requests are capped at
// cfg.MaxConcurrency.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		cb:             cb,
		bulkhead:       resilience.NewBulkhead(cfg.MaxConcurrency),
		cfg:            cfg,
		logger:         logger,
	}
}

// statusError is a non-2xx PostgREST answer.
type statusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("supabase %s %s returned %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// classify marks answers that retrying cannot change as permanent.
func classify(err *statusError) error {
	switch {
	case err.Status == http.StatusConflict:
		return resilience.Permanent(&domain.ErrDuplicate{Key: err.Path})
	case err.Status == http.StatusRequestTimeout, err.Status == http.StatusTooManyRequests:
		return err
	case err.Status >= 400 && err.Status < 500:
		return resilience.Permanent(err)
	}
	return err
}

// read runs fn through the bulkhead, the circuit breaker and the retry loop.
func (c *Client) read(ctx context.Context, service string, fn func() error) error {
	return c.run(ctx, service, c.cfg, fn)
}

// write is read without retries. Inserts are not retried blindly because a
// lost response would store the row twice.
func (c *Client) write(ctx context.Context, service string, fn func() error) error {
	cfg := c.cfg
	cfg.MaxRetries = 0
	return c.run(ctx, service, cfg, fn)
}

func (c *Client) run(ctx context.Context, service string, cfg resilience.Config, fn func() error) error {
	err := c.bulkhead.Do(ctx, func() error {
		_, err := c.cb.Execute(func() (any, error) {
			return nil, resilience.RetryWithBackoff(ctx, cfg, fn)
		})
		return err
	})
	return mapError(service, err)
}

// mapError turns transport and breaker failures into domain errors.
// Domain errors raised inside fn pass through unchanged.
func mapError(service string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &domain.ErrCircuitOpen{Service: service}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var (
		notFound  *domain.ErrNotFound
		duplicate *domain.ErrDuplicate
	)
	switch {
	case errors.As(err, &notFound):
		return notFound
	case errors.As(err, &duplicate):
		return duplicate
	}
	return &domain.ErrExternalService{Service: service, Err: err}
}

// doRequest executes an authenticated GET-style request to Supabase PostgREST.
// A 404 or 204 answer yields a nil body.
func (c *Client) doRequest(ctx context.Context, method, path string) ([]byte, error) {
	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		c.logger.Error("supabase: failed to create request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, resilience.Permanent(err)
	}
	c.setHeaders(req, "return=representation")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("supabase: failed to read response body",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent {
		return nil, nil // no data
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, classify(&statusError{Method: method, Path: path, Status: resp.StatusCode, Body: string(body)})
	}

	c.logger.Debug("supabase: request OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)
	return body, nil
}

// Ping checks that PostgREST answers.
func (c *Client) Ping(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Supabase.Ping")
	defer span.End()

	return c.read(ctx, "supabase/ping", func() error {
		_, err := c.doRequest(ctx, http.MethodGet, "cards?select=id&limit=1")
		return err
	})
}

func (c *Client) setHeaders(req *http.Request, prefer string) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.serviceRoleKey))
	req.Header.Set("Content-Type", "application/json")
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}
}
