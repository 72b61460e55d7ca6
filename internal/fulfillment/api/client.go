// Package api executes authenticated calls against the fulfillment provider.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/fulfillment/internal/config"
	"github.com/Additional-Code/fulfillment/internal/fulfillment/token"
	"github.com/Additional-Code/fulfillment/pkg/errorbank"
)

const (
	// MaxAttempts bounds a call to the original attempt plus one token refresh.
	MaxAttempts = 2
	// DefaultTimeout applies to each attempt when none is configured.
	DefaultTimeout = 10 * time.Second
	// AttemptDurationMetric records the latency of each HTTP attempt.
	AttemptDurationMetric = "fulfillment.api.attempt.duration"
)

const instrumentationName = "github.com/Additional-Code/fulfillment/fulfillment/api"

var clientTracer = otel.Tracer(instrumentationName)

// TokenSource supplies and revokes bearer tokens.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate(ctx context.Context, stale string)
}

// Request describes one provider call. Body is JSON-encoded when non-nil.
type Request struct {
	Method      string
	URL         string
	Body        any
	OrderNumber string
}

// Response is a successful, classified provider response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Handler turns a classified response into the caller's result.
type Handler func(Response) error

// Client issues provider calls with a single retry on token expiry.
type Client struct {
	http    *http.Client
	tokens  TokenSource
	timeout time.Duration
	logger  *zap.Logger
	meter   metric.Meter

	calls    metric.Int64Counter
	retries  metric.Int64Counter
	duration metric.Float64Histogram
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMeterProvider records client metrics on mp instead of the global
// provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Client) {
		if mp != nil {
			c.meter = mp.Meter(instrumentationName)
		}
	}
}

// NewClient builds a Client drawing tokens from tokens.
func NewClient(tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{},
		tokens:  tokens,
		timeout: DefaultTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.meter == nil {
		c.meter = otel.GetMeterProvider().Meter(instrumentationName)
	}

	var err error
	if c.calls, err = c.meter.Int64Counter("fulfillment.api.calls",
		metric.WithDescription("Provider HTTP exchanges by status")); err != nil {
		c.logger.Warn("api call counter unavailable", zap.Error(err))
	}
	if c.duration, err = c.meter.Float64Histogram(AttemptDurationMetric,
		metric.WithDescription("Latency of a single provider HTTP attempt"),
		metric.WithUnit("s")); err != nil {
		c.logger.Warn("api duration histogram unavailable", zap.Error(err))
	}
	if c.retries, err = c.meter.Int64Counter("fulfillment.api.token_retries",
		metric.WithDescription("Calls retried after the provider rejected the token")); err != nil {
		c.logger.Warn("api retry counter unavailable", zap.Error(err))
	}

	return c
}

// Params defines dependencies for constructing the Client through Fx.
type Params struct {
	fx.In

	Config config.Config
	Tokens *token.Cache
	Logger *zap.Logger
}

// Module provides the API client to Fx.
var Module = fx.Provide(NewFromConfig)

// NewFromConfig wires the client to the shared token cache.
func NewFromConfig(p Params) *Client {
	return NewClient(p.Tokens,
		WithTimeout(p.Config.Fulfillment.Timeout),
		WithLogger(p.Logger),
	)
}

// Call executes req and passes the classified response to handle. Errors are
// always *errorbank.AppError.
func (c *Client) Call(ctx context.Context, req Request, handle Handler) error {
	ctx, span := clientTracer.Start(ctx, "FulfillmentAPI.Call", trace.WithAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("order.number", req.OrderNumber),
	))
	defer span.End()

	payload, err := encodeBody(req.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode body")
		return errorbank.Upstream("encode fulfillment request body", "", errorbank.WithCause(err))
	}

	for attempt := 1; ; attempt++ {
		bearer, err := c.tokens.Token(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "token")
			return errorbank.From(err)
		}

		started := time.Now()
		outcome := c.execute(ctx, req, payload, bearer)
		c.countCall(ctx, req.Method, outcome.StatusCode, time.Since(started))

		if outcome.StatusCode == http.StatusUnauthorized {
			c.tokens.Invalidate(ctx, bearer)
			if attempt >= MaxAttempts {
				err := Classify(outcome.Outcome)
				span.RecordError(err)
				span.SetStatus(codes.Error, "unauthorized")
				return err
			}
			c.logger.Warn("fulfillment token rejected; retrying with a fresh token",
				zap.String("method", req.Method),
				zap.String("order_number", req.OrderNumber),
				zap.Int("attempt", attempt),
			)
			if c.retries != nil {
				c.retries.Add(ctx, 1)
			}
			continue
		}

		if err := Classify(outcome.Outcome); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(errorbank.From(err).Kind()))
			c.logger.Debug("fulfillment call failed",
				zap.String("method", req.Method),
				zap.String("order_number", req.OrderNumber),
				zap.Int("status", outcome.StatusCode),
				zap.Error(err),
			)
			return err
		}

		if handle == nil {
			return nil
		}
		if err := handle(Response{StatusCode: outcome.StatusCode, Header: outcome.header, Body: outcome.Body}); err != nil {
			var appErr *errorbank.AppError
			if errors.As(err, &appErr) {
				return appErr
			}
			return errorbank.Upstream("handle fulfillment response", string(outcome.Body), errorbank.WithCause(err))
		}
		return nil
	}
}

type exchange struct {
	Outcome
	header http.Header
}

func (c *Client) execute(ctx context.Context, req Request, payload []byte, bearer string) exchange {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return exchange{Outcome: Outcome{Err: err, OrderNumber: req.OrderNumber}}
	}
	httpReq.Header.Set("Authorization", "Bearer "+bearer)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(httpReq)
	if err != nil {
		return exchange{Outcome: Outcome{Err: err, OrderNumber: req.OrderNumber}}
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	out := exchange{
		Outcome: Outcome{StatusCode: res.StatusCode, Body: raw, OrderNumber: req.OrderNumber},
		header:  res.Header,
	}
	if err != nil && res.StatusCode != http.StatusUnauthorized {
		out.Err = fmt.Errorf("read response body: %w", err)
	}
	return out
}

func (c *Client) countCall(ctx context.Context, method string, status int, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("status", statusLabel(status)),
	)
	if c.calls != nil {
		c.calls.Add(ctx, 1, attrs)
	}
	if c.duration != nil {
		c.duration.Record(ctx, elapsed.Seconds(), attrs)
	}
}

func encodeBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	if raw, ok := body.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(body)
}

// ExpectStatus returns a Handler that requires status and, when into is
// non-nil, decodes the body into it.
func ExpectStatus(status int, into any) Handler {
	return func(res Response) error {
		if res.StatusCode != status {
			return errorbank.Upstream(
				fmt.Sprintf("fulfillment api responded %d, expected %d", res.StatusCode, status),
				string(res.Body),
				errorbank.WithDetail("status", res.StatusCode),
			)
		}
		if into == nil {
			return nil
		}
		if raw, ok := into.(*json.RawMessage); ok {
			*raw = append((*raw)[:0], res.Body...)
			return nil
		}
		if err := json.Unmarshal(res.Body, into); err != nil {
			return errorbank.Upstream("decode fulfillment response", string(res.Body), errorbank.WithCause(err))
		}
		return nil
	}
}
