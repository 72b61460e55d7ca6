// Package token caches the bearer token used for fulfillment API calls.
package token

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Additional-Code/fulfillment/internal/cache"
	"github.com/Additional-Code/fulfillment/internal/config"
)

var tokenMeter = otel.Meter("github.com/Additional-Code/fulfillment/fulfillment/token")

// DefaultFetchTimeout bounds a shared fetch when none is configured.
const DefaultFetchTimeout = 10 * time.Second

// Cache holds at most one token. It has no expiry of its own: a token is
// dropped only when the API rejects it and the caller invalidates it.
//
// When a shared store is configured, tokens are also written there so other
// instances can reuse them.
type Cache struct {
	fetcher  Fetcher
	store    cache.Store
	storeKey string
	storeTTL time.Duration
	timeout  time.Duration
	logger   *zap.Logger
	fetches  metric.Int64Counter

	mu    sync.RWMutex
	token string
	group singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithStore shares tokens through store under key.
func WithStore(store cache.Store, key string, ttl time.Duration) Option {
	return func(c *Cache) {
		c.store = store
		c.storeKey = key
		c.storeTTL = ttl
	}
}

// WithFetchTimeout bounds each shared fetch, including the shared store
// lookup.
func WithFetchTimeout(timeout time.Duration) Option {
	return func(c *Cache) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New builds an empty Cache backed by fetcher.
func New(fetcher Fetcher, opts ...Option) *Cache {
	c := &Cache{
		fetcher: fetcher,
		timeout: DefaultFetchTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	fetches, err := tokenMeter.Int64Counter("fulfillment.token.fetches",
		metric.WithDescription("Access token requests sent to the provider"))
	if err != nil {
		c.logger.Warn("token fetch counter unavailable", zap.Error(err))
	}
	c.fetches = fetches

	return c
}

// Params defines dependencies for constructing the Cache through Fx.
type Params struct {
	fx.In

	Config config.Config
	Store  cache.Store
	Logger *zap.Logger
}

// Module provides the token cache to Fx.
var Module = fx.Provide(NewFromConfig)

// NewFromConfig wires the cache to the configured token endpoint.
func NewFromConfig(p Params) *Cache {
	f := p.Config.Fulfillment
	fetcher := NewHTTPFetcher(&http.Client{Timeout: f.Timeout}, f.URLs.Token, f.ClientID, f.ClientSecret)

	return New(fetcher,
		WithStore(p.Store, "fulfillment:token:"+f.ClientID, f.TokenTTL),
		WithFetchTimeout(f.Timeout),
		WithLogger(p.Logger),
	)
}

// Token returns the cached token, fetching one when the cache is empty.
// Concurrent callers that miss share a single fetch. The fetch is detached
// from the caller that started it, so cancelling one caller only abandons
// that caller's wait.
func (c *Cache) Token(ctx context.Context) (string, error) {
	if token := c.cached(); token != "" {
		return token, nil
	}

	ch := c.group.DoChan("token", func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.fetch(fetchCtx)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Cache) fetch(ctx context.Context) (string, error) {
	if token := c.cached(); token != "" {
		return token, nil
	}

	if token := c.loadShared(ctx); token != "" {
		c.set(token)
		return token, nil
	}

	token, err := c.fetcher.Fetch(ctx)
	if c.fetches != nil {
		c.fetches.Add(ctx, 1)
	}
	if err != nil {
		return "", err
	}

	c.set(token)
	c.storeShared(ctx, token)
	c.logger.Debug("access token fetched")
	return token, nil
}

// Invalidate drops stale if it is still the cached token. An empty stale
// drops whatever is cached.
func (c *Cache) Invalidate(ctx context.Context, stale string) {
	c.mu.Lock()
	if stale != "" && c.token != stale {
		c.mu.Unlock()
		return
	}
	c.token = ""
	c.mu.Unlock()

	c.dropShared(ctx, stale)
}

func (c *Cache) cached() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Cache) set(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Cache) loadShared(ctx context.Context) string {
	if c.store == nil {
		return ""
	}
	raw, err := c.store.Get(ctx, c.storeKey)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn("shared token read failed", zap.Error(err))
		}
		return ""
	}
	return string(raw)
}

func (c *Cache) storeShared(ctx context.Context, token string) {
	if c.store == nil {
		return
	}
	if err := c.store.Set(ctx, c.storeKey, []byte(token), c.storeTTL); err != nil {
		c.logger.Warn("shared token write failed", zap.Error(err))
	}
}

func (c *Cache) dropShared(ctx context.Context, stale string) {
	if c.store == nil {
		return
	}
	if stale != "" && c.loadShared(ctx) != stale {
		return
	}
	if err := c.store.Delete(ctx, c.storeKey); err != nil {
		c.logger.Warn("shared token delete failed", zap.Error(err))
	}
}
