package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultMaxEntries    = 500
	DefaultRetryAttempts = 3
	DefaultRetryInterval = time.Second
	maxRetryInterval     = 30 * time.Second
)

var tracer = otel.Tracer("github.com/jakechorley/desk-booking/pkg/cache")

// Config configures a Cache
type Config struct {
	// MaxEntries bounds the number of stored keys; least recently used keys are evicted first
	MaxEntries int
	// RetryAttempts is the number of retries after a failed fetch
	RetryAttempts int
	// RetryInterval is the first backoff interval between retries
	RetryInterval time.Duration
	// Retryable decides whether a fetch error is worth retrying. Defaults to
	// everything except context cancellation.
	Retryable func(error) bool
	Logger    *zap.Logger
	Now       func() time.Time
}

// QueryOptions controls a single read
type QueryOptions struct {
	// StaleTime is how long a stored value is served without revalidation
	StaleTime time.Duration
	// RequireFresh makes a stale read block on a refetch instead of returning the stale value
	RequireFresh bool
	// DisableRetry issues exactly one attempt
	DisableRetry bool
}

// FetchFunc loads the value for a key from the remote service
type FetchFunc[T any] = func(ctx context.Context) (T, error)

type entry struct {
	key         Key
	value       any
	hasValue    bool
	err         error
	updatedAt   time.Time
	staleTime   time.Duration
	invalidated bool
}

// keyMeta outlives entry eviction while a fetch or transaction still refers to
// the key, so late responses can be recognised as superseded. Generations are
// drawn from one cache-wide sequence and are never reused, even after a key's
// meta has been pruned.
type keyMeta struct {
	gen           uint64
	invalidations uint64
	inflight      int
	txns          int
}

// token identifies the cache generation a fetch was issued against
type token struct {
	epoch uint64
	gen   uint64
}

// Cache is a keyed, time-aware store shared by all query services. It is safe
// for concurrent use. Stored values are treated as immutable: writers replace
// values, they never modify them in place.
type Cache struct {
	mu      sync.Mutex
	entries *lru.Cache[string, *entry]
	meta    map[string]*keyMeta
	epoch   uint64
	seq     uint64

	flights singleflight.Group
	wg      sync.WaitGroup

	retryAttempts int
	retryInterval time.Duration
	retryable     func(error) bool
	logger        *zap.Logger
	now           func() time.Time
}

// New creates a Cache
func New(cfg Config) (*Cache, error) {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.RetryAttempts < 0 {
		cfg.RetryAttempts = 0
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if cfg.Retryable == nil {
		cfg.Retryable = defaultRetryable
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	c := &Cache{
		meta:          make(map[string]*keyMeta),
		retryAttempts: cfg.RetryAttempts,
		retryInterval: cfg.RetryInterval,
		retryable:     cfg.Retryable,
		logger:        cfg.Logger,
		now:           cfg.Now,
	}

	// the callback runs synchronously inside calls made with c.mu held
	entries, err := lru.NewWithEvict(cfg.MaxEntries, func(sk string, e *entry) {
		c.logger.Debug("Evicted cache entry", zap.String("key", e.key.String()))
		c.pruneLocked(sk)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create cache store: %w", err)
	}
	c.entries = entries

	return c, nil
}

func defaultRetryable(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func storeKey(key Key) string {
	return strings.Join(key, "\x1f")
}

// Query returns the value for key. A fresh value is returned without calling
// fetch. A missing or failed entry blocks on fetch. A stale value is returned
// immediately while one background revalidation runs, unless opts.RequireFresh
// is set. Concurrent readers of the same key share one fetch.
func Query[T any](ctx context.Context, c *Cache, key Key, opts QueryOptions, fetch FetchFunc[T]) (T, error) {
	var zero T
	sk := storeKey(key)

	c.mu.Lock()
	if e, ok := c.entries.Get(sk); ok && e.hasValue && e.err == nil {
		value, typed := e.value.(T)
		if typed {
			stale := c.isStaleLocked(e, opts.StaleTime)
			if !stale {
				c.mu.Unlock()
				return value, nil
			}
			if !opts.RequireFresh {
				tok := c.tokenLocked(sk)
				c.mu.Unlock()
				c.logger.Debug("Serving stale value, revalidating", zap.String("key", key.String()))
				c.revalidate(ctx, key, tok, opts, erase(fetch))
				return value, nil
			}
		}
	}
	tok := c.tokenLocked(sk)
	c.mu.Unlock()

	c.logger.Debug("Fetching", zap.String("key", key.String()))
	ch := c.start(ctx, key, tok, opts, erase(fetch))
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		value, _ := res.Val.(T)
		return value, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Peek returns the stored value for key without fetching
func Peek[T any](c *Cache, key Key) (T, bool) {
	var zero T
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries.Peek(storeKey(key))
	if !ok || !e.hasValue {
		return zero, false
	}
	value, typed := e.value.(T)
	if !typed {
		return zero, false
	}
	return value, true
}

func erase[T any](fetch FetchFunc[T]) func(context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		return fetch(ctx)
	}
}

// start joins or launches the fetch for key at generation tok
func (c *Cache) start(ctx context.Context, key Key, tok token, opts QueryOptions, fetch func(context.Context) (any, error)) <-chan singleflight.Result {
	sk := storeKey(key)
	flightKey := fmt.Sprintf("%s#%d.%d", sk, tok.epoch, tok.gen)

	return c.flights.DoChan(flightKey, func() (any, error) {
		c.setInflight(sk, 1)
		defer c.setInflight(sk, -1)

		// the fetch is shared, so one reader giving up must not cancel it for the others
		value, err := c.retry(context.WithoutCancel(ctx), key, opts, fetch)
		c.apply(key, tok, opts.StaleTime, value, err)
		return value, err
	})
}

func (c *Cache) revalidate(ctx context.Context, key Key, tok token, opts QueryOptions, fetch func(context.Context) (any, error)) {
	ch := c.start(ctx, key, tok, opts, fetch)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if res := <-ch; res.Err != nil {
			c.logger.Debug("Background revalidation failed",
				zap.String("key", key.String()),
				zap.Error(res.Err))
		}
	}()
}

// Wait blocks until background revalidations have finished
func (c *Cache) Wait() {
	c.wg.Wait()
}

func (c *Cache) retry(ctx context.Context, key Key, opts QueryOptions, fetch func(context.Context) (any, error)) (any, error) {
	attempts := c.retryAttempts + 1
	if opts.DisableRetry {
		attempts = 1
	}

	ctx, span := tracer.Start(ctx, "cache.fetch", trace.WithAttributes(
		attribute.String("cache.key", key.String()),
		attribute.Int("cache.max_attempts", attempts)))
	defer span.End()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInterval
	b.MaxInterval = maxRetryInterval

	operation := func() (any, error) {
		value, err := fetch(ctx)
		if err != nil && !c.retryable(err) {
			return nil, backoff.Permanent(err)
		}
		return value, err
	}

	value, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Debug("Retrying fetch",
				zap.String("key", key.String()),
				zap.Duration("next", next),
				zap.Error(err))
		}))

	// the last attempt can end on a still-wrapped permanent error
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return value, err
}

// apply stores a fetch outcome if no write has superseded it since it was issued
func (c *Cache) apply(key Key, tok token, staleTime time.Duration, value any, err error) {
	sk := storeKey(key)
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.currentTokenLocked(sk) != tok {
		c.logger.Debug("Discarding superseded response", zap.String("key", key.String()))
		return
	}

	if err != nil {
		next := &entry{key: key, err: err, staleTime: staleTime}
		if prev, ok := c.entries.Peek(sk); ok {
			next.value = prev.value
			next.hasValue = prev.hasValue
			next.updatedAt = prev.updatedAt
			next.invalidated = prev.invalidated
		}
		c.entries.Add(sk, next)
		return
	}

	c.entries.Add(sk, &entry{
		key:       key,
		value:     value,
		hasValue:  true,
		updatedAt: c.now(),
		staleTime: staleTime,
	})
}

// Set stores value for key as fresh data and supersedes any in-flight fetch
func (c *Cache) Set(key Key, value any) {
	sk := storeKey(key)
	c.mu.Lock()
	defer c.mu.Unlock()

	var staleTime time.Duration
	if prev, ok := c.entries.Peek(sk); ok {
		staleTime = prev.staleTime
	}
	c.bumpLocked(sk)
	c.entries.Add(sk, &entry{
		key:       key,
		value:     value,
		hasValue:  true,
		updatedAt: c.now(),
		staleTime: staleTime,
	})
}

// Invalidate marks every entry under the given prefixes stale and supersedes
// their in-flight fetches. Values stay readable until refetched.
func (c *Cache) Invalidate(prefixes ...Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, sk := range c.entries.Keys() {
		e, ok := c.entries.Peek(sk)
		if !ok || !matchesAny(e.key, prefixes) {
			continue
		}
		next := *e
		next.invalidated = true
		c.entries.Add(sk, &next)
	}
	c.bumpMatchingLocked(prefixes)
	c.markInvalidatedLocked(prefixes)
	c.logger.Debug("Invalidated cache keys", zap.Stringers("prefixes", prefixes))
}

// Remove deletes every entry under the given prefixes
func (c *Cache) Remove(prefixes ...Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, sk := range c.entries.Keys() {
		e, ok := c.entries.Peek(sk)
		if ok && matchesAny(e.key, prefixes) {
			c.entries.Remove(sk)
		}
	}
	c.bumpMatchingLocked(prefixes)
	c.markInvalidatedLocked(prefixes)
	c.logger.Debug("Removed cache keys", zap.Stringers("prefixes", prefixes))
}

// Clear drops everything. Fetches and transactions started before Clear can
// no longer write to the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries.Purge()
	c.epoch++
	for sk := range c.meta {
		c.pruneLocked(sk)
	}
	c.logger.Debug("Cleared cache")
}

// Len returns the number of stored entries
func (c *Cache) Len() int {
	return c.entries.Len()
}

// State reports where key is in its lifecycle
func (c *Cache) State(key Key) State {
	sk := storeKey(key)
	c.mu.Lock()
	defer c.mu.Unlock()

	fetching := false
	if m, ok := c.meta[sk]; ok {
		fetching = m.inflight > 0
	}

	e, ok := c.entries.Peek(sk)
	switch {
	case !ok || (!e.hasValue && e.err == nil):
		if fetching {
			return StateLoading
		}
		return StateAbsent
	case e.err != nil && !fetching:
		return StateError
	case e.err != nil && !e.hasValue:
		return StateLoading
	case fetching:
		return StateRefetching
	case c.isStaleLocked(e, e.staleTime):
		return StateStale
	default:
		return StateFresh
	}
}

func (c *Cache) isStaleLocked(e *entry, staleTime time.Duration) bool {
	if e.invalidated {
		return true
	}
	return c.now().Sub(e.updatedAt) >= staleTime
}

func (c *Cache) metaLocked(sk string) *keyMeta {
	m, ok := c.meta[sk]
	if !ok {
		m = &keyMeta{gen: c.nextGenLocked()}
		c.meta[sk] = m
	}
	return m
}

func (c *Cache) nextGenLocked() uint64 {
	c.seq++
	return c.seq
}

// pruneLocked forgets a key that has no entry, no fetch and no open transaction
func (c *Cache) pruneLocked(sk string) {
	m, ok := c.meta[sk]
	if !ok || m.inflight > 0 || m.txns > 0 || c.entries.Contains(sk) {
		return
	}
	delete(c.meta, sk)
}


func (c *Cache) tokenLocked(sk string) token {
	return token{epoch: c.epoch, gen: c.metaLocked(sk).gen}
}

func (c *Cache) currentTokenLocked(sk string) token {
	var gen uint64
	if m, ok := c.meta[sk]; ok {
		gen = m.gen
	}
	return token{epoch: c.epoch, gen: gen}
}

func (c *Cache) bumpLocked(sk string) {
	c.metaLocked(sk).gen = c.nextGenLocked()
}

// bumpMatchingLocked supersedes every known key under prefixes, including keys
// whose entries were evicted or are still loading
func (c *Cache) bumpMatchingLocked(prefixes []Key) {
	for sk, m := range c.meta {
		if matchesAny(Key(strings.Split(sk, "\x1f")), prefixes) {
			m.gen = c.nextGenLocked()
		}
	}
}

// markInvalidatedLocked records that open transactions under prefixes must
// not restore their snapshots as fresh
func (c *Cache) markInvalidatedLocked(prefixes []Key) {
	for sk, m := range c.meta {
		if matchesAny(Key(strings.Split(sk, "\x1f")), prefixes) {
			m.invalidations++
		}
	}
}

func (c *Cache) setInflight(sk string, delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metaLocked(sk).inflight += delta
	if delta < 0 {
		c.pruneLocked(sk)
	}
}

func matchesAny(key Key, prefixes []Key) bool {
	for _, p := range prefixes {
		if key.HasPrefix(p) {
			return true
		}
	}
	return false
}
