// Package cache keeps the last collected value of each data source and
// decides per request whether it is still fresh.
package cache

import (
	"time"

	"go.uber.org/zap"

	"github.com/srodi/nv-swaptop/pkg/clock"
	"github.com/srodi/nv-swaptop/pkg/types"
)

// Entry is the cached value of one source. The zero time means it was
// never collected.
type Entry[T any] struct {
	source   types.Source
	ttl      time.Duration
	value    T
	last     time.Time
	disabled bool
}

// NewEntry returns an empty entry for source governed by ttl.
func NewEntry[T any](source types.Source, ttl time.Duration) *Entry[T] {
	return &Entry[T]{source: source, ttl: ttl}
}

// Value returns the cached value without refreshing it.
func (e *Entry[T]) Value() T { return e.value }

// Source names the data source behind the entry.
func (e *Entry[T]) Source() types.Source { return e.source }

// TTL returns the freshness window.
func (e *Entry[T]) TTL() time.Duration { return e.ttl }

// SetTTL changes the freshness window. The last refresh time is kept.
func (e *Entry[T]) SetTTL(ttl time.Duration) { e.ttl = ttl }

// LastRefresh returns the time of the last collection attempt.
func (e *Entry[T]) LastRefresh() time.Time { return e.last }

// Disabled reports whether the source was found absent and is no longer
// collected.
func (e *Entry[T]) Disabled() bool { return e.disabled }

// Expire makes the next active request collect, keeping the value.
func (e *Entry[T]) Expire() { e.last = time.Time{} }

// Cache owns the clock and the per-source diagnostics shared by entries.
// It is not safe for concurrent use; one event loop drives it.
type Cache struct {
	clock  clock.Clock
	logger *zap.Logger
	diags  map[types.Source]types.Diagnostic
}

// New returns a cache reading time from clk. A nil logger disables logging.
func New(clk clock.Clock, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{clock: clk, logger: logger, diags: make(map[types.Source]types.Diagnostic)}
}

// Now returns the cache's notion of the current time.
func (c *Cache) Now() time.Time { return c.clock.Now() }

// Diagnostics returns a copy of the last failure of every failing source.
func (c *Cache) Diagnostics() map[types.Source]types.Diagnostic {
	out := make(map[types.Source]types.Diagnostic, len(c.diags))
	for src, d := range c.diags {
		out[src] = d
	}
	return out
}

// Diagnostic returns the last failure of src, if it is currently failing.
func (c *Cache) Diagnostic(src types.Source) (types.Diagnostic, bool) {
	d, ok := c.diags[src]
	return d, ok
}

// GetOrRefresh returns e's value, collecting a new one first when the TTL
// has elapsed. When active is false nothing is collected and the clock of e
// does not move, however stale it is.
//
// A failed collection never reaches the caller. It is recorded as a
// diagnostic and the previous value is returned, except that an unavailable
// source is emptied and disabled for good and a permission failure empties
// the value until a later attempt succeeds.
func GetOrRefresh[T any](c *Cache, e *Entry[T], active bool, collect func() (T, error)) T {
	if e.disabled || !active {
		return e.value
	}
	now := c.clock.Now()
	if !e.last.IsZero() && now.Sub(e.last) < e.ttl {
		return e.value
	}
	e.last = now

	value, err := collect()
	if err == nil {
		e.value = value
		c.succeed(e.source)
		return e.value
	}

	kind := types.KindOf(err)
	switch kind {
	case types.KindUnavailable:
		var zero T
		e.value = zero
		e.disabled = true
	case types.KindPermissionDenied:
		var zero T
		e.value = zero
	}
	c.fail(types.Diagnostic{Source: e.source, Kind: kind, Err: err, At: now})
	return e.value
}

func (c *Cache) fail(d types.Diagnostic) {
	prev, had := c.diags[d.Source]
	c.diags[d.Source] = d
	if had && prev.Kind == d.Kind {
		return
	}
	c.logger.Warn("source collection failed",
		zap.String("source", string(d.Source)),
		zap.String("kind", d.Kind.String()),
		zap.Error(d.Err),
	)
}

func (c *Cache) succeed(src types.Source) {
	if _, had := c.diags[src]; !had {
		return
	}
	delete(c.diags, src)
	c.logger.Info("source recovered", zap.String("source", string(src)))
}
