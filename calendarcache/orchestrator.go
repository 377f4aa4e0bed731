// Package calendarcache is the read-through façade request handlers call
// for calendar data. Reads check the cache first and fall through to the
// relational store on a miss, populating the cache best-effort on the
// way out; a degraded cache therefore costs latency, never correctness.
// Writes mutate the database first and invalidate the owner's cache
// scope strictly after the commit.
//
// There is no per-key locking by default: concurrent misses on the same
// key may each query the database and each write the same result. That
// matches the deployed behavior; WithSingleFlight collapses them into
// one fetch where the changed concurrency profile is acceptable.
package calendarcache

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/calndr/calndr-go/cache"
	"github.com/calndr/calndr-go/cachekey"
	"github.com/calndr/calndr-go/invalidate"
	"github.com/calndr/calndr-go/store"
	"github.com/calndr/calndr-go/ttlpolicy"
	"github.com/calndr/calndr-go/weather"
)

// WeatherProvider is the upstream weather collaborator.
type WeatherProvider interface {
	Forecast(ctx context.Context, lat, lon float64, start, end time.Time) (*weather.Data, error)
	Historic(ctx context.Context, lat, lon float64, start, end time.Time) (*weather.Data, error)
}

// Orchestrator wires the cache store, key builder, TTL policy,
// invalidation dispatcher and relational store into the cache-aside
// flow. It holds no per-request state.
type Orchestrator struct {
	store   cache.Store
	db      *store.Store
	keys    *cachekey.Builder
	ttl     *ttlpolicy.Policy
	inv     *invalidate.Dispatcher
	weather WeatherProvider
	logger  *zap.Logger
	tracer  trace.Tracer
	flights *singleflight.Group
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSingleFlight collapses concurrent misses on the same key into one
// database fetch whose result every caller shares. This is an explicit
// behavioral addition: it changes the observable concurrency profile, so
// it is off by default.
func WithSingleFlight() Option {
	return func(o *Orchestrator) { o.flights = &singleflight.Group{} }
}

// WithTracerProvider enables a span per orchestrator operation.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Orchestrator) {
		if tp != nil {
			o.tracer = tp.Tracer("github.com/calndr/calndr-go/calendarcache")
		}
	}
}

// WithWeatherProvider wires the upstream weather collaborator.
func WithWeatherProvider(p WeatherProvider) Option {
	return func(o *Orchestrator) { o.weather = p }
}

// New creates an Orchestrator.
func New(cs cache.Store, db *store.Store, keys *cachekey.Builder, ttl *ttlpolicy.Policy,
	inv *invalidate.Dispatcher, logger *zap.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		store:  cs,
		db:     db,
		keys:   keys,
		ttl:    ttl,
		inv:    inv,
		logger: logger,
		tracer: noop.NewTracerProvider().Tracer(""),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// readThrough is the per-request state machine: lookup, then on a miss
// (or a corrupt payload, which the populate overwrites) fetch, populate
// best-effort, return. Database errors propagate and are never cached.
func readThrough[T any](ctx context.Context, o *Orchestrator, op, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	ctx, span := o.tracer.Start(ctx, op, trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	if raw, ok, _ := o.store.Get(ctx, key); ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return v, nil
		} else {
			o.logger.Warn("corrupt cache payload treated as miss",
				zap.String("key", key), zap.Error(err))
		}
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	fetch := func() (T, error) {
		v, err := load(ctx)
		if err != nil {
			var zero T
			return zero, err
		}
		if raw, err := json.Marshal(v); err == nil {
			_ = o.store.Set(ctx, key, raw, ttl)
		}
		return v, nil
	}

	if o.flights == nil {
		return fetch()
	}
	v, err, _ := o.flights.Do(key, func() (any, error) { return fetch() })
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// rangeBounds returns the boundaries in ascending order; TTL
// classification and queries both want the true end of the range.
func rangeBounds(a, b time.Time) (time.Time, time.Time) {
	if b.Before(a) {
		return b, a
	}
	return a, b
}
