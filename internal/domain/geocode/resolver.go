package geocode

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/2gPigeon/jig-intern-public/internal/domain/import/normalizer"
	"github.com/2gPigeon/jig-intern-public/internal/domain/import/repository"
	"github.com/2gPigeon/jig-intern-public/pkg/apperr"
	"github.com/2gPigeon/jig-intern-public/pkg/metrics"
)

const sourceCache = "cache"

// Cache is the persistent geocode cache. Entries are global per scope.
type Cache interface {
	GetCache(ctx context.Context, scope, placeKey string) (*repository.GeocodeCacheEntry, error)
	PutCache(ctx context.Context, scope string, entry repository.GeocodeCacheEntry) error
	ListCache(ctx context.Context, scope string) ([]repository.GeocodeCacheEntry, error)
}

// Resolver answers from the cache first and then asks each provider in order.
// Resolve never fails: provider and cache errors are logged and degrade to a miss.
type Resolver struct {
	cache     Cache
	scope     string
	providers []Provider
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	now       func() time.Time
}

// NewResolver creates a resolver for the given country scope.
func NewResolver(cache Cache, scope string, logger *slog.Logger, providers ...Provider) *Resolver {
	return &Resolver{
		cache:     cache,
		scope:     strings.ToLower(scope),
		providers: providers,
		logger:    logger,
		tracer:    otel.Tracer("geocode"),
		now:       time.Now,
	}
}

// WithMetrics sets the optional metrics sink.
func (r *Resolver) WithMetrics(m *metrics.Metrics) {
	r.metrics = m
}

// Scope returns the cache scope (country code).
func (r *Resolver) Scope() string {
	return r.scope
}

// Resolve returns coordinates for place, or nil when nothing matched.
func (r *Resolver) Resolve(ctx context.Context, place string) *Result {
	place = normalizer.CleanPlace(place)
	if place == "" {
		return nil
	}
	key := normalizer.PlaceKey(place)

	ctx, span := r.tracer.Start(ctx, "geocode.Resolve", trace.WithAttributes(
		attribute.String("geocode.scope", r.scope),
		attribute.String("geocode.place_key", key),
	))
	defer span.End()

	entry, err := r.cache.GetCache(ctx, r.scope, key)
	switch {
	case err == nil:
		span.SetAttributes(attribute.String("geocode.source", sourceCache))
		r.metrics.GeocodeLookup(sourceCache, "hit")
		return &Result{
			Latitude:    entry.Latitude,
			Longitude:   entry.Longitude,
			DisplayName: entry.DisplayName,
			Source:      entry.Source,
		}
	case errors.Is(err, apperr.ErrNotFound):
	default:
		r.logger.Warn("geocode cache read failed",
			slog.String("place_key", key),
			slog.Any("error", err),
		)
	}

	for _, p := range r.providers {
		start := time.Now()
		res, err := p.Geocode(ctx, place)
		r.metrics.ObserveProvider(p.Name(), time.Since(start))
		if err != nil {
			span.AddEvent("provider failed", trace.WithAttributes(attribute.String("geocode.provider", p.Name())))
			r.logger.Warn("geocode provider failed",
				slog.String("provider", p.Name()),
				slog.String("place", place),
				slog.Any("error", err),
			)
			continue
		}
		if res == nil {
			continue
		}

		if res.Source == "" {
			res.Source = p.Name()
		}
		if res.DisplayName == "" {
			res.DisplayName = place
		}
		r.store(ctx, key, *res)

		span.SetAttributes(attribute.String("geocode.source", res.Source))
		r.metrics.GeocodeLookup(res.Source, "hit")
		return res
	}

	span.SetAttributes(attribute.String("geocode.source", "none"))
	r.metrics.GeocodeLookup("none", "miss")
	return nil
}

// Correct records a manual coordinate for place, overwriting any cached entry.
func (r *Resolver) Correct(ctx context.Context, place string, lat, lon float64) error {
	place = normalizer.CleanPlace(place)
	key := normalizer.PlaceKey(place)
	if key == "" {
		return apperr.Invalid("place is empty")
	}

	return r.cache.PutCache(ctx, r.scope, repository.GeocodeCacheEntry{
		PlaceKey:    key,
		Latitude:    lat,
		Longitude:   lon,
		DisplayName: "manual: " + place,
		Source:      repository.SourceManual,
		UpdatedAt:   r.now().UTC(),
	})
}

func (r *Resolver) store(ctx context.Context, key string, res Result) {
	err := r.cache.PutCache(ctx, r.scope, repository.GeocodeCacheEntry{
		PlaceKey:    key,
		Latitude:    res.Latitude,
		Longitude:   res.Longitude,
		DisplayName: res.DisplayName,
		Source:      res.Source,
		UpdatedAt:   r.now().UTC(),
	})
	if err != nil {
		r.logger.Warn("geocode cache write failed",
			slog.String("place_key", key),
			slog.Any("error", err),
		)
	}
}
