package calendarcache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/calndr/calndr-go/cachekey"
	"github.com/calndr/calndr-go/store"
	"github.com/calndr/calndr-go/ttlpolicy"
	"github.com/calndr/calndr-go/weather"
)

// ErrNoWeatherProvider is returned when a weather read is requested but
// no upstream collaborator was wired in.
var ErrNoWeatherProvider = errors.New("calendarcache: no weather provider configured")

// Custody returns the full custody view for one family over an inclusive
// date range. Settled ranges (ending before today) cache far longer than
// live ones.
func (o *Orchestrator) Custody(ctx context.Context, familyID int64, start, end time.Time) ([]store.CustodyDay, error) {
	lo, hi := rangeBounds(start, end)
	key := o.keys.Custody(familyID, lo, hi)
	ttl := o.ttl.ResolveRange(ttlpolicy.Custody, hi)
	return readThrough(ctx, o, "calendarcache.Custody", key, ttl, func(ctx context.Context) ([]store.CustodyDay, error) {
		return o.db.CustodyByRange(ctx, familyID, lo, hi)
	})
}

// Handoffs returns only the custody transitions in the range.
func (o *Orchestrator) Handoffs(ctx context.Context, familyID int64, start, end time.Time) ([]store.Handoff, error) {
	lo, hi := rangeBounds(start, end)
	key := o.keys.Handoffs(familyID, lo, hi)
	ttl := o.ttl.ResolveRange(ttlpolicy.Custody, hi)
	return readThrough(ctx, o, "calendarcache.Handoffs", key, ttl, func(ctx context.Context) ([]store.Handoff, error) {
		return o.db.HandoffsByRange(ctx, familyID, lo, hi)
	})
}

// Events returns the family's events over an inclusive date range.
func (o *Orchestrator) Events(ctx context.Context, familyID int64, start, end time.Time) ([]store.Event, error) {
	lo, hi := rangeBounds(start, end)
	key := o.keys.Events(familyID, lo, hi)
	return readThrough(ctx, o, "calendarcache.Events", key, o.ttl.Resolve(ttlpolicy.Events), func(ctx context.Context) ([]store.Event, error) {
		return o.db.EventsByRange(ctx, familyID, lo, hi)
	})
}

// Profile returns one user's profile.
func (o *Orchestrator) Profile(ctx context.Context, userID uuid.UUID) (*store.Profile, error) {
	key := o.keys.UserProfile(userID)
	return readThrough(ctx, o, "calendarcache.Profile", key, o.ttl.Resolve(ttlpolicy.UserProfile), func(ctx context.Context) (*store.Profile, error) {
		return o.db.ProfileByID(ctx, userID)
	})
}

// Family returns a family with its members.
func (o *Orchestrator) Family(ctx context.Context, familyID int64) (*store.FamilyData, error) {
	key := o.keys.FamilyData(familyID)
	return readThrough(ctx, o, "calendarcache.Family", key, o.ttl.Resolve(ttlpolicy.FamilyData), func(ctx context.Context) (*store.FamilyData, error) {
		return o.db.FamilyByID(ctx, familyID)
	})
}

// WeatherForecast returns forecast data for a location and range.
func (o *Orchestrator) WeatherForecast(ctx context.Context, lat, lon float64, start, end time.Time) (*weather.Data, error) {
	if o.weather == nil {
		return nil, ErrNoWeatherProvider
	}
	lo, hi := rangeBounds(start, end)
	key := o.keys.Weather(cachekey.WeatherForecast, lat, lon, lo, hi)
	return readThrough(ctx, o, "calendarcache.WeatherForecast", key, o.ttl.Resolve(ttlpolicy.WeatherForecast), func(ctx context.Context) (*weather.Data, error) {
		return o.weather.Forecast(ctx, lat, lon, lo, hi)
	})
}

// WeatherHistoric returns archived weather for a location and range.
// Historic data never changes, hence the multi-day TTL.
func (o *Orchestrator) WeatherHistoric(ctx context.Context, lat, lon float64, start, end time.Time) (*weather.Data, error) {
	if o.weather == nil {
		return nil, ErrNoWeatherProvider
	}
	lo, hi := rangeBounds(start, end)
	key := o.keys.Weather(cachekey.WeatherHistoric, lat, lon, lo, hi)
	return readThrough(ctx, o, "calendarcache.WeatherHistoric", key, o.ttl.Resolve(ttlpolicy.WeatherHistoric), func(ctx context.Context) (*weather.Data, error) {
		return o.weather.Historic(ctx, lat, lon, lo, hi)
	})
}
