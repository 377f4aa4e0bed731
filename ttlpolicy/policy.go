// Package ttlpolicy resolves how long each resource type may be served
// from the cache. Date-ranged custody data gets a split policy: months
// that are entirely in the past ("settled") change so rarely that they
// can be cached for hours, while ranges touching the present or future
// ("live") keep a short window. Historical browsing dominates calendar
// traffic, so the split buys a large hit rate for a small staleness
// window on live data.
package ttlpolicy

import "time"

// Resource identifies a cacheable resource type.
type Resource string

const (
	Events          Resource = "events"
	WeatherForecast Resource = "weather-forecast"
	WeatherHistoric Resource = "weather-historic"
	UserProfile     Resource = "user-profile"
	FamilyData      Resource = "family-data"
	Custody         Resource = "custody"
)

// Config carries the per-resource TTLs. Zero fields fall back to the
// defaults below.
type Config struct {
	Events          time.Duration
	WeatherForecast time.Duration
	WeatherHistoric time.Duration
	UserProfile     time.Duration
	FamilyData      time.Duration
	CustodySettled  time.Duration
	CustodyLive     time.Duration
}

// Defaults mirror the production configuration.
const (
	DefaultEvents          = 15 * time.Minute
	DefaultWeatherForecast = time.Hour
	DefaultWeatherHistoric = 72 * time.Hour
	DefaultUserProfile     = 30 * time.Minute
	DefaultFamilyData      = 30 * time.Minute
	DefaultCustodySettled  = 2 * time.Hour
	DefaultCustodyLive     = 15 * time.Minute
)

// Policy is the immutable TTL table, resolved once at startup.
type Policy struct {
	cfg Config
	now func() time.Time
}

// New builds a Policy from cfg, filling unset values with the defaults.
// The now hook is injectable for tests; nil means time.Now.
func New(cfg Config, now func() time.Time) *Policy {
	def := func(v *time.Duration, d time.Duration) {
		if *v <= 0 {
			*v = d
		}
	}
	def(&cfg.Events, DefaultEvents)
	def(&cfg.WeatherForecast, DefaultWeatherForecast)
	def(&cfg.WeatherHistoric, DefaultWeatherHistoric)
	def(&cfg.UserProfile, DefaultUserProfile)
	def(&cfg.FamilyData, DefaultFamilyData)
	def(&cfg.CustodySettled, DefaultCustodySettled)
	def(&cfg.CustodyLive, DefaultCustodyLive)
	if now == nil {
		now = time.Now
	}
	return &Policy{cfg: cfg, now: now}
}

// Resolve returns the TTL for a resource without a date range. Custody
// resolves to its live TTL here; use ResolveRange when the range is
// known.
func (p *Policy) Resolve(r Resource) time.Duration {
	switch r {
	case Events:
		return p.cfg.Events
	case WeatherForecast:
		return p.cfg.WeatherForecast
	case WeatherHistoric:
		return p.cfg.WeatherHistoric
	case UserProfile:
		return p.cfg.UserProfile
	case FamilyData:
		return p.cfg.FamilyData
	case Custody:
		return p.cfg.CustodyLive
	}
	return p.cfg.Events
}

// ResolveRange returns the TTL for a date-ranged resource. A range whose
// END date is strictly before today is settled; a range ending today or
// later is live. The end date decides: a range starting in the past but
// reaching into the current month is still live.
func (p *Policy) ResolveRange(r Resource, end time.Time) time.Duration {
	if r != Custody {
		return p.Resolve(r)
	}
	if p.Settled(end) {
		return p.cfg.CustodySettled
	}
	return p.cfg.CustodyLive
}

// Settled reports whether a range ending on end is entirely in the past.
// Dates are compared at day granularity; today counts as live.
func (p *Policy) Settled(end time.Time) bool {
	return dateOnly(end).Before(dateOnly(p.now()))
}

// dateOnly strips the time-of-day and zone so calendar dates compare at
// day granularity.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
