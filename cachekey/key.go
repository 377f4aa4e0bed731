// Package cachekey builds the namespaced cache keys and invalidation
// prefixes used across the calendar layer. Keys follow the grammar
//
//	{app-prefix}:{resource}:{scope}:{params}
//
// with the owning scope always leftmost after the resource so that
// prefix deletion for an owner can never cross into another owner's
// entries. Parameters are canonicalized before concatenation, so two
// semantically identical requests always map to the same key.
package cachekey

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultPrefix namespaces every key this application writes.
const DefaultPrefix = "calndr"

// DateFormat is the canonical date rendering used in keys.
const DateFormat = "2006-01-02"

// Builder constructs keys under a fixed application prefix.
type Builder struct {
	prefix string
}

// NewBuilder creates a Builder. An empty prefix falls back to
// DefaultPrefix.
func NewBuilder(prefix string) *Builder {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Builder{prefix: prefix}
}

// orderRange returns the boundaries in ascending order. Callers may pass
// them either way round; the key must not depend on argument order.
func orderRange(start, end time.Time) (time.Time, time.Time) {
	if end.Before(start) {
		return end, start
	}
	return start, end
}

// Events keys an event list for one family over an inclusive date range.
func (b *Builder) Events(familyID int64, start, end time.Time) string {
	start, end = orderRange(start, end)
	return fmt.Sprintf("%s:events:family:%d:%s:%s",
		b.prefix, familyID, start.Format(DateFormat), end.Format(DateFormat))
}

// Custody keys the full custody view for one family over an inclusive
// date range.
func (b *Builder) Custody(familyID int64, start, end time.Time) string {
	start, end = orderRange(start, end)
	return fmt.Sprintf("%s:custody:family:%d:%s:%s",
		b.prefix, familyID, start.Format(DateFormat), end.Format(DateFormat))
}

// Handoffs keys the handoff-only custody projection. It nests under the
// custody scope so custody invalidation covers it.
func (b *Builder) Handoffs(familyID int64, start, end time.Time) string {
	return b.Custody(familyID, start, end) + ":handoffs"
}

// UserProfile keys one user's profile.
func (b *Builder) UserProfile(userID uuid.UUID) string {
	return fmt.Sprintf("%s:user:%s:profile", b.prefix, userID)
}

// FamilyData keys one family's settings payload.
func (b *Builder) FamilyData(familyID int64) string {
	return fmt.Sprintf("%s:family:%d:data", b.prefix, familyID)
}

// WeatherKind distinguishes forecast from archive data; the two carry
// very different TTLs.
type WeatherKind string

const (
	WeatherForecast WeatherKind = "forecast"
	WeatherHistoric WeatherKind = "historic"
)

// Weather keys a weather lookup by kind, location and inclusive date
// range. Coordinates are rounded to four decimals (~11m) to bound key
// cardinality.
func (b *Builder) Weather(kind WeatherKind, lat, lon float64, start, end time.Time) string {
	start, end = orderRange(start, end)
	return fmt.Sprintf("%s:weather:%s:%.4f:%.4f:%s:%s",
		b.prefix, kind, lat, lon, start.Format(DateFormat), end.Format(DateFormat))
}

// FamilyScopes returns the prefixes that together cover every key
// written for a family: its events, its custody views (handoffs
// included) and its family-data payload. Every Events/Custody/Handoffs/
// FamilyData key for the id matches one of these prefixes.
func (b *Builder) FamilyScopes(familyID int64) []string {
	return []string{
		fmt.Sprintf("%s:events:family:%d:", b.prefix, familyID),
		fmt.Sprintf("%s:custody:family:%d:", b.prefix, familyID),
		fmt.Sprintf("%s:family:%d:", b.prefix, familyID),
	}
}

// FamilyEventsScope covers only the events keys for a family.
func (b *Builder) FamilyEventsScope(familyID int64) string {
	return fmt.Sprintf("%s:events:family:%d:", b.prefix, familyID)
}

// FamilyCustodyScope covers the custody keys for a family, handoff
// projections included.
func (b *Builder) FamilyCustodyScope(familyID int64) string {
	return fmt.Sprintf("%s:custody:family:%d:", b.prefix, familyID)
}

// FamilyDataScope covers the family-data payload.
func (b *Builder) FamilyDataScope(familyID int64) string {
	return fmt.Sprintf("%s:family:%d:", b.prefix, familyID)
}

// UserScope covers every key written for a user.
func (b *Builder) UserScope(userID uuid.UUID) string {
	return fmt.Sprintf("%s:user:%s:", b.prefix, userID)
}
