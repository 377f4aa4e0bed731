// Package invalidate removes cached entries after a mutation commits.
// Every write handler goes through the one Dispatcher here instead of
// issuing ad-hoc pattern deletes, so an endpoint cannot forget a scope.
// Invalidation is best-effort: a failed delete is a bounded staleness
// risk (the TTL still caps it), never a reason to fail the write that
// already committed.
package invalidate

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/calndr/calndr-go/cache"
	"github.com/calndr/calndr-go/cachekey"
)

// Resource narrows an invalidation to one resource type under the owner
// scope. Callers that know a mutation cannot affect sibling resources
// pass the specific one; the default fans out over all of them.
type Resource string

const (
	Events     Resource = "events"
	Custody    Resource = "custody"
	FamilyData Resource = "family-data"
)

// Dispatcher deletes cache entries by owner scope.
type Dispatcher struct {
	store  cache.Store
	keys   *cachekey.Builder
	logger *zap.Logger
}

// New creates a Dispatcher.
func New(store cache.Store, keys *cachekey.Builder, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{store: store, keys: keys, logger: logger}
}

// Family invalidates cached data owned by a family. With no resources
// given, every family-scoped prefix is cleared (events, custody with its
// handoff projections, family data). Must be called only after the
// triggering database commit. Returns the number of entries removed.
func (d *Dispatcher) Family(ctx context.Context, familyID int64, resources ...Resource) int {
	var prefixes []string
	if len(resources) == 0 {
		prefixes = d.keys.FamilyScopes(familyID)
	} else {
		for _, r := range resources {
			switch r {
			case Events:
				prefixes = append(prefixes, d.keys.FamilyEventsScope(familyID))
			case Custody:
				prefixes = append(prefixes, d.keys.FamilyCustodyScope(familyID))
			case FamilyData:
				prefixes = append(prefixes, d.keys.FamilyDataScope(familyID))
			}
		}
	}
	return d.deleteAll(ctx, prefixes, zap.Int64("family_id", familyID))
}

// User invalidates cached data owned by a user (currently the profile).
func (d *Dispatcher) User(ctx context.Context, userID uuid.UUID) int {
	return d.deleteAll(ctx, []string{d.keys.UserScope(userID)}, zap.Stringer("user_id", userID))
}

// deleteAll fans out pattern deletes, logging and continuing on partial
// failure.
func (d *Dispatcher) deleteAll(ctx context.Context, prefixes []string, owner zap.Field) int {
	total := 0
	for _, p := range prefixes {
		n, err := d.store.DeletePattern(ctx, p)
		total += n
		if err != nil {
			d.logger.Error("cache invalidation incomplete, entries expire by TTL",
				owner, zap.String("prefix", p), zap.Error(err))
		}
	}
	d.logger.Debug("cache invalidated", owner, zap.Int("deleted", total))
	return total
}
