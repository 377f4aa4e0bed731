package calendarcache

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/calndr/calndr-go/store"
)

// CreateEvent inserts an event, invalidates the family scope and returns
// the database-generated id. Invalidation runs strictly after the
// insert; a failed invalidation is logged by the dispatcher and does not
// fail the write.
func (o *Orchestrator) CreateEvent(ctx context.Context, familyID int64, date time.Time, content string, position *int) (int64, error) {
	id, err := o.db.CreateEvent(ctx, familyID, date, content, position)
	if err != nil {
		return 0, err
	}
	o.inv.Family(ctx, familyID)
	return id, nil
}

// UpdateEvent rewrites an event, then invalidates the family scope.
func (o *Orchestrator) UpdateEvent(ctx context.Context, familyID, eventID int64, content string, position *int) error {
	if err := o.db.UpdateEvent(ctx, familyID, eventID, content, position); err != nil {
		return err
	}
	o.inv.Family(ctx, familyID)
	return nil
}

// DeleteEvent removes an event, then invalidates the family scope.
func (o *Orchestrator) DeleteEvent(ctx context.Context, familyID, eventID int64) error {
	if err := o.db.DeleteEvent(ctx, familyID, eventID); err != nil {
		return err
	}
	o.inv.Family(ctx, familyID)
	return nil
}

// SetCustodyDay creates or replaces one day's custody assignment, then
// invalidates the family scope (custody changes affect the events view
// too, so the full scope is cleared). Returns the real row id.
func (o *Orchestrator) SetCustodyDay(ctx context.Context, familyID int64, c store.CustodyChange) (int64, error) {
	id, err := o.db.SetCustodyDay(ctx, familyID, c)
	if err != nil {
		return 0, err
	}
	o.inv.Family(ctx, familyID)
	return id, nil
}

// ProfileUpdated invalidates a user's cached profile after an
// out-of-band profile mutation committed.
func (o *Orchestrator) ProfileUpdated(ctx context.Context, userID uuid.UUID) {
	o.inv.User(ctx, userID)
}

// FamilyUpdated invalidates a family's cached data after an out-of-band
// family mutation committed.
func (o *Orchestrator) FamilyUpdated(ctx context.Context, familyID int64) {
	o.inv.Family(ctx, familyID)
}
