package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Event is one calendar event row. Position is the display slot on the
// day cell and may be unset.
type Event struct {
	ID       int64     `json:"id"`
	FamilyID int64     `json:"family_id"`
	Date     time.Time `json:"date"`
	Content  string    `json:"content"`
	Position *int      `json:"position,omitempty"`
	Type     string    `json:"event_type"`
}

// EventsByRange returns the non-custody events for one family over an
// inclusive date range.
func (s *Store) EventsByRange(ctx context.Context, familyID int64, start, end time.Time) ([]Event, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
SELECT id, family_id, date, content, position, event_type
FROM events
WHERE family_id = ? AND date >= ? AND date <= ?
ORDER BY date ASC, position ASC`,
		familyID, start, end)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var (
			e   Event
			pos sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.FamilyID, &e.Date, &e.Content, &pos, &e.Type); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		if pos.Valid {
			p := int(pos.Int64)
			e.Position = &p
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}
	return events, nil
}

// CreateEvent inserts an event and returns the database-generated id.
func (s *Store) CreateEvent(ctx context.Context, familyID int64, date time.Time, content string, position *int) (int64, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	var pos any
	if position != nil {
		pos = *position
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO events (family_id, date, content, position, event_type)
VALUES (?, ?, ?, ?, 'regular')`,
		familyID, date, content, pos)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("event insert id: %w", err)
	}
	return id, nil
}

// UpdateEvent rewrites an event's content and position. The family id is
// part of the predicate so one family can never touch another's rows.
func (s *Store) UpdateEvent(ctx context.Context, familyID, eventID int64, content string, position *int) error {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	var pos any
	if position != nil {
		pos = *position
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE events SET content = ?, position = ?
WHERE id = ? AND family_id = ?`,
		content, pos, eventID, familyID)
	if err != nil {
		return fmt.Errorf("update event %d: %w", eventID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update event %d: %w", eventID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteEvent removes an event owned by the family.
func (s *Store) DeleteEvent(ctx context.Context, familyID, eventID int64) error {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM events WHERE id = ? AND family_id = ?`, eventID, familyID)
	if err != nil {
		return fmt.Errorf("delete event %d: %w", eventID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete event %d: %w", eventID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
