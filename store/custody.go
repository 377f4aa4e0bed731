package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CustodyDay is one row of the full custody view: the assignment joined
// to the assignee's display name.
type CustodyDay struct {
	ID              int64     `json:"id"`
	Date            time.Time `json:"date"`
	CustodianID     uuid.UUID `json:"custodian_id"`
	CustodianName   string    `json:"custodian_name"`
	HandoffDay      bool      `json:"handoff_day"`
	HandoffTime     string    `json:"handoff_time,omitempty"` // "15:04", empty when unset
	HandoffLocation string    `json:"handoff_location,omitempty"`
}

// Handoff is the narrower handoff-only projection: only days where
// responsibility transitions, with the transition details.
type Handoff struct {
	ID              int64     `json:"id"`
	Date            time.Time `json:"date"`
	CustodianID     uuid.UUID `json:"custodian_id"`
	CustodianName   string    `json:"custodian_name"`
	HandoffTime     string    `json:"handoff_time"`
	HandoffLocation string    `json:"handoff_location,omitempty"`
}

const custodyViewQuery = `
SELECT c.id, c.date, c.custodian_id, c.handoff_day, c.handoff_time, c.handoff_location, u.first_name
FROM custody c
JOIN users u ON c.custodian_id = u.id
WHERE c.family_id = ? AND c.date >= ? AND c.date <= ?
ORDER BY c.date ASC`

const handoffViewQuery = `
SELECT c.id, c.date, c.custodian_id, c.handoff_time, c.handoff_location, u.first_name
FROM custody c
JOIN users u ON c.custodian_id = u.id
WHERE c.family_id = ? AND c.date >= ? AND c.date <= ?
AND c.handoff_day = TRUE AND c.handoff_time IS NOT NULL
ORDER BY c.date ASC`

// CustodyByRange returns the full custody view for one family over an
// inclusive date range, as a single join instead of two round-trips.
func (s *Store) CustodyByRange(ctx context.Context, familyID int64, start, end time.Time) ([]CustodyDay, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, custodyViewQuery, familyID, start, end)
	if err != nil {
		return nil, fmt.Errorf("query custody view: %w", err)
	}
	defer rows.Close()

	days := []CustodyDay{}
	for rows.Next() {
		var (
			d           CustodyDay
			custodianID string
			hTime       sql.NullString
			hLoc        sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.Date, &custodianID, &d.HandoffDay, &hTime, &hLoc, &d.CustodianName); err != nil {
			return nil, fmt.Errorf("scan custody row: %w", err)
		}
		if d.CustodianID, err = uuid.Parse(custodianID); err != nil {
			return nil, fmt.Errorf("custodian id %q: %w", custodianID, err)
		}
		d.HandoffTime = clockHHMM(hTime)
		d.HandoffLocation = hLoc.String
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate custody rows: %w", err)
	}
	return days, nil
}

// HandoffsByRange returns only the custody transitions in the range.
func (s *Store) HandoffsByRange(ctx context.Context, familyID int64, start, end time.Time) ([]Handoff, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, handoffViewQuery, familyID, start, end)
	if err != nil {
		return nil, fmt.Errorf("query handoff view: %w", err)
	}
	defer rows.Close()

	handoffs := []Handoff{}
	for rows.Next() {
		var (
			h           Handoff
			custodianID string
			hTime       string
			hLoc        sql.NullString
		)
		if err := rows.Scan(&h.ID, &h.Date, &custodianID, &hTime, &hLoc, &h.CustodianName); err != nil {
			return nil, fmt.Errorf("scan handoff row: %w", err)
		}
		if h.CustodianID, err = uuid.Parse(custodianID); err != nil {
			return nil, fmt.Errorf("custodian id %q: %w", custodianID, err)
		}
		h.HandoffTime = trimSeconds(hTime)
		h.HandoffLocation = hLoc.String
		handoffs = append(handoffs, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate handoff rows: %w", err)
	}
	return handoffs, nil
}

// CustodyChange is the write-side shape for one custody day.
type CustodyChange struct {
	Date            time.Time
	CustodianID     uuid.UUID
	HandoffDay      bool
	HandoffTime     string // "15:04", empty for none
	HandoffLocation string
}

// SetCustodyDay creates or replaces the custody assignment for one day.
// The custody table has a unique key on (family_id, date); the
// LAST_INSERT_ID(id) trick makes LastInsertId return the row id on both
// the insert and the update path, so callers always get the real
// database identifier.
func (s *Store) SetCustodyDay(ctx context.Context, familyID int64, c CustodyChange) (int64, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
INSERT INTO custody (family_id, date, custodian_id, handoff_day, handoff_time, handoff_location)
VALUES (?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  id = LAST_INSERT_ID(id),
  custodian_id = VALUES(custodian_id),
  handoff_day = VALUES(handoff_day),
  handoff_time = VALUES(handoff_time),
  handoff_location = VALUES(handoff_location)`,
		familyID, c.Date, c.CustodianID.String(), c.HandoffDay,
		nullIfEmpty(c.HandoffTime), nullIfEmpty(c.HandoffLocation))
	if err != nil {
		return 0, fmt.Errorf("set custody day: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("custody insert id: %w", err)
	}
	return id, nil
}

// clockHHMM renders a nullable TIME column as "15:04".
func clockHHMM(v sql.NullString) string {
	if !v.Valid {
		return ""
	}
	return trimSeconds(v.String)
}

// trimSeconds shortens "15:04:05" to "15:04".
func trimSeconds(v string) string {
	if strings.Count(v, ":") == 2 {
		return v[:strings.LastIndex(v, ":")]
	}
	return v
}

// nullIfEmpty maps "" to SQL NULL.
func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}
