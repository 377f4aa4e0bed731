package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Profile is the cached slice of a user row.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	FamilyID  int64     `json:"family_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
}

// FamilyMember is one member inside a FamilyData payload.
type FamilyMember struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
}

// FamilyData is a family row with its members, fetched as one join.
type FamilyData struct {
	ID      int64          `json:"id"`
	Name    string         `json:"name"`
	Members []FamilyMember `json:"members"`
}

// ProfileByID returns one user's profile.
func (s *Store) ProfileByID(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	var (
		p  Profile
		id string
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, family_id, first_name, last_name, email
FROM users WHERE id = ?`, userID.String()).
		Scan(&id, &p.FamilyID, &p.FirstName, &p.LastName, &p.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query profile %s: %w", userID, err)
	}
	if p.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("profile id %q: %w", id, err)
	}
	return &p, nil
}

// FamilyByID returns the family row joined to its members in one query.
func (s *Store) FamilyByID(ctx context.Context, familyID int64) (*FamilyData, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
SELECT f.id, f.name, u.id, u.first_name, u.last_name
FROM families f
JOIN users u ON u.family_id = f.id
WHERE f.id = ?
ORDER BY u.first_name ASC`, familyID)
	if err != nil {
		return nil, fmt.Errorf("query family %d: %w", familyID, err)
	}
	defer rows.Close()

	var fam *FamilyData
	for rows.Next() {
		var (
			id, name string
			m        FamilyMember
			fid      int64
		)
		if err := rows.Scan(&fid, &name, &id, &m.FirstName, &m.LastName); err != nil {
			return nil, fmt.Errorf("scan family row: %w", err)
		}
		if m.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("member id %q: %w", id, err)
		}
		if fam == nil {
			fam = &FamilyData{ID: fid, Name: name}
		}
		fam.Members = append(fam.Members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate family rows: %w", err)
	}
	if fam == nil {
		return nil, ErrNotFound
	}
	return fam, nil
}
