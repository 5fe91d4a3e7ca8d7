// Package identity persists the accounts that may sign in: listing owners
// and administrators. It is the authoritative source the OTP flow and the
// session middleware consult.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/placelist/pkg/otp"
	"github.com/dmitrymomot/placelist/pkg/pg"
	"github.com/dmitrymomot/placelist/pkg/sessiontoken"
)

// Store reads and writes identities in the identities table.
type Store struct {
	db *pgxpool.Pool
}

// NewStore creates a Store backed by the given connection pool.
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// LookupActiveIdentity implements otp.IdentityStore. A missing identity is
// (nil, nil); the caller treats absent, inactive, and under-privileged
// uniformly, so no distinction is needed here.
func (s *Store) LookupActiveIdentity(ctx context.Context, email string) (*otp.Identity, error) {
	row := s.db.QueryRow(ctx, `
		SELECT email, role, active
		FROM identities
		WHERE email = $1`,
		email,
	)

	var id otp.Identity
	if err := row.Scan(&id.Email, &id.Role, &id.Active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup identity: %w", err)
	}
	return &id, nil
}

// Upsert creates or updates an identity. Used by admin tooling and seeding;
// the auth flow itself never writes identities.
func (s *Store) Upsert(ctx context.Context, email string, role sessiontoken.Role, active bool) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO identities (email, role, active, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (email) DO UPDATE SET role = $2, active = $3, updated_at = now()`,
		email, role, active,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return fmt.Errorf("upsert identity %q: %w", email, err)
		}
		return fmt.Errorf("upsert identity: %w", err)
	}
	return nil
}

// Deactivate flips an identity inactive. Live sessions collapse to visitor
// on their next request; live OTP challenges fail verification.
func (s *Store) Deactivate(ctx context.Context, email string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE identities
		SET active = false, updated_at = now()
		WHERE email = $1`,
		email,
	)
	if err != nil {
		return fmt.Errorf("deactivate identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrIdentityNotFound
	}
	return nil
}

// Record is the full stored row, used by admin listings.
type Record struct {
	Email     string
	Role      sessiontoken.Role
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// List returns all identities ordered by email.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.Query(ctx, `
		SELECT email, role, active, created_at, updated_at
		FROM identities
		ORDER BY email`,
	)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Email, &rec.Role, &rec.Active, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
