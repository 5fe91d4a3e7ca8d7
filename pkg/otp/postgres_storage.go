package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStorage persists challenges in the otp_challenges table.
type PostgresStorage struct {
	db *pgxpool.Pool
}

// NewPostgresStorage creates a Storage backed by the given connection pool.
func NewPostgresStorage(db *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{db: db}
}

func (s *PostgresStorage) ReplaceAndCreate(ctx context.Context, ch Challenge) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Invalidate first, insert second: concurrent issuance for the same
	// email serializes on the updated rows and at most one live challenge
	// survives.
	if _, err := tx.Exec(ctx, `
		UPDATE otp_challenges
		SET consumed_at = now(), consumed_reason = $2
		WHERE email = $1 AND consumed_at IS NULL`,
		ch.Email, ConsumedReplaced,
	); err != nil {
		return fmt.Errorf("replace live challenges: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO otp_challenges (id, email, code_hash, created_at, expires_at, attempts)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		ch.ID, ch.Email, ch.CodeHash, ch.CreatedAt, ch.ExpiresAt, ch.Attempts,
	); err != nil {
		return fmt.Errorf("insert challenge: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStorage) LatestLive(ctx context.Context, email string) (*Challenge, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, email, code_hash, created_at, expires_at, attempts, consumed_at, consumed_reason
		FROM otp_challenges
		WHERE email = $1 AND consumed_at IS NULL AND expires_at > now()
		ORDER BY created_at DESC
		LIMIT 1`,
		email,
	)

	ch, err := scanChallenge(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return ch, nil
}

func (s *PostgresStorage) Mutate(ctx context.Context, email string, fn func(ch *Challenge) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// FOR UPDATE serializes concurrent verification attempts against the
	// same challenge: the second caller waits and then observes the first
	// caller's attempts/consumed state.
	row := tx.QueryRow(ctx, `
		SELECT id, email, code_hash, created_at, expires_at, attempts, consumed_at, consumed_reason
		FROM otp_challenges
		WHERE email = $1 AND consumed_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE`,
		email,
	)

	ch, err := scanChallenge(row)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	if err := fn(ch); err != nil {
		return err
	}

	if ch != nil {
		if _, err := tx.Exec(ctx, `
			UPDATE otp_challenges
			SET attempts = $2, consumed_at = $3, consumed_reason = NULLIF($4, '')
			WHERE id = $1`,
			ch.ID, ch.Attempts, ch.ConsumedAt, string(ch.ConsumedReason),
		); err != nil {
			return fmt.Errorf("update challenge: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresStorage) Consume(ctx context.Context, id uuid.UUID, reason ConsumedReason) error {
	_, err := s.db.Exec(ctx, `
		UPDATE otp_challenges
		SET consumed_at = now(), consumed_reason = $2
		WHERE id = $1 AND consumed_at IS NULL`,
		id, reason,
	)
	return err
}

// DeleteOlderThan removes terminally dead challenges for retention cleanup.
func (s *PostgresStorage) DeleteOlderThan(ctx context.Context, cutoff time.Time) error {
	_, err := s.db.Exec(ctx, `
		DELETE FROM otp_challenges
		WHERE (consumed_at IS NOT NULL OR expires_at < now()) AND created_at < $1`,
		cutoff,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChallenge(row rowScanner) (*Challenge, error) {
	var (
		ch     Challenge
		reason *string
	)
	if err := row.Scan(
		&ch.ID, &ch.Email, &ch.CodeHash, &ch.CreatedAt, &ch.ExpiresAt,
		&ch.Attempts, &ch.ConsumedAt, &reason,
	); err != nil {
		return nil, err
	}
	if reason != nil {
		ch.ConsumedReason = ConsumedReason(*reason)
	}
	return &ch, nil
}
