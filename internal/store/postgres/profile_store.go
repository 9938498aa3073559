package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openwager/betfeed/internal/domain"
)

// ProfileStore implements domain.ProfileStore using PostgreSQL.
type ProfileStore struct {
	pool *pgxpool.Pool
}

// NewProfileStore creates a new ProfileStore backed by the given connection
// pool.
func NewProfileStore(pool *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{pool: pool}
}

// GetByID returns a profile, or domain.ErrNotFound.
func (s *ProfileStore) GetByID(ctx context.Context, id string) (domain.Profile, error) {
	const query = `
		SELECT id, full_name, username, avatar_path, coin_balance, wins, losses, created_at
		FROM profiles WHERE id = $1`

	p, err := scanProfile(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Profile{}, domain.ErrNotFound
		}
		return domain.Profile{}, fmt.Errorf("postgres: get profile %s: %w", id, err)
	}
	return p, nil
}

// Update patches the user-editable display fields. Balance and win/loss
// counters are owned by the settlement procedures and cannot be set here.
func (s *ProfileStore) Update(ctx context.Context, id string, patch domain.ProfilePatch) (domain.Profile, error) {
	const query = `
		UPDATE profiles SET
			full_name = COALESCE($2, full_name),
			username  = COALESCE($3, username)
		WHERE id = $1
		RETURNING id, full_name, username, avatar_path, coin_balance, wins, losses, created_at`

	p, err := scanProfile(s.pool.QueryRow(ctx, query, id, patch.FullName, patch.Username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Profile{}, domain.ErrNotFound
		}
		return domain.Profile{}, fmt.Errorf("postgres: update profile %s: %w", id, err)
	}
	return p, nil
}

// scanProfile scans a single profile row.
func scanProfile(row pgx.Row) (domain.Profile, error) {
	var p domain.Profile
	err := row.Scan(&p.ID, &p.FullName, &p.Username, &p.AvatarPath,
		&p.CoinBalance, &p.Wins, &p.Losses, &p.CreatedAt)
	if err != nil {
		return domain.Profile{}, err
	}
	return p, nil
}

// Compile-time interface check.
var _ domain.ProfileStore = (*ProfileStore)(nil)
