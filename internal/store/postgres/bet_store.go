package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openwager/betfeed/internal/domain"
)

// BetStore implements domain.BetStore using PostgreSQL.
type BetStore struct {
	pool *pgxpool.Pool
}

// NewBetStore creates a new BetStore backed by the given connection pool.
func NewBetStore(pool *pgxpool.Pool) *BetStore {
	return &BetStore{pool: pool}
}

// Create inserts a new bet row.
func (s *BetStore) Create(ctx context.Context, bet domain.Bet) (domain.Bet, error) {
	opts, err := json.Marshal(bet.Options)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("postgres: marshal options for bet %s: %w", bet.ID, err)
	}

	const query = `
		INSERT INTO bets (id, title, description, options, creator_id, status, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, title, description, options, creator_id, status,
		          settled_option, created_at, closed_at, settled_at`

	row := s.pool.QueryRow(ctx, query,
		bet.ID, bet.Title, bet.Description, opts,
		bet.CreatorID, string(bet.Status), bet.ClosedAt,
	)
	created, err := scanBet(row)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("postgres: create bet %s: %w", bet.ID, err)
	}
	return created, nil
}

// GetByID returns a single bet, or domain.ErrNotFound.
func (s *BetStore) GetByID(ctx context.Context, id string) (domain.Bet, error) {
	const query = `
		SELECT id, title, description, options, creator_id, status,
		       settled_option, created_at, closed_at, settled_at
		FROM bets WHERE id = $1`

	bet, err := scanBet(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Bet{}, domain.ErrNotFound
		}
		return domain.Bet{}, fmt.Errorf("postgres: get bet %s: %w", id, err)
	}
	return bet, nil
}

// ListPage returns one feed page of bets joined with creator profile fields.
func (s *BetStore) ListPage(ctx context.Context, filter domain.BetFilter, opts domain.ListOpts) ([]domain.BetRow, error) {
	const base = `
		SELECT b.id, b.title, b.description, b.options, b.creator_id, b.status,
		       b.settled_option, b.created_at, b.closed_at, b.settled_at,
		       p.username, p.full_name, p.avatar_path
		FROM bets b
		JOIN profiles p ON p.id = b.creator_id`

	var query string
	switch filter {
	case domain.FilterEndingSoon:
		query = base + `
		WHERE b.status = 'open'
		ORDER BY b.closed_at ASC NULLS LAST, b.created_at DESC
		LIMIT $1 OFFSET $2`
	case domain.FilterSettled:
		query = base + `
		WHERE b.status = 'settled'
		ORDER BY b.settled_at DESC
		LIMIT $1 OFFSET $2`
	default: // newest
		query = base + `
		ORDER BY b.created_at DESC
		LIMIT $1 OFFSET $2`
	}

	rows, err := s.pool.Query(ctx, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bets (%s): %w", filter, err)
	}
	defer rows.Close()

	var out []domain.BetRow
	for rows.Next() {
		var (
			r       domain.BetRow
			rawOpts []byte
			status  string
		)
		err := rows.Scan(
			&r.ID, &r.Title, &r.Description, &rawOpts, &r.CreatorID, &status,
			&r.SettledOption, &r.CreatedAt, &r.ClosedAt, &r.SettledAt,
			&r.CreatorUsername, &r.CreatorFullName, &r.CreatorAvatarPath,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan bet row: %w", err)
		}
		if err := json.Unmarshal(rawOpts, &r.Options); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal options for bet %s: %w", r.ID, err)
		}
		r.Status = domain.BetStatus(status)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list bets (%s): %w", filter, err)
	}
	return out, nil
}

// Update patches an open bet owned by creatorID. The WHERE clause carries
// both the ownership and the open-state condition; when zero rows match, the
// bet is re-read to pick the precise error.
func (s *BetStore) Update(ctx context.Context, id, creatorID string, patch domain.BetPatch) (domain.Bet, error) {
	const query = `
		UPDATE bets SET
			title       = COALESCE($3, title),
			description = COALESCE($4, description),
			closed_at   = COALESCE($5, closed_at)
		WHERE id = $1 AND creator_id = $2 AND status = 'open'
		RETURNING id, title, description, options, creator_id, status,
		          settled_option, created_at, closed_at, settled_at`

	bet, err := scanBet(s.pool.QueryRow(ctx, query, id, creatorID,
		patch.Title, patch.Description, patch.ClosedAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Bet{}, s.transitionError(ctx, id, creatorID)
		}
		return domain.Bet{}, fmt.Errorf("postgres: update bet %s: %w", id, err)
	}
	return bet, nil
}

// Cancel transitions an open bet to cancelled and triggers the refund
// procedure for its placements.
func (s *BetStore) Cancel(ctx context.Context, id, creatorID string) (domain.Bet, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("postgres: cancel bet %s: begin: %w", id, err)
	}
	defer tx.Rollback(ctx)

	const query = `
		UPDATE bets SET status = 'cancelled'
		WHERE id = $1 AND creator_id = $2 AND status = 'open'
		RETURNING id, title, description, options, creator_id, status,
		          settled_option, created_at, closed_at, settled_at`

	bet, err := scanBet(tx.QueryRow(ctx, query, id, creatorID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Bet{}, s.transitionError(ctx, id, creatorID)
		}
		return domain.Bet{}, fmt.Errorf("postgres: cancel bet %s: %w", id, err)
	}

	if _, err := tx.Exec(ctx, `SELECT refund_bet($1)`, id); err != nil {
		return domain.Bet{}, fmt.Errorf("postgres: refund bet %s: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Bet{}, fmt.Errorf("postgres: cancel bet %s: commit: %w", id, err)
	}
	return bet, nil
}

// Settle invokes the atomic settle_bet procedure.
func (s *BetStore) Settle(ctx context.Context, id string, winningIdx int) (domain.SettleResult, error) {
	const query = `SELECT winner_count, total_pot FROM settle_bet($1, $2)`

	var res domain.SettleResult
	res.BetID = id
	res.WinningOption = winningIdx

	err := s.pool.QueryRow(ctx, query, id, winningIdx).Scan(&res.WinnerCount, &res.TotalPot)
	if err != nil {
		if mapped := mapProcError(err); mapped != nil {
			return domain.SettleResult{}, mapped
		}
		return domain.SettleResult{}, fmt.Errorf("postgres: settle bet %s: %w", id, err)
	}
	return res, nil
}

// transitionError distinguishes why a conditional transition matched zero
// rows: missing bet, foreign owner, or a bet already out of the open state.
func (s *BetStore) transitionError(ctx context.Context, id, creatorID string) error {
	bet, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if bet.CreatorID != creatorID {
		return domain.ErrNotOwner
	}
	return domain.ErrBetNotOpen
}

// scanBet scans a single bet row into a domain.Bet.
func scanBet(row pgx.Row) (domain.Bet, error) {
	var (
		b       domain.Bet
		rawOpts []byte
		status  string
	)
	err := row.Scan(
		&b.ID, &b.Title, &b.Description, &rawOpts, &b.CreatorID, &status,
		&b.SettledOption, &b.CreatedAt, &b.ClosedAt, &b.SettledAt,
	)
	if err != nil {
		return domain.Bet{}, err
	}
	if err := json.Unmarshal(rawOpts, &b.Options); err != nil {
		return domain.Bet{}, fmt.Errorf("unmarshal options: %w", err)
	}
	b.Status = domain.BetStatus(status)
	return b, nil
}

// Compile-time interface check.
var _ domain.BetStore = (*BetStore)(nil)
