package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openwager/betfeed/internal/domain"
)

// PlacementStore implements domain.PlacementStore using PostgreSQL.
type PlacementStore struct {
	pool *pgxpool.Pool
}

// NewPlacementStore creates a new PlacementStore backed by the given
// connection pool.
func NewPlacementStore(pool *pgxpool.Pool) *PlacementStore {
	return &PlacementStore{pool: pool}
}

// Place invokes the atomic place_wager procedure.
func (s *PlacementStore) Place(ctx context.Context, betID, userID string, optionIdx int, amount int64) (domain.Placement, error) {
	const query = `
		SELECT bet_id, user_id, option_idx, amount, payout, created_at
		FROM place_wager($1, $2, $3, $4)`

	var p domain.Placement
	err := s.pool.QueryRow(ctx, query, betID, userID, optionIdx, amount).Scan(
		&p.BetID, &p.UserID, &p.OptionIdx, &p.Amount, &p.Payout, &p.CreatedAt,
	)
	if err != nil {
		if mapped := mapProcError(err); mapped != nil {
			return domain.Placement{}, mapped
		}
		return domain.Placement{}, fmt.Errorf("postgres: place wager on bet %s: %w", betID, err)
	}
	return p, nil
}

// GetByBetAndUser returns the user's wager on the bet, or domain.ErrNotFound.
func (s *PlacementStore) GetByBetAndUser(ctx context.Context, betID, userID string) (domain.Placement, error) {
	const query = `
		SELECT bet_id, user_id, option_idx, amount, payout, created_at
		FROM bet_placements WHERE bet_id = $1 AND user_id = $2`

	var p domain.Placement
	err := s.pool.QueryRow(ctx, query, betID, userID).Scan(
		&p.BetID, &p.UserID, &p.OptionIdx, &p.Amount, &p.Payout, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Placement{}, domain.ErrNotFound
		}
		return domain.Placement{}, fmt.Errorf("postgres: get placement (%s, %s): %w", betID, userID, err)
	}
	return p, nil
}

// CountByBet returns participation counts for the given bets in one batched
// query. Bets with no placements are absent from the map.
func (s *PlacementStore) CountByBet(ctx context.Context, betIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(betIDs))
	if len(betIDs) == 0 {
		return counts, nil
	}

	const query = `
		SELECT bet_id, COUNT(*)
		FROM bet_placements
		WHERE bet_id = ANY($1)
		GROUP BY bet_id`

	rows, err := s.pool.Query(ctx, query, betIDs)
	if err != nil {
		return nil, fmt.Errorf("postgres: count placements: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id string
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("postgres: scan placement count: %w", err)
		}
		counts[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: count placements: %w", err)
	}
	return counts, nil
}

// BetIDsWithPlacementsSince returns the distinct bet ids with placements in
// the half-open window [since, until).
func (s *PlacementStore) BetIDsWithPlacementsSince(ctx context.Context, since, until time.Time) ([]string, error) {
	const query = `
		SELECT DISTINCT bet_id
		FROM bet_placements
		WHERE created_at >= $1 AND created_at < $2`

	rows, err := s.pool.Query(ctx, query, since, until)
	if err != nil {
		return nil, fmt.Errorf("postgres: placements since %s: %w", since.Format(time.RFC3339), err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan placement bet id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: placements since %s: %w", since.Format(time.RFC3339), err)
	}
	return ids, nil
}

// HistoryByUser returns the user's placements joined with bet fields, newest
// first. The chosen option's text is extracted from the bet's options array.
func (s *PlacementStore) HistoryByUser(ctx context.Context, userID string) ([]domain.HistoryItem, error) {
	const query = `
		SELECT b.id, b.title, b.status,
		       COALESCE(b.options -> bp.option_idx ->> 'text', ''),
		       bp.amount, bp.payout, bp.created_at
		FROM bet_placements bp
		JOIN bets b ON b.id = bp.bet_id
		WHERE bp.user_id = $1
		ORDER BY bp.created_at DESC`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: history for user %s: %w", userID, err)
	}
	defer rows.Close()

	var items []domain.HistoryItem
	for rows.Next() {
		var (
			item   domain.HistoryItem
			status string
		)
		err := rows.Scan(&item.BetID, &item.Title, &status, &item.Option,
			&item.Amount, &item.Payout, &item.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan history item: %w", err)
		}
		item.Status = domain.BetStatus(status)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: history for user %s: %w", userID, err)
	}
	return items, nil
}

// Compile-time interface check.
var _ domain.PlacementStore = (*PlacementStore)(nil)
