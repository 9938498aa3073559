package domain

import (
	"context"
	"time"
)

// ListOpts carries offset pagination parameters for store queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// BetStore persists bets and executes their state transitions. The
// conditional writes (Update, Cancel, Settle) enforce ownership and the
// open-only precondition at the storage layer so that two concurrent
// transition attempts cannot both succeed.
type BetStore interface {
	Create(ctx context.Context, bet Bet) (Bet, error)
	GetByID(ctx context.Context, id string) (Bet, error)

	// ListPage returns one feed page of bets joined with creator profile
	// fields, ordered per the filter.
	ListPage(ctx context.Context, filter BetFilter, opts ListOpts) ([]BetRow, error)

	// Update patches an open bet owned by creatorID. Returns ErrNotFound if
	// the bet does not exist, ErrNotOwner if owned by someone else, and
	// ErrBetNotOpen once the bet has left the open state.
	Update(ctx context.Context, id, creatorID string, patch BetPatch) (Bet, error)

	// Cancel transitions an open bet to cancelled. Error contract matches
	// Update.
	Cancel(ctx context.Context, id, creatorID string) (Bet, error)

	// Settle invokes the atomic settle_bet procedure: compare-and-set the
	// status from open to settled, record the winning index, and distribute
	// payouts. Exactly one of two concurrent calls succeeds; the loser gets
	// ErrBetNotOpen.
	Settle(ctx context.Context, id string, winningIdx int) (SettleResult, error)
}

// PlacementStore persists wagers and answers the batched aggregation
// queries used by the feed and the change detector.
type PlacementStore interface {
	// Place invokes the atomic place_wager procedure: balance check, debit,
	// and insert in one unit. Domain outcomes surface as
	// ErrInsufficientBalance, ErrBetClosed, or ErrAlreadyPlaced.
	Place(ctx context.Context, betID, userID string, optionIdx int, amount int64) (Placement, error)

	// GetByBetAndUser returns the caller's wager on a bet, or ErrNotFound.
	GetByBetAndUser(ctx context.Context, betID, userID string) (Placement, error)

	// CountByBet returns participation counts for the given bets in one
	// query. Bets with zero placements are absent from the result.
	CountByBet(ctx context.Context, betIDs []string) (map[string]int, error)

	// BetIDsWithPlacementsSince returns the distinct bet ids that received a
	// placement in the half-open window [since, until).
	BetIDsWithPlacementsSince(ctx context.Context, since, until time.Time) ([]string, error)

	// HistoryByUser returns the user's placements joined with bet fields,
	// newest first.
	HistoryByUser(ctx context.Context, userID string) ([]HistoryItem, error)
}

// ProfileStore persists user profiles.
type ProfileStore interface {
	GetByID(ctx context.Context, id string) (Profile, error)
	Update(ctx context.Context, id string, patch ProfilePatch) (Profile, error)
}
