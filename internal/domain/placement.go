package domain

import "time"

// Placement is one user's single stake on one option of one bet. The
// (BetID, UserID) pair is the identity: a user may wager at most once per
// bet. Payout stays nil until the parent bet settles; after settlement it is
// the credited amount, with zero meaning the wager lost.
type Placement struct {
	BetID     string    `json:"bet_id"`
	UserID    string    `json:"user_id"`
	OptionIdx int       `json:"option_idx"`
	Amount    int64     `json:"amount"`
	Payout    *int64    `json:"payout,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryItem is a placement joined with its parent bet, shaped for the
// caller's wager-history view.
type HistoryItem struct {
	BetID     string    `json:"id"`
	Title     string    `json:"title"`
	Status    BetStatus `json:"status"`
	Option    string    `json:"option"`
	Amount    int64     `json:"amount"`
	Payout    *int64    `json:"payout,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SettleResult is the summary returned by the atomic settle operation. The
// payout math happens inside the storage procedure; this core only relays
// the totals.
type SettleResult struct {
	BetID         string `json:"bet_id"`
	WinningOption int    `json:"settled_option"`
	WinnerCount   int    `json:"winner_count"`
	TotalPot      int64  `json:"total_pot"`
}
