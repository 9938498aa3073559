// Package domain defines the core entities of the wagering feed (bets,
// placements, profiles) together with the store, cache, and messaging
// interfaces that the rest of the application is built against.
package domain

import "time"

// BetStatus is the lifecycle state of a bet. A bet is created open and
// terminates as either settled or cancelled; there are no other transitions.
type BetStatus string

const (
	BetOpen      BetStatus = "open"
	BetSettled   BetStatus = "settled"
	BetCancelled BetStatus = "cancelled"
)

// BetFilter selects the ordering/subset of a feed page.
type BetFilter string

const (
	FilterNewest     BetFilter = "newest"
	FilterEndingSoon BetFilter = "ending_soon"
	FilterSettled    BetFilter = "settled"
)

// ValidFilter reports whether f is one of the supported feed filters.
func ValidFilter(f BetFilter) bool {
	switch f {
	case FilterNewest, FilterEndingSoon, FilterSettled:
		return true
	}
	return false
}

// BetOption is a single choice on a bet. Options are ordered and immutable
// after creation; they are referenced everywhere else by index.
type BetOption struct {
	Text string `json:"text"`
}

// Bet is a proposition with mutually exclusive options open for wagering
// until its close time.
//
// Invariant: SettledOption is non-nil if and only if Status is BetSettled,
// and always indexes into Options.
type Bet struct {
	ID            string      `json:"id"`
	Title         string      `json:"title"`
	Description   string      `json:"description,omitempty"`
	Options       []BetOption `json:"options"`
	CreatorID     string      `json:"creator_id"`
	Status        BetStatus   `json:"status"`
	SettledOption *int        `json:"settled_option,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	ClosedAt      *time.Time  `json:"closed_at,omitempty"`
	SettledAt     *time.Time  `json:"settled_at,omitempty"`
}

// Closed reports whether the bet's close time has passed at the given
// instant. Bets without a close time never close on their own.
func (b Bet) Closed(now time.Time) bool {
	return b.ClosedAt != nil && !now.Before(*b.ClosedAt)
}

// CreatorSummary is the public slice of a creator's profile embedded in feed
// responses. AvatarURL is a short-lived signed URL resolved at read time and
// may be empty when the creator has no avatar.
type CreatorSummary struct {
	Username  string `json:"username"`
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// BetRow is a bet joined with its creator's profile fields, as returned by
// the feed page query. AvatarPath is the raw object path, not a URL.
type BetRow struct {
	Bet
	CreatorUsername   string
	CreatorFullName   string
	CreatorAvatarPath string
}

// BetSummary is the redacted list-view representation of a bet. It carries
// no options array, no creator id, and no settled option index.
type BetSummary struct {
	ID               string          `json:"id"`
	Title            string          `json:"title"`
	Description      string          `json:"description,omitempty"`
	Status           BetStatus       `json:"status"`
	OptionCount      int             `json:"option_count"`
	ParticipantCount int             `json:"participant_count"`
	CreatedAt        time.Time       `json:"created_at"`
	ClosedAt         *time.Time      `json:"closed_at,omitempty"`
	Creator          *CreatorSummary `json:"profiles,omitempty"`
}

// BetDetail is the full single-bet view: everything in the summary plus the
// ordered options and, once settled, the winning index.
type BetDetail struct {
	BetSummary
	Options       []BetOption `json:"options"`
	SettledOption *int        `json:"settled_option,omitempty"`
	SettledAt     *time.Time  `json:"settled_at,omitempty"`
}

// BetPatch carries the mutable fields of an open bet. Nil pointers leave the
// corresponding column untouched; the option list is never patchable.
type BetPatch struct {
	Title       *string
	Description *string
	ClosedAt    *time.Time
}
