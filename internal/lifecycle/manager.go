// Package lifecycle validates and executes bet state transitions: create,
// update-while-open, cancel, settle, and wager placement. Terminal
// transitions are guarded twice: a fast authorization/precondition check
// here, and a compare-and-set at the storage layer so concurrent attempts
// cannot both succeed.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openwager/betfeed/internal/domain"
	"github.com/openwager/betfeed/internal/metrics"
)

const (
	maxOptions   = 10
	maxTitleLen  = 200
	maxOptionLen = 100
)

// Manager owns all bet mutations. After a successful metadata transition it
// publishes a bet_updated cue on the bet's metadata topic; publish failures
// are logged, never surfaced, since the write itself already succeeded.
type Manager struct {
	bets       domain.BetStore
	placements domain.PlacementStore
	bus        domain.SignalBus
	logger     *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewManager creates a Manager with all required dependencies.
func NewManager(
	bets domain.BetStore,
	placements domain.PlacementStore,
	bus domain.SignalBus,
	logger *slog.Logger,
) *Manager {
	return &Manager{
		bets:       bets,
		placements: placements,
		bus:        bus,
		logger:     logger.With(slog.String("component", "lifecycle")),
		now:        time.Now,
	}
}

// CreateInput carries the payload for a new bet.
type CreateInput struct {
	Title       string
	Description string
	Options     []string
	ClosedAt    *time.Time
}

// Create validates the payload and inserts a new open bet owned by
// creatorID.
func (m *Manager) Create(ctx context.Context, creatorID string, in CreateInput) (domain.Bet, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Bet{}, domain.Validation("title", "must not be empty")
	}
	if len(title) > maxTitleLen {
		return domain.Bet{}, domain.Validation("title", "too long")
	}

	if len(in.Options) < 2 {
		return domain.Bet{}, domain.Validation("options", "at least two options are required")
	}
	if len(in.Options) > maxOptions {
		return domain.Bet{}, domain.Validation("options", "too many options")
	}

	options := make([]domain.BetOption, 0, len(in.Options))
	seen := make(map[string]bool, len(in.Options))
	for _, raw := range in.Options {
		text := strings.TrimSpace(raw)
		if text == "" {
			return domain.Bet{}, domain.Validation("options", "option text must not be empty")
		}
		if len(text) > maxOptionLen {
			return domain.Bet{}, domain.Validation("options", "option text too long")
		}
		if seen[text] {
			return domain.Bet{}, domain.Validation("options", fmt.Sprintf("duplicate option %q", text))
		}
		seen[text] = true
		options = append(options, domain.BetOption{Text: text})
	}

	if in.ClosedAt != nil && !in.ClosedAt.After(m.now()) {
		return domain.Bet{}, domain.Validation("closed_at", "close time must be in the future")
	}

	bet := domain.Bet{
		ID:          uuid.NewString(),
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Options:     options,
		CreatorID:   creatorID,
		Status:      domain.BetOpen,
		ClosedAt:    in.ClosedAt,
	}

	created, err := m.bets.Create(ctx, bet)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("lifecycle: create bet: %w", err)
	}

	m.logger.InfoContext(ctx, "bet created",
		slog.String("bet_id", created.ID),
		slog.String("creator_id", creatorID),
	)
	return created, nil
}

// UpdateInput carries the mutable fields of an open bet. Nil fields are left
// unchanged.
type UpdateInput struct {
	Title       *string
	Description *string
	ClosedAt    *time.Time
}

// Update patches title/description/close time on an open bet owned by the
// caller. The option list is immutable after creation.
func (m *Manager) Update(ctx context.Context, betID, callerID string, in UpdateInput) (domain.Bet, error) {
	if in.Title != nil {
		trimmed := strings.TrimSpace(*in.Title)
		if trimmed == "" {
			return domain.Bet{}, domain.Validation("title", "must not be empty")
		}
		if len(trimmed) > maxTitleLen {
			return domain.Bet{}, domain.Validation("title", "too long")
		}
		in.Title = &trimmed
	}
	if in.ClosedAt != nil && !in.ClosedAt.After(m.now()) {
		return domain.Bet{}, domain.Validation("closed_at", "close time must be in the future")
	}

	bet, err := m.bets.Update(ctx, betID, callerID, domain.BetPatch{
		Title:       in.Title,
		Description: in.Description,
		ClosedAt:    in.ClosedAt,
	})
	if err != nil {
		return domain.Bet{}, err
	}

	m.publishMeta(ctx, betID)
	return bet, nil
}

// Cancel transitions an open bet to cancelled. All wagers become
// refund-eligible; the refunds themselves are executed by the ledger side of
// the storage transition.
func (m *Manager) Cancel(ctx context.Context, betID, callerID string) (domain.Bet, error) {
	bet, err := m.bets.Cancel(ctx, betID, callerID)
	if err != nil {
		return domain.Bet{}, err
	}

	m.logger.InfoContext(ctx, "bet cancelled",
		slog.String("bet_id", betID),
	)
	m.publishMeta(ctx, betID)
	return bet, nil
}

// Settle declares the winning option on a closed, open bet owned by the
// caller. The storage procedure performs the status compare-and-set and the
// payout distribution atomically: of two concurrent calls exactly one
// succeeds and the other observes ErrBetNotOpen.
func (m *Manager) Settle(ctx context.Context, betID, callerID string, winningIdx int) (domain.SettleResult, error) {
	bet, err := m.bets.GetByID(ctx, betID)
	if err != nil {
		return domain.SettleResult{}, err
	}

	if bet.CreatorID != callerID {
		return domain.SettleResult{}, domain.ErrNotOwner
	}
	if bet.Status != domain.BetOpen {
		return domain.SettleResult{}, domain.ErrBetNotOpen
	}
	if !bet.Closed(m.now()) {
		return domain.SettleResult{}, domain.ErrBetNotClosed
	}
	if winningIdx < 0 || winningIdx >= len(bet.Options) {
		return domain.SettleResult{}, domain.ErrInvalidOption
	}

	res, err := m.bets.Settle(ctx, betID, winningIdx)
	if err != nil {
		return domain.SettleResult{}, err
	}

	m.logger.InfoContext(ctx, "bet settled",
		slog.String("bet_id", betID),
		slog.Int("winning_idx", winningIdx),
		slog.Int("winners", res.WinnerCount),
		slog.Int64("pot", res.TotalPot),
	)
	m.publishMeta(ctx, betID)
	return res, nil
}

// PlaceWager stakes amount on one option of an open bet. The pre-checks
// here give fast, precise errors; the storage procedure re-checks everything
// under a row lock, so a bet closing between the check and the call still
// fails safely.
func (m *Manager) PlaceWager(ctx context.Context, betID, userID string, optionIdx int, amount int64) (domain.Placement, error) {
	if amount <= 0 {
		return domain.Placement{}, domain.Validation("amount", "must be a positive integer")
	}

	bet, err := m.bets.GetByID(ctx, betID)
	if err != nil {
		return domain.Placement{}, err
	}
	if bet.Status != domain.BetOpen || bet.Closed(m.now()) {
		return domain.Placement{}, domain.ErrBetClosed
	}
	if optionIdx < 0 || optionIdx >= len(bet.Options) {
		return domain.Placement{}, domain.ErrInvalidOption
	}

	placement, err := m.placements.Place(ctx, betID, userID, optionIdx, amount)
	if err != nil {
		return domain.Placement{}, err
	}

	m.logger.InfoContext(ctx, "wager placed",
		slog.String("bet_id", betID),
		slog.String("user_id", userID),
		slog.Int64("amount", amount),
	)
	return placement, nil
}

// GetPlacement returns the caller's own wager on a bet, or ErrNotFound.
func (m *Manager) GetPlacement(ctx context.Context, betID, userID string) (domain.Placement, error) {
	return m.placements.GetByBetAndUser(ctx, betID, userID)
}

// publishMeta emits a bet_updated cue on the bet's metadata topic. The
// event carries no state; detail-view subscribers refetch on receipt.
func (m *Manager) publishMeta(ctx context.Context, betID string) {
	err := m.bus.Publish(ctx, domain.MetaTopic(betID), domain.EncodeEvent(domain.EventBetUpdated, betID))
	if err != nil {
		m.logger.WarnContext(ctx, "metadata publish failed",
			slog.String("bet_id", betID),
			slog.String("error", err.Error()),
		)
		return
	}
	metrics.EventsPublished.WithLabelValues(domain.EventBetUpdated).Inc()
}
