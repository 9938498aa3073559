package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/openwager/betfeed/internal/domain"
	"github.com/openwager/betfeed/internal/lifecycle"
	"github.com/openwager/betfeed/internal/server/middleware"
)

// FeedService defines the read side that the bet handler requires. It is
// declared locally so the handler package does not depend on the concrete
// feed implementation.
type FeedService interface {
	ListPage(ctx context.Context, page int, filter domain.BetFilter) ([]domain.BetSummary, error)
	GetDetail(ctx context.Context, id string) (domain.BetDetail, error)
}

// BetService defines the write side: lifecycle transitions and wagers.
type BetService interface {
	Create(ctx context.Context, creatorID string, in lifecycle.CreateInput) (domain.Bet, error)
	Update(ctx context.Context, betID, callerID string, in lifecycle.UpdateInput) (domain.Bet, error)
	Cancel(ctx context.Context, betID, callerID string) (domain.Bet, error)
	Settle(ctx context.Context, betID, callerID string, winningIdx int) (domain.SettleResult, error)
	PlaceWager(ctx context.Context, betID, userID string, optionIdx int, amount int64) (domain.Placement, error)
	GetPlacement(ctx context.Context, betID, userID string) (domain.Placement, error)
}

// BetHandler serves the bet feed and bet lifecycle endpoints.
type BetHandler struct {
	feed   FeedService
	bets   BetService
	logger *slog.Logger
}

// NewBetHandler creates a BetHandler with the given services and logger.
func NewBetHandler(feed FeedService, bets BetService, logger *slog.Logger) *BetHandler {
	return &BetHandler{
		feed:   feed,
		bets:   bets,
		logger: logger,
	}
}

// listBetsResponse wraps one feed page.
type listBetsResponse struct {
	Bets   []domain.BetSummary `json:"bets"`
	Page   int                 `json:"page"`
	Filter domain.BetFilter    `json:"filter"`
}

// ListBets returns one page of the bet feed.
// GET /api/bets?page=1&filter=newest
func (h *BetHandler) ListBets(w http.ResponseWriter, r *http.Request) {
	page := parsePage(r)
	filter := domain.BetFilter(r.URL.Query().Get("filter"))
	if filter == "" {
		filter = domain.FilterNewest
	}
	if !domain.ValidFilter(filter) {
		writeError(w, http.StatusBadRequest, "unknown filter")
		return
	}

	bets, err := h.feed.ListPage(r.Context(), page, filter)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list bets failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load feed")
		return
	}

	writeJSON(w, http.StatusOK, listBetsResponse{
		Bets:   bets,
		Page:   page,
		Filter: filter,
	})
}

// GetBet returns the full detail view of a single bet.
// GET /api/bets/{id}
func (h *BetHandler) GetBet(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing bet id")
		return
	}

	detail, err := h.feed.GetDetail(r.Context(), id)
	if err != nil {
		h.logFailure(r, "get bet", id, err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

// createBetRequest is the payload for a new bet.
type createBetRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Options     []string   `json:"options"`
	ClosedAt    *time.Time `json:"closed_at"`
}

// CreateBet opens a new bet owned by the caller.
// POST /api/bets
func (h *BetHandler) CreateBet(w http.ResponseWriter, r *http.Request) {
	var req createBetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	bet, err := h.bets.Create(r.Context(), middleware.UserID(r.Context()), lifecycle.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Options:     req.Options,
		ClosedAt:    req.ClosedAt,
	})
	if err != nil {
		h.logFailure(r, "create bet", "", err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, bet)
}

// updateBetRequest patches an open bet. Absent fields are left unchanged.
type updateBetRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	ClosedAt    *time.Time `json:"closed_at"`
}

// UpdateBet edits an open bet owned by the caller.
// PATCH /api/bets/{id}
func (h *BetHandler) UpdateBet(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	var req updateBetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	bet, err := h.bets.Update(r.Context(), id, middleware.UserID(r.Context()), lifecycle.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		ClosedAt:    req.ClosedAt,
	})
	if err != nil {
		h.logFailure(r, "update bet", id, err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, bet)
}

// CancelBet cancels an open bet owned by the caller, refunding all wagers.
// POST /api/bets/{id}/cancel
func (h *BetHandler) CancelBet(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	bet, err := h.bets.Cancel(r.Context(), id, middleware.UserID(r.Context()))
	if err != nil {
		h.logFailure(r, "cancel bet", id, err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, bet)
}

// settleBetRequest names the winning option.
type settleBetRequest struct {
	Option int `json:"option"`
}

// SettleBet declares the winning option on a closed bet owned by the caller.
// POST /api/bets/{id}/settle
func (h *BetHandler) SettleBet(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	var req settleBetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	res, err := h.bets.Settle(r.Context(), id, middleware.UserID(r.Context()), req.Option)
	if err != nil {
		h.logFailure(r, "settle bet", id, err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// placeWagerRequest stakes an amount on one option.
type placeWagerRequest struct {
	Option int   `json:"option"`
	Amount int64 `json:"amount"`
}

// PlaceWager stakes coins on one option of an open bet.
// POST /api/bets/{id}/placement
func (h *BetHandler) PlaceWager(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	var req placeWagerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	placement, err := h.bets.PlaceWager(r.Context(), id, middleware.UserID(r.Context()), req.Option, req.Amount)
	if err != nil {
		h.logFailure(r, "place wager", id, err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, placement)
}

// GetPlacement returns the caller's own wager on a bet, if any.
// GET /api/bets/{id}/placement
func (h *BetHandler) GetPlacement(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	placement, err := h.bets.GetPlacement(r.Context(), id, middleware.UserID(r.Context()))
	if err != nil {
		h.logFailure(r, "get placement", id, err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, placement)
}

// logFailure logs handler errors at a severity matching who caused them:
// client-attributable outcomes at debug, everything else at error.
func (h *BetHandler) logFailure(r *http.Request, op, betID string, err error) {
	attrs := []any{slog.String("error", err.Error())}
	if betID != "" {
		attrs = append(attrs, slog.String("bet_id", betID))
	}

	if domain.IsValidation(err) || domain.IsStateConflict(err) ||
		errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrNotOwner) ||
		errors.Is(err, domain.ErrInvalidOption) {
		h.logger.DebugContext(r.Context(), "handler: "+op+" rejected", attrs...)
		return
	}
	h.logger.ErrorContext(r.Context(), "handler: "+op+" failed", attrs...)
}
