package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/openwager/betfeed/internal/domain"
	"github.com/openwager/betfeed/internal/server/middleware"
)

// ProfileService defines the profile operations the user handler requires.
type ProfileService interface {
	GetByID(ctx context.Context, id string) (domain.Profile, error)
	Update(ctx context.Context, id string, patch domain.ProfilePatch) (domain.Profile, error)
}

// HistoryService returns the caller's wager history.
type HistoryService interface {
	HistoryByUser(ctx context.Context, userID string) ([]domain.HistoryItem, error)
}

// AvatarResolver turns stored avatar paths into signed URLs.
type AvatarResolver interface {
	Resolve(ctx context.Context, paths []string) (map[string]string, error)
}

// UserHandler serves the authenticated user's profile and wager history.
type UserHandler struct {
	profiles ProfileService
	history  HistoryService
	avatars  AvatarResolver
	logger   *slog.Logger
}

// NewUserHandler creates a UserHandler with the given services and logger.
func NewUserHandler(profiles ProfileService, history HistoryService, avatars AvatarResolver, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		profiles: profiles,
		history:  history,
		avatars:  avatars,
		logger:   logger,
	}
}

// GetMe returns the caller's profile with a signed avatar URL.
// GET /api/user/me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	profile, err := h.profiles.GetByID(r.Context(), userID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: get profile failed",
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	h.attachAvatar(r.Context(), &profile)
	writeJSON(w, http.StatusOK, profile)
}

// updateMeRequest patches the caller's display fields. Absent fields are
// left unchanged.
type updateMeRequest struct {
	FullName *string `json:"full_name"`
	Username *string `json:"username"`
}

// UpdateMe edits the caller's display name and username. Balance and win
// counters are not editable through this endpoint.
// PATCH /api/user/me
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req updateMeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	userID := middleware.UserID(r.Context())
	profile, err := h.profiles.Update(r.Context(), userID, domain.ProfilePatch{
		FullName: req.FullName,
		Username: req.Username,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: update profile failed",
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	h.attachAvatar(r.Context(), &profile)
	writeJSON(w, http.StatusOK, profile)
}

// historyResponse wraps the wager-history list.
type historyResponse struct {
	Placements []domain.HistoryItem `json:"placements"`
}

// GetHistory returns the caller's wagers joined with bet details, newest
// first.
// GET /api/user/me/history
func (h *UserHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	items, err := h.history.HistoryByUser(r.Context(), userID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: wager history failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if items == nil {
		items = []domain.HistoryItem{}
	}

	writeJSON(w, http.StatusOK, historyResponse{Placements: items})
}

// attachAvatar resolves the profile's avatar path to a signed URL. Failures
// are logged and the profile served without a URL; the avatar is cosmetic.
func (h *UserHandler) attachAvatar(ctx context.Context, p *domain.Profile) {
	if p.AvatarPath == "" {
		return
	}
	urls, err := h.avatars.Resolve(ctx, []string{p.AvatarPath})
	if err != nil {
		h.logger.WarnContext(ctx, "handler: avatar resolve failed",
			slog.String("error", err.Error()),
		)
		return
	}
	p.AvatarURL = urls[p.AvatarPath]
}
