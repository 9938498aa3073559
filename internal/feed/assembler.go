// Package feed assembles denormalized, paginated bet-feed pages: bet rows
// joined with creator profiles, merged with live participation counts and
// short-lived signed avatar URLs.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/openwager/betfeed/internal/domain"
	"github.com/openwager/betfeed/internal/metrics"
)

// Assembler builds feed pages and bet detail views. Any upstream failure
// aborts the whole page; a partially merged page is never returned.
type Assembler struct {
	bets       domain.BetStore
	placements domain.PlacementStore
	profiles   domain.ProfileStore
	urls       domain.URLCache
	pageSize   int
	logger     *slog.Logger
}

// NewAssembler creates an Assembler with the given page size.
func NewAssembler(
	bets domain.BetStore,
	placements domain.PlacementStore,
	profiles domain.ProfileStore,
	urls domain.URLCache,
	pageSize int,
	logger *slog.Logger,
) *Assembler {
	return &Assembler{
		bets:       bets,
		placements: placements,
		profiles:   profiles,
		urls:       urls,
		pageSize:   pageSize,
		logger:     logger.With(slog.String("component", "feed")),
	}
}

// ListPage returns one redacted feed page. Pages are 1-based; non-positive
// page numbers are normalized to 1. Unknown filters fall back to newest.
func (a *Assembler) ListPage(ctx context.Context, page int, filter domain.BetFilter) ([]domain.BetSummary, error) {
	if page < 1 {
		page = 1
	}
	if !domain.ValidFilter(filter) {
		filter = domain.FilterNewest
	}

	rows, err := a.bets.ListPage(ctx, filter, domain.ListOpts{
		Limit:  a.pageSize,
		Offset: (page - 1) * a.pageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("feed: list page %d: %w", page, err)
	}
	if len(rows) == 0 {
		metrics.FeedPages.WithLabelValues(string(filter)).Inc()
		return []domain.BetSummary{}, nil
	}

	betIDs := make([]string, 0, len(rows))
	avatarPaths := make([]string, 0, len(rows))
	for _, r := range rows {
		betIDs = append(betIDs, r.ID)
		if r.CreatorAvatarPath != "" {
			avatarPaths = append(avatarPaths, r.CreatorAvatarPath)
		}
	}

	counts, urls, err := a.fetchEnrichments(ctx, betIDs, avatarPaths)
	if err != nil {
		return nil, err
	}

	summaries := make([]domain.BetSummary, 0, len(rows))
	for _, r := range rows {
		summaries = append(summaries, summarize(r, counts[r.ID], urls[r.CreatorAvatarPath]))
	}

	metrics.FeedPages.WithLabelValues(string(filter)).Inc()
	return summaries, nil
}

// GetDetail returns the full single-bet view: options included, and the
// winning index once settled.
func (a *Assembler) GetDetail(ctx context.Context, id string) (domain.BetDetail, error) {
	bet, err := a.bets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.BetDetail{}, domain.ErrNotFound
		}
		return domain.BetDetail{}, fmt.Errorf("feed: get bet %s: %w", id, err)
	}

	var (
		counts  map[string]int
		creator domain.Profile
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		counts, err = a.placements.CountByBet(gctx, []string{id})
		if err != nil {
			return fmt.Errorf("feed: count for bet %s: %w", id, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		creator, err = a.profiles.GetByID(gctx, bet.CreatorID)
		if err != nil {
			return fmt.Errorf("feed: creator for bet %s: %w", id, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.BetDetail{}, err
	}

	urls, err := a.urls.Resolve(ctx, []string{creator.AvatarPath})
	if err != nil {
		return domain.BetDetail{}, fmt.Errorf("feed: avatar for bet %s: %w", id, err)
	}

	detail := domain.BetDetail{
		BetSummary: domain.BetSummary{
			ID:               bet.ID,
			Title:            bet.Title,
			Description:      bet.Description,
			Status:           bet.Status,
			OptionCount:      len(bet.Options),
			ParticipantCount: counts[bet.ID],
			CreatedAt:        bet.CreatedAt,
			ClosedAt:         bet.ClosedAt,
		},
		Options: bet.Options,
	}
	if bet.Status == domain.BetSettled {
		detail.SettledOption = bet.SettledOption
		detail.SettledAt = bet.SettledAt
	}
	detail.Creator = &domain.CreatorSummary{
		Username:  creator.Username,
		FullName:  creator.FullName,
		AvatarURL: urls[creator.AvatarPath],
	}

	return detail, nil
}

// fetchEnrichments retrieves participation counts and signed avatar URLs
// concurrently. Bets absent from the counts map simply have zero
// participants; paths absent from the URL map stay unresolved.
func (a *Assembler) fetchEnrichments(ctx context.Context, betIDs, avatarPaths []string) (map[string]int, map[string]string, error) {
	var (
		counts map[string]int
		urls   map[string]string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		counts, err = a.placements.CountByBet(gctx, betIDs)
		if err != nil {
			return fmt.Errorf("feed: participation counts: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		urls, err = a.urls.Resolve(gctx, avatarPaths)
		if err != nil {
			return fmt.Errorf("feed: avatar urls: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return counts, urls, nil
}

// summarize applies the list-view redaction: no options array, no creator
// id, no settled option index.
func summarize(r domain.BetRow, count int, avatarURL string) domain.BetSummary {
	return domain.BetSummary{
		ID:               r.ID,
		Title:            r.Title,
		Description:      r.Description,
		Status:           r.Status,
		OptionCount:      len(r.Options),
		ParticipantCount: count,
		CreatedAt:        r.CreatedAt,
		ClosedAt:         r.ClosedAt,
		Creator: &domain.CreatorSummary{
			Username:  r.CreatorUsername,
			FullName:  r.CreatorFullName,
			AvatarURL: avatarURL,
		},
	}
}
