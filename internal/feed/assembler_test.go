package feed

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openwager/betfeed/internal/domain"
)

type fakeBetStore struct {
	rows    []domain.BetRow
	bet     domain.Bet
	listErr error
	getErr  error

	gotFilter domain.BetFilter
	gotOpts   domain.ListOpts
}

func (f *fakeBetStore) Create(_ context.Context, bet domain.Bet) (domain.Bet, error) {
	return bet, nil
}

func (f *fakeBetStore) GetByID(_ context.Context, _ string) (domain.Bet, error) {
	return f.bet, f.getErr
}

func (f *fakeBetStore) ListPage(_ context.Context, filter domain.BetFilter, opts domain.ListOpts) ([]domain.BetRow, error) {
	f.gotFilter = filter
	f.gotOpts = opts
	return f.rows, f.listErr
}

func (f *fakeBetStore) Update(_ context.Context, _, _ string, _ domain.BetPatch) (domain.Bet, error) {
	return domain.Bet{}, nil
}

func (f *fakeBetStore) Cancel(_ context.Context, _, _ string) (domain.Bet, error) {
	return domain.Bet{}, nil
}

func (f *fakeBetStore) Settle(_ context.Context, _ string, _ int) (domain.SettleResult, error) {
	return domain.SettleResult{}, nil
}

type fakePlacementStore struct {
	counts   map[string]int
	countErr error
}

func (f *fakePlacementStore) Place(_ context.Context, _, _ string, _ int, _ int64) (domain.Placement, error) {
	return domain.Placement{}, nil
}

func (f *fakePlacementStore) GetByBetAndUser(_ context.Context, _, _ string) (domain.Placement, error) {
	return domain.Placement{}, domain.ErrNotFound
}

func (f *fakePlacementStore) CountByBet(_ context.Context, _ []string) (map[string]int, error) {
	return f.counts, f.countErr
}

func (f *fakePlacementStore) BetIDsWithPlacementsSince(_ context.Context, _, _ time.Time) ([]string, error) {
	return nil, nil
}

func (f *fakePlacementStore) HistoryByUser(_ context.Context, _ string) ([]domain.HistoryItem, error) {
	return nil, nil
}

type fakeProfileStore struct {
	profile domain.Profile
}

func (f *fakeProfileStore) GetByID(_ context.Context, _ string) (domain.Profile, error) {
	return f.profile, nil
}

func (f *fakeProfileStore) Update(_ context.Context, _ string, _ domain.ProfilePatch) (domain.Profile, error) {
	return f.profile, nil
}

type fakeURLCache struct {
	urls map[string]string
	err  error
}

func (f *fakeURLCache) Resolve(_ context.Context, paths []string) (map[string]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]string)
	for _, p := range paths {
		if url, ok := f.urls[p]; ok {
			out[p] = url
		}
	}
	return out, nil
}

func testRow(id, title, avatar string) domain.BetRow {
	return domain.BetRow{
		Bet: domain.Bet{
			ID:        id,
			Title:     title,
			Options:   []domain.BetOption{{Text: "yes"}, {Text: "no"}},
			CreatorID: "creator-1",
			Status:    domain.BetOpen,
			CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		CreatorUsername:   "alice",
		CreatorFullName:   "Alice A",
		CreatorAvatarPath: avatar,
	}
}

func newTestAssembler(bets *fakeBetStore, placements *fakePlacementStore, profiles *fakeProfileStore, urls *fakeURLCache) *Assembler {
	return NewAssembler(bets, placements, profiles, urls, 20, slog.New(slog.DiscardHandler))
}

func TestListPageMergesCountsAndAvatars(t *testing.T) {
	bets := &fakeBetStore{rows: []domain.BetRow{
		testRow("b1", "first", "avatars/alice.png"),
		testRow("b2", "second", ""),
	}}
	placements := &fakePlacementStore{counts: map[string]int{"b1": 7}}
	urls := &fakeURLCache{urls: map[string]string{"avatars/alice.png": "https://signed/alice"}}

	a := newTestAssembler(bets, placements, &fakeProfileStore{}, urls)

	page, err := a.ListPage(context.Background(), 1, domain.FilterNewest)
	require.NoError(t, err)
	require.Len(t, page, 2)

	assert.Equal(t, 7, page[0].ParticipantCount)
	assert.Equal(t, 0, page[1].ParticipantCount, "bets without placements default to zero")
	assert.Equal(t, "https://signed/alice", page[0].Creator.AvatarURL)
	assert.Empty(t, page[1].Creator.AvatarURL)
	assert.Equal(t, 2, page[0].OptionCount)
}

func TestListPagePagination(t *testing.T) {
	bets := &fakeBetStore{}
	a := newTestAssembler(bets, &fakePlacementStore{}, &fakeProfileStore{}, &fakeURLCache{})

	_, err := a.ListPage(context.Background(), 3, domain.FilterEndingSoon)
	require.NoError(t, err)

	assert.Equal(t, domain.FilterEndingSoon, bets.gotFilter)
	assert.Equal(t, domain.ListOpts{Limit: 20, Offset: 40}, bets.gotOpts)
}

func TestListPageNormalizesBadInputs(t *testing.T) {
	bets := &fakeBetStore{}
	a := newTestAssembler(bets, &fakePlacementStore{}, &fakeProfileStore{}, &fakeURLCache{})

	page, err := a.ListPage(context.Background(), -4, domain.BetFilter("bogus"))
	require.NoError(t, err)

	assert.NotNil(t, page)
	assert.Empty(t, page)
	assert.Equal(t, domain.FilterNewest, bets.gotFilter)
	assert.Equal(t, 0, bets.gotOpts.Offset)
}

func TestListPageAbortsOnEnrichmentFailure(t *testing.T) {
	bets := &fakeBetStore{rows: []domain.BetRow{testRow("b1", "first", "avatars/a.png")}}
	placements := &fakePlacementStore{countErr: errors.New("db down")}
	a := newTestAssembler(bets, placements, &fakeProfileStore{}, &fakeURLCache{})

	_, err := a.ListPage(context.Background(), 1, domain.FilterNewest)
	require.Error(t, err)
	assert.ErrorContains(t, err, "participation counts")
}

func TestGetDetailOpenBetHidesSettlement(t *testing.T) {
	idx := 1
	settledAt := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	bets := &fakeBetStore{bet: domain.Bet{
		ID:            "b1",
		Title:         "first",
		Options:       []domain.BetOption{{Text: "yes"}, {Text: "no"}},
		CreatorID:     "creator-1",
		Status:        domain.BetOpen,
		SettledOption: &idx,
		SettledAt:     &settledAt,
	}}
	profiles := &fakeProfileStore{profile: domain.Profile{
		ID: "creator-1", Username: "alice", FullName: "Alice A", AvatarPath: "avatars/a.png",
	}}
	urls := &fakeURLCache{urls: map[string]string{"avatars/a.png": "https://signed/a"}}

	a := newTestAssembler(bets, &fakePlacementStore{counts: map[string]int{"b1": 3}}, profiles, urls)

	detail, err := a.GetDetail(context.Background(), "b1")
	require.NoError(t, err)

	assert.Nil(t, detail.SettledOption)
	assert.Nil(t, detail.SettledAt)
	assert.Equal(t, 3, detail.ParticipantCount)
	assert.Equal(t, "alice", detail.Creator.Username)
	assert.Equal(t, "https://signed/a", detail.Creator.AvatarURL)
}

func TestGetDetailSettledBetExposesWinner(t *testing.T) {
	idx := 0
	bets := &fakeBetStore{bet: domain.Bet{
		ID:            "b1",
		Options:       []domain.BetOption{{Text: "yes"}, {Text: "no"}},
		CreatorID:     "creator-1",
		Status:        domain.BetSettled,
		SettledOption: &idx,
	}}
	a := newTestAssembler(bets, &fakePlacementStore{}, &fakeProfileStore{}, &fakeURLCache{})

	detail, err := a.GetDetail(context.Background(), "b1")
	require.NoError(t, err)

	require.NotNil(t, detail.SettledOption)
	assert.Equal(t, 0, *detail.SettledOption)
	assert.Len(t, detail.Options, 2)
}

func TestGetDetailNotFound(t *testing.T) {
	bets := &fakeBetStore{getErr: domain.ErrNotFound}
	a := newTestAssembler(bets, &fakePlacementStore{}, &fakeProfileStore{}, &fakeURLCache{})

	_, err := a.GetDetail(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
