package lifecycle

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openwager/betfeed/internal/domain"
)

type stubBetStore struct {
	bet       domain.Bet
	getErr    error
	settleErr error
	created   *domain.Bet
	settled   bool
	cancelled bool
}

func (s *stubBetStore) Create(_ context.Context, bet domain.Bet) (domain.Bet, error) {
	s.created = &bet
	return bet, nil
}

func (s *stubBetStore) GetByID(_ context.Context, _ string) (domain.Bet, error) {
	return s.bet, s.getErr
}

func (s *stubBetStore) ListPage(_ context.Context, _ domain.BetFilter, _ domain.ListOpts) ([]domain.BetRow, error) {
	return nil, nil
}

func (s *stubBetStore) Update(_ context.Context, id, _ string, patch domain.BetPatch) (domain.Bet, error) {
	out := s.bet
	out.ID = id
	if patch.Title != nil {
		out.Title = *patch.Title
	}
	return out, nil
}

func (s *stubBetStore) Cancel(_ context.Context, id, _ string) (domain.Bet, error) {
	s.cancelled = true
	out := s.bet
	out.ID = id
	out.Status = domain.BetCancelled
	return out, nil
}

func (s *stubBetStore) Settle(_ context.Context, id string, winningIdx int) (domain.SettleResult, error) {
	if s.settleErr != nil {
		return domain.SettleResult{}, s.settleErr
	}
	s.settled = true
	return domain.SettleResult{BetID: id, WinningOption: winningIdx, WinnerCount: 2, TotalPot: 500}, nil
}

type stubPlacementStore struct {
	placeErr  error
	placement domain.Placement
}

func (s *stubPlacementStore) Place(_ context.Context, betID, userID string, optionIdx int, amount int64) (domain.Placement, error) {
	if s.placeErr != nil {
		return domain.Placement{}, s.placeErr
	}
	s.placement = domain.Placement{BetID: betID, UserID: userID, OptionIdx: optionIdx, Amount: amount}
	return s.placement, nil
}

func (s *stubPlacementStore) GetByBetAndUser(_ context.Context, _, _ string) (domain.Placement, error) {
	return s.placement, nil
}

func (s *stubPlacementStore) CountByBet(_ context.Context, _ []string) (map[string]int, error) {
	return nil, nil
}

func (s *stubPlacementStore) BetIDsWithPlacementsSince(_ context.Context, _, _ time.Time) ([]string, error) {
	return nil, nil
}

func (s *stubPlacementStore) HistoryByUser(_ context.Context, _ string) ([]domain.HistoryItem, error) {
	return nil, nil
}

type recordingBus struct {
	mu       sync.Mutex
	channels []string
	payloads [][]byte
}

func (b *recordingBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channels = append(b.channels, channel)
	b.payloads = append(b.payloads, payload)
	return nil
}

func (b *recordingBus) Subscribe(_ context.Context, _ string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func newTestManager(bets *stubBetStore, placements *stubPlacementStore, bus *recordingBus) *Manager {
	return NewManager(bets, placements, bus, slog.New(slog.DiscardHandler))
}

func fixedNow() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func openBet(creator string, closedAt *time.Time) domain.Bet {
	return domain.Bet{
		ID:        "b1",
		Title:     "will it rain",
		Options:   []domain.BetOption{{Text: "yes"}, {Text: "no"}},
		CreatorID: creator,
		Status:    domain.BetOpen,
		ClosedAt:  closedAt,
	}
}

func TestCreateValidation(t *testing.T) {
	m := newTestManager(&stubBetStore{}, &stubPlacementStore{}, &recordingBus{})
	m.now = fixedNow

	past := fixedNow().Add(-time.Hour)
	cases := []struct {
		name string
		in   CreateInput
	}{
		{"empty title", CreateInput{Title: "  ", Options: []string{"a", "b"}}},
		{"one option", CreateInput{Title: "t", Options: []string{"only"}}},
		{"blank option", CreateInput{Title: "t", Options: []string{"a", " "}}},
		{"duplicate options", CreateInput{Title: "t", Options: []string{"a", "a"}}},
		{"close time in the past", CreateInput{Title: "t", Options: []string{"a", "b"}, ClosedAt: &past}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := m.Create(context.Background(), "u1", tc.in)
			assert.True(t, domain.IsValidation(err), "want validation error, got %v", err)
		})
	}
}

func TestCreateAssignsIDAndOpensBet(t *testing.T) {
	bets := &stubBetStore{}
	m := newTestManager(bets, &stubPlacementStore{}, &recordingBus{})
	m.now = fixedNow

	future := fixedNow().Add(time.Hour)
	bet, err := m.Create(context.Background(), "u1", CreateInput{
		Title:    "  will it rain  ",
		Options:  []string{" yes ", "no"},
		ClosedAt: &future,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, bet.ID)
	assert.Equal(t, "will it rain", bet.Title)
	assert.Equal(t, domain.BetOpen, bet.Status)
	assert.Equal(t, "u1", bet.CreatorID)
	assert.Equal(t, []domain.BetOption{{Text: "yes"}, {Text: "no"}}, bet.Options)
	require.NotNil(t, bets.created)
}

func TestUpdatePublishesMetadataEvent(t *testing.T) {
	bus := &recordingBus{}
	bets := &stubBetStore{bet: openBet("u1", nil)}
	m := newTestManager(bets, &stubPlacementStore{}, bus)
	m.now = fixedNow

	title := "revised"
	_, err := m.Update(context.Background(), "b1", "u1", UpdateInput{Title: &title})
	require.NoError(t, err)

	require.Len(t, bus.channels, 1)
	assert.Equal(t, domain.MetaTopic("b1"), bus.channels[0])

	ev, err := domain.DecodeEvent(bus.payloads[0])
	require.NoError(t, err)
	assert.Equal(t, domain.EventBetUpdated, ev.Type)
	assert.Equal(t, "b1", ev.BetID)
}

func TestSettleRejectsNonOwner(t *testing.T) {
	bets := &stubBetStore{bet: openBet("u1", nil)}
	m := newTestManager(bets, &stubPlacementStore{}, &recordingBus{})
	m.now = fixedNow

	_, err := m.Settle(context.Background(), "b1", "intruder", 0)
	assert.ErrorIs(t, err, domain.ErrNotOwner)
	assert.False(t, bets.settled)
}

func TestSettleRejectsBeforeClose(t *testing.T) {
	future := fixedNow().Add(time.Hour)
	bets := &stubBetStore{bet: openBet("u1", &future)}
	m := newTestManager(bets, &stubPlacementStore{}, &recordingBus{})
	m.now = fixedNow

	_, err := m.Settle(context.Background(), "b1", "u1", 0)
	assert.ErrorIs(t, err, domain.ErrBetNotClosed)
}

func TestSettleRejectsOptionOutOfRange(t *testing.T) {
	past := fixedNow().Add(-time.Hour)
	bets := &stubBetStore{bet: openBet("u1", &past)}
	m := newTestManager(bets, &stubPlacementStore{}, &recordingBus{})
	m.now = fixedNow

	_, err := m.Settle(context.Background(), "b1", "u1", 5)
	assert.ErrorIs(t, err, domain.ErrInvalidOption)
}

func TestSettleSuccessPublishesAndReturnsTotals(t *testing.T) {
	past := fixedNow().Add(-time.Hour)
	bus := &recordingBus{}
	bets := &stubBetStore{bet: openBet("u1", &past)}
	m := newTestManager(bets, &stubPlacementStore{}, bus)
	m.now = fixedNow

	res, err := m.Settle(context.Background(), "b1", "u1", 1)
	require.NoError(t, err)

	assert.Equal(t, 1, res.WinningOption)
	assert.Equal(t, 2, res.WinnerCount)
	assert.Equal(t, int64(500), res.TotalPot)
	require.Len(t, bus.channels, 1)
	assert.Equal(t, domain.MetaTopic("b1"), bus.channels[0])
}

func TestSettleLoserOfRaceSeesConflict(t *testing.T) {
	// The storage compare-and-set already moved the bet out of open.
	past := fixedNow().Add(-time.Hour)
	bus := &recordingBus{}
	bets := &stubBetStore{bet: openBet("u1", &past), settleErr: domain.ErrBetNotOpen}
	m := newTestManager(bets, &stubPlacementStore{}, bus)
	m.now = fixedNow

	_, err := m.Settle(context.Background(), "b1", "u1", 0)
	assert.ErrorIs(t, err, domain.ErrBetNotOpen)
	assert.Empty(t, bus.channels, "no event published for a failed transition")
}

func TestCancelPublishesMetadataEvent(t *testing.T) {
	bus := &recordingBus{}
	bets := &stubBetStore{bet: openBet("u1", nil)}
	m := newTestManager(bets, &stubPlacementStore{}, bus)
	m.now = fixedNow

	bet, err := m.Cancel(context.Background(), "b1", "u1")
	require.NoError(t, err)

	assert.Equal(t, domain.BetCancelled, bet.Status)
	assert.True(t, bets.cancelled)
	require.Len(t, bus.channels, 1)
	assert.Equal(t, domain.MetaTopic("b1"), bus.channels[0])
}

func TestPlaceWagerValidatesAmount(t *testing.T) {
	m := newTestManager(&stubBetStore{bet: openBet("u1", nil)}, &stubPlacementStore{}, &recordingBus{})
	m.now = fixedNow

	_, err := m.PlaceWager(context.Background(), "b1", "u2", 0, 0)
	assert.True(t, domain.IsValidation(err))
}

func TestPlaceWagerRejectsClosedBet(t *testing.T) {
	past := fixedNow().Add(-time.Minute)
	m := newTestManager(&stubBetStore{bet: openBet("u1", &past)}, &stubPlacementStore{}, &recordingBus{})
	m.now = fixedNow

	_, err := m.PlaceWager(context.Background(), "b1", "u2", 0, 50)
	assert.ErrorIs(t, err, domain.ErrBetClosed)
}

func TestPlaceWagerRejectsOptionOutOfRange(t *testing.T) {
	m := newTestManager(&stubBetStore{bet: openBet("u1", nil)}, &stubPlacementStore{}, &recordingBus{})
	m.now = fixedNow

	_, err := m.PlaceWager(context.Background(), "b1", "u2", 9, 50)
	assert.ErrorIs(t, err, domain.ErrInvalidOption)
}

func TestPlaceWagerSurfacesStorageOutcome(t *testing.T) {
	placements := &stubPlacementStore{placeErr: domain.ErrInsufficientBalance}
	m := newTestManager(&stubBetStore{bet: openBet("u1", nil)}, placements, &recordingBus{})
	m.now = fixedNow

	_, err := m.PlaceWager(context.Background(), "b1", "u2", 0, 1_000_000)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
}

func TestPlaceWagerSuccess(t *testing.T) {
	placements := &stubPlacementStore{}
	m := newTestManager(&stubBetStore{bet: openBet("u1", nil)}, placements, &recordingBus{})
	m.now = fixedNow

	p, err := m.PlaceWager(context.Background(), "b1", "u2", 1, 75)
	require.NoError(t, err)

	assert.Equal(t, "b1", p.BetID)
	assert.Equal(t, "u2", p.UserID)
	assert.Equal(t, 1, p.OptionIdx)
	assert.Equal(t, int64(75), p.Amount)
}
