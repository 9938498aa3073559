package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openwager/betfeed/internal/domain"
	"github.com/openwager/betfeed/internal/lifecycle"
	"github.com/openwager/betfeed/internal/server/middleware"
)

type fakeFeed struct {
	page    []domain.BetSummary
	detail  domain.BetDetail
	listErr error
	getErr  error

	gotPage   int
	gotFilter domain.BetFilter
}

func (f *fakeFeed) ListPage(_ context.Context, page int, filter domain.BetFilter) ([]domain.BetSummary, error) {
	f.gotPage = page
	f.gotFilter = filter
	return f.page, f.listErr
}

func (f *fakeFeed) GetDetail(_ context.Context, _ string) (domain.BetDetail, error) {
	return f.detail, f.getErr
}

type fakeBets struct {
	err       error
	bet       domain.Bet
	result    domain.SettleResult
	placement domain.Placement

	gotCaller string
	gotOption int
	gotAmount int64
}

func (f *fakeBets) Create(_ context.Context, creatorID string, _ lifecycle.CreateInput) (domain.Bet, error) {
	f.gotCaller = creatorID
	return f.bet, f.err
}

func (f *fakeBets) Update(_ context.Context, _, callerID string, _ lifecycle.UpdateInput) (domain.Bet, error) {
	f.gotCaller = callerID
	return f.bet, f.err
}

func (f *fakeBets) Cancel(_ context.Context, _, callerID string) (domain.Bet, error) {
	f.gotCaller = callerID
	return f.bet, f.err
}

func (f *fakeBets) Settle(_ context.Context, _, callerID string, winningIdx int) (domain.SettleResult, error) {
	f.gotCaller = callerID
	f.gotOption = winningIdx
	return f.result, f.err
}

func (f *fakeBets) PlaceWager(_ context.Context, _, userID string, optionIdx int, amount int64) (domain.Placement, error) {
	f.gotCaller = userID
	f.gotOption = optionIdx
	f.gotAmount = amount
	return f.placement, f.err
}

func (f *fakeBets) GetPlacement(_ context.Context, _, userID string) (domain.Placement, error) {
	f.gotCaller = userID
	return f.placement, f.err
}

func newBetRouter(feed *fakeFeed, bets *fakeBets) http.Handler {
	h := NewBetHandler(feed, bets, slog.New(slog.DiscardHandler))
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/bets", h.ListBets)
	mux.HandleFunc("POST /api/bets", h.CreateBet)
	mux.HandleFunc("GET /api/bets/{id}", h.GetBet)
	mux.HandleFunc("PATCH /api/bets/{id}", h.UpdateBet)
	mux.HandleFunc("POST /api/bets/{id}/cancel", h.CancelBet)
	mux.HandleFunc("POST /api/bets/{id}/settle", h.SettleBet)
	mux.HandleFunc("GET /api/bets/{id}/placement", h.GetPlacement)
	mux.HandleFunc("POST /api/bets/{id}/placement", h.PlaceWager)
	return mux
}

func doJSON(t *testing.T, h http.Handler, method, path, body, userID string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if userID != "" {
		req = req.WithContext(middleware.WithUserID(req.Context(), userID))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestListBetsDefaultsToNewest(t *testing.T) {
	feed := &fakeFeed{page: []domain.BetSummary{{ID: "b1"}}}
	h := newBetRouter(feed, &fakeBets{})

	rec := doJSON(t, h, http.MethodGet, "/api/bets", "", "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, feed.gotPage)
	assert.Equal(t, domain.FilterNewest, feed.gotFilter)

	var resp listBetsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Bets, 1)
	assert.Equal(t, "b1", resp.Bets[0].ID)
}

func TestListBetsRejectsUnknownFilter(t *testing.T) {
	h := newBetRouter(&fakeFeed{}, &fakeBets{})
	rec := doJSON(t, h, http.MethodGet, "/api/bets?filter=bogus", "", "u1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListBetsPassesPageAndFilter(t *testing.T) {
	feed := &fakeFeed{}
	h := newBetRouter(feed, &fakeBets{})

	rec := doJSON(t, h, http.MethodGet, "/api/bets?page=4&filter=settled", "", "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4, feed.gotPage)
	assert.Equal(t, domain.FilterSettled, feed.gotFilter)
}

func TestGetBetNotFound(t *testing.T) {
	h := newBetRouter(&fakeFeed{getErr: domain.ErrNotFound}, &fakeBets{})
	rec := doJSON(t, h, http.MethodGet, "/api/bets/missing", "", "u1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateBetUsesAuthenticatedCaller(t *testing.T) {
	bets := &fakeBets{bet: domain.Bet{ID: "b1", CreatorID: "u1"}}
	h := newBetRouter(&fakeFeed{}, bets)

	rec := doJSON(t, h, http.MethodPost, "/api/bets",
		`{"title":"rain","options":["yes","no"]}`, "u1")

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "u1", bets.gotCaller)
}

func TestCreateBetValidationMapsTo400(t *testing.T) {
	bets := &fakeBets{err: domain.Validation("title", "must not be empty")}
	h := newBetRouter(&fakeFeed{}, bets)

	rec := doJSON(t, h, http.MethodPost, "/api/bets", `{"title":"","options":["a","b"]}`, "u1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateBetRejectsMalformedBody(t *testing.T) {
	h := newBetRouter(&fakeFeed{}, &fakeBets{})
	rec := doJSON(t, h, http.MethodPost, "/api/bets", `{"title": `, "u1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateBetErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", domain.ErrNotFound, http.StatusNotFound},
		{"not owner", domain.ErrNotOwner, http.StatusForbidden},
		{"not open", domain.ErrBetNotOpen, http.StatusConflict},
		{"storage failure", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newBetRouter(&fakeFeed{}, &fakeBets{err: tc.err})
			rec := doJSON(t, h, http.MethodPatch, "/api/bets/b1", `{"title":"x"}`, "u1")
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestSettleBetConflictOnLostRace(t *testing.T) {
	h := newBetRouter(&fakeFeed{}, &fakeBets{err: domain.ErrBetNotOpen})
	rec := doJSON(t, h, http.MethodPost, "/api/bets/b1/settle", `{"option":1}`, "u1")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSettleBetSuccess(t *testing.T) {
	bets := &fakeBets{result: domain.SettleResult{BetID: "b1", WinningOption: 1, WinnerCount: 3, TotalPot: 900}}
	h := newBetRouter(&fakeFeed{}, bets)

	rec := doJSON(t, h, http.MethodPost, "/api/bets/b1/settle", `{"option":1}`, "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, bets.gotOption)

	var res domain.SettleResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 3, res.WinnerCount)
}

func TestPlaceWagerErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"insufficient balance", domain.ErrInsufficientBalance, http.StatusConflict},
		{"already placed", domain.ErrAlreadyPlaced, http.StatusConflict},
		{"bet closed", domain.ErrBetClosed, http.StatusConflict},
		{"bad option", domain.ErrInvalidOption, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newBetRouter(&fakeFeed{}, &fakeBets{err: tc.err})
			rec := doJSON(t, h, http.MethodPost, "/api/bets/b1/placement",
				`{"option":0,"amount":50}`, "u1")
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestPlaceWagerSuccess(t *testing.T) {
	bets := &fakeBets{placement: domain.Placement{BetID: "b1", UserID: "u1", OptionIdx: 1, Amount: 50}}
	h := newBetRouter(&fakeFeed{}, bets)

	rec := doJSON(t, h, http.MethodPost, "/api/bets/b1/placement",
		`{"option":1,"amount":50}`, "u1")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "u1", bets.gotCaller)
	assert.Equal(t, int64(50), bets.gotAmount)
}

func TestGetPlacementNotFound(t *testing.T) {
	h := newBetRouter(&fakeFeed{}, &fakeBets{err: domain.ErrNotFound})
	rec := doJSON(t, h, http.MethodGet, "/api/bets/b1/placement", "", "u1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
