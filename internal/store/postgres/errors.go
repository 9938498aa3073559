package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/openwager/betfeed/internal/domain"
)

// uniqueViolation is the SQLSTATE for duplicate-key errors; a duplicate on
// the (bet_id, user_id) primary key means the caller already wagered.
const uniqueViolation = "23505"

// mapProcError translates the closed set of errors raised by the place_wager
// and settle_bet procedures into domain sentinels. It returns nil when the
// error is not one of the known domain outcomes, leaving the caller to wrap
// it as an upstream failure.
func mapProcError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil
	}

	if pgErr.Code == uniqueViolation {
		return domain.ErrAlreadyPlaced
	}

	switch pgErr.Message {
	case "bet_not_found":
		return domain.ErrNotFound
	case "bet_closed":
		return domain.ErrBetClosed
	case "bet_not_open":
		return domain.ErrBetNotOpen
	case "already_placed":
		return domain.ErrAlreadyPlaced
	case "insufficient_balance":
		return domain.ErrInsufficientBalance
	case "invalid_option":
		return domain.ErrInvalidOption
	}
	return nil
}
