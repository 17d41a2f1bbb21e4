package core

import "errors"

// Fatal validation errors. A command failing with one of these aborts with
// no state change. Economic no-ops (solvent liquidation attempt, claim with
// zero points, funding before the interval) are NOT errors; those commands
// return success having done nothing.
var (
	ErrNotAuthorized      = errors.New("not authorized")
	ErrVenuePaused        = errors.New("venue paused")
	ErrMarketPaused       = errors.New("market paused")
	ErrUnknownVenue       = errors.New("unknown venue")
	ErrUnknownMarket      = errors.New("unknown market")
	ErrUnknownPosition    = errors.New("unknown position")
	ErrZeroSize           = errors.New("size must be > 0")
	ErrMisalignedPrice    = errors.New("price not aligned to tick size")
	ErrPriceOutOfBounds   = errors.New("price outside caller bounds")
	ErrQtyExceedsPosition = errors.New("quantity exceeds position size")
	ErrInsufficientMargin = errors.New("margin payment below requirement")
	ErrInsufficientFee    = errors.New("fee payment below collateral fee")
	ErrMarketExpired      = errors.New("market already expired")
	ErrMarketNotExpired   = errors.New("market not yet at expiry")
	ErrMarketNotSettled   = errors.New("market has no settlement price")
	ErrNotPerpetual       = errors.New("funding applies to perpetuals only")
	ErrNotDated           = errors.New("settlement applies to dated contracts only")
)
