package state

import (
	"unxcore/internal/num"
)

// InstrumentKind distinguishes the three listed instrument families. They
// share margin, fee, and liquidation logic; the only behavioral split is the
// price-unit conversion applied to oracle index prices.
type InstrumentKind int32

const (
	KindPerpetual InstrumentKind = iota
	KindDatedFuture
	KindGasFuture
)

func (k InstrumentKind) String() string {
	switch k {
	case KindPerpetual:
		return "perpetual"
	case KindDatedFuture:
		return "dated_future"
	case KindGasFuture:
		return "gas_future"
	default:
		return "unknown"
	}
}

// GasUnitDenom scales the reference gas price for gas futures: the traded
// unit is priced as index_price * ref_gas_price / GasUnitDenom.
const GasUnitDenom = 1_000_000

// Market is the per-instrument mutable state. Created once per symbol by
// permissionless listing; mutated by every fill, funding, and settlement
// call; never deleted. Dated contracts become permanently inert once
// expired and settled.
type Market struct {
	Symbol     string
	Underlying string
	Kind       InstrumentKind
	TickSize   uint64
	Paused     bool

	// Funding state (perpetuals only). FundingRateBps is a magnitude; the
	// direction flag carries the sign.
	LastFundingMs  uint64
	FundingRateBps uint64
	LongsPayShorts bool

	// Margin overrides (bps of notional).
	InitMarginBps  uint64
	MaintMarginBps uint64

	// Metrics.
	OpenInterest       uint64
	CumulativeNotional uint64
	LastTradePrice     uint64

	// Dated contracts.
	ExpiryMs        uint64
	SettlementPrice uint64
	Expired         bool
}

// TickAligned reports whether a price is a multiple of the tick size.
func (m *Market) TickAligned(price uint64) bool {
	return m.TickSize > 0 && price%m.TickSize == 0
}

// UnitPrice converts an oracle index price into the price unit the market
// trades in. Gas futures price a unit of reference gas: index price scaled
// by the current reference gas price. Perpetuals and dated futures trade the
// index directly, so refGasPrice is ignored for them.
func (m *Market) UnitPrice(indexPrice, refGasPrice uint64) uint64 {
	if m.Kind == KindGasFuture {
		return num.MulDiv(indexPrice, refGasPrice, GasUnitDenom)
	}
	return indexPrice
}

// HasTraded reports whether any fill has been recorded. Funding is
// undefined until a mark price exists.
func (m *Market) HasTraded() bool {
	return m.LastTradePrice > 0
}

// RecordTrade updates the trade metrics from a recorded fill.
func (m *Market) RecordTrade(price, size uint64, oiIncrease bool) {
	m.LastTradePrice = price
	m.CumulativeNotional = num.SatAdd(m.CumulativeNotional, num.Notional(size, price))
	if oiIncrease {
		m.OpenInterest = num.SatAdd(m.OpenInterest, size)
	}
}

// AddOpenInterest increments open interest, saturating.
func (m *Market) AddOpenInterest(size uint64) {
	m.OpenInterest = num.SatAdd(m.OpenInterest, size)
}

// ReduceOpenInterest decrements open interest, flooring at zero.
func (m *Market) ReduceOpenInterest(size uint64) {
	m.OpenInterest = num.SatSub(m.OpenInterest, size)
}
