package state

import (
	"unxcore/internal/num"

	"github.com/google/uuid"
)

// Side is the direction of a position.
type Side int32

const (
	SideLong Side = iota + 1
	SideShort
)

func (s Side) String() string {
	switch s {
	case SideLong:
		return "long"
	case SideShort:
		return "short"
	default:
		return "unknown"
	}
}

// Position is a per-account margin ledger bound to one market. One
// owner-scoped object per open exposure; never shared across positions.
// size == 0 means the position is economically inert: no further funding or
// liquidation applies, though margin may remain until withdrawn.
type Position struct {
	ID            uuid.UUID
	Owner         string
	Market        string
	Side          Side
	Size          uint64
	AvgEntryPrice uint64

	// Margin is the locked collateral balance backing the exposure.
	Margin uint64

	// AccumulatedPnl carries realized PnL plus funding as sign+magnitude.
	AccumulatedPnl num.Signed

	LastFundingMs uint64
}

// IsInert reports whether the position has no exposure left.
func (p *Position) IsInert() bool {
	return p.Size == 0
}

// VariationPnl returns the unrealized PnL of qty units against markPrice:
// positive for a long when the mark is above entry, positive for a short
// when the mark is below entry.
func (p *Position) VariationPnl(markPrice, qty uint64) num.Signed {
	move := num.AbsDiff(markPrice, p.AvgEntryPrice)
	magnitude := num.Notional(move, qty)
	favorable := (p.Side == SideLong && markPrice >= p.AvgEntryPrice) ||
		(p.Side == SideShort && markPrice <= p.AvgEntryPrice)
	if favorable {
		return num.SignedFrom(magnitude)
	}
	return num.SignedNeg(magnitude)
}

// Equity returns margin + accumulated PnL + variation PnL against the mark,
// the quantity the liquidation solvency test is defined over.
func (p *Position) Equity(markPrice uint64) num.Signed {
	return num.SignedFrom(p.Margin).
		Add(p.AccumulatedPnl).
		Add(p.VariationPnl(markPrice, p.Size))
}

// MaintenanceRequired returns size * mark * maint_margin_bps / 10_000.
func (p *Position) MaintenanceRequired(markPrice, maintMarginBps uint64) uint64 {
	return num.NotionalBps(p.Size, markPrice, maintMarginBps)
}
