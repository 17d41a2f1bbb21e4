package event

import (
	"fmt"

	"github.com/google/uuid"
)

// RefreshFunding recomputes a perpetual market's funding rate from the
// mark/index premium. Interval-gated; early calls are economic no-ops.
// Idempotency key: "{market}:funding:{interval index}".
type RefreshFunding struct {
	Venue  string
	Market string
	Caller string

	IntervalIndex uint64
	Sequence      int64
	NowMs         uint64
}

func (c *RefreshFunding) IdempotencyKey() string {
	return fmt.Sprintf("%s:funding:%d", c.Market, c.IntervalIndex)
}
func (c *RefreshFunding) CommandType() CommandType { return CommandTypeRefreshFunding }
func (c *RefreshFunding) MarketSymbol() string     { return c.Market }
func (c *RefreshFunding) SourceSequence() int64    { return c.Sequence }
func (c *RefreshFunding) Time() uint64             { return c.NowMs }

// ApplyFunding applies the market's current funding rate to one position.
// Idempotency key: cmd_id.
type ApplyFunding struct {
	CmdID      uuid.UUID
	Venue      string
	PositionID uuid.UUID
	Caller     string

	Sequence int64
	NowMs    uint64
}

func (c *ApplyFunding) IdempotencyKey() string   { return c.CmdID.String() }
func (c *ApplyFunding) CommandType() CommandType { return CommandTypeApplyFunding }
func (c *ApplyFunding) MarketSymbol() string     { return "" }
func (c *ApplyFunding) SourceSequence() int64    { return c.Sequence }
func (c *ApplyFunding) Time() uint64             { return c.NowMs }

// FundingRateUpdated is emitted after a successful rate refresh.
type FundingRateUpdated struct {
	Market         string
	RateBps        uint64 // magnitude, clamped
	LongsPayShorts bool
	MarkPrice      uint64
	IndexPrice     uint64
	PremiumBps     uint64 // unweighted, unclamped premium
	Timestamp      uint64
}

// FundingApplied reports one position's funding delta.
type FundingApplied struct {
	PositionID   uuid.UUID
	Market       string
	Owner        string
	RateBps      uint64
	IndexPrice   uint64
	DeltaPaysOut bool // true when the position receives funding
	DeltaAmount  uint64
	Timestamp    uint64
}
