package event

import (
	"github.com/google/uuid"

	"unxcore/internal/state"
)

// ListMarket lists a new instrument. Listing is permissionless but throttled
// per symbol by the registry. Idempotency key: cmd_id.
type ListMarket struct {
	CmdID      uuid.UUID
	Venue      string
	Symbol     string
	Underlying string
	Kind       state.InstrumentKind
	TickSize   uint64
	ExpiryMs   uint64
	Caller     string

	Sequence int64
	NowMs    uint64
}

func (c *ListMarket) IdempotencyKey() string   { return c.CmdID.String() }
func (c *ListMarket) CommandType() CommandType { return CommandTypeListMarket }
func (c *ListMarket) MarketSymbol() string     { return c.Symbol }
func (c *ListMarket) SourceSequence() int64    { return c.Sequence }
func (c *ListMarket) Time() uint64             { return c.NowMs }

// MarketListed is emitted after a successful listing.
type MarketListed struct {
	Venue      string
	Symbol     string
	Underlying string
	Kind       string
	TickSize   uint64
	ExpiryMs   uint64
	Timestamp  uint64
}

// AdminOp selects which registry mutation an AdminUpdate performs.
type AdminOp int32

const (
	AdminOpUnknown AdminOp = iota
	AdminOpSetFees
	AdminOpSetFundingParams
	AdminOpSetMarginDefaults
	AdminOpSetMarketMargins
	AdminOpSetPaused
	AdminOpSetMarketPaused
	AdminOpSetListInterval
	AdminOpSetDisputeWindow
	AdminOpSetTaskWeight
)

func (op AdminOp) String() string {
	switch op {
	case AdminOpSetFees:
		return "SetFees"
	case AdminOpSetFundingParams:
		return "SetFundingParams"
	case AdminOpSetMarginDefaults:
		return "SetMarginDefaults"
	case AdminOpSetMarketMargins:
		return "SetMarketMargins"
	case AdminOpSetPaused:
		return "SetPaused"
	case AdminOpSetMarketPaused:
		return "SetMarketPaused"
	case AdminOpSetListInterval:
		return "SetListInterval"
	case AdminOpSetDisputeWindow:
		return "SetDisputeWindow"
	case AdminOpSetTaskWeight:
		return "SetTaskWeight"
	default:
		return "Unknown"
	}
}

// AdminUpdate mutates venue configuration. Gated by the authorizer; only the
// parameters relevant to Op are read. Idempotency key: cmd_id.
type AdminUpdate struct {
	CmdID uuid.UUID
	Venue string
	Actor string
	Op    AdminOp

	Market string

	TradeFeeBps     uint64
	MakerRebateBps  uint64
	UnxvDiscountBps uint64
	BotRewardBps    uint64

	FundingIntervalMs uint64
	MaxFundingRateBps uint64
	PremiumWeightBps  uint64

	InitMarginBps  uint64
	MaintMarginBps uint64

	Paused     bool
	IntervalMs uint64
	WindowMs   uint64

	TaskKey    string
	TaskWeight uint64

	Sequence int64
	NowMs    uint64
}

func (c *AdminUpdate) IdempotencyKey() string   { return c.CmdID.String() }
func (c *AdminUpdate) CommandType() CommandType { return CommandTypeAdminUpdate }
func (c *AdminUpdate) MarketSymbol() string     { return c.Market }
func (c *AdminUpdate) SourceSequence() int64    { return c.Sequence }
func (c *AdminUpdate) Time() uint64             { return c.NowMs }

// RegistryUpdated is emitted after any admin mutation.
type RegistryUpdated struct {
	Venue     string
	Op        string
	Actor     string
	Version   uint64
	Timestamp uint64
}
