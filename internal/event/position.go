package event

import (
	"github.com/google/uuid"

	"unxcore/internal/state"
)

// OpenPosition opens a leveraged position. MarginPayment is the collateral
// offered; the handler locks exactly the initial margin requirement and
// refunds the rest at the boundary.
// Idempotency key: cmd_id.
type OpenPosition struct {
	CmdID  uuid.UUID
	Venue  string
	Market string
	Owner  string

	Side          state.Side
	Size          uint64
	Price         uint64
	MarginPayment uint64
	RefGasPrice   uint64

	Sequence int64
	NowMs    uint64
}

func (c *OpenPosition) IdempotencyKey() string   { return c.CmdID.String() }
func (c *OpenPosition) CommandType() CommandType { return CommandTypeOpenPosition }
func (c *OpenPosition) MarketSymbol() string     { return c.Market }
func (c *OpenPosition) SourceSequence() int64    { return c.Sequence }
func (c *OpenPosition) Time() uint64             { return c.NowMs }

// ClosePosition closes qty units of a position at a traded price. Bot is the
// executing agent, if any, receiving the bot share of the close fee.
// Idempotency key: cmd_id.
type ClosePosition struct {
	CmdID      uuid.UUID
	Venue      string
	PositionID uuid.UUID
	Owner      string

	Qty         uint64
	Price       uint64
	Bot         string
	RefGasPrice uint64

	Sequence int64
	NowMs    uint64
}

func (c *ClosePosition) IdempotencyKey() string   { return c.CmdID.String() }
func (c *ClosePosition) CommandType() CommandType { return CommandTypeClosePosition }
func (c *ClosePosition) MarketSymbol() string     { return "" }
func (c *ClosePosition) SourceSequence() int64    { return c.Sequence }
func (c *ClosePosition) Time() uint64             { return c.NowMs }

// PositionOpened is emitted once margin is locked and the position exists.
type PositionOpened struct {
	PositionID   uuid.UUID
	Market       string
	Owner        string
	Side         state.Side
	Size         uint64
	EntryPrice   uint64
	MarginLocked uint64
	Refunded     uint64
	Timestamp    uint64
}

// VariationMarginApplied reports the signed PnL delta realized by a close.
type VariationMarginApplied struct {
	PositionID  uuid.UUID
	Market      string
	Owner       string
	Qty         uint64
	Price       uint64
	PnlPositive bool
	PnlAmount   uint64
	Timestamp   uint64
}

// PositionClosed is emitted after the close completes.
type PositionClosed struct {
	PositionID    uuid.UUID
	Market        string
	Owner         string
	Qty           uint64
	RemainingSize uint64
	Price         uint64
	MarginRefund  uint64
	CloseFee      uint64
	BotCut        uint64
	Bot           string
	Timestamp     uint64
}
