package event

import (
	"github.com/google/uuid"
)

// LiquidatePosition attempts to liquidate an under-margined position. The
// call is permissionless; a solvent target is an economic no-op so bots can
// probe cheaply. Caller receives the bot share of the seized margin.
// Idempotency key: cmd_id.
type LiquidatePosition struct {
	CmdID      uuid.UUID
	Venue      string
	PositionID uuid.UUID
	Caller     string

	RefGasPrice uint64
	Sequence    int64
	NowMs       uint64
}

func (c *LiquidatePosition) IdempotencyKey() string   { return c.CmdID.String() }
func (c *LiquidatePosition) CommandType() CommandType { return CommandTypeLiquidatePosition }
func (c *LiquidatePosition) MarketSymbol() string     { return "" }
func (c *LiquidatePosition) SourceSequence() int64    { return c.Sequence }
func (c *LiquidatePosition) Time() uint64             { return c.NowMs }

// MarginCall is emitted when the solvency check fails, before seizure.
type MarginCall struct {
	PositionID     uuid.UUID
	Market         string
	Owner          string
	MarkPrice      uint64
	EquityPositive bool
	EquityAmount   uint64
	Maintenance    uint64
	Timestamp      uint64
}

// PositionLiquidated is emitted after margin seizure completes.
type PositionLiquidated struct {
	PositionID  uuid.UUID
	Market      string
	Owner       string
	Liquidator  string
	SizeClosed  uint64
	MarkPrice   uint64
	SeizedTotal uint64
	BotCut      uint64
	TreasuryCut uint64
	Epoch       uint64
	Timestamp   uint64
}
