package event

import (
	"fmt"

	"github.com/google/uuid"
)

// SettleMarket fixes the settlement price of an expired dated contract from
// the oracle and marks the market expired. Permissionless once past expiry.
// Idempotency key: "{market}:settle".
type SettleMarket struct {
	Venue  string
	Market string
	Caller string

	RefGasPrice uint64
	Sequence    int64
	NowMs       uint64
}

func (c *SettleMarket) IdempotencyKey() string    { return fmt.Sprintf("%s:settle", c.Market) }
func (c *SettleMarket) CommandType() CommandType  { return CommandTypeSettleMarket }
func (c *SettleMarket) MarketSymbol() string      { return c.Market }
func (c *SettleMarket) SourceSequence() int64     { return c.Sequence }
func (c *SettleMarket) Time() uint64              { return c.NowMs }

// SettlePosition cash-settles one position of an expired, settled market at
// the fixed settlement price. Idempotency key: cmd_id.
type SettlePosition struct {
	CmdID      uuid.UUID
	Venue      string
	PositionID uuid.UUID
	Caller     string

	Sequence int64
	NowMs    uint64
}

func (c *SettlePosition) IdempotencyKey() string   { return c.CmdID.String() }
func (c *SettlePosition) CommandType() CommandType { return CommandTypeSettlePosition }
func (c *SettlePosition) MarketSymbol() string     { return "" }
func (c *SettlePosition) SourceSequence() int64    { return c.Sequence }
func (c *SettlePosition) Time() uint64             { return c.NowMs }

// QueueSettlement defers a market's settlement behind the registry's dispute
// window instead of settling immediately.
// Idempotency key: "{market}:queue".
type QueueSettlement struct {
	Venue  string
	Market string
	Caller string

	RefGasPrice uint64
	Sequence    int64
	NowMs       uint64
}

func (c *QueueSettlement) IdempotencyKey() string   { return fmt.Sprintf("%s:queue", c.Market) }
func (c *QueueSettlement) CommandType() CommandType { return CommandTypeQueueSettlement }
func (c *QueueSettlement) MarketSymbol() string     { return c.Market }
func (c *QueueSettlement) SourceSequence() int64    { return c.Sequence }
func (c *QueueSettlement) Time() uint64             { return c.NowMs }

// ProcessSettlements settles every queued market whose dispute window has
// elapsed. Idempotency key: cmd_id.
type ProcessSettlements struct {
	CmdID  uuid.UUID
	Venue  string
	Caller string

	Sequence int64
	NowMs    uint64
}

func (c *ProcessSettlements) IdempotencyKey() string   { return c.CmdID.String() }
func (c *ProcessSettlements) CommandType() CommandType { return CommandTypeProcessSettlements }
func (c *ProcessSettlements) MarketSymbol() string     { return "" }
func (c *ProcessSettlements) SourceSequence() int64    { return c.Sequence }
func (c *ProcessSettlements) Time() uint64             { return c.NowMs }

// MarketSettled is emitted once a settlement price is fixed.
type MarketSettled struct {
	Market          string
	SettlementPrice uint64
	ExpiryMs        uint64
	Timestamp       uint64
}

// SettlementQueued is emitted when settlement is deferred behind the
// dispute window.
type SettlementQueued struct {
	Market          string
	SettlementPrice uint64
	ReadyAtMs       uint64
	Timestamp       uint64
}

// PositionSettled is emitted per position on expiry settlement.
type PositionSettled struct {
	PositionID    uuid.UUID
	Market        string
	Owner         string
	Size          uint64
	Price         uint64
	GainPositive  bool
	GainAmount    uint64
	SettlementFee uint64
	MarginRefund  uint64
	Timestamp     uint64
}
