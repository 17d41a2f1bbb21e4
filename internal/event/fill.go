package event

import (
	"github.com/google/uuid"
)

// RecordFill reports a matched trade from the off-core matching venue.
// Payments travel with the command: FeePayment in collateral units and an
// optional UNXV payment offered against the fee discount.
// Idempotency key: fill_id.
type RecordFill struct {
	FillID uuid.UUID
	Venue  string
	Market string
	Taker  string
	Maker  string

	Size         uint64
	Price        uint64
	TakerIsBuyer bool
	OiIncrease   bool

	// Slippage guards supplied by the caller. A zero bound is open on that
	// side; a non-zero bound rejects fills priced outside [MinPrice, MaxPrice].
	MinPrice uint64
	MaxPrice uint64

	// FeePayment must cover the collateral fee; the excess is refunded at
	// the boundary and never enters the ledger.
	FeePayment  uint64
	UnxvPayment uint64

	// Bot executing the recording, if any. Receives the bot reward cut.
	Bot string

	// Reference gas price, consumed by gas-future markets only.
	RefGasPrice uint64

	FillSequence int64
	NowMs        uint64
}

func (c *RecordFill) IdempotencyKey() string { return c.FillID.String() }
func (c *RecordFill) CommandType() CommandType {
	return CommandTypeRecordFill
}
func (c *RecordFill) MarketSymbol() string  { return c.Market }
func (c *RecordFill) SourceSequence() int64 { return c.FillSequence }
func (c *RecordFill) Time() uint64          { return c.NowMs }

// FillRecorded is emitted after the fill's metrics and fee routing applied.
type FillRecorded struct {
	FillID       uuid.UUID
	Market       string
	Taker        string
	Maker        string
	Size         uint64
	Price        uint64
	Notional     uint64
	TakerIsBuyer bool
	OiIncrease   bool
	Timestamp    uint64
}

// FillFee carries the full fee breakdown of one fill.
type FillFee struct {
	FillID          uuid.UUID
	Market          string
	Payer           string
	BaseFee         uint64
	DiscountAmount  uint64
	DiscountApplied bool
	TokensCharged   uint64
	TokensRefunded  uint64
	CollateralFee   uint64
	MakerRebate     uint64
	BotReward       uint64
	TreasuryCut     uint64
	Epoch           uint64
	Timestamp       uint64
}
