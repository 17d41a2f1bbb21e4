package event

import (
	"fmt"

	"github.com/google/uuid"
)

// AwardPoints credits a contributor's reward points for a completed task.
// Idempotency key: cmd_id.
type AwardPoints struct {
	CmdID   uuid.UUID
	TaskKey string
	Actor   string

	Sequence int64
	NowMs    uint64
}

func (c *AwardPoints) IdempotencyKey() string   { return c.CmdID.String() }
func (c *AwardPoints) CommandType() CommandType { return CommandTypeAwardPoints }
func (c *AwardPoints) MarketSymbol() string     { return "" }
func (c *AwardPoints) SourceSequence() int64    { return c.Sequence }
func (c *AwardPoints) Time() uint64             { return c.NowMs }

// ClaimRewards pays a contributor's pro-rata share of an epoch's fee
// reserves. Zero points or an empty reserve is an economic no-op.
// Idempotency key: "{epoch}:{claimant}:claim". A replayed claim is dropped
// by dedup and a fresh second claim pays zero by construction.
type ClaimRewards struct {
	Epoch    uint64
	Claimant string

	Sequence int64
	NowMs    uint64
}

func (c *ClaimRewards) IdempotencyKey() string {
	return fmt.Sprintf("%d:%s:claim", c.Epoch, c.Claimant)
}
func (c *ClaimRewards) CommandType() CommandType { return CommandTypeClaimRewards }
func (c *ClaimRewards) MarketSymbol() string     { return "" }
func (c *ClaimRewards) SourceSequence() int64    { return c.Sequence }
func (c *ClaimRewards) Time() uint64             { return c.NowMs }

// PointsAwarded is emitted when a task award lands (weight > 0 only).
type PointsAwarded struct {
	TaskKey   string
	Actor     string
	Weight    uint64
	Epoch     uint64
	Timestamp uint64
}

// BotPayout reports an epoch reward claim, one per paid asset.
type BotPayout struct {
	Epoch     uint64
	Claimant  string
	Points    uint64
	Asset     string
	Amount    uint64
	Timestamp uint64
}
