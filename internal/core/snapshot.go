package core

import (
	"math/big"

	"unxcore/internal/ledger"
	"unxcore/internal/state"
	"unxcore/internal/treasury"
)

// SnapshotState holds the serializable in-memory state for warm restart:
// load the latest snapshot, then replay the event log from its sequence.
type SnapshotState struct {
	Sequence  int64
	StateHash [32]byte

	Balances  map[ledger.AccountKey]int64
	Positions []*state.Position
	Markets   map[string][]*state.Market

	SettleQueue []QueuedSettlement

	RewardEpochs    []RewardEpochSnapshot
	PointsCurrent   map[string]uint64
	TreasuryAccrued map[treasury.ReserveKey]uint64

	SequenceState   map[string]int64
	IdempotencyKeys []string
}

// RewardEpochSnapshot captures one epoch's point bookkeeping.
type RewardEpochSnapshot struct {
	Epoch  uint64
	Points map[string]uint64
	Total  *big.Int
}

// CreateSnapshotState captures the current in-memory state.
func (c *MarginCore) CreateSnapshotState() *SnapshotState {
	markets := make(map[string][]*state.Market, len(c.registries))
	for venue, reg := range c.registries {
		markets[venue] = reg.Markets()
	}

	queue := make([]QueuedSettlement, 0, len(c.settleQueue))
	for _, q := range c.settleQueue {
		queue = append(queue, q)
	}

	epochPoints, epochTotals := c.rewards.Epochs()
	epochs := make([]RewardEpochSnapshot, 0, len(epochPoints))
	for epoch, points := range epochPoints {
		epochs = append(epochs, RewardEpochSnapshot{
			Epoch:  epoch,
			Points: points,
			Total:  epochTotals[epoch],
		})
	}

	return &SnapshotState{
		Sequence:        c.sequence - 1,
		StateHash:       c.hasher.GetPrevHash(),
		Balances:        c.balances.Snapshot(),
		Positions:       c.positions.All(),
		Markets:         markets,
		SettleQueue:     queue,
		RewardEpochs:    epochs,
		PointsCurrent:   c.rewards.CurrentPoints(),
		TreasuryAccrued: c.treasury.Accrued(),
		SequenceState:   c.seqval.Partitions(),
		IdempotencyKeys: c.dedup.Keys(),
	}
}

// RestoreFromSnapshot restores the core's in-memory state.
func (c *MarginCore) RestoreFromSnapshot(snap *SnapshotState) {
	c.sequence = snap.Sequence + 1
	c.hasher.SetPrevHash(snap.StateHash)

	for key, balance := range snap.Balances {
		c.balances.SetBalance(key, balance)
	}
	for _, pos := range snap.Positions {
		c.positions.Restore(pos)
	}
	for venue, markets := range snap.Markets {
		reg, ok := c.registries[venue]
		if !ok {
			continue
		}
		for _, m := range markets {
			reg.RestoreMarket(m)
		}
	}
	for _, q := range snap.SettleQueue {
		c.settleQueue[q.Market] = q
	}
	for _, re := range snap.RewardEpochs {
		c.rewards.Restore(re.Epoch, re.Points, re.Total, snap.PointsCurrent)
	}
	for key, amount := range snap.TreasuryAccrued {
		c.treasury.RestoreAccrued(key.Epoch, key.Asset, amount)
	}
	for partition, next := range snap.SequenceState {
		c.seqval.RestorePartition(partition, next)
	}
	c.dedup.Warm(snap.IdempotencyKeys)
}
