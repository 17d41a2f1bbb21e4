package core

import (
	"unxcore/internal/event"
	"unxcore/internal/ledger"
	"unxcore/internal/rewards"
)

// handleAwardPoints credits task points explicitly (the handlers also award
// inline for crank work). An unknown task key carries weight zero and the
// award is an economic no-op.
func (c *MarginCore) handleAwardPoints(cmd *event.AwardPoints) (*cmdResult, error) {
	weight, epoch := c.rewards.Award(cmd.TaskKey, cmd.Actor, cmd.NowMs)
	if weight == 0 {
		return noopResult("unknown task key")
	}
	if c.metrics != nil {
		c.metrics.PointsAwarded.Inc()
	}

	return &cmdResult{
		events: []emitted{{
			Type: event.EventTypePointsAwarded,
			Payload: &event.PointsAwarded{
				TaskKey:   cmd.TaskKey,
				Actor:     cmd.Actor,
				Weight:    weight,
				Epoch:     epoch,
				Timestamp: cmd.NowMs,
			},
		}},
	}, nil
}

// handleClaimRewards pays the claimant's pro-rata share of an epoch's
// reserves. Both sides of the ratio are fixed at epoch close: the share is
// points over the epoch point total against the GROSS accrued reserve, so
// neither earlier claims nor their payouts dilute later claimants. The
// claimant's own points are zeroed so a second claim pays nothing.
// Collateral and token reserves are paid independently at the same ratio.
func (c *MarginCore) handleClaimRewards(cmd *event.ClaimRewards) (*cmdResult, error) {
	total := c.rewards.EpochTotal(cmd.Epoch)
	if total.Sign() == 0 {
		if c.metrics != nil {
			c.metrics.RewardClaims.WithLabelValues("noop").Inc()
		}
		return noopResult("epoch has no points")
	}

	points := c.rewards.BeginClaim(cmd.Epoch, cmd.Claimant)
	if points == 0 {
		if c.metrics != nil {
			c.metrics.RewardClaims.WithLabelValues("noop").Inc()
		}
		return noopResult("claimant has no points")
	}

	batch := ledger.NewBatch(cmd.IdempotencyKey(), uint64(c.sequence), cmd.NowMs)
	events := make([]emitted, 0, 2)
	paidAny := false

	for _, asset := range [2]ledger.AssetID{ledger.AssetUSDC, ledger.AssetUNXV} {
		gross := c.treasury.EpochAccrued(cmd.Epoch, asset)
		share := rewards.ShareOf(gross, points, total)
		paid := c.treasury.PayFromEpochReserve(batch, cmd.Epoch, asset, cmd.Claimant, share)
		if paid == 0 {
			continue
		}
		paidAny = true
		name, _ := ledger.GetAssetName(asset)
		if c.metrics != nil {
			c.metrics.RewardPaid.WithLabelValues(name).Add(float64(paid))
		}
		events = append(events, emitted{
			Type: event.EventTypeBotPayout,
			Payload: &event.BotPayout{
				Epoch:     cmd.Epoch,
				Claimant:  cmd.Claimant,
				Points:    points,
				Asset:     name,
				Amount:    paid,
				Timestamp: cmd.NowMs,
			},
		})
	}

	if !paidAny {
		// Zero reserve: restore the points so a later claim against a
		// funded reserve still works, and report success without effect.
		c.rewards.RestorePoints(cmd.Epoch, cmd.Claimant, points)
		if c.metrics != nil {
			c.metrics.RewardClaims.WithLabelValues("noop").Inc()
		}
		return noopResult("epoch reserves empty")
	}

	if c.metrics != nil {
		c.metrics.RewardClaims.WithLabelValues("paid").Inc()
	}
	return &cmdResult{batch: batch, events: events}, nil
}
