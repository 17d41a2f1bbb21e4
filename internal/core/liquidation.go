package core

import (
	"fmt"

	"unxcore/internal/event"
	"unxcore/internal/ledger"
	"unxcore/internal/num"
	"unxcore/internal/treasury"
)

// TaskLiquidate is the reward task key credited to the executing liquidator.
const TaskLiquidate = "liquidation.execute"

// handleLiquidatePosition runs the solvency test against the oracle mark and
// seizes all remaining margin when it fails. A solvent target is a silent
// no-op so permissionless probe calls stay cheap. The position's accumulated
// PnL ledger is read for the equity test and then abandoned with the
// position.
func (c *MarginCore) handleLiquidatePosition(cmd *event.LiquidatePosition) (*cmdResult, error) {
	reg, err := c.registry(cmd.Venue)
	if err != nil {
		return nil, err
	}
	pos := c.positions.Get(cmd.PositionID)
	if pos == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPosition, cmd.PositionID)
	}
	m, err := c.liveMarket(reg, pos.Market)
	if err != nil {
		return nil, err
	}
	if pos.IsInert() {
		return noopResult("inert position")
	}

	mark, err := c.indexPrice(m, cmd.RefGasPrice, cmd.NowMs)
	if err != nil {
		return nil, err
	}

	equity := pos.Equity(mark)
	maintenance := pos.MaintenanceRequired(mark, m.MaintMarginBps)

	// Liquidatable iff equity is non-positive or strictly below maintenance.
	if equity.Positive && equity.Magnitude >= maintenance {
		if c.metrics != nil {
			c.metrics.LiquidationNoOps.WithLabelValues(pos.Market).Inc()
		}
		return noopResult("position solvent")
	}

	seized := pos.Margin
	botCut := num.MulBps(seized, reg.Fees.BotRewardBps)
	if cmd.Caller == "" {
		botCut = 0
	}
	treasuryCut := seized - botCut
	epoch := c.currentEpoch(cmd.NowMs)

	sizeClosed := pos.Size
	pos.Margin = 0
	pos.Size = 0
	m.ReduceOpenInterest(sizeClosed)

	margin := ledger.NewUserAccountKey(pos.Owner, ledger.SubTypeMargin, ledger.AssetUSDC)
	batch := ledger.NewBatch(cmd.IdempotencyKey(), uint64(c.sequence), cmd.NowMs)

	batch.Transfer(
		ledger.NewUserAccountKey(cmd.Caller, ledger.SubTypeCollateral, ledger.AssetUSDC),
		margin, ledger.AssetUSDC, botCut, ledger.JournalTypeBotReward,
	)
	c.treasury.DepositTo(batch, margin, treasury.Deposit{
		Asset:      ledger.AssetUSDC,
		Amount:     treasuryCut,
		Reason:     treasury.ReasonLiquidation,
		Attributed: pos.Owner,
		Epoch:      epoch,
	})

	if c.metrics != nil {
		c.metrics.LiquidationsExecuted.WithLabelValues(pos.Market).Inc()
		c.metrics.MarginSeized.WithLabelValues(pos.Market).Add(float64(seized))
	}

	events := []emitted{
		{
			Type:   event.EventTypeMarginCall,
			Market: pos.Market,
			Payload: &event.MarginCall{
				PositionID:     pos.ID,
				Market:         pos.Market,
				Owner:          pos.Owner,
				MarkPrice:      mark,
				EquityPositive: equity.Positive,
				EquityAmount:   equity.Magnitude,
				Maintenance:    maintenance,
				Timestamp:      cmd.NowMs,
			},
		},
		{
			Type:   event.EventTypePositionLiquidated,
			Market: pos.Market,
			Payload: &event.PositionLiquidated{
				PositionID:  pos.ID,
				Market:      pos.Market,
				Owner:       pos.Owner,
				Liquidator:  cmd.Caller,
				SizeClosed:  sizeClosed,
				MarkPrice:   mark,
				SeizedTotal: seized,
				BotCut:      botCut,
				TreasuryCut: treasuryCut,
				Epoch:       epoch,
				Timestamp:   cmd.NowMs,
			},
		},
	}
	if pts := c.awardTaskPoints(TaskLiquidate, cmd.Caller, cmd.NowMs); pts != nil {
		events = append(events, *pts)
	}

	return &cmdResult{batch: batch, events: events}, nil
}
