package core

import (
	"fmt"
	"sort"

	"unxcore/internal/event"
	"unxcore/internal/fees"
	"unxcore/internal/ledger"
	"unxcore/internal/state"
	"unxcore/internal/treasury"
)

// Reward task keys for the settlement crank.
const (
	TaskSettleMarket   = "settlement.settle_market"
	TaskSettlePosition = "settlement.settle_position"
)

// settleMarketAt freezes the settlement price and flips the market into the
// expired state. Shared by immediate settlement and the dispute queue.
func settleMarketAt(m *state.Market, price uint64) {
	m.SettlementPrice = price
	m.Expired = true
	m.FundingRateBps = 0
}

// handleSettleMarket fixes an expired dated contract's settlement price from
// the oracle. Valid once, at or after expiry.
func (c *MarginCore) handleSettleMarket(cmd *event.SettleMarket) (*cmdResult, error) {
	reg, err := c.registry(cmd.Venue)
	if err != nil {
		return nil, err
	}
	m, err := c.liveMarket(reg, cmd.Market)
	if err != nil {
		return nil, err
	}
	if m.Kind == state.KindPerpetual {
		return nil, fmt.Errorf("%w: %s", ErrNotDated, cmd.Market)
	}
	if m.Expired {
		return nil, fmt.Errorf("%w: %s", ErrMarketExpired, cmd.Market)
	}
	if cmd.NowMs < m.ExpiryMs {
		return nil, fmt.Errorf("%w: %s expires at %d", ErrMarketNotExpired, cmd.Market, m.ExpiryMs)
	}

	price, err := c.indexPrice(m, cmd.RefGasPrice, cmd.NowMs)
	if err != nil {
		return nil, err
	}
	settleMarketAt(m, price)

	if c.metrics != nil {
		c.metrics.MarketsSettled.WithLabelValues(cmd.Venue).Inc()
	}

	events := []emitted{{
		Type:   event.EventTypeMarketSettled,
		Market: cmd.Market,
		Payload: &event.MarketSettled{
			Market:          cmd.Market,
			SettlementPrice: price,
			ExpiryMs:        m.ExpiryMs,
			Timestamp:       cmd.NowMs,
		},
	}}
	if pts := c.awardTaskPoints(TaskSettleMarket, cmd.Caller, cmd.NowMs); pts != nil {
		events = append(events, *pts)
	}

	return &cmdResult{events: events}, nil
}

// handleQueueSettlement reads the oracle print now but defers the settlement
// behind the registry's dispute window, leaving time to contest a bad print.
// Queue-only: resolution of a dispute is a governance action outside the
// core.
func (c *MarginCore) handleQueueSettlement(cmd *event.QueueSettlement) (*cmdResult, error) {
	reg, err := c.registry(cmd.Venue)
	if err != nil {
		return nil, err
	}
	m, err := c.liveMarket(reg, cmd.Market)
	if err != nil {
		return nil, err
	}
	if m.Kind == state.KindPerpetual {
		return nil, fmt.Errorf("%w: %s", ErrNotDated, cmd.Market)
	}
	if m.Expired {
		return nil, fmt.Errorf("%w: %s", ErrMarketExpired, cmd.Market)
	}
	if cmd.NowMs < m.ExpiryMs {
		return nil, fmt.Errorf("%w: %s expires at %d", ErrMarketNotExpired, cmd.Market, m.ExpiryMs)
	}
	if _, queued := c.settleQueue[cmd.Market]; queued {
		return noopResult("settlement already queued")
	}

	price, err := c.indexPrice(m, cmd.RefGasPrice, cmd.NowMs)
	if err != nil {
		return nil, err
	}

	readyAt := cmd.NowMs + reg.DisputeWindowMs
	c.settleQueue[cmd.Market] = QueuedSettlement{
		Venue:     cmd.Venue,
		Market:    cmd.Market,
		Price:     price,
		ReadyAtMs: readyAt,
	}

	if c.metrics != nil {
		c.metrics.SettlementsQueued.WithLabelValues(cmd.Venue).Inc()
	}

	return &cmdResult{
		events: []emitted{{
			Type:   event.EventTypeSettlementQueued,
			Market: cmd.Market,
			Payload: &event.SettlementQueued{
				Market:          cmd.Market,
				SettlementPrice: price,
				ReadyAtMs:       readyAt,
				Timestamp:       cmd.NowMs,
			},
		}},
	}, nil
}

// handleProcessSettlements settles every queued market of the venue whose
// dispute window has elapsed, in symbol order for determinism.
func (c *MarginCore) handleProcessSettlements(cmd *event.ProcessSettlements) (*cmdResult, error) {
	reg, err := c.registry(cmd.Venue)
	if err != nil {
		return nil, err
	}

	due := make([]QueuedSettlement, 0)
	for _, q := range c.settleQueue {
		if q.Venue == cmd.Venue && cmd.NowMs >= q.ReadyAtMs {
			due = append(due, q)
		}
	}
	if len(due) == 0 {
		return noopResult("no settlements due")
	}
	sort.Slice(due, func(i, j int) bool { return due[i].Market < due[j].Market })

	events := make([]emitted, 0, len(due))
	for _, q := range due {
		m := reg.GetMarket(q.Market)
		delete(c.settleQueue, q.Market)
		if m == nil || m.Expired {
			continue
		}
		settleMarketAt(m, q.Price)
		if c.metrics != nil {
			c.metrics.MarketsSettled.WithLabelValues(cmd.Venue).Inc()
		}
		events = append(events, emitted{
			Type:   event.EventTypeMarketSettled,
			Market: q.Market,
			Payload: &event.MarketSettled{
				Market:          q.Market,
				SettlementPrice: q.Price,
				ExpiryMs:        m.ExpiryMs,
				Timestamp:       cmd.NowMs,
			},
		})
	}
	if len(events) == 0 {
		return noopResult("queued markets already settled")
	}

	if pts := c.awardTaskPoints(TaskSettleMarket, cmd.Caller, cmd.NowMs); pts != nil {
		events = append(events, *pts)
	}
	return &cmdResult{events: events}, nil
}

// handleSettlePosition cash-settles one position at the frozen settlement
// price. A gain pays out net of the settlement fee; a loss is absorbed from
// remaining margin, never below zero. A position already below maintenance
// should have been liquidated beforehand, so settlement-time insolvency is
// not separately handled.
func (c *MarginCore) handleSettlePosition(cmd *event.SettlePosition) (*cmdResult, error) {
	reg, err := c.registry(cmd.Venue)
	if err != nil {
		return nil, err
	}
	pos := c.positions.Get(cmd.PositionID)
	if pos == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPosition, cmd.PositionID)
	}
	if reg.Paused {
		return nil, fmt.Errorf("%w: %s", ErrVenuePaused, reg.Venue)
	}
	m := reg.GetMarket(pos.Market)
	if m == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMarket, pos.Market)
	}
	if !m.Expired {
		return nil, fmt.Errorf("%w: %s", ErrMarketNotSettled, pos.Market)
	}
	if pos.IsInert() && pos.Margin == 0 {
		return noopResult("position already settled")
	}

	gain := pos.VariationPnl(m.SettlementPrice, pos.Size)

	epoch := c.currentEpoch(cmd.NowMs)
	margin := ledger.NewUserAccountKey(pos.Owner, ledger.SubTypeMargin, ledger.AssetUSDC)
	collateral := ledger.NewUserAccountKey(pos.Owner, ledger.SubTypeCollateral, ledger.AssetUSDC)
	custody := ledger.NewCustodyKey(ledger.AssetUSDC)
	batch := ledger.NewBatch(cmd.IdempotencyKey(), uint64(c.sequence), cmd.NowMs)

	var settlementFee uint64
	if gain.Positive && gain.Magnitude > 0 {
		// Fee comes out of the proceeds before crediting.
		fee, botCut := fees.SettlementCut(gain.Magnitude, reg.Fees.TradeFeeBps, reg.Fees.BotRewardBps)
		if cmd.Caller == "" {
			botCut = 0
		}
		settlementFee = fee
		batch.Transfer(collateral, custody, ledger.AssetUSDC, gain.Magnitude-fee, ledger.JournalTypeSettlementPayout)
		batch.Transfer(
			ledger.NewUserAccountKey(cmd.Caller, ledger.SubTypeCollateral, ledger.AssetUSDC),
			custody, ledger.AssetUSDC, botCut, ledger.JournalTypeBotReward,
		)
		c.treasury.DepositTo(batch, custody, treasury.Deposit{
			Asset:      ledger.AssetUSDC,
			Amount:     fee - botCut,
			Reason:     treasury.ReasonSettlementFee,
			Attributed: pos.Owner,
			Epoch:      epoch,
		})
	} else if !gain.Positive && gain.Magnitude > 0 {
		loss := gain.Magnitude
		if loss > pos.Margin {
			loss = pos.Margin
		}
		batch.Transfer(custody, margin, ledger.AssetUSDC, loss, ledger.JournalTypeSettlementLoss)
		pos.Margin -= loss
	}

	// Full close: refund whatever margin remains.
	refund := pos.Margin
	batch.Transfer(collateral, margin, ledger.AssetUSDC, refund, ledger.JournalTypeMarginRefund)

	size := pos.Size
	pos.Margin = 0
	pos.Size = 0
	m.ReduceOpenInterest(size)

	if c.metrics != nil {
		c.metrics.PositionsSettled.WithLabelValues(pos.Market).Inc()
	}

	events := []emitted{{
		Type:   event.EventTypePositionSettled,
		Market: pos.Market,
		Payload: &event.PositionSettled{
			PositionID:    pos.ID,
			Market:        pos.Market,
			Owner:         pos.Owner,
			Size:          size,
			Price:         m.SettlementPrice,
			GainPositive:  gain.Positive,
			GainAmount:    gain.Magnitude,
			SettlementFee: settlementFee,
			MarginRefund:  refund,
			Timestamp:     cmd.NowMs,
		},
	}}
	if pts := c.awardTaskPoints(TaskSettlePosition, cmd.Caller, cmd.NowMs); pts != nil {
		events = append(events, *pts)
	}

	return &cmdResult{batch: batch, events: events}, nil
}
