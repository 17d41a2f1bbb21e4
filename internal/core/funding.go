package core

import (
	"fmt"

	"unxcore/internal/event"
	"unxcore/internal/num"
	"unxcore/internal/state"
)

// Reward task keys for the funding crank.
const (
	TaskRefreshFunding = "funding.refresh"
	TaskApplyFunding   = "funding.apply"
)

// handleRefreshFunding recomputes a perpetual's funding rate from the
// mark/index premium. Calls before the interval elapsed, or before any
// trade has set a mark price, are economic no-ops.
func (c *MarginCore) handleRefreshFunding(cmd *event.RefreshFunding) (*cmdResult, error) {
	reg, err := c.registry(cmd.Venue)
	if err != nil {
		return nil, err
	}
	m, err := c.liveMarket(reg, cmd.Market)
	if err != nil {
		return nil, err
	}
	if m.Kind != state.KindPerpetual {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotPerpetual, cmd.Market, m.Kind)
	}

	if cmd.NowMs < m.LastFundingMs+reg.FundingIntervalMs {
		return noopResult("funding interval not elapsed")
	}
	if !m.HasTraded() {
		return noopResult("no mark price yet")
	}

	index, _, err := c.prices.GetPrice(m.Underlying, c.maxStalenessMs, cmd.NowMs)
	if err != nil {
		return nil, fmt.Errorf("oracle read for %s: %w", m.Underlying, err)
	}
	if index == 0 {
		return noopResult("zero index price")
	}

	mark := m.LastTradePrice
	premiumBps := num.MulDiv(num.AbsDiff(mark, index), num.BpsDenom, index)
	rate := num.MulBps(premiumBps, reg.PremiumWeightBps)
	if rate > reg.MaxFundingRateBps {
		rate = reg.MaxFundingRateBps
	}

	m.FundingRateBps = rate
	m.LongsPayShorts = mark >= index
	m.LastFundingMs = cmd.NowMs

	if c.metrics != nil {
		c.metrics.FundingRefreshes.WithLabelValues(cmd.Market).Inc()
		c.metrics.FundingRateBps.WithLabelValues(cmd.Market).Set(float64(rate))
	}

	events := []emitted{{
		Type:   event.EventTypeFundingRateUpdated,
		Market: cmd.Market,
		Payload: &event.FundingRateUpdated{
			Market:         cmd.Market,
			RateBps:        rate,
			LongsPayShorts: m.LongsPayShorts,
			MarkPrice:      mark,
			IndexPrice:     index,
			PremiumBps:     premiumBps,
			Timestamp:      cmd.NowMs,
		},
	}}
	if pts := c.awardTaskPoints(TaskRefreshFunding, cmd.Caller, cmd.NowMs); pts != nil {
		events = append(events, *pts)
	}

	return &cmdResult{events: events}, nil
}

// handleApplyFunding applies the market's current rate to one position's
// accumulated PnL. Funding never moves ledger value; it shifts the
// position's PnL bookkeeping against its counterparty side.
func (c *MarginCore) handleApplyFunding(cmd *event.ApplyFunding) (*cmdResult, error) {
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
	if m.Kind != state.KindPerpetual {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotPerpetual, pos.Market, m.Kind)
	}

	if pos.IsInert() {
		return noopResult("inert position")
	}
	if cmd.NowMs < pos.LastFundingMs+reg.FundingIntervalMs {
		return noopResult("position funding interval not elapsed")
	}
	if !m.HasTraded() {
		return noopResult("no mark price yet")
	}

	index, _, err := c.prices.GetPrice(m.Underlying, c.maxStalenessMs, cmd.NowMs)
	if err != nil {
		return nil, fmt.Errorf("oracle read for %s: %w", m.Underlying, err)
	}
	if index == 0 {
		return noopResult("zero index price")
	}

	deltaMag := num.NotionalBps(pos.Size, index, m.FundingRateBps)

	// Direction: when longs pay shorts, a long position's delta is negative
	// and a short's positive; mirrored otherwise.
	paysOut := (m.LongsPayShorts && pos.Side == state.SideShort) ||
		(!m.LongsPayShorts && pos.Side == state.SideLong)

	delta := num.SignedNeg(deltaMag)
	if paysOut {
		delta = num.SignedFrom(deltaMag)
	}
	pos.AccumulatedPnl = pos.AccumulatedPnl.Add(delta)
	pos.LastFundingMs = cmd.NowMs

	if c.metrics != nil {
		c.metrics.FundingApplied.WithLabelValues(pos.Market).Inc()
	}

	events := []emitted{{
		Type:   event.EventTypeFundingApplied,
		Market: pos.Market,
		Payload: &event.FundingApplied{
			PositionID:   pos.ID,
			Market:       pos.Market,
			Owner:        pos.Owner,
			RateBps:      m.FundingRateBps,
			IndexPrice:   index,
			DeltaPaysOut: paysOut,
			DeltaAmount:  deltaMag,
			Timestamp:    cmd.NowMs,
		},
	}}
	if pts := c.awardTaskPoints(TaskApplyFunding, cmd.Caller, cmd.NowMs); pts != nil {
		events = append(events, *pts)
	}

	return &cmdResult{events: events}, nil
}
