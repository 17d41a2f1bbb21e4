package core

import (
	"fmt"

	"unxcore/internal/event"
)

// handleListMarket lists a new instrument. Listing is permissionless; the
// registry enforces the per-symbol throttle and validity checks.
func (c *MarginCore) handleListMarket(cmd *event.ListMarket) (*cmdResult, error) {
	reg, err := c.registry(cmd.Venue)
	if err != nil {
		return nil, err
	}

	m, err := reg.ListMarket(cmd.Symbol, cmd.Underlying, cmd.Kind, cmd.TickSize, cmd.ExpiryMs, cmd.NowMs)
	if err != nil {
		return nil, err
	}

	return &cmdResult{
		events: []emitted{{
			Type:   event.EventTypeMarketListed,
			Market: cmd.Symbol,
			Payload: &event.MarketListed{
				Venue:      cmd.Venue,
				Symbol:     m.Symbol,
				Underlying: m.Underlying,
				Kind:       m.Kind.String(),
				TickSize:   m.TickSize,
				ExpiryMs:   m.ExpiryMs,
				Timestamp:  cmd.NowMs,
			},
		}},
	}, nil
}

// handleAdminUpdate applies a gated registry mutation.
func (c *MarginCore) handleAdminUpdate(cmd *event.AdminUpdate) (*cmdResult, error) {
	if !c.authorizer.IsAuthorized(cmd.Actor) {
		return nil, fmt.Errorf("%w: %s", ErrNotAuthorized, cmd.Actor)
	}
	reg, err := c.registry(cmd.Venue)
	if err != nil {
		return nil, err
	}

	switch cmd.Op {
	case event.AdminOpSetFees:
		cfg := reg.Fees
		cfg.TradeFeeBps = cmd.TradeFeeBps
		cfg.MakerRebateBps = cmd.MakerRebateBps
		cfg.UnxvDiscountBps = cmd.UnxvDiscountBps
		cfg.BotRewardBps = cmd.BotRewardBps
		reg.SetFees(cfg)

	case event.AdminOpSetFundingParams:
		reg.SetFundingParams(cmd.FundingIntervalMs, cmd.MaxFundingRateBps, cmd.PremiumWeightBps)

	case event.AdminOpSetMarginDefaults:
		reg.SetMarginDefaults(cmd.InitMarginBps, cmd.MaintMarginBps)

	case event.AdminOpSetMarketMargins:
		if err := reg.SetMarketMargins(cmd.Market, cmd.InitMarginBps, cmd.MaintMarginBps); err != nil {
			return nil, err
		}

	case event.AdminOpSetPaused:
		reg.SetPaused(cmd.Paused)

	case event.AdminOpSetMarketPaused:
		if err := reg.SetMarketPaused(cmd.Market, cmd.Paused); err != nil {
			return nil, err
		}

	case event.AdminOpSetListInterval:
		reg.SetListInterval(cmd.IntervalMs)

	case event.AdminOpSetDisputeWindow:
		reg.SetDisputeWindow(cmd.WindowMs)

	case event.AdminOpSetTaskWeight:
		c.rewards.SetWeight(cmd.TaskKey, cmd.TaskWeight)

	default:
		return nil, fmt.Errorf("unknown admin op: %d", cmd.Op)
	}

	return &cmdResult{
		events: []emitted{{
			Type: event.EventTypeRegistryUpdated,
			Payload: &event.RegistryUpdated{
				Venue:     cmd.Venue,
				Op:        cmd.Op.String(),
				Actor:     cmd.Actor,
				Version:   reg.Version,
				Timestamp: cmd.NowMs,
			},
		}},
	}, nil
}
