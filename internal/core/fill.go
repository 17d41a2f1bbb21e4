package core

import (
	"fmt"

	"unxcore/internal/event"
	"unxcore/internal/fees"
	"unxcore/internal/ledger"
	"unxcore/internal/num"
	"unxcore/internal/treasury"
)

// TaskRecordFill is the reward task key credited to the bot recording a fill.
const TaskRecordFill = "fill.record"

// handleRecordFill runs the fee pipeline over a matched trade and routes the
// split: rebate to the maker, bot cut to the recording bot, remainder to the
// epoch-tagged treasury reserve. Fee and token payments travel with the
// command; only what the pipeline charges enters the ledger, the rest never
// leaves the boundary.
func (c *MarginCore) handleRecordFill(cmd *event.RecordFill) (*cmdResult, error) {
	reg, err := c.registry(cmd.Venue)
	if err != nil {
		return nil, err
	}
	m, err := c.liveMarket(reg, cmd.Market)
	if err != nil {
		return nil, err
	}
	if m.Expired {
		return nil, fmt.Errorf("%w: %s", ErrMarketExpired, cmd.Market)
	}
	if cmd.Size == 0 {
		return nil, ErrZeroSize
	}
	if !m.TickAligned(cmd.Price) {
		return nil, fmt.Errorf("%w: price=%d tick=%d", ErrMisalignedPrice, cmd.Price, m.TickSize)
	}
	if cmd.MinPrice > 0 && cmd.Price < cmd.MinPrice {
		return nil, fmt.Errorf("%w: price=%d min=%d", ErrPriceOutOfBounds, cmd.Price, cmd.MinPrice)
	}
	if cmd.MaxPrice > 0 && cmd.Price > cmd.MaxPrice {
		return nil, fmt.Errorf("%w: price=%d max=%d", ErrPriceOutOfBounds, cmd.Price, cmd.MaxPrice)
	}

	// The UNXV discount needs the token's oracle price. Only consulted when
	// a payment was actually offered; an oracle failure aborts the fill.
	var discount *fees.DiscountPayment
	if cmd.UnxvPayment > 0 {
		tokenPrice, _, err := c.prices.GetPrice("UNXV", c.maxStalenessMs, cmd.NowMs)
		if err != nil {
			return nil, fmt.Errorf("oracle read for UNXV: %w", err)
		}
		discount = &fees.DiscountPayment{Amount: cmd.UnxvPayment, TokenPrice: tokenPrice}
	}

	bd := fees.Compute(cmd.Size, cmd.Price, reg.Fees, discount)

	if cmd.FeePayment < bd.CollateralFee {
		return nil, fmt.Errorf("%w: payment=%d fee=%d", ErrInsufficientFee, cmd.FeePayment, bd.CollateralFee)
	}

	if err := c.validator.ValidateFeeSplit(
		bd.BaseFee, bd.DiscountAmount, bd.CollateralFee,
		bd.MakerRebate, bd.BotReward, bd.TreasuryCut, bd.DiscountApplied,
	); err != nil {
		panic(fmt.Sprintf("FATAL: fee pipeline leaked value: %v", err))
	}

	epoch := c.currentEpoch(cmd.NowMs)
	batch := ledger.NewBatch(cmd.IdempotencyKey(), uint64(c.sequence), cmd.NowMs)
	custody := ledger.NewCustodyKey(ledger.AssetUSDC)

	batch.Transfer(
		ledger.NewUserAccountKey(cmd.Maker, ledger.SubTypeCollateral, ledger.AssetUSDC),
		custody, ledger.AssetUSDC, bd.MakerRebate, ledger.JournalTypeMakerRebate,
	)

	// Without a recording bot the bot cut falls through to the treasury.
	botCut := bd.BotReward
	treasuryCut := bd.TreasuryCut
	if cmd.Bot != "" {
		batch.Transfer(
			ledger.NewUserAccountKey(cmd.Bot, ledger.SubTypeCollateral, ledger.AssetUSDC),
			custody, ledger.AssetUSDC, botCut, ledger.JournalTypeBotReward,
		)
	} else {
		treasuryCut += botCut
		botCut = 0
	}

	c.treasury.DepositTo(batch, custody, treasury.Deposit{
		Asset:      ledger.AssetUSDC,
		Amount:     treasuryCut,
		Reason:     treasury.ReasonTradeFee,
		Attributed: cmd.Taker,
		Epoch:      epoch,
	})

	if bd.DiscountApplied {
		c.treasury.DepositTo(batch, ledger.NewCustodyKey(ledger.AssetUNXV), treasury.Deposit{
			Asset:      ledger.AssetUNXV,
			Amount:     bd.TokensCharged,
			Reason:     treasury.ReasonDiscountTokens,
			Attributed: cmd.Taker,
			Epoch:      epoch,
		})
	}

	m.RecordTrade(cmd.Price, cmd.Size, cmd.OiIncrease)

	if c.metrics != nil {
		c.metrics.FeeVolume.WithLabelValues(cmd.Market, "maker").Add(float64(bd.MakerRebate))
		c.metrics.FeeVolume.WithLabelValues(cmd.Market, "bot").Add(float64(botCut))
		c.metrics.FeeVolume.WithLabelValues(cmd.Market, "treasury").Add(float64(treasuryCut))
		if bd.DiscountApplied {
			c.metrics.DiscountsApplied.WithLabelValues(cmd.Market).Inc()
		}
		if bd.MakerRebate == 0 && reg.Fees.MakerRebateBps > 0 {
			c.metrics.RebatesSkipped.WithLabelValues(cmd.Market).Inc()
		}
	}

	events := []emitted{
		{
			Type:   event.EventTypeFillRecorded,
			Market: cmd.Market,
			Payload: &event.FillRecorded{
				FillID:       cmd.FillID,
				Market:       cmd.Market,
				Taker:        cmd.Taker,
				Maker:        cmd.Maker,
				Size:         cmd.Size,
				Price:        cmd.Price,
				Notional:     num.Notional(cmd.Size, cmd.Price),
				TakerIsBuyer: cmd.TakerIsBuyer,
				OiIncrease:   cmd.OiIncrease,
				Timestamp:    cmd.NowMs,
			},
		},
		{
			Type:   event.EventTypeFillFee,
			Market: cmd.Market,
			Payload: &event.FillFee{
				FillID:          cmd.FillID,
				Market:          cmd.Market,
				Payer:           cmd.Taker,
				BaseFee:         bd.BaseFee,
				DiscountAmount:  bd.DiscountAmount,
				DiscountApplied: bd.DiscountApplied,
				TokensCharged:   bd.TokensCharged,
				TokensRefunded:  bd.TokensRefunded,
				CollateralFee:   bd.CollateralFee,
				MakerRebate:     bd.MakerRebate,
				BotReward:       botCut,
				TreasuryCut:     treasuryCut,
				Epoch:           epoch,
				Timestamp:       cmd.NowMs,
			},
		},
	}
	if pts := c.awardTaskPoints(TaskRecordFill, cmd.Bot, cmd.NowMs); pts != nil {
		events = append(events, *pts)
	}

	return &cmdResult{batch: batch, events: events}, nil
}
