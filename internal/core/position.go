package core

import (
	"fmt"

	"github.com/google/uuid"

	"unxcore/internal/event"
	"unxcore/internal/fees"
	"unxcore/internal/ledger"
	"unxcore/internal/num"
	"unxcore/internal/treasury"
)

// handleOpenPosition locks exactly the initial margin requirement out of the
// offered payment and creates the position. The excess never enters the
// ledger; it is refunded at the boundary.
func (c *MarginCore) handleOpenPosition(cmd *event.OpenPosition) (*cmdResult, error) {
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

	required := num.NotionalBps(cmd.Size, cmd.Price, m.InitMarginBps)
	if cmd.MarginPayment < required {
		return nil, fmt.Errorf("%w: payment=%d required=%d", ErrInsufficientMargin, cmd.MarginPayment, required)
	}
	refunded := cmd.MarginPayment - required

	// Position identity is derived from the command id so replay lands on
	// the same position.
	posID := uuid.NewSHA1(uuid.NameSpaceOID, []byte("position:"+cmd.CmdID.String()))
	pos := c.positions.Create(posID, cmd.Owner, cmd.Market, cmd.Side, cmd.Size, cmd.Price, required, cmd.NowMs)
	m.AddOpenInterest(cmd.Size)

	batch := ledger.NewBatch(cmd.IdempotencyKey(), uint64(c.sequence), cmd.NowMs)
	batch.Transfer(
		ledger.NewUserAccountKey(cmd.Owner, ledger.SubTypeMargin, ledger.AssetUSDC),
		ledger.NewCustodyKey(ledger.AssetUSDC),
		ledger.AssetUSDC, required, ledger.JournalTypeMarginLock,
	)

	return &cmdResult{
		batch: batch,
		events: []emitted{{
			Type:   event.EventTypePositionOpened,
			Market: cmd.Market,
			Payload: &event.PositionOpened{
				PositionID:   pos.ID,
				Market:       cmd.Market,
				Owner:        cmd.Owner,
				Side:         cmd.Side,
				Size:         cmd.Size,
				EntryPrice:   cmd.Price,
				MarginLocked: required,
				Refunded:     refunded,
				Timestamp:    cmd.NowMs,
			},
		}},
	}, nil
}

// handleClosePosition realizes the signed PnL of the closed quantity into
// the position's accumulated ledger, releases margin proportionally, and
// takes a settlement-style fee on the closed notional out of the refund.
func (c *MarginCore) handleClosePosition(cmd *event.ClosePosition) (*cmdResult, error) {
	reg, err := c.registry(cmd.Venue)
	if err != nil {
		return nil, err
	}
	pos := c.positions.GetOwned(cmd.PositionID, cmd.Owner)
	if pos == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPosition, cmd.PositionID)
	}
	m, err := c.liveMarket(reg, pos.Market)
	if err != nil {
		return nil, err
	}
	if m.Expired {
		return nil, fmt.Errorf("%w: %s, settle instead", ErrMarketExpired, pos.Market)
	}
	if cmd.Qty == 0 {
		return nil, ErrZeroSize
	}
	if cmd.Qty > pos.Size {
		return nil, fmt.Errorf("%w: qty=%d size=%d", ErrQtyExceedsPosition, cmd.Qty, pos.Size)
	}
	if !m.TickAligned(cmd.Price) {
		return nil, fmt.Errorf("%w: price=%d tick=%d", ErrMisalignedPrice, cmd.Price, m.TickSize)
	}

	pnl := pos.VariationPnl(cmd.Price, cmd.Qty)
	pos.AccumulatedPnl = pos.AccumulatedPnl.Add(pnl)

	// Proportional release, floored. A full close releases everything since
	// floor(margin * size / size) == margin.
	refund := num.MulDiv(pos.Margin, cmd.Qty, pos.Size)
	pos.Margin -= refund
	pos.Size -= cmd.Qty
	m.ReduceOpenInterest(cmd.Qty)
	m.RecordTrade(cmd.Price, cmd.Qty, false)

	// Close fee on the closed notional, capped at the refund, with the bot
	// share carved out of the fee.
	closedNotional := num.Notional(cmd.Qty, cmd.Price)
	fee, botCut := fees.SettlementCut(closedNotional, reg.Fees.TradeFeeBps, reg.Fees.BotRewardBps)
	if fee > refund {
		fee = refund
		if botCut > fee {
			botCut = fee
		}
	}
	if cmd.Bot == "" {
		botCut = 0
	}
	netRefund := refund - fee

	epoch := c.currentEpoch(cmd.NowMs)
	margin := ledger.NewUserAccountKey(cmd.Owner, ledger.SubTypeMargin, ledger.AssetUSDC)
	batch := ledger.NewBatch(cmd.IdempotencyKey(), uint64(c.sequence), cmd.NowMs)

	batch.Transfer(
		ledger.NewUserAccountKey(cmd.Owner, ledger.SubTypeCollateral, ledger.AssetUSDC),
		margin, ledger.AssetUSDC, netRefund, ledger.JournalTypeMarginRefund,
	)
	batch.Transfer(
		ledger.NewUserAccountKey(cmd.Bot, ledger.SubTypeCollateral, ledger.AssetUSDC),
		margin, ledger.AssetUSDC, botCut, ledger.JournalTypeBotReward,
	)
	c.treasury.DepositTo(batch, margin, treasury.Deposit{
		Asset:      ledger.AssetUSDC,
		Amount:     fee - botCut,
		Reason:     treasury.ReasonSettlementFee,
		Attributed: cmd.Owner,
		Epoch:      epoch,
	})

	events := []emitted{
		{
			Type:   event.EventTypeVariationMarginApplied,
			Market: pos.Market,
			Payload: &event.VariationMarginApplied{
				PositionID:  pos.ID,
				Market:      pos.Market,
				Owner:       cmd.Owner,
				Qty:         cmd.Qty,
				Price:       cmd.Price,
				PnlPositive: pnl.Positive,
				PnlAmount:   pnl.Magnitude,
				Timestamp:   cmd.NowMs,
			},
		},
		{
			Type:   event.EventTypePositionClosed,
			Market: pos.Market,
			Payload: &event.PositionClosed{
				PositionID:    pos.ID,
				Market:        pos.Market,
				Owner:         cmd.Owner,
				Qty:           cmd.Qty,
				RemainingSize: pos.Size,
				Price:         cmd.Price,
				MarginRefund:  netRefund,
				CloseFee:      fee,
				BotCut:        botCut,
				Bot:           cmd.Bot,
				Timestamp:     cmd.NowMs,
			},
		},
	}

	return &cmdResult{batch: batch, events: events}, nil
}
