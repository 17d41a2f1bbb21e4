// Package fees implements the trading fee pipeline: base fee, UNXV
// discount, maker rebate, bot reward, and treasury remainder. The pipeline
// is a pure function; routing the computed amounts is the caller's job.
package fees

import (
	"unxcore/internal/num"
)

// Config holds the basis-point fee schedule of a venue registry. By
// convention maker_rebate_bps + bot_reward_bps <= 10_000; the pipeline
// does not enforce this structurally but the rebate cap below keeps the
// split conservative for any configuration.
type Config struct {
	TradeFeeBps     uint64
	MakerRebateBps  uint64
	UnxvDiscountBps uint64
	BotRewardBps    uint64
}

// DiscountPayment is an optional UNXV payment offered against the fee
// discount, together with the token's validated oracle price.
type DiscountPayment struct {
	Amount     uint64 // UNXV offered by the payer
	TokenPrice uint64 // oracle price of one UNXV in collateral units
}

// Breakdown carries every quantity the pipeline computes. Conservation
// holds by construction:
//
//	MakerRebate + BotReward + TreasuryCut == CollateralFee
//	CollateralFee + DiscountAmount == BaseFee   (iff DiscountApplied)
type Breakdown struct {
	Notional        uint64
	BaseFee         uint64
	DiscountAmount  uint64 // portion of the base fee covered by UNXV
	CollateralFee   uint64 // fee payable in collateral after discount
	MakerRebate     uint64 // 0 when the configured rebate was skipped
	BotReward       uint64
	TreasuryCut     uint64
	DiscountApplied bool
	TokensCharged   uint64 // UNXV deducted from the payment
	TokensRefunded  uint64 // UNXV returned to the payer
}

// Compute runs the fee pipeline over a fill. The discount is all-or-nothing:
// if the supplied payment does not cover ceil(discount / token_price), the
// entire payment is refunded untouched and no discount applies.
func Compute(size, price uint64, cfg Config, discount *DiscountPayment) Breakdown {
	notional := num.Notional(size, price)

	bd := Breakdown{
		Notional: notional,
		BaseFee:  num.NotionalBps(size, price, cfg.TradeFeeBps),
	}
	bd.DiscountAmount = num.MulBps(bd.BaseFee, cfg.UnxvDiscountBps)

	if discount != nil {
		bd.TokensRefunded = discount.Amount
		if bd.DiscountAmount > 0 && discount.TokenPrice > 0 {
			tokensNeeded := num.CeilDiv(bd.DiscountAmount, discount.TokenPrice)
			if discount.Amount >= tokensNeeded {
				bd.DiscountApplied = true
				bd.TokensCharged = tokensNeeded
				bd.TokensRefunded = discount.Amount - tokensNeeded
			}
		}
	}

	bd.CollateralFee = bd.BaseFee
	if bd.DiscountApplied {
		bd.CollateralFee = bd.BaseFee - bd.DiscountAmount
	}

	// The rebate is computed on the base fee but paid out of the collateral
	// fee. A configured rebate that would consume the whole collateral fee
	// is skipped entirely, not clamped.
	rebate := num.MulBps(bd.BaseFee, cfg.MakerRebateBps)
	if rebate < bd.CollateralFee {
		bd.MakerRebate = rebate
	}

	bd.BotReward = num.MulBps(bd.CollateralFee, cfg.BotRewardBps)
	if bd.MakerRebate+bd.BotReward > bd.CollateralFee {
		bd.BotReward = bd.CollateralFee - bd.MakerRebate
	}

	bd.TreasuryCut = bd.CollateralFee - bd.MakerRebate - bd.BotReward
	return bd
}

// SettlementCut computes the flat settlement-style fee taken on close,
// liquidation seizure, and expiry payout paths, with its optional bot
// share. The bot share comes out of the fee, not on top of it.
func SettlementCut(amount uint64, feeBps, botRewardBps uint64) (fee, botCut uint64) {
	fee = num.MulBps(amount, feeBps)
	botCut = num.MulBps(fee, botRewardBps)
	if botCut > fee {
		botCut = fee
	}
	return fee, botCut
}
