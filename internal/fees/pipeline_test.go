package fees_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unxcore/internal/fees"
)

func assertConservation(t *testing.T, bd fees.Breakdown) {
	t.Helper()
	assert.Equal(t, bd.CollateralFee, bd.MakerRebate+bd.BotReward+bd.TreasuryCut,
		"fee split must conserve the collateral fee")
	if bd.DiscountApplied {
		assert.Equal(t, bd.BaseFee, bd.CollateralFee+bd.DiscountAmount,
			"discount must reconstruct the base fee")
	} else {
		assert.Equal(t, bd.BaseFee, bd.CollateralFee)
	}
}

func TestComputeNoDiscount(t *testing.T) {
	cfg := fees.Config{TradeFeeBps: 30, MakerRebateBps: 10, UnxvDiscountBps: 2_000, BotRewardBps: 500}

	bd := fees.Compute(1_000, 10_000, cfg, nil)

	assert.Equal(t, uint64(10_000_000), bd.Notional)
	assert.Equal(t, uint64(30_000), bd.BaseFee)
	assert.False(t, bd.DiscountApplied)
	assert.Equal(t, bd.BaseFee, bd.CollateralFee)
	assertConservation(t, bd)
}

func TestComputeDiscountAllOrNothing(t *testing.T) {
	cfg := fees.Config{TradeFeeBps: 100, UnxvDiscountBps: 5_000}

	// discountAmount = 20_000; at token price 2 the payer needs 10_000 UNXV.
	// Offering one token less refunds the whole payment and no discount
	// applies.
	short := fees.Compute(2_000, 2_000, cfg, &fees.DiscountPayment{Amount: 9_999, TokenPrice: 2})
	assert.False(t, short.DiscountApplied)
	assert.Equal(t, uint64(9_999), short.TokensRefunded)
	assert.Zero(t, short.TokensCharged)
	assert.Equal(t, short.BaseFee, short.CollateralFee)
	assertConservation(t, short)

	exact := fees.Compute(2_000, 2_000, cfg, &fees.DiscountPayment{Amount: 10_000, TokenPrice: 2})
	assert.True(t, exact.DiscountApplied)
	assert.Equal(t, uint64(10_000), exact.TokensCharged)
	assert.Zero(t, exact.TokensRefunded)
	assert.Equal(t, uint64(20_000), exact.CollateralFee)
	assertConservation(t, exact)

	excess := fees.Compute(2_000, 2_000, cfg, &fees.DiscountPayment{Amount: 12_500, TokenPrice: 2})
	assert.True(t, excess.DiscountApplied)
	assert.Equal(t, uint64(10_000), excess.TokensCharged)
	assert.Equal(t, uint64(2_500), excess.TokensRefunded)
	assertConservation(t, excess)
}

func TestComputeRebateSkippedNotClamped(t *testing.T) {
	// base fee 40_000; discount halves the collateral fee to 20_000; the
	// configured rebate (half the BASE fee, 20_000) would consume the whole
	// collateral fee, so it is skipped outright and the treasury keeps all
	// 20_000.
	cfg := fees.Config{TradeFeeBps: 100, MakerRebateBps: 5_000, UnxvDiscountBps: 5_000}

	bd := fees.Compute(2_000, 2_000, cfg, &fees.DiscountPayment{Amount: 10_000, TokenPrice: 2})
	require.True(t, bd.DiscountApplied)
	assert.Equal(t, uint64(40_000), bd.BaseFee)
	assert.Equal(t, uint64(20_000), bd.CollateralFee)
	assert.Zero(t, bd.MakerRebate, "rebate must be skipped, not clamped")
	assert.Equal(t, uint64(20_000), bd.TreasuryCut)
	assertConservation(t, bd)
}

func TestComputeBotRewardClampedToRemainder(t *testing.T) {
	cfg := fees.Config{TradeFeeBps: 100, MakerRebateBps: 4_000, BotRewardBps: 9_000}

	bd := fees.Compute(100, 100, cfg, nil)
	// baseFee 100, rebate 40, bot would be 90 but only 60 remains.
	assert.Equal(t, uint64(100), bd.BaseFee)
	assert.Equal(t, uint64(40), bd.MakerRebate)
	assert.Equal(t, uint64(60), bd.BotReward)
	assert.Zero(t, bd.TreasuryCut)
	assertConservation(t, bd)
}

func TestComputeZeroPriceTokenNoDiscount(t *testing.T) {
	cfg := fees.Config{TradeFeeBps: 100, UnxvDiscountBps: 5_000}

	bd := fees.Compute(2_000, 2_000, cfg, &fees.DiscountPayment{Amount: 10_000, TokenPrice: 0})
	assert.False(t, bd.DiscountApplied)
	assert.Equal(t, uint64(10_000), bd.TokensRefunded)
	assertConservation(t, bd)
}

func TestSettlementCut(t *testing.T) {
	fee, botCut := fees.SettlementCut(100_000, 100, 500)
	assert.Equal(t, uint64(1_000), fee)
	assert.Equal(t, uint64(50), botCut)

	fee, botCut = fees.SettlementCut(0, 100, 500)
	assert.Zero(t, fee)
	assert.Zero(t, botCut)
}
