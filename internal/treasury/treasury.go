// Package treasury routes protocol fee value into epoch-scoped reserve
// accounts and pays bot reward claims back out of them. Reserves are ordinary
// ledger accounts; this package only decides which account a movement
// touches, the batch it appends to stays atomic with the rest of the command.
package treasury

import (
	"unxcore/internal/ledger"
	"unxcore/internal/num"
)

// DepositReason tags why value entered a reserve.
type DepositReason string

const (
	ReasonTradeFee       DepositReason = "trade_fee"
	ReasonDiscountTokens DepositReason = "discount_tokens"
	ReasonLiquidation    DepositReason = "liquidation"
	ReasonSettlementFee  DepositReason = "settlement_fee"
)

// Deposit records a fee deposit attributed to an epoch. The value moves from
// the contributor's collateral account (or custody for token payments routed
// straight through) into the epoch reserve.
type Deposit struct {
	Asset      ledger.AssetID
	Amount     uint64
	Reason     DepositReason
	Attributed string // address the deposit is attributed to, for indexing
	Epoch      uint64
}

// ReserveKey addresses one epoch's reserve for one asset.
type ReserveKey struct {
	Epoch uint64
	Asset ledger.AssetID
}

// Treasury reads reserve balances and appends reserve movements to command
// batches. Alongside the live ledger balance it tracks the gross amount ever
// accrued per epoch and asset: claim shares are computed against the gross
// figure so earlier payouts cannot dilute later claimants.
type Treasury struct {
	balances *ledger.BalanceTracker
	accrued  map[ReserveKey]uint64
}

func New(balances *ledger.BalanceTracker) *Treasury {
	return &Treasury{
		balances: balances,
		accrued:  make(map[ReserveKey]uint64),
	}
}

// DepositTo appends the reserve credit for a deposit to the batch. from is
// the account the value leaves.
func (t *Treasury) DepositTo(batch *ledger.Batch, from ledger.AccountKey, d Deposit) {
	jt := ledger.JournalTypeTreasuryDeposit
	if d.Asset == ledger.AssetUNXV {
		jt = ledger.JournalTypeDiscountTokenDeposit
	}
	batch.Transfer(ledger.NewEpochReserveKey(d.Epoch, d.Asset), from, d.Asset, d.Amount, jt)

	key := ReserveKey{Epoch: d.Epoch, Asset: d.Asset}
	t.accrued[key] = num.SatAdd(t.accrued[key], d.Amount)
}

// EpochReserve returns the remaining reserve for one epoch and asset.
func (t *Treasury) EpochReserve(epoch uint64, asset ledger.AssetID) uint64 {
	return t.balances.GetEpochReserve(epoch, asset)
}

// EpochAccrued returns the gross amount ever deposited into one epoch's
// reserve. Unlike EpochReserve it never shrinks as claims pay out; it is the
// denominator base for pro-rata shares.
func (t *Treasury) EpochAccrued(epoch uint64, asset ledger.AssetID) uint64 {
	return t.accrued[ReserveKey{Epoch: epoch, Asset: asset}]
}

// Accrued returns a copy of the gross accrual table (snapshot support).
func (t *Treasury) Accrued() map[ReserveKey]uint64 {
	out := make(map[ReserveKey]uint64, len(t.accrued))
	for k, v := range t.accrued {
		out[k] = v
	}
	return out
}

// RestoreAccrued reinstates one gross accrual entry (snapshot restore).
func (t *Treasury) RestoreAccrued(epoch uint64, asset ledger.AssetID, amount uint64) {
	t.accrued[ReserveKey{Epoch: epoch, Asset: asset}] = amount
}

// PayFromEpochReserve appends a reward payout from the epoch reserve to a
// claimant's collateral account. This is the only path that withdraws from a
// reserve. The share is capped at the remaining reserve so a rounding
// overshoot can never drive the account negative.
func (t *Treasury) PayFromEpochReserve(batch *ledger.Batch, epoch uint64, asset ledger.AssetID, claimant string, share uint64) uint64 {
	remaining := t.EpochReserve(epoch, asset)
	if share > remaining {
		share = remaining
	}
	if share == 0 {
		return 0
	}
	batch.Transfer(
		ledger.NewUserAccountKey(claimant, ledger.SubTypeCollateral, asset),
		ledger.NewEpochReserveKey(epoch, asset),
		asset, share, ledger.JournalTypeRewardPayout,
	)
	return share
}
