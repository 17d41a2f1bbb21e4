package ledger

import "fmt"

// InvariantValidator checks conservation properties over batches and the
// tracked balances.
type InvariantValidator struct {
	tracker *BalanceTracker
}

func NewInvariantValidator(tracker *BalanceTracker) *InvariantValidator {
	return &InvariantValidator{tracker: tracker}
}

// ValidateFeeSplit checks strict conservation of value across a fee split:
// maker rebate + bot reward + treasury remainder must equal the collateral
// fee, and when a discount was applied the collateral fee plus the discount
// must reconstruct the base fee.
func (v *InvariantValidator) ValidateFeeSplit(
	baseFee, discountAmount, collateralFee, makerRebate, botReward, treasuryCut uint64,
	discountApplied bool,
) error {
	if makerRebate+botReward+treasuryCut != collateralFee {
		return fmt.Errorf("fee split leaks value: rebate=%d + bot=%d + treasury=%d != collateral_fee=%d",
			makerRebate, botReward, treasuryCut, collateralFee)
	}
	if discountApplied {
		if collateralFee+discountAmount != baseFee {
			return fmt.Errorf("discount split leaks value: collateral_fee=%d + discount=%d != base_fee=%d",
				collateralFee, discountAmount, baseFee)
		}
	} else if collateralFee != baseFee {
		return fmt.Errorf("no discount applied but collateral_fee=%d != base_fee=%d", collateralFee, baseFee)
	}
	return nil
}

// ValidateZeroSum checks the global zero-sum invariant for every asset.
func (v *InvariantValidator) ValidateZeroSum() error {
	for assetID, total := range v.tracker.ComputeGlobalBalance() {
		if total != 0 {
			name, _ := GetAssetName(assetID)
			return fmt.Errorf("global balance non-zero for %s: %d", name, total)
		}
	}
	return nil
}

// ValidateBatchAccounts checks that no internal account went negative from
// applying a batch.
func (v *InvariantValidator) ValidateBatchAccounts(batch *Batch) error {
	seen := make(map[AccountKey]bool)
	for _, j := range batch.Journals {
		for _, key := range [2]AccountKey{j.DebitAccount, j.CreditAccount} {
			if seen[key] {
				continue
			}
			seen[key] = true
			if err := v.tracker.ValidateNonNegative(key); err != nil {
				return err
			}
		}
	}
	return nil
}
