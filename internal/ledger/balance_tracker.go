package ledger

import "fmt"

// BalanceTracker maintains in-memory account balances. Balances are signed:
// the external custody account runs negative by construction (it is the
// counter-side for all value entering the core).
type BalanceTracker struct {
	balances map[AccountKey]int64
}

func NewBalanceTracker() *BalanceTracker {
	return &BalanceTracker{
		balances: make(map[AccountKey]int64),
	}
}

// ApplyJournal applies a single journal entry.
func (bt *BalanceTracker) ApplyJournal(j Journal) {
	bt.balances[j.DebitAccount] += int64(j.Amount)
	bt.balances[j.CreditAccount] -= int64(j.Amount)
}

// ApplyBatch validates and applies all journals in a batch.
func (bt *BalanceTracker) ApplyBatch(batch *Batch) error {
	if err := batch.Validate(); err != nil {
		return fmt.Errorf("invalid batch: %w", err)
	}
	for _, j := range batch.Journals {
		bt.ApplyJournal(j)
	}
	return nil
}

// GetBalance returns the current balance for an account.
func (bt *BalanceTracker) GetBalance(key AccountKey) int64 {
	return bt.balances[key]
}

// GetUserCollateral returns a trader's free collateral.
func (bt *BalanceTracker) GetUserCollateral(owner string, assetID AssetID) int64 {
	return bt.GetBalance(NewUserAccountKey(owner, SubTypeCollateral, assetID))
}

// GetUserMargin returns a trader's locked margin total.
func (bt *BalanceTracker) GetUserMargin(owner string, assetID AssetID) int64 {
	return bt.GetBalance(NewUserAccountKey(owner, SubTypeMargin, assetID))
}

// GetEpochReserve returns the treasury reserve for one epoch and asset.
func (bt *BalanceTracker) GetEpochReserve(epoch uint64, assetID AssetID) uint64 {
	b := bt.GetBalance(NewEpochReserveKey(epoch, assetID))
	if b < 0 {
		return 0
	}
	return uint64(b)
}

// ComputeGlobalBalance sums all account balances per asset; the ledger is
// zero-sum, so every total must be 0.
func (bt *BalanceTracker) ComputeGlobalBalance() map[AssetID]int64 {
	totals := make(map[AssetID]int64)
	for key, balance := range bt.balances {
		totals[key.AssetID] += balance
	}
	return totals
}

// ValidateNonNegative checks that an internal account balance is >= 0.
// Custody is exempt; it is the external boundary.
func (bt *BalanceTracker) ValidateNonNegative(key AccountKey) error {
	if key.Scope == AccountScopeExternal {
		return nil
	}
	if balance := bt.GetBalance(key); balance < 0 {
		return fmt.Errorf("account %s has negative balance: %d", key.AccountPath(), balance)
	}
	return nil
}

// SetBalance directly sets a balance (snapshot restore only).
func (bt *BalanceTracker) SetBalance(key AccountKey, balance int64) {
	bt.balances[key] = balance
}

// Snapshot returns a copy of all balances.
func (bt *BalanceTracker) Snapshot() map[AccountKey]int64 {
	snapshot := make(map[AccountKey]int64, len(bt.balances))
	for k, v := range bt.balances {
		snapshot[k] = v
	}
	return snapshot
}
