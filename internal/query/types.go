package query

import "github.com/google/uuid"

// BalanceResponse is one trader's balance view for a single asset.
// All responses carry as_of_sequence for freshness semantics.
type BalanceResponse struct {
	Owner string `json:"owner"`
	Asset string `json:"asset"`

	Collateral int64 `json:"collateral"` // free collateral
	Margin     int64 `json:"margin"`     // locked in positions
	Total      int64 `json:"total"`      // collateral + margin

	AsOfSequence int64 `json:"as_of_sequence"`
}

// PositionResponse is a position row for API queries.
type PositionResponse struct {
	PositionID   uuid.UUID `json:"position_id"`
	Market       string    `json:"market"`
	Owner        string    `json:"owner"`
	Side         string    `json:"side"`
	Size         int64     `json:"size"`
	EntryPrice   int64     `json:"entry_price"`
	Margin       int64     `json:"margin"`
	Status       string    `json:"status"`
	AsOfSequence int64     `json:"as_of_sequence"`
}

// FillResponse is a recorded fill for API queries.
type FillResponse struct {
	FillID       uuid.UUID `json:"fill_id"`
	Market       string    `json:"market"`
	Taker        string    `json:"taker"`
	Maker        string    `json:"maker"`
	Size         int64     `json:"size"`
	Price        int64     `json:"price"`
	Notional     int64     `json:"notional"`
	TakerIsBuyer bool      `json:"taker_is_buyer"`
	Sequence     int64     `json:"sequence"`
	TimestampMs  int64     `json:"timestamp_ms"`
	AsOfSequence int64     `json:"as_of_sequence"`
}

// FundingHistoryResponse is one funding rate print for API queries.
type FundingHistoryResponse struct {
	Market       string `json:"market"`
	RateBps      int64  `json:"rate_bps"`
	LongsPay     bool   `json:"longs_pay"`
	MarkPrice    int64  `json:"mark_price"`
	IndexPrice   int64  `json:"index_price"`
	TimestampMs  int64  `json:"timestamp_ms"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// RewardPointsResponse is one contributor's point total for an epoch.
type RewardPointsResponse struct {
	Epoch        int64  `json:"epoch"`
	Actor        string `json:"actor"`
	Points       int64  `json:"points"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// JournalHistoryEntry is a journal entry for API queries.
type JournalHistoryEntry struct {
	JournalID     string `json:"journal_id"`
	BatchID       string `json:"batch_id"`
	EventRef      string `json:"event_ref"`
	Sequence      int64  `json:"sequence"`
	DebitAccount  string `json:"debit_account"`
	CreditAccount string `json:"credit_account"`
	AssetID       uint16 `json:"asset_id"`
	Amount        int64  `json:"amount"`
	JournalType   int32  `json:"journal_type"`
	TimestampMs   int64  `json:"timestamp_ms"`
}

// IntegrityReport is the result of an integrity verification check.
type IntegrityReport struct {
	IsHealthy        bool              `json:"is_healthy"`
	HashChainBreaks  []int64           `json:"hash_chain_breaks,omitempty"`
	UnbalancedAssets []UnbalancedAsset `json:"unbalanced_assets,omitempty"`
}

// UnbalancedAsset is an asset whose global balance sum is non-zero.
type UnbalancedAsset struct {
	AssetID   uint16 `json:"asset_id"`
	Imbalance int64  `json:"imbalance"`
}
