package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// JournalType labels the purpose of a journal entry.
type JournalType int32

const (
	JournalTypeMarginLock JournalType = iota
	JournalTypeMarginRefund
	JournalTypeTradeFee
	JournalTypeMakerRebate
	JournalTypeBotReward
	JournalTypeTreasuryDeposit
	JournalTypeDiscountTokenDeposit
	JournalTypeLiquidationSeizure
	JournalTypeSettlementPayout
	JournalTypeSettlementLoss
	JournalTypeRewardPayout
	JournalTypeAdjustment
)

// Journal is a single double-entry transfer. Amount is always positive and
// moves from the credit account to the debit account.
type Journal struct {
	JournalID     uuid.UUID
	BatchID       uuid.UUID
	EventRef      string // idempotency key of the originating command
	Sequence      uint64
	DebitAccount  AccountKey
	CreditAccount AccountKey
	AssetID       AssetID
	Amount        uint64
	JournalType   JournalType
	Timestamp     uint64 // versioned input timestamp (ms)
}

// Batch groups the journal entries produced by one command.
type Batch struct {
	BatchID   uuid.UUID
	EventRef  string
	Sequence  uint64
	Timestamp uint64
	Journals  []Journal
}

// NewBatch starts an empty batch for a command. Ids are derived from the
// command's idempotency key so a replayed command reproduces the same batch
// byte for byte.
func NewBatch(eventRef string, sequence, timestamp uint64) *Batch {
	return &Batch{
		BatchID:   uuid.NewSHA1(uuid.NameSpaceOID, []byte("batch:"+eventRef)),
		EventRef:  eventRef,
		Sequence:  sequence,
		Timestamp: timestamp,
	}
}

// Transfer appends a journal entry to the batch. Zero amounts are skipped:
// fee splits routinely produce zero legs (skipped rebate, zero bot cut) and
// the ledger only records actual movements.
func (b *Batch) Transfer(debit, credit AccountKey, assetID AssetID, amount uint64, jt JournalType) {
	if amount == 0 {
		return
	}
	b.Journals = append(b.Journals, Journal{
		JournalID:     uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("journal:%s:%d", b.EventRef, len(b.Journals)))),
		BatchID:       b.BatchID,
		EventRef:      b.EventRef,
		Sequence:      b.Sequence,
		DebitAccount:  debit,
		CreditAccount: credit,
		AssetID:       assetID,
		Amount:        amount,
		JournalType:   jt,
		Timestamp:     b.Timestamp,
	})
}

// Validate ensures the batch is well-formed. Each entry is a balanced
// transfer by construction (one positive amount from credit to debit), so
// zero-sum holds per entry; multi-leg splits use multiple entries under one
// batch id.
func (b *Batch) Validate() error {
	for _, j := range b.Journals {
		if j.Amount == 0 {
			return fmt.Errorf("journal %s has zero amount", j.JournalID)
		}
		if j.BatchID != b.BatchID {
			return fmt.Errorf("journal %s has mismatched batch_id", j.JournalID)
		}
		if j.DebitAccount == j.CreditAccount {
			return fmt.Errorf("journal %s has same debit and credit account", j.JournalID)
		}
		if j.DebitAccount.AssetID != j.AssetID || j.CreditAccount.AssetID != j.AssetID {
			return fmt.Errorf("journal %s crosses assets", j.JournalID)
		}
	}
	return nil
}
