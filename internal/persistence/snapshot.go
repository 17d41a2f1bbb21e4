package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"unxcore/internal/core"
	"unxcore/internal/ledger"
	"unxcore/internal/state"
	"unxcore/internal/treasury"
)

// SnapshotManager creates and loads state snapshots for recovery. Snapshots
// hold balances, positions, markets, the settlement queue, reward point
// bookkeeping, sequence counters, recent idempotency keys, and the last
// state hash. Warm restart = load latest snapshot, replay events from
// snapshot.sequence+1.
type SnapshotManager struct {
	db *sql.DB
}

// SnapshotData is the serialized snapshot payload (format v1, JSON).
type SnapshotData struct {
	Sequence  int64  `json:"sequence"`
	StateHash []byte `json:"state_hash"`

	Balances    []BalanceRow              `json:"balances"`
	Positions   []*state.Position         `json:"positions"`
	Markets     map[string][]*state.Market `json:"markets"`
	SettleQueue []core.QueuedSettlement   `json:"settle_queue"`

	RewardEpochs    []RewardEpochData   `json:"reward_epochs"`
	PointsCurrent   map[string]uint64   `json:"points_current"`
	TreasuryAccrued []ReserveAccrualRow `json:"treasury_accrued"`

	SequenceState   map[string]int64 `json:"sequence_state"`
	IdempotencyKeys []string         `json:"idempotency_keys"`

	CreatedAt time.Time `json:"created_at"`
}

// BalanceRow is one account balance in serializable form.
type BalanceRow struct {
	Scope   uint8  `json:"scope"`
	Entity  string `json:"entity"`
	SubType uint8  `json:"sub_type"`
	AssetID uint16 `json:"asset_id"`
	Balance int64  `json:"balance"`
}

// RewardEpochData is one epoch's point bookkeeping in serializable form.
type RewardEpochData struct {
	Epoch  uint64            `json:"epoch"`
	Points map[string]uint64 `json:"points"`
	Total  *big.Int          `json:"total"`
}

// ReserveAccrualRow is one epoch reserve's gross accrual in serializable
// form.
type ReserveAccrualRow struct {
	Epoch   uint64 `json:"epoch"`
	AssetID uint16 `json:"asset_id"`
	Amount  uint64 `json:"amount"`
}

// NewSnapshotData converts the core's in-memory snapshot into the
// serializable form.
func NewSnapshotData(snap *core.SnapshotState, createdAt time.Time) *SnapshotData {
	balances := make([]BalanceRow, 0, len(snap.Balances))
	for key, balance := range snap.Balances {
		balances = append(balances, BalanceRow{
			Scope:   uint8(key.Scope),
			Entity:  key.Entity,
			SubType: uint8(key.SubType),
			AssetID: uint16(key.AssetID),
			Balance: balance,
		})
	}

	epochs := make([]RewardEpochData, 0, len(snap.RewardEpochs))
	for _, re := range snap.RewardEpochs {
		epochs = append(epochs, RewardEpochData{Epoch: re.Epoch, Points: re.Points, Total: re.Total})
	}

	accruals := make([]ReserveAccrualRow, 0, len(snap.TreasuryAccrued))
	for key, amount := range snap.TreasuryAccrued {
		accruals = append(accruals, ReserveAccrualRow{
			Epoch:   key.Epoch,
			AssetID: uint16(key.Asset),
			Amount:  amount,
		})
	}

	return &SnapshotData{
		Sequence:        snap.Sequence,
		StateHash:       append([]byte(nil), snap.StateHash[:]...),
		Balances:        balances,
		Positions:       snap.Positions,
		Markets:         snap.Markets,
		SettleQueue:     snap.SettleQueue,
		RewardEpochs:    epochs,
		PointsCurrent:   snap.PointsCurrent,
		TreasuryAccrued: accruals,
		SequenceState:   snap.SequenceState,
		IdempotencyKeys: snap.IdempotencyKeys,
		CreatedAt:       createdAt,
	}
}

// CoreState converts back to the core's snapshot form for restore.
func (sd *SnapshotData) CoreState() *core.SnapshotState {
	balances := make(map[ledger.AccountKey]int64, len(sd.Balances))
	for _, row := range sd.Balances {
		key := ledger.AccountKey{
			Scope:   ledger.AccountScope(row.Scope),
			Entity:  row.Entity,
			SubType: ledger.AccountSubType(row.SubType),
			AssetID: ledger.AssetID(row.AssetID),
		}
		balances[key] = row.Balance
	}

	epochs := make([]core.RewardEpochSnapshot, 0, len(sd.RewardEpochs))
	for _, re := range sd.RewardEpochs {
		epochs = append(epochs, core.RewardEpochSnapshot{Epoch: re.Epoch, Points: re.Points, Total: re.Total})
	}

	accruals := make(map[treasury.ReserveKey]uint64, len(sd.TreasuryAccrued))
	for _, row := range sd.TreasuryAccrued {
		accruals[treasury.ReserveKey{
			Epoch: row.Epoch,
			Asset: ledger.AssetID(row.AssetID),
		}] = row.Amount
	}

	snap := &core.SnapshotState{
		Sequence:        sd.Sequence,
		Balances:        balances,
		Positions:       sd.Positions,
		Markets:         sd.Markets,
		SettleQueue:     sd.SettleQueue,
		RewardEpochs:    epochs,
		PointsCurrent:   sd.PointsCurrent,
		TreasuryAccrued: accruals,
		SequenceState:   sd.SequenceState,
		IdempotencyKeys: sd.IdempotencyKeys,
	}
	copy(snap.StateHash[:], sd.StateHash)
	return snap
}

func NewSnapshotManager(db *sql.DB) *SnapshotManager {
	return &SnapshotManager{db: db}
}

// SaveSnapshot persists a snapshot. Snapshots are taken periodically and
// verified by replaying events from the snapshot sequence forward.
func (sm *SnapshotManager) SaveSnapshot(ctx context.Context, snap *SnapshotData) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	const formatVersion = int32(1) // v1: JSON-encoded SnapshotData

	_, err = sm.db.ExecContext(ctx, `
		INSERT INTO event_log.snapshots
			(snapshot_id, sequence, data, state_hash, format_version, size_bytes, verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)
		ON CONFLICT (sequence) DO UPDATE SET data = $3, state_hash = $4, size_bytes = $6
	`, uuid.New(), snap.Sequence, data, snap.StateHash, formatVersion, len(data), snap.CreatedAt)

	return err
}

// LoadLatestSnapshot loads the most recent verified snapshot, or nil for a
// cold start.
func (sm *SnapshotManager) LoadLatestSnapshot(ctx context.Context) (*SnapshotData, error) {
	row := sm.db.QueryRowContext(ctx, `
		SELECT data FROM event_log.snapshots
		WHERE verified = TRUE
		ORDER BY sequence DESC
		LIMIT 1
	`)

	var data []byte
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap SnapshotData
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// MarkVerified marks a snapshot as verified after the replay check.
func (sm *SnapshotManager) MarkVerified(ctx context.Context, sequence int64) error {
	_, err := sm.db.ExecContext(ctx, `
		UPDATE event_log.snapshots SET verified = TRUE WHERE sequence = $1
	`, sequence)
	return err
}

// LoadEventsFrom loads events from a given sequence for replay.
func (sm *SnapshotManager) LoadEventsFrom(ctx context.Context, fromSequence int64, limit int) ([]EventRow, error) {
	rows, err := sm.db.QueryContext(ctx, `
		SELECT sequence, event_type, idempotency_key, market, payload,
		       state_hash, prev_hash, timestamp_ms, source_sequence
		FROM event_log.events
		WHERE sequence >= $1
		ORDER BY sequence ASC
		LIMIT $2
	`, fromSequence, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventRow
	for rows.Next() {
		var e EventRow
		if err := rows.Scan(
			&e.Sequence, &e.EventType, &e.IdempotencyKey, &e.Market,
			&e.Payload, &e.StateHash, &e.PrevHash, &e.TimestampMs, &e.SourceSequence,
		); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// HeadState returns the sequence and state hash of the newest event row.
// Sequence 0 with a nil hash means the log is empty.
func (sm *SnapshotManager) HeadState(ctx context.Context) (int64, []byte, error) {
	var seq int64
	var hash []byte
	err := sm.db.QueryRowContext(ctx, `
		SELECT sequence, state_hash FROM event_log.events
		ORDER BY sequence DESC LIMIT 1
	`).Scan(&seq, &hash)
	if err == sql.ErrNoRows {
		return 0, nil, nil
	}
	if err != nil {
		return 0, nil, err
	}
	return seq, hash, nil
}

// GetLatestSequence returns the highest sequence in the event log, 0 when
// the log is empty.
func (sm *SnapshotManager) GetLatestSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := sm.db.QueryRowContext(ctx, `SELECT MAX(sequence) FROM event_log.events`).Scan(&seq)
	if err != nil {
		return 0, err
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}
