package projection

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"unxcore/internal/core"
	"unxcore/internal/event"
)

// Worker updates projection tables from processed events. The projection
// channel is non-blocking with drop on the core side: if projections fall
// behind they go stale, and Rebuild recovers them from the event log.
type Worker struct {
	db        *sql.DB
	inputChan <-chan core.CoreOutput
}

func NewWorker(db *sql.DB, inputChan <-chan core.CoreOutput) *Worker {
	return &Worker{db: db, inputChan: inputChan}
}

// Run starts the projection worker loop.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case out, ok := <-w.inputChan:
			if !ok {
				return nil
			}

			if err := w.apply(ctx, out); err != nil {
				// Continue: projections are eventually consistent and
				// rebuildable from the event log.
				log.Warn().Err(err).Int64("sequence", out.Envelope.Sequence).Msg("projection update failed")
			}
		}
	}
}

func (w *Worker) apply(ctx context.Context, out core.CoreOutput) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	seq := out.Envelope.Sequence

	if out.Batch != nil {
		for _, j := range out.Batch.Journals {
			if err := w.applyJournal(ctx, tx, seq,
				j.DebitAccount.AccountPath(), j.CreditAccount.AccountPath(),
				uint16(j.AssetID), int64(j.Amount)); err != nil {
				return fmt.Errorf("balance projection: %w", err)
			}
		}
	}

	if err := w.applyEvent(ctx, tx, out.Envelope); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		VALUES ('main', $1, NOW())
		ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $1, updated_at = NOW()
	`, seq); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	return tx.Commit()
}

// applyJournal mirrors the ledger convention: amount moves from the credit
// account to the debit account, so the debit side increases.
func (w *Worker) applyJournal(ctx context.Context, tx *sql.Tx, seq int64, debit, credit string, assetID uint16, amount int64) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset_id, balance, last_sequence)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_path, asset_id)
		DO UPDATE SET balance = projections.balances.balance + $3, last_sequence = $4
	`, debit, assetID, amount, seq); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset_id, balance, last_sequence)
		VALUES ($1, $2, -$3, $4)
		ON CONFLICT (account_path, asset_id)
		DO UPDATE SET balance = projections.balances.balance - $3, last_sequence = $4
	`, credit, assetID, amount, seq); err != nil {
		return err
	}

	return nil
}

func (w *Worker) applyEvent(ctx context.Context, tx *sql.Tx, env *event.Envelope) error {
	switch env.Type {
	case event.EventTypeFillRecorded:
		var e event.FillRecorded
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return fmt.Errorf("decode FillRecorded: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projections.fills (fill_id, market, taker, maker, size, price, notional, taker_is_buyer, sequence, timestamp_ms)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (fill_id) DO NOTHING
		`, e.FillID, e.Market, e.Taker, e.Maker, int64(e.Size), int64(e.Price), int64(e.Notional), e.TakerIsBuyer, env.Sequence, int64(e.Timestamp))
		return err

	case event.EventTypePositionOpened:
		var e event.PositionOpened
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return fmt.Errorf("decode PositionOpened: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projections.positions (position_id, market, owner, side, size, entry_price, margin, status, last_sequence, updated_ms)
			VALUES ($1, $2, $3, $4, $5, $6, $7, 'open', $8, $9)
			ON CONFLICT (position_id) DO NOTHING
		`, e.PositionID, e.Market, e.Owner, e.Side.String(), int64(e.Size), int64(e.EntryPrice), int64(e.MarginLocked), env.Sequence, int64(e.Timestamp))
		return err

	case event.EventTypePositionClosed:
		var e event.PositionClosed
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return fmt.Errorf("decode PositionClosed: %w", err)
		}
		status := "open"
		if e.RemainingSize == 0 {
			status = "closed"
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.positions
			SET size = $2, status = $3, last_sequence = $4, updated_ms = $5
			WHERE position_id = $1
		`, e.PositionID, int64(e.RemainingSize), status, env.Sequence, int64(e.Timestamp))
		return err

	case event.EventTypePositionLiquidated:
		var e event.PositionLiquidated
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return fmt.Errorf("decode PositionLiquidated: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.positions
			SET size = 0, status = 'liquidated', last_sequence = $2, updated_ms = $3
			WHERE position_id = $1
		`, e.PositionID, env.Sequence, int64(e.Timestamp))
		return err

	case event.EventTypePositionSettled:
		var e event.PositionSettled
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return fmt.Errorf("decode PositionSettled: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.positions
			SET size = 0, status = 'settled', last_sequence = $2, updated_ms = $3
			WHERE position_id = $1
		`, e.PositionID, env.Sequence, int64(e.Timestamp))
		return err

	case event.EventTypeFundingRateUpdated:
		var e event.FundingRateUpdated
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return fmt.Errorf("decode FundingRateUpdated: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projections.funding_history (market, sequence, rate_bps, longs_pay, mark_price, index_price, timestamp_ms)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (market, sequence) DO NOTHING
		`, e.Market, env.Sequence, int64(e.RateBps), e.LongsPayShorts, int64(e.MarkPrice), int64(e.IndexPrice), int64(e.Timestamp))
		return err

	case event.EventTypePointsAwarded:
		var e event.PointsAwarded
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return fmt.Errorf("decode PointsAwarded: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projections.reward_points (epoch, actor, points, last_sequence)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (epoch, actor)
			DO UPDATE SET points = projections.reward_points.points + $3, last_sequence = $4
		`, int64(e.Epoch), e.Actor, int64(e.Weight), env.Sequence)
		return err

	case event.EventTypeBotPayout:
		var e event.BotPayout
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return fmt.Errorf("decode BotPayout: %w", err)
		}
		// A payout consumes the claimant's points for the epoch.
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.reward_points
			SET points = 0, last_sequence = $3
			WHERE epoch = $1 AND actor = $2
		`, int64(e.Epoch), e.Claimant, env.Sequence)
		return err
	}

	return nil
}

// Rebuild rebuilds the balance projection from the journal. Other
// projections accumulate from the live stream; balances are the only ones
// queried for correctness-sensitive paths, so they get the full rebuild.
func Rebuild(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`TRUNCATE projections.balances`,
		`DELETE FROM projections.watermark WHERE worker_id = 'main'`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("truncate failed: %w", err)
		}
	}

	// Debit side increases, credit side decreases.
	_, err := db.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset_id, balance, last_sequence)
		SELECT debit_account, asset_id, SUM(amount), MAX(sequence)
		FROM event_log.journal
		GROUP BY debit_account, asset_id
		ON CONFLICT (account_path, asset_id) DO UPDATE
			SET balance = EXCLUDED.balance, last_sequence = EXCLUDED.last_sequence
	`)
	if err != nil {
		return fmt.Errorf("rebuild debit balances: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset_id, balance, last_sequence)
		SELECT credit_account, asset_id, -SUM(amount), MAX(sequence)
		FROM event_log.journal
		GROUP BY credit_account, asset_id
		ON CONFLICT (account_path, asset_id) DO UPDATE
			SET balance = projections.balances.balance + EXCLUDED.balance,
			    last_sequence = GREATEST(projections.balances.last_sequence, EXCLUDED.last_sequence)
	`)
	if err != nil {
		return fmt.Errorf("rebuild credit balances: %w", err)
	}

	log.Info().Msg("projection rebuild complete")
	return nil
}
