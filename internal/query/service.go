package query

import (
	"context"
	"database/sql"
	"fmt"

	"unxcore/internal/ledger"
)

// Service provides read-only access to projection tables. Projections are
// eventually consistent; every response carries the projection watermark so
// callers can reason about freshness.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// GetBalance returns a trader's balance for one asset: free collateral,
// locked margin, and the total.
func (s *Service) GetBalance(ctx context.Context, owner, asset string) (*BalanceResponse, error) {
	assetID, ok := ledger.GetAssetID(asset)
	if !ok {
		return nil, fmt.Errorf("unknown asset: %s", asset)
	}

	asOfSeq, err := s.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	collateralPath := ledger.NewUserAccountKey(owner, ledger.SubTypeCollateral, assetID).AccountPath()
	collateral, err := s.getProjectedBalance(ctx, collateralPath, uint16(assetID))
	if err != nil {
		return nil, err
	}

	marginPath := ledger.NewUserAccountKey(owner, ledger.SubTypeMargin, assetID).AccountPath()
	margin, err := s.getProjectedBalance(ctx, marginPath, uint16(assetID))
	if err != nil {
		return nil, err
	}

	return &BalanceResponse{
		Owner:        owner,
		Asset:        asset,
		Collateral:   collateral,
		Margin:       margin,
		Total:        collateral + margin,
		AsOfSequence: asOfSeq,
	}, nil
}

// GetPositions returns a trader's open positions.
func (s *Service) GetPositions(ctx context.Context, owner string) ([]PositionResponse, error) {
	asOfSeq, err := s.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT position_id, market, side, size, entry_price, margin, status
		FROM projections.positions
		WHERE owner = $1 AND status = 'open'
		ORDER BY market, position_id
	`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []PositionResponse
	for rows.Next() {
		var p PositionResponse
		p.Owner = owner
		p.AsOfSequence = asOfSeq
		if err := rows.Scan(
			&p.PositionID, &p.Market, &p.Side, &p.Size, &p.EntryPrice, &p.Margin, &p.Status,
		); err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// GetMarketFills returns recent fills for a market with cursor pagination.
func (s *Service) GetMarketFills(ctx context.Context, market string, limit int, beforeSequence *int64) ([]FillResponse, error) {
	asOfSeq, err := s.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT fill_id, taker, maker, size, price, notional, taker_is_buyer, sequence, timestamp_ms
		FROM projections.fills
		WHERE market = $1
	`
	args := []interface{}{market}
	argIdx := 2

	if beforeSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *beforeSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fills []FillResponse
	for rows.Next() {
		var f FillResponse
		f.Market = market
		f.AsOfSequence = asOfSeq
		if err := rows.Scan(
			&f.FillID, &f.Taker, &f.Maker, &f.Size, &f.Price, &f.Notional, &f.TakerIsBuyer, &f.Sequence, &f.TimestampMs,
		); err != nil {
			return nil, err
		}
		fills = append(fills, f)
	}
	return fills, rows.Err()
}

// GetFundingHistory returns recent funding rate prints for a market.
func (s *Service) GetFundingHistory(ctx context.Context, market string, limit int) ([]FundingHistoryResponse, error) {
	asOfSeq, err := s.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT rate_bps, longs_pay, mark_price, index_price, timestamp_ms
		FROM projections.funding_history
		WHERE market = $1
		ORDER BY sequence DESC
		LIMIT $2
	`, market, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []FundingHistoryResponse
	for rows.Next() {
		var h FundingHistoryResponse
		h.Market = market
		h.AsOfSequence = asOfSeq
		if err := rows.Scan(&h.RateBps, &h.LongsPay, &h.MarkPrice, &h.IndexPrice, &h.TimestampMs); err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

// GetRewardPoints returns the point standings of an epoch, highest first.
func (s *Service) GetRewardPoints(ctx context.Context, epoch int64) ([]RewardPointsResponse, error) {
	asOfSeq, err := s.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT actor, points
		FROM projections.reward_points
		WHERE epoch = $1 AND points > 0
		ORDER BY points DESC, actor
	`, epoch)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var standings []RewardPointsResponse
	for rows.Next() {
		var r RewardPointsResponse
		r.Epoch = epoch
		r.AsOfSequence = asOfSeq
		if err := rows.Scan(&r.Actor, &r.Points); err != nil {
			return nil, err
		}
		standings = append(standings, r)
	}
	return standings, rows.Err()
}

// GetJournalHistory returns a trader's journal entries with pagination.
func (s *Service) GetJournalHistory(ctx context.Context, owner string, limit int, beforeSequence *int64) ([]JournalHistoryEntry, error) {
	accountPrefix := fmt.Sprintf("user:%s:%%", owner)

	query := `
		SELECT journal_id, batch_id, event_ref, sequence,
		       debit_account, credit_account, asset_id, amount, journal_type, timestamp_ms
		FROM event_log.journal
		WHERE (debit_account LIKE $1 OR credit_account LIKE $1)
	`
	args := []interface{}{accountPrefix}
	argIdx := 2

	if beforeSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *beforeSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []JournalHistoryEntry
	for rows.Next() {
		var e JournalHistoryEntry
		if err := rows.Scan(
			&e.JournalID, &e.BatchID, &e.EventRef, &e.Sequence,
			&e.DebitAccount, &e.CreditAccount, &e.AssetID, &e.Amount,
			&e.JournalType, &e.TimestampMs,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// VerifyIntegrity checks hash chain continuity and the global zero-sum
// invariant against the durable stores.
func (s *Service) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{}

	rows, err := s.db.QueryContext(ctx, `
		SELECT e1.sequence
		FROM event_log.events e1
		LEFT JOIN event_log.events e2 ON e2.sequence = e1.sequence - 1
		WHERE e1.sequence > 0 AND e1.prev_hash != COALESCE(e2.state_hash, e1.prev_hash)
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		report.HashChainBreaks = append(report.HashChainBreaks, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	balanceRows, err := s.db.QueryContext(ctx, `
		SELECT asset_id, SUM(balance) AS total
		FROM projections.balances
		GROUP BY asset_id
		HAVING SUM(balance) != 0
	`)
	if err != nil {
		return nil, err
	}
	defer balanceRows.Close()

	for balanceRows.Next() {
		var assetID uint16
		var total int64
		if err := balanceRows.Scan(&assetID, &total); err != nil {
			return nil, err
		}
		report.UnbalancedAssets = append(report.UnbalancedAssets, UnbalancedAsset{
			AssetID:   assetID,
			Imbalance: total,
		})
	}
	if err := balanceRows.Err(); err != nil {
		return nil, err
	}

	report.IsHealthy = len(report.HashChainBreaks) == 0 && len(report.UnbalancedAssets) == 0
	return report, nil
}

func (s *Service) getWatermark(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(last_sequence, 0) FROM projections.watermark WHERE worker_id = 'main'
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return seq, err
}

func (s *Service) getProjectedBalance(ctx context.Context, accountPath string, assetID uint16) (int64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(balance, 0) FROM projections.balances
		WHERE account_path = $1 AND asset_id = $2
	`, accountPath, assetID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return balance, err
}
