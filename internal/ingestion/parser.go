package ingestion

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"unxcore/internal/event"
	"unxcore/internal/state"
)

// ParseRawCommand converts a RawCommand (JSON bytes + command type string)
// into a typed event.Command. The ingestion shell validates, parses, and
// converts raw commands before sending to the deterministic core.
func ParseRawCommand(raw RawCommand, commandType string) (event.Command, error) {
	switch commandType {
	case "RecordFill":
		return parseRecordFill(raw.Data)
	case "OpenPosition":
		return parseOpenPosition(raw.Data)
	case "ClosePosition":
		return parseClosePosition(raw.Data)
	case "RefreshFunding":
		return parseRefreshFunding(raw.Data)
	case "ApplyFunding":
		return parseApplyFunding(raw.Data)
	case "LiquidatePosition":
		return parseLiquidatePosition(raw.Data)
	case "SettleMarket":
		return parseSettleMarket(raw.Data)
	case "SettlePosition":
		return parseSettlePosition(raw.Data)
	case "QueueSettlement":
		return parseQueueSettlement(raw.Data)
	case "ProcessSettlements":
		return parseProcessSettlements(raw.Data)
	case "AwardPoints":
		return parseAwardPoints(raw.Data)
	case "ClaimRewards":
		return parseClaimRewards(raw.Data)
	case "ListMarket":
		return parseListMarket(raw.Data)
	case "AdminUpdate":
		return parseAdminUpdate(raw.Data)
	default:
		return nil, fmt.Errorf("unknown command type: %s", commandType)
	}
}

func parseSide(s string) (state.Side, error) {
	switch s {
	case "long":
		return state.SideLong, nil
	case "short":
		return state.SideShort, nil
	default:
		return 0, fmt.Errorf("unknown side: %q", s)
	}
}

func parseKind(s string) (state.InstrumentKind, error) {
	switch s {
	case "perpetual":
		return state.KindPerpetual, nil
	case "dated_future":
		return state.KindDatedFuture, nil
	case "gas_future":
		return state.KindGasFuture, nil
	default:
		return 0, fmt.Errorf("unknown instrument kind: %q", s)
	}
}

func parseAdminOp(s string) (event.AdminOp, error) {
	switch s {
	case "set_fees":
		return event.AdminOpSetFees, nil
	case "set_funding_params":
		return event.AdminOpSetFundingParams, nil
	case "set_margin_defaults":
		return event.AdminOpSetMarginDefaults, nil
	case "set_market_margins":
		return event.AdminOpSetMarketMargins, nil
	case "set_paused":
		return event.AdminOpSetPaused, nil
	case "set_market_paused":
		return event.AdminOpSetMarketPaused, nil
	case "set_list_interval":
		return event.AdminOpSetListInterval, nil
	case "set_dispute_window":
		return event.AdminOpSetDisputeWindow, nil
	case "set_task_weight":
		return event.AdminOpSetTaskWeight, nil
	default:
		return 0, fmt.Errorf("unknown admin op: %q", s)
	}
}

// --- JSON wire formats ---
// These structs represent the JSON payloads received from NATS.
// Field names use snake_case to match upstream producers.

type recordFillJSON struct {
	FillID       string `json:"fill_id"`
	Venue        string `json:"venue"`
	Market       string `json:"market"`
	Taker        string `json:"taker"`
	Maker        string `json:"maker"`
	Size         uint64 `json:"size"`
	Price        uint64 `json:"price"`
	TakerIsBuyer bool   `json:"taker_is_buyer"`
	OiIncrease   bool   `json:"oi_increase"`
	MinPrice     uint64 `json:"min_price,omitempty"`
	MaxPrice     uint64 `json:"max_price,omitempty"`
	FeePayment   uint64 `json:"fee_payment"`
	UnxvPayment  uint64 `json:"unxv_payment"`
	Bot          string `json:"bot,omitempty"`
	RefGasPrice  uint64 `json:"ref_gas_price,omitempty"`
	FillSequence int64  `json:"fill_sequence"`
	TimestampMs  uint64 `json:"timestamp_ms"`
}

func parseRecordFill(data []byte) (*event.RecordFill, error) {
	var j recordFillJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse RecordFill: %w", err)
	}
	fillID, err := uuid.Parse(j.FillID)
	if err != nil {
		return nil, fmt.Errorf("parse fill_id: %w", err)
	}
	return &event.RecordFill{
		FillID:       fillID,
		Venue:        j.Venue,
		Market:       j.Market,
		Taker:        j.Taker,
		Maker:        j.Maker,
		Size:         j.Size,
		Price:        j.Price,
		TakerIsBuyer: j.TakerIsBuyer,
		OiIncrease:   j.OiIncrease,
		MinPrice:     j.MinPrice,
		MaxPrice:     j.MaxPrice,
		FeePayment:   j.FeePayment,
		UnxvPayment:  j.UnxvPayment,
		Bot:          j.Bot,
		RefGasPrice:  j.RefGasPrice,
		FillSequence: j.FillSequence,
		NowMs:        j.TimestampMs,
	}, nil
}

type openPositionJSON struct {
	CmdID         string `json:"cmd_id"`
	Venue         string `json:"venue"`
	Market        string `json:"market"`
	Owner         string `json:"owner"`
	Side          string `json:"side"` // "long" or "short"
	Size          uint64 `json:"size"`
	Price         uint64 `json:"price"`
	MarginPayment uint64 `json:"margin_payment"`
	RefGasPrice   uint64 `json:"ref_gas_price,omitempty"`
	Sequence      int64  `json:"sequence"`
	TimestampMs   uint64 `json:"timestamp_ms"`
}

func parseOpenPosition(data []byte) (*event.OpenPosition, error) {
	var j openPositionJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse OpenPosition: %w", err)
	}
	cmdID, err := uuid.Parse(j.CmdID)
	if err != nil {
		return nil, fmt.Errorf("parse cmd_id: %w", err)
	}
	side, err := parseSide(j.Side)
	if err != nil {
		return nil, err
	}
	return &event.OpenPosition{
		CmdID:         cmdID,
		Venue:         j.Venue,
		Market:        j.Market,
		Owner:         j.Owner,
		Side:          side,
		Size:          j.Size,
		Price:         j.Price,
		MarginPayment: j.MarginPayment,
		RefGasPrice:   j.RefGasPrice,
		Sequence:      j.Sequence,
		NowMs:         j.TimestampMs,
	}, nil
}

type closePositionJSON struct {
	CmdID       string `json:"cmd_id"`
	Venue       string `json:"venue"`
	PositionID  string `json:"position_id"`
	Owner       string `json:"owner"`
	Qty         uint64 `json:"qty"`
	Price       uint64 `json:"price"`
	Bot         string `json:"bot,omitempty"`
	RefGasPrice uint64 `json:"ref_gas_price,omitempty"`
	Sequence    int64  `json:"sequence"`
	TimestampMs uint64 `json:"timestamp_ms"`
}

func parseClosePosition(data []byte) (*event.ClosePosition, error) {
	var j closePositionJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse ClosePosition: %w", err)
	}
	cmdID, err := uuid.Parse(j.CmdID)
	if err != nil {
		return nil, fmt.Errorf("parse cmd_id: %w", err)
	}
	posID, err := uuid.Parse(j.PositionID)
	if err != nil {
		return nil, fmt.Errorf("parse position_id: %w", err)
	}
	return &event.ClosePosition{
		CmdID:       cmdID,
		Venue:       j.Venue,
		PositionID:  posID,
		Owner:       j.Owner,
		Qty:         j.Qty,
		Price:       j.Price,
		Bot:         j.Bot,
		RefGasPrice: j.RefGasPrice,
		Sequence:    j.Sequence,
		NowMs:       j.TimestampMs,
	}, nil
}

type refreshFundingJSON struct {
	Venue         string `json:"venue"`
	Market        string `json:"market"`
	Caller        string `json:"caller"`
	IntervalIndex uint64 `json:"interval_index"`
	Sequence      int64  `json:"sequence"`
	TimestampMs   uint64 `json:"timestamp_ms"`
}

func parseRefreshFunding(data []byte) (*event.RefreshFunding, error) {
	var j refreshFundingJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse RefreshFunding: %w", err)
	}
	return &event.RefreshFunding{
		Venue:         j.Venue,
		Market:        j.Market,
		Caller:        j.Caller,
		IntervalIndex: j.IntervalIndex,
		Sequence:      j.Sequence,
		NowMs:         j.TimestampMs,
	}, nil
}

type applyFundingJSON struct {
	CmdID       string `json:"cmd_id"`
	Venue       string `json:"venue"`
	PositionID  string `json:"position_id"`
	Caller      string `json:"caller"`
	Sequence    int64  `json:"sequence"`
	TimestampMs uint64 `json:"timestamp_ms"`
}

func parseApplyFunding(data []byte) (*event.ApplyFunding, error) {
	var j applyFundingJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse ApplyFunding: %w", err)
	}
	cmdID, err := uuid.Parse(j.CmdID)
	if err != nil {
		return nil, fmt.Errorf("parse cmd_id: %w", err)
	}
	posID, err := uuid.Parse(j.PositionID)
	if err != nil {
		return nil, fmt.Errorf("parse position_id: %w", err)
	}
	return &event.ApplyFunding{
		CmdID:      cmdID,
		Venue:      j.Venue,
		PositionID: posID,
		Caller:     j.Caller,
		Sequence:   j.Sequence,
		NowMs:      j.TimestampMs,
	}, nil
}

type liquidatePositionJSON struct {
	CmdID       string `json:"cmd_id"`
	Venue       string `json:"venue"`
	PositionID  string `json:"position_id"`
	Caller      string `json:"caller,omitempty"`
	RefGasPrice uint64 `json:"ref_gas_price,omitempty"`
	Sequence    int64  `json:"sequence"`
	TimestampMs uint64 `json:"timestamp_ms"`
}

func parseLiquidatePosition(data []byte) (*event.LiquidatePosition, error) {
	var j liquidatePositionJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse LiquidatePosition: %w", err)
	}
	cmdID, err := uuid.Parse(j.CmdID)
	if err != nil {
		return nil, fmt.Errorf("parse cmd_id: %w", err)
	}
	posID, err := uuid.Parse(j.PositionID)
	if err != nil {
		return nil, fmt.Errorf("parse position_id: %w", err)
	}
	return &event.LiquidatePosition{
		CmdID:       cmdID,
		Venue:       j.Venue,
		PositionID:  posID,
		Caller:      j.Caller,
		RefGasPrice: j.RefGasPrice,
		Sequence:    j.Sequence,
		NowMs:       j.TimestampMs,
	}, nil
}

type settleMarketJSON struct {
	Venue       string `json:"venue"`
	Market      string `json:"market"`
	Caller      string `json:"caller,omitempty"`
	RefGasPrice uint64 `json:"ref_gas_price,omitempty"`
	Sequence    int64  `json:"sequence"`
	TimestampMs uint64 `json:"timestamp_ms"`
}

func parseSettleMarket(data []byte) (*event.SettleMarket, error) {
	var j settleMarketJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse SettleMarket: %w", err)
	}
	return &event.SettleMarket{
		Venue:       j.Venue,
		Market:      j.Market,
		Caller:      j.Caller,
		RefGasPrice: j.RefGasPrice,
		Sequence:    j.Sequence,
		NowMs:       j.TimestampMs,
	}, nil
}

func parseQueueSettlement(data []byte) (*event.QueueSettlement, error) {
	var j settleMarketJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse QueueSettlement: %w", err)
	}
	return &event.QueueSettlement{
		Venue:       j.Venue,
		Market:      j.Market,
		Caller:      j.Caller,
		RefGasPrice: j.RefGasPrice,
		Sequence:    j.Sequence,
		NowMs:       j.TimestampMs,
	}, nil
}

type processSettlementsJSON struct {
	CmdID       string `json:"cmd_id"`
	Venue       string `json:"venue"`
	Caller      string `json:"caller,omitempty"`
	Sequence    int64  `json:"sequence"`
	TimestampMs uint64 `json:"timestamp_ms"`
}

func parseProcessSettlements(data []byte) (*event.ProcessSettlements, error) {
	var j processSettlementsJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse ProcessSettlements: %w", err)
	}
	cmdID, err := uuid.Parse(j.CmdID)
	if err != nil {
		return nil, fmt.Errorf("parse cmd_id: %w", err)
	}
	return &event.ProcessSettlements{
		CmdID:    cmdID,
		Venue:    j.Venue,
		Caller:   j.Caller,
		Sequence: j.Sequence,
		NowMs:    j.TimestampMs,
	}, nil
}

func parseSettlePosition(data []byte) (*event.SettlePosition, error) {
	var j applyFundingJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse SettlePosition: %w", err)
	}
	cmdID, err := uuid.Parse(j.CmdID)
	if err != nil {
		return nil, fmt.Errorf("parse cmd_id: %w", err)
	}
	posID, err := uuid.Parse(j.PositionID)
	if err != nil {
		return nil, fmt.Errorf("parse position_id: %w", err)
	}
	return &event.SettlePosition{
		CmdID:      cmdID,
		Venue:      j.Venue,
		PositionID: posID,
		Caller:     j.Caller,
		Sequence:   j.Sequence,
		NowMs:      j.TimestampMs,
	}, nil
}

type awardPointsJSON struct {
	CmdID       string `json:"cmd_id"`
	TaskKey     string `json:"task_key"`
	Actor       string `json:"actor"`
	Sequence    int64  `json:"sequence"`
	TimestampMs uint64 `json:"timestamp_ms"`
}

func parseAwardPoints(data []byte) (*event.AwardPoints, error) {
	var j awardPointsJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse AwardPoints: %w", err)
	}
	cmdID, err := uuid.Parse(j.CmdID)
	if err != nil {
		return nil, fmt.Errorf("parse cmd_id: %w", err)
	}
	return &event.AwardPoints{
		CmdID:    cmdID,
		TaskKey:  j.TaskKey,
		Actor:    j.Actor,
		Sequence: j.Sequence,
		NowMs:    j.TimestampMs,
	}, nil
}

type claimRewardsJSON struct {
	Epoch       uint64 `json:"epoch"`
	Claimant    string `json:"claimant"`
	Sequence    int64  `json:"sequence"`
	TimestampMs uint64 `json:"timestamp_ms"`
}

func parseClaimRewards(data []byte) (*event.ClaimRewards, error) {
	var j claimRewardsJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse ClaimRewards: %w", err)
	}
	return &event.ClaimRewards{
		Epoch:    j.Epoch,
		Claimant: j.Claimant,
		Sequence: j.Sequence,
		NowMs:    j.TimestampMs,
	}, nil
}

type listMarketJSON struct {
	CmdID       string `json:"cmd_id"`
	Venue       string `json:"venue"`
	Symbol      string `json:"symbol"`
	Underlying  string `json:"underlying"`
	Kind        string `json:"kind"` // "perpetual", "dated_future", "gas_future"
	TickSize    uint64 `json:"tick_size"`
	ExpiryMs    uint64 `json:"expiry_ms,omitempty"`
	Caller      string `json:"caller,omitempty"`
	Sequence    int64  `json:"sequence"`
	TimestampMs uint64 `json:"timestamp_ms"`
}

func parseListMarket(data []byte) (*event.ListMarket, error) {
	var j listMarketJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse ListMarket: %w", err)
	}
	cmdID, err := uuid.Parse(j.CmdID)
	if err != nil {
		return nil, fmt.Errorf("parse cmd_id: %w", err)
	}
	kind, err := parseKind(j.Kind)
	if err != nil {
		return nil, err
	}
	return &event.ListMarket{
		CmdID:      cmdID,
		Venue:      j.Venue,
		Symbol:     j.Symbol,
		Underlying: j.Underlying,
		Kind:       kind,
		TickSize:   j.TickSize,
		ExpiryMs:   j.ExpiryMs,
		Caller:     j.Caller,
		Sequence:   j.Sequence,
		NowMs:      j.TimestampMs,
	}, nil
}

type adminUpdateJSON struct {
	CmdID  string `json:"cmd_id"`
	Venue  string `json:"venue"`
	Actor  string `json:"actor"`
	Op     string `json:"op"`
	Market string `json:"market,omitempty"`

	TradeFeeBps     uint64 `json:"trade_fee_bps,omitempty"`
	MakerRebateBps  uint64 `json:"maker_rebate_bps,omitempty"`
	UnxvDiscountBps uint64 `json:"unxv_discount_bps,omitempty"`
	BotRewardBps    uint64 `json:"bot_reward_bps,omitempty"`

	FundingIntervalMs uint64 `json:"funding_interval_ms,omitempty"`
	MaxFundingRateBps uint64 `json:"max_funding_rate_bps,omitempty"`
	PremiumWeightBps  uint64 `json:"premium_weight_bps,omitempty"`

	InitMarginBps  uint64 `json:"init_margin_bps,omitempty"`
	MaintMarginBps uint64 `json:"maint_margin_bps,omitempty"`

	Paused     bool   `json:"paused,omitempty"`
	IntervalMs uint64 `json:"interval_ms,omitempty"`
	WindowMs   uint64 `json:"window_ms,omitempty"`

	TaskKey    string `json:"task_key,omitempty"`
	TaskWeight uint64 `json:"task_weight,omitempty"`

	Sequence    int64  `json:"sequence"`
	TimestampMs uint64 `json:"timestamp_ms"`
}

func parseAdminUpdate(data []byte) (*event.AdminUpdate, error) {
	var j adminUpdateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse AdminUpdate: %w", err)
	}
	cmdID, err := uuid.Parse(j.CmdID)
	if err != nil {
		return nil, fmt.Errorf("parse cmd_id: %w", err)
	}
	op, err := parseAdminOp(j.Op)
	if err != nil {
		return nil, err
	}
	return &event.AdminUpdate{
		CmdID:             cmdID,
		Venue:             j.Venue,
		Actor:             j.Actor,
		Op:                op,
		Market:            j.Market,
		TradeFeeBps:       j.TradeFeeBps,
		MakerRebateBps:    j.MakerRebateBps,
		UnxvDiscountBps:   j.UnxvDiscountBps,
		BotRewardBps:      j.BotRewardBps,
		FundingIntervalMs: j.FundingIntervalMs,
		MaxFundingRateBps: j.MaxFundingRateBps,
		PremiumWeightBps:  j.PremiumWeightBps,
		InitMarginBps:     j.InitMarginBps,
		MaintMarginBps:    j.MaintMarginBps,
		Paused:            j.Paused,
		IntervalMs:        j.IntervalMs,
		WindowMs:          j.WindowMs,
		TaskKey:           j.TaskKey,
		TaskWeight:        j.TaskWeight,
		Sequence:          j.Sequence,
		NowMs:             j.TimestampMs,
	}, nil
}
