package event

// CommandType discriminates inbound command payloads.
type CommandType int32

const (
	CommandTypeUnknown CommandType = iota
	CommandTypeRecordFill
	CommandTypeOpenPosition
	CommandTypeClosePosition
	CommandTypeRefreshFunding
	CommandTypeApplyFunding
	CommandTypeLiquidatePosition
	CommandTypeSettleMarket
	CommandTypeSettlePosition
	CommandTypeQueueSettlement
	CommandTypeProcessSettlements
	CommandTypeAwardPoints
	CommandTypeClaimRewards
	CommandTypeListMarket
	CommandTypeAdminUpdate
)

func (ct CommandType) String() string {
	switch ct {
	case CommandTypeRecordFill:
		return "RecordFill"
	case CommandTypeOpenPosition:
		return "OpenPosition"
	case CommandTypeClosePosition:
		return "ClosePosition"
	case CommandTypeRefreshFunding:
		return "RefreshFunding"
	case CommandTypeApplyFunding:
		return "ApplyFunding"
	case CommandTypeLiquidatePosition:
		return "LiquidatePosition"
	case CommandTypeSettleMarket:
		return "SettleMarket"
	case CommandTypeSettlePosition:
		return "SettlePosition"
	case CommandTypeQueueSettlement:
		return "QueueSettlement"
	case CommandTypeProcessSettlements:
		return "ProcessSettlements"
	case CommandTypeAwardPoints:
		return "AwardPoints"
	case CommandTypeClaimRewards:
		return "ClaimRewards"
	case CommandTypeListMarket:
		return "ListMarket"
	case CommandTypeAdminUpdate:
		return "AdminUpdate"
	default:
		return "Unknown"
	}
}

// Command is the interface all inbound command payloads implement.
type Command interface {
	// IdempotencyKey returns the stable dedup key.
	IdempotencyKey() string

	// CommandType returns the discriminator.
	CommandType() CommandType

	// MarketSymbol returns the market context, or "" for global commands.
	MarketSymbol() string

	// SourceSequence returns the upstream ordering key.
	SourceSequence() int64

	// Time returns the versioned input timestamp in milliseconds. The core
	// never reads a clock; every time-dependent decision uses this value.
	Time() uint64
}

// EventType discriminates outbound event payloads.
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeMarketListed
	EventTypeFillRecorded
	EventTypeFillFee
	EventTypePositionOpened
	EventTypePositionClosed
	EventTypeVariationMarginApplied
	EventTypeFundingRateUpdated
	EventTypeFundingApplied
	EventTypeMarginCall
	EventTypePositionLiquidated
	EventTypeMarketSettled
	EventTypePositionSettled
	EventTypeSettlementQueued
	EventTypePointsAwarded
	EventTypeBotPayout
	EventTypeRegistryUpdated
)

func (et EventType) String() string {
	switch et {
	case EventTypeMarketListed:
		return "MarketListed"
	case EventTypeFillRecorded:
		return "FillRecorded"
	case EventTypeFillFee:
		return "FillFee"
	case EventTypePositionOpened:
		return "PositionOpened"
	case EventTypePositionClosed:
		return "PositionClosed"
	case EventTypeVariationMarginApplied:
		return "VariationMarginApplied"
	case EventTypeFundingRateUpdated:
		return "FundingRateUpdated"
	case EventTypeFundingApplied:
		return "FundingApplied"
	case EventTypeMarginCall:
		return "MarginCall"
	case EventTypePositionLiquidated:
		return "PositionLiquidated"
	case EventTypeMarketSettled:
		return "MarketSettled"
	case EventTypePositionSettled:
		return "PositionSettled"
	case EventTypeSettlementQueued:
		return "SettlementQueued"
	case EventTypePointsAwarded:
		return "PointsAwarded"
	case EventTypeBotPayout:
		return "BotPayout"
	case EventTypeRegistryUpdated:
		return "RegistryUpdated"
	default:
		return "Unknown"
	}
}

// Envelope wraps every outbound event in the log.
type Envelope struct {
	// Global monotonic sequence assigned by the core.
	Sequence int64

	// Idempotency key of the originating command.
	IdempotencyKey string

	// Event type discriminator.
	Type EventType

	// Market context ("" for global events).
	Market string

	// Versioned input timestamp in milliseconds (NOT wall-clock).
	Timestamp uint64

	// Upstream sequence for ordering validation.
	SourceSequence int64

	// JSON-encoded event-specific payload.
	Payload []byte

	// SHA-256 of state AFTER applying the originating command.
	StateHash [32]byte

	// Previous event's state hash (chain integrity).
	PrevHash [32]byte
}
