package core

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"unxcore/internal/auth"
	"unxcore/internal/event"
	"unxcore/internal/ledger"
	"unxcore/internal/observability"
	"unxcore/internal/oracle"
	"unxcore/internal/rewards"
	"unxcore/internal/state"
	"unxcore/internal/treasury"
)

// MarginCore is the single-threaded deterministic command processor. Each
// command either fully applies (mutating state, producing one balanced
// journal batch, and emitting outbound events) or fully aborts with no state
// change. The core never reads a clock: every time-dependent decision uses
// the command's versioned timestamp.
type MarginCore struct {
	sequence   int64
	hasher     *StateHasher
	balances   *ledger.BalanceTracker
	validator  *ledger.InvariantValidator
	positions  *state.PositionManager
	registries map[string]*state.Registry
	treasury   *treasury.Treasury
	rewards    *rewards.Ledger
	prices     oracle.PriceSource
	authorizer auth.Authorizer
	dedup      *Deduper
	seqval     *SequenceValidator
	metrics    *observability.Metrics

	maxStalenessMs uint64
	settleQueue    map[string]QueuedSettlement

	persistChan    chan<- CoreOutput
	projectionChan chan<- CoreOutput
}

// CoreOutput is what the core hands to the persistence and projection
// workers: one envelope per outbound event, with the journal batch and the
// marshaled originating command attached to the first envelope. Persisted
// commands are the replay source on restart.
type CoreOutput struct {
	Envelope    *event.Envelope
	Batch       *ledger.Batch
	StateDelta  []byte
	Command     []byte
	CommandType event.CommandType
}

// QueuedSettlement is a settlement deferred behind the dispute window.
type QueuedSettlement struct {
	Venue     string
	Market    string
	Price     uint64
	ReadyAtMs uint64
}

// Params wires a core instance.
type Params struct {
	StartSequence        int64
	Registries           map[string]*state.Registry
	RewardSchedule       rewards.Schedule
	TaskWeights          map[string]uint64
	Prices               oracle.PriceSource
	Authorizer           auth.Authorizer
	MaxOracleStalenessMs uint64
	DedupCapacity        int
	DBDeduper            DBDeduper
	Metrics              *observability.Metrics
	PersistChan          chan<- CoreOutput
	ProjectionChan       chan<- CoreOutput
}

func NewMarginCore(p Params) *MarginCore {
	balances := ledger.NewBalanceTracker()
	capacity := p.DedupCapacity
	if capacity <= 0 {
		capacity = 1_000_000
	}

	return &MarginCore{
		sequence:       p.StartSequence,
		hasher:         NewStateHasher(),
		balances:       balances,
		validator:      ledger.NewInvariantValidator(balances),
		positions:      state.NewPositionManager(),
		registries:     p.Registries,
		treasury:       treasury.New(balances),
		rewards:        rewards.NewLedger(p.RewardSchedule, p.TaskWeights),
		prices:         p.Prices,
		authorizer:     p.Authorizer,
		dedup:          NewDeduper(capacity, p.DBDeduper),
		seqval:         NewSequenceValidator(),
		metrics:        p.Metrics,
		maxStalenessMs: p.MaxOracleStalenessMs,
		settleQueue:    make(map[string]QueuedSettlement),
		persistChan:    p.PersistChan,
		projectionChan: p.ProjectionChan,
	}
}

// emitted is one outbound event produced by a handler.
type emitted struct {
	Type    event.EventType
	Market  string
	Payload interface{}
}

// cmdResult is what a handler returns: the journal batch (possibly empty),
// the outbound events, or a no-op reason when the command succeeded without
// effect.
type cmdResult struct {
	batch  *ledger.Batch
	events []emitted
	noop   string
}

func noopResult(reason string) (*cmdResult, error) {
	return &cmdResult{noop: reason}, nil
}

// ProcessCommand is the main processing pipeline.
func (c *MarginCore) ProcessCommand(cmd event.Command) error {
	start := time.Now()
	cmdType := cmd.CommandType().String()
	idempotencyKey := cmd.IdempotencyKey()

	isDuplicate, tier := c.dedup.IsDuplicate(cmdType, idempotencyKey)

	partition := "global"
	if market := cmd.MarketSymbol(); market != "" {
		partition = fmt.Sprintf("market:%s", market)
	}
	if err := c.seqval.Validate(partition, cmd.SourceSequence(), isDuplicate); err != nil {
		if c.metrics != nil {
			c.metrics.CommandOutOfOrder.WithLabelValues(partition).Inc()
			c.metrics.CoreCommandsRejected.WithLabelValues(cmdType, "sequence").Inc()
		}
		return fmt.Errorf("sequence validation failed: %w", err)
	}

	if isDuplicate {
		if c.metrics != nil {
			c.metrics.IdempotencyDuplicates.WithLabelValues(cmdType, tier).Inc()
			c.metrics.CoreCommandsRejected.WithLabelValues(cmdType, "duplicate").Inc()
		}
		return nil
	}

	res, err := c.dispatch(cmd)
	if err != nil {
		if c.metrics != nil {
			c.metrics.CoreCommandsRejected.WithLabelValues(cmdType, "validation").Inc()
		}
		return fmt.Errorf("%s failed: %w", cmdType, err)
	}

	if res.noop != "" {
		// Success without effect. Nothing hits the log, but the command is
		// marked processed so replays dedup instead of re-validating.
		c.dedup.MarkProcessed(cmdType, idempotencyKey)
		if c.metrics != nil {
			c.metrics.CoreNoOps.WithLabelValues(cmdType).Inc()
		}
		return nil
	}

	batch := res.batch
	if batch != nil && len(batch.Journals) > 0 {
		if err := c.balances.ApplyBatch(batch); err != nil {
			panic(fmt.Sprintf("FATAL: unbalanced batch: %v", err))
		}
		if err := c.validator.ValidateBatchAccounts(batch); err != nil {
			panic(fmt.Sprintf("FATAL: negative internal balance: %v", err))
		}
		if c.metrics != nil {
			for _, j := range batch.Journals {
				c.metrics.CoreJournals.WithLabelValues(fmt.Sprintf("%d", j.JournalType)).Inc()
			}
		}
	}

	stateDigest := c.computeStateDigest(batch)

	outputs := make([]CoreOutput, 0, len(res.events))
	for i, ev := range res.events {
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			panic(fmt.Sprintf("FATAL: unmarshalable event payload %T: %v", ev.Payload, err))
		}

		prevHash := c.hasher.GetPrevHash()
		envelope := &event.Envelope{
			Sequence:       c.sequence,
			IdempotencyKey: idempotencyKey,
			Type:           ev.Type,
			Market:         ev.Market,
			Timestamp:      cmd.Time(),
			SourceSequence: cmd.SourceSequence(),
			Payload:        payload,
			StateHash:      c.hasher.ComputeHash(c.sequence, stateDigest),
			PrevHash:       prevHash,
		}

		out := CoreOutput{Envelope: envelope}
		if i == 0 {
			out.Batch = batch
			out.StateDelta = stateDigest
			cmdJSON, err := json.Marshal(cmd)
			if err != nil {
				panic(fmt.Sprintf("FATAL: unmarshalable command %T: %v", cmd, err))
			}
			out.Command = cmdJSON
			out.CommandType = cmd.CommandType()
		}
		outputs = append(outputs, out)
		c.sequence++
	}

	if c.sequence > 0 && c.sequence%1000 == 0 {
		if err := c.validator.ValidateZeroSum(); err != nil {
			panic(fmt.Sprintf("FATAL: %v (at seq %d)", err, c.sequence))
		}
	}

	// Persistence uses a blocking send so no event is ever lost; the core
	// stalls until the persistence worker drains. Projections use a
	// non-blocking send and rebuild from the event log if they fall behind.
	for _, output := range outputs {
		c.persistChan <- output

		select {
		case c.projectionChan <- output:
		default:
			if c.metrics != nil {
				c.metrics.ProjectionDrops.WithLabelValues("core").Inc()
			}
		}
	}

	c.dedup.MarkProcessed(cmdType, idempotencyKey)

	if c.metrics != nil {
		c.metrics.CoreCommandsApplied.WithLabelValues(cmdType).Inc()
		c.metrics.CoreCommandDuration.WithLabelValues(cmdType).Observe(time.Since(start).Seconds())
		c.metrics.CoreSequence.Set(float64(c.sequence))
		c.metrics.DedupLRUSize.Set(float64(c.dedup.Size()))
	}

	return nil
}

func (c *MarginCore) dispatch(cmd event.Command) (*cmdResult, error) {
	switch e := cmd.(type) {
	case *event.RecordFill:
		return c.handleRecordFill(e)
	case *event.OpenPosition:
		return c.handleOpenPosition(e)
	case *event.ClosePosition:
		return c.handleClosePosition(e)
	case *event.RefreshFunding:
		return c.handleRefreshFunding(e)
	case *event.ApplyFunding:
		return c.handleApplyFunding(e)
	case *event.LiquidatePosition:
		return c.handleLiquidatePosition(e)
	case *event.SettleMarket:
		return c.handleSettleMarket(e)
	case *event.SettlePosition:
		return c.handleSettlePosition(e)
	case *event.QueueSettlement:
		return c.handleQueueSettlement(e)
	case *event.ProcessSettlements:
		return c.handleProcessSettlements(e)
	case *event.AwardPoints:
		return c.handleAwardPoints(e)
	case *event.ClaimRewards:
		return c.handleClaimRewards(e)
	case *event.ListMarket:
		return c.handleListMarket(e)
	case *event.AdminUpdate:
		return c.handleAdminUpdate(e)
	default:
		return nil, fmt.Errorf("unknown command type: %T", cmd)
	}
}

// registry resolves a venue or fails.
func (c *MarginCore) registry(venue string) (*state.Registry, error) {
	reg, ok := c.registries[venue]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVenue, venue)
	}
	return reg, nil
}

// liveMarket resolves a market that must accept state-changing commands.
func (c *MarginCore) liveMarket(reg *state.Registry, symbol string) (*state.Market, error) {
	if reg.Paused {
		return nil, fmt.Errorf("%w: %s", ErrVenuePaused, reg.Venue)
	}
	m := reg.GetMarket(symbol)
	if m == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMarket, symbol)
	}
	if m.Paused {
		return nil, fmt.Errorf("%w: %s", ErrMarketPaused, symbol)
	}
	return m, nil
}

// indexPrice reads the oracle for a market's underlying and converts to the
// market's price unit. An oracle failure aborts the whole command; the core
// never substitutes a cached or default value.
func (c *MarginCore) indexPrice(m *state.Market, refGasPrice, nowMs uint64) (uint64, error) {
	price, _, err := c.prices.GetPrice(m.Underlying, c.maxStalenessMs, nowMs)
	if err != nil {
		return 0, fmt.Errorf("oracle read for %s: %w", m.Underlying, err)
	}
	return m.UnitPrice(price, refGasPrice), nil
}

// currentEpoch maps a versioned timestamp to the reward epoch.
func (c *MarginCore) currentEpoch(nowMs uint64) uint64 {
	return c.rewards.Schedule().EpochAt(nowMs)
}

// awardTaskPoints credits bot points for completed work and returns the
// PointsAwarded event, or nil when the actor is empty or the task key
// carries no weight.
func (c *MarginCore) awardTaskPoints(taskKey, actor string, nowMs uint64) *emitted {
	if actor == "" {
		return nil
	}
	weight, epoch := c.rewards.Award(taskKey, actor, nowMs)
	if weight == 0 {
		return nil
	}
	if c.metrics != nil {
		c.metrics.PointsAwarded.Inc()
	}
	return &emitted{
		Type: event.EventTypePointsAwarded,
		Payload: &event.PointsAwarded{
			TaskKey:   taskKey,
			Actor:     actor,
			Weight:    weight,
			Epoch:     epoch,
			Timestamp: nowMs,
		},
	}
}

// computeStateDigest builds canonical bytes over the balances the batch
// touched, sorted by account path.
func (c *MarginCore) computeStateDigest(batch *ledger.Batch) []byte {
	affected := make(map[ledger.AccountKey]bool)
	if batch != nil {
		for _, j := range batch.Journals {
			affected[j.DebitAccount] = true
			affected[j.CreditAccount] = true
		}
	}

	accounts := make([]ledger.AccountKey, 0, len(affected))
	for key := range affected {
		accounts = append(accounts, key)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].AccountPath() < accounts[j].AccountPath()
	})

	digest := make([]byte, 0, len(accounts)*64)
	for _, key := range accounts {
		path := key.AccountPath()
		digest = append(digest, byte(len(path)))
		digest = append(digest, []byte(path)...)
		digest = appendInt64LE(digest, c.balances.GetBalance(key))
	}
	return digest
}

func appendInt64LE(buf []byte, v int64) []byte {
	return append(buf,
		byte(v),
		byte(v>>8),
		byte(v>>16),
		byte(v>>24),
		byte(v>>32),
		byte(v>>40),
		byte(v>>48),
		byte(v>>56),
	)
}

// AttachDBDeduper wires the cold-tier dedup lookup. Left unset during
// startup replay, where every logged command must re-apply rather than hit
// its own event-log entry.
func (c *MarginCore) AttachDBDeduper(d DBDeduper) {
	c.dedup.dbChecker = d
}

// GetSequence returns the current global sequence number.
func (c *MarginCore) GetSequence() int64 {
	return c.sequence
}

// GetStateHash returns the current state hash (chain tip).
func (c *MarginCore) GetStateHash() [32]byte {
	return c.hasher.GetPrevHash()
}

// Balances exposes the tracker for query wiring and tests.
func (c *MarginCore) Balances() *ledger.BalanceTracker {
	return c.balances
}

// Positions exposes the position manager for query wiring and tests.
func (c *MarginCore) Positions() *state.PositionManager {
	return c.positions
}

// Rewards exposes the reward ledger for query wiring and tests.
func (c *MarginCore) Rewards() *rewards.Ledger {
	return c.rewards
}
