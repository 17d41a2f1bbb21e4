package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the margin core.
type Metrics struct {
	// --- Core processing ---
	CoreCommandsApplied  *prometheus.CounterVec
	CoreCommandsRejected *prometheus.CounterVec
	CoreNoOps            *prometheus.CounterVec
	CoreCommandDuration  *prometheus.HistogramVec
	CoreJournals         *prometheus.CounterVec
	CoreSequence         prometheus.Gauge

	// --- Channel & backpressure ---
	ChannelSize         *prometheus.GaugeVec
	ChannelCapacity     *prometheus.GaugeVec
	ChannelUtilization  *prometheus.GaugeVec
	ProjectionDrops     *prometheus.CounterVec
	PublishDrops        prometheus.Counter
	PersistBackpressure prometheus.Counter

	// --- Idempotency & ordering ---
	IdempotencyDuplicates *prometheus.CounterVec
	DedupLRUSize          prometheus.Gauge
	CommandSequenceGap    *prometheus.CounterVec
	CommandOutOfOrder     *prometheus.CounterVec

	// --- Fees ---
	FeeVolume        *prometheus.CounterVec
	DiscountsApplied *prometheus.CounterVec
	RebatesSkipped   *prometheus.CounterVec

	// --- Funding ---
	FundingRefreshes *prometheus.CounterVec
	FundingApplied   *prometheus.CounterVec
	FundingRateBps   *prometheus.GaugeVec

	// --- Liquidation ---
	LiquidationsExecuted *prometheus.CounterVec
	LiquidationNoOps     *prometheus.CounterVec
	MarginSeized         *prometheus.CounterVec

	// --- Settlement ---
	MarketsSettled    *prometheus.CounterVec
	PositionsSettled  *prometheus.CounterVec
	SettlementsQueued *prometheus.CounterVec

	// --- Rewards ---
	PointsAwarded prometheus.Counter
	RewardClaims  *prometheus.CounterVec
	RewardPaid    *prometheus.CounterVec

	// --- Persistence ---
	PersistEventsWritten   prometheus.Counter
	PersistJournalsWritten prometheus.Counter
	PersistBatchDur        prometheus.Histogram
	PersistErrors          *prometheus.CounterVec
	PersistRetry           prometheus.Counter
	PersistLastSequence    prometheus.Gauge

	// --- Snapshot / replay ---
	SnapshotTaken     prometheus.Counter
	SnapshotDuration  prometheus.Histogram
	SnapshotLastSeq   prometheus.Gauge
	ReplayEventsTotal prometheus.Counter
	ReplayDuration    prometheus.Gauge

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	latencyBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		CoreCommandsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unx_core_commands_applied_total",
			Help: "Commands successfully applied by core",
		}, []string{"command_type"}),

		CoreCommandsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unx_core_commands_rejected_total",
			Help: "Commands rejected (dedup, gap, validation)",
		}, []string{"command_type", "reason"}),

		CoreNoOps: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unx_core_noops_total",
			Help: "Commands accepted as economic no-ops",
		}, []string{"command_type"}),

		CoreCommandDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "unx_core_command_apply_duration_seconds",
			Help:    "Time to apply a single command in core",
			Buckets: latencyBuckets,
		}, []string{"command_type"}),

		CoreJournals: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unx_core_journals_generated_total",
			Help: "Journal entries generated",
		}, []string{"journal_type"}),

		CoreSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "unx_core_sequence",
			Help: "Current global sequence number",
		}),

		ChannelSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "unx_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "unx_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		ChannelUtilization: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "unx_channel_utilization",
			Help: "Channel size / capacity (0.0-1.0)",
		}, []string{"name"}),

		ProjectionDrops: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unx_projection_drops_total",
			Help: "Outputs dropped due to full projection channel",
		}, []string{"projection"}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "unx_publish_drops_total",
			Help: "Events dropped due to full publish channel",
		}),

		PersistBackpressure: promauto.NewCounter(prometheus.CounterOpts{
			Name: "unx_persist_backpressure_total",
			Help: "Times core blocked on persist channel",
		}),

		IdempotencyDuplicates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unx_idempotency_duplicates_total",
			Help: "Duplicates caught (lru/postgres)",
		}, []string{"command_type", "tier"}),

		DedupLRUSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "unx_dedup_lru_size",
			Help: "Current LRU occupancy",
		}),

		CommandSequenceGap: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unx_command_sequence_gap_total",
			Help: "Source sequence gaps",
		}, []string{"partition"}),

		CommandOutOfOrder: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unx_command_out_of_order_total",
			Help: "Out-of-order rejections",
		}, []string{"partition"}),

		FeeVolume: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unx_fee_volume_total",
			Help: "Fee value routed, by destination",
		}, []string{"market", "destination"}),

		DiscountsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unx_fee_discounts_applied_total",
			Help: "Fills where the token discount applied",
		}, []string{"market"}),

		RebatesSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unx_fee_rebates_skipped_total",
			Help: "Fills where the configured rebate was skipped",
		}, []string{"market"}),

		FundingRefreshes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unx_funding_refreshes_total",
			Help: "Market funding rate refreshes",
		}, []string{"market"}),

		FundingApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unx_funding_applied_total",
			Help: "Position funding applications",
		}, []string{"market"}),

		FundingRateBps: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "unx_funding_rate_bps",
			Help: "Current funding rate magnitude in bps",
		}, []string{"market"}),

		LiquidationsExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unx_liquidations_executed_total",
			Help: "Liquidations that seized margin",
		}, []string{"market"}),

		LiquidationNoOps: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unx_liquidation_noops_total",
			Help: "Liquidation attempts on solvent positions",
		}, []string{"market"}),

		MarginSeized: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unx_margin_seized_total",
			Help: "Total margin seized by liquidations",
		}, []string{"market"}),

		MarketsSettled: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unx_markets_settled_total",
			Help: "Dated markets settled",
		}, []string{"venue"}),

		PositionsSettled: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unx_positions_settled_total",
			Help: "Positions settled at expiry",
		}, []string{"market"}),

		SettlementsQueued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unx_settlements_queued_total",
			Help: "Settlements deferred behind the dispute window",
		}, []string{"venue"}),

		PointsAwarded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "unx_reward_points_awarded_total",
			Help: "Reward points credited",
		}),

		RewardClaims: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unx_reward_claims_total",
			Help: "Epoch reward claims",
		}, []string{"outcome"}),

		RewardPaid: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unx_reward_paid_total",
			Help: "Reward value paid out, by asset",
		}, []string{"asset"}),

		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "unx_persist_events_written_total",
			Help: "Events written to Postgres",
		}),

		PersistJournalsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "unx_persist_journals_written_total",
			Help: "Journal entries written to Postgres",
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "unx_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unx_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistRetry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "unx_persist_retry_total",
			Help: "Persistence retries",
		}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "unx_persist_last_sequence",
			Help: "Last persisted sequence",
		}),

		SnapshotTaken: promauto.NewCounter(prometheus.CounterOpts{
			Name: "unx_snapshot_taken_total",
			Help: "Snapshots created",
		}),

		SnapshotDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "unx_snapshot_duration_seconds",
			Help:    "Snapshot creation time",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
		}),

		SnapshotLastSeq: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "unx_snapshot_last_sequence",
			Help: "Sequence of last snapshot",
		}),

		ReplayEventsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "unx_replay_events_total",
			Help: "Events replayed on startup",
		}),

		ReplayDuration: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "unx_replay_duration_seconds",
			Help: "Total replay time",
		}),

		QueryRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unx_query_requests_total",
			Help: "Query requests",
		}, []string{"endpoint"}),

		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "unx_query_duration_seconds",
			Help:    "Query latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"endpoint"}),

		QueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unx_query_errors_total",
			Help: "Query errors",
		}, []string{"endpoint"}),
	}
}

// SetChannelMetrics updates channel utilization metrics.
func (m *Metrics) SetChannelMetrics(name string, size, capacity int) {
	m.ChannelSize.WithLabelValues(name).Set(float64(size))
	m.ChannelCapacity.WithLabelValues(name).Set(float64(capacity))
	if capacity > 0 {
		m.ChannelUtilization.WithLabelValues(name).Set(float64(size) / float64(capacity))
	}
}
