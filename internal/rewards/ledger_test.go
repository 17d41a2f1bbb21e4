package rewards_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unxcore/internal/rewards"
)

func TestScheduleEpochAt(t *testing.T) {
	s := rewards.Schedule{EpochZeroMs: 1_000, EpochDurationMs: 100}

	assert.Equal(t, uint64(0), s.EpochAt(0), "before epoch zero clamps to 0")
	assert.Equal(t, uint64(0), s.EpochAt(1_000))
	assert.Equal(t, uint64(0), s.EpochAt(1_099))
	assert.Equal(t, uint64(1), s.EpochAt(1_100))
	assert.Equal(t, uint64(9), s.EpochAt(1_999))

	zero := rewards.Schedule{}
	assert.Equal(t, uint64(0), zero.EpochAt(5_000), "zero duration always epoch 0")
}

func TestAwardUnknownTaskIsNoOp(t *testing.T) {
	l := rewards.NewLedger(rewards.Schedule{EpochDurationMs: 100}, map[string]uint64{"fill.record": 1})

	weight, _ := l.Award("unknown.task", "bot", 50)
	assert.Zero(t, weight)
	assert.Zero(t, l.PointsCurrent("bot"))
}

func TestAwardAccumulates(t *testing.T) {
	l := rewards.NewLedger(
		rewards.Schedule{EpochZeroMs: 0, EpochDurationMs: 100},
		map[string]uint64{"liquidation.execute": 10},
	)

	weight, epoch := l.Award("liquidation.execute", "bot", 150)
	assert.Equal(t, uint64(10), weight)
	assert.Equal(t, uint64(1), epoch)

	l.Award("liquidation.execute", "bot", 160)
	assert.Equal(t, uint64(20), l.PointsCurrent("bot"))
	assert.Equal(t, uint64(20), l.EpochPoints(1, "bot"))
	assert.Zero(t, l.EpochTotal(1).Cmp(big.NewInt(20)))
}

func TestShareOfProRata(t *testing.T) {
	// 30/70 split of a 1_000 reserve pays 300 and 700 with no residual.
	total := big.NewInt(100)
	assert.Equal(t, uint64(300), rewards.ShareOf(1_000, 30, total))
	assert.Equal(t, uint64(700), rewards.ShareOf(1_000, 70, total))

	assert.Zero(t, rewards.ShareOf(1_000, 0, total))
	assert.Zero(t, rewards.ShareOf(0, 30, total))
	assert.Zero(t, rewards.ShareOf(1_000, 30, big.NewInt(0)), "zero total yields zero")
	assert.Zero(t, rewards.ShareOf(1_000, 30, nil))
}

func TestClaimZeroesPointsButNotTotal(t *testing.T) {
	l := rewards.NewLedger(rewards.Schedule{EpochDurationMs: 100}, map[string]uint64{"fill.record": 1})
	for i := 0; i < 30; i++ {
		l.Award("fill.record", "a", 50)
	}
	for i := 0; i < 70; i++ {
		l.Award("fill.record", "b", 50)
	}

	points := l.BeginClaim(0, "a")
	require.Equal(t, uint64(30), points)

	// Second claim reads zero; the denominator is unchanged so b is still
	// paid against the epoch-close total.
	assert.Zero(t, l.BeginClaim(0, "a"))
	assert.Zero(t, l.EpochTotal(0).Cmp(big.NewInt(100)), "claims must not shrink the total")
	assert.Equal(t, uint64(700), rewards.ShareOf(1_000, l.EpochPoints(0, "b"), l.EpochTotal(0)))
}

func TestRestorePointsAfterAbortedClaim(t *testing.T) {
	l := rewards.NewLedger(rewards.Schedule{EpochDurationMs: 100}, map[string]uint64{"fill.record": 1})
	l.Award("fill.record", "a", 50)

	points := l.BeginClaim(0, "a")
	require.Equal(t, uint64(1), points)

	l.RestorePoints(0, "a", points)
	assert.Equal(t, uint64(1), l.EpochPoints(0, "a"), "aborted claim must reinstate points")
}

func TestSetWeightAdminPath(t *testing.T) {
	l := rewards.NewLedger(rewards.Schedule{EpochDurationMs: 100}, nil)
	l.SetWeight("custom.task", 7)

	weight, _ := l.Award("custom.task", "bot", 0)
	assert.Equal(t, uint64(7), weight)
}

func TestSnapshotRoundTrip(t *testing.T) {
	l := rewards.NewLedger(rewards.Schedule{EpochDurationMs: 100}, map[string]uint64{"fill.record": 2})
	l.Award("fill.record", "a", 50)
	l.Award("fill.record", "b", 150)

	points, totals := l.Epochs()
	current := l.CurrentPoints()

	restored := rewards.NewLedger(rewards.Schedule{EpochDurationMs: 100}, map[string]uint64{"fill.record": 2})
	for epoch, bucket := range points {
		restored.Restore(epoch, bucket, totals[epoch], current)
	}

	assert.Equal(t, uint64(2), restored.EpochPoints(0, "a"))
	assert.Equal(t, uint64(2), restored.EpochPoints(1, "b"))
	assert.Equal(t, uint64(2), restored.PointsCurrent("a"))
	assert.Zero(t, restored.EpochTotal(1).Cmp(big.NewInt(2)))
}
