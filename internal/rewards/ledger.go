// Package rewards tracks contributor points per epoch and computes pro-rata
// payout shares against epoch-scoped fee reserves.
package rewards

import (
	"math/big"

	"unxcore/internal/num"
)

// Schedule maps timestamps to epoch indexes. Epochs are fixed-width windows
// starting at EpochZeroMs; anything at or before epoch zero maps to epoch 0.
type Schedule struct {
	EpochZeroMs     uint64
	EpochDurationMs uint64
}

// EpochAt returns the epoch index covering nowMs.
func (s Schedule) EpochAt(nowMs uint64) uint64 {
	if s.EpochDurationMs == 0 || nowMs <= s.EpochZeroMs {
		return 0
	}
	return (nowMs - s.EpochZeroMs) / s.EpochDurationMs
}

// Ledger is the epoch-bucketed point store. Per-epoch totals are kept in
// 128-bit width: individual awards are u64 but an epoch's sum across actors
// may exceed it, and the claim denominator must never lose precision.
//
// Invariant: for every epoch e, sum over actors of pointsByEpoch[e] plus all
// amounts already zeroed by claims equals totalByEpoch[e]. Claims zero the
// claimant's points but never decrement the total, so later claimants are
// paid against the epoch-close denominator rather than a shrinking one.
type Ledger struct {
	schedule Schedule
	weights  map[string]uint64

	pointsCurrent map[string]uint64
	pointsByEpoch map[uint64]map[string]uint64
	totalByEpoch  map[uint64]*big.Int
}

func NewLedger(schedule Schedule, weights map[string]uint64) *Ledger {
	w := make(map[string]uint64, len(weights))
	for k, v := range weights {
		w[k] = v
	}
	return &Ledger{
		schedule:      schedule,
		weights:       w,
		pointsCurrent: make(map[string]uint64),
		pointsByEpoch: make(map[uint64]map[string]uint64),
		totalByEpoch:  make(map[uint64]*big.Int),
	}
}

func (l *Ledger) Schedule() Schedule { return l.schedule }

// SetWeight installs or replaces a task weight (admin path).
func (l *Ledger) SetWeight(taskKey string, weight uint64) {
	l.weights[taskKey] = weight
}

// Award credits the task's weight to the actor for the epoch covering nowMs.
// An unknown task key carries weight 0 and the award is a no-op. Returns the
// weight credited and the epoch it landed in.
func (l *Ledger) Award(taskKey, actor string, nowMs uint64) (weight, epoch uint64) {
	weight = l.weights[taskKey]
	epoch = l.schedule.EpochAt(nowMs)
	if weight == 0 {
		return 0, epoch
	}

	l.pointsCurrent[actor] = num.SatAdd(l.pointsCurrent[actor], weight)

	bucket := l.pointsByEpoch[epoch]
	if bucket == nil {
		bucket = make(map[string]uint64)
		l.pointsByEpoch[epoch] = bucket
	}
	bucket[actor] = num.SatAdd(bucket[actor], weight)

	total := l.totalByEpoch[epoch]
	if total == nil {
		total = new(big.Int)
		l.totalByEpoch[epoch] = total
	}
	total.Add(total, new(big.Int).SetUint64(weight))
	return weight, epoch
}

// PointsCurrent returns the actor's rolling display balance.
func (l *Ledger) PointsCurrent(actor string) uint64 {
	return l.pointsCurrent[actor]
}

// EpochPoints returns the actor's unclaimed points in an epoch.
func (l *Ledger) EpochPoints(epoch uint64, actor string) uint64 {
	return l.pointsByEpoch[epoch][actor]
}

// EpochTotal returns a copy of the epoch's point total.
func (l *Ledger) EpochTotal(epoch uint64) *big.Int {
	total := l.totalByEpoch[epoch]
	if total == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(total)
}

// ShareOf computes reserve * points / total in 128-bit width, clamped on the
// way back to uint64. A zero total yields zero.
func ShareOf(reserve, points uint64, total *big.Int) uint64 {
	if total == nil || total.Sign() == 0 || points == 0 || reserve == 0 {
		return 0
	}
	prod := num.Mul128(reserve, points)
	defer num.Release(prod)
	prod.Quo(prod, total)
	return num.Clamp128(prod)
}

// BeginClaim zeroes the claimant's points for the epoch and returns what they
// held. A second claim in the same epoch therefore reads zero. The epoch
// total is deliberately left untouched.
func (l *Ledger) BeginClaim(epoch uint64, claimant string) uint64 {
	bucket := l.pointsByEpoch[epoch]
	if bucket == nil {
		return 0
	}
	points := bucket[claimant]
	if points == 0 {
		return 0
	}
	delete(bucket, claimant)
	return points
}

// RestorePoints reinstates a claimant's points after an aborted claim.
func (l *Ledger) RestorePoints(epoch uint64, claimant string, points uint64) {
	if points == 0 {
		return
	}
	bucket := l.pointsByEpoch[epoch]
	if bucket == nil {
		bucket = make(map[string]uint64)
		l.pointsByEpoch[epoch] = bucket
	}
	bucket[claimant] = num.SatAdd(bucket[claimant], points)
}

// Epochs returns deep copies of the per-epoch point buckets and totals,
// keyed by epoch, for snapshotting.
func (l *Ledger) Epochs() (map[uint64]map[string]uint64, map[uint64]*big.Int) {
	points := make(map[uint64]map[string]uint64, len(l.pointsByEpoch))
	for epoch, bucket := range l.pointsByEpoch {
		cp := make(map[string]uint64, len(bucket))
		for k, v := range bucket {
			cp[k] = v
		}
		points[epoch] = cp
	}
	totals := make(map[uint64]*big.Int, len(l.totalByEpoch))
	for epoch, total := range l.totalByEpoch {
		totals[epoch] = new(big.Int).Set(total)
	}
	return points, totals
}

// CurrentPoints returns a copy of the rolling display balances.
func (l *Ledger) CurrentPoints() map[string]uint64 {
	out := make(map[string]uint64, len(l.pointsCurrent))
	for k, v := range l.pointsCurrent {
		out[k] = v
	}
	return out
}

// Restore directly installs epoch state (snapshot restore only).
func (l *Ledger) Restore(epoch uint64, points map[string]uint64, total *big.Int, current map[string]uint64) {
	bucket := make(map[string]uint64, len(points))
	for k, v := range points {
		bucket[k] = v
	}
	l.pointsByEpoch[epoch] = bucket
	l.totalByEpoch[epoch] = new(big.Int).Set(total)
	for k, v := range current {
		l.pointsCurrent[k] = v
	}
}
