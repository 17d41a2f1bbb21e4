package num_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"unxcore/internal/num"
)

func TestSignedAddSameSign(t *testing.T) {
	got := num.SignedFrom(100).Add(num.SignedFrom(50))
	assert.Equal(t, num.SignedFrom(150), got)

	got = num.SignedNeg(100).Add(num.SignedNeg(50))
	assert.Equal(t, num.SignedNeg(150), got)
}

func TestSignedAddOppositeSigns(t *testing.T) {
	got := num.SignedFrom(100).Add(num.SignedNeg(30))
	assert.Equal(t, num.SignedFrom(70), got)

	got = num.SignedFrom(30).Add(num.SignedNeg(100))
	assert.Equal(t, num.SignedNeg(70), got)
}

func TestSignedAddCancelsToPositiveZero(t *testing.T) {
	got := num.SignedFrom(100).Add(num.SignedNeg(100))
	assert.True(t, got.Positive, "zero must normalize to +0")
	assert.True(t, got.IsZero())
}

func TestSignedNegZeroNormalizes(t *testing.T) {
	assert.Equal(t, num.SignedZero(), num.SignedNeg(0))
}

func TestSignedAddSaturates(t *testing.T) {
	got := num.SignedFrom(math.MaxUint64).Add(num.SignedFrom(1))
	assert.Equal(t, uint64(math.MaxUint64), got.Magnitude)
}

func TestSignedDiff(t *testing.T) {
	assert.Equal(t, num.SignedFrom(5), num.SignedDiff(10, 5))
	assert.Equal(t, num.SignedNeg(5), num.SignedDiff(5, 10))
	assert.Equal(t, num.SignedZero(), num.SignedDiff(7, 7))
}

func TestSignedNegate(t *testing.T) {
	assert.Equal(t, num.SignedNeg(5), num.SignedFrom(5).Negate())
	assert.Equal(t, num.SignedFrom(5), num.SignedNeg(5).Negate())
	assert.Equal(t, num.SignedZero(), num.SignedZero().Negate())
}

func TestSignedIsNegative(t *testing.T) {
	assert.True(t, num.SignedNeg(1).IsNegative())
	assert.False(t, num.SignedFrom(1).IsNegative())
	assert.False(t, num.SignedZero().IsNegative())
}

func TestMulDivFloors(t *testing.T) {
	assert.Equal(t, uint64(33), num.MulDiv(100, 1, 3))
	assert.Equal(t, uint64(0), num.MulDiv(100, 1, 0), "zero denominator yields 0")
}

func TestMulDivWideIntermediate(t *testing.T) {
	// a * b overflows uint64 but the quotient still fits: 2^64-2.
	a := uint64(math.MaxUint64 / 2)
	assert.Equal(t, a*2, num.MulDiv(a, 4, 2))
	assert.Equal(t, a*2, num.MulDiv(a, 6, 3))

	// Quotient exceeding uint64 saturates.
	got := num.MulDiv(math.MaxUint64, 4, 2)
	assert.Equal(t, uint64(math.MaxUint64), got, "clamped at MaxUint64")
}

func TestNotionalBps(t *testing.T) {
	// 2000 * 2000 * 100 / 10_000 = 40_000
	assert.Equal(t, uint64(40_000), num.NotionalBps(2000, 2000, 100))
}

func TestMulBps(t *testing.T) {
	assert.Equal(t, uint64(30), num.MulBps(10_000, 30))
	assert.Equal(t, uint64(0), num.MulBps(1, 30), "floors to zero")
}

func TestCeilDiv(t *testing.T) {
	assert.Equal(t, uint64(4), num.CeilDiv(10, 3))
	assert.Equal(t, uint64(3), num.CeilDiv(9, 3))
	assert.Equal(t, uint64(0), num.CeilDiv(10, 0))
}

func TestSatAddSatSub(t *testing.T) {
	assert.Equal(t, uint64(math.MaxUint64), num.SatAdd(math.MaxUint64, 1))
	assert.Equal(t, uint64(3), num.SatAdd(1, 2))
	assert.Equal(t, uint64(0), num.SatSub(1, 2))
	assert.Equal(t, uint64(1), num.SatSub(3, 2))
}

func TestAbsDiff(t *testing.T) {
	assert.Equal(t, uint64(5), num.AbsDiff(10, 5))
	assert.Equal(t, uint64(5), num.AbsDiff(5, 10))
}

func TestClamp128(t *testing.T) {
	prod := num.Mul128(math.MaxUint64, 2)
	defer num.Release(prod)
	assert.Equal(t, uint64(math.MaxUint64), num.Clamp128(prod))
}
