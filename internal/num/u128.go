package num

import (
	"math"
	"math/big"
	"sync"
)

// BpsDenom is the basis-point denominator: rates are integers out of 10_000.
const BpsDenom = 10_000

// Pooled big.Int for double-width intermediates. Every product of two
// uint64 quantities (notional, fee, seize amounts) is computed at 128-bit
// width and only narrowed at the point of an actual transfer.
var u128Pool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getU128() *big.Int {
	return u128Pool.Get().(*big.Int)
}

func putU128(v *big.Int) {
	v.SetInt64(0)
	u128Pool.Put(v)
}

var maxUint64 = new(big.Int).SetUint64(math.MaxUint64)

// Mul128 returns a * b as a big.Int at full width. The caller owns the
// result and must release it with Release.
func Mul128(a, b uint64) *big.Int {
	result := getU128()
	x := getU128().SetUint64(a)
	y := getU128().SetUint64(b)
	result.Mul(x, y)
	putU128(x)
	putU128(y)
	return result
}

// Release returns an intermediate obtained from Mul128 to the pool.
func Release(v *big.Int) {
	putU128(v)
}

// Clamp128 narrows a double-width value to uint64, saturating at the top.
// The clamp is silent: values at that scale already exceed any economically
// meaningful amount, so an abort would only add a failure mode.
func Clamp128(v *big.Int) uint64 {
	if v.Sign() <= 0 {
		return 0
	}
	if v.Cmp(maxUint64) > 0 {
		return math.MaxUint64
	}
	return v.Uint64()
}

// MulDiv computes a * b / den with a 128-bit intermediate, flooring the
// quotient and clamping the result to uint64. den == 0 returns 0.
func MulDiv(a, b, den uint64) uint64 {
	if den == 0 {
		return 0
	}
	prod := Mul128(a, b)
	d := getU128().SetUint64(den)
	prod.Quo(prod, d)
	out := Clamp128(prod)
	putU128(d)
	putU128(prod)
	return out
}

// CeilDiv computes ceil(a / b). b == 0 returns 0.
func CeilDiv(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	q := a / b
	if a%b != 0 {
		q++
	}
	return q
}

// MulBps applies a basis-point rate to an amount: amount * bps / 10_000,
// floored, with the product held at 128 bits.
func MulBps(amount, bps uint64) uint64 {
	return MulDiv(amount, bps, BpsDenom)
}

// NotionalBps computes size * price * bps / 10_000 entirely at 128-bit
// width. This is the shape of every margin requirement and funding delta.
func NotionalBps(size, price, bps uint64) uint64 {
	prod := Mul128(size, price)
	r := getU128().SetUint64(bps)
	prod.Mul(prod, r)
	r.SetUint64(BpsDenom)
	prod.Quo(prod, r)
	out := Clamp128(prod)
	putU128(r)
	putU128(prod)
	return out
}

// Notional returns size * price clamped to uint64.
func Notional(size, price uint64) uint64 {
	prod := Mul128(size, price)
	out := Clamp128(prod)
	putU128(prod)
	return out
}

// SatAdd returns a + b, saturating at MaxUint64.
func SatAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

// SatSub returns a - b, floored at zero.
func SatSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

// AbsDiff returns |a - b|.
func AbsDiff(a, b uint64) uint64 {
	if a >= b {
		return a - b
	}
	return b - a
}
