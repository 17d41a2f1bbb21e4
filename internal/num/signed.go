package num

// Signed is a sign + magnitude amount, the substrate for every PnL and
// funding calculation. The hosting environment has no signed integer type
// wide enough for notional-scale values, so profit/loss is carried as an
// explicit (sign, magnitude) pair with a single canonical reconciling Add.
//
// Zero is always represented as positive: ties in Add resolve to
// Positive == true.
type Signed struct {
	Positive  bool
	Magnitude uint64
}

// SignedZero returns the canonical zero value.
func SignedZero() Signed {
	return Signed{Positive: true}
}

// SignedFrom returns a positive amount.
func SignedFrom(magnitude uint64) Signed {
	return Signed{Positive: true, Magnitude: magnitude}
}

// SignedNeg returns a negative amount. A zero magnitude normalizes to +0.
func SignedNeg(magnitude uint64) Signed {
	if magnitude == 0 {
		return SignedZero()
	}
	return Signed{Positive: false, Magnitude: magnitude}
}

// SignedDiff returns a - b as a Signed value.
func SignedDiff(a, b uint64) Signed {
	if a >= b {
		return SignedFrom(a - b)
	}
	return SignedNeg(b - a)
}

// Add combines two signed amounts under the reconciliation rule: same sign
// adds magnitudes (saturating); opposite signs subtract the smaller from the
// larger and take the sign of the larger. Equal opposing magnitudes cancel
// to +0.
func (s Signed) Add(o Signed) Signed {
	if s.Positive == o.Positive {
		return Signed{Positive: s.Positive, Magnitude: SatAdd(s.Magnitude, o.Magnitude)}
	}
	if s.Magnitude == o.Magnitude {
		return SignedZero()
	}
	if s.Magnitude > o.Magnitude {
		return Signed{Positive: s.Positive, Magnitude: s.Magnitude - o.Magnitude}
	}
	return Signed{Positive: o.Positive, Magnitude: o.Magnitude - s.Magnitude}
}

// AddUint adds a positive delta.
func (s Signed) AddUint(delta uint64) Signed {
	return s.Add(SignedFrom(delta))
}

// SubUint subtracts a positive delta.
func (s Signed) SubUint(delta uint64) Signed {
	return s.Add(SignedNeg(delta))
}

// Negate flips the sign. Zero stays +0.
func (s Signed) Negate() Signed {
	if s.Magnitude == 0 {
		return SignedZero()
	}
	return Signed{Positive: !s.Positive, Magnitude: s.Magnitude}
}

// IsZero reports whether the magnitude is zero.
func (s Signed) IsZero() bool {
	return s.Magnitude == 0
}

// IsNegative reports a strictly negative amount.
func (s Signed) IsNegative() bool {
	return !s.Positive && s.Magnitude > 0
}
