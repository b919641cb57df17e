package universal

import "math"

// Block length bounds and the minimum bitstream length the test supports.
// The expected value and variance tables below only cover L in [MinL, MaxL].
const (
	MinL = 6
	MaxL = 16
	MinN = 1010 * (1 << MinL) * MinL // smallest n for which L = MinL fits
)

// Disable reasons reported by DeriveParams.
const (
	ReasonTooShort = "min_length"
	ReasonOverflow = "overflow"
	ReasonLBounds  = "block_length_range"
)

// The expected_value (mu) and variance (sigma^2) constants, indexed by L,
// are from A Handbook of Applied Cryptography, Menezes, van Oorschot and
// Vanstone, 1997, Section 5.4.5 "Maurer's universal statistical test",
// page 184. Entries below MinL are forced to zero.
var expectedValue = [MaxL + 1]float64{
	0, 0, 0, 0, 0, 0, 5.2177052, 6.1962507, 7.1836656,
	8.1764248, 9.1723243, 10.170032, 11.168765,
	12.168070, 13.167693, 14.167488, 15.167379,
}

var variance = [MaxL + 1]float64{
	0, 0, 0, 0, 0, 0, 2.954, 3.125, 3.238, 3.311, 3.356, 3.384,
	3.401, 3.410, 3.416, 3.419, 3.421,
}

// Params are the per-run test parameters derived from the bitstream length:
// the block length L, the initialization segment size Q in blocks, and the
// test segment size K in blocks.
type Params struct {
	L int64
	Q int64
	K int64
}

// DeriveParams computes the test parameters for bitstreams of n bits. It is
// a deterministic function of n alone. A non-empty reason means the test
// cannot run at this length and must be disabled for the run; this is an
// informational outcome, not an error.
//
// L is the largest block length for which n >= 1010 * 2^L * L still holds,
// capped at MaxL. Each candidate is checked against integer overflow before
// the product is formed.
func DeriveParams(n int64) (Params, string) {
	if n < MinN {
		return Params{}, ReasonTooShort
	}

	L := int64(MinL + 1)
	for ; L <= MaxL; L++ {
		if (int64(1) << uint(L)) > math.MaxInt64/1010/L {
			return Params{}, ReasonOverflow
		}
		if n < 1010*(int64(1)<<uint(L))*L {
			break
		}
	}

	// Step back to the largest L that still fit.
	L--

	if L < MinL || L > MaxL {
		return Params{}, ReasonLBounds
	}

	Q := 10 * (int64(1) << uint(L))
	return Params{L: L, Q: Q, K: 100 * Q}, ""
}

// Discarded returns how many trailing bits of an n-bit stream the derived
// parameters leave unconsumed.
func (p Params) Discarded(n int64) int64 {
	return n - (p.Q+p.K)*p.L
}
