package mathutil

import (
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

var (
	// Q112 = 2^112, the scale of UQ112x112 values
	Q112 = new(uint256.Int).Lsh(One, 112)
	// MaxUint112 bounds every pool reserve
	MaxUint112 = new(uint256.Int).Sub(Q112, One)

	q112Decimal = decimal.NewFromBigInt(Q112.ToBig(), 0)
)

// UQ112x112 is an unsigned fixed-point number with 112 integer and 112 fractional bits,
// stored in the low 224 bits of a uint256.
type UQ112x112 struct {
	raw uint256.Int
}

// Encode lifts an integer (at most 112 bits) into UQ112x112.
func Encode(y *uint256.Int) UQ112x112 {
	var q UQ112x112
	q.raw.Lsh(y, 112)
	return q
}

// FromRaw wraps an already scaled value.
func FromRaw(raw *uint256.Int) UQ112x112 {
	var q UQ112x112
	q.raw.Set(raw)
	return q
}

// Div divides by an integer. The divisor must be non-zero.
func (q UQ112x112) Div(y *uint256.Int) (UQ112x112, error) {
	if y.IsZero() {
		return UQ112x112{}, ErrDivisionByZero
	}
	var out UQ112x112
	out.raw.Div(&q.raw, y)
	return out, nil
}

// Fraction returns numerator/denominator as UQ112x112.
func Fraction(numerator, denominator *uint256.Int) (UQ112x112, error) {
	return Encode(numerator).Div(denominator)
}

// MulElapsed returns price * elapsed, wrapping modulo 2^256 like the cumulative counters.
func (q UQ112x112) MulElapsed(elapsed uint32) *uint256.Int {
	return new(uint256.Int).Mul(&q.raw, uint256.NewInt(uint64(elapsed)))
}

// Raw returns a copy of the scaled value.
func (q UQ112x112) Raw() *uint256.Int {
	return q.raw.Clone()
}

// Decode returns the integer part.
func (q UQ112x112) Decode() *uint256.Int {
	return new(uint256.Int).Rsh(&q.raw, 112)
}

func (q UQ112x112) IsZero() bool {
	return q.raw.IsZero()
}

// Decimal renders the value for display.
func (q UQ112x112) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(q.raw.ToBig(), 0).Div(q112Decimal)
}

func (q UQ112x112) String() string {
	return q.Decimal().String()
}
