package mathutil

import (
	"errors"
	"sync"

	"github.com/holiman/uint256"
)

var (
	ErrDivisionByZero = errors.New("division by zero")
	ErrMulDivOverflow = errors.New("muldiv overflow")
)

// Pre-computed constants (never mutate)
var (
	Zero     = uint256.NewInt(0)
	One      = uint256.NewInt(1)
	Two      = uint256.NewInt(2)
	Three    = uint256.NewInt(3)
	BpsDenom = uint256.NewInt(10000)
)

var uint256Pool = sync.Pool{
	New: func() interface{} {
		return new(uint256.Int)
	},
}

// GetU256 gets a scratch uint256.Int from the pool
func GetU256() *uint256.Int {
	return uint256Pool.Get().(*uint256.Int)
}

// PutU256 returns a scratch uint256.Int to the pool
func PutU256(v *uint256.Int) {
	v.Clear()
	uint256Pool.Put(v)
}

// MulDiv returns floor(a * b / c) with a 512-bit intermediate product.
func MulDiv(a, b, c *uint256.Int) (*uint256.Int, error) {
	if c.IsZero() {
		return nil, ErrDivisionByZero
	}
	z, overflow := new(uint256.Int).MulDivOverflow(a, b, c)
	if overflow {
		return nil, ErrMulDivOverflow
	}
	return z, nil
}

// MulDivRoundingUp returns ceil(a * b / c).
func MulDivRoundingUp(a, b, c *uint256.Int) (*uint256.Int, error) {
	z, err := MulDiv(a, b, c)
	if err != nil {
		return nil, err
	}
	rem := GetU256()
	defer PutU256(rem)
	rem.MulMod(a, b, c)
	if !rem.IsZero() {
		if z.Eq(maxUint256) {
			return nil, ErrMulDivOverflow
		}
		z.AddUint64(z, 1)
	}
	return z, nil
}

// Min returns a copy of the smaller of a and b.
func Min(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return a.Clone()
	}
	return b.Clone()
}

// OrZero returns v, or a fresh zero when v is nil.
func OrZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}

var maxUint256 = new(uint256.Int).SetAllOne()
