package router

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/hxuan190/amm-engine/internal/amm/mathutil"
	"github.com/hxuan190/amm-engine/internal/amm/pair"
)

var (
	feeDenominator = uint256.NewInt(pair.FeeDenominator)
	feeComplement  = uint256.NewInt(pair.FeeDenominator - pair.FeeNumerator)
)

// Quote scales amountA by the pool ratio: amountA * reserveB / reserveA.
func Quote(amountA, reserveA, reserveB *uint256.Int) (*uint256.Int, error) {
	if amountA == nil || amountA.IsZero() {
		return nil, ErrInsufficientAmount
	}
	if reserveA == nil || reserveB == nil || reserveA.IsZero() || reserveB.IsZero() {
		return nil, ErrInsufficientLiquidity
	}
	amountB, err := mathutil.MulDiv(amountA, reserveB, reserveA)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOverflow, err)
	}
	return amountB, nil
}

// GetAmountOut returns the output bought by amountIn net of the 0.3% fee, rounded down:
// amountIn*997*reserveOut / (reserveIn*1000 + amountIn*997).
func GetAmountOut(amountIn, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	if amountIn == nil || amountIn.IsZero() {
		return nil, ErrInsufficientInputAmount
	}
	if reserveIn == nil || reserveOut == nil || reserveIn.IsZero() || reserveOut.IsZero() {
		return nil, ErrInsufficientLiquidity
	}

	amountInWithFee, overflow := new(uint256.Int).MulOverflow(amountIn, feeComplement)
	if overflow {
		return nil, ErrOverflow
	}
	denominator, overflow := new(uint256.Int).MulOverflow(reserveIn, feeDenominator)
	if overflow {
		return nil, ErrOverflow
	}
	if _, overflow = denominator.AddOverflow(denominator, amountInWithFee); overflow {
		return nil, ErrOverflow
	}
	amountOut, err := mathutil.MulDiv(amountInWithFee, reserveOut, denominator)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOverflow, err)
	}
	return amountOut, nil
}

// GetAmountIn returns the input needed to buy amountOut, rounded up:
// ceil(reserveIn*amountOut*1000 / ((reserveOut-amountOut)*997)).
func GetAmountIn(amountOut, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	if amountOut == nil || amountOut.IsZero() {
		return nil, ErrInsufficientOutputAmount
	}
	if reserveIn == nil || reserveOut == nil || reserveIn.IsZero() || reserveOut.IsZero() {
		return nil, ErrInsufficientLiquidity
	}
	if !amountOut.Lt(reserveOut) {
		return nil, fmt.Errorf("%w: output %s exceeds reserve %s", ErrInsufficientLiquidity, amountOut.Dec(), reserveOut.Dec())
	}

	scaledIn, overflow := new(uint256.Int).MulOverflow(reserveIn, feeDenominator)
	if overflow {
		return nil, ErrOverflow
	}
	denominator := new(uint256.Int).Sub(reserveOut, amountOut)
	denominator.Mul(denominator, feeComplement) // below reserveOut*1000
	amountIn, err := mathutil.MulDivRoundingUp(scaledIn, amountOut, denominator)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOverflow, err)
	}
	return amountIn, nil
}
