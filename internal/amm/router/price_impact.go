package router

import (
	"github.com/holiman/uint256"

	"github.com/hxuan190/amm-engine/internal/amm/mathutil"
)

// Price impact thresholds in basis points (bps)
const (
	PriceImpactLow      uint16 = 100  // 1% - Low impact
	PriceImpactModerate uint16 = 300  // 3% - Moderate impact
	PriceImpactHigh     uint16 = 500  // 5% - High impact
	PriceImpactExtreme  uint16 = 1000 // 10% - Extreme impact
)

// PriceImpactSeverity represents the severity level of price impact
type PriceImpactSeverity string

const (
	SeverityNone     PriceImpactSeverity = "none"     // < 1%
	SeverityLow      PriceImpactSeverity = "low"      // 1-3%
	SeverityModerate PriceImpactSeverity = "moderate" // 3-5%
	SeverityHigh     PriceImpactSeverity = "high"     // 5-10%
	SeverityExtreme  PriceImpactSeverity = "extreme"  // > 10%
)

// GetPriceImpactSeverity returns the severity level based on price impact bps
func GetPriceImpactSeverity(priceImpactBps uint16) PriceImpactSeverity {
	switch {
	case priceImpactBps < PriceImpactLow:
		return SeverityNone
	case priceImpactBps < PriceImpactModerate:
		return SeverityLow
	case priceImpactBps < PriceImpactHigh:
		return SeverityModerate
	case priceImpactBps < PriceImpactExtreme:
		return SeverityHigh
	default:
		return SeverityExtreme
	}
}

// GetPriceImpactWarning returns a user-facing warning for the impact, empty when negligible
func GetPriceImpactWarning(priceImpactBps uint16) string {
	switch GetPriceImpactSeverity(priceImpactBps) {
	case SeverityLow:
		return "Low price impact"
	case SeverityModerate:
		return "Moderate price impact - consider reducing trade size"
	case SeverityHigh:
		return "High price impact - you may receive significantly less tokens"
	case SeverityExtreme:
		return "EXTREME price impact - the pair rejects inputs above its configured share of reserves"
	default:
		return ""
	}
}

var priceImpactScale = uint256.NewInt(10000 * 1000)

// PriceImpactBps measures how far the execution price of one constant-product hop
// falls short of the spot price, fee excluded.
// Price impact = (1 - effective_price / spot_price) * 10000
// spot_price = reserveOut / reserveIn, effective_price = amountOut / (amountIn * 0.997)
func PriceImpactBps(amountIn, amountOut, reserveIn, reserveOut *uint256.Int) uint16 {
	if amountIn == nil || amountOut == nil || reserveIn == nil || reserveOut == nil {
		return 0
	}
	if amountIn.IsZero() || amountOut.IsZero() || reserveIn.IsZero() || reserveOut.IsZero() {
		return 0
	}

	// ratio = amountOut * reserveIn * 1000 * 10000 / (amountIn * 997 * reserveOut)
	numerator, overflow := new(uint256.Int).MulOverflow(amountOut, reserveIn)
	if overflow {
		return 0
	}
	denominator, overflow := new(uint256.Int).MulOverflow(amountIn, feeComplement)
	if overflow {
		return 0
	}
	if _, overflow = denominator.MulOverflow(denominator, reserveOut); overflow {
		return 0
	}
	ratio, err := mathutil.MulDiv(numerator, priceImpactScale, denominator)
	if err != nil || !ratio.Lt(mathutil.BpsDenom) {
		return 0
	}
	return uint16(10000 - ratio.Uint64())
}
