package domain

import (
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
)

type AddLiquidityRequest struct {
	Caller         solana.PublicKey
	TokenA         solana.PublicKey
	TokenB         solana.PublicKey
	AmountADesired *uint256.Int
	AmountBDesired *uint256.Int
	AmountAMin     *uint256.Int
	AmountBMin     *uint256.Int
	To             solana.PublicKey
	Deadline       time.Time
}

// AddLiquidityNativeRequest pairs a token with the native asset. Value is the native
// amount the caller offers; only the amount actually deposited is taken.
type AddLiquidityNativeRequest struct {
	Caller             solana.PublicKey
	Token              solana.PublicKey
	AmountTokenDesired *uint256.Int
	AmountTokenMin     *uint256.Int
	AmountNativeMin    *uint256.Int
	Value              *uint256.Int
	To                 solana.PublicKey
	Deadline           time.Time
}

type LiquidityResult struct {
	AmountA   *uint256.Int
	AmountB   *uint256.Int
	Liquidity *uint256.Int
}

type RemoveLiquidityRequest struct {
	Caller     solana.PublicKey
	TokenA     solana.PublicKey
	TokenB     solana.PublicKey
	Liquidity  *uint256.Int
	AmountAMin *uint256.Int
	AmountBMin *uint256.Int
	To         solana.PublicKey
	Deadline   time.Time
}

type RemoveLiquidityNativeRequest struct {
	Caller          solana.PublicKey
	Token           solana.PublicKey
	Liquidity       *uint256.Int
	AmountTokenMin  *uint256.Int
	AmountNativeMin *uint256.Int
	To              solana.PublicKey
	Deadline        time.Time
}

// SwapRequest covers every swap entry point. Amount is the exact side of the trade
// (input for ExactIn, output for ExactOut) and Limit the slippage bound on the other
// side (minimum output, maximum input). For native-in swaps Value is the native amount
// sent along with the call.
type SwapRequest struct {
	Caller   solana.PublicKey
	Amount   *uint256.Int
	Limit    *uint256.Int
	Path     []solana.PublicKey
	To       solana.PublicKey
	Deadline time.Time
	Value    *uint256.Int
}
