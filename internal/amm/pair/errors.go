package pair

import "errors"

var (
	// Preconditions
	ErrLocked             = errors.New("pair locked")
	ErrForbidden          = errors.New("forbidden")
	ErrAlreadyInitialized = errors.New("pair already initialized")
	ErrNotInitialized     = errors.New("pair not initialized")
	ErrInvalidTo          = errors.New("invalid to")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrMissingCallee      = errors.New("callback data without callee")

	// Economic safety
	ErrInsufficientLiquidityMinted = errors.New("insufficient liquidity minted")
	ErrInsufficientLiquidityBurned = errors.New("insufficient liquidity burned")
	ErrInsufficientOutputAmount    = errors.New("insufficient output amount")
	ErrInsufficientInputAmount     = errors.New("insufficient input amount")
	ErrInsufficientLiquidity       = errors.New("insufficient liquidity")
	ErrSwapTooLarge                = errors.New("swap too large")
	ErrSwapTooSmall                = errors.New("swap too small")
	ErrPriceImpactTooHigh          = errors.New("price impact too high")
	ErrK                           = errors.New("constant product invariant violated")

	// Arithmetic
	ErrOverflow = errors.New("reserve overflow")

	// Share ledger
	ErrInsufficientShares    = errors.New("insufficient share balance")
	ErrInsufficientAllowance = errors.New("insufficient share allowance")
)
