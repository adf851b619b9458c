package router

import "errors"

var (
	ErrExpired                  = errors.New("transaction expired")
	ErrInvalidPath              = errors.New("invalid path")
	ErrPairNotFound             = errors.New("pair not found")
	ErrInsufficientAmount       = errors.New("insufficient amount")
	ErrInsufficientAAmount      = errors.New("insufficient A amount")
	ErrInsufficientBAmount      = errors.New("insufficient B amount")
	ErrInsufficientInputAmount  = errors.New("insufficient input amount")
	ErrInsufficientOutputAmount = errors.New("insufficient output amount")
	ErrInsufficientLiquidity    = errors.New("insufficient liquidity")
	ErrExcessiveInputAmount     = errors.New("excessive input amount")
	ErrNoWrappedNative          = errors.New("wrapped native asset not configured")
	ErrOverflow                 = errors.New("arithmetic overflow")
)
