package domain

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
)

// Token is the balance/transfer capability the engine consumes for every asset,
// including the LP shares a pair issues. Callers identify themselves explicitly:
// Transfer moves funds owned by from, TransferFrom spends an allowance granted to spender.
// Mutations join the transaction ctx carries, or run as one of their own.
type Token interface {
	ID() solana.PublicKey
	BalanceOf(holder solana.PublicKey) *uint256.Int
	Transfer(ctx context.Context, from, to solana.PublicKey, amount *uint256.Int) error
	TransferFrom(ctx context.Context, spender, from, to solana.PublicKey, amount *uint256.Int) error
}

// TokenSource resolves an asset identifier to its token capability.
type TokenSource interface {
	Token(id solana.PublicKey) (Token, error)
}

// WrappedNative converts between the native asset and its fungible wrapper.
type WrappedNative interface {
	Token
	// Deposit debits native units from from and credits wrapped units to to.
	Deposit(ctx context.Context, from, to solana.PublicKey, amount *uint256.Int) error
	// Withdraw burns wrapped units held by from and credits native units to to.
	Withdraw(ctx context.Context, from, to solana.PublicKey, amount *uint256.Int) error
}

// NativeBank moves the native asset between accounts.
type NativeBank interface {
	NativeBalance(holder solana.PublicKey) *uint256.Int
	SendNative(ctx context.Context, from, to solana.PublicKey, amount *uint256.Int) error
}

// SwapCallee receives control in the middle of a flash swap, after the outputs
// were sent and before the pair checks what was paid back. ctx carries the running
// transaction: every call back into the engine must use it, a fresh context would
// wait for the swap to finish.
type SwapCallee interface {
	OnSwap(ctx context.Context, sender solana.PublicKey, amount0Out, amount1Out *uint256.Int, data []byte) error
}
