package router

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"

	"github.com/hxuan190/amm-engine/internal/amm/mathutil"
	"github.com/hxuan190/amm-engine/internal/amm/registry"
	"github.com/hxuan190/amm-engine/internal/domain"
)

// swap walks path with precomputed amounts. The input must already sit in the first
// pair; every intermediate output is sent straight to the next pair and the last one
// to to.
func (r *Router) swap(ctx context.Context, sender solana.PublicKey, amounts []*uint256.Int, path []solana.PublicKey, to solana.PublicKey) error {
	for i := 0; i < len(path)-1; i++ {
		input, output := path[i], path[i+1]
		p, err := r.pairFor(input, output)
		if err != nil {
			return err
		}
		amountOut := amounts[i+1]
		amount0Out, amount1Out := new(uint256.Int), amountOut
		if token0, _ := registry.SortTokens(input, output); input != token0 {
			amount0Out, amount1Out = amountOut, new(uint256.Int)
		}

		recipient := to
		if i < len(path)-2 {
			next, err := r.pairFor(output, path[i+2])
			if err != nil {
				return err
			}
			recipient = next.Address()
		}
		if err := p.Swap(ctx, sender, amount0Out, amount1Out, recipient, nil, nil); err != nil {
			return fmt.Errorf("hop %d %s->%s: %w", i, input, output, err)
		}
	}
	return nil
}

func (r *Router) firstPair(path []solana.PublicKey) (solana.PublicKey, error) {
	if len(path) < 2 {
		return solana.PublicKey{}, fmt.Errorf("%w: %d tokens", ErrInvalidPath, len(path))
	}
	p, err := r.pairFor(path[0], path[1])
	if err != nil {
		return solana.PublicKey{}, err
	}
	return p.Address(), nil
}

func (r *Router) exactIn(req *domain.SwapRequest, amountIn *uint256.Int) ([]*uint256.Int, error) {
	amounts, err := r.GetAmountsOut(amountIn, req.Path)
	if err != nil {
		return nil, err
	}
	amountOut := amounts[len(amounts)-1]
	if amountOut.Lt(mathutil.OrZero(req.Limit)) {
		return nil, fmt.Errorf("%w: quoted %s, minimum %s", ErrInsufficientOutputAmount, amountOut.Dec(), req.Limit.Dec())
	}
	return amounts, nil
}

func (r *Router) exactOut(req *domain.SwapRequest, amountInMax *uint256.Int) ([]*uint256.Int, error) {
	if req.Amount == nil {
		return nil, ErrInsufficientOutputAmount
	}
	amounts, err := r.GetAmountsIn(req.Amount, req.Path)
	if err != nil {
		return nil, err
	}
	if amountInMax == nil || amounts[0].Gt(amountInMax) {
		return nil, fmt.Errorf("%w: quoted %s, maximum %s", ErrExcessiveInputAmount, amounts[0].Dec(), mathutil.OrZero(amountInMax).Dec())
	}
	return amounts, nil
}

// SwapExactTokensForTokens sells exactly req.Amount of path[0] for at least
// req.Limit of the last token.
func (r *Router) SwapExactTokensForTokens(ctx context.Context, req *domain.SwapRequest) ([]*uint256.Int, error) {
	var amounts []*uint256.Int
	err := r.atomically(ctx, req.Deadline, func(ctx context.Context) error {
		var err error
		if amounts, err = r.exactIn(req, req.Amount); err != nil {
			return err
		}
		return r.payAndSwap(ctx, req, amounts, req.To)
	})
	if err != nil {
		return nil, err
	}
	return amounts, nil
}

// SwapTokensForExactTokens buys exactly req.Amount of the last token spending at
// most req.Limit of path[0].
func (r *Router) SwapTokensForExactTokens(ctx context.Context, req *domain.SwapRequest) ([]*uint256.Int, error) {
	var amounts []*uint256.Int
	err := r.atomically(ctx, req.Deadline, func(ctx context.Context) error {
		var err error
		if amounts, err = r.exactOut(req, req.Limit); err != nil {
			return err
		}
		return r.payAndSwap(ctx, req, amounts, req.To)
	})
	if err != nil {
		return nil, err
	}
	return amounts, nil
}

// SwapExactNativeForTokens wraps all of req.Value and sells it along a path that
// starts at the wrapped native token.
func (r *Router) SwapExactNativeForTokens(ctx context.Context, req *domain.SwapRequest) ([]*uint256.Int, error) {
	if err := r.checkNativePath(req.Path, true); err != nil {
		return nil, err
	}
	var amounts []*uint256.Int
	err := r.atomically(ctx, req.Deadline, func(ctx context.Context) error {
		var err error
		if amounts, err = r.exactIn(req, req.Value); err != nil {
			return err
		}
		return r.wrapAndSwap(ctx, req, amounts, req.To)
	})
	if err != nil {
		return nil, err
	}
	return amounts, nil
}

// SwapTokensForExactNative buys exactly req.Amount native units, spending at most
// req.Limit of path[0].
func (r *Router) SwapTokensForExactNative(ctx context.Context, req *domain.SwapRequest) ([]*uint256.Int, error) {
	if err := r.checkNativePath(req.Path, false); err != nil {
		return nil, err
	}
	var amounts []*uint256.Int
	err := r.atomically(ctx, req.Deadline, func(ctx context.Context) error {
		var err error
		if amounts, err = r.exactOut(req, req.Limit); err != nil {
			return err
		}
		if err := r.payAndSwap(ctx, req, amounts, r.address); err != nil {
			return err
		}
		return r.wrapped.Withdraw(ctx, r.address, req.To, amounts[len(amounts)-1])
	})
	if err != nil {
		return nil, err
	}
	return amounts, nil
}

// SwapExactTokensForNative sells exactly req.Amount of path[0] for at least
// req.Limit native units.
func (r *Router) SwapExactTokensForNative(ctx context.Context, req *domain.SwapRequest) ([]*uint256.Int, error) {
	if err := r.checkNativePath(req.Path, false); err != nil {
		return nil, err
	}
	var amounts []*uint256.Int
	err := r.atomically(ctx, req.Deadline, func(ctx context.Context) error {
		var err error
		if amounts, err = r.exactIn(req, req.Amount); err != nil {
			return err
		}
		if err := r.payAndSwap(ctx, req, amounts, r.address); err != nil {
			return err
		}
		return r.wrapped.Withdraw(ctx, r.address, req.To, amounts[len(amounts)-1])
	})
	if err != nil {
		return nil, err
	}
	return amounts, nil
}

// SwapNativeForExactTokens buys exactly req.Amount of the last token with at most
// req.Value native units. Only the quoted input is debited.
func (r *Router) SwapNativeForExactTokens(ctx context.Context, req *domain.SwapRequest) ([]*uint256.Int, error) {
	if err := r.checkNativePath(req.Path, true); err != nil {
		return nil, err
	}
	var amounts []*uint256.Int
	err := r.atomically(ctx, req.Deadline, func(ctx context.Context) error {
		var err error
		if amounts, err = r.exactOut(req, req.Value); err != nil {
			return err
		}
		return r.wrapAndSwap(ctx, req, amounts, req.To)
	})
	if err != nil {
		return nil, err
	}
	return amounts, nil
}

// SwapExactTokensForTokensSupportingFeeOnTransfer sells req.Amount of path[0] when
// tokens on the path burn part of every transfer. Each hop prices what its pair
// actually received, and the slippage bound is checked against what req.To actually
// gained.
func (r *Router) SwapExactTokensForTokensSupportingFeeOnTransfer(ctx context.Context, req *domain.SwapRequest) error {
	return r.atomically(ctx, req.Deadline, func(ctx context.Context) error {
		first, err := r.firstPair(req.Path)
		if err != nil {
			return err
		}
		out, err := r.tokens.Token(req.Path[len(req.Path)-1])
		if err != nil {
			return err
		}
		before := out.BalanceOf(req.To)

		if err := r.pull(ctx, req.Path[0], req.Caller, first, mathutil.OrZero(req.Amount)); err != nil {
			return err
		}
		if err := r.swapSupportingFeeOnTransfer(ctx, req.Caller, req.Path, req.To); err != nil {
			return err
		}

		after := out.BalanceOf(req.To)
		received := new(uint256.Int)
		if after.Gt(before) {
			received.Sub(after, before)
		}
		if received.Lt(mathutil.OrZero(req.Limit)) {
			return fmt.Errorf("%w: received %s, minimum %s", ErrInsufficientOutputAmount, received.Dec(), mathutil.OrZero(req.Limit).Dec())
		}
		return nil
	})
}

func (r *Router) swapSupportingFeeOnTransfer(ctx context.Context, sender solana.PublicKey, path []solana.PublicKey, to solana.PublicKey) error {
	for i := 0; i < len(path)-1; i++ {
		input, output := path[i], path[i+1]
		p, err := r.pairFor(input, output)
		if err != nil {
			return err
		}
		reserveIn, reserveOut, err := orderedReserves(p, input)
		if err != nil {
			return err
		}
		in, err := r.tokens.Token(input)
		if err != nil {
			return err
		}
		balance := in.BalanceOf(p.Address())
		amountInput := new(uint256.Int)
		if balance.Gt(reserveIn) {
			amountInput.Sub(balance, reserveIn)
		}
		amountOutput, err := GetAmountOut(amountInput, reserveIn, reserveOut)
		if err != nil {
			return fmt.Errorf("hop %d: %w", i, err)
		}

		amount0Out, amount1Out := new(uint256.Int), amountOutput
		if input != p.Token0() {
			amount0Out, amount1Out = amountOutput, new(uint256.Int)
		}
		recipient := to
		if i < len(path)-2 {
			next, err := r.pairFor(output, path[i+2])
			if err != nil {
				return err
			}
			recipient = next.Address()
		}
		if err := p.Swap(ctx, sender, amount0Out, amount1Out, recipient, nil, nil); err != nil {
			return fmt.Errorf("hop %d %s->%s: %w", i, input, output, err)
		}
	}
	return nil
}

// payAndSwap pulls amounts[0] of path[0] from the caller into the first pair and runs
// the path.
func (r *Router) payAndSwap(ctx context.Context, req *domain.SwapRequest, amounts []*uint256.Int, to solana.PublicKey) error {
	first, err := r.firstPair(req.Path)
	if err != nil {
		return err
	}
	if err := r.pull(ctx, req.Path[0], req.Caller, first, amounts[0]); err != nil {
		return err
	}
	return r.swap(ctx, req.Caller, amounts, req.Path, to)
}

// wrapAndSwap wraps amounts[0] of the caller's native balance directly into the
// first pair and runs the path.
func (r *Router) wrapAndSwap(ctx context.Context, req *domain.SwapRequest, amounts []*uint256.Int, to solana.PublicKey) error {
	first, err := r.firstPair(req.Path)
	if err != nil {
		return err
	}
	if err := r.wrapped.Deposit(ctx, req.Caller, first, amounts[0]); err != nil {
		return err
	}
	return r.swap(ctx, req.Caller, amounts, req.Path, to)
}

// checkNativePath requires the wrapped native token at the start (nativeIn) or the
// end of path.
func (r *Router) checkNativePath(path []solana.PublicKey, nativeIn bool) error {
	if r.wrapped == nil {
		return ErrNoWrappedNative
	}
	if len(path) < 2 {
		return fmt.Errorf("%w: %d tokens", ErrInvalidPath, len(path))
	}
	end := path[len(path)-1]
	if nativeIn {
		end = path[0]
	}
	if end != r.wrapped.ID() {
		return fmt.Errorf("%w: %s is not the wrapped native token", ErrInvalidPath, end)
	}
	return nil
}
