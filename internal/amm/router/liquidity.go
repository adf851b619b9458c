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

// OptimalAmounts resolves how much of each desired amount a deposit into a pool with
// the given reserves actually uses. An empty pool takes both amounts as they are;
// otherwise the limiting side is used in full and the other is scaled to the pool
// ratio, subject to its minimum.
func OptimalAmounts(reserveA, reserveB, amountADesired, amountBDesired, amountAMin, amountBMin *uint256.Int) (amountA, amountB *uint256.Int, err error) {
	amountAMin = mathutil.OrZero(amountAMin)
	amountBMin = mathutil.OrZero(amountBMin)
	if reserveA.IsZero() && reserveB.IsZero() {
		return amountADesired.Clone(), amountBDesired.Clone(), nil
	}

	amountBOptimal, err := Quote(amountADesired, reserveA, reserveB)
	if err != nil {
		return nil, nil, err
	}
	if !amountBOptimal.Gt(amountBDesired) {
		if amountBOptimal.Lt(amountBMin) {
			return nil, nil, fmt.Errorf("%w: optimal %s below minimum %s", ErrInsufficientBAmount, amountBOptimal.Dec(), amountBMin.Dec())
		}
		return amountADesired.Clone(), amountBOptimal, nil
	}

	amountAOptimal, err := Quote(amountBDesired, reserveB, reserveA)
	if err != nil {
		return nil, nil, err
	}
	if amountAOptimal.Gt(amountADesired) {
		// unreachable with consistent reserves
		return nil, nil, fmt.Errorf("%w: optimal %s above desired %s", ErrInsufficientAAmount, amountAOptimal.Dec(), amountADesired.Dec())
	}
	if amountAOptimal.Lt(amountAMin) {
		return nil, nil, fmt.Errorf("%w: optimal %s below minimum %s", ErrInsufficientAAmount, amountAOptimal.Dec(), amountAMin.Dec())
	}
	return amountAOptimal, amountBDesired.Clone(), nil
}

// addLiquidity creates the pair when it does not exist yet and resolves the deposit.
func (r *Router) addLiquidity(ctx context.Context, tokenA, tokenB solana.PublicKey, amountADesired, amountBDesired, amountAMin, amountBMin *uint256.Int) (amountA, amountB *uint256.Int, err error) {
	if amountADesired == nil || amountBDesired == nil {
		return nil, nil, ErrInsufficientAmount
	}
	if _, err := r.registry.GetPair(tokenA, tokenB); err != nil {
		if _, err := r.registry.CreatePair(ctx, tokenA, tokenB); err != nil {
			return nil, nil, err
		}
	}
	reserveA, reserveB, err := r.GetReserves(tokenA, tokenB)
	if err != nil {
		return nil, nil, err
	}
	return OptimalAmounts(reserveA, reserveB, amountADesired, amountBDesired, amountAMin, amountBMin)
}

// AddLiquidity deposits both tokens from the caller at the pool ratio and mints the
// shares to req.To. The caller must have approved the router for both tokens.
func (r *Router) AddLiquidity(ctx context.Context, req *domain.AddLiquidityRequest) (*domain.LiquidityResult, error) {
	var res *domain.LiquidityResult
	err := r.atomically(ctx, req.Deadline, func(ctx context.Context) error {
		amountA, amountB, err := r.addLiquidity(ctx, req.TokenA, req.TokenB, req.AmountADesired, req.AmountBDesired, req.AmountAMin, req.AmountBMin)
		if err != nil {
			return err
		}
		p, err := r.pairFor(req.TokenA, req.TokenB)
		if err != nil {
			return err
		}
		if err := r.pull(ctx, req.TokenA, req.Caller, p.Address(), amountA); err != nil {
			return err
		}
		if err := r.pull(ctx, req.TokenB, req.Caller, p.Address(), amountB); err != nil {
			return err
		}
		liquidity, err := p.Mint(ctx, req.Caller, req.To)
		if err != nil {
			return err
		}
		res = &domain.LiquidityResult{AmountA: amountA, AmountB: amountB, Liquidity: liquidity}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// AddLiquidityNative pairs a token with the native asset. Up to req.Value native units
// are wrapped straight into the pool; only the amount the pool ratio needs is taken.
// AmountA of the result is the token side and AmountB the native side.
func (r *Router) AddLiquidityNative(ctx context.Context, req *domain.AddLiquidityNativeRequest) (*domain.LiquidityResult, error) {
	if r.wrapped == nil {
		return nil, ErrNoWrappedNative
	}
	native := r.wrapped.ID()

	var res *domain.LiquidityResult
	err := r.atomically(ctx, req.Deadline, func(ctx context.Context) error {
		amountToken, amountNative, err := r.addLiquidity(ctx, req.Token, native, req.AmountTokenDesired, mathutil.OrZero(req.Value), req.AmountTokenMin, req.AmountNativeMin)
		if err != nil {
			return err
		}
		p, err := r.pairFor(req.Token, native)
		if err != nil {
			return err
		}
		if err := r.pull(ctx, req.Token, req.Caller, p.Address(), amountToken); err != nil {
			return err
		}
		if err := r.wrapped.Deposit(ctx, req.Caller, p.Address(), amountNative); err != nil {
			return err
		}
		liquidity, err := p.Mint(ctx, req.Caller, req.To)
		if err != nil {
			return err
		}
		res = &domain.LiquidityResult{AmountA: amountToken, AmountB: amountNative, Liquidity: liquidity}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// removeLiquidity moves the caller's shares into the pair, burns them for to and
// checks both minimums. Amounts come back in tokenA/tokenB order.
func (r *Router) removeLiquidity(ctx context.Context, caller, tokenA, tokenB solana.PublicKey, liquidity, amountAMin, amountBMin *uint256.Int, to solana.PublicKey) (amountA, amountB *uint256.Int, err error) {
	if liquidity == nil {
		return nil, nil, ErrInsufficientAmount
	}
	p, err := r.pairFor(tokenA, tokenB)
	if err != nil {
		return nil, nil, err
	}
	if err := p.TransferFrom(ctx, r.address, caller, p.Address(), liquidity); err != nil {
		return nil, nil, err
	}
	amount0, amount1, err := p.Burn(ctx, caller, to)
	if err != nil {
		return nil, nil, err
	}
	token0, _ := registry.SortTokens(tokenA, tokenB)
	if tokenA == token0 {
		amountA, amountB = amount0, amount1
	} else {
		amountA, amountB = amount1, amount0
	}
	amountAMin, amountBMin = mathutil.OrZero(amountAMin), mathutil.OrZero(amountBMin)
	if amountA.Lt(amountAMin) {
		return nil, nil, fmt.Errorf("%w: got %s, minimum %s", ErrInsufficientAAmount, amountA.Dec(), amountAMin.Dec())
	}
	if amountB.Lt(amountBMin) {
		return nil, nil, fmt.Errorf("%w: got %s, minimum %s", ErrInsufficientBAmount, amountB.Dec(), amountBMin.Dec())
	}
	return amountA, amountB, nil
}

// RemoveLiquidity burns req.Liquidity shares of the caller, who must have approved
// the router on the pair, and pays both tokens to req.To.
func (r *Router) RemoveLiquidity(ctx context.Context, req *domain.RemoveLiquidityRequest) (*domain.LiquidityResult, error) {
	var res *domain.LiquidityResult
	err := r.atomically(ctx, req.Deadline, func(ctx context.Context) error {
		amountA, amountB, err := r.removeLiquidity(ctx, req.Caller, req.TokenA, req.TokenB, req.Liquidity, req.AmountAMin, req.AmountBMin, req.To)
		if err != nil {
			return err
		}
		res = &domain.LiquidityResult{AmountA: amountA, AmountB: amountB, Liquidity: req.Liquidity.Clone()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// RemoveLiquidityNative burns shares of a token/native pair and pays the native side
// out unwrapped.
func (r *Router) RemoveLiquidityNative(ctx context.Context, req *domain.RemoveLiquidityNativeRequest) (*domain.LiquidityResult, error) {
	if r.wrapped == nil {
		return nil, ErrNoWrappedNative
	}
	native := r.wrapped.ID()

	var res *domain.LiquidityResult
	err := r.atomically(ctx, req.Deadline, func(ctx context.Context) error {
		amountToken, amountNative, err := r.removeLiquidity(ctx, req.Caller, req.Token, native, req.Liquidity, req.AmountTokenMin, req.AmountNativeMin, r.address)
		if err != nil {
			return err
		}
		token, err := r.tokens.Token(req.Token)
		if err != nil {
			return err
		}
		if err := token.Transfer(ctx, r.address, req.To, amountToken); err != nil {
			return err
		}
		if err := r.wrapped.Withdraw(ctx, r.address, req.To, amountNative); err != nil {
			return err
		}
		res = &domain.LiquidityResult{AmountA: amountToken, AmountB: amountNative, Liquidity: req.Liquidity.Clone()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// pull spends the router's allowance to move amount of token from owner to dst.
func (r *Router) pull(ctx context.Context, token, owner, dst solana.PublicKey, amount *uint256.Int) error {
	t, err := r.tokens.Token(token)
	if err != nil {
		return err
	}
	return t.TransferFrom(ctx, r.address, owner, dst, amount)
}
