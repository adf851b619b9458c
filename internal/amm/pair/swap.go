package pair

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"

	"github.com/hxuan190/amm-engine/internal/amm/mathutil"
	"github.com/hxuan190/amm-engine/internal/domain"
)

var (
	feeDenominator = uint256.NewInt(FeeDenominator)
	feeNumerator   = uint256.NewInt(FeeNumerator)
	kScale         = uint256.NewInt(FeeDenominator * FeeDenominator)
)

// Swap sends the requested outputs to to, optionally hands control to callee for a
// flash swap, then infers what was paid in from the pair's balances and checks the
// fee-adjusted constant product.
func (p *Pair) Swap(ctx context.Context, sender solana.PublicKey, amount0Out, amount1Out *uint256.Int, to solana.PublicKey, callee domain.SwapCallee, data []byte) error {
	amount0Out = mathutil.OrZero(amount0Out)
	amount1Out = mathutil.OrZero(amount1Out)

	return p.atomically(ctx, func(ctx context.Context) error {
		if amount0Out.IsZero() && amount1Out.IsZero() {
			return ErrInsufficientOutputAmount
		}
		reserve0, reserve1, _ := p.GetReserves()
		if !amount0Out.Lt(reserve0) || !amount1Out.Lt(reserve1) {
			return ErrInsufficientLiquidity
		}

		p.mu.RLock()
		token0, token1 := p.token0, p.token1
		p.mu.RUnlock()
		if to == token0 || to == token1 {
			return fmt.Errorf("%w: recipient %s is a pool token", ErrInvalidTo, to)
		}

		if err := p.checkOutputs(amount0Out, amount1Out, reserve0, reserve1); err != nil {
			return err
		}

		if !amount0Out.IsZero() {
			if err := p.t0.Transfer(ctx, p.address, to, amount0Out); err != nil {
				return err
			}
		}
		if !amount1Out.IsZero() {
			if err := p.t1.Transfer(ctx, p.address, to, amount1Out); err != nil {
				return err
			}
		}
		if len(data) > 0 {
			if callee == nil {
				return ErrMissingCallee
			}
			if err := callee.OnSwap(ctx, sender, amount0Out.Clone(), amount1Out.Clone(), data); err != nil {
				return fmt.Errorf("swap callback: %w", err)
			}
		}

		balance0, balance1 := p.balances()
		amount0In := amountIn(balance0, reserve0, amount0Out)
		amount1In := amountIn(balance1, reserve1, amount1Out)
		if amount0In.IsZero() && amount1In.IsZero() {
			return ErrInsufficientInputAmount
		}
		if exceedsBps(amount0In, reserve0, p.policy.MaxSwapInputBps) ||
			exceedsBps(amount1In, reserve1, p.policy.MaxSwapInputBps) {
			return ErrPriceImpactTooHigh
		}

		if err := checkInvariant(balance0, balance1, amount0In, amount1In, reserve0, reserve1); err != nil {
			return err
		}
		if err := p.update(balance0, balance1, reserve0, reserve1); err != nil {
			return err
		}
		p.emit(&domain.SwapEvent{
			Pair:       p.address,
			Sender:     sender,
			Amount0In:  amount0In,
			Amount1In:  amount1In,
			Amount0Out: amount0Out.Clone(),
			Amount1Out: amount1Out.Clone(),
			To:         to,
		})
		return nil
	})
}

// checkOutputs applies the size cap to each output and the dust floor to the pair of them.
func (p *Pair) checkOutputs(amount0Out, amount1Out, reserve0, reserve1 *uint256.Int) error {
	if exceedsBps(amount0Out, reserve0, p.policy.MaxSwapOutputBps) ||
		exceedsBps(amount1Out, reserve1, p.policy.MaxSwapOutputBps) {
		return ErrSwapTooLarge
	}
	floor := uint256.NewInt(p.policy.MinSwapOutput)
	if amount0Out.Lt(floor) && amount1Out.Lt(floor) {
		return ErrSwapTooSmall
	}
	return nil
}

// checkInvariant enforces
// (balance0*1000 - amount0In*3) * (balance1*1000 - amount1In*3) >= reserve0*reserve1*1000^2.
func checkInvariant(balance0, balance1, amount0In, amount1In, reserve0, reserve1 *uint256.Int) error {
	if balance0.Gt(mathutil.MaxUint112) || balance1.Gt(mathutil.MaxUint112) {
		return ErrOverflow
	}
	adjusted0 := adjustedBalance(balance0, amount0In)
	adjusted1 := adjustedBalance(balance1, amount1In)

	// both sides stay below 2^244
	lhs := new(uint256.Int).Mul(adjusted0, adjusted1)
	rhs := new(uint256.Int).Mul(reserve0, reserve1)
	rhs.Mul(rhs, kScale)
	if lhs.Lt(rhs) {
		return ErrK
	}
	return nil
}

func adjustedBalance(balance, in *uint256.Int) *uint256.Int {
	adjusted := new(uint256.Int).Mul(balance, feeDenominator)
	fee := new(uint256.Int).Mul(in, feeNumerator)
	return adjusted.Sub(adjusted, fee)
}

// amountIn returns balance - (reserve - out), floored at zero.
func amountIn(balance, reserve, out *uint256.Int) *uint256.Int {
	expected := new(uint256.Int).Sub(reserve, out)
	if balance.Gt(expected) {
		return expected.Sub(balance, expected)
	}
	return new(uint256.Int)
}

// exceedsBps reports amount > reserve * bps / 10000 without rounding.
func exceedsBps(amount, reserve *uint256.Int, bps uint64) bool {
	if amount.IsZero() {
		return false
	}
	lhs := new(uint256.Int).Mul(amount, mathutil.BpsDenom)
	rhs := new(uint256.Int).Mul(reserve, uint256.NewInt(bps))
	return lhs.Gt(rhs)
}

// Skim sends any balance above the reserves to to.
func (p *Pair) Skim(ctx context.Context, to solana.PublicKey) error {
	return p.atomically(ctx, func(ctx context.Context) error {
		reserve0, reserve1, _ := p.GetReserves()
		balance0, balance1 := p.balances()
		if balance0.Gt(reserve0) {
			if err := p.t0.Transfer(ctx, p.address, to, new(uint256.Int).Sub(balance0, reserve0)); err != nil {
				return err
			}
		}
		if balance1.Gt(reserve1) {
			if err := p.t1.Transfer(ctx, p.address, to, new(uint256.Int).Sub(balance1, reserve1)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Sync forces the reserves to match the balances.
func (p *Pair) Sync(ctx context.Context) error {
	return p.atomically(ctx, func(context.Context) error {
		reserve0, reserve1, _ := p.GetReserves()
		balance0, balance1 := p.balances()
		return p.update(balance0, balance1, reserve0, reserve1)
	})
}
