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
	minimumLiquidity = uint256.NewInt(MinimumLiquidity)
	five             = uint256.NewInt(5)
)

// Mint issues shares for whatever was transferred into the pair since the last
// reserve update. Callers must move both tokens in before calling.
func (p *Pair) Mint(ctx context.Context, sender, to solana.PublicKey) (*uint256.Int, error) {
	var liquidity *uint256.Int
	err := p.atomically(ctx, func(ctx context.Context) error {
		reserve0, reserve1, _ := p.GetReserves()
		balance0, balance1 := p.balances()
		if balance0.Lt(reserve0) || balance1.Lt(reserve1) {
			return fmt.Errorf("%w: balances below reserves", ErrInsufficientLiquidityMinted)
		}
		amount0 := new(uint256.Int).Sub(balance0, reserve0)
		amount1 := new(uint256.Int).Sub(balance1, reserve1)

		feeOn, err := p.mintFee(reserve0, reserve1)
		if err != nil {
			return err
		}

		totalSupply := p.TotalSupply()
		if totalSupply.IsZero() {
			product, overflow := new(uint256.Int).MulOverflow(amount0, amount1)
			if overflow {
				return ErrOverflow
			}
			root := mathutil.Sqrt(product)
			if !root.Gt(minimumLiquidity) {
				return fmt.Errorf("%w: first deposit root %s does not exceed %d",
					ErrInsufficientLiquidityMinted, root.Dec(), MinimumLiquidity)
			}
			liquidity = root.Sub(root, minimumLiquidity)
			p.mintShares(LockedLiquidityHolder, minimumLiquidity)
		} else {
			if reserve0.IsZero() || reserve1.IsZero() {
				return ErrInsufficientLiquidity
			}
			liquidity0, err := mathutil.MulDiv(amount0, totalSupply, reserve0)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrOverflow, err)
			}
			liquidity1, err := mathutil.MulDiv(amount1, totalSupply, reserve1)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrOverflow, err)
			}
			liquidity = mathutil.Min(liquidity0, liquidity1)
		}
		if liquidity.IsZero() {
			return ErrInsufficientLiquidityMinted
		}
		p.mintShares(to, liquidity)

		if err := p.update(balance0, balance1, reserve0, reserve1); err != nil {
			return err
		}
		if feeOn {
			p.setKLast(new(uint256.Int).Mul(balance0, balance1))
		}
		p.emit(&domain.MintEvent{Pair: p.address, Sender: sender, Amount0: amount0, Amount1: amount1})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return liquidity, nil
}

// Burn redeems the shares held by the pair itself for a pro-rata slice of its
// current balances. Callers must transfer the shares to the pair first.
func (p *Pair) Burn(ctx context.Context, sender, to solana.PublicKey) (amount0, amount1 *uint256.Int, err error) {
	err = p.atomically(ctx, func(ctx context.Context) error {
		reserve0, reserve1, _ := p.GetReserves()
		balance0, balance1 := p.balances()
		liquidity := p.BalanceOf(p.address)

		feeOn, err := p.mintFee(reserve0, reserve1)
		if err != nil {
			return err
		}

		totalSupply := p.TotalSupply()
		if totalSupply.IsZero() {
			return ErrInsufficientLiquidityBurned
		}
		if amount0, err = mathutil.MulDiv(liquidity, balance0, totalSupply); err != nil {
			return fmt.Errorf("%w: %v", ErrOverflow, err)
		}
		if amount1, err = mathutil.MulDiv(liquidity, balance1, totalSupply); err != nil {
			return fmt.Errorf("%w: %v", ErrOverflow, err)
		}
		if amount0.IsZero() || amount1.IsZero() {
			return ErrInsufficientLiquidityBurned
		}

		if err := p.burnShares(p.address, liquidity); err != nil {
			return err
		}
		if err := p.t0.Transfer(ctx, p.address, to, amount0); err != nil {
			return err
		}
		if err := p.t1.Transfer(ctx, p.address, to, amount1); err != nil {
			return err
		}

		balance0, balance1 = p.balances()
		if err := p.update(balance0, balance1, reserve0, reserve1); err != nil {
			return err
		}
		if feeOn {
			p.setKLast(new(uint256.Int).Mul(balance0, balance1))
		}
		p.emit(&domain.BurnEvent{Pair: p.address, Sender: sender, Amount0: amount0, Amount1: amount1, To: to})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// mintFee credits the protocol with 1/6 of the growth in sqrt(k) since the last
// liquidity event, as newly minted shares.
func (p *Pair) mintFee(reserve0, reserve1 *uint256.Int) (bool, error) {
	var feeTo solana.PublicKey
	if p.fees != nil {
		feeTo = p.fees.FeeRecipient()
	}
	feeOn := !feeTo.IsZero()
	kLast := p.KLast()

	if !feeOn {
		if !kLast.IsZero() {
			p.setKLast(new(uint256.Int))
		}
		return false, nil
	}
	if kLast.IsZero() {
		return true, nil
	}

	rootK := mathutil.Sqrt(new(uint256.Int).Mul(reserve0, reserve1))
	rootKLast := mathutil.Sqrt(kLast)
	if !rootK.Gt(rootKLast) {
		return true, nil
	}

	numerator := new(uint256.Int).Sub(rootK, rootKLast)
	denominator := new(uint256.Int).Mul(rootK, five)
	denominator.Add(denominator, rootKLast)
	liquidity, err := mathutil.MulDiv(p.TotalSupply(), numerator, denominator)
	if err != nil {
		return true, fmt.Errorf("%w: %v", ErrOverflow, err)
	}
	if !liquidity.IsZero() {
		p.mintShares(feeTo, liquidity)
	}
	return true, nil
}
