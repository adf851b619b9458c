// Package router is the user-facing entry layer over the registry and its pairs. It
// resolves optimal deposit ratios, prices multi-hop paths hop by hop, and executes
// liquidity changes and swaps as single all-or-nothing operations.
package router

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"

	"github.com/hxuan190/amm-engine/internal/amm/pair"
	"github.com/hxuan190/amm-engine/internal/amm/registry"
	"github.com/hxuan190/amm-engine/internal/domain"
)

type Options struct {
	// Address is the router's own account: the spender callers approve, and the
	// transit holder of wrapped native units on their way out.
	Address  solana.PublicKey
	Registry *registry.Registry
	Tokens   domain.TokenSource
	Journal  domain.Journal
	// Wrapped is optional; native entry points fail with ErrNoWrappedNative without it.
	Wrapped domain.WrappedNative
	Now     func() time.Time
}

// Router holds no state of its own. Every mutating entry point runs as one
// transaction on the shared journal; concurrent calls wait for each other.
type Router struct {
	address  solana.PublicKey
	registry *registry.Registry
	tokens   domain.TokenSource
	journal  domain.Journal
	wrapped  domain.WrappedNative
	now      func() time.Time
}

func New(opts Options) *Router {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Router{
		address:  opts.Address,
		registry: opts.Registry,
		tokens:   opts.Tokens,
		journal:  opts.Journal,
		wrapped:  opts.Wrapped,
		now:      opts.Now,
	}
}

func (r *Router) Address() solana.PublicKey {
	return r.address
}

func (r *Router) Registry() *registry.Registry {
	return r.registry
}

// atomically gates fn on the deadline and runs it in one journal revision, so a
// failure in any step rolls back every earlier transfer and pair update and drops
// the events they raised.
func (r *Router) atomically(ctx context.Context, deadline time.Time, fn func(ctx context.Context) error) error {
	if now := r.now(); now.After(deadline) {
		return fmt.Errorf("%w: deadline %s passed at %s", ErrExpired, deadline.UTC().Format(time.RFC3339), now.UTC().Format(time.RFC3339))
	}
	return domain.Atomically(ctx, r.journal, fn)
}

func (r *Router) pairFor(tokenA, tokenB solana.PublicKey) (*pair.Pair, error) {
	p, err := r.registry.GetPair(tokenA, tokenB)
	if err != nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrPairNotFound, tokenA, tokenB)
	}
	return p, nil
}

// GetReserves returns the reserves of the tokenA/tokenB pair in argument order.
func (r *Router) GetReserves(tokenA, tokenB solana.PublicKey) (reserveA, reserveB *uint256.Int, err error) {
	p, err := r.pairFor(tokenA, tokenB)
	if err != nil {
		return nil, nil, err
	}
	return orderedReserves(p, tokenA)
}

func orderedReserves(p *pair.Pair, tokenA solana.PublicKey) (reserveA, reserveB *uint256.Int, err error) {
	reserve0, reserve1, _ := p.GetReserves()
	if tokenA == p.Token0() {
		return reserve0, reserve1, nil
	}
	return reserve1, reserve0, nil
}

// GetAmountsOut chains GetAmountOut along path starting from amountIn.
// amounts[0] is amountIn and amounts[len(path)-1] the final output.
func (r *Router) GetAmountsOut(amountIn *uint256.Int, path []solana.PublicKey) ([]*uint256.Int, error) {
	if len(path) < 2 {
		return nil, fmt.Errorf("%w: %d tokens", ErrInvalidPath, len(path))
	}
	amounts := make([]*uint256.Int, len(path))
	amounts[0] = amountIn
	for i := 0; i < len(path)-1; i++ {
		reserveIn, reserveOut, err := r.GetReserves(path[i], path[i+1])
		if err != nil {
			return nil, err
		}
		if amounts[i+1], err = GetAmountOut(amounts[i], reserveIn, reserveOut); err != nil {
			return nil, fmt.Errorf("hop %d: %w", i, err)
		}
	}
	return amounts, nil
}

// GetAmountsIn chains GetAmountIn backwards along path from amountOut.
func (r *Router) GetAmountsIn(amountOut *uint256.Int, path []solana.PublicKey) ([]*uint256.Int, error) {
	if len(path) < 2 {
		return nil, fmt.Errorf("%w: %d tokens", ErrInvalidPath, len(path))
	}
	amounts := make([]*uint256.Int, len(path))
	amounts[len(amounts)-1] = amountOut
	for i := len(path) - 1; i > 0; i-- {
		reserveIn, reserveOut, err := r.GetReserves(path[i-1], path[i])
		if err != nil {
			return nil, err
		}
		if amounts[i-1], err = GetAmountIn(amounts[i], reserveIn, reserveOut); err != nil {
			return nil, fmt.Errorf("hop %d: %w", i-1, err)
		}
	}
	return amounts, nil
}

// QuotePath prices path for amount and breaks the result down per hop. amount is
// the input when exactIn is set and the desired output otherwise.
func (r *Router) QuotePath(path []solana.PublicKey, amount *uint256.Int, exactIn bool) (*domain.MultiHopQuoteResult, error) {
	var (
		amounts []*uint256.Int
		err     error
	)
	if exactIn {
		amounts, err = r.GetAmountsOut(amount, path)
	} else {
		amounts, err = r.GetAmountsIn(amount, path)
	}
	if err != nil {
		return nil, err
	}

	hops := make([]domain.HopQuote, 0, len(path)-1)
	totalFee := new(uint256.Int)
	totalImpact := uint32(0)
	for i := 0; i < len(path)-1; i++ {
		p, err := r.pairFor(path[i], path[i+1])
		if err != nil {
			return nil, err
		}
		reserveIn, reserveOut, err := orderedReserves(p, path[i])
		if err != nil {
			return nil, err
		}
		fee := new(uint256.Int).Mul(amounts[i], uint256.NewInt(pair.FeeNumerator))
		fee.Div(fee, feeDenominator)
		impact := PriceImpactBps(amounts[i], amounts[i+1], reserveIn, reserveOut)

		hops = append(hops, domain.HopQuote{
			Pair:           p.Address(),
			TokenIn:        path[i],
			TokenOut:       path[i+1],
			ReserveIn:      reserveIn,
			ReserveOut:     reserveOut,
			AmountIn:       amounts[i],
			AmountOut:      amounts[i+1],
			FeeAmount:      fee,
			PriceImpactBps: impact,
		})
		// fees are denominated in each hop's input token; the total is indicative only
		totalFee.Add(totalFee, fee)
		totalImpact += uint32(impact)
	}

	return &domain.MultiHopQuoteResult{
		Route:          path,
		Hops:           hops,
		Amounts:        amounts,
		AmountIn:       amounts[0],
		AmountOut:      amounts[len(amounts)-1],
		TotalFee:       totalFee,
		PriceImpactBps: uint16(min(int(totalImpact), 10000)),
		ExactIn:        exactIn,
	}, nil
}
