// Package pair implements one two-asset constant-product pool: reserve bookkeeping,
// LP share issuance, fee-adjusted swaps with flash callbacks, and cumulative price
// accumulators for time-weighted averages.
package pair

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"

	"github.com/hxuan190/amm-engine/internal/amm/mathutil"
	"github.com/hxuan190/amm-engine/internal/domain"
)

// LockedLiquidityHolder receives the MinimumLiquidity shares. Nobody controls the null key.
var LockedLiquidityHolder = solana.PublicKey{}

// FeeSource reports the protocol fee recipient at the moment fees accrue.
// A null recipient turns protocol fees off.
type FeeSource interface {
	FeeRecipient() solana.PublicKey
}

type Options struct {
	Address  solana.PublicKey
	Registry solana.PublicKey
	Policy   Policy
	Journal  domain.Journal
	Tokens   domain.TokenSource
	Fees     FeeSource
	Events   domain.EventSink
	Now      func() time.Time
}

type Pair struct {
	address  solana.PublicKey
	registry solana.PublicKey
	policy   Policy
	journal  domain.Journal
	tokens   domain.TokenSource
	fees     FeeSource
	events   domain.EventSink
	now      func() time.Time

	locked atomic.Bool

	mu                   sync.RWMutex
	initialized          bool
	token0, token1       solana.PublicKey
	t0, t1               domain.Token
	reserve0, reserve1   *uint256.Int
	blockTimestampLast   uint32
	price0CumulativeLast *uint256.Int
	price1CumulativeLast *uint256.Int
	kLast                *uint256.Int
	shares               shareLedger
}

var _ domain.Token = (*Pair)(nil)

func New(opts Options) *Pair {
	if opts.Events == nil {
		opts.Events = domain.NopSink{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pair{
		address:              opts.Address,
		registry:             opts.Registry,
		policy:               opts.Policy,
		journal:              opts.Journal,
		tokens:               opts.Tokens,
		fees:                 opts.Fees,
		events:               opts.Events,
		now:                  opts.Now,
		reserve0:             new(uint256.Int),
		reserve1:             new(uint256.Int),
		price0CumulativeLast: new(uint256.Int),
		price1CumulativeLast: new(uint256.Int),
		kLast:                new(uint256.Int),
		shares:               newShareLedger(),
	}
}

// Initialize binds the pair to its sorted tokens. Only the registry may call it, once.
func (p *Pair) Initialize(caller, token0, token1 solana.PublicKey) error {
	if caller != p.registry {
		return fmt.Errorf("%w: %s is not the registry", ErrForbidden, caller)
	}
	t0, err := p.tokens.Token(token0)
	if err != nil {
		return err
	}
	t1, err := p.tokens.Token(token1)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized {
		return ErrAlreadyInitialized
	}
	p.initialized = true
	p.token0, p.token1 = token0, token1
	p.t0, p.t1 = t0, t1
	return nil
}

// atomically runs fn under the reentrancy lock inside one revision of ctx's
// transaction. Any error reverts every ledger and pair change made by fn. The lock
// is taken after joining the transaction, so only a reentrant call can find it held.
func (p *Pair) atomically(ctx context.Context, fn func(ctx context.Context) error) error {
	return domain.Atomically(ctx, p.journal, func(ctx context.Context) error {
		if !p.locked.CompareAndSwap(false, true) {
			return ErrLocked
		}
		defer p.locked.Store(false)

		p.mu.RLock()
		initialized := p.initialized
		p.mu.RUnlock()
		if !initialized {
			return ErrNotInitialized
		}
		return fn(ctx)
	})
}

// emit hands evt to the sink once the outermost transaction commits.
func (p *Pair) emit(evt domain.Event) {
	p.journal.Publish(func() { p.events.Emit(evt) })
}

func (p *Pair) Address() solana.PublicKey {
	return p.address
}

// ID is the identifier of the pair's share token, which is the pair address.
func (p *Pair) ID() solana.PublicKey {
	return p.address
}

func (p *Pair) Token0() solana.PublicKey {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.token0
}

func (p *Pair) Token1() solana.PublicKey {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.token1
}

func (p *Pair) Policy() Policy {
	return p.policy
}

// GetReserves returns copies of the reserves and the time of their last update.
func (p *Pair) GetReserves() (reserve0, reserve1 *uint256.Int, blockTimestampLast uint32) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.reserve0.Clone(), p.reserve1.Clone(), p.blockTimestampLast
}

func (p *Pair) Price0CumulativeLast() *uint256.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.price0CumulativeLast.Clone()
}

func (p *Pair) Price1CumulativeLast() *uint256.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.price1CumulativeLast.Clone()
}

func (p *Pair) KLast() *uint256.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.kLast.Clone()
}

// Snapshot is the monitoring view of the pair.
func (p *Pair) Snapshot() domain.PairSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshotLocked()
}

func (p *Pair) snapshotLocked() domain.PairSnapshot {
	return domain.PairSnapshot{
		Address:              p.address,
		Token0:               p.token0,
		Token1:               p.token1,
		Reserve0:             p.reserve0.Clone(),
		Reserve1:             p.reserve1.Clone(),
		BlockTimestampLast:   p.blockTimestampLast,
		Price0CumulativeLast: p.price0CumulativeLast.Clone(),
		Price1CumulativeLast: p.price1CumulativeLast.Clone(),
		KLast:                p.kLast.Clone(),
		TotalSupply:          p.shares.totalSupply.Clone(),
	}
}

// State copies out everything needed to rebuild the pair.
func (p *Pair) State() *domain.PairState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &domain.PairState{
		PairSnapshot: p.snapshotLocked(),
		Balances:     p.shares.copyBalances(),
		Allowances:   p.shares.copyAllowances(),
	}
}

// Restore rebuilds a pair from persisted state. The pair must be fresh and the
// state's address must match.
func (p *Pair) Restore(st *domain.PairState) error {
	if st.Address != p.address {
		return fmt.Errorf("restore pair %s from state of %s: %w", p.address, st.Address, ErrForbidden)
	}
	if err := p.Initialize(p.registry, st.Token0, st.Token1); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.reserve0 = mathutil.OrZero(st.Reserve0).Clone()
	p.reserve1 = mathutil.OrZero(st.Reserve1).Clone()
	p.blockTimestampLast = st.BlockTimestampLast
	p.price0CumulativeLast = mathutil.OrZero(st.Price0CumulativeLast).Clone()
	p.price1CumulativeLast = mathutil.OrZero(st.Price1CumulativeLast).Clone()
	p.kLast = mathutil.OrZero(st.KLast).Clone()
	p.shares = restoreShareLedger(st)
	return nil
}

// balances reads what the pair actually holds of both tokens.
func (p *Pair) balances() (*uint256.Int, *uint256.Int) {
	return p.t0.BalanceOf(p.address), p.t1.BalanceOf(p.address)
}

func (p *Pair) setKLast(k *uint256.Int) {
	p.mu.Lock()
	prev := p.kLast
	p.kLast = k
	p.mu.Unlock()

	p.journal.Record(func() {
		p.mu.Lock()
		p.kLast = prev
		p.mu.Unlock()
	})
}
