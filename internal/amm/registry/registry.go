// Package registry creates and indexes pairs, one per unordered token pair, and holds
// the protocol-wide fee and pause configuration.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/hxuan190/amm-engine/internal/amm/pair"
	"github.com/hxuan190/amm-engine/internal/domain"
)

type Options struct {
	// Address is the registry's own identity; pairs only accept initialization from it.
	Address       solana.PublicKey
	ProgramID     solana.PublicKey
	FeeController solana.PublicKey
	Pauser        solana.PublicKey
	FeeRecipient  solana.PublicKey
	Policy        pair.Policy
	Tokens        domain.TokenSource
	Journal       domain.Journal
	Events        domain.EventSink
	Now           func() time.Time
}

// FeeConfig is the protocol fee configuration at one point in time.
type FeeConfig struct {
	FeeRecipient  solana.PublicKey
	FeeController solana.PublicKey
}

type Registry struct {
	address   solana.PublicKey
	programID solana.PublicKey
	pauser    solana.PublicKey
	policy    pair.Policy
	tokens    domain.TokenSource
	journal   domain.Journal
	events    domain.EventSink
	now       func() time.Time

	mu            sync.RWMutex
	feeRecipient  solana.PublicKey
	feeController solana.PublicKey
	paused        bool
	byTokens      map[solana.PublicKey]map[solana.PublicKey]*pair.Pair
	byAddress     map[solana.PublicKey]*pair.Pair
	allPairs      []*pair.Pair
}

var _ pair.FeeSource = (*Registry)(nil)

func New(opts Options) *Registry {
	if opts.Events == nil {
		opts.Events = domain.NopSink{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Registry{
		address:       opts.Address,
		programID:     opts.ProgramID,
		pauser:        opts.Pauser,
		policy:        opts.Policy,
		tokens:        opts.Tokens,
		journal:       opts.Journal,
		events:        opts.Events,
		now:           opts.Now,
		feeRecipient:  opts.FeeRecipient,
		feeController: opts.FeeController,
		byTokens:      make(map[solana.PublicKey]map[solana.PublicKey]*pair.Pair),
		byAddress:     make(map[solana.PublicKey]*pair.Pair),
	}
}

func (r *Registry) Address() solana.PublicKey {
	return r.address
}

func (r *Registry) ProgramID() solana.PublicKey {
	return r.programID
}

// CreatePair deploys the pool for tokenA/tokenB at its derived address. The creation
// joins ctx's transaction: reverting it drops the pair and its creation event.
func (r *Registry) CreatePair(ctx context.Context, tokenA, tokenB solana.PublicKey) (*pair.Pair, error) {
	if r.Paused() {
		return nil, ErrPaused
	}
	if tokenA == tokenB {
		return nil, fmt.Errorf("%w: %s", ErrIdenticalAddresses, tokenA)
	}
	token0, token1 := SortTokens(tokenA, tokenB)
	if token0.IsZero() {
		return nil, ErrZeroAddress
	}
	if _, err := r.GetPair(token0, token1); err == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrPairExists, token0, token1)
	}

	address, err := PairAddress(r.programID, token0, token1)
	if err != nil {
		return nil, fmt.Errorf("derive pair address: %w", err)
	}
	p := r.newPair(address)
	if err := p.Initialize(r.address, token0, token1); err != nil {
		return nil, err
	}

	err = domain.Atomically(ctx, r.journal, func(context.Context) error {
		r.mu.Lock()
		if _, exists := r.byAddress[address]; exists {
			r.mu.Unlock()
			return fmt.Errorf("%w: %s/%s", ErrPairExists, token0, token1)
		}
		r.indexLocked(p)
		index := len(r.allPairs)
		r.mu.Unlock()

		r.journal.Record(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.unindexLocked(p)
		})
		evt := &domain.PairCreatedEvent{Token0: token0, Token1: token1, Pair: address, Index: index}
		r.journal.Publish(func() { r.events.Emit(evt) })
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Registry) newPair(address solana.PublicKey) *pair.Pair {
	return pair.New(pair.Options{
		Address:  address,
		Registry: r.address,
		Policy:   r.policy,
		Journal:  r.journal,
		Tokens:   r.tokens,
		Fees:     r,
		Events:   r.events,
		Now:      r.now,
	})
}

func (r *Registry) indexLocked(p *pair.Pair) {
	token0, token1 := p.Token0(), p.Token1()
	if r.byTokens[token0] == nil {
		r.byTokens[token0] = make(map[solana.PublicKey]*pair.Pair)
	}
	if r.byTokens[token1] == nil {
		r.byTokens[token1] = make(map[solana.PublicKey]*pair.Pair)
	}
	r.byTokens[token0][token1] = p
	r.byTokens[token1][token0] = p
	r.byAddress[p.Address()] = p
	r.allPairs = append(r.allPairs, p)
}

// unindexLocked drops p, which must be the most recently created pair.
func (r *Registry) unindexLocked(p *pair.Pair) {
	token0, token1 := p.Token0(), p.Token1()
	delete(r.byTokens[token0], token1)
	delete(r.byTokens[token1], token0)
	delete(r.byAddress, p.Address())
	if n := len(r.allPairs); n > 0 && r.allPairs[n-1] == p {
		r.allPairs[n-1] = nil
		r.allPairs = r.allPairs[:n-1]
	}
}

// GetPair looks a pair up in either token order.
func (r *Registry) GetPair(tokenA, tokenB solana.PublicKey) (*pair.Pair, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.byTokens[tokenA][tokenB]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s/%s", ErrPairNotFound, tokenA, tokenB)
}

func (r *Registry) PairByAddress(address solana.PublicKey) (*pair.Pair, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.byAddress[address]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrPairNotFound, address)
}

// AllPairs returns every pair in creation order.
func (r *Registry) AllPairs() []*pair.Pair {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*pair.Pair, len(r.allPairs))
	copy(out, r.allPairs)
	return out
}

func (r *Registry) AllPairsLength() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.allPairs)
}

func (r *Registry) PairAt(i int) (*pair.Pair, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i < 0 || i >= len(r.allPairs) {
		return nil, fmt.Errorf("%w: index %d of %d", ErrPairNotFound, i, len(r.allPairs))
	}
	return r.allPairs[i], nil
}

func (r *Registry) FeeRecipient() solana.PublicKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.feeRecipient
}

func (r *Registry) FeeController() solana.PublicKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.feeController
}

func (r *Registry) FeeConfig() FeeConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return FeeConfig{FeeRecipient: r.feeRecipient, FeeController: r.feeController}
}

func (r *Registry) Pauser() solana.PublicKey {
	return r.pauser
}

func (r *Registry) Paused() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.paused
}

// SetFeeRecipient changes where protocol fees accrue. The null key turns them off.
func (r *Registry) SetFeeRecipient(caller, recipient solana.PublicKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.feeController {
		return fmt.Errorf("%w: %s is not the fee controller", ErrForbidden, caller)
	}
	r.feeRecipient = recipient
	return nil
}

func (r *Registry) SetFeeController(caller, controller solana.PublicKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.feeController {
		return fmt.Errorf("%w: %s is not the fee controller", ErrForbidden, caller)
	}
	r.feeController = controller
	return nil
}

// Pause stops pair creation. Existing pairs keep trading.
func (r *Registry) Pause(caller solana.PublicKey) error {
	return r.setPaused(caller, true)
}

func (r *Registry) Unpause(caller solana.PublicKey) error {
	return r.setPaused(caller, false)
}

func (r *Registry) setPaused(caller solana.PublicKey, paused bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.pauser {
		return fmt.Errorf("%w: %s is not the pauser", ErrForbidden, caller)
	}
	r.paused = paused
	return nil
}

// State copies out the registry configuration and the pair order.
func (r *Registry) State() *domain.RegistryState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st := &domain.RegistryState{
		FeeRecipient:  r.feeRecipient,
		FeeController: r.feeController,
		Pauser:        r.pauser,
		Paused:        r.paused,
		Pairs:         make([]solana.PublicKey, len(r.allPairs)),
	}
	for i, p := range r.allPairs {
		st.Pairs[i] = p.Address()
	}
	return st
}

// Restore rebuilds an empty registry from persisted state. pairs must hold the state
// of every address listed in st.Pairs.
func (r *Registry) Restore(st *domain.RegistryState, pairs map[solana.PublicKey]*domain.PairState) error {
	if r.AllPairsLength() != 0 {
		return fmt.Errorf("restore into non-empty registry: %w", ErrForbidden)
	}

	restored := make([]*pair.Pair, 0, len(st.Pairs))
	for _, address := range st.Pairs {
		ps, ok := pairs[address]
		if !ok {
			return fmt.Errorf("restore registry: %w: %s", ErrPairNotFound, address)
		}
		p := r.newPair(address)
		if err := p.Restore(ps); err != nil {
			return fmt.Errorf("restore pair %s: %w", address, err)
		}
		restored = append(restored, p)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.feeRecipient = st.FeeRecipient
	r.feeController = st.FeeController
	r.paused = st.Paused
	for _, p := range restored {
		r.indexLocked(p)
	}
	return nil
}
