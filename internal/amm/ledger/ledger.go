// Package ledger is an in-memory multi-asset balance book with allowances, a native
// asset, and a journal that lets callers roll back groups of changes atomically.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"

	"github.com/hxuan190/amm-engine/internal/amm/mathutil"
	"github.com/hxuan190/amm-engine/internal/domain"
)

var (
	ErrUnknownToken          = errors.New("unknown token")
	ErrTokenExists           = errors.New("token already registered")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInsufficientNative    = errors.New("insufficient native balance")
	ErrSupplyOverflow        = errors.New("supply overflow")
	ErrNoWrappedNative       = errors.New("wrapped native asset not registered")
)

type asset struct {
	id             solana.PublicKey
	symbol         string
	decimals       uint8
	transferFeeBps uint16
	wrapped        bool
	supply         *uint256.Int
	balances       map[solana.PublicKey]*uint256.Int
	allowances     map[solana.PublicKey]map[solana.PublicKey]*uint256.Int
}

// Ledger implements domain.TokenSource, domain.Journal and domain.NativeBank.
// Every mutation runs inside a transaction; slot admits one transaction at a time.
type Ledger struct {
	mu     sync.Mutex
	active *transaction
	slot   chan struct{}

	assets  map[solana.PublicKey]*asset
	native  map[solana.PublicKey]*uint256.Int
	wrapped *WrappedNative
}

var (
	_ domain.TokenSource = (*Ledger)(nil)
	_ domain.Journal     = (*Ledger)(nil)
	_ domain.NativeBank  = (*Ledger)(nil)
)

func New() *Ledger {
	return &Ledger{
		slot:   make(chan struct{}, 1),
		assets: make(map[solana.PublicKey]*asset),
		native: make(map[solana.PublicKey]*uint256.Int),
	}
}

// Register adds a plain fungible asset.
func (l *Ledger) Register(id solana.PublicKey, symbol string, decimals uint8) (*Token, error) {
	return l.register(id, symbol, decimals, 0, false)
}

// RegisterWithTransferFee adds an asset that burns feeBps of every transfer.
func (l *Ledger) RegisterWithTransferFee(id solana.PublicKey, symbol string, decimals uint8, feeBps uint16) (*Token, error) {
	if feeBps >= 10000 {
		return nil, fmt.Errorf("%w: transfer fee %d bps", ErrInvalidAmount, feeBps)
	}
	return l.register(id, symbol, decimals, feeBps, false)
}

func (l *Ledger) register(id solana.PublicKey, symbol string, decimals uint8, feeBps uint16, wrapped bool) (*Token, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if id.IsZero() {
		return nil, fmt.Errorf("%w: null identifier", ErrUnknownToken)
	}
	if _, exists := l.assets[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrTokenExists, id)
	}
	a := &asset{
		id:             id,
		symbol:         symbol,
		decimals:       decimals,
		transferFeeBps: feeBps,
		wrapped:        wrapped,
		supply:         new(uint256.Int),
		balances:       make(map[solana.PublicKey]*uint256.Int),
		allowances:     make(map[solana.PublicKey]map[solana.PublicKey]*uint256.Int),
	}
	l.assets[id] = a
	return &Token{l: l, a: a}, nil
}

func (l *Ledger) Token(id solana.PublicKey) (domain.Token, error) {
	l.mu.Lock()
	a, ok := l.assets[id]
	l.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, id)
	}
	if a.wrapped && l.wrapped != nil {
		return l.wrapped, nil
	}
	return &Token{l: l, a: a}, nil
}

// Tokens lists registered asset identifiers in byte order.
func (l *Ledger) Tokens() []solana.PublicKey {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.sortedIDsLocked()
}

// Mint credits new units of an asset. Only fixtures and bootstrapping use it.
func (l *Ledger) Mint(ctx context.Context, id, to solana.PublicKey, amount *uint256.Int) error {
	return l.apply(ctx, func() error {
		a, ok := l.assets[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownToken, id)
		}
		return l.mintLocked(a, to, amount)
	})
}

func (l *Ledger) mintLocked(a *asset, to solana.PublicKey, amount *uint256.Int) error {
	if amount == nil {
		return ErrInvalidAmount
	}
	supply, overflow := new(uint256.Int).AddOverflow(a.supply, amount)
	if overflow {
		return ErrSupplyOverflow
	}
	l.setSupplyLocked(a, supply)
	l.setBalanceLocked(a, to, new(uint256.Int).Add(l.balanceLocked(a, to), amount))
	return nil
}

func (l *Ledger) burnLocked(a *asset, from solana.PublicKey, amount *uint256.Int) error {
	bal := l.balanceLocked(a, from)
	if bal.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, from, bal.Dec(), amount.Dec())
	}
	l.setBalanceLocked(a, from, new(uint256.Int).Sub(bal, amount))
	l.setSupplyLocked(a, new(uint256.Int).Sub(a.supply, amount))
	return nil
}

func (l *Ledger) balanceLocked(a *asset, holder solana.PublicKey) *uint256.Int {
	if bal, ok := a.balances[holder]; ok {
		return bal
	}
	return mathutil.Zero
}

// Balance values are replaced, never mutated, so undo closures can keep the old pointer.
func (l *Ledger) setBalanceLocked(a *asset, holder solana.PublicKey, v *uint256.Int) {
	prev, had := a.balances[holder]
	l.recordLocked(func() {
		if had {
			a.balances[holder] = prev
		} else {
			delete(a.balances, holder)
		}
	})
	if v.IsZero() {
		delete(a.balances, holder)
		return
	}
	a.balances[holder] = v
}

func (l *Ledger) setSupplyLocked(a *asset, v *uint256.Int) {
	prev := a.supply
	l.recordLocked(func() { a.supply = prev })
	a.supply = v
}

func (l *Ledger) allowanceLocked(a *asset, owner, spender solana.PublicKey) *uint256.Int {
	if byOwner, ok := a.allowances[owner]; ok {
		if v, ok := byOwner[spender]; ok {
			return v
		}
	}
	return mathutil.Zero
}

func (l *Ledger) setAllowanceLocked(a *asset, owner, spender solana.PublicKey, v *uint256.Int) {
	byOwner, ok := a.allowances[owner]
	if !ok {
		byOwner = make(map[solana.PublicKey]*uint256.Int)
		a.allowances[owner] = byOwner
	}
	prev, had := byOwner[spender]
	l.recordLocked(func() {
		if had {
			byOwner[spender] = prev
		} else {
			delete(byOwner, spender)
		}
	})
	byOwner[spender] = v
}

func (l *Ledger) transferLocked(a *asset, from, to solana.PublicKey, amount *uint256.Int) error {
	if amount == nil {
		return ErrInvalidAmount
	}
	bal := l.balanceLocked(a, from)
	if bal.Lt(amount) {
		return fmt.Errorf("%w: %s has %s %s, needs %s", ErrInsufficientBalance, from, bal.Dec(), a.symbol, amount.Dec())
	}
	if from == to || amount.IsZero() {
		return nil
	}

	received := amount
	if a.transferFeeBps > 0 {
		fee, _ := mathutil.MulDiv(amount, uint256.NewInt(uint64(a.transferFeeBps)), mathutil.BpsDenom)
		received = new(uint256.Int).Sub(amount, fee)
		l.setSupplyLocked(a, new(uint256.Int).Sub(a.supply, fee))
	}

	l.setBalanceLocked(a, from, new(uint256.Int).Sub(bal, amount))
	l.setBalanceLocked(a, to, new(uint256.Int).Add(l.balanceLocked(a, to), received))
	return nil
}

func (l *Ledger) NativeBalance(holder solana.PublicKey) *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nativeLocked(holder).Clone()
}

func (l *Ledger) nativeLocked(holder solana.PublicKey) *uint256.Int {
	if bal, ok := l.native[holder]; ok {
		return bal
	}
	return mathutil.Zero
}

func (l *Ledger) setNativeLocked(holder solana.PublicKey, v *uint256.Int) {
	prev, had := l.native[holder]
	l.recordLocked(func() {
		if had {
			l.native[holder] = prev
		} else {
			delete(l.native, holder)
		}
	})
	if v.IsZero() {
		delete(l.native, holder)
		return
	}
	l.native[holder] = v
}

// MintNative credits native units. Only fixtures and bootstrapping use it.
func (l *Ledger) MintNative(ctx context.Context, to solana.PublicKey, amount *uint256.Int) error {
	if amount == nil {
		return ErrInvalidAmount
	}
	return l.apply(ctx, func() error {
		l.setNativeLocked(to, new(uint256.Int).Add(l.nativeLocked(to), amount))
		return nil
	})
}

func (l *Ledger) SendNative(ctx context.Context, from, to solana.PublicKey, amount *uint256.Int) error {
	return l.apply(ctx, func() error {
		return l.sendNativeLocked(from, to, amount)
	})
}

func (l *Ledger) sendNativeLocked(from, to solana.PublicKey, amount *uint256.Int) error {
	if amount == nil {
		return ErrInvalidAmount
	}
	bal := l.nativeLocked(from)
	if bal.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientNative, from, bal.Dec(), amount.Dec())
	}
	if from == to || amount.IsZero() {
		return nil
	}
	l.setNativeLocked(from, new(uint256.Int).Sub(bal, amount))
	l.setNativeLocked(to, new(uint256.Int).Add(l.nativeLocked(to), amount))
	return nil
}

func lessKey(a, b solana.PublicKey) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
