package ledger

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"

	"github.com/hxuan190/amm-engine/internal/domain"
)

// Token is a handle on one asset of the ledger.
type Token struct {
	l *Ledger
	a *asset
}

var _ domain.Token = (*Token)(nil)

func (t *Token) ID() solana.PublicKey {
	return t.a.id
}

func (t *Token) Symbol() string {
	return t.a.symbol
}

func (t *Token) Decimals() uint8 {
	return t.a.decimals
}

func (t *Token) TotalSupply() *uint256.Int {
	t.l.mu.Lock()
	defer t.l.mu.Unlock()
	return t.a.supply.Clone()
}

func (t *Token) BalanceOf(holder solana.PublicKey) *uint256.Int {
	t.l.mu.Lock()
	defer t.l.mu.Unlock()
	return t.l.balanceLocked(t.a, holder).Clone()
}

func (t *Token) Allowance(owner, spender solana.PublicKey) *uint256.Int {
	t.l.mu.Lock()
	defer t.l.mu.Unlock()
	return t.l.allowanceLocked(t.a, owner, spender).Clone()
}

func (t *Token) Approve(ctx context.Context, owner, spender solana.PublicKey, amount *uint256.Int) error {
	if amount == nil {
		return ErrInvalidAmount
	}
	return t.l.apply(ctx, func() error {
		t.l.setAllowanceLocked(t.a, owner, spender, amount.Clone())
		return nil
	})
}

func (t *Token) Transfer(ctx context.Context, from, to solana.PublicKey, amount *uint256.Int) error {
	return t.l.apply(ctx, func() error {
		return t.l.transferLocked(t.a, from, to, amount)
	})
}

// TransferFrom spends spender's allowance over from. An all-ones allowance is never
// decremented.
func (t *Token) TransferFrom(ctx context.Context, spender, from, to solana.PublicKey, amount *uint256.Int) error {
	if amount == nil {
		return ErrInvalidAmount
	}
	return t.l.apply(ctx, func() error {
		allowed := t.l.allowanceLocked(t.a, from, spender)
		if !allowed.Eq(maxAllowance) {
			if allowed.Lt(amount) {
				return fmt.Errorf("%w: %s allows %s %s to %s, needs %s",
					ErrInsufficientAllowance, from, allowed.Dec(), t.a.symbol, spender, amount.Dec())
			}
			t.l.setAllowanceLocked(t.a, from, spender, new(uint256.Int).Sub(allowed, amount))
		}
		return t.l.transferLocked(t.a, from, to, amount)
	})
}

var maxAllowance = new(uint256.Int).SetAllOne()

// MaxAllowance returns the allowance value that is never spent down.
func MaxAllowance() *uint256.Int {
	return maxAllowance.Clone()
}
