package pair

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"

	"github.com/hxuan190/amm-engine/internal/amm/mathutil"
	"github.com/hxuan190/amm-engine/internal/domain"
)

// shareLedger is the LP token embedded in the pair. Guarded by Pair.mu; values are
// replaced rather than mutated so undo closures can hold the previous pointer.
type shareLedger struct {
	totalSupply *uint256.Int
	balances    map[solana.PublicKey]*uint256.Int
	allowances  map[solana.PublicKey]map[solana.PublicKey]*uint256.Int
}

func newShareLedger() shareLedger {
	return shareLedger{
		totalSupply: new(uint256.Int),
		balances:    make(map[solana.PublicKey]*uint256.Int),
		allowances:  make(map[solana.PublicKey]map[solana.PublicKey]*uint256.Int),
	}
}

func restoreShareLedger(st *domain.PairState) shareLedger {
	s := newShareLedger()
	s.totalSupply = mathutil.OrZero(st.TotalSupply).Clone()
	for holder, bal := range st.Balances {
		if bal != nil && !bal.IsZero() {
			s.balances[holder] = bal.Clone()
		}
	}
	for owner, bySpender := range st.Allowances {
		m := make(map[solana.PublicKey]*uint256.Int, len(bySpender))
		for spender, v := range bySpender {
			m[spender] = v.Clone()
		}
		s.allowances[owner] = m
	}
	return s
}

func (s *shareLedger) balanceOf(holder solana.PublicKey) *uint256.Int {
	if bal, ok := s.balances[holder]; ok {
		return bal
	}
	return mathutil.Zero
}

func (s *shareLedger) allowance(owner, spender solana.PublicKey) *uint256.Int {
	if bySpender, ok := s.allowances[owner]; ok {
		if v, ok := bySpender[spender]; ok {
			return v
		}
	}
	return mathutil.Zero
}

func (s *shareLedger) copyBalances() map[solana.PublicKey]*uint256.Int {
	out := make(map[solana.PublicKey]*uint256.Int, len(s.balances))
	for k, v := range s.balances {
		out[k] = v.Clone()
	}
	return out
}

func (s *shareLedger) copyAllowances() map[solana.PublicKey]map[solana.PublicKey]*uint256.Int {
	out := make(map[solana.PublicKey]map[solana.PublicKey]*uint256.Int, len(s.allowances))
	for owner, bySpender := range s.allowances {
		m := make(map[solana.PublicKey]*uint256.Int, len(bySpender))
		for spender, v := range bySpender {
			m[spender] = v.Clone()
		}
		out[owner] = m
	}
	return out
}

func (p *Pair) TotalSupply() *uint256.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.shares.totalSupply.Clone()
}

func (p *Pair) BalanceOf(holder solana.PublicKey) *uint256.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.shares.balanceOf(holder).Clone()
}

func (p *Pair) Allowance(owner, spender solana.PublicKey) *uint256.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.shares.allowance(owner, spender).Clone()
}

func (p *Pair) Approve(ctx context.Context, owner, spender solana.PublicKey, amount *uint256.Int) error {
	if amount == nil {
		return ErrInvalidAmount
	}
	return domain.Atomically(ctx, p.journal, func(context.Context) error {
		p.approve(owner, spender, amount)
		return nil
	})
}

func (p *Pair) approve(owner, spender solana.PublicKey, amount *uint256.Int) {
	p.mu.Lock()
	bySpender, ok := p.shares.allowances[owner]
	if !ok {
		bySpender = make(map[solana.PublicKey]*uint256.Int)
		p.shares.allowances[owner] = bySpender
	}
	prev, had := bySpender[spender]
	bySpender[spender] = amount.Clone()
	p.mu.Unlock()

	p.journal.Record(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if had {
			bySpender[spender] = prev
		} else {
			delete(bySpender, spender)
		}
	})
}

func (p *Pair) Transfer(ctx context.Context, from, to solana.PublicKey, amount *uint256.Int) error {
	if amount == nil {
		return ErrInvalidAmount
	}
	return domain.Atomically(ctx, p.journal, func(context.Context) error {
		return p.moveShares(from, to, amount)
	})
}

// TransferFrom spends spender's share allowance over from. An all-ones allowance is
// never decremented.
func (p *Pair) TransferFrom(ctx context.Context, spender, from, to solana.PublicKey, amount *uint256.Int) error {
	if amount == nil {
		return ErrInvalidAmount
	}
	return domain.Atomically(ctx, p.journal, func(context.Context) error {
		allowed := p.Allowance(from, spender)
		if !allowed.Eq(maxAllowance) {
			if allowed.Lt(amount) {
				return fmt.Errorf("%w: %s allows %s to %s, needs %s",
					ErrInsufficientAllowance, from, allowed.Dec(), spender, amount.Dec())
			}
			p.approve(from, spender, new(uint256.Int).Sub(allowed, amount))
		}
		return p.moveShares(from, to, amount)
	})
}

var maxAllowance = new(uint256.Int).SetAllOne()

func (p *Pair) moveShares(from, to solana.PublicKey, amount *uint256.Int) error {
	bal := p.BalanceOf(from)
	if bal.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientShares, from, bal.Dec(), amount.Dec())
	}
	if from == to || amount.IsZero() {
		return nil
	}
	p.setShareBalance(from, new(uint256.Int).Sub(bal, amount))
	p.setShareBalance(to, new(uint256.Int).Add(p.BalanceOf(to), amount))
	return nil
}

func (p *Pair) mintShares(to solana.PublicKey, amount *uint256.Int) {
	p.setTotalSupply(new(uint256.Int).Add(p.TotalSupply(), amount))
	p.setShareBalance(to, new(uint256.Int).Add(p.BalanceOf(to), amount))
}

func (p *Pair) burnShares(from solana.PublicKey, amount *uint256.Int) error {
	bal := p.BalanceOf(from)
	if bal.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientShares, from, bal.Dec(), amount.Dec())
	}
	p.setShareBalance(from, new(uint256.Int).Sub(bal, amount))
	p.setTotalSupply(new(uint256.Int).Sub(p.TotalSupply(), amount))
	return nil
}

func (p *Pair) setShareBalance(holder solana.PublicKey, v *uint256.Int) {
	p.mu.Lock()
	prev, had := p.shares.balances[holder]
	if v.IsZero() {
		delete(p.shares.balances, holder)
	} else {
		p.shares.balances[holder] = v
	}
	p.mu.Unlock()

	p.journal.Record(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if had {
			p.shares.balances[holder] = prev
		} else {
			delete(p.shares.balances, holder)
		}
	})
}

func (p *Pair) setTotalSupply(v *uint256.Int) {
	p.mu.Lock()
	prev := p.shares.totalSupply
	p.shares.totalSupply = v
	p.mu.Unlock()

	p.journal.Record(func() {
		p.mu.Lock()
		p.shares.totalSupply = prev
		p.mu.Unlock()
	})
}
