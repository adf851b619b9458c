package ledger

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"

	"github.com/hxuan190/amm-engine/internal/domain"
)

// WrappedNative is the fungible wrapper of the native asset. Native units backing the
// wrapper are held under the wrapper's own identifier.
type WrappedNative struct {
	Token
}

var _ domain.WrappedNative = (*WrappedNative)(nil)

// RegisterWrappedNative adds the wrapper asset. Only one may exist per ledger.
func (l *Ledger) RegisterWrappedNative(id solana.PublicKey, symbol string, decimals uint8) (*WrappedNative, error) {
	if l.wrapped != nil {
		return nil, fmt.Errorf("%w: wrapped native %s", ErrTokenExists, l.wrapped.ID())
	}
	t, err := l.register(id, symbol, decimals, 0, true)
	if err != nil {
		return nil, err
	}
	l.wrapped = &WrappedNative{Token: *t}
	return l.wrapped, nil
}

// WrappedNative returns the registered wrapper.
func (l *Ledger) WrappedNative() (*WrappedNative, error) {
	if l.wrapped == nil {
		return nil, ErrNoWrappedNative
	}
	return l.wrapped, nil
}

func (w *WrappedNative) Deposit(ctx context.Context, from, to solana.PublicKey, amount *uint256.Int) error {
	return w.l.apply(ctx, func() error {
		if err := w.l.sendNativeLocked(from, w.a.id, amount); err != nil {
			return err
		}
		return w.l.mintLocked(w.a, to, amount)
	})
}

func (w *WrappedNative) Withdraw(ctx context.Context, from, to solana.PublicKey, amount *uint256.Int) error {
	if amount == nil {
		return ErrInvalidAmount
	}
	return w.l.apply(ctx, func() error {
		if err := w.l.burnLocked(w.a, from, amount); err != nil {
			return err
		}
		return w.l.sendNativeLocked(w.a.id, to, amount)
	})
}
