package ledger

import (
	"fmt"
	"sort"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
)

// AssetState is the persisted form of one asset.
type AssetState struct {
	ID             solana.PublicKey
	Symbol         string
	Decimals       uint8
	TransferFeeBps uint16
	Wrapped        bool
	Supply         *uint256.Int
	Balances       map[solana.PublicKey]*uint256.Int
	Allowances     map[solana.PublicKey]map[solana.PublicKey]*uint256.Int
}

type State struct {
	Assets []AssetState
	Native map[solana.PublicKey]*uint256.Int
}

// State copies out every balance. Callers must not hold an open snapshot.
func (l *Ledger) State() *State {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := &State{Native: copyBalances(l.native)}
	for _, id := range l.sortedIDsLocked() {
		a := l.assets[id]
		allowances := make(map[solana.PublicKey]map[solana.PublicKey]*uint256.Int, len(a.allowances))
		for owner, bySpender := range a.allowances {
			allowances[owner] = copyBalances(bySpender)
		}
		st.Assets = append(st.Assets, AssetState{
			ID:             a.id,
			Symbol:         a.symbol,
			Decimals:       a.decimals,
			TransferFeeBps: a.transferFeeBps,
			Wrapped:        a.wrapped,
			Supply:         a.supply.Clone(),
			Balances:       copyBalances(a.balances),
			Allowances:     allowances,
		})
	}
	return st
}

// Restore loads a persisted state into an empty ledger.
func (l *Ledger) Restore(st *State) error {
	for _, as := range st.Assets {
		var (
			t   *Token
			err error
		)
		if as.Wrapped {
			var w *WrappedNative
			w, err = l.RegisterWrappedNative(as.ID, as.Symbol, as.Decimals)
			if w != nil {
				t = &w.Token
			}
		} else {
			t, err = l.register(as.ID, as.Symbol, as.Decimals, as.TransferFeeBps, false)
		}
		if err != nil {
			return fmt.Errorf("restore asset %s: %w", as.ID, err)
		}

		l.mu.Lock()
		t.a.supply = as.Supply.Clone()
		t.a.balances = copyBalances(as.Balances)
		for owner, bySpender := range as.Allowances {
			t.a.allowances[owner] = copyBalances(bySpender)
		}
		l.mu.Unlock()
	}

	l.mu.Lock()
	l.native = copyBalances(st.Native)
	l.mu.Unlock()
	return nil
}

func (l *Ledger) sortedIDsLocked() []solana.PublicKey {
	ids := make([]solana.PublicKey, 0, len(l.assets))
	for id := range l.assets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return lessKey(ids[i], ids[j]) })
	return ids
}

func copyBalances(in map[solana.PublicKey]*uint256.Int) map[solana.PublicKey]*uint256.Int {
	out := make(map[solana.PublicKey]*uint256.Int, len(in))
	for k, v := range in {
		if v != nil {
			out[k] = v.Clone()
		}
	}
	return out
}
