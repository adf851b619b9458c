package oracle

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/hxuan190/amm-engine/internal/amm/ledger"
	"github.com/hxuan190/amm-engine/internal/amm/mathutil"
	"github.com/hxuan190/amm-engine/internal/amm/pair"
	"github.com/hxuan190/amm-engine/internal/domain"
)

func obs(ts uint32, cum0, cum1 uint64) domain.Observation {
	return domain.Observation{
		Timestamp:        ts,
		Price0Cumulative: new(uint256.Int).Lsh(uint256.NewInt(cum0), 112),
		Price1Cumulative: new(uint256.Int).Lsh(uint256.NewInt(cum1), 112),
	}
}

func timestamps(w *Window) []uint32 {
	var out []uint32
	for _, o := range w.All() {
		out = append(out, o.Timestamp)
	}
	return out
}

func TestWindowEvictsOldest(t *testing.T) {
	w := NewWindow(3)
	require.Equal(t, 3, w.Capacity())
	_, ok := w.Latest()
	require.False(t, ok)

	for ts := uint32(10); ts <= 50; ts += 10 {
		require.True(t, w.Push(obs(ts, 0, 0)))
	}
	require.Equal(t, 3, w.Len())
	require.Equal(t, []uint32{30, 40, 50}, timestamps(w))

	latest, ok := w.Latest()
	require.True(t, ok)
	require.Equal(t, uint32(50), latest.Timestamp)
}

func TestWindowRejectsStaleObservations(t *testing.T) {
	w := NewWindow(4)
	require.True(t, w.Push(obs(100, 0, 0)))
	require.False(t, w.Push(obs(100, 1, 1)), "same timestamp")
	require.False(t, w.Push(obs(99, 1, 1)), "older timestamp")
	require.Equal(t, 1, w.Len())
}

func TestWindowAcceptsWrappedTimestamps(t *testing.T) {
	w := NewWindow(4)
	require.True(t, w.Push(obs(math.MaxUint32-5, 0, 0)))
	require.True(t, w.Push(obs(4, 10, 10)))
	require.Equal(t, []uint32{math.MaxUint32 - 5, 4}, timestamps(w))
}

func TestWindowMinimumCapacity(t *testing.T) {
	require.Equal(t, 2, NewWindow(0).Capacity())
}

func TestAverage(t *testing.T) {
	tests := []struct {
		name         string
		older, newer domain.Observation
		want0, want1 string
		err          error
	}{
		{"constant price", obs(0, 0, 0), obs(100, 200, 50), "2", "0.5", nil},
		{"offset start", obs(1_000, 500, 500), obs(1_010, 540, 505), "4", "0.5", nil},
		{"wrapped timestamp", obs(math.MaxUint32-9, 0, 0), obs(10, 60, 20), "3", "1", nil},
		{"no elapsed time", obs(5, 0, 0), obs(5, 10, 10), "", "", ErrNoElapsed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p0, p1, err := Average(tt.older, tt.newer)
			require.ErrorIs(t, err, tt.err)
			if tt.err != nil {
				return
			}
			if got := p0.Decimal().String(); got != tt.want0 {
				t.Errorf("price0 = %s, want %s", got, tt.want0)
			}
			if got := p1.Decimal().String(); got != tt.want1 {
				t.Errorf("price1 = %s, want %s", got, tt.want1)
			}
		})
	}
}

func TestAverageAccumulatorWrap(t *testing.T) {
	maxU := new(uint256.Int).SetAllOne()
	older := domain.Observation{Timestamp: 0, Price0Cumulative: maxU, Price1Cumulative: maxU}
	// 2^112 * 10 past the wrap point
	delta := new(uint256.Int).Lsh(uint256.NewInt(10), 112)
	newer := domain.Observation{
		Timestamp:        10,
		Price0Cumulative: new(uint256.Int).Sub(delta, mathutil.One),
		Price1Cumulative: new(uint256.Int).Sub(delta, mathutil.One),
	}
	p0, _, err := Average(older, newer)
	require.NoError(t, err)
	require.True(t, p0.Decode().Eq(mathutil.One))
}

func TestConsult(t *testing.T) {
	w := NewWindow(8)
	_, _, err := Consult(w, 60)
	require.ErrorIs(t, err, ErrNoObservations)

	// price0 is 2 for the first 60 seconds, then 4
	w.Push(obs(0, 0, 0))
	w.Push(obs(30, 60, 15))
	w.Push(obs(60, 120, 30))
	w.Push(obs(90, 240, 37))

	p0, _, err := Consult(w, 30)
	require.NoError(t, err)
	require.Equal(t, "4", p0.Decimal().String())

	p0, _, err = Consult(w, 90)
	require.NoError(t, err)
	want := new(uint256.Int).Lsh(uint256.NewInt(240), 112)
	require.True(t, p0.Raw().Eq(want.Div(want, uint256.NewInt(90))))

	_, _, err = Consult(w, 91)
	require.ErrorIs(t, err, ErrWindowTooShort)
}

func newPair(t *testing.T, now *time.Time) (*pair.Pair, *ledger.Ledger) {
	t.Helper()
	registryKey := solana.PublicKey{0xf0}
	pairKey := solana.PublicKey{0x50}
	l := ledger.New()
	for _, id := range []solana.PublicKey{{0x0a}, {0x0b}} {
		_, err := l.Register(id, "T", 6)
		require.NoError(t, err)
	}
	p := pair.New(pair.Options{
		Address:  pairKey,
		Registry: registryKey,
		Policy:   pair.DefaultPolicy(),
		Journal:  l,
		Tokens:   l,
		Now:      func() time.Time { return *now },
	})
	require.NoError(t, p.Initialize(registryKey, solana.PublicKey{0x0a}, solana.PublicKey{0x0b}))
	return p, l
}

func TestCurrentCumulativePrices(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	p, l := newPair(t, &now)

	_, err := CurrentCumulativePrices(p, now.Add(time.Second))
	require.ErrorIs(t, err, ErrEmptyReserves)

	ctx := context.Background()
	owner := solana.PublicKey{0x01}
	require.NoError(t, l.Mint(ctx, solana.PublicKey{0x0a}, p.Address(), uint256.NewInt(1_000_000)))
	require.NoError(t, l.Mint(ctx, solana.PublicKey{0x0b}, p.Address(), uint256.NewInt(4_000_000)))
	_, err = p.Mint(ctx, owner, owner)
	require.NoError(t, err)

	same, err := CurrentCumulativePrices(p, now)
	require.NoError(t, err)
	require.True(t, same.Price0Cumulative.IsZero())

	later, err := CurrentCumulativePrices(p, now.Add(100*time.Second))
	require.NoError(t, err)
	require.Equal(t, uint32(now.Unix()+100), later.Timestamp)

	p0, p1, err := Average(same, later)
	require.NoError(t, err)
	require.Equal(t, "4", p0.Decimal().String())
	require.Equal(t, "0.25", p1.Decimal().String())

	// the counterfactual reading is capped like the pair's own accumulator
	far, err := CurrentCumulativePrices(p, now.Add(3*time.Hour))
	require.NoError(t, err)
	want := new(uint256.Int).Lsh(uint256.NewInt(4*3600), 112)
	require.True(t, far.Price0Cumulative.Eq(want))
}

func TestWindowsGetOrCreate(t *testing.T) {
	s := NewWindows(4)
	a, b := solana.PublicKey{0x01}, solana.PublicKey{0x11}
	_, ok := s.Get(a)
	require.False(t, ok)

	w := s.GetOrCreate(a)
	require.Same(t, w, s.GetOrCreate(a))
	require.Equal(t, 4, w.Capacity())

	// both keys land in the same shard
	require.NotSame(t, w, s.GetOrCreate(b))
	require.Equal(t, 2, s.Len())
}
