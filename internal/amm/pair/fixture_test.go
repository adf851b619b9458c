package pair

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/hxuan190/amm-engine/internal/amm/ledger"
	"github.com/hxuan190/amm-engine/internal/domain"
)

var ctx = context.Background()

var (
	registryKey = solana.PublicKey{0xf0}
	pairKey     = solana.PublicKey{0x50}
	tokenA      = solana.PublicKey{0x0a}
	tokenB      = solana.PublicKey{0x0b}
	alice       = solana.PublicKey{0x01}
	bob         = solana.PublicKey{0x02}
	feeTo       = solana.PublicKey{0x03}
)

type fixedFees struct{ to solana.PublicKey }

func (f *fixedFees) FeeRecipient() solana.PublicKey { return f.to }

type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) Emit(evt domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recorder) kinds() []domain.EventKind {
	out := make([]domain.EventKind, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.Kind())
	}
	return out
}

type fixture struct {
	ledger *ledger.Ledger
	pair   *Pair
	token0 *ledger.Token
	token1 *ledger.Token
	fees   *fixedFees
	events *recorder
	now    time.Time
}

func newFixture(t testing.TB) *fixture {
	t.Helper()
	f := &fixture{
		ledger: ledger.New(),
		fees:   &fixedFees{},
		events: &recorder{},
		now:    time.Unix(1_700_000_000, 0),
	}
	var err error
	f.token0, err = f.ledger.Register(tokenA, "A", 6)
	require.NoError(t, err)
	f.token1, err = f.ledger.Register(tokenB, "B", 6)
	require.NoError(t, err)

	supply := new(uint256.Int).Lsh(uint256.NewInt(1), 120)
	require.NoError(t, f.ledger.Mint(ctx, tokenA, alice, supply))
	require.NoError(t, f.ledger.Mint(ctx, tokenB, alice, supply))

	f.pair = New(Options{
		Address:  pairKey,
		Registry: registryKey,
		Policy:   DefaultPolicy(),
		Journal:  f.ledger,
		Tokens:   f.ledger,
		Fees:     f.fees,
		Events:   f.events,
		Now:      func() time.Time { return f.now },
	})
	require.NoError(t, f.pair.Initialize(registryKey, tokenA, tokenB))
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

// deposit moves tokens from alice into the pair without minting.
func (f *fixture) deposit(t testing.TB, amount0, amount1 uint64) {
	t.Helper()
	if amount0 > 0 {
		require.NoError(t, f.token0.Transfer(ctx, alice, pairKey, uint256.NewInt(amount0)))
	}
	if amount1 > 0 {
		require.NoError(t, f.token1.Transfer(ctx, alice, pairKey, uint256.NewInt(amount1)))
	}
}

func (f *fixture) addLiquidity(t testing.TB, amount0, amount1 uint64) *uint256.Int {
	t.Helper()
	f.deposit(t, amount0, amount1)
	liquidity, err := f.pair.Mint(ctx, alice, alice)
	require.NoError(t, err)
	return liquidity
}

func (f *fixture) reserves() (uint64, uint64) {
	r0, r1, _ := f.pair.GetReserves()
	return r0.Uint64(), r1.Uint64()
}

func (f *fixture) k() *uint256.Int {
	r0, r1, _ := f.pair.GetReserves()
	return new(uint256.Int).Mul(r0, r1)
}

// quoteOut is the fee-adjusted constant-product output for an exact input.
func quoteOut(in, reserveIn, reserveOut uint64) uint64 {
	inWithFee := new(uint256.Int).Mul(uint256.NewInt(in), uint256.NewInt(997))
	num := new(uint256.Int).Mul(inWithFee, uint256.NewInt(reserveOut))
	den := new(uint256.Int).Mul(uint256.NewInt(reserveIn), uint256.NewInt(1000))
	den.Add(den, inWithFee)
	return num.Div(num, den).Uint64()
}

// swap0For1 pays in token0 and takes the quoted token1 output.
func (f *fixture) swap0For1(t testing.TB, in uint64) uint64 {
	t.Helper()
	r0, r1 := f.reserves()
	out := quoteOut(in, r0, r1)
	f.deposit(t, in, 0)
	require.NoError(t, f.pair.Swap(ctx, alice, nil, uint256.NewInt(out), bob, nil, nil))
	return out
}

func (f *fixture) swap1For0(t testing.TB, in uint64) uint64 {
	t.Helper()
	r0, r1 := f.reserves()
	out := quoteOut(in, r1, r0)
	f.deposit(t, 0, in)
	require.NoError(t, f.pair.Swap(ctx, alice, uint256.NewInt(out), nil, bob, nil, nil))
	return out
}
