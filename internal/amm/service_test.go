package amm

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/hxuan190/amm-engine/internal/adapters/persistence"
	"github.com/hxuan190/amm-engine/internal/amm/ledger"
	"github.com/hxuan190/amm-engine/internal/amm/oracle"
	"github.com/hxuan190/amm-engine/internal/amm/pair"
	"github.com/hxuan190/amm-engine/internal/amm/registry"
	"github.com/hxuan190/amm-engine/internal/common"
	"github.com/hxuan190/amm-engine/internal/config"
	"github.com/hxuan190/amm-engine/internal/domain"
)

var ctx = context.Background()

var (
	tokA  = solana.PublicKey{0x0a}
	tokB  = solana.PublicKey{0x0b}
	alice = solana.PublicKey{0x01}
	bob   = solana.PublicKey{0x02}
)

func testConfig() *config.AMMConfig {
	return &config.AMMConfig{
		NativeSymbol:        "WNAT",
		NativeDecimals:      9,
		PersistInterval:     30,
		ObservationInterval: 60,
		ObservationCapacity: 8,
		TWAPMaxElapsed:      3600,
		TWAPMinChangeBps:    10,
		MinSwapOutput:       100,
		MaxSwapOutputBps:    5000,
		MaxSwapInputBps:     2000,
	}
}

func newService(t *testing.T, storage *persistence.Storage) *Service {
	t.Helper()
	svc, err := NewService(testConfig(), storage)
	require.NoError(t, err)
	return svc
}

// fund registers the test tokens on a fresh ledger and lets the router spend alice's balance.
func fund(t *testing.T, svc *Service) {
	t.Helper()
	supply := new(uint256.Int).Lsh(uint256.NewInt(1), 80)
	for _, id := range []solana.PublicKey{tokA, tokB} {
		tok, err := svc.Ledger().Register(id, id.String()[:4], 6)
		require.NoError(t, err)
		require.NoError(t, svc.Ledger().Mint(ctx, id, alice, supply))
		require.NoError(t, tok.Approve(ctx, alice, common.RouterID, ledger.MaxAllowance()))
	}
}

func addLiquidity(t *testing.T, svc *Service, amountA, amountB uint64) *domain.LiquidityResult {
	t.Helper()
	res, err := svc.AddLiquidity(ctx, &domain.AddLiquidityRequest{
		Caller:         alice,
		TokenA:         tokA,
		TokenB:         tokB,
		AmountADesired: uint256.NewInt(amountA),
		AmountBDesired: uint256.NewInt(amountB),
		To:             alice,
		Deadline:       time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	return res
}

func swap(svc *Service, amountIn uint64) ([]*uint256.Int, error) {
	return svc.SwapExactTokensForTokens(ctx, &domain.SwapRequest{
		Caller:   alice,
		Amount:   uint256.NewInt(amountIn),
		Limit:    uint256.NewInt(0),
		Path:     []solana.PublicKey{tokA, tokB},
		To:       bob,
		Deadline: time.Now().Add(time.Hour),
	})
}

func TestInitInMemory(t *testing.T) {
	svc := newService(t, nil)

	wrapped, err := svc.Ledger().WrappedNative()
	require.NoError(t, err)
	require.Equal(t, common.WrappedNativeID, wrapped.ID())
	require.Equal(t, "WNAT", wrapped.Symbol())

	require.Equal(t, common.DeriveIdentity(common.FeeControllerSeed), svc.Registry().FeeController())
	require.True(t, svc.Registry().FeeRecipient().IsZero())
	require.NoError(t, svc.Flush(), "flush without storage is a no-op")

	pairs, events := svc.GetStats()
	require.Zero(t, pairs)
	require.Zero(t, events)
}

func TestInitRejectsBadKeys(t *testing.T) {
	cfg := testConfig()
	cfg.FeeController = "not-a-key"
	_, err := NewService(cfg, nil)
	require.Error(t, err)
}

func TestLiquidityAndSwap(t *testing.T) {
	svc := newService(t, nil)
	fund(t, svc)

	res := addLiquidity(t, svc, 1_000_000, 4_000_000)
	require.Equal(t, uint64(2_000_000-pair.MinimumLiquidity), res.Liquidity.Uint64())

	quote, err := svc.Quote([]solana.PublicKey{tokA, tokB}, uint256.NewInt(10_000), true)
	require.NoError(t, err)

	amounts, err := swap(svc, 10_000)
	require.NoError(t, err)
	require.Equal(t, quote.AmountOut, amounts[1])

	tok, err := svc.Ledger().Token(tokB)
	require.NoError(t, err)
	require.Equal(t, amounts[1], tok.BalanceOf(bob))

	pairs, events := svc.GetStats()
	require.Equal(t, 1, pairs)
	// created, sync and mint, then sync and swap
	require.Equal(t, uint64(5), events)
}

func TestRejectedOperationLeavesStateUntouched(t *testing.T) {
	svc := newService(t, nil)
	fund(t, svc)
	addLiquidity(t, svc, 1_000_000, 1_000_000)
	p, err := svc.Registry().GetPair(tokA, tokB)
	require.NoError(t, err)
	before := p.State()

	_, eventsBefore := svc.GetStats()

	// more than a fifth of the input reserve
	_, err = swap(svc, 300_000)
	require.ErrorIs(t, err, pair.ErrPriceImpactTooHigh)
	require.Equal(t, before, p.State())
	_, events := svc.GetStats()
	require.Equal(t, eventsBefore, events, "a rejected swap emits nothing")
}

func TestRejectedPairCreationIsNotCounted(t *testing.T) {
	svc := newService(t, nil)
	fund(t, svc)

	// the first deposit is below the locked minimum, so the new pair is rolled back
	_, err := svc.AddLiquidity(ctx, &domain.AddLiquidityRequest{
		Caller:         alice,
		TokenA:         tokA,
		TokenB:         tokB,
		AmountADesired: uint256.NewInt(1_000),
		AmountBDesired: uint256.NewInt(1_000),
		To:             alice,
		Deadline:       time.Now().Add(time.Hour),
	})
	require.ErrorIs(t, err, pair.ErrInsufficientLiquidityMinted)

	pairs, events := svc.GetStats()
	require.Zero(t, pairs)
	require.Zero(t, events)
}

func TestAdminOperations(t *testing.T) {
	svc := newService(t, nil)
	fund(t, svc)
	controller := common.DeriveIdentity(common.FeeControllerSeed)
	pauser := common.DeriveIdentity(common.PauserSeed)

	require.ErrorIs(t, svc.SetFeeRecipient(alice, bob), registry.ErrForbidden)
	require.NoError(t, svc.SetFeeRecipient(controller, bob))
	require.Equal(t, bob, svc.Registry().FeeRecipient())

	require.ErrorIs(t, svc.Pause(alice), registry.ErrForbidden)
	require.NoError(t, svc.Pause(pauser))
	_, err := svc.CreatePair(ctx, tokA, tokB)
	require.ErrorIs(t, err, registry.ErrPaused)

	require.NoError(t, svc.Unpause(pauser))
	_, err = svc.CreatePair(ctx, tokA, tokB)
	require.NoError(t, err)

	require.NoError(t, svc.SetFeeController(controller, alice))
	require.Equal(t, alice, svc.Registry().FeeController())
}

func TestObserve(t *testing.T) {
	svc := newService(t, nil)
	fund(t, svc)
	_, err := svc.CreatePair(ctx, tokA, tokB)
	require.NoError(t, err)
	p, err := svc.Registry().GetPair(tokA, tokB)
	require.NoError(t, err)

	require.Zero(t, svc.Observe(time.Now()), "empty pairs are not sampled")
	_, err = svc.Window(p.Address())
	require.ErrorIs(t, err, ErrNoWindow)
	_, err = svc.Window(bob)
	require.ErrorIs(t, err, registry.ErrPairNotFound)

	addLiquidity(t, svc, 1_000_000, 4_000_000)
	start := time.Now()
	require.Equal(t, 1, svc.Observe(start.Add(time.Minute)))
	require.Zero(t, svc.Observe(start.Add(time.Minute)), "same second is recorded once")
	require.Equal(t, 1, svc.Observe(start.Add(2*time.Minute)))

	w, err := svc.Window(p.Address())
	require.NoError(t, err)
	require.Equal(t, 2, w.Len())

	price0, price1, err := oracle.Consult(w, 60)
	require.NoError(t, err)
	require.Equal(t, "4", price0.Decimal().String())
	require.Equal(t, "0.25", price1.Decimal().String())
}

func TestFlushAndRestore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "amm.db")
	storage, err := persistence.NewStorage(path)
	require.NoError(t, err)

	svc := newService(t, storage)
	fund(t, svc)
	addLiquidity(t, svc, 1_000_000, 4_000_000)
	_, err = swap(svc, 10_000)
	require.NoError(t, err)
	require.NoError(t, svc.SetFeeRecipient(common.DeriveIdentity(common.FeeControllerSeed), bob))
	require.Equal(t, 1, svc.Observe(time.Now().Add(time.Minute)))

	p, err := svc.Registry().GetPair(tokA, tokB)
	require.NoError(t, err)
	wantPair := p.State()
	wantLedger := svc.Ledger().State()
	require.NoError(t, svc.Stop())

	storage, err = persistence.NewStorage(path)
	require.NoError(t, err)
	restored := newService(t, storage)
	t.Cleanup(func() { _ = restored.Stop() })

	require.Equal(t, 1, restored.Registry().AllPairsLength())
	require.Equal(t, bob, restored.Registry().FeeRecipient())
	rp, err := restored.Registry().GetPair(tokB, tokA)
	require.NoError(t, err)
	require.Equal(t, wantPair, rp.State())
	require.Equal(t, wantLedger, restored.Ledger().State())

	w, err := restored.Window(rp.Address())
	require.NoError(t, err)
	require.Equal(t, 1, w.Len())

	// the restored engine keeps trading
	_, err = swap(restored, 10_000)
	require.NoError(t, err)
}

func TestConcurrentSwaps(t *testing.T) {
	svc := newService(t, nil)
	fund(t, svc)
	addLiquidity(t, svc, 1<<40, 1<<40)
	p, err := svc.Registry().GetPair(tokA, tokB)
	require.NoError(t, err)
	r0, r1, _ := p.GetReserves()
	k := new(uint256.Int).Mul(r0, r1)

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := swap(svc, 1_000_000); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	r0, r1, _ = p.GetReserves()
	require.Equal(t, uint64(1<<40+32*1_000_000), r0.Uint64())
	require.False(t, new(uint256.Int).Mul(r0, r1).Lt(k))
}
