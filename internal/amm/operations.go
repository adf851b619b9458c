package amm

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"

	"github.com/hxuan190/amm-engine/internal/amm/pair"
	"github.com/hxuan190/amm-engine/internal/domain"
	"github.com/hxuan190/amm-engine/internal/metrics"
)

func (svc *Service) CreatePair(ctx context.Context, tokenA, tokenB solana.PublicKey) (*pair.Pair, error) {
	return exec(svc, "create_pair", func() (*pair.Pair, error) {
		return svc.registry.CreatePair(ctx, tokenA, tokenB)
	})
}

func (svc *Service) AddLiquidity(ctx context.Context, req *domain.AddLiquidityRequest) (*domain.LiquidityResult, error) {
	return exec(svc, "add_liquidity", func() (*domain.LiquidityResult, error) {
		return svc.router.AddLiquidity(ctx, req)
	})
}

func (svc *Service) AddLiquidityNative(ctx context.Context, req *domain.AddLiquidityNativeRequest) (*domain.LiquidityResult, error) {
	return exec(svc, "add_liquidity_native", func() (*domain.LiquidityResult, error) {
		return svc.router.AddLiquidityNative(ctx, req)
	})
}

func (svc *Service) RemoveLiquidity(ctx context.Context, req *domain.RemoveLiquidityRequest) (*domain.LiquidityResult, error) {
	return exec(svc, "remove_liquidity", func() (*domain.LiquidityResult, error) {
		return svc.router.RemoveLiquidity(ctx, req)
	})
}

func (svc *Service) RemoveLiquidityNative(ctx context.Context, req *domain.RemoveLiquidityNativeRequest) (*domain.LiquidityResult, error) {
	return exec(svc, "remove_liquidity_native", func() (*domain.LiquidityResult, error) {
		return svc.router.RemoveLiquidityNative(ctx, req)
	})
}

func (svc *Service) SwapExactTokensForTokens(ctx context.Context, req *domain.SwapRequest) ([]*uint256.Int, error) {
	return exec(svc, "swap_exact_tokens_for_tokens", func() ([]*uint256.Int, error) {
		return svc.router.SwapExactTokensForTokens(ctx, req)
	})
}

func (svc *Service) SwapTokensForExactTokens(ctx context.Context, req *domain.SwapRequest) ([]*uint256.Int, error) {
	return exec(svc, "swap_tokens_for_exact_tokens", func() ([]*uint256.Int, error) {
		return svc.router.SwapTokensForExactTokens(ctx, req)
	})
}

func (svc *Service) SwapExactNativeForTokens(ctx context.Context, req *domain.SwapRequest) ([]*uint256.Int, error) {
	return exec(svc, "swap_exact_native_for_tokens", func() ([]*uint256.Int, error) {
		return svc.router.SwapExactNativeForTokens(ctx, req)
	})
}

func (svc *Service) SwapTokensForExactNative(ctx context.Context, req *domain.SwapRequest) ([]*uint256.Int, error) {
	return exec(svc, "swap_tokens_for_exact_native", func() ([]*uint256.Int, error) {
		return svc.router.SwapTokensForExactNative(ctx, req)
	})
}

func (svc *Service) SwapExactTokensForNative(ctx context.Context, req *domain.SwapRequest) ([]*uint256.Int, error) {
	return exec(svc, "swap_exact_tokens_for_native", func() ([]*uint256.Int, error) {
		return svc.router.SwapExactTokensForNative(ctx, req)
	})
}

func (svc *Service) SwapNativeForExactTokens(ctx context.Context, req *domain.SwapRequest) ([]*uint256.Int, error) {
	return exec(svc, "swap_native_for_exact_tokens", func() ([]*uint256.Int, error) {
		return svc.router.SwapNativeForExactTokens(ctx, req)
	})
}

func (svc *Service) SwapExactTokensForTokensSupportingFeeOnTransfer(ctx context.Context, req *domain.SwapRequest) error {
	_, err := exec(svc, "swap_exact_tokens_for_tokens_fot", func() (struct{}, error) {
		return struct{}{}, svc.router.SwapExactTokensForTokensSupportingFeeOnTransfer(ctx, req)
	})
	return err
}

func (svc *Service) SetFeeRecipient(caller, recipient solana.PublicKey) error {
	_, err := exec(svc, "set_fee_recipient", func() (struct{}, error) {
		return struct{}{}, svc.registry.SetFeeRecipient(caller, recipient)
	})
	if err == nil {
		svc.markStateDirty()
	}
	return err
}

func (svc *Service) SetFeeController(caller, controller solana.PublicKey) error {
	_, err := exec(svc, "set_fee_controller", func() (struct{}, error) {
		return struct{}{}, svc.registry.SetFeeController(caller, controller)
	})
	if err == nil {
		svc.markStateDirty()
	}
	return err
}

func (svc *Service) Pause(caller solana.PublicKey) error {
	_, err := exec(svc, "pause", func() (struct{}, error) {
		return struct{}{}, svc.registry.Pause(caller)
	})
	if err == nil {
		metrics.RegistryPaused.Set(1)
		svc.markStateDirty()
	}
	return err
}

func (svc *Service) Unpause(caller solana.PublicKey) error {
	_, err := exec(svc, "unpause", func() (struct{}, error) {
		return struct{}{}, svc.registry.Unpause(caller)
	})
	if err == nil {
		metrics.RegistryPaused.Set(0)
		svc.markStateDirty()
	}
	return err
}

// Quote prices a path without touching state.
func (svc *Service) Quote(path []solana.PublicKey, amount *uint256.Int, exactIn bool) (*domain.MultiHopQuoteResult, error) {
	return svc.router.QuotePath(path, amount, exactIn)
}
