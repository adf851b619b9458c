package http

import (
	"errors"

	"github.com/hxuan190/amm-engine/internal/amm"
	"github.com/hxuan190/amm-engine/internal/amm/oracle"
	"github.com/hxuan190/amm-engine/internal/amm/registry"
	"github.com/hxuan190/amm-engine/internal/amm/router"
	"github.com/hxuan190/amm-engine/internal/common"
)

// toHttpError maps engine errors onto API status codes.
func toHttpError(err error) *common.HttpError {
	switch {
	case errors.Is(err, registry.ErrPairNotFound),
		errors.Is(err, router.ErrPairNotFound),
		errors.Is(err, amm.ErrNoWindow),
		errors.Is(err, oracle.ErrNoObservations):
		return common.HTTPErrorNotFound(err.Error())
	case errors.Is(err, router.ErrInvalidPath),
		errors.Is(err, router.ErrInsufficientAmount),
		errors.Is(err, router.ErrInsufficientInputAmount),
		errors.Is(err, router.ErrInsufficientOutputAmount),
		errors.Is(err, router.ErrInsufficientLiquidity),
		errors.Is(err, router.ErrOverflow),
		errors.Is(err, oracle.ErrWindowTooShort):
		return common.HTTPErrorBadRequest(err.Error())
	case errors.Is(err, oracle.ErrEmptyReserves):
		return common.HTTPErrorEmptyReserves(err.Error())
	default:
		return common.HTTPErrorInternalError(err.Error())
	}
}
