// Package oracle turns the cumulative price accumulators of a pair into
// time-weighted average prices.
package oracle

import (
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"github.com/hxuan190/amm-engine/internal/amm/mathutil"
	"github.com/hxuan190/amm-engine/internal/amm/pair"
	"github.com/hxuan190/amm-engine/internal/domain"
)

var (
	ErrNoElapsed      = errors.New("observations share a timestamp")
	ErrNoObservations = errors.New("no observations")
	ErrEmptyReserves  = errors.New("pair has no reserves")
	ErrWindowTooShort = errors.New("observation window too short")
)

// CurrentCumulativePrices returns the accumulators as they would read if the pair
// updated at now with unchanged reserves. The elapsed time is capped the way the
// pair caps it.
func CurrentCumulativePrices(p *pair.Pair, now time.Time) (domain.Observation, error) {
	snap := p.Snapshot()
	ts := uint32(now.Unix())
	obs := domain.Observation{
		Timestamp:        ts,
		Price0Cumulative: snap.Price0CumulativeLast,
		Price1Cumulative: snap.Price1CumulativeLast,
	}
	if snap.BlockTimestampLast == ts {
		return obs, nil
	}
	if snap.Reserve0.IsZero() || snap.Reserve1.IsZero() {
		return obs, ErrEmptyReserves
	}

	elapsed := ts - snap.BlockTimestampLast // wraps
	if limit := p.Policy().MaxOracleElapsed; elapsed > limit {
		elapsed = limit
	}
	price0, err := mathutil.Fraction(snap.Reserve1, snap.Reserve0)
	if err != nil {
		return obs, err
	}
	price1, err := mathutil.Fraction(snap.Reserve0, snap.Reserve1)
	if err != nil {
		return obs, err
	}
	obs.Price0Cumulative = new(uint256.Int).Add(obs.Price0Cumulative, price0.MulElapsed(elapsed))
	obs.Price1Cumulative = new(uint256.Int).Add(obs.Price1Cumulative, price1.MulElapsed(elapsed))
	return obs, nil
}

// Average returns the time-weighted prices between two observations of the same pair.
// Both the timestamps and the accumulators are allowed to have wrapped in between.
func Average(older, newer domain.Observation) (price0, price1 mathutil.UQ112x112, err error) {
	elapsed := newer.Timestamp - older.Timestamp
	if elapsed == 0 {
		return price0, price1, ErrNoElapsed
	}
	span := uint256.NewInt(uint64(elapsed))
	delta0 := new(uint256.Int).Sub(mathutil.OrZero(newer.Price0Cumulative), mathutil.OrZero(older.Price0Cumulative))
	delta1 := new(uint256.Int).Sub(mathutil.OrZero(newer.Price1Cumulative), mathutil.OrZero(older.Price1Cumulative))
	price0 = mathutil.FromRaw(delta0.Div(delta0, span))
	price1 = mathutil.FromRaw(delta1.Div(delta1, span))
	return price0, price1, nil
}

// Consult averages the observations spanning at least period seconds back from the
// newest one. When the window is shorter than period it fails with ErrWindowTooShort.
func Consult(w *Window, period uint32) (price0, price1 mathutil.UQ112x112, err error) {
	observations := w.All()
	if len(observations) < 2 {
		return price0, price1, fmt.Errorf("%w: %d stored", ErrNoObservations, len(observations))
	}
	newest := observations[len(observations)-1]
	for i := len(observations) - 2; i >= 0; i-- {
		if newest.Timestamp-observations[i].Timestamp >= period {
			return Average(observations[i], newest)
		}
	}
	return price0, price1, fmt.Errorf("%w: oldest observation is %ds old, need %ds",
		ErrWindowTooShort, newest.Timestamp-observations[0].Timestamp, period)
}
