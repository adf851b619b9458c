package pair

import (
	"github.com/holiman/uint256"

	"github.com/hxuan190/amm-engine/internal/amm/mathutil"
	"github.com/hxuan190/amm-engine/internal/domain"
)

// update stores new reserves and, on the first call per second, advances the price
// accumulators with the price that held since the previous update.
func (p *Pair) update(balance0, balance1, reserve0, reserve1 *uint256.Int) error {
	if balance0.Gt(mathutil.MaxUint112) || balance1.Gt(mathutil.MaxUint112) {
		return ErrOverflow
	}

	blockTimestamp := uint32(p.now().Unix())

	p.mu.RLock()
	last := p.blockTimestampLast
	cum0 := p.price0CumulativeLast
	cum1 := p.price1CumulativeLast
	p.mu.RUnlock()

	elapsed := blockTimestamp - last // wraps
	if elapsed > p.policy.MaxOracleElapsed {
		elapsed = p.policy.MaxOracleElapsed
	}

	if elapsed > 0 && !reserve0.IsZero() && !reserve1.IsZero() &&
		(p.significantChange(reserve0, balance0) || p.significantChange(reserve1, balance1)) {
		price0, err := mathutil.Fraction(reserve1, reserve0)
		if err != nil {
			return err
		}
		price1, err := mathutil.Fraction(reserve0, reserve1)
		if err != nil {
			return err
		}
		cum0 = new(uint256.Int).Add(cum0, price0.MulElapsed(elapsed))
		cum1 = new(uint256.Int).Add(cum1, price1.MulElapsed(elapsed))
	}

	p.setOracleState(balance0.Clone(), balance1.Clone(), blockTimestamp, cum0, cum1)
	p.emit(&domain.SyncEvent{Pair: p.address, Reserve0: balance0.Clone(), Reserve1: balance1.Clone()})
	return nil
}

// significantChange reports whether balance moved strictly more than
// MinOracleChangeBps away from reserve. A change of exactly the threshold does not
// count.
func (p *Pair) significantChange(reserve, balance *uint256.Int) bool {
	if p.policy.MinOracleChangeBps == 0 {
		return true
	}
	change := new(uint256.Int)
	if balance.Gt(reserve) {
		change.Sub(balance, reserve)
	} else {
		change.Sub(reserve, balance)
	}
	// change/reserve > bps/10000, reserves are below 2^112 so neither side overflows
	lhs := change.Mul(change, mathutil.BpsDenom)
	rhs := new(uint256.Int).Mul(reserve, uint256.NewInt(p.policy.MinOracleChangeBps))
	return lhs.Gt(rhs)
}

func (p *Pair) setOracleState(reserve0, reserve1 *uint256.Int, ts uint32, cum0, cum1 *uint256.Int) {
	p.mu.Lock()
	prevR0, prevR1, prevTs := p.reserve0, p.reserve1, p.blockTimestampLast
	prevC0, prevC1 := p.price0CumulativeLast, p.price1CumulativeLast
	p.reserve0, p.reserve1, p.blockTimestampLast = reserve0, reserve1, ts
	p.price0CumulativeLast, p.price1CumulativeLast = cum0, cum1
	p.mu.Unlock()

	p.journal.Record(func() {
		p.mu.Lock()
		p.reserve0, p.reserve1, p.blockTimestampLast = prevR0, prevR1, prevTs
		p.price0CumulativeLast, p.price1CumulativeLast = prevC0, prevC1
		p.mu.Unlock()
	})
}
