package mathutil

import "github.com/holiman/uint256"

// Sqrt returns floor(sqrt(y)).
//
// Newton iteration seeded with 2^ceil(bitlen/2), which is never below the root,
// so the sequence decreases monotonically until it stops improving.
func Sqrt(y *uint256.Int) *uint256.Int {
	z := new(uint256.Int)
	if y.IsZero() {
		return z
	}
	if !y.Gt(Three) {
		return z.SetOne()
	}

	z.Lsh(One, uint((y.BitLen()+1)/2))
	x := new(uint256.Int)
	for {
		// x = (z + y/z) / 2
		x.Div(y, z)
		x.Add(x, z)
		x.Rsh(x, 1)
		if !x.Lt(z) {
			return z
		}
		z.Set(x)
	}
}
