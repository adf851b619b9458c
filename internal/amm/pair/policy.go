package pair

// MinimumLiquidity shares are locked forever by the first deposit.
const MinimumLiquidity = 1000

// Swap fee is FeeNumerator/FeeDenominator of every input.
const (
	FeeNumerator   = 3
	FeeDenominator = 1000
)

// Policy holds the tunable abuse-resistance and oracle parameters of a pair.
type Policy struct {
	// MaxOracleElapsed caps the seconds credited to one accumulator update.
	MaxOracleElapsed uint32
	// MinOracleChangeBps is the relative reserve change the accumulators require.
	// Only a change strictly above it advances them. Zero accumulates on every update.
	MinOracleChangeBps uint64
	// MinSwapOutput is the dust floor: at least one output must reach it.
	MinSwapOutput uint64
	// MaxSwapOutputBps caps each output as a share of its reserve.
	MaxSwapOutputBps uint64
	// MaxSwapInputBps caps each inferred input as a share of its reserve.
	MaxSwapInputBps uint64
}

func DefaultPolicy() Policy {
	return Policy{
		MaxOracleElapsed:   3600,
		MinOracleChangeBps: 10,
		MinSwapOutput:      100,
		MaxSwapOutputBps:   5000,
		MaxSwapInputBps:    2000,
	}
}
