package domain

import (
	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
)

// HopQuote is the pricing of one pair along a path.
type HopQuote struct {
	Pair           solana.PublicKey
	TokenIn        solana.PublicKey
	TokenOut       solana.PublicKey
	ReserveIn      *uint256.Int
	ReserveOut     *uint256.Int
	AmountIn       *uint256.Int
	AmountOut      *uint256.Int
	FeeAmount      *uint256.Int
	PriceImpactBps uint16
}

// MultiHopQuoteResult is the hop-by-hop evaluation of a path.
type MultiHopQuoteResult struct {
	Route          []solana.PublicKey
	Hops           []HopQuote
	Amounts        []*uint256.Int
	AmountIn       *uint256.Int
	AmountOut      *uint256.Int
	TotalFee       *uint256.Int
	PriceImpactBps uint16
	ExactIn        bool
}
