package domain

import (
	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
)

// PairSnapshot is the read-only view monitoring collaborators poll.
type PairSnapshot struct {
	Address              solana.PublicKey
	Token0               solana.PublicKey
	Token1               solana.PublicKey
	Reserve0             *uint256.Int
	Reserve1             *uint256.Int
	BlockTimestampLast   uint32
	Price0CumulativeLast *uint256.Int
	Price1CumulativeLast *uint256.Int
	KLast                *uint256.Int
	TotalSupply          *uint256.Int
}

// PairState is the full persisted state of a pair, share ledger included.
type PairState struct {
	PairSnapshot
	Balances   map[solana.PublicKey]*uint256.Int
	Allowances map[solana.PublicKey]map[solana.PublicKey]*uint256.Int
}

// RegistryState is the persisted registry configuration and pair order.
type RegistryState struct {
	FeeRecipient  solana.PublicKey
	FeeController solana.PublicKey
	Pauser        solana.PublicKey
	Paused        bool
	Pairs         []solana.PublicKey
}

// Observation is one cumulative price reading of a pair.
type Observation struct {
	Timestamp        uint32
	Price0Cumulative *uint256.Int
	Price1Cumulative *uint256.Int
}
