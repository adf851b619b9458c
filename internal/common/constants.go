package common

import (
	"github.com/gagliardetto/solana-go"
	"github.com/zeebo/blake3"
)

const (
	RegistrySeed      = "registry"
	RouterSeed        = "router"
	ProgramSeed       = "program"
	WrappedNativeSeed = "wrapped-native"
	FeeControllerSeed = "fee-controller"
	PauserSeed        = "pauser"
)

var (
	RegistryID      = DeriveIdentity(RegistrySeed)
	RouterID        = DeriveIdentity(RouterSeed)
	DefaultProgram  = DeriveIdentity(ProgramSeed)
	WrappedNativeID = DeriveIdentity(WrappedNativeSeed)
)

// DeriveIdentity returns a stable identifier for a named engine account.
func DeriveIdentity(name string) solana.PublicKey {
	sum := blake3.Sum256([]byte("amm-engine/" + name))
	return solana.PublicKeyFromBytes(sum[:])
}

// ParseKeyOrDefault parses a base58 key, falling back to def when s is empty.
func ParseKeyOrDefault(s string, def solana.PublicKey) (solana.PublicKey, error) {
	if s == "" {
		return def, nil
	}
	return solana.PublicKeyFromBase58(s)
}
