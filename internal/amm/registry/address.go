package registry

import (
	"bytes"
	"sync"

	"github.com/gagliardetto/solana-go"
)

var pairSeed = []byte("pair")

type pairAddressKey struct {
	program solana.PublicKey
	token0  solana.PublicKey
	token1  solana.PublicKey
}

var (
	pairAddressCache   = make(map[pairAddressKey]solana.PublicKey)
	pairAddressCacheMu sync.RWMutex
)

// SortTokens orders two token identifiers by their byte representation.
func SortTokens(a, b solana.PublicKey) (token0, token1 solana.PublicKey) {
	if bytes.Compare(a[:], b[:]) < 0 {
		return a, b
	}
	return b, a
}

// PairAddress derives the pool address for an unordered token pair. The result
// depends only on programID and the sorted tokens, so it is known before the pool exists.
func PairAddress(programID, tokenA, tokenB solana.PublicKey) (solana.PublicKey, error) {
	token0, token1 := SortTokens(tokenA, tokenB)
	key := pairAddressKey{program: programID, token0: token0, token1: token1}

	pairAddressCacheMu.RLock()
	if cached, ok := pairAddressCache[key]; ok {
		pairAddressCacheMu.RUnlock()
		return cached, nil
	}
	pairAddressCacheMu.RUnlock()

	addr, _, err := solana.FindProgramAddress(
		[][]byte{pairSeed, token0.Bytes(), token1.Bytes()},
		programID,
	)
	if err != nil {
		return solana.PublicKey{}, err
	}

	pairAddressCacheMu.Lock()
	pairAddressCache[key] = addr
	pairAddressCacheMu.Unlock()

	return addr, nil
}
