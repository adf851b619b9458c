package oracle

import (
	"sync"

	"github.com/gagliardetto/solana-go"
)

const numShards = 16

// Windows holds one observation ring per pair, sharded to reduce lock contention
// between the sampler and API readers.
type Windows struct {
	capacity int
	shards   [numShards]windowShard
}

type windowShard struct {
	mu      sync.RWMutex
	windows map[solana.PublicKey]*Window
}

// NewWindows creates an empty set whose rings keep capacity samples each.
func NewWindows(capacity int) *Windows {
	s := &Windows{capacity: capacity}
	for i := 0; i < numShards; i++ {
		s.shards[i].windows = make(map[solana.PublicKey]*Window)
	}
	return s
}

func (s *Windows) shard(pair solana.PublicKey) *windowShard {
	// pair addresses are hashes, the first byte spreads evenly
	return &s.shards[pair[0]%numShards]
}

// Get returns the ring of a pair if one was created.
func (s *Windows) Get(pair solana.PublicKey) (*Window, bool) {
	shard := s.shard(pair)
	shard.mu.RLock()
	w, ok := shard.windows[pair]
	shard.mu.RUnlock()
	return w, ok
}

// GetOrCreate returns the ring of a pair, creating an empty one on first use.
func (s *Windows) GetOrCreate(pair solana.PublicKey) *Window {
	if w, ok := s.Get(pair); ok {
		return w
	}

	shard := s.shard(pair)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	if w, ok := shard.windows[pair]; ok {
		return w
	}
	w := NewWindow(s.capacity)
	shard.windows[pair] = w
	return w
}

// Len returns the number of pairs with a ring.
func (s *Windows) Len() int {
	total := 0
	for i := 0; i < numShards; i++ {
		s.shards[i].mu.RLock()
		total += len(s.shards[i].windows)
		s.shards[i].mu.RUnlock()
	}
	return total
}
