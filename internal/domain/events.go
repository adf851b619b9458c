package domain

import (
	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
)

type EventKind string

const (
	EventPairCreated EventKind = "pair_created"
	EventMint        EventKind = "mint"
	EventBurn        EventKind = "burn"
	EventSwap        EventKind = "swap"
	EventSync        EventKind = "sync"
)

type Event interface {
	Kind() EventKind
	// PairAddress is the pool the event belongs to.
	PairAddress() solana.PublicKey
}

type EventSink interface {
	Emit(evt Event)
}

// NopSink drops every event.
type NopSink struct{}

func (NopSink) Emit(Event) {}

type PairCreatedEvent struct {
	Token0 solana.PublicKey
	Token1 solana.PublicKey
	Pair   solana.PublicKey
	Index  int
}

func (e *PairCreatedEvent) Kind() EventKind               { return EventPairCreated }
func (e *PairCreatedEvent) PairAddress() solana.PublicKey { return e.Pair }

type MintEvent struct {
	Pair    solana.PublicKey
	Sender  solana.PublicKey
	Amount0 *uint256.Int
	Amount1 *uint256.Int
}

func (e *MintEvent) Kind() EventKind               { return EventMint }
func (e *MintEvent) PairAddress() solana.PublicKey { return e.Pair }

type BurnEvent struct {
	Pair    solana.PublicKey
	Sender  solana.PublicKey
	Amount0 *uint256.Int
	Amount1 *uint256.Int
	To      solana.PublicKey
}

func (e *BurnEvent) Kind() EventKind               { return EventBurn }
func (e *BurnEvent) PairAddress() solana.PublicKey { return e.Pair }

type SwapEvent struct {
	Pair       solana.PublicKey
	Sender     solana.PublicKey
	Amount0In  *uint256.Int
	Amount1In  *uint256.Int
	Amount0Out *uint256.Int
	Amount1Out *uint256.Int
	To         solana.PublicKey
}

func (e *SwapEvent) Kind() EventKind               { return EventSwap }
func (e *SwapEvent) PairAddress() solana.PublicKey { return e.Pair }

type SyncEvent struct {
	Pair     solana.PublicKey
	Reserve0 *uint256.Int
	Reserve1 *uint256.Int
}

func (e *SyncEvent) Kind() EventKind               { return EventSync }
func (e *SyncEvent) PairAddress() solana.PublicKey { return e.Pair }
