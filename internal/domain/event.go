package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind discriminates the event variants flowing through the engine.
type EventKind string

const (
	EventKindBlock   EventKind = "block"
	EventKindListing EventKind = "listing"
)

// Event is anything a collector observed on an external source. Events are
// immutable once emitted; strategies must never retain mutable references
// into them.
type Event interface {
	Kind() EventKind
}

// BlockEvent is produced once per observed chain head. NewPools holds pool
// addresses deployed by the factory in this block, TouchedPools holds pools
// whose reserves changed (swaps, deposits, withdrawals). The two sets may
// overlap.
type BlockEvent struct {
	Number       uint64
	NewPools     []common.Address
	TouchedPools []common.Address
	ObservedAt   time.Time
}

// Kind implements Event.
func (BlockEvent) Kind() EventKind { return EventKindBlock }

// ListingEvent is produced once per observed marketplace listing. OrderHash
// is the marketplace's reference for the streamed order; the full order is
// resolved lazily only when a listing looks profitable.
type ListingEvent struct {
	Collection   common.Address
	TokenID      *big.Int
	PaymentToken common.Address
	PriceWei     *big.Int
	ChainID      int64
	OrderHash    string
	ObservedAt   time.Time
}

// Kind implements Event.
func (ListingEvent) Kind() EventKind { return EventKindListing }

// IsNativePayment reports whether the listing is priced in the chain's
// native asset (the zero address by marketplace convention).
func (e ListingEvent) IsNativePayment() bool {
	return e.PaymentToken == (common.Address{})
}
