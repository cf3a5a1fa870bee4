package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PoolQuote is a pool's current buy-side quote for one NFT of its
// collection. GrossWei is the spot price the pool pays, FeeWei the pool and
// protocol fees deducted from it. Net proceeds for the seller are
// GrossWei - FeeWei.
type PoolQuote struct {
	GrossWei *big.Int
	FeeWei   *big.Int
}

// NetWei returns the seller's net proceeds for the quote.
func (q *PoolQuote) NetWei() *big.Int {
	return new(big.Int).Sub(q.GrossWei, q.FeeWei)
}

// PoolState is the snapshot entry for one liquidity pool. Bid is nil when
// the pool has no usable quote (empty, paused, or reverting); such pools
// are never matched against incoming listings. LastSyncedBlock is the
// highest block whose effects are reflected in Bid and is monotonically
// non-decreasing for the life of the entry.
type PoolState struct {
	Address         common.Address
	Collection      common.Address
	Bid             *PoolQuote
	LastSyncedBlock uint64
}

// PoolCreation is a factory deployment observed during history replay.
type PoolCreation struct {
	Address    common.Address
	Collection common.Address
}

// MarketSnapshot is a strategy's private view of pool quotes. It is owned
// and mutated exclusively by the strategy's sequential processing point;
// no other component reads or writes it, so no locking is required.
// Invariant: every entry has LastSyncedBlock <= HeadBlock.
type MarketSnapshot struct {
	Pools     map[common.Address]*PoolState
	HeadBlock uint64
}

// NewMarketSnapshot returns an empty snapshot.
func NewMarketSnapshot() *MarketSnapshot {
	return &MarketSnapshot{Pools: make(map[common.Address]*PoolState)}
}
