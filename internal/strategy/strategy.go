// Package strategy contains the stateful decision core: it keeps an
// eventually-consistent snapshot of pool quotes and decides when a newly
// listed NFT can be bought on the marketplace and resold into a pool at a
// profit.
package strategy

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/floorarb/floorarb/internal/domain"
)

// ChainReader is the chain access the strategy needs for history replay
// and live refresh. Implemented by chain.Client.
type ChainReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
	NewPools(ctx context.Context, from, to uint64) ([]domain.PoolCreation, error)
	PoolCollection(ctx context.Context, pool common.Address) (common.Address, error)
}

// Quoter fetches a pool's current sell quote. A (nil, nil) return means the
// pool has no usable quote. Implemented by chain.Client.
type Quoter interface {
	SellQuote(ctx context.Context, pool common.Address) (*domain.PoolQuote, error)
}

// OrderResolver fetches the full marketplace order behind a streamed
// listing reference. Implemented by marketplace.Client.
type OrderResolver interface {
	ResolveOrder(ctx context.Context, orderHash string) (*domain.ResolvedOrder, error)
}
