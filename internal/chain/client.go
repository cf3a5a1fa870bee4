// Package chain wraps go-ethereum RPC access for the pool factory and
// sudoswap-style pair contracts.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/floorarb/floorarb/internal/domain"
)

// rpcLimitKey is the rate-limiter bucket shared by all provider calls.
const rpcLimitKey = "chain_rpc"

// ClientConfig holds the parameters for a chain Client.
type ClientConfig struct {
	WsURL   string
	Factory common.Address

	// RPCLimit/RPCWindow throttle provider calls when a RateLimiter is
	// attached. Zero disables throttling.
	RPCLimit  int
	RPCWindow time.Duration
}

// Client wraps go-ethereum RPC and provides the factory/pair helpers the
// collectors, strategy, and executor need.
type Client struct {
	cfg       ClientConfig
	rpcClient *rpc.Client
	eth       *ethclient.Client
	limiter   domain.RateLimiter
}

// NewClient dials the websocket RPC endpoint. limiter may be nil.
func NewClient(ctx context.Context, cfg ClientConfig, limiter domain.RateLimiter) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, cfg.WsURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", cfg.WsURL, err)
	}
	return &Client{
		cfg:       cfg,
		rpcClient: rpcClient,
		eth:       ethclient.NewClient(rpcClient),
		limiter:   limiter,
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

func (c *Client) throttle(ctx context.Context) error {
	if c.limiter == nil || c.cfg.RPCLimit <= 0 {
		return nil
	}
	return c.limiter.Wait(ctx, rpcLimitKey, c.cfg.RPCLimit, c.cfg.RPCWindow)
}

// ChainID returns the chain ID of the connected node.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	return c.eth.ChainID(ctx)
}

// BlockNumber returns the current chain head number.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	if err := c.throttle(ctx); err != nil {
		return 0, err
	}
	return c.eth.BlockNumber(ctx)
}

// SubscribeNewHead subscribes to new chain heads.
func (c *Client) SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error) {
	return c.eth.SubscribeNewHead(ctx, ch)
}

// NewPools enumerates factory pool deployments in the inclusive block range
// and resolves the NFT collection each pool trades.
func (c *Client) NewPools(ctx context.Context, from, to uint64) ([]domain.PoolCreation, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}
	logs, err := c.eth.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{c.cfg.Factory},
		Topics:    [][]common.Hash{{newPairTopic}},
	})
	if err != nil {
		return nil, fmt.Errorf("chain: filter NewPair logs [%d,%d]: %w", from, to, err)
	}

	creations := make([]domain.PoolCreation, 0, len(logs))
	for _, lg := range logs {
		pool, ok := poolFromNewPairLog(lg)
		if !ok {
			continue
		}
		collection, err := c.PoolCollection(ctx, pool)
		if err != nil {
			return nil, fmt.Errorf("chain: resolve collection for pool %s: %w", pool, err)
		}
		creations = append(creations, domain.PoolCreation{Address: pool, Collection: collection})
	}
	return creations, nil
}

// PoolCollection returns the NFT collection address a pool trades.
func (c *Client) PoolCollection(ctx context.Context, pool common.Address) (common.Address, error) {
	if err := c.throttle(ctx); err != nil {
		return common.Address{}, err
	}
	data, err := pairABI.Pack("nft")
	if err != nil {
		return common.Address{}, fmt.Errorf("chain: pack nft(): %w", err)
	}
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &pool, Data: data}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("chain: call nft() on %s: %w", pool, err)
	}
	vals, err := pairABI.Unpack("nft", out)
	if err != nil || len(vals) != 1 {
		return common.Address{}, fmt.Errorf("chain: unpack nft() on %s: %w", pool, err)
	}
	collection, ok := vals[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("chain: nft() on %s returned unexpected type", pool)
	}
	return collection, nil
}

// PoolActivity scans the logs of blocks [from,to] for pool creation and
// pool touch events. Created pools come from the factory's NewPair event;
// touched pools are pair contracts that emitted a swap, deposit,
// withdrawal, or spot price update.
func (c *Client) PoolActivity(ctx context.Context, from, to uint64) (created, touched []common.Address, err error) {
	if err := c.throttle(ctx); err != nil {
		return nil, nil, err
	}
	topics := make([]common.Hash, 0, len(pairTouchTopics)+1)
	topics = append(topics, newPairTopic)
	topics = append(topics, pairTouchTopics...)

	logs, err := c.eth.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Topics:    [][]common.Hash{topics},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("chain: filter logs [%d,%d]: %w", from, to, err)
	}

	seenTouched := make(map[common.Address]struct{})
	for _, lg := range logs {
		if len(lg.Topics) == 0 {
			continue
		}
		if lg.Topics[0] == newPairTopic {
			if lg.Address != c.cfg.Factory {
				continue
			}
			if pool, ok := poolFromNewPairLog(lg); ok {
				created = append(created, pool)
			}
			continue
		}
		if _, dup := seenTouched[lg.Address]; !dup {
			seenTouched[lg.Address] = struct{}{}
			touched = append(touched, lg.Address)
		}
	}
	return created, touched, nil
}

// SellQuote fetches the pool's current quote for selling one NFT into it.
// A (nil, nil) return means the pool has no usable quote and must be
// excluded from matching.
func (c *Client) SellQuote(ctx context.Context, pool common.Address) (*domain.PoolQuote, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}
	data, err := pairABI.Pack("getSellNFTQuote", big.NewInt(1))
	if err != nil {
		return nil, fmt.Errorf("chain: pack getSellNFTQuote: %w", err)
	}
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &pool, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: call getSellNFTQuote on %s: %w", pool, err)
	}
	vals, err := pairABI.Unpack("getSellNFTQuote", out)
	if err != nil || len(vals) != 5 {
		return nil, fmt.Errorf("chain: unpack getSellNFTQuote on %s: %w", pool, err)
	}

	errCode, _ := vals[0].(uint8)
	if errCode != 0 {
		// Curve error: pool cannot quote (empty, paused, misconfigured).
		return nil, nil
	}
	outputAmount, ok1 := vals[3].(*big.Int)
	protocolFee, ok2 := vals[4].(*big.Int)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("chain: getSellNFTQuote on %s returned unexpected types", pool)
	}
	if outputAmount.Sign() <= 0 {
		return nil, nil
	}
	return &domain.PoolQuote{
		GrossWei: new(big.Int).Add(outputAmount, protocolFee),
		FeeWei:   new(big.Int).Set(protocolFee),
	}, nil
}

// PendingNonceAt returns the pending-state nonce for the account.
func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	if err := c.throttle(ctx); err != nil {
		return 0, err
	}
	return c.eth.PendingNonceAt(ctx, account)
}

// SuggestGasTipCap returns the node's suggested priority fee.
func (c *Client) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}
	return c.eth.SuggestGasTipCap(ctx)
}

// HeaderByNumber returns a block header; nil number means latest.
func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}
	return c.eth.HeaderByNumber(ctx, number)
}

// SendTransaction submits a signed transaction.
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := c.throttle(ctx); err != nil {
		return err
	}
	return c.eth.SendTransaction(ctx, tx)
}

// poolFromNewPairLog extracts the pool address from a NewPair log's data
// word. The event's single address argument is not indexed.
func poolFromNewPairLog(lg types.Log) (common.Address, bool) {
	if len(lg.Data) < 32 {
		return common.Address{}, false
	}
	return common.BytesToAddress(lg.Data[12:32]), true
}
