package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/floorarb/floorarb/internal/domain"
)

// Client is the marketplace order REST API client, used to resolve the
// full order behind a streamed listing reference.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a REST client for the given API base URL.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// ResolveOrder fetches the full order for the given order hash and decodes
// the fulfillment blob the arbitrage contract needs.
func (c *Client) ResolveOrder(ctx context.Context, orderHash string) (*domain.ResolvedOrder, error) {
	endpoint := fmt.Sprintf("%s/v1/orders/%s", c.baseURL, url.PathEscape(orderHash))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("marketplace: build order request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("marketplace: fetch order %s: %w", orderHash, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("marketplace: order %s: %w", orderHash, domain.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("marketplace: fetch order %s: unexpected status %d", orderHash, resp.StatusCode)
	}

	var body orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("marketplace: decode order %s: %w", orderHash, err)
	}

	price, ok := new(big.Int).SetString(body.PriceWei, 10)
	if !ok {
		return nil, fmt.Errorf("marketplace: order %s: invalid price_wei %q", orderHash, body.PriceWei)
	}
	tokenID, ok := new(big.Int).SetString(body.TokenID, 10)
	if !ok {
		return nil, fmt.Errorf("marketplace: order %s: invalid token_id %q", orderHash, body.TokenID)
	}
	fulfillment, err := hexutil.Decode(body.FulfillmentData)
	if err != nil {
		return nil, fmt.Errorf("marketplace: order %s: invalid fulfillment_data: %w", orderHash, err)
	}

	return &domain.ResolvedOrder{
		OrderHash:       body.OrderHash,
		Fillable:        body.Fillable,
		PriceWei:        price,
		Collection:      common.HexToAddress(body.Collection),
		TokenID:         tokenID,
		ExchangeAddress: common.HexToAddress(body.Exchange),
		FulfillmentData: fulfillment,
	}, nil
}
