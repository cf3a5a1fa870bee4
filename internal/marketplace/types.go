package marketplace

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/floorarb/floorarb/internal/domain"
)

// wsCommand is the subscribe/unsubscribe frame sent to the stream API.
type wsCommand struct {
	Type        string   `json:"type"`
	Channel     string   `json:"channel"`
	Collections []string `json:"collections,omitempty"`
}

// wsMessage is the envelope for every frame received from the stream API.
type wsMessage struct {
	Channel string         `json:"channel"`
	Payload listingPayload `json:"payload"`
}

// listingPayload is the item_listed payload shape.
type listingPayload struct {
	OrderHash    string `json:"order_hash"`
	ChainID      int64  `json:"chain_id"`
	Collection   string `json:"collection"`
	TokenID      string `json:"token_id"`
	PaymentToken string `json:"payment_token"`
	PriceWei     string `json:"price_wei"`
}

// toEvent normalizes a stream payload into the engine's listing event.
func (p listingPayload) toEvent(now time.Time) (domain.ListingEvent, error) {
	if p.OrderHash == "" {
		return domain.ListingEvent{}, fmt.Errorf("marketplace: listing missing order_hash")
	}
	if !common.IsHexAddress(p.Collection) {
		return domain.ListingEvent{}, fmt.Errorf("marketplace: invalid collection address %q", p.Collection)
	}
	tokenID, ok := new(big.Int).SetString(p.TokenID, 10)
	if !ok {
		return domain.ListingEvent{}, fmt.Errorf("marketplace: invalid token_id %q", p.TokenID)
	}
	price, ok := new(big.Int).SetString(p.PriceWei, 10)
	if !ok || price.Sign() < 0 {
		return domain.ListingEvent{}, fmt.Errorf("marketplace: invalid price_wei %q", p.PriceWei)
	}

	var payment common.Address
	if p.PaymentToken != "" {
		if !common.IsHexAddress(p.PaymentToken) {
			return domain.ListingEvent{}, fmt.Errorf("marketplace: invalid payment_token %q", p.PaymentToken)
		}
		payment = common.HexToAddress(p.PaymentToken)
	}

	return domain.ListingEvent{
		Collection:   common.HexToAddress(p.Collection),
		TokenID:      tokenID,
		PaymentToken: payment,
		PriceWei:     price,
		ChainID:      p.ChainID,
		OrderHash:    strings.ToLower(p.OrderHash),
		ObservedAt:   now,
	}, nil
}

// orderResponse is the REST shape for a fully resolved order.
type orderResponse struct {
	OrderHash       string `json:"order_hash"`
	Fillable        bool   `json:"fillable"`
	PriceWei        string `json:"price_wei"`
	Collection      string `json:"collection"`
	TokenID         string `json:"token_id"`
	Exchange        string `json:"exchange"`
	FulfillmentData string `json:"fulfillment_data"` // 0x-prefixed hex
}
