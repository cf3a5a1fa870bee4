package marketplace

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func validPayload() listingPayload {
	return listingPayload{
		OrderHash:    "0xABCDEF",
		ChainID:      1,
		Collection:   "0x2222222222222222222222222222222222222222",
		TokenID:      "42",
		PaymentToken: "",
		PriceWei:     "1000000000000000000",
	}
}

func TestToEventNormalizes(t *testing.T) {
	now := time.Now()
	ev, err := validPayload().toEvent(now)
	require.NoError(t, err)

	require.Equal(t, "0xabcdef", ev.OrderHash)
	require.Equal(t, common.HexToAddress("0x2222222222222222222222222222222222222222"), ev.Collection)
	require.Equal(t, "42", ev.TokenID.String())
	require.Equal(t, "1000000000000000000", ev.PriceWei.String())
	require.True(t, ev.IsNativePayment())
	require.Equal(t, now, ev.ObservedAt)
}

func TestToEventERC20Payment(t *testing.T) {
	p := validPayload()
	p.PaymentToken = "0x3333333333333333333333333333333333333333"
	ev, err := p.toEvent(time.Now())
	require.NoError(t, err)
	require.False(t, ev.IsNativePayment())
}

func TestToEventRejectsMalformedPayloads(t *testing.T) {
	cases := map[string]func(*listingPayload){
		"missing order hash": func(p *listingPayload) { p.OrderHash = "" },
		"bad collection":     func(p *listingPayload) { p.Collection = "not-an-address" },
		"bad token id":       func(p *listingPayload) { p.TokenID = "42x" },
		"bad price":          func(p *listingPayload) { p.PriceWei = "" },
		"negative price":     func(p *listingPayload) { p.PriceWei = "-1" },
		"bad payment token":  func(p *listingPayload) { p.PaymentToken = "zzz" },
	}
	for name, mutate := range cases {
		p := validPayload()
		mutate(&p)
		_, err := p.toEvent(time.Now())
		require.Error(t, err, name)
	}
}
