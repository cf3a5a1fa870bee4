package marketplace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/floorarb/floorarb/internal/domain"
)

func TestResolveOrderDecodesResponse(t *testing.T) {
	var gotPath, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-Api-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"order_hash": "0xabc",
			"fillable": true,
			"price_wei": "8000",
			"collection": "0x2222222222222222222222222222222222222222",
			"token_id": "42",
			"exchange": "0x3333333333333333333333333333333333333333",
			"fulfillment_data": "0x0102"
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	order, err := c.ResolveOrder(context.Background(), "0xabc")
	require.NoError(t, err)

	require.Equal(t, "/v1/orders/0xabc", gotPath)
	require.Equal(t, "test-key", gotKey)
	require.True(t, order.Fillable)
	require.Equal(t, "8000", order.PriceWei.String())
	require.Equal(t, "42", order.TokenID.String())
	require.Equal(t, []byte{0x01, 0x02}, order.FulfillmentData)
}

func TestResolveOrderNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.ResolveOrder(context.Background(), "0xmissing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResolveOrderRejectsMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"order_hash": "0xabc", "price_wei": "??", "token_id": "42", "fulfillment_data": "0x"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.ResolveOrder(context.Background(), "0xabc")
	require.Error(t, err)
}
