package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListOrdersBuildsQuery(t *testing.T) {
	since := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/api/2024-01/orders.json", r.URL.Path)
		assert.Equal(t, "tok", r.Header.Get(accessTokenHeader))
		q := r.URL.Query()
		assert.Equal(t, "50", q.Get("limit"))
		assert.Equal(t, "100", q.Get("since_id"))
		assert.Equal(t, "any", q.Get("status"))
		assert.Equal(t, since.Format(time.RFC3339), q.Get("updated_at_min"))
		_, _ = w.Write([]byte(`{"orders":[{"id":101,"total_price":"19.90","customer":{"id":"7"},"line_items":[{"id":1,"product_id":55,"quantity":2,"price":9.95}],"created_at":"2026-03-01T08:00:00-05:00"}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), Options{BaseURL: srv.URL})
	orders, err := client.ListOrders(context.Background(), Credentials{ShopDomain: "a.myshopify.com", AccessToken: "tok"}, ListParams{
		Limit:        50,
		SinceID:      "100",
		UpdatedAtMin: &since,
	})
	require.NoError(t, err)
	require.Len(t, orders, 1)

	order := orders[0]
	assert.Equal(t, ID("101"), order.ID)
	assert.Equal(t, Money("19.90"), order.TotalPrice)
	assert.Equal(t, ID("7"), order.Customer.ID)
	assert.Equal(t, ID("55"), order.LineItems[0].ProductID)
	assert.Equal(t, Money("9.95"), order.LineItems[0].Price)
	assert.True(t, order.CreatedAt.Equal(time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)))
	assert.NotEmpty(t, order.Raw)
}

func TestListRejectsMissingCredentials(t *testing.T) {
	client := NewClient(nil, Options{})
	_, err := client.ListCustomers(context.Background(), Credentials{ShopDomain: "a.myshopify.com"}, ListParams{})
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestAPIErrorCarriesRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2.0")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"errors":"Exceeded 2 calls per second"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), Options{BaseURL: srv.URL})
	_, err := client.ListProducts(context.Background(), Credentials{ShopDomain: "a", AccessToken: "b"}, ListParams{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.Equal(t, 2*time.Second, apiErr.RetryAfter)
	assert.True(t, apiErr.Retryable())
}

func TestAPIErrorRetryable(t *testing.T) {
	cases := []struct {
		status int
		want   bool
	}{
		{http.StatusUnauthorized, false},
		{http.StatusNotFound, false},
		{http.StatusUnprocessableEntity, false},
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
	}
	for _, tc := range cases {
		err := &APIError{Status: tc.status}
		if got := err.Retryable(); got != tc.want {
			t.Fatalf("status %d: expected retryable=%v, got %v", tc.status, tc.want, got)
		}
	}
}

func TestDecodeTolerantScalars(t *testing.T) {
	var customer Customer
	require.NoError(t, json.Unmarshal([]byte(`{"id":"12","total_spent":null,"updated_at":""}`), &customer))
	assert.Equal(t, ID("12"), customer.ID)
	assert.Equal(t, Money(""), customer.TotalSpent)
	assert.Nil(t, customer.UpdatedAt.Ptr())
	assert.Equal(t, int64(12), customer.ID.Int64())
}

func TestCartTokenFallsBackToID(t *testing.T) {
	var cart Cart
	require.NoError(t, json.Unmarshal([]byte(`{"id":"abc"}`), &cart))
	assert.Equal(t, "abc", cart.CartToken())
}

func TestListSkipsMalformedEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"customers":[{"id":1},{"id":2,"orders_count":"7"},{"id":3}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), Options{BaseURL: srv.URL})
	customers, err := client.ListCustomers(context.Background(), Credentials{ShopDomain: "a", AccessToken: "b"}, ListParams{})
	require.Len(t, customers, 2)
	assert.Equal(t, ID("1"), customers[0].ID)
	assert.Equal(t, ID("3"), customers[1].ID)

	var partial *PartialError
	require.True(t, errors.As(err, &partial))
	assert.ErrorIs(t, err, ErrDecode)
	require.Len(t, partial.Items, 1)
	assert.Equal(t, 1, partial.Items[0].Index)
	assert.Equal(t, ID("2"), partial.Items[0].ID)
}

func TestListRejectsMalformedEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"products":{"id":1}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), Options{BaseURL: srv.URL})
	products, err := client.ListProducts(context.Background(), Credentials{ShopDomain: "a", AccessToken: "b"}, ListParams{})
	assert.Nil(t, products)
	assert.ErrorIs(t, err, ErrDecode)
	var partial *PartialError
	assert.False(t, errors.As(err, &partial))
}
