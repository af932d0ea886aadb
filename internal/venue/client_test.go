package venue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/finclear/oms/pkg/errors"
)

func sampleRequest() *BulkRequest {
	return &BulkRequest{TradeOrders: []TradeOrderItem{
		{
			OrderID:        1,
			PortfolioID:    "PF-1",
			OrderType:      "BUY",
			SecurityID:     "SEC-1",
			Quantity:       decimal.NewFromInt(100),
			LimitPrice:     decimal.NewFromFloat(9.75),
			TradeTimestamp: time.Now().UTC(),
			BlotterID:      7,
		},
	}}
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	return NewClient(url, 2*time.Second, zaptest.NewLogger(t))
}

func TestSubmitBulkSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/tradeorders/bulk", r.URL.Path)

		var req BulkRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.TradeOrders, 1)

		json.NewEncoder(w).Encode(BulkResponse{
			Status:         "SUCCESS",
			TotalRequested: 1,
			Successful:     1,
			Results: []OrderResult{
				{RequestIndex: 0, Status: ResultStatusSuccess, TradeOrder: &TradeOrder{ID: 555, OrderID: 1}},
			},
		})
	}))
	defer srv.Close()

	resp, err := newTestClient(t, srv.URL).SubmitBulk(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, int64(555), resp.Results[0].TradeOrder.ID)
}

func TestSubmitBulkClientErrorIsNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).SubmitBulk(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.Equal(t, errors.KindUpstreamClient, errors.KindOf(err))
	assert.False(t, errors.Retryable(err))
	assert.Contains(t, err.Error(), "400", "message must carry the upstream code")
}

func TestSubmitBulkServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).SubmitBulk(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.Equal(t, errors.KindUpstreamServer, errors.KindOf(err))
	assert.True(t, errors.Retryable(err))
}

func TestSubmitBulkConnectivityFailureIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refused connections from here on

	_, err := newTestClient(t, srv.URL).SubmitBulk(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.Equal(t, errors.KindConnectivity, errors.KindOf(err))
	assert.True(t, errors.Retryable(err))
}

func TestSubmitBulkEmptyBodyIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).SubmitBulk(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.Equal(t, errors.KindUpstreamServer, errors.KindOf(err))
}

func TestSubmitBulkTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 50*time.Millisecond, zaptest.NewLogger(t))
	_, err := c.SubmitBulk(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.Equal(t, errors.KindConnectivity, errors.KindOf(err))
	assert.True(t, errors.Retryable(err))
}
