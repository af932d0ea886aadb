package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/finclear/oms/pkg/errors"
	"github.com/finclear/oms/pkg/metrics"
)

// BulkSubmitter is the seam the orchestrator depends on; Client is the
// production implementation.
type BulkSubmitter interface {
	SubmitBulk(ctx context.Context, req *BulkRequest) (*BulkResponse, error)
}

// Client talks to the trade venue over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ BulkSubmitter = (*Client)(nil)

// NewClient creates a venue client with the given endpoint and timeout
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// SubmitBulk issues exactly one POST carrying the whole batch. It never
// retries: the caller may retry freely only because no local state has
// been mutated when this returns an error.
//
// Error classification:
//   - venue 4xx: non-retryable, message carries the upstream code
//   - venue 5xx, timeout, connection failure: retryable by the caller
//   - 2xx with an empty or undecodable body: treated as failure
func (c *Client) SubmitBulk(ctx context.Context, req *BulkRequest) (*BulkResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(errors.KindValidation, "failed to encode bulk request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/tradeorders/bulk", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(errors.KindConnectivity, "failed to build venue request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	metrics.VenueCallLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.VenueCallErrors.WithLabelValues("connectivity").Inc()
		c.logger.Warn("venue call failed", zap.Error(err))
		return nil, errors.Wrap(errors.KindConnectivity, "trade venue unreachable", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 500 {
		metrics.VenueCallErrors.WithLabelValues("server").Inc()
		return nil, errors.Newf(errors.KindUpstreamServer, "trade venue returned %d", httpResp.StatusCode)
	}
	if httpResp.StatusCode >= 400 {
		metrics.VenueCallErrors.WithLabelValues("client").Inc()
		detail, _ := io.ReadAll(io.LimitReader(httpResp.Body, 1024))
		return nil, errors.Newf(errors.KindUpstreamClient, "trade venue rejected the request with %d: %s",
			httpResp.StatusCode, string(detail))
	}

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		metrics.VenueCallErrors.WithLabelValues("body").Inc()
		return nil, errors.Wrap(errors.KindConnectivity, "failed to read venue response", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		metrics.VenueCallErrors.WithLabelValues("empty").Inc()
		return nil, errors.New(errors.KindUpstreamServer, "trade venue returned an empty response")
	}

	var resp BulkResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		metrics.VenueCallErrors.WithLabelValues("decode").Inc()
		return nil, errors.Wrap(errors.KindUpstreamServer,
			fmt.Sprintf("failed to decode venue response (%d bytes)", len(raw)), err)
	}

	c.logger.Debug("venue bulk call completed",
		zap.Int("requested", len(req.TradeOrders)),
		zap.Int("results", len(resp.Results)),
		zap.Duration("elapsed", time.Since(start)))
	return &resp, nil
}
