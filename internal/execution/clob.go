package execution

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-engine/pkg/types"
)

// Client talks to the Polymarket CLOB REST API with L2 (HMAC) authentication.
// Every call carries a hard deadline; a submission that times out is reported
// as failed and never assumed filled.
type Client struct {
	baseURL      string
	apiKey       string
	secret       string
	passphrase   string
	address      string // EOA address, the POLY_ADDRESS header
	orderTimeout time.Duration
	httpClient   *http.Client
	logger       *zap.Logger
	now          func() time.Time
}

// ClientConfig holds CLOB client configuration.
type ClientConfig struct {
	BaseURL      string
	APIKey       string
	Secret       string
	Passphrase   string
	Address      string
	OrderTimeout time.Duration
	HTTPClient   *http.Client // optional
	Logger       *zap.Logger
}

// NewClient creates a CLOB client.
func NewClient(cfg *ClientConfig) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	if cfg.OrderTimeout <= 0 {
		return nil, fmt.Errorf("order timeout must be positive")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Client{
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
		secret:       cfg.Secret,
		passphrase:   cfg.Passphrase,
		address:      cfg.Address,
		orderTimeout: cfg.OrderTimeout,
		httpClient:   httpClient,
		logger:       cfg.Logger,
		now:          time.Now,
	}, nil
}

// SubmitOrder posts a signed order. The call is bounded by the order timeout;
// on expiry the order is reported failed with ORDER_TIMEOUT and the caller
// must reconcile via cancel, never by assuming a fill.
func (c *Client) SubmitOrder(ctx context.Context, order *types.SignedOrderJSON, orderType string) (*types.OrderSubmissionResponse, error) {
	reqBody, err := json.Marshal(types.OrderSubmissionRequest{
		Order:     *order,
		Owner:     c.apiKey,
		OrderType: orderType,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal order request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.orderTimeout)
	defer cancel()

	start := time.Now()
	body, status, err := c.do(ctx, http.MethodPost, "/order", reqBody)
	OrderSubmitDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			OrdersSubmittedTotal.WithLabelValues("timeout").Inc()
			return nil, &types.OrderError{
				Code:    "ORDER_TIMEOUT",
				Message: fmt.Sprintf("no response within %s", c.orderTimeout),
			}
		}
		OrdersSubmittedTotal.WithLabelValues("error").Inc()
		return nil, &types.OrderError{Code: "REQUEST_FAILED", Message: err.Error()}
	}

	var resp types.OrderSubmissionResponse
	if jsonErr := json.Unmarshal(body, &resp); jsonErr != nil {
		OrdersSubmittedTotal.WithLabelValues("error").Inc()
		return nil, &types.OrderError{
			Code:    "BAD_RESPONSE",
			Message: fmt.Sprintf("status %d: %s", status, truncate(body, 200)),
		}
	}

	if status != http.StatusOK && status != http.StatusCreated {
		OrdersSubmittedTotal.WithLabelValues("rejected").Inc()
		return nil, &types.OrderError{
			Code:    errorCode(resp.ErrorMsg, status),
			Message: resp.ErrorMsg,
			OrderID: resp.OrderID,
		}
	}
	if !resp.Success {
		OrdersSubmittedTotal.WithLabelValues("rejected").Inc()
		return nil, &types.OrderError{
			Code:    errorCode(resp.ErrorMsg, status),
			Message: resp.ErrorMsg,
			OrderID: resp.OrderID,
		}
	}

	OrdersSubmittedTotal.WithLabelValues("accepted").Inc()
	return &resp, nil
}

// CancelOrder cancels a single resting order.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	reqBody, err := json.Marshal(map[string]string{"orderID": orderID})
	if err != nil {
		return fmt.Errorf("marshal cancel request: %w", err)
	}

	body, status, err := c.do(ctx, http.MethodDelete, "/order", reqBody)
	if err != nil {
		return &types.OrderError{Code: "CANCEL_FAILED", Message: err.Error(), OrderID: orderID}
	}
	if status != http.StatusOK {
		return &types.OrderError{
			Code:    "CANCEL_FAILED",
			Message: fmt.Sprintf("status %d: %s", status, truncate(body, 200)),
			OrderID: orderID,
		}
	}

	c.logger.Info("order-cancelled", zap.String("order-id", orderID))
	return nil
}

// CancelAll cancels every resting order for the authenticated account.
func (c *Client) CancelAll(ctx context.Context) error {
	body, status, err := c.do(ctx, http.MethodDelete, "/cancel-all", nil)
	if err != nil {
		return &types.OrderError{Code: "CANCEL_ALL_FAILED", Message: err.Error()}
	}
	if status != http.StatusOK {
		return &types.OrderError{
			Code:    "CANCEL_ALL_FAILED",
			Message: fmt.Sprintf("status %d: %s", status, truncate(body, 200)),
		}
	}

	c.logger.Info("all-orders-cancelled")
	return nil
}

// GetOrder queries the current state of an order.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*types.OrderQueryResponse, error) {
	body, status, err := c.do(ctx, http.MethodGet, "/data/order/"+orderID, nil)
	if err != nil {
		return nil, &types.OrderError{Code: "QUERY_FAILED", Message: err.Error(), OrderID: orderID}
	}
	if status != http.StatusOK {
		return nil, &types.OrderError{
			Code:    "QUERY_FAILED",
			Message: fmt.Sprintf("status %d: %s", status, truncate(body, 200)),
			OrderID: orderID,
		}
	}

	var resp types.OrderQueryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &types.OrderError{Code: "BAD_RESPONSE", Message: err.Error(), OrderID: orderID}
	}
	return &resp, nil
}

// do issues an authenticated request and returns the raw body and status.
func (c *Client) do(ctx context.Context, method, path string, reqBody []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	headers, err := c.l2Headers(method, path, reqBody)
	if err != nil {
		return nil, 0, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Unwrap url.Error so deadline checks work upstream.
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, 0, context.DeadlineExceeded
		}
		return nil, 0, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// l2Headers builds the POLY_* authentication headers. The secret is URL-safe
// base64, matching the official clients.
func (c *Client) l2Headers(method, path string, body []byte) (map[string]string, error) {
	timestamp := fmt.Sprintf("%d", c.now().Unix())
	payload := timestamp + method + path + string(body)

	secretBytes, err := base64.URLEncoding.DecodeString(c.secret)
	if err != nil {
		return nil, fmt.Errorf("decode API secret: %w", err)
	}

	mac := hmac.New(sha256.New, secretBytes)
	mac.Write([]byte(payload))
	signature := base64.URLEncoding.EncodeToString(mac.Sum(nil))

	return map[string]string{
		"Content-Type":    "application/json",
		"POLY_API_KEY":    c.apiKey,
		"POLY_SIGNATURE":  signature,
		"POLY_TIMESTAMP":  timestamp,
		"POLY_PASSPHRASE": c.passphrase,
		"POLY_ADDRESS":    c.address,
	}, nil
}

// errorCode maps an exchange error message to a known code when possible.
func errorCode(msg string, status int) string {
	for _, code := range []string{
		types.ErrInvalidMinTickSize,
		types.ErrNotEnoughBalance,
		types.ErrFOKNotFilled,
		types.ErrMarketNotReady,
	} {
		if msg == code {
			return code
		}
	}
	return fmt.Sprintf("HTTP_%d", status)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
