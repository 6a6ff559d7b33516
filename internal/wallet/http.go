package wallet

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"time"
)

// HTTPClient implements Client against the Coinbase-style signed REST API
// (CB-ACCESS-KEY/CB-ACCESS-SIGN/CB-ACCESS-TIMESTAMP headers), driven by
// COINBASE_API_KEY/COINBASE_API_SECRET.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
}

// NewHTTPClient builds a wallet client against baseURL, signing every
// request with apiKey/apiSecret.
func NewHTTPClient(baseURL, apiKey, apiSecret string) *HTTPClient {
	return &HTTPClient{
		baseURL:   baseURL,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

func (c *HTTPClient) sign(timestamp, method, path string, body []byte) string {
	message := timestamp + method + path + string(body)
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte, extraHeaders map[string]string) ([]byte, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build wallet request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("CB-ACCESS-KEY", c.apiKey)
	req.Header.Set("CB-ACCESS-SIGN", c.sign(timestamp, method, path, body))
	req.Header.Set("CB-ACCESS-TIMESTAMP", timestamp)

	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wallet request transport error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read wallet response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wallet api returned status %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

type invoicePayload struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	BTCDue         string `json:"btc_due"`
	BitcoinAddress string `json:"bitcoin_address"`
}

// FetchInvoice retrieves invoice details by id.
func (c *HTTPClient) FetchInvoice(ctx context.Context, invoiceID string) (Invoice, error) {
	body, err := c.do(ctx, http.MethodGet, "/v1/invoices/"+invoiceID, nil, nil)
	if err != nil {
		return Invoice{}, err
	}

	var payload invoicePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return Invoice{}, fmt.Errorf("decode invoice response: %w", err)
	}

	btcDue, ok := new(big.Float).SetString(payload.BTCDue)
	if !ok {
		return Invoice{}, fmt.Errorf("invoice %s returned non-numeric btc_due %q", invoiceID, payload.BTCDue)
	}

	return Invoice{
		ID:             payload.ID,
		Status:         payload.Status,
		BTCDue:         btcDue,
		BitcoinAddress: payload.BitcoinAddress,
	}, nil
}

type balancePayload struct {
	Available string `json:"available"`
}

// CheckBalance returns the wallet's current available balance.
func (c *HTTPClient) CheckBalance(ctx context.Context) (*big.Float, error) {
	body, err := c.do(ctx, http.MethodGet, "/v1/accounts/primary", nil, nil)
	if err != nil {
		return nil, err
	}

	var payload balancePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode balance response: %w", err)
	}

	balance, ok := new(big.Float).SetString(payload.Available)
	if !ok {
		return nil, fmt.Errorf("balance response returned non-numeric available %q", payload.Available)
	}

	return balance, nil
}

type sendMoneyRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
	Asset  string `json:"currency"`
}

// SendMoney transfers amount to address, passing idempotencyKey as an
// Idempotency-Key header so the provider dedupes retried sends.
func (c *HTTPClient) SendMoney(ctx context.Context, idempotencyKey, address string, amount *big.Float) error {
	balance, err := c.CheckBalance(ctx)
	if err != nil {
		return fmt.Errorf("check wallet balance before send: %w", err)
	}

	if balance.Cmp(amount) < 0 {
		return &ErrInsufficientBalance{Available: balance, Required: amount}
	}

	payload, err := json.Marshal(sendMoneyRequest{
		To:     address,
		Amount: amount.Text('f', 8),
		Asset:  "BTC",
	})
	if err != nil {
		return fmt.Errorf("encode send-money request: %w", err)
	}

	_, err = c.do(ctx, http.MethodPost, "/v1/transactions/send", payload, map[string]string{
		"Idempotency-Key": idempotencyKey,
	})
	if err != nil {
		return fmt.Errorf("send money: %w", err)
	}

	return nil
}
