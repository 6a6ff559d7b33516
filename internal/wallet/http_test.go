package wallet

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPClientFetchInvoice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/invoices/ABCDE", r.URL.Path)
		require.NotEmpty(t, r.Header.Get("CB-ACCESS-SIGN"))
		json.NewEncoder(w).Encode(invoicePayload{
			ID:             "ABCDE",
			Status:         "new",
			BTCDue:         "0.0123",
			BitcoinAddress: "1BitcoinAddress",
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "key", "secret")
	invoice, err := client.FetchInvoice(context.Background(), "ABCDE")
	require.NoError(t, err)
	require.Equal(t, "ABCDE", invoice.ID)
	require.Equal(t, "new", invoice.Status)
	wantDue, _ := new(big.Float).SetString("0.0123")
	require.Equal(t, 0, invoice.BTCDue.Cmp(wantDue))
}

func TestHTTPClientCheckBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/accounts/primary", r.URL.Path)
		json.NewEncoder(w).Encode(balancePayload{Available: "42.5"})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "key", "secret")
	balance, err := client.CheckBalance(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, balance.Cmp(big.NewFloat(42.5)))
}

func TestHTTPClientSendMoneyInsufficientBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(balancePayload{Available: "0.001"})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "key", "secret")
	err := client.SendMoney(context.Background(), "gid-1", "1Address", big.NewFloat(1))

	var insufficient *ErrInsufficientBalance
	require.ErrorAs(t, err, &insufficient)
}

func TestHTTPClientSendMoneySetsIdempotencyHeader(t *testing.T) {
	var sawIdempotencyKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/accounts/primary" {
			json.NewEncoder(w).Encode(balancePayload{Available: "10"})
			return
		}
		sawIdempotencyKey = r.Header.Get("Idempotency-Key")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "key", "secret")
	err := client.SendMoney(context.Background(), "gid-2", "1Address", big.NewFloat(1))
	require.NoError(t, err)
	require.Equal(t, "gid-2", sawIdempotencyKey)
}

func TestHTTPClientNonOKStatusIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "key", "secret")
	_, err := client.CheckBalance(context.Background())
	require.Error(t, err)
}
