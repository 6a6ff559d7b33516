package edgeclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHealthcheckOk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/edge/healthcheck", r.URL.Path)
		require.NotEmpty(t, r.Header.Get("X-Requested-At"))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("0.042"))
	}))
	defer srv.Close()

	client := New()
	cl := client.Healthcheck(context.Background(), strings.TrimPrefix(srv.URL, "http://"))

	require.Equal(t, Ok, cl.Kind)
}

func TestHealthcheckNotOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := New()
	cl := client.Healthcheck(context.Background(), strings.TrimPrefix(srv.URL, "http://"))

	require.Equal(t, NotOK, cl.Kind)
	require.Equal(t, http.StatusInternalServerError, cl.StatusCode)
}

func TestCartPushOk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "bot-1", r.PostForm.Get("network_id"))
		require.Contains(t, r.PostForm.Get("items"), "sub_id")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": true, "result": 0, "task_id": "task-1", "task_name": "add_subids_to_cart"}`))
	}))
	defer srv.Close()

	client := New()
	resp, cl := client.CartPush(context.Background(), strings.TrimPrefix(srv.URL, "http://"), "bot-1", []Item{
		{SubID: "200", UserID: 1, RelationType: "A", RelationID: 10},
	})

	require.Equal(t, Ok, cl.Kind)
	require.True(t, resp.Success)
	require.Equal(t, "task-1", resp.TaskID)
}

func TestCartPushMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	client := New()
	_, cl := client.CartPush(context.Background(), strings.TrimPrefix(srv.URL, "http://"), "bot-1", nil)

	require.Equal(t, MalformedJSON, cl.Kind)
}

func TestDecodeCheckoutResultCode(t *testing.T) {
	result, err := DecodeCheckoutResult(RawTaskResult("5"))
	require.NoError(t, err)
	require.True(t, result.IsCode)
	require.Equal(t, ETransactionInsufficientFunds, result.Code)
}

func TestDecodeCheckoutResultObject(t *testing.T) {
	result, err := DecodeCheckoutResult(RawTaskResult(`{"result": "OK", "payment_method": "bitcoin"}`))
	require.NoError(t, err)
	require.False(t, result.IsCode)
	require.Equal(t, "OK", result.Object.Result)
	require.Equal(t, "bitcoin", result.Object.PaymentMethod)
}

func TestDecodeCartResultNull(t *testing.T) {
	result, err := DecodeCartResult(RawTaskResult(nil))
	require.NoError(t, err)
	require.Empty(t, result.Items)
}
