// Package edgeclient is a thin typed wrapper over the edge-server HTTP
// surface, grounded on original_source/controllers/edge.py's
// edge_server_is_healthy, push_relations_to_edge_bot, and
// get_edge_bot_task_status methods. Every call classifies its outcome into
// one of Transport, NotOK, MalformedJSON, or Ok — only Ok ever drives a
// state transition.
package edgeclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Kind tags a Classification's outcome.
type Kind int

const (
	Ok Kind = iota
	Transport
	NotOK
	MalformedJSON
)

// Classification is the outcome of one edge-client call. Body holds the
// response body when Kind is Ok or NotOK, and is empty otherwise.
type Classification struct {
	Kind       Kind
	StatusCode int
	Body       []byte
	Err        error
}

func (c Classification) String() string {
	switch c.Kind {
	case Ok:
		return "Ok"
	case Transport:
		return fmt.Sprintf("Transport(%v)", c.Err)
	case NotOK:
		return fmt.Sprintf("NotOK(%d)", c.StatusCode)
	case MalformedJSON:
		return fmt.Sprintf("MalformedJSON(%v)", c.Err)
	default:
		return "Unknown"
	}
}

// Client wraps net/http with the (10s connect, 20s read) deadline required
// on every edge call.
type Client struct {
	httpClient *http.Client
}

// New builds an edge client. The connect deadline is enforced by the
// transport's dialer; the read deadline is the overall request timeout.
func New() *Client {
	dialer := &net.Dialer{Timeout: 10 * time.Second}

	transport := &http.Transport{
		DialContext: dialer.DialContext,
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   20 * time.Second,
		},
	}
}

func edgeURL(ipAddress, endpoint string) string {
	return fmt.Sprintf("http://%s/edge/%s", ipAddress, endpoint)
}

func steamUserURL(ipAddress, method string, query url.Values) string {
	return fmt.Sprintf("http://%s/ISteamUser/%s/?%s", ipAddress, method, query.Encode())
}

func (c *Client) doGet(ctx context.Context, fullURL string, headers map[string]string) Classification {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return Classification{Kind: Transport, Err: err}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return c.do(req)
}

func (c *Client) doPostForm(ctx context.Context, fullURL string, form url.Values) Classification {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Classification{Kind: Transport, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(req)
}

func (c *Client) do(req *http.Request) Classification {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Classification{Kind: Transport, Err: err}
	}
	defer resp.Body.Close()

	body := make([]byte, 0, 4096)
	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		body = append(body, buf[:n]...)
		if readErr != nil {
			break
		}
	}

	if resp.StatusCode != http.StatusOK {
		return Classification{Kind: NotOK, StatusCode: resp.StatusCode, Body: body}
	}

	return Classification{Kind: Ok, StatusCode: resp.StatusCode, Body: body}
}

// Healthcheck calls GET /edge/healthcheck. The response body is the delay
// string; callers only care that the call succeeded.
func (c *Client) Healthcheck(ctx context.Context, ipAddress string) Classification {
	requestedAt := strconv.FormatFloat(float64(time.Now().Unix()), 'f', -1, 64)
	return c.doGet(ctx, edgeURL(ipAddress, "healthcheck"), map[string]string{
		"X-Requested-At": requestedAt,
	})
}

// CartPush calls POST /edge/cart/push/ and decodes a CartPushResponse on Ok.
func (c *Client) CartPush(ctx context.Context, ipAddress, networkID string, items []Item) (CartPushResponse, Classification) {
	encodedItems, err := json.Marshal(items)
	if err != nil {
		return CartPushResponse{}, Classification{Kind: MalformedJSON, Err: err}
	}

	form := url.Values{
		"network_id": {networkID},
		"items":      {string(encodedItems)},
	}

	cl := c.doPostForm(ctx, edgeURL(ipAddress, "cart/push/"), form)
	if cl.Kind != Ok {
		return CartPushResponse{}, cl
	}

	var resp CartPushResponse
	if err := json.Unmarshal(cl.Body, &resp); err != nil {
		return CartPushResponse{}, Classification{Kind: MalformedJSON, Err: err}
	}

	return resp, cl
}

// Checkout calls POST /edge/cart/checkout/.
func (c *Client) Checkout(ctx context.Context, ipAddress, networkID, giftee, paymentMethod string) (DispatchResponse, Classification) {
	form := url.Values{
		"network_id":        {networkID},
		"giftee_account_id": {giftee},
		"payment_method":    {paymentMethod},
	}

	return c.decodeDispatch(c.doPostForm(ctx, edgeURL(ipAddress, "cart/checkout/"), form))
}

// CartReset calls POST /edge/cart/reset/.
func (c *Client) CartReset(ctx context.Context, ipAddress, networkID string) (DispatchResponse, Classification) {
	form := url.Values{"network_id": {networkID}}
	return c.decodeDispatch(c.doPostForm(ctx, edgeURL(ipAddress, "cart/reset/"), form))
}

// TransactionLink calls POST /edge/transaction/link/.
func (c *Client) TransactionLink(ctx context.Context, ipAddress, networkID, transID string) (DispatchResponse, Classification) {
	form := url.Values{
		"transid":    {transID},
		"network_id": {networkID},
	}
	return c.decodeDispatch(c.doPostForm(ctx, edgeURL(ipAddress, "transaction/link/"), form))
}

func (c *Client) decodeDispatch(cl Classification) (DispatchResponse, Classification) {
	if cl.Kind != Ok {
		return DispatchResponse{}, cl
	}

	var resp DispatchResponse
	if err := json.Unmarshal(cl.Body, &resp); err != nil {
		return DispatchResponse{}, Classification{Kind: MalformedJSON, Err: err}
	}

	return resp, cl
}

// TaskState calls POST /edge/task/state/.
func (c *Client) TaskState(ctx context.Context, ipAddress, taskName, taskID string) (TaskStateResponse, Classification) {
	form := url.Values{
		"task_name": {taskName},
		"task_id":   {taskID},
	}

	cl := c.doPostForm(ctx, edgeURL(ipAddress, "task/state/"), form)
	if cl.Kind != Ok {
		return TaskStateResponse{}, cl
	}

	var resp TaskStateResponse
	if err := json.Unmarshal(cl.Body, &resp); err != nil {
		return TaskStateResponse{}, Classification{Kind: MalformedJSON, Err: err}
	}

	return resp, cl
}

// GetFriendsList calls GET /ISteamUser/GetFriendsList/.
func (c *Client) GetFriendsList(ctx context.Context, ipAddress, networkID string) (FriendListResponse, Classification) {
	query := url.Values{
		"network_id": {networkID},
		"ids":        {"1"},
	}

	cl := c.doGet(ctx, steamUserURL(ipAddress, "GetFriendsList", query), nil)
	if cl.Kind != Ok {
		return nil, cl
	}

	var resp FriendListResponse
	if err := json.Unmarshal(cl.Body, &resp); err != nil {
		return nil, Classification{Kind: MalformedJSON, Err: err}
	}

	return resp, cl
}

// AddFriend calls GET /ISteamUser/AddFriend/.
func (c *Client) AddFriend(ctx context.Context, ipAddress, networkID string, steamID int64) (AddFriendResponse, Classification) {
	query := url.Values{
		"network_id": {networkID},
		"steam_id":   {strconv.FormatInt(steamID, 10)},
	}

	cl := c.doGet(ctx, steamUserURL(ipAddress, "AddFriend", query), nil)
	if cl.Kind != Ok {
		return nil, cl
	}

	var resp AddFriendResponse
	if err := json.Unmarshal(cl.Body, &resp); err != nil {
		return nil, Classification{Kind: MalformedJSON, Err: err}
	}

	return resp, cl
}
