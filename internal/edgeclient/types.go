package edgeclient

import "github.com/timour/edgedispatch/internal/domain"

// Item is one cart-push entry in the wire protocol: items is sent as a JSON
// string of [{sub_id, user_id, relation_type, relation_id}].
type Item struct {
	SubID        string            `json:"sub_id"`
	UserID       int64             `json:"user_id"`
	RelationType domain.RequestKind `json:"relation_type"`
	RelationID   int64             `json:"relation_id"`
}

// CartPushResponse is the decoded body of POST /edge/cart/push/.
type CartPushResponse struct {
	Success  bool   `json:"success"`
	Result   int    `json:"result"`
	TaskID   string `json:"task_id"`
	TaskName string `json:"task_name"`
}

// DispatchResponse is the decoded body shared by checkout/reset/link
// dispatch calls, which only ever return task correlation metadata.
type DispatchResponse struct {
	TaskID   string `json:"task_id"`
	TaskName string `json:"task_name"`
}

// TaskStateResponse is the decoded body of POST /edge/task/state/.
// TaskResult is left as json.RawMessage because its shape is a function of
// TaskName — see DecodeCartResult/DecodeCheckoutResult in taskresult.go, which model
// the edge's task-result as a sum type decoded by task_name.
type TaskStateResponse struct {
	Success    bool            `json:"success"`
	TaskStatus string          `json:"task_status"`
	TaskResult RawTaskResult   `json:"task_result"`
}

// RawTaskResult defers decoding of task_result until the caller knows
// task_name, since the wire shape varies (an integer ETransactionResult code
// for checkout_cart, an object for add_subids_to_cart).
type RawTaskResult []byte

func (r *RawTaskResult) UnmarshalJSON(data []byte) error {
	*r = append((*r)[0:0], data...)
	return nil
}

func (r RawTaskResult) IsNull() bool {
	return len(r) == 0 || string(r) == "null"
}

// CartResult is task_result's shape for add_subids_to_cart.
type CartResult struct {
	Items                  []Item   `json:"items"`
	FailedItems            []Item   `json:"failed_items"`
	FailedShoppingCartGIDs []string `json:"failed_shopping_cart_gids"`
	ShoppingCartGID        string   `json:"shoppingCartGID"`
}

// CheckoutResultCode is task_result's shape for checkout_cart when it is a
// bare ETransactionResult integer rather than an object.
type CheckoutResultCode int

const (
	ETransactionSuccess           CheckoutResultCode = 1
	ETransactionInsufficientFunds CheckoutResultCode = 5
	ETransactionTooManyPurchases  CheckoutResultCode = 7
)

// CheckoutResultObject is task_result's shape for checkout_cart when the
// edge server instead returns a map with result=="OK". TransID is the Steam
// transaction id, carried through to the transaction/link/ dispatch's
// "transid" form field when PaymentMethod is bitcoin.
type CheckoutResultObject struct {
	Result        string `json:"result"`
	PaymentMethod string `json:"payment_method"`
	TransID       string `json:"transid"`
}

// FriendListResponse is GET /ISteamUser/GetFriendsList/'s decoded body: an
// array of numeric external account ids.
type FriendListResponse []int64

// AddFriendResponse is GET /ISteamUser/AddFriend/'s decoded body. The
// presence of key "0" signals the bot's friend list is full.
type AddFriendResponse map[string]any

func (r AddFriendResponse) IsFull() bool {
	_, full := r["0"]
	return full
}
