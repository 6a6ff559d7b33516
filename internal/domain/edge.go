package domain

import "time"

// EdgeServerStatus is the liveness flag on an EdgeServer row.
type EdgeServerStatus int

const (
	EdgeServerEnabled  EdgeServerStatus = 1
	EdgeServerDisabled EdgeServerStatus = 2
)

// EdgeServer is the HTTP front-proxy that multiplexes calls to bots running
// behind it.
type EdgeServer struct {
	ID              int64
	IPAddress       string
	CurrencyCode    string
	Status          EdgeServerStatus
	LastHealthCheck *time.Time
}

// EdgeBotStatus is the edge-bot state machine.
type EdgeBotStatus int

const (
	StandingBy                     EdgeBotStatus = 1
	PushingItemsToCart              EdgeBotStatus = 2
	PurchasingCart                  EdgeBotStatus = 3
	WaitingForSufficientFunds       EdgeBotStatus = 4
	BlockedForTooManyPurchases      EdgeBotStatus = 5
	BlockedForUnknownReason         EdgeBotStatus = 6
)

func (s EdgeBotStatus) String() string {
	switch s {
	case StandingBy:
		return "STANDING_BY"
	case PushingItemsToCart:
		return "PUSHING_ITEMS_TO_CART"
	case PurchasingCart:
		return "PURCHASING_CART"
	case WaitingForSufficientFunds:
		return "WAITING_FOR_SUFFICIENT_FUNDS"
	case BlockedForTooManyPurchases:
		return "BLOCKED_FOR_TOO_MANY_PURCHASES"
	case BlockedForUnknownReason:
		return "BLOCKED_FOR_UNKNOWN_REASON"
	default:
		return "UNKNOWN"
	}
}

// EdgeBotType selects the bot pool a dispatch cycle draws from.
type EdgeBotType int

const (
	BotTypePurchases          EdgeBotType = 1
	BotTypeDelivery           EdgeBotType = 2
	BotTypeAnticheatPurchases EdgeBotType = 3
	BotTypeNotification       EdgeBotType = 4
)

// EdgeBot is a storefront account used to perform purchases, addressed in
// protocol calls by NetworkID.
type EdgeBot struct {
	ID           int64
	NetworkID    string
	CurrencyCode string
	BotType      EdgeBotType
	Status       EdgeBotStatus
}

// TaskStatus is the lifecycle of a remote asynchronous edge-server operation.
type TaskStatus string

const (
	TaskPending TaskStatus = "PENDING"
	TaskRunning TaskStatus = "RUNNING"
	TaskSuccess TaskStatus = "SUCCESS"
	TaskFailure TaskStatus = "FAILURE"
)

// TaskName identifies which remote operation a task correlates to, used to
// pick the result handler and decode task_result's shape.
type TaskName string

const (
	TaskAddSubidsToCart           TaskName = "add_subids_to_cart"
	TaskCheckoutCart              TaskName = "checkout_cart"
	TaskGetExternalLinkFromTransID TaskName = "get_external_link_from_transid"
	TaskCartReset                 TaskName = "cart_reset"
)

// EdgeTask is a persisted outstanding remote task and its correlation
// metadata. ShoppingCartGID is only set on checkout_cart and
// get_external_link_from_transid tasks, letting the bitcoin settlement
// handler recover which cart a transaction/link task belongs to without an
// extra lookup.
type EdgeTask struct {
	TaskID          string
	TaskName        TaskName
	TaskStatus      TaskStatus
	EdgeBotID       int64
	EdgeServerID    int64
	CreatedAt       time.Time
	ShoppingCartGID *string
}
