// Package botstate implements the edge-bot state machine: which statuses a
// bot may move to from where, and the claim-before-dispatch rule that keeps
// at most one outbound call in flight per bot.
package botstate

import "github.com/timour/edgedispatch/internal/domain"

// Selectable reports whether a bot in this status may be picked by the
// bot selector (STANDING_BY only).
func Selectable(status domain.EdgeBotStatus) bool {
	return status == domain.StandingBy
}

// CanDispatchCartPush reports whether a cart-push dispatch may claim this
// bot. Any status may transition to PUSHING_ITEMS_TO_CART in the state
// table, but the orchestrator only ever dispatches from STANDING_BY — the
// selector already enforces that upstream: at most one bot per (currency,
// type) is non-STANDING_BY for an owner at a time.
func CanDispatchCartPush(status domain.EdgeBotStatus) bool {
	return status == domain.StandingBy
}

// AfterCartPushResult returns the bot's next status once an
// add_subids_to_cart task result has been processed: STANDING_BY if nothing
// survived to checkout, otherwise PURCHASING_CART once checkout is
// dispatched.
func AfterCartPushResult(hasSuccessfulItems bool) domain.EdgeBotStatus {
	if hasSuccessfulItems {
		return domain.PurchasingCart
	}
	return domain.StandingBy
}

// CheckoutOutcome classifies a checkout/external-funds result into the bot
// status it drives.
type CheckoutOutcome int

const (
	CheckoutAccountSuccess CheckoutOutcome = iota
	CheckoutBitcoinPending
	CheckoutInsufficientFunds
	CheckoutTooManyPurchases
	CheckoutOtherFailure
	CheckoutTransportOrProtocolError
)

// AfterCheckout returns the bot's next status for a given checkout outcome.
func AfterCheckout(outcome CheckoutOutcome) domain.EdgeBotStatus {
	switch outcome {
	case CheckoutAccountSuccess:
		return domain.StandingBy
	case CheckoutBitcoinPending:
		return domain.PurchasingCart
	case CheckoutInsufficientFunds:
		return domain.WaitingForSufficientFunds
	case CheckoutTooManyPurchases:
		return domain.BlockedForTooManyPurchases
	case CheckoutOtherFailure:
		return domain.StandingBy
	case CheckoutTransportOrProtocolError:
		return domain.BlockedForUnknownReason
	default:
		return domain.BlockedForUnknownReason
	}
}

// AfterExternalFunds returns the bot's next status once an external
// (bitcoin) transaction has been resolved.
func AfterExternalFunds(success bool, insufficientBalance bool) domain.EdgeBotStatus {
	switch {
	case success:
		return domain.StandingBy
	case insufficientBalance:
		return domain.WaitingForSufficientFunds
	default:
		return domain.BlockedForUnknownReason
	}
}
