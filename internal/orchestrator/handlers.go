package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strconv"

	"github.com/timour/edgedispatch/internal/botstate"
	"github.com/timour/edgedispatch/internal/broker"
	"github.com/timour/edgedispatch/internal/domain"
	"github.com/timour/edgedispatch/internal/edgeclient"
	"github.com/timour/edgedispatch/internal/store"
	"github.com/timour/edgedispatch/internal/wallet"
)

var invoiceIDPattern = regexp.MustCompile(`/i/([a-zA-Z0-9]+)`)

type relationRolledBackPayload struct {
	TaskID string `json:"task_id"`
}

type relationPurchasedPayload struct {
	ShoppingCartGID string `json:"shopping_cart_gid"`
}

type edgeBotBlockedPayload struct {
	BotNetworkID string `json:"bot_network_id"`
	Reason       string `json:"reason"`
}

func (a *App) publishBotBlocked(ctx context.Context, botNetworkID, reason string) {
	body, err := json.Marshal(edgeBotBlockedPayload{BotNetworkID: botNetworkID, Reason: reason})
	if err != nil {
		a.Logger.Error("marshal edgebot.blocked event", "bot", botNetworkID, "error", err)
		return
	}
	a.publish(ctx, broker.EdgeBotBlockedEvent, body)
}

func (a *App) publishPurchased(ctx context.Context, shoppingCartGID string) {
	body, err := json.Marshal(relationPurchasedPayload{ShoppingCartGID: shoppingCartGID})
	if err != nil {
		a.Logger.Error("marshal relation.purchased event", "gid", shoppingCartGID, "error", err)
		return
	}
	a.publish(ctx, broker.RelationPurchasedEvent, body)
}

// handleCartResult is add_subids_to_cart's result handler: apply the
// reconciler's transitions, then either dispatch checkout for the surviving
// items or drop the bot back to STANDING_BY.
func (a *App) handleCartResult(ctx context.Context, pt store.PendingTask, raw edgeclient.RawTaskResult) {
	result, err := edgeclient.DecodeCartResult(raw)
	if err != nil {
		a.Logger.Error("handleCartResult: decode", "task_id", pt.Task.TaskID, "error", err)
		return
	}

	if err := a.Reconciler.ProcessCartResult(ctx, pt.Task.TaskID, pt.BotNetworkID, result); err != nil {
		a.Logger.Error("handleCartResult: reconcile", "task_id", pt.Task.TaskID, "error", err)
		return
	}
	if len(result.FailedItems) > 0 || len(result.FailedShoppingCartGIDs) > 0 {
		if body, err := json.Marshal(relationRolledBackPayload{TaskID: pt.Task.TaskID}); err != nil {
			a.Logger.Error("handleCartResult: marshal rollback event", "task_id", pt.Task.TaskID, "error", err)
		} else {
			a.publish(ctx, broker.RelationRolledBackEvent, body)
		}
	}

	hasSuccess := len(result.Items) > 0
	if err := a.Gateway.Bots.SetStatus(ctx, pt.BotNetworkID, botstate.AfterCartPushResult(hasSuccess)); err != nil {
		a.Logger.Error("handleCartResult: set bot status", "bot", pt.BotNetworkID, "error", err)
	}
	if !hasSuccess {
		return
	}

	giftee := a.resolveGiftee(result.Items[0])
	dispatch, cl := a.Edge.Checkout(ctx, pt.ServerIPAddress, pt.BotNetworkID, giftee, string(a.Config.PaymentMethod))
	if cl.Kind != edgeclient.Ok {
		a.Logger.Info("handleCartResult: checkout dispatch failed", "bot", pt.BotNetworkID, "classification", cl.String())
		if err := a.Gateway.Bots.SetStatus(ctx, pt.BotNetworkID, domain.BlockedForUnknownReason); err != nil {
			a.Logger.Error("handleCartResult: block bot", "bot", pt.BotNetworkID, "error", err)
		}
		a.publishBotBlocked(ctx, pt.BotNetworkID, "checkout dispatch failed: "+cl.String())
		return
	}

	gid := result.ShoppingCartGID
	if err := a.Tasks.Create(ctx, pt.Task.EdgeServerID, pt.Task.EdgeBotID, dispatch.TaskID, domain.TaskCheckoutCart, &gid); err != nil {
		a.Logger.Error("handleCartResult: register checkout task", "task_id", dispatch.TaskID, "error", err)
	}
}

// resolveGiftee derives the checkout giftee_account_id from the first
// successful item's user id, falling back to the legacy global config value
// when absent.
func (a *App) resolveGiftee(first edgeclient.Item) string {
	if first.UserID != 0 {
		return strconv.FormatInt(first.UserID, 10)
	}
	return a.Config.GifteeAccountID
}

// handleCheckoutResult is checkout_cart's result handler: an integer result
// is a terminal ETransactionResult code; a map with result=="OK" either
// commits the purchase (account payment) or continues to the bitcoin
// settlement flow.
func (a *App) handleCheckoutResult(ctx context.Context, pt store.PendingTask, raw edgeclient.RawTaskResult) {
	result, err := edgeclient.DecodeCheckoutResult(raw)
	if err != nil {
		a.Logger.Error("handleCheckoutResult: decode", "task_id", pt.Task.TaskID, "error", err)
		return
	}

	if result.IsCode {
		outcome := checkoutOutcomeForCode(result.Code)
		if err := a.Gateway.Bots.SetStatus(ctx, pt.BotNetworkID, botstate.AfterCheckout(outcome)); err != nil {
			a.Logger.Error("handleCheckoutResult: set bot status", "bot", pt.BotNetworkID, "error", err)
		}
		return
	}

	obj := result.Object
	if obj.Result != "OK" {
		a.Logger.Info("handleCheckoutResult: unclassified checkout failure", "bot", pt.BotNetworkID, "result", obj.Result)
		if err := a.Gateway.Bots.SetStatus(ctx, pt.BotNetworkID, botstate.AfterCheckout(botstate.CheckoutTransportOrProtocolError)); err != nil {
			a.Logger.Error("handleCheckoutResult: block bot", "bot", pt.BotNetworkID, "error", err)
		}
		a.publishBotBlocked(ctx, pt.BotNetworkID, "unclassified checkout failure: "+obj.Result)
		return
	}

	gid := pt.Task.ShoppingCartGID
	if gid == nil {
		a.Logger.Error("handleCheckoutResult: checkout task missing shopping_cart_gid", "task_id", pt.Task.TaskID)
		if err := a.Gateway.Bots.SetStatus(ctx, pt.BotNetworkID, domain.BlockedForUnknownReason); err != nil {
			a.Logger.Error("handleCheckoutResult: block bot", "bot", pt.BotNetworkID, "error", err)
		}
		a.publishBotBlocked(ctx, pt.BotNetworkID, "checkout task missing shopping_cart_gid")
		return
	}

	switch obj.PaymentMethod {
	case "bitcoin":
		if err := a.Gateway.Bots.SetStatus(ctx, pt.BotNetworkID, botstate.AfterCheckout(botstate.CheckoutBitcoinPending)); err != nil {
			a.Logger.Error("handleCheckoutResult: set bot status", "bot", pt.BotNetworkID, "error", err)
		}

		linkResp, cl := a.Edge.TransactionLink(ctx, pt.ServerIPAddress, pt.BotNetworkID, obj.TransID)
		if cl.Kind != edgeclient.Ok {
			a.Logger.Info("handleCheckoutResult: transaction_link dispatch failed", "bot", pt.BotNetworkID, "classification", cl.String())
			if err := a.Gateway.Bots.SetStatus(ctx, pt.BotNetworkID, botstate.AfterCheckout(botstate.CheckoutTransportOrProtocolError)); err != nil {
				a.Logger.Error("handleCheckoutResult: block bot", "bot", pt.BotNetworkID, "error", err)
			}
			a.publishBotBlocked(ctx, pt.BotNetworkID, "transaction_link dispatch failed: "+cl.String())
			return
		}

		if err := a.Tasks.Create(ctx, pt.Task.EdgeServerID, pt.Task.EdgeBotID, linkResp.TaskID, domain.TaskGetExternalLinkFromTransID, gid); err != nil {
			a.Logger.Error("handleCheckoutResult: register transaction_link task", "task_id", linkResp.TaskID, "error", err)
		}

	default: // steamaccount
		if err := a.Reconciler.CommitPurchasedRelations(ctx, *gid, a.Config.OwnerID); err != nil {
			a.Logger.Error("handleCheckoutResult: commit purchase", "gid", *gid, "error", err)
			return
		}
		a.publishPurchased(ctx, *gid)
		if err := a.Gateway.Bots.SetStatus(ctx, pt.BotNetworkID, domain.StandingBy); err != nil {
			a.Logger.Error("handleCheckoutResult: set bot status", "bot", pt.BotNetworkID, "error", err)
		}
	}
}

func checkoutOutcomeForCode(code edgeclient.CheckoutResultCode) botstate.CheckoutOutcome {
	switch code {
	case edgeclient.ETransactionSuccess:
		return botstate.CheckoutAccountSuccess
	case edgeclient.ETransactionInsufficientFunds:
		return botstate.CheckoutInsufficientFunds
	case edgeclient.ETransactionTooManyPurchases:
		return botstate.CheckoutTooManyPurchases
	default:
		return botstate.CheckoutOtherFailure
	}
}

// handleExternalLinkResult is get_external_link_from_transid's result
// handler: resolve the invoice, verify it is still new, settle it via the
// wallet client, then commit the purchase and reset the cart. Any failure
// leaves the cart unreset and blocks the bot, except an insufficient wallet
// balance, which moves the bot to WAITING_FOR_SUFFICIENT_FUNDS instead.
func (a *App) handleExternalLinkResult(ctx context.Context, pt store.PendingTask, raw edgeclient.RawTaskResult) {
	invoiceURL, err := edgeclient.DecodeExternalLinkResult(raw)
	if err != nil {
		a.Logger.Error("handleExternalLinkResult: decode", "task_id", pt.Task.TaskID, "error", err)
		a.blockBot(ctx, pt.BotNetworkID)
		return
	}

	matches := invoiceIDPattern.FindStringSubmatch(invoiceURL)
	if len(matches) != 2 {
		a.Logger.Info("handleExternalLinkResult: invoice id not found in url", "url", invoiceURL)
		a.blockBot(ctx, pt.BotNetworkID)
		return
	}
	invoiceID := matches[1]

	invoice, err := a.Wallet.FetchInvoice(ctx, invoiceID)
	if err != nil {
		a.Logger.Error("handleExternalLinkResult: fetch invoice", "invoice_id", invoiceID, "error", err)
		a.blockBot(ctx, pt.BotNetworkID)
		return
	}

	if invoice.Status != "new" {
		a.Logger.Info("handleExternalLinkResult: invoice not new", "invoice_id", invoiceID, "status", invoice.Status)
		a.blockBot(ctx, pt.BotNetworkID)
		return
	}

	gid := pt.Task.ShoppingCartGID
	if gid == nil {
		a.Logger.Error("handleExternalLinkResult: task missing shopping_cart_gid", "task_id", pt.Task.TaskID)
		a.blockBot(ctx, pt.BotNetworkID)
		return
	}

	if err := a.Wallet.SendMoney(ctx, *gid, invoice.BitcoinAddress, invoice.BTCDue); err != nil {
		var insufficient *wallet.ErrInsufficientBalance
		insufficientBalance := errors.As(err, &insufficient)
		a.Logger.Info("handleExternalLinkResult: send_money failed", "invoice_id", invoiceID, "error", err)
		if err := a.Gateway.Bots.SetStatus(ctx, pt.BotNetworkID, botstate.AfterExternalFunds(false, insufficientBalance)); err != nil {
			a.Logger.Error("handleExternalLinkResult: set bot status", "bot", pt.BotNetworkID, "error", err)
		}
		if !insufficientBalance {
			a.publishBotBlocked(ctx, pt.BotNetworkID, "external link settlement failed")
		}
		return
	}

	if err := a.Reconciler.CommitPurchasedRelations(ctx, *gid, a.Config.OwnerID); err != nil {
		a.Logger.Error("handleExternalLinkResult: commit purchase", "gid", *gid, "error", err)
		a.blockBot(ctx, pt.BotNetworkID)
		return
	}
	a.publishPurchased(ctx, *gid)

	if resetResp, cl := a.Edge.CartReset(ctx, pt.ServerIPAddress, pt.BotNetworkID); cl.Kind == edgeclient.Ok {
		if err := a.Tasks.Create(ctx, pt.Task.EdgeServerID, pt.Task.EdgeBotID, resetResp.TaskID, domain.TaskCartReset, nil); err != nil {
			a.Logger.Error("handleExternalLinkResult: register cart_reset task", "task_id", resetResp.TaskID, "error", err)
		}
	} else {
		a.Logger.Info("handleExternalLinkResult: cart_reset dispatch failed", "bot", pt.BotNetworkID, "classification", cl.String())
	}

	if err := a.Gateway.Bots.SetStatus(ctx, pt.BotNetworkID, botstate.AfterExternalFunds(true, false)); err != nil {
		a.Logger.Error("handleExternalLinkResult: set bot status", "bot", pt.BotNetworkID, "error", err)
	}
}

func (a *App) blockBot(ctx context.Context, botNetworkID string) {
	if err := a.Gateway.Bots.SetStatus(ctx, botNetworkID, domain.BlockedForUnknownReason); err != nil {
		a.Logger.Error("block bot", "bot", botNetworkID, "error", err)
	}
	a.publishBotBlocked(ctx, botNetworkID, "external link settlement failed")
}
