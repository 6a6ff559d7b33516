package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/timour/edgedispatch/internal/broker"
	"github.com/timour/edgedispatch/internal/domain"
	"github.com/timour/edgedispatch/internal/edgeclient"
	"github.com/timour/edgedispatch/internal/store"
)

type inviteSentPayload struct {
	UserID   int64  `json:"user_id"`
	BotID    string `json:"bot_network_id"`
	Currency string `json:"currency"`
}

// SendInvitations handles each (user_id, currency) pair selected at
// UNCOMMITTED: pick a bot and its server, healthcheck, friend every user not
// already on the bot's friend list, then move the user's relations for that
// currency to WAITING_FOR_INVITE.
func (a *App) SendInvitations(ctx context.Context, anticheatPolicy bool) error {
	botType := domain.BotTypePurchases
	if anticheatPolicy {
		botType = domain.BotTypeAnticheatPurchases
	}

	batch, err := a.Selector.Select(ctx, a.Config.OwnerID, domain.Uncommitted, anticheatPolicy, a.Config.UseInformed)
	if err != nil {
		return err
	}

	for currency, group := range byCurrency(batch) {
		a.sendInvitationsForCurrency(ctx, currency, botType, group)
	}

	return nil
}

// sendInvitationsForCurrency handles one currency's worth of work: it picks
// exactly one bot and server for the whole group.
func (a *App) sendInvitationsForCurrency(ctx context.Context, currency string, botType domain.EdgeBotType, group map[int64][]domain.SelectedItem) {
	bot, err := a.Gateway.Bots.GetStandingByForCurrency(ctx, currency, botType)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			a.Logger.Info("send_invitations: no standing-by bot", "currency", currency)
			return
		}
		a.Logger.Error("send_invitations: get bot", "currency", currency, "error", err)
		return
	}

	server, err := a.Gateway.Servers.GetEnabledForCurrency(ctx, currency)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			a.Logger.Info("send_invitations: no enabled server", "currency", currency)
			return
		}
		a.Logger.Error("send_invitations: get server", "currency", currency, "error", err)
		return
	}

	if cl := a.Edge.Healthcheck(ctx, server.IPAddress); cl.Kind != edgeclient.Ok {
		a.Logger.Info("send_invitations: server unhealthy, skipping", "currency", currency, "classification", cl.String())
		return
	}
	if err := a.Gateway.Servers.UpdateHealthCheck(ctx, server.ID); err != nil {
		a.Logger.Error("send_invitations: update healthcheck", "error", err)
	}

	friendList, cl := a.Edge.GetFriendsList(ctx, server.IPAddress, bot.NetworkID)
	if cl.Kind != edgeclient.Ok {
		a.Logger.Info("send_invitations: friend list unavailable, skipping", "bot", bot.NetworkID, "classification", cl.String())
		return
	}
	friendSet := map[int64]bool{}
	for _, id := range friendList {
		friendSet[id] = true
	}

	for userID, items := range group {
		if len(items) == 0 {
			continue
		}

		steamID, err := strconv.ParseInt(items[0].UserExternalAccountID, 10, 64)
		if err != nil {
			a.Logger.Info("send_invitations: no numeric external account id, skipping", "user_id", userID)
			continue
		}

		if !friendSet[steamID] {
			resp, cl := a.Edge.AddFriend(ctx, server.IPAddress, bot.NetworkID, steamID)
			if cl.Kind != edgeclient.Ok {
				a.Logger.Info("send_invitations: add_friend failed, skipping user", "user_id", userID, "classification", cl.String())
				continue
			}
			if resp.IsFull() {
				a.Logger.Info("send_invitations: bot friend list full, stopping currency", "bot", bot.NetworkID, "currency", currency)
				return
			}
		}

		for _, item := range items {
			if err := a.Reconciler.CommitInvite(ctx, item.Kind, item.RelationID, bot.NetworkID); err != nil {
				a.Logger.Error("send_invitations: commit invite", "relation_id", item.RelationID, "error", err)
			}
		}

		if body, err := json.Marshal(inviteSentPayload{UserID: userID, BotID: bot.NetworkID, Currency: currency}); err != nil {
			a.Logger.Error("send_invitations: marshal invite event", "user_id", userID, "error", err)
		} else {
			a.publish(ctx, broker.InviteSentEvent, body)
		}
	}
}

// byCurrency inverts a selector.Batch (user -> currency -> items) into
// (currency -> user -> items), the grouping send_invitations dispatches a
// single bot/server pick against.
func byCurrency(batch map[int64]map[string][]domain.SelectedItem) map[string]map[int64][]domain.SelectedItem {
	out := map[string]map[int64][]domain.SelectedItem{}
	for userID, byCur := range batch {
		for currency, items := range byCur {
			if out[currency] == nil {
				out[currency] = map[int64][]domain.SelectedItem{}
			}
			out[currency][userID] = items
		}
	}
	return out
}
