package orchestrator

import (
	"context"
	"errors"
	"strconv"

	"github.com/timour/edgedispatch/internal/domain"
	"github.com/timour/edgedispatch/internal/edgeclient"
	"github.com/timour/edgedispatch/internal/store"
)

// PushRelations handles each (user_id, currency) pair selected at
// WAITING_FOR_INVITE: require the committed bot be STANDING_BY and the user
// already friended, pre-claim the bot, dispatch cart/push/, and on success
// move the relations to PUSHED_TO_CART and assign the request to the owner.
func (a *App) PushRelations(ctx context.Context, anticheatPolicy bool) error {
	batch, err := a.Selector.Select(ctx, a.Config.OwnerID, domain.WaitingForInvite, anticheatPolicy, a.Config.UseInformed)
	if err != nil {
		return err
	}

	for _, byCurrency := range batch {
		for currency, items := range byCurrency {
			a.pushRelationsForUser(ctx, currency, items)
		}
	}

	return nil
}

func (a *App) pushRelationsForUser(ctx context.Context, currency string, items []domain.SelectedItem) {
	if len(items) == 0 {
		return
	}

	first, err := a.Gateway.Relations.Get(ctx, items[0].Kind, items[0].RelationID)
	if err != nil {
		a.Logger.Error("push_relations: get relation", "relation_id", items[0].RelationID, "error", err)
		return
	}
	if first.CommittedOnBot == nil {
		a.Logger.Info("push_relations: relation has no committed bot, skipping", "relation_id", items[0].RelationID)
		return
	}
	botNetworkID := *first.CommittedOnBot

	bot, err := a.Gateway.Bots.GetByNetworkID(ctx, botNetworkID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			a.Logger.Info("push_relations: committed bot not found", "bot", botNetworkID)
			return
		}
		a.Logger.Error("push_relations: get bot", "bot", botNetworkID, "error", err)
		return
	}
	if bot.Status != domain.StandingBy {
		a.Logger.Info("push_relations: bot bound but not standing-by, skipping", "bot", botNetworkID)
		return
	}

	server, err := a.Gateway.Servers.GetEnabledForCurrency(ctx, currency)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			a.Logger.Info("push_relations: no enabled server", "currency", currency)
			return
		}
		a.Logger.Error("push_relations: get server", "currency", currency, "error", err)
		return
	}

	steamID, err := strconv.ParseInt(items[0].UserExternalAccountID, 10, 64)
	if err != nil {
		a.Logger.Info("push_relations: no numeric external account id, skipping", "relation_id", items[0].RelationID)
		return
	}

	friendList, cl := a.Edge.GetFriendsList(ctx, server.IPAddress, bot.NetworkID)
	if cl.Kind != edgeclient.Ok {
		a.Logger.Info("push_relations: friend list unavailable, skipping", "bot", bot.NetworkID, "classification", cl.String())
		return
	}
	friended := false
	for _, id := range friendList {
		if id == steamID {
			friended = true
			break
		}
	}
	if !friended {
		a.Logger.Info("push_relations: user not yet friended, skipping", "bot", bot.NetworkID, "steam_id", steamID)
		return
	}

	// Pre-claim the bot before the HTTP call so a crash between send and
	// receive leaves it unselectable until a task poll reconciles it.
	if err := a.Gateway.Bots.SetStatus(ctx, bot.NetworkID, domain.PushingItemsToCart); err != nil {
		a.Logger.Error("push_relations: pre-claim bot", "bot", bot.NetworkID, "error", err)
		return
	}

	wireItems := make([]edgeclient.Item, 0, len(items))
	for _, item := range items {
		wireItems = append(wireItems, edgeclient.Item{
			SubID:        item.SubID,
			UserID:       steamID,
			RelationType: item.Kind,
			RelationID:   item.RelationID,
		})
	}

	resp, cl := a.Edge.CartPush(ctx, server.IPAddress, bot.NetworkID, wireItems)
	if cl.Kind != edgeclient.Ok {
		a.Logger.Info("push_relations: cart_push failed, blocking bot", "bot", bot.NetworkID, "classification", cl.String())
		if err := a.Gateway.Bots.SetStatus(ctx, bot.NetworkID, domain.BlockedForUnknownReason); err != nil {
			a.Logger.Error("push_relations: block bot", "bot", bot.NetworkID, "error", err)
		}
		a.publishBotBlocked(ctx, bot.NetworkID, "cart_push failed: "+cl.String())
		return
	}

	if err := a.Tasks.Create(ctx, server.ID, bot.ID, resp.TaskID, domain.TaskAddSubidsToCart, nil); err != nil {
		a.Logger.Error("push_relations: register task", "task_id", resp.TaskID, "error", err)
	}

	assigned := map[domain.RequestKind]map[int64]bool{}
	for _, item := range items {
		if err := a.Reconciler.CommitPush(ctx, item.Kind, item.RelationID, resp.TaskID, bot.NetworkID); err != nil {
			a.Logger.Error("push_relations: commit push", "relation_id", item.RelationID, "error", err)
			continue
		}

		if assigned[item.Kind] == nil {
			assigned[item.Kind] = map[int64]bool{}
		}
		if assigned[item.Kind][item.RequestID] {
			continue
		}
		assigned[item.Kind][item.RequestID] = true

		if err := a.Gateway.Requests.Assign(ctx, item.Kind, item.RequestID, a.Config.OwnerID); err != nil {
			a.Logger.Error("push_relations: assign request", "request_id", item.RequestID, "error", err)
		}
	}
}
