// Package reconciler applies relation-commitment transitions — forward
// moves and rollbacks — and cascades the request-level assignment/accept
// effects that follow a purchase. Grounded on
// original_source/controllers/edge.py's process_cart_result and
// commit_purchased_relations, generalized from peewee ORM calls into
// Gateway interface calls.
package reconciler

import (
	"context"
	"fmt"

	"github.com/timour/edgedispatch/internal/domain"
	"github.com/timour/edgedispatch/internal/edgeclient"
	"github.com/timour/edgedispatch/internal/store"
)

type Reconciler struct {
	gateway *store.Gateway
}

func New(gateway *store.Gateway) *Reconciler {
	return &Reconciler{gateway: gateway}
}

// ProcessCartResult applies add_subids_to_cart's result in the load-bearing
// order this demands: blanket rollback of the task first, then
// per-gid rollback of previously-committed carts that failed, then
// per-item failures, then per-item successes — the successes must come
// last because they overwrite the blanket rollback for items that did
// survive.
func (r *Reconciler) ProcessCartResult(ctx context.Context, taskID, botNetworkID string, result edgeclient.CartResult) error {
	if err := r.gateway.Relations.RollbackPushedRelations(ctx, taskID); err != nil {
		return fmt.Errorf("rollback pushed relations for task %s: %w", taskID, err)
	}

	for _, gid := range result.FailedShoppingCartGIDs {
		if err := r.gateway.Relations.RollbackFailedRelations(ctx, gid); err != nil {
			return fmt.Errorf("rollback failed relations for gid %s: %w", gid, err)
		}
	}

	for _, item := range result.FailedItems {
		botNetworkIDCopy := botNetworkID
		if err := r.gateway.Relations.SetCommitment(ctx, item.RelationType, item.RelationID, domain.FailedToAddToCart, &taskID, &botNetworkIDCopy, nil); err != nil {
			return fmt.Errorf("set relation %d failed-to-add-cart: %w", item.RelationID, err)
		}
	}

	for _, item := range result.Items {
		gidCopy := result.ShoppingCartGID
		if err := r.gateway.Relations.SetCommitment(ctx, item.RelationType, item.RelationID, domain.AddedToCart, nil, nil, &gidCopy); err != nil {
			return fmt.Errorf("set relation %d added-to-cart: %w", item.RelationID, err)
		}
	}

	return nil
}

// CommitPurchasedRelations implements the assignment cascade: every
// relation bound to shoppingCartGID becomes PURCHASED and sent; its request
// is assigned to ownerID if unassigned; then any request with zero unsent
// relations left, assigned to ownerID, is accepted. Safe to call twice for
// the same gid: Assign only writes when unassigned and Accept is a no-op
// once already true.
func (r *Reconciler) CommitPurchasedRelations(ctx context.Context, shoppingCartGID string, ownerID int64) error {
	relations, err := r.gateway.Relations.MarkPurchasedByShoppingCartGID(ctx, shoppingCartGID)
	if err != nil {
		return fmt.Errorf("mark relations purchased for gid %s: %w", shoppingCartGID, err)
	}

	type requestKey struct {
		kind domain.RequestKind
		id   int64
	}
	seen := map[requestKey]bool{}

	for _, rel := range relations {
		if err := r.gateway.Requests.Assign(ctx, rel.Kind, rel.RequestID, ownerID); err != nil {
			return fmt.Errorf("assign request %d: %w", rel.RequestID, err)
		}
		seen[requestKey{rel.Kind, rel.RequestID}] = true
	}

	for key := range seen {
		unsent, err := r.gateway.Relations.CountUnsent(ctx, key.kind, key.id)
		if err != nil {
			return fmt.Errorf("count unsent for request %d: %w", key.id, err)
		}
		if unsent > 0 {
			continue
		}

		req, err := r.gateway.Requests.Get(ctx, key.kind, key.id)
		if err != nil {
			return fmt.Errorf("get request %d: %w", key.id, err)
		}
		if req.AssignedUserID == nil || *req.AssignedUserID != ownerID {
			continue
		}

		if err := r.gateway.Requests.Accept(ctx, key.kind, key.id); err != nil {
			return fmt.Errorf("accept request %d: %w", key.id, err)
		}
	}

	return nil
}

// CommitInvite moves a relation from UNCOMMITTED to WAITING_FOR_INVITE
// on send_invitations success.
func (r *Reconciler) CommitInvite(ctx context.Context, kind domain.RequestKind, relationID int64, botNetworkID string) error {
	return r.gateway.Relations.SetCommitment(ctx, kind, relationID, domain.WaitingForInvite, nil, &botNetworkID, nil)
}

// CommitPush moves a relation from WAITING_FOR_INVITE to PUSHED_TO_CART
// on push_relations success.
func (r *Reconciler) CommitPush(ctx context.Context, kind domain.RequestKind, relationID int64, taskID, botNetworkID string) error {
	return r.gateway.Relations.SetCommitment(ctx, kind, relationID, domain.PushedToCart, &taskID, &botNetworkID, nil)
}
