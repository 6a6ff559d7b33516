package reconciler_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/timour/edgedispatch/internal/domain"
	"github.com/timour/edgedispatch/internal/edgeclient"
	"github.com/timour/edgedispatch/internal/reconciler"
	"github.com/timour/edgedispatch/internal/store/storetest"
)

func seedPushedRelation(g *storetest.Gateway, id int64, taskID string) {
	g.SeedRequest(domain.Request{ID: id, Kind: domain.UserRequestKind, Visible: true, Paid: true, UserID: 5})
	g.SeedRelation(domain.Relation{
		ID: id, Kind: domain.UserRequestKind, RequestID: id, ProductID: id,
		CommitmentLevel: domain.PushedToCart, TaskID: &taskID,
	})
}

// TestProcessCartResultPartialFailure covers a cart push where some items
// succeed and others fail, alongside an item never mentioned in either list.
func TestProcessCartResultPartialFailure(t *testing.T) {
	g := storetest.New()
	const taskID = "task-1"

	seedPushedRelation(g, 1, taskID) // R1: will fail
	seedPushedRelation(g, 2, taskID) // R2: will succeed
	seedPushedRelation(g, 3, taskID) // R3: blanket rollback only

	rec := reconciler.New(g.AsGateway())

	result := edgeclient.CartResult{
		Items: []edgeclient.Item{
			{RelationType: domain.UserRequestKind, RelationID: 2, UserID: 5},
		},
		FailedItems: []edgeclient.Item{
			{RelationType: domain.UserRequestKind, RelationID: 1, UserID: 5},
		},
		ShoppingCartGID: "gid-xyz",
	}

	err := rec.ProcessCartResult(context.Background(), taskID, "bot-1", result)
	require.NoError(t, err)

	r1, _ := g.AsGateway().Relations.Get(context.Background(), domain.UserRequestKind, 1)
	r2, _ := g.AsGateway().Relations.Get(context.Background(), domain.UserRequestKind, 2)
	r3, _ := g.AsGateway().Relations.Get(context.Background(), domain.UserRequestKind, 3)

	require.Equal(t, domain.FailedToAddToCart, r1.CommitmentLevel)
	require.Equal(t, domain.AddedToCart, r2.CommitmentLevel)
	require.Equal(t, "gid-xyz", *r2.ShoppingCartGID)
	require.Equal(t, domain.Uncommitted, r3.CommitmentLevel)
}

// TestCommitPurchasedRelationsIsIdempotent verifies a retried commit for the
// same shopping cart does not double-assign or double-accept.
func TestCommitPurchasedRelationsIsIdempotent(t *testing.T) {
	g := storetest.New()
	const gid = "gid-1"

	g.SeedRequest(domain.Request{ID: 10, Kind: domain.UserRequestKind, Visible: true, Paid: true, UserID: 5})
	g.SeedRelation(domain.Relation{
		ID: 100, Kind: domain.UserRequestKind, RequestID: 10, ProductID: 1,
		CommitmentLevel: domain.AddedToCart, ShoppingCartGID: strPtr(gid),
	})

	rec := reconciler.New(g.AsGateway())

	require.NoError(t, rec.CommitPurchasedRelations(context.Background(), gid, 999))
	require.NoError(t, rec.CommitPurchasedRelations(context.Background(), gid, 999))

	req, err := g.AsGateway().Requests.Get(context.Background(), domain.UserRequestKind, 10)
	require.NoError(t, err)
	require.True(t, req.Accepted)
	require.NotNil(t, req.AssignedUserID)
	require.Equal(t, int64(999), *req.AssignedUserID)

	rel, err := g.AsGateway().Relations.Get(context.Background(), domain.UserRequestKind, 100)
	require.NoError(t, err)
	require.Equal(t, domain.Purchased, rel.CommitmentLevel)
	require.True(t, rel.Sent)
}

func strPtr(s string) *string { return &s }
