package selector_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/timour/edgedispatch/internal/domain"
	"github.com/timour/edgedispatch/internal/selector"
	"github.com/timour/edgedispatch/internal/store/storetest"
)

func TestSelectDedupesAcrossKindsPaidWins(t *testing.T) {
	g := storetest.New()
	g.SeedProduct(domain.Product{ID: 1, SubID: "200", PriceCurrency: "USD"})

	g.SeedRequest(domain.Request{ID: 10, Kind: domain.UserRequestKind, Visible: true, Paid: true, UserID: 5})
	g.SeedRelation(domain.Relation{ID: 100, Kind: domain.UserRequestKind, RequestID: 10, ProductID: 1, CommitmentLevel: domain.Uncommitted})

	g.SeedRequest(domain.Request{ID: 20, Kind: domain.PaidRequestKind, Visible: true, Authed: true, UserID: 5})
	g.SeedRelation(domain.Relation{ID: 200, Kind: domain.PaidRequestKind, RequestID: 20, ProductID: 1, CommitmentLevel: domain.Uncommitted})

	sel := selector.New(g.AsGateway())
	batch, err := sel.Select(context.Background(), 999, domain.Uncommitted, false, false)
	require.NoError(t, err)

	items := batch[5]["USD"]
	require.Len(t, items, 1)
	require.Equal(t, domain.PaidRequestKind, items[0].Kind)
	require.Equal(t, int64(200), items[0].RelationID)
}

func TestSelectSkipsAnticheatMismatch(t *testing.T) {
	g := storetest.New()
	g.SeedProduct(domain.Product{ID: 1, SubID: "200", PriceCurrency: "USD", HasAnticheat: true})
	g.SeedRequest(domain.Request{ID: 10, Kind: domain.UserRequestKind, Visible: true, Paid: true, UserID: 5})
	g.SeedRelation(domain.Relation{ID: 100, Kind: domain.UserRequestKind, RequestID: 10, ProductID: 1, CommitmentLevel: domain.Uncommitted})

	sel := selector.New(g.AsGateway())
	batch, err := sel.Select(context.Background(), 999, domain.Uncommitted, false, false)
	require.NoError(t, err)
	require.Empty(t, batch)
}

func TestSelectSkipsExpiredUninformedPromotion(t *testing.T) {
	g := storetest.New()
	g.SeedProduct(domain.Product{ID: 1, SubID: "200", PriceCurrency: "USD"})

	past := time.Now().Add(-time.Hour)
	g.SeedRequest(domain.Request{
		ID: 10, Kind: domain.UserRequestKind, Visible: true, Paid: true, UserID: 5,
		Promotion: true, ExpirationDate: &past, Informed: false,
	})
	g.SeedRelation(domain.Relation{ID: 100, Kind: domain.UserRequestKind, RequestID: 10, ProductID: 1, CommitmentLevel: domain.Uncommitted})

	sel := selector.New(g.AsGateway())
	batch, err := sel.Select(context.Background(), 999, domain.Uncommitted, false, false)
	require.NoError(t, err)
	require.Empty(t, batch)
}

func TestSelectSkipsAlreadyAssignedToOtherOwner(t *testing.T) {
	g := storetest.New()
	g.SeedProduct(domain.Product{ID: 1, SubID: "200", PriceCurrency: "USD"})

	otherOwner := int64(42)
	g.SeedRequest(domain.Request{ID: 10, Kind: domain.UserRequestKind, Visible: true, Paid: true, UserID: 5, AssignedUserID: &otherOwner})
	g.SeedRelation(domain.Relation{ID: 100, Kind: domain.UserRequestKind, RequestID: 10, ProductID: 1, CommitmentLevel: domain.Uncommitted})

	sel := selector.New(g.AsGateway())
	batch, err := sel.Select(context.Background(), 999, domain.Uncommitted, false, false)
	require.NoError(t, err)
	require.Empty(t, batch)
}
