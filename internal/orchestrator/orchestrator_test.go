package orchestrator_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/timour/edgedispatch/internal/config"
	"github.com/timour/edgedispatch/internal/crashsink"
	"github.com/timour/edgedispatch/internal/domain"
	"github.com/timour/edgedispatch/internal/edgeclient"
	"github.com/timour/edgedispatch/internal/orchestrator"
	"github.com/timour/edgedispatch/internal/store/storetest"
	"github.com/timour/edgedispatch/internal/wallet"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ipOf(server *httptest.Server) string {
	return strings.TrimPrefix(server.URL, "http://")
}

func newTestApp(gw *storetest.Gateway, walletClient wallet.Client) *orchestrator.App {
	cfg := config.Config{OwnerID: 999, PaymentMethod: config.PaymentMethodSteamAccount}
	return orchestrator.New(cfg, gw.AsGateway(), edgeclient.New(), walletClient, nil, nil, discardLogger(), nil, nil, crashsink.Nop{})
}

// TestHappyPathAccountPayment runs send_invitations, push_relations and two
// process_pending_tasks passes over a relation pushed to cart and checked
// out with payment=account: it should end PURCHASED with its request
// assigned and accepted and the bot back at STANDING_BY.
func TestHappyPathAccountPayment(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/edge/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("0.1"))
	})
	mux.HandleFunc("/ISteamUser/GetFriendsList/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[76561111111111111]`))
	})
	mux.HandleFunc("/edge/cart/push/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"result":0,"task_id":"task-cart-1","task_name":"add_subids_to_cart"}`))
	})
	mux.HandleFunc("/edge/cart/checkout/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"task_id":"task-checkout-1","task_name":"checkout_cart"}`))
	})
	mux.HandleFunc("/edge/task/state/", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		switch r.FormValue("task_id") {
		case "task-cart-1":
			w.Write([]byte(`{"success":true,"task_status":"SUCCESS","task_result":{"items":[{"sub_id":"200","user_id":42,"relation_type":"A","relation_id":1}],"failed_items":[],"failed_shopping_cart_gids":[],"shoppingCartGID":"G"}}`))
		case "task-checkout-1":
			w.Write([]byte(`{"success":true,"task_status":"SUCCESS","task_result":{"result":"OK","payment_method":"steamaccount"}}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	gw := storetest.New()
	gw.SeedBot(domain.EdgeBot{ID: 1, NetworkID: "100", CurrencyCode: "USD", BotType: domain.BotTypePurchases, Status: domain.StandingBy})
	gw.SeedServer(domain.EdgeServer{ID: 1, IPAddress: ipOf(server), CurrencyCode: "USD", Status: domain.EdgeServerEnabled})
	gw.SeedProduct(domain.Product{ID: 1, SubID: "200", PriceCurrency: "USD"})
	gw.SeedRequest(domain.Request{ID: 1, Kind: domain.UserRequestKind, Paid: true, Visible: true, UserID: 42, UserExternalAccountID: "76561111111111111"})
	gw.SeedRelation(domain.Relation{ID: 1, Kind: domain.UserRequestKind, RequestID: 1, ProductID: 1, CommitmentLevel: domain.Uncommitted})

	app := newTestApp(gw, wallet.NewFake())
	ctx := context.Background()

	require.NoError(t, app.SendInvitations(ctx, false))
	require.NoError(t, app.PushRelations(ctx, false))
	require.NoError(t, app.ProcessPendingTasks(ctx)) // resolves add_subids_to_cart, dispatches checkout
	require.NoError(t, app.ProcessPendingTasks(ctx)) // resolves checkout_cart, commits purchase

	rel := gw.Relations[domain.UserRequestKind][1]
	require.Equal(t, domain.Purchased, rel.CommitmentLevel)
	require.True(t, rel.Sent)

	req := gw.Requests[domain.UserRequestKind][1]
	require.NotNil(t, req.AssignedUserID)
	require.Equal(t, int64(999), *req.AssignedUserID)
	require.True(t, req.Accepted)

	bot := gw.Bots["100"]
	require.Equal(t, domain.StandingBy, bot.Status)
}

// TestInsufficientFundsOnCheckout verifies an integer ETransactionResult of
// 5 (insufficient funds) only moves the bot to WAITING_FOR_SUFFICIENT_FUNDS;
// the relation is left untouched.
func TestInsufficientFundsOnCheckout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/edge/task/state/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"task_status":"SUCCESS","task_result":5}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	gw := storetest.New()
	gw.SeedBot(domain.EdgeBot{ID: 1, NetworkID: "100", CurrencyCode: "USD", BotType: domain.BotTypePurchases, Status: domain.PurchasingCart})
	gw.SeedServer(domain.EdgeServer{ID: 1, IPAddress: ipOf(server), CurrencyCode: "USD", Status: domain.EdgeServerEnabled})
	gid := "G"
	gw.SeedRequest(domain.Request{ID: 1, Kind: domain.UserRequestKind, Paid: true, Visible: true, UserID: 42, UserExternalAccountID: "76561111111111111"})
	gw.SeedRelation(domain.Relation{ID: 1, Kind: domain.UserRequestKind, RequestID: 1, ProductID: 1, CommitmentLevel: domain.AddedToCart, ShoppingCartGID: &gid})
	gw.SeedTask("task-checkout-1", domain.TaskCheckoutCart, 1, 1, &gid)

	app := newTestApp(gw, wallet.NewFake())
	ctx := context.Background()

	require.NoError(t, app.ProcessPendingTasks(ctx))

	bot := gw.Bots["100"]
	require.Equal(t, domain.WaitingForSufficientFunds, bot.Status)

	rel := gw.Relations[domain.UserRequestKind][1]
	require.Equal(t, domain.AddedToCart, rel.CommitmentLevel)
}

// TestBitcoinInvoiceNotNew verifies that when the transaction/link/ URL
// resolves to an invoice that is no longer "new", the bot is blocked and no
// wallet call is made.
func TestBitcoinInvoiceNotNew(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/edge/task/state/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"task_status":"SUCCESS","task_result":"/i/ABCDE"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	gw := storetest.New()
	gw.SeedBot(domain.EdgeBot{ID: 1, NetworkID: "100", CurrencyCode: "USD", BotType: domain.BotTypePurchases, Status: domain.PurchasingCart})
	gw.SeedServer(domain.EdgeServer{ID: 1, IPAddress: ipOf(server), CurrencyCode: "USD", Status: domain.EdgeServerEnabled})
	gid := "G"
	gw.SeedRequest(domain.Request{ID: 1, Kind: domain.UserRequestKind, Paid: true, Visible: true, UserID: 42, UserExternalAccountID: "76561111111111111"})
	gw.SeedRelation(domain.Relation{ID: 1, Kind: domain.UserRequestKind, RequestID: 1, ProductID: 1, CommitmentLevel: domain.AddedToCart, ShoppingCartGID: &gid})
	gw.SeedTask("task-link-1", domain.TaskGetExternalLinkFromTransID, 1, 1, &gid)

	fakeWallet := wallet.NewFake()
	fakeWallet.Invoices["ABCDE"] = wallet.Invoice{ID: "ABCDE", Status: "paid"}

	app := newTestApp(gw, fakeWallet)
	ctx := context.Background()

	require.NoError(t, app.ProcessPendingTasks(ctx))

	bot := gw.Bots["100"]
	require.Equal(t, domain.BlockedForUnknownReason, bot.Status)

	rel := gw.Relations[domain.UserRequestKind][1]
	require.Equal(t, domain.AddedToCart, rel.CommitmentLevel)
	require.Empty(t, fakeWallet.Sends)
}

// TestEdgeServerUnhealthySkipsDispatch verifies a healthcheck failure aborts
// send_invitations for that currency without touching any state.
func TestEdgeServerUnhealthySkipsDispatch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/edge/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	gw := storetest.New()
	gw.SeedBot(domain.EdgeBot{ID: 1, NetworkID: "100", CurrencyCode: "USD", BotType: domain.BotTypePurchases, Status: domain.StandingBy})
	gw.SeedServer(domain.EdgeServer{ID: 1, IPAddress: ipOf(server), CurrencyCode: "USD", Status: domain.EdgeServerEnabled})
	gw.SeedProduct(domain.Product{ID: 1, SubID: "200", PriceCurrency: "USD"})
	gw.SeedRequest(domain.Request{ID: 1, Kind: domain.UserRequestKind, Paid: true, Visible: true, UserID: 42, UserExternalAccountID: "76561111111111111"})
	gw.SeedRelation(domain.Relation{ID: 1, Kind: domain.UserRequestKind, RequestID: 1, ProductID: 1, CommitmentLevel: domain.Uncommitted})

	app := newTestApp(gw, wallet.NewFake())

	require.NoError(t, app.SendInvitations(context.Background(), false))

	rel := gw.Relations[domain.UserRequestKind][1]
	require.Equal(t, domain.Uncommitted, rel.CommitmentLevel)
	require.Nil(t, rel.CommittedOnBot)

	bot := gw.Bots["100"]
	require.Equal(t, domain.StandingBy, bot.Status)
}
