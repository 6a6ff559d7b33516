// Package orchestrator wires the persistence gateway, edge client, wallet
// client, selector and reconciler into the three batch entry flows:
// send_invitations, push_relations, process_pending_tasks. Every dependency
// is an explicit field on App rather than a package-level singleton.
package orchestrator

import (
	"context"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/timour/edgedispatch/internal/archive"
	"github.com/timour/edgedispatch/internal/broker"
	"github.com/timour/edgedispatch/internal/config"
	"github.com/timour/edgedispatch/internal/crashsink"
	"github.com/timour/edgedispatch/internal/edgeclient"
	"github.com/timour/edgedispatch/internal/metrics"
	"github.com/timour/edgedispatch/internal/reconciler"
	"github.com/timour/edgedispatch/internal/selector"
	"github.com/timour/edgedispatch/internal/store"
	"github.com/timour/edgedispatch/internal/tasks"
	"github.com/timour/edgedispatch/internal/wallet"
)

// App bundles every dependency an entry flow needs. Construct one per
// process; the three flow methods below are its only public surface.
type App struct {
	Config config.Config

	Gateway *store.Gateway
	Edge    *edgeclient.Client
	Wallet  wallet.Client
	Archive *archive.Store      // nil when MONGO_URI is unset
	Broker  *amqp.Channel // nil when the event bus isn't configured

	Selector   *selector.Selector
	Reconciler *reconciler.Reconciler
	Tasks      *tasks.Registry

	Logger    *slog.Logger
	Business  *metrics.BusinessMetrics
	EdgeStats *metrics.EdgeClientMetrics
	CrashSink crashsink.Reporter
}

// New builds an App from its constituent dependencies. Selector, Reconciler
// and Tasks are derived from gateway so callers only need to wire the
// gateway itself.
func New(cfg config.Config, gateway *store.Gateway, edge *edgeclient.Client, walletClient wallet.Client, archiveStore *archive.Store, ch *amqp.Channel, logger *slog.Logger, business *metrics.BusinessMetrics, edgeStats *metrics.EdgeClientMetrics, sink crashsink.Reporter) *App {
	return &App{
		Config:     cfg,
		Gateway:    gateway,
		Edge:       edge,
		Wallet:     walletClient,
		Archive:    archiveStore,
		Broker:     ch,
		Selector:   selector.New(gateway),
		Reconciler: reconciler.New(gateway),
		Tasks:      tasks.New(gateway.Tasks),
		Logger:     logger,
		Business:   business,
		EdgeStats:  edgeStats,
		CrashSink:  sink,
	}
}

// publish emits a domain event if the broker channel is configured; a nil
// Broker (tests, or a process run without RABBITMQ_* configured) makes this
// a no-op rather than a required dependency.
func (a *App) publish(ctx context.Context, event string, body []byte) {
	if a.Broker == nil {
		return
	}
	if err := broker.Publish(ctx, a.Broker, event, body); err != nil {
		a.Logger.Error("publish event", "event", event, "error", err)
	}
}
