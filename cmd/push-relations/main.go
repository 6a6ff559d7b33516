package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/timour/edgedispatch/internal/archive"
	"github.com/timour/edgedispatch/internal/broker"
	"github.com/timour/edgedispatch/internal/cache"
	"github.com/timour/edgedispatch/internal/config"
	"github.com/timour/edgedispatch/internal/crashsink"
	"github.com/timour/edgedispatch/internal/edgeclient"
	"github.com/timour/edgedispatch/internal/lock"
	"github.com/timour/edgedispatch/internal/lock/consul"
	"github.com/timour/edgedispatch/internal/lock/inmem"
	"github.com/timour/edgedispatch/internal/logger"
	"github.com/timour/edgedispatch/internal/metrics"
	"github.com/timour/edgedispatch/internal/orchestrator"
	"github.com/timour/edgedispatch/internal/store"
	"github.com/timour/edgedispatch/internal/tracing"
	"github.com/timour/edgedispatch/internal/wallet"
)

// push-relations runs send_invitations then push_relations for both
// anticheat polarities, one pass per invocation. The periodic supervisor
// wrapper is expected to invoke this command on its own schedule; this
// process does not loop internally.
func main() {
	informed := flag.Bool("informed", false, "run the legacy USE_INFORMED selection variant")
	flag.Parse()

	cfg := config.Load()
	if *informed {
		cfg.UseInformed = true
	}

	log := logger.New("push-relations")

	shutdown, err := tracing.Init(context.Background(), "push-relations", cfg.OTLPEndpoint)
	if err != nil {
		log.Error("init tracer", "error", err)
		os.Exit(1)
	}
	defer shutdown()

	sink := buildCrashSink(cfg)

	locker := buildLocker(cfg, log)
	release, ok, err := locker.TryAcquire(context.Background(), ownerLockKey(cfg.OwnerID))
	if err != nil {
		log.Error("acquire run lock", "error", err)
		sink.Report(context.Background(), crashsink.LevelError, "push-relations: acquire run lock", err)
		os.Exit(1)
	}
	if !ok {
		log.Info("another push-relations run already holds the lock for this owner, exiting")
		return
	}
	defer release()

	app, closeApp, err := buildApp(cfg, log, sink, "push-relations")
	if err != nil {
		log.Error("build app", "error", err)
		sink.Report(context.Background(), crashsink.LevelError, "push-relations: build app", err)
		os.Exit(1)
	}
	defer closeApp()

	ctx := context.Background()
	run(ctx, log, sink, "send_invitations(standard)", func() error { return app.SendInvitations(ctx, false) })
	run(ctx, log, sink, "send_invitations(anticheat)", func() error { return app.SendInvitations(ctx, true) })
	run(ctx, log, sink, "push_relations(standard)", func() error { return app.PushRelations(ctx, false) })
	run(ctx, log, sink, "push_relations(anticheat)", func() error { return app.PushRelations(ctx, true) })
}

func run(ctx context.Context, log *slog.Logger, sink crashsink.Reporter, label string, f func() error) {
	if err := f(); err != nil {
		log.Error(label, "error", err)
		sink.Report(ctx, crashsink.LevelError, label, err)
	}
}

func ownerLockKey(ownerID int64) string {
	return "push-relations:" + strconv.FormatInt(ownerID, 10)
}

func buildCrashSink(cfg config.Config) crashsink.Reporter {
	if cfg.RollbarToken == "" {
		return crashsink.Nop{}
	}
	return crashsink.New(cfg.RollbarToken, cfg.RollbarEnv)
}

func buildLocker(cfg config.Config, log *slog.Logger) lock.Locker {
	if cfg.ConsulAddr == "" {
		return inmem.NewLocker()
	}
	locker, err := consul.NewLocker(cfg.ConsulAddr)
	if err != nil {
		log.Error("connect consul, falling back to in-process lock", "error", err)
		return inmem.NewLocker()
	}
	return locker
}

// buildApp wires every dependency the orchestrator needs and returns a
// close func releasing the ones that hold connections.
func buildApp(cfg config.Config, log *slog.Logger, sink crashsink.Reporter, serviceName string) (*orchestrator.App, func(), error) {
	invalidator, err := cache.NewRedisInvalidator(cfg.RedisAddr)
	if err != nil {
		return nil, nil, err
	}

	pg, err := store.Open(cfg.DatabaseURL, invalidator)
	if err != nil {
		return nil, nil, err
	}

	var archiveStore *archive.Store
	if cfg.MongoURI != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		archiveStore, err = archive.Connect(ctx, cfg.MongoURI)
		if err != nil {
			log.Error("connect mongo archive, continuing without it", "error", err)
			archiveStore = nil
		}
	}

	channel, closeBroker, err := broker.Connect(cfg.AMQPUser, cfg.AMQPPass, cfg.AMQPHost, cfg.AMQPPort)
	if err != nil {
		log.Error("connect rabbitmq, continuing without event publishing", "error", err)
		channel = nil
		closeBroker = func() error { return nil }
	}

	var walletClient wallet.Client
	if cfg.CoinbaseAPIKey != "" {
		walletClient = wallet.NewHTTPClient("https://api.exchange.coinbase.com", cfg.CoinbaseAPIKey, cfg.CoinbaseAPISecret)
	} else {
		walletClient = wallet.NewFake()
	}

	edge := edgeclient.New()
	business := metrics.NewBusinessMetrics(serviceName)
	edgeStats := metrics.NewEdgeClientMetrics(serviceName)

	app := orchestrator.New(cfg, pg.NewGateway(), edge, walletClient, archiveStore, channel, log, business, edgeStats, sink)

	closeFn := func() {
		if archiveStore != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := archiveStore.Close(ctx); err != nil {
				log.Error("close archive store", "error", err)
			}
		}
		if err := closeBroker(); err != nil {
			log.Error("close broker", "error", err)
		}
		if err := pg.Close(); err != nil {
			log.Error("close database", "error", err)
		}
	}

	return app, closeFn, nil
}
