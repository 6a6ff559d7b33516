package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
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

// process-tasks runs one pass of process_pending_tasks: poll every task
// still PENDING locally and react to its remote status. Intentionally
// single-threaded to avoid double-dispatching checkouts; the supervisor
// wrapper is expected not to overlap two invocations for the same owner,
// which is what the run lock below guards against.
func main() {
	cfg := config.Load()
	log := logger.New("process-tasks")

	shutdown, err := tracing.Init(context.Background(), "process-tasks", cfg.OTLPEndpoint)
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
		sink.Report(context.Background(), crashsink.LevelError, "process-tasks: acquire run lock", err)
		os.Exit(1)
	}
	if !ok {
		log.Info("another process-tasks run already holds the lock for this owner, exiting")
		return
	}
	defer release()

	app, closeApp, err := buildApp(cfg, log, sink, "process-tasks")
	if err != nil {
		log.Error("build app", "error", err)
		sink.Report(context.Background(), crashsink.LevelError, "process-tasks: build app", err)
		os.Exit(1)
	}
	defer closeApp()

	ctx := context.Background()
	if err := app.ProcessPendingTasks(ctx); err != nil {
		log.Error("process_pending_tasks", "error", err)
		level := crashsink.LevelError
		var netErr net.Error
		if errors.As(err, &netErr) {
			level = crashsink.LevelWarning
		}
		sink.Report(ctx, level, "process-tasks: process_pending_tasks", err)
		os.Exit(1)
	}
}

func ownerLockKey(ownerID int64) string {
	return "process-tasks:" + strconv.FormatInt(ownerID, 10)
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
