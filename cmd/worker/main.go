// Command worker runs a Worker Node: it drains the priority queues,
// dispatches HTTP requests through rotating proxies and user agents,
// parses responses, and publishes result records.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/grishkovelli/asc/internal/asyncwriter"
	"github.com/grishkovelli/asc/internal/config"
	"github.com/grishkovelli/asc/internal/dispatcher"
	"github.com/grishkovelli/asc/internal/governor"
	"github.com/grishkovelli/asc/internal/logging"
	"github.com/grishkovelli/asc/internal/parser"
	"github.com/grishkovelli/asc/internal/proxymanager"
	"github.com/grishkovelli/asc/internal/store"
	"github.com/grishkovelli/asc/internal/useragent"
	"github.com/grishkovelli/asc/internal/worker"
)

func main() {
	bootLog, err := logging.New("info", true)
	if err != nil {
		os.Exit(1)
	}
	defer bootLog.Sync()

	cfg, err := config.Load(bootLog)
	if err != nil {
		bootLog.Fatal("failed to load configuration", "error", err)
	}

	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Pretty)
	if err != nil {
		bootLog.Fatal("failed to initialize logger", "error", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.NewRedisStore(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal("failed to connect to coordination store", "error", err)
	}
	defer st.Close()

	keys := store.Keys{Prefix: cfg.Redis.KeyPrefix}

	proxyWrites := asyncwriter.New(log, "proxy-stats", 4, 256)
	governorWrites := asyncwriter.New(log, "governor-state", 4, 256)

	proxies, err := proxymanager.New(ctx, log, st, keys, proxyWrites, cfg.Proxies)
	if err != nil {
		log.Fatal("failed to initialize proxy manager", "error", err)
	}

	agents := useragent.New(cfg.UserAgents)
	gov := governor.New(cfg.Governor, st, keys, governorWrites, log)
	disp := dispatcher.New(proxies, agents, gov)

	registry := parser.New()
	registry.Register(parser.HTMLCheerioName, parser.HTMLCheerio)
	registry.Freeze()

	node := worker.New(st, keys, disp, registry, cfg.Controller.WorkerTimeout, log)

	go func() {
		<-ctx.Done()
		log.Info("shutting down worker")
		node.Shutdown()
	}()

	log.Info("worker starting", "concurrency", cfg.Worker.Concurrency, "redis", cfg.Redis.Addr())
	node.Run(ctx, cfg.Worker.Concurrency)
}
